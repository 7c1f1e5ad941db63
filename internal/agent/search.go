package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/webpilot/backend/internal/extractor"
	"github.com/webpilot/backend/internal/serp"
	"github.com/webpilot/backend/pkg/logger"
)

const defaultEngineURL = "https://duckduckgo.com"

// query box selectors on the default engine's landing page
var engineQueryBoxSelectors = []string{
	`input[name="q"]`,
	`input[type="search"]`,
	`#search_form_input_homepage`,
}

// searchDefault runs the query on the default engine, reads the top
// results and enriches the best ones with detailed extraction.
func (o *Orchestrator) searchDefault(ctx context.Context, trace *Trace, searchQuery, originalQuery string) {
	results, serpURL, err := o.ddgSearch(ctx, searchQuery)
	if err != nil {
		trace.record(fmt.Sprintf("Search for %q", searchQuery), fail(
			fmt.Sprintf("search failed: %v", err), err.Error(), Data{},
		))
		return
	}

	if !o.challengeGate(ctx, trace, originalQuery) {
		return
	}

	// when the gate paused for a human, the first snapshot was the
	// challenge interstitial; read the results page as it stands now
	if html, err := o.surface.HTML(ctx); err == nil {
		if current, _ := o.surface.URL(ctx); current != "" {
			serpURL = current
		}
		results = o.results.Read(html, serpURL)
	}

	trace.record(fmt.Sprintf("Search for %q", searchQuery), ok(
		fmt.Sprintf("found %d results", len(results)),
		Data{URL: serpURL, Extras: map[string]any{"results": results}},
	))

	if len(results) == 0 {
		return
	}

	detailed := o.enrichResults(ctx, trace, results)
	extras := map[string]any{
		"results":          results,
		"detailed_results": detailed,
	}
	if o.oracle != nil {
		if summary := o.synthesize(ctx, originalQuery, detailed); summary != "" {
			extras["comprehensive_summary"] = summary
		}
	}
	trace.record("Extract detailed content from top results", ok(
		fmt.Sprintf("extracted %d pages in depth", len(detailed)),
		Data{URL: serpURL, Extras: extras},
	))
}

// ddgSearch drives the default engine in the active tab: open the
// landing page, type the query, submit, and read the results snapshot.
func (o *Orchestrator) ddgSearch(ctx context.Context, query string) ([]serp.SearchResult, string, error) {
	if _, err := o.surface.Navigate(ctx, defaultEngineURL); err != nil {
		return nil, "", err
	}

	sel, err := o.surface.Find(ctx, engineQueryBoxSelectors...)
	if err != nil {
		return nil, "", fmt.Errorf("locate query box: %w", err)
	}

	if err := o.surface.Fill(ctx, sel, query); err != nil {
		return nil, "", err
	}
	if err := o.surface.PressEnter(ctx, sel); err != nil {
		return nil, "", err
	}

	// results render client-side; a slow load is not fatal
	o.surface.WaitLoaded(ctx)

	html, err := o.surface.HTML(ctx)
	if err != nil {
		return nil, "", err
	}
	serpURL, _ := o.surface.URL(ctx)

	return o.results.Read(html, serpURL), serpURL, nil
}

// enrichResults opens the best results one by one in a throwaway tab
// and extracts a full page report from each. Challenged or already
// visited pages are skipped, never fatal.
func (o *Orchestrator) enrichResults(ctx context.Context, trace *Trace, results []serp.SearchResult) []*extractor.PageReport {
	log := logger.With("enrich")

	var detailed []*extractor.PageReport
	for _, result := range results {
		if len(detailed) >= o.cfg.MaxEnrich {
			break
		}
		if o.visited.Seen(result.URL) {
			continue
		}
		o.visited.Add(result.URL)

		if err := o.surface.NewTab(ctx); err != nil {
			log.Error().Err(err).Msg("enrichment tab failed to open")
			break
		}

		report, err := o.extractInTab(ctx, trace, result.URL)
		o.surface.CloseTab()
		if err != nil {
			log.Warn().Err(err).Str("url", result.URL).Msg("enrichment skipped")
			continue
		}

		if o.oracle != nil {
			report.Summary = o.summarize(ctx, report)
		}

		detailed = append(detailed, report)
	}

	return detailed
}

func (o *Orchestrator) extractInTab(ctx context.Context, trace *Trace, url string) (*extractor.PageReport, error) {
	finalURL, err := o.surface.Navigate(ctx, url)
	if err != nil {
		return nil, err
	}

	if o.surface.HasChallenge(ctx) {
		trace.addCaptchaURL(finalURL)
		return nil, fmt.Errorf("page challenged: %s", finalURL)
	}

	html, err := o.surface.HTML(ctx)
	if err != nil {
		return nil, err
	}

	return o.pages.Extract(html, finalURL)
}

const summarizeSystemPrompt = `Summarise the page content in 2-3 sentences for a research digest. Plain text, no markup.`

const (
	summaryInputLength = 1000
	maxSummaryLength   = 300
)

func (o *Orchestrator) summarize(ctx context.Context, report *extractor.PageReport) string {
	content := report.MainText
	if len(content) > summaryInputLength {
		content = content[:summaryInputLength]
	}

	summary, err := o.oracle.GenerateText(ctx, summarizeSystemPrompt,
		fmt.Sprintf("Title: %s\n\n%s", report.Title, content))
	if err != nil {
		logger.Log.Debug().Err(err).Msg("summary generation failed")
		return ""
	}

	summary = strings.TrimSpace(summary)
	if len(summary) > maxSummaryLength {
		summary = summary[:maxSummaryLength]
	}
	return summary
}

const synthesizeSystemPrompt = `You combine several web sources into one answer. Write a short paragraph that answers the question using only the supplied sources. Plain text, no markup.`

// synthesize builds a single answer across all enriched pages
func (o *Orchestrator) synthesize(ctx context.Context, query string, reports []*extractor.PageReport) string {
	if len(reports) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\n", query)
	for i, r := range reports {
		fmt.Fprintf(&b, "Source %d: %s (%s)\n%s\n\n", i+1, r.Title, r.URL, r.MainText)
	}

	summary, err := o.oracle.GenerateText(ctx, synthesizeSystemPrompt, b.String())
	if err != nil {
		logger.Log.Debug().Err(err).Msg("cross-source summary failed")
		return ""
	}
	return summary
}
