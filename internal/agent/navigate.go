package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/webpilot/backend/internal/extractor"
	"github.com/webpilot/backend/pkg/logger"
)

// search box selectors probed on arbitrary sites, most explicit first.
// Wikipedia's #searchInput leads when the host matches.
var siteSearchBoxSelectors = []string{
	`input[type="search"]`,
	`input[name="search"]`,
	`input[id*="search"]`,
	`input[placeholder*="Search"]`,
	`input[aria-label*="Search"]`,
	`#searchInput`,
	`#search`,
	`.search-input`,
}

// openURL lands on the target site, then either searches within it or
// reads the landing page, depending on what the query left to look for.
func (o *Orchestrator) openURL(ctx context.Context, trace *Trace, url, query string) {
	finalURL, err := o.surface.Navigate(ctx, url)
	if err != nil {
		trace.record(fmt.Sprintf("Open %s", url), fail(
			fmt.Sprintf("navigation failed: %v", err), err.Error(), Data{URL: url},
		))
		return
	}

	title, _ := o.surface.Title(ctx)
	trace.record(fmt.Sprintf("Open %s", url), ok(
		fmt.Sprintf("landed on %s", finalURL),
		Data{Title: title, URL: finalURL},
	))

	if !o.challengeGate(ctx, trace, query) {
		return
	}

	residual := ResidualTerms(query)
	if HasSearchTerms(query) && len(residual) > 3 {
		o.searchWithinSite(ctx, trace, finalURL, residual, query)
		return
	}

	o.recordPageReport(ctx, trace, "Read landing page")
}

// searchWithinSite types the residual terms into the site's own search
// box. Sites without a usable box degrade to reading the landing page.
func (o *Orchestrator) searchWithinSite(ctx context.Context, trace *Trace, siteURL, terms, query string) {
	log := logger.With("site-search")

	selectors := siteSearchBoxSelectors
	wikipedia := strings.Contains(strings.ToLower(siteURL), "wikipedia.org")
	if wikipedia {
		selectors = append([]string{`#searchInput`}, selectors...)
	}

	sel, err := o.surface.Find(ctx, selectors...)
	if err != nil {
		log.Info().Str("site", siteURL).Msg("no search box found, reading landing page")
		o.recordPageReport(ctx, trace, "Read landing page")
		return
	}

	if err := o.surface.Fill(ctx, sel, terms); err != nil {
		trace.record(fmt.Sprintf("Search site for %q", terms), fail(
			fmt.Sprintf("could not type into search box: %v", err), err.Error(), Data{URL: siteURL},
		))
		return
	}
	if err := o.surface.PressEnter(ctx, sel); err != nil {
		trace.record(fmt.Sprintf("Search site for %q", terms), fail(
			fmt.Sprintf("could not submit search: %v", err), err.Error(), Data{URL: siteURL},
		))
		return
	}

	o.surface.WaitLoaded(ctx)

	if !o.challengeGate(ctx, trace, query) {
		return
	}

	if wikipedia {
		o.readWikipediaResults(ctx, trace, terms)
		return
	}

	o.recordPageReport(ctx, trace, fmt.Sprintf("Search site for %q", terms))
}

// readWikipediaResults walks the top articles from a Wikipedia search
// page and extracts each in depth (infobox, contents, key paragraphs).
// Direct hits redirect straight to an article; that page is read as-is.
func (o *Orchestrator) readWikipediaResults(ctx context.Context, trace *Trace, terms string) {
	html, err := o.surface.HTML(ctx)
	if err != nil {
		trace.record(fmt.Sprintf("Search Wikipedia for %q", terms), fail(
			fmt.Sprintf("could not read results: %v", err), err.Error(), Data{},
		))
		return
	}
	pageURL, _ := o.surface.URL(ctx)

	hits := extractor.ParseWikiSearchResults(html, pageURL, o.cfg.MaxEnrich)
	if len(hits) == 0 {
		// search box often redirects straight to the best-matching article
		o.recordPageReport(ctx, trace, fmt.Sprintf("Search Wikipedia for %q", terms))
		return
	}

	var detailed []*extractor.PageReport
	for _, hit := range hits {
		if o.visited.Seen(hit.URL) {
			continue
		}
		o.visited.Add(hit.URL)

		finalURL, err := o.surface.Navigate(ctx, hit.URL)
		if err != nil {
			logger.Log.Warn().Err(err).Str("url", hit.URL).Msg("wikipedia article skipped")
			continue
		}
		if o.surface.HasChallenge(ctx) {
			trace.addCaptchaURL(finalURL)
			continue
		}

		articleHTML, err := o.surface.HTML(ctx)
		if err != nil {
			continue
		}
		report, err := o.pages.Extract(articleHTML, finalURL)
		if err != nil {
			continue
		}
		detailed = append(detailed, report)
	}

	trace.record(fmt.Sprintf("Search Wikipedia for %q", terms), ok(
		fmt.Sprintf("read %d of %d matching articles", len(detailed), len(hits)),
		Data{URL: pageURL, Extras: map[string]any{
			"search_results":   hits,
			"detailed_results": detailed,
		}},
	))
}

// recordPageReport snapshots the current page into a step
func (o *Orchestrator) recordPageReport(ctx context.Context, trace *Trace, stepName string) {
	report, err := o.snapshotReport(ctx)
	if err != nil {
		trace.record(stepName, fail(
			fmt.Sprintf("could not read page: %v", err), err.Error(), Data{},
		))
		return
	}

	extras := map[string]any{"report": report}
	message := fmt.Sprintf("read %q", report.Title)
	if len(report.Issues) > 0 {
		extras["issues"] = report.Issues
		message = fmt.Sprintf("read %q (issues: %s)", report.Title, strings.Join(report.Issues, ", "))
	}

	trace.record(stepName, ok(message, Data{
		Title:  report.Title,
		URL:    report.URL,
		Extras: extras,
	}))
}
