package agent

import (
	"context"
	"fmt"

	"github.com/webpilot/backend/internal/extractor"
	"github.com/webpilot/backend/pkg/logger"
)

// snapshotReport extracts a structured report from whatever page the
// active tab currently shows
func (o *Orchestrator) snapshotReport(ctx context.Context) (*extractor.PageReport, error) {
	html, err := o.surface.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}
	url, err := o.surface.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("read page url: %w", err)
	}
	return o.pages.Extract(html, url)
}

// readPage handles the read_page action: report on the page already
// open in the active tab. A challenge on that page goes through the
// pause cycle first; on resolution the read is retried.
func (o *Orchestrator) readPage(ctx context.Context, trace *Trace, query string) {
	if !o.challengeGate(ctx, trace, query) {
		return
	}
	o.recordPageReport(ctx, trace, "Read current page")
}

// fixIssue handles the fix_issue action. There is nothing to automate
// here; the step answers with guidance for the operator, drafted by the
// oracle when one is wired, otherwise from a fixed playbook.
func (o *Orchestrator) fixIssue(ctx context.Context, trace *Trace, query string) {
	const stepName = "Advise on reported issue"

	guidance := staticIssueGuidance
	if o.oracle != nil {
		currentURL, _ := o.surface.URL(ctx)
		prompt := fmt.Sprintf("A user operating a web research session reported this problem: %q. "+
			"The browser is currently on %q. Give short, concrete troubleshooting advice.", query, currentURL)
		answer, err := o.oracle.GenerateText(ctx, issueAdvisorSystem, prompt)
		if err != nil {
			logger.Log.Warn().Err(err).Msg("oracle guidance unavailable, using playbook")
		} else if answer != "" {
			guidance = answer
		}
	}

	trace.record(stepName, ok(guidance, Data{Extras: map[string]any{
		"requires_manual_intervention": true,
	}}))
}

const issueAdvisorSystem = "You are a browsing assistant. Answer in a few plain sentences, " +
	"no markdown, no lists longer than three items."

const staticIssueGuidance = "This looks like something that needs a human in the loop. " +
	"Check that the page finished loading, reload it once, and retry the task. " +
	"If a verification page is blocking you, complete it in the open browser window and run the task again."
