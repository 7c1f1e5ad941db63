package agent

import (
	"context"
	"fmt"

	"github.com/webpilot/backend/internal/captcha"
	"github.com/webpilot/backend/internal/fallback"
	"github.com/webpilot/backend/pkg/logger"
	"github.com/webpilot/backend/pkg/status"
)

// challengeGate inspects the current page for a challenge. It returns
// true when execution may continue on the page: either no challenge, or
// a human solved it during the pause. On timeout the fallback ladder
// takes over and the gate returns false; the ladder records the final
// step either way.
func (o *Orchestrator) challengeGate(ctx context.Context, trace *Trace, query string) bool {
	if !o.surface.HasChallenge(ctx) {
		return true
	}

	url, _ := o.surface.URL(ctx)
	title, _ := o.surface.Title(ctx)
	trace.addCaptchaURL(url)
	o.surface.SetChallengePending(true)

	ctrl := captcha.New(o.surface,
		captcha.WithPollInterval(o.cfg.CaptchaPollInterval),
		captcha.WithWaitTimeout(o.cfg.CaptchaWaitTimeout),
		captcha.WithConfirmDelay(o.cfg.CaptchaConfirmDelay),
	)

	notice := ctrl.Pause(url, title)
	trace.record("Detect CAPTCHA and pause for human", fail(
		notice,
		ErrCaptchaDetected,
		Data{Title: title, URL: url},
	))

	state := ctrl.Wait(ctx)
	if state == status.ChallengeResolved {
		o.surface.SetChallengePending(false)
		resolvedURL, _ := o.surface.URL(ctx)
		resolvedTitle, _ := o.surface.Title(ctx)
		trace.record("Resume after CAPTCHA resolved", ok(
			"challenge solved, resuming task",
			Data{Title: resolvedTitle, URL: resolvedURL},
		))
		return true
	}

	o.runFallbacks(ctx, trace, query, url)
	return false
}

// runFallbacks walks the strategy ladder. Each probe runs in a fresh
// tab and the original page is restored afterwards, success or not, so
// a human can still solve the challenge there.
func (o *Orchestrator) runFallbacks(ctx context.Context, trace *Trace, query, blockedURL string) {
	log := logger.With("fallback")
	strategies := o.chooser.Choose(ctx, query, blockedURL)

	for _, strategy := range strategies {
		searchQuery := strategy.Query
		if strategy.Kind == fallback.KindSiteSearch {
			searchQuery = fmt.Sprintf("site:%s %s", strategy.Site, strategy.Query)
		}

		if err := o.surface.NewTab(ctx); err != nil {
			log.Error().Err(err).Msg("fallback tab failed to open")
			continue
		}

		results, serpURL, err := o.ddgSearch(ctx, searchQuery)
		if err != nil {
			log.Warn().Err(err).Str("kind", string(strategy.Kind)).Msg("fallback probe failed")
			o.surface.CloseTab()
			continue
		}

		if o.surface.HasChallenge(ctx) {
			trace.addCaptchaURL(serpURL)
			log.Warn().Str("url", serpURL).Msg("fallback route also challenged")
			o.surface.CloseTab()
			continue
		}

		detailed := o.enrichResults(ctx, trace, results)
		trace.record(fmt.Sprintf("Fallback search (%s)", strategy.Kind), ok(
			fmt.Sprintf("recovered %d results via %s", len(results), strategy.Kind),
			Data{
				URL: serpURL,
				Extras: map[string]any{
					"strategy":         strategy,
					"results":          results,
					"detailed_results": detailed,
				},
			},
		))
		o.surface.CloseTab()
		return
	}

	trace.record("Exhaust fallback strategies", fail(
		"every alternative route was blocked",
		ErrAllFallbacksBlocked,
		Data{Extras: map[string]any{"captcha_urls": trace.CaptchaURLs}},
	))
}
