// Package agent runs the task loop: plan the query, drive the browser,
// pause on challenges, fall back when blocked, and record every step.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/webpilot/backend/internal/cache"
	"github.com/webpilot/backend/internal/extractor"
	"github.com/webpilot/backend/internal/fallback"
	"github.com/webpilot/backend/internal/planner"
	"github.com/webpilot/backend/internal/serp"
	"github.com/webpilot/backend/pkg/logger"
)

const (
	defaultMaxResults = 5
	defaultMaxEnrich  = 3

	visitedFilterSize   = 10_000
	visitedFilterFPRate = 0.001
)

type Config struct {
	MaxResults       int
	MaxEnrich        int
	MaxContentLength int

	CaptchaPollInterval time.Duration
	CaptchaWaitTimeout  time.Duration
	CaptchaConfirmDelay time.Duration
}

type Orchestrator struct {
	surface Surface
	planner *planner.Planner
	chooser *fallback.Chooser
	pages   *extractor.Extractor
	results *serp.Reader
	oracle  TextOracle // nil is fine
	cfg     Config
	visited *cache.VisitedFilter
}

func New(surface Surface, p *planner.Planner, c *fallback.Chooser, oracle TextOracle, cfg Config) *Orchestrator {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = defaultMaxResults
	}
	if cfg.MaxEnrich <= 0 {
		cfg.MaxEnrich = defaultMaxEnrich
	}

	return &Orchestrator{
		surface: surface,
		planner: p,
		chooser: c,
		pages:   extractor.New(cfg.MaxContentLength),
		results: serp.NewReader(cfg.MaxResults),
		oracle:  oracle,
		cfg:     cfg,
		visited: cache.NewVisitedFilter(visitedFilterSize, visitedFilterFPRate),
	}
}

// Run executes one task end to end. It never panics and never returns
// an error: every failure, including a panic from a primitive, lands in
// the trace as a failed step.
func (o *Orchestrator) Run(ctx context.Context, query string) (trace *Trace) {
	log := logger.With("orchestrator")
	trace = &Trace{Query: query}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("task panicked, converting to failed step")
			trace.record("Recover from internal error", fail(
				fmt.Sprintf("internal error: %v", r), "INTERNAL_ERROR", Data{},
			))
			trace.ChallengePending = o.surface.ChallengePending()
		}
	}()

	o.visited.Reset()

	action := o.planner.Plan(ctx, query)
	trace.record(fmt.Sprintf("Plan task as %s", action.Type), ok(
		fmt.Sprintf("planned action %s", action.Type),
		Data{Extras: map[string]any{"action": string(action.Type), "reason": action.Reason}},
	))
	log.Info().Str("action", string(action.Type)).Str("query", query).Msg("task planned")

	switch action.Type {
	case planner.ActionOpenURL:
		o.openURL(ctx, trace, action.URL, query)
	case planner.ActionSearchDefault:
		o.searchDefault(ctx, trace, action.Query, query)
	case planner.ActionReadPage:
		o.readPage(ctx, trace, query)
	case planner.ActionFixIssue:
		o.fixIssue(ctx, trace, query)
	default:
		o.searchDefault(ctx, trace, query, query)
	}

	trace.ChallengePending = o.surface.ChallengePending()
	log.Info().
		Int("steps", len(trace.Steps)).
		Bool("success", trace.Final().Success).
		Bool("challenge_pending", trace.ChallengePending).
		Msg("task finished")

	return trace
}
