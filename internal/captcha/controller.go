// Package captcha runs the human-in-the-loop pause cycle: execution
// stops when a challenge is detected, a human gets notified, and the
// controller polls the live page until the challenge is solved or the
// wait budget runs out.
package captcha

import (
	"context"
	"time"

	"github.com/webpilot/backend/pkg/detector"
	"github.com/webpilot/backend/pkg/logger"
	"github.com/webpilot/backend/pkg/status"
)

const (
	defaultPollInterval = 3 * time.Second
	defaultWaitTimeout  = 300 * time.Second
	defaultConfirmDelay = 2 * time.Second
)

// Pager is the slice of the browser surface the controller needs.
// Probe failures must read as "challenge still present" on the
// challenge side and never abort the wait.
type Pager interface {
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	HasChallenge(ctx context.Context) bool
}

type Controller struct {
	pager        Pager
	pollInterval time.Duration
	waitTimeout  time.Duration
	confirmDelay time.Duration

	state status.Challenge
}

type Option func(*Controller)

func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

func WithWaitTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.waitTimeout = d
		}
	}
}

func WithConfirmDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.confirmDelay = d
		}
	}
}

func New(pager Pager, opts ...Option) *Controller {
	c := &Controller{
		pager:        pager,
		pollInterval: defaultPollInterval,
		waitTimeout:  defaultWaitTimeout,
		confirmDelay: defaultConfirmDelay,
		state:        status.ChallengeClear,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) State() status.Challenge {
	return c.state
}

// Pause marks the cycle paused and returns the human-facing message.
func (c *Controller) Pause(url, title string) string {
	c.transition(status.ChallengePaused)
	logger.Log.Warn().Str("url", url).Msg("captcha detected, pausing for human")
	return Notify(url, title)
}

// Wait polls the page until the challenge is gone or the budget is
// spent. A candidate resolution needs the detector clear AND the URL
// outside the challenge flow, then a confirmation pass after a short
// settle so a mid-redirect page is not mistaken for a solved one.
func (c *Controller) Wait(ctx context.Context) status.Challenge {
	log := logger.With("captcha")
	deadline := time.Now().Add(c.waitTimeout)

	for time.Now().Before(deadline) {
		if !sleepCtx(ctx, c.pollInterval) {
			break
		}

		if c.pager.HasChallenge(ctx) {
			continue
		}

		url, err := c.pager.URL(ctx)
		if err != nil || !detector.ResolvedURL(url) {
			continue
		}

		// confirmation pass: let the post-solve redirect settle
		if !sleepCtx(ctx, c.confirmDelay) {
			break
		}
		title, _ := c.pager.Title(ctx)
		if c.pager.HasChallenge(ctx) {
			continue
		}

		log.Info().Str("url", url).Str("title", title).Msg("captcha resolved by human")
		c.transition(status.ChallengeResolved)
		return c.state
	}

	log.Warn().Dur("waited", c.waitTimeout).Msg("captcha wait budget exhausted")
	c.transition(status.ChallengeTimedOut)
	return c.state
}

// ResetCycle rearms the controller for the next detection.
func (c *Controller) ResetCycle() {
	c.transition(status.ChallengeClear)
}

func (c *Controller) transition(to status.Challenge) {
	if !status.CanChallengeTransition(c.state, to) {
		logger.Log.Debug().
			Str("from", string(c.state)).
			Str("to", string(to)).
			Msg("forcing challenge state transition")
	}
	c.state = to
}

// sleepCtx sleeps for d, returning false if the context ended first
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
