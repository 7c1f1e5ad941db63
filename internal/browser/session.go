// Package browser owns the Chrome process for one task and the active
// page handle everything else operates on. The session launches lazily
// on first use and can outlive the task when a challenge needs a human:
// closing the window would throw away the page the human is solving.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	cdpopts "github.com/webpilot/backend/pkg/chromedp"
	"github.com/webpilot/backend/pkg/detector"
	"github.com/webpilot/backend/pkg/logger"
)

const defaultNavTimeout = 30 * time.Second

type Config struct {
	Headless   bool
	NavTimeout time.Duration
	NavRate    float64 // navigations per second
	NavBurst   int
}

// Session is one browser lifetime: an allocator, a browser process and
// a stack of tabs with the top one active. Fallback probes push a tab,
// run, and pop back to the page they came from.
type Session struct {
	mu sync.Mutex

	cfg Config

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	pageCtx    context.Context
	pageCancel context.CancelFunc
	tabStack   []tabHandle

	limiter *rate.Limiter
	det     *detector.ChallengeDetector

	started          bool
	challengePending bool
}

type tabHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

func NewSession(cfg Config) *Session {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = defaultNavTimeout
	}
	if cfg.NavRate <= 0 {
		cfg.NavRate = 1
	}
	if cfg.NavBurst <= 0 {
		cfg.NavBurst = 3
	}

	return &Session{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.NavRate), cfg.NavBurst),
		det:     detector.NewChallengeDetector(),
	}
}

// Launch starts Chrome if it is not already running. Idempotent.
func (s *Session) Launch(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	opts := cdpopts.GetExecAllocatorOptions(s.cfg.Headless)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx, stealthAction()); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.pageCtx = browserCtx
	s.pageCancel = nil // first tab belongs to the browser context
	s.started = true

	logger.Log.Info().Bool("headless", s.cfg.Headless).Msg("browser session launched")
	return nil
}

// stealthAction injects the anti-detection script into every new document
func stealthAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(cdpopts.GetStealthScripts()).Do(ctx)
		return err
	})
}

// Started reports whether Chrome is running
func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// SetChallengePending flags the session as holding a page a human may
// still be solving. Close without force keeps such a session alive.
func (s *Session) SetChallengePending(pending bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challengePending = pending
}

func (s *Session) ChallengePending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.challengePending
}

// Close shuts the browser down. Without force it refuses while a
// challenge is pending so the human keeps their window.
func (s *Session) Close(force bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	if !force && s.challengePending {
		logger.Log.Info().Msg("challenge pending, keeping browser open")
		return
	}

	for i := len(s.tabStack) - 1; i >= 0; i-- {
		if s.tabStack[i].cancel != nil {
			s.tabStack[i].cancel()
		}
	}
	s.tabStack = nil

	if s.pageCancel != nil {
		s.pageCancel()
	}
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}

	s.started = false
	s.challengePending = false
	logger.Log.Info().Msg("browser session closed")
}

// NewTab opens a fresh tab and makes it the active page. The previous
// page is pushed and stays loaded.
func (s *Session) NewTab(ctx context.Context) error {
	if err := s.Launch(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	if err := chromedp.Run(tabCtx, stealthAction()); err != nil {
		tabCancel()
		return fmt.Errorf("open tab: %w", err)
	}

	s.tabStack = append(s.tabStack, tabHandle{ctx: s.pageCtx, cancel: s.pageCancel})
	s.pageCtx = tabCtx
	s.pageCancel = tabCancel

	logger.Log.Debug().Int("depth", len(s.tabStack)).Msg("tab opened")
	return nil
}

// CloseTab closes the active tab and restores the previous page. Safe
// to call even when no extra tab is open.
func (s *Session) CloseTab() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tabStack) == 0 {
		return
	}

	if s.pageCancel != nil {
		s.pageCancel()
	}

	top := s.tabStack[len(s.tabStack)-1]
	s.tabStack = s.tabStack[:len(s.tabStack)-1]
	s.pageCtx = top.ctx
	s.pageCancel = top.cancel

	logger.Log.Debug().Int("depth", len(s.tabStack)).Msg("tab closed, previous page restored")
}

// page returns the active tab context for running actions
func (s *Session) page() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pageCtx
}

// run executes actions against the active tab under the nav timeout,
// honouring the caller's context.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	pageCtx := s.page()
	if pageCtx == nil {
		return fmt.Errorf("browser not launched")
	}

	tctx, cancel := context.WithTimeout(pageCtx, s.cfg.NavTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(tctx, actions...) }()

	select {
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case err := <-done:
		return err
	}
}
