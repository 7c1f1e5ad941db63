package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/webpilot/backend/pkg/detector"
	"github.com/webpilot/backend/pkg/logger"
)

const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/140.0.0.0 Safari/537.36"

const (
	findAttempts     = 4
	findInitialDelay = 250 * time.Millisecond
)

// ErrNotFound is returned when none of the probed selectors matches a
// visible element.
var ErrNotFound = errors.New("no visible element matched")

// identityAction sets a consistent browser identity on the active tab
func identityAction() chromedp.Action {
	return chromedp.Tasks{
		chromedp.ActionFunc(func(ctx context.Context) error {
			return emulation.SetUserAgentOverride(userAgent).
				WithAcceptLanguage("en-US,en;q=0.9").
				WithPlatform("macOS").
				Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return network.SetExtraHTTPHeaders(network.Headers{
				"Accept-Language":           "en-US,en;q=0.9",
				"Upgrade-Insecure-Requests": "1",
			}).Do(ctx)
		}),
	}
}

// Navigate loads a URL in the active tab and returns the final URL
// after redirects. A load timeout is not fatal: slow pages get read in
// whatever state they reached.
func (s *Session) Navigate(ctx context.Context, url string) (string, error) {
	if err := s.Launch(ctx); err != nil {
		return "", err
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("navigation rate limit: %w", err)
	}

	start := time.Now()
	err := s.run(ctx,
		identityAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	if err != nil {
		logger.Log.Warn().Str("url", url).Dur("elapsed", time.Since(start)).Msg("page load timed out, reading partial state")
	}

	finalURL, uerr := s.URL(ctx)
	if uerr != nil {
		return "", fmt.Errorf("navigate %s: %w", url, uerr)
	}

	logger.Log.Debug().Str("url", url).Str("final_url", finalURL).Dur("elapsed", time.Since(start)).Msg("navigated")
	return finalURL, nil
}

// WaitLoaded waits for the document body; timeouts are swallowed so
// callers can continue with a partially loaded page.
func (s *Session) WaitLoaded(ctx context.Context) {
	if err := s.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		logger.Log.Debug().Err(err).Msg("load wait ended early")
	}
}

func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

func (s *Session) URL(ctx context.Context) (string, error) {
	var url string
	if err := s.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return url, nil
}

// HTML snapshots the full document markup
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read html: %w", err)
	}
	return html, nil
}

// Text snapshots the page's visible text
func (s *Session) Text(ctx context.Context) (string, error) {
	var text string
	if err := s.run(ctx, chromedp.Text("body", &text, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read text: %w", err)
	}
	return text, nil
}

// Eval evaluates a JS expression in the page and decodes the result
func (s *Session) Eval(ctx context.Context, js string, out any) error {
	if err := s.run(ctx, chromedp.Evaluate(js, out)); err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	return nil
}

// Find probes the selectors in order and returns the first one matching
// a visible element, polling with backoff to ride out late rendering.
func (s *Session) Find(ctx context.Context, selectors ...string) (string, error) {
	delay := findInitialDelay

	for attempt := 0; attempt < findAttempts; attempt++ {
		for _, sel := range selectors {
			var visible bool
			if err := s.Eval(ctx, visibleProbeJS(sel), &visible); err != nil {
				continue
			}
			if visible {
				return sel, nil
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}

	return "", ErrNotFound
}

func visibleProbeJS(selector string) string {
	return fmt.Sprintf(`(() => {
	let el;
	try { el = document.querySelector(%q); } catch (e) { return false; }
	if (!el) return false;
	const st = window.getComputedStyle(el);
	const r = el.getBoundingClientRect();
	return st.display !== 'none' && st.visibility !== 'hidden' && r.width > 0 && r.height > 0;
})()`, selector)
}

// Fill clears the element and types the value into it
func (s *Session) Fill(ctx context.Context, selector, value string) error {
	err := s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

// PressEnter submits via keyboard on the given element
func (s *Session) PressEnter(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("press enter on %s: %w", selector, err)
	}
	return nil
}

// HasChallenge runs the live widget probe plus the content scan.
// It never returns an error: anything that fails reads as no challenge.
func (s *Session) HasChallenge(ctx context.Context) bool {
	var widgetVisible bool
	if err := s.Eval(ctx, detector.SelectorProbeJS(), &widgetVisible); err == nil && widgetVisible {
		return true
	}

	html, err := s.HTML(ctx)
	if err != nil {
		return false
	}
	text, err := s.Text(ctx)
	if err != nil {
		text = ""
	}

	return s.det.Detect(html, text).Detected()
}
