package detector

import (
	"strings"
	"testing"
)

func TestDetectReCAPTCHA(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected ChallengeType
	}{
		{
			name:     "api script",
			html:     `<script src="https://www.google.com/recaptcha/api.js"></script>`,
			expected: ChallengeReCAPTCHA,
		},
		{
			name:     "widget class",
			html:     `<div class="g-recaptcha" data-sitekey="abc"></div>`,
			expected: ChallengeReCAPTCHA,
		},
		{
			name:     "iframe embed",
			html:     `<iframe src="https://www.google.com/recaptcha/enterprise/anchor?ar=1"></iframe>`,
			expected: ChallengeReCAPTCHA,
		},
		{
			name:     "bare sitekey attribute is not recaptcha",
			html:     `<div data-sitekey="10000000-ffff"></div>`,
			expected: ChallengeNone,
		},
		{
			name:     "plain page",
			html:     `<html><body><h1>Welcome</h1></body></html>`,
			expected: ChallengeNone,
		},
	}

	d := NewChallengeDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.Detect(tt.html, "")
			if result.Type != tt.expected {
				t.Errorf("Detect() type = %s, want %s", result.Type, tt.expected)
			}
		})
	}
}

func TestDetectHCaptchaAndTurnstile(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected ChallengeType
	}{
		{
			name:     "hcaptcha class",
			html:     `<div class="h-captcha" data-sitekey="10000000-ffff"></div>`,
			expected: ChallengeHCaptcha,
		},
		{
			name:     "hcaptcha script",
			html:     `<script src="https://js.hcaptcha.com/1/api.js" async defer></script>`,
			expected: ChallengeHCaptcha,
		},
		{
			name:     "turnstile class",
			html:     `<div class="cf-turnstile" data-sitekey="0x4AAA"></div>`,
			expected: ChallengeTurnstile,
		},
		{
			name:     "turnstile script",
			html:     `<script src="https://challenges.cloudflare.com/turnstile/v0/api.js"></script>`,
			expected: ChallengeTurnstile,
		},
	}

	d := NewChallengeDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.Detect(tt.html, "")
			if result.Type != tt.expected {
				t.Errorf("Detect() type = %s, want %s", result.Type, tt.expected)
			}
		})
	}
}

func TestDetectPhrases(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		detected bool
	}{
		{
			name:     "unusual traffic",
			text:     "Our systems have detected unusual traffic from your computer network.",
			detected: true,
		},
		{
			name:     "verify human",
			text:     "Please verify you are human before continuing.",
			detected: true,
		},
		{
			name:     "just a moment",
			text:     "Just a moment...",
			detected: true,
		},
		{
			name:     "normal article",
			text:     "The quick brown fox jumps over the lazy dog.",
			detected: false,
		},
	}

	d := NewChallengeDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.Detect("<html></html>", tt.text)
			if result.Detected() != tt.detected {
				t.Errorf("Detect() detected = %v, want %v", result.Detected(), tt.detected)
			}
		})
	}
}

func TestDetectGenericRequiresStructure(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		detected bool
	}{
		{
			name:     "keyword with class attr",
			html:     `<div class="captcha-box"><input name="code"></div>`,
			detected: true,
		},
		{
			name:     "keyword with image asset",
			html:     `<img src="/images/captcha.png"><input type="text">`,
			detected: true,
		},
		{
			name: "keyword only in prose is ignored",
			html: `<article><p>This post explains how captcha systems evolved
				over the years and why they annoy everyone.</p></article>`,
			detected: false,
		},
	}

	d := NewChallengeDetector()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.Detect(tt.html, "")
			if result.Detected() != tt.detected {
				t.Errorf("Detect() detected = %v, want %v (markers: %v)", result.Detected(), tt.detected, result.Markers)
			}
		})
	}
}

func TestConfidenceBonus(t *testing.T) {
	d := NewChallengeDetector()

	single := d.Detect(`<script src="https://www.google.com/recaptcha/api.js"></script>`, "")
	multi := d.Detect(`<script src="https://www.google.com/recaptcha/api.js"></script>
		<div class="g-recaptcha" data-sitekey="abc"></div>`, "")

	if multi.Confidence <= single.Confidence {
		t.Errorf("multi-marker confidence %f should exceed single %f", multi.Confidence, single.Confidence)
	}
	if multi.Confidence > 1.0 {
		t.Errorf("confidence capped at 1.0, got %f", multi.Confidence)
	}
}

func TestResolvedURL(t *testing.T) {
	tests := []struct {
		url      string
		resolved bool
	}{
		{"https://www.google.com/sorry/index?continue=x", false},
		{"https://example.com/captcha", false},
		{"https://site.com/challenge?id=1", false},
		{"https://site.com/account/verify", false},
		{"https://duckduckgo.com/?q=golang", true},
		{"https://en.wikipedia.org/wiki/Go_(programming_language)", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := ResolvedURL(tt.url); got != tt.resolved {
				t.Errorf("ResolvedURL(%s) = %v, want %v", tt.url, got, tt.resolved)
			}
		})
	}
}

func TestSelectorProbeJS(t *testing.T) {
	js := SelectorProbeJS()

	for _, sel := range []string{"g-recaptcha", "h-captcha", "cf-turnstile"} {
		if !strings.Contains(js, sel) {
			t.Errorf("probe JS missing selector %q", sel)
		}
	}
	if !strings.Contains(js, "getBoundingClientRect") {
		t.Error("probe JS must check element visibility")
	}
}
