package detector

import (
	"encoding/json"
	"strings"
)

// ChallengeDetector decides whether a page snapshot is a CAPTCHA or
// anti-bot interstitial. It works on snapshots (HTML + visible text)
// so it stays pure; the live visibility probe is compiled to a JS
// expression via SelectorProbeJS and evaluated by the browser layer.
// Detection never fails: anything it cannot parse reads as no challenge.
type ChallengeDetector struct{}

func NewChallengeDetector() *ChallengeDetector {
	return &ChallengeDetector{}
}

// Detect runs the ordered probes over an HTML snapshot and the page's
// visible text. Probe order mirrors specificity: known widgets first,
// then challenge phrases, then generic keyword+structure co-occurrence.
func (d *ChallengeDetector) Detect(html, text string) Result {
	if r := d.detectReCAPTCHA(html); r.Detected() {
		return r
	}

	if r := d.detectHCaptcha(html); r.Detected() {
		return r
	}

	if r := d.detectTurnstile(html); r.Detected() {
		return r
	}

	if r := d.detectCloudflare(html); r.Detected() {
		return r
	}

	if r := d.detectPhrases(text); r.Detected() {
		return r
	}

	if r := d.detectGeneric(html); r.Detected() {
		return r
	}

	return Result{Type: ChallengeNone}
}

func (d *ChallengeDetector) detectReCAPTCHA(html string) Result {
	result := Result{Type: ChallengeNone}
	var markers []Marker

	if recaptchaScriptPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "script", Name: "recaptcha_api", Confidence: 0.95})
	}

	if recaptchaClassPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "g_recaptcha_class", Confidence: 0.95})
	}

	if recaptchaFramePattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "recaptcha_iframe", Confidence: 0.95})
	}

	// data-sitekey is shared by hCaptcha and Turnstile widgets too, so
	// it only corroborates a reCAPTCHA-specific marker, never stands alone
	if len(markers) > 0 && recaptchaSitekeyPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "recaptcha_sitekey", Confidence: 0.9})
	}

	if len(markers) > 0 {
		result.Type = ChallengeReCAPTCHA
		result.Markers = markers
		result.Confidence = d.calculateConfidence(markers)
	}

	return result
}

func (d *ChallengeDetector) detectHCaptcha(html string) Result {
	result := Result{Type: ChallengeNone}
	var markers []Marker

	if hcaptchaScriptPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "script", Name: "hcaptcha_api", Confidence: 0.95})
	}

	if hcaptchaClassPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "h_captcha_class", Confidence: 0.95})
	}

	if hcaptchaFramePattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "hcaptcha_iframe", Confidence: 0.95})
	}

	if len(markers) > 0 {
		result.Type = ChallengeHCaptcha
		result.Markers = markers
		result.Confidence = d.calculateConfidence(markers)
	}

	return result
}

func (d *ChallengeDetector) detectTurnstile(html string) Result {
	result := Result{Type: ChallengeNone}
	var markers []Marker

	if turnstileScriptPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "script", Name: "turnstile_api", Confidence: 0.95})
	}

	if turnstileClassPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "cf_turnstile_class", Confidence: 0.95})
	}

	if len(markers) > 0 {
		result.Type = ChallengeTurnstile
		result.Markers = markers
		result.Confidence = d.calculateConfidence(markers)
	}

	return result
}

func (d *ChallengeDetector) detectCloudflare(html string) Result {
	result := Result{Type: ChallengeNone}
	var markers []Marker

	if cfVerificationPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "cf_verification", Confidence: 0.9})
	}

	if cfChallengePattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "cf_challenge_text", Confidence: 0.85})
	}

	if len(markers) > 0 {
		result.Type = ChallengeCloudflare
		result.Markers = markers
		result.Confidence = d.calculateConfidence(markers)
	}

	return result
}

func (d *ChallengeDetector) detectPhrases(text string) Result {
	result := Result{Type: ChallengeNone}
	var markers []Marker

	lower := strings.ToLower(text)
	for _, phrase := range challengePhrases {
		if strings.Contains(lower, phrase) {
			markers = append(markers, Marker{Type: "text", Name: "challenge_phrase", Value: phrase, Confidence: 0.8})
		}
	}

	if len(markers) > 0 {
		result.Type = ChallengeGeneric
		result.Markers = markers
		result.Confidence = d.calculateConfidence(markers)
	}

	return result
}

// detectGeneric requires a captcha keyword to co-occur with structural
// markup; a blog post about captchas must not read as a challenge.
func (d *ChallengeDetector) detectGeneric(html string) Result {
	result := Result{Type: ChallengeNone}

	lower := strings.ToLower(html)
	keyword := false
	for _, k := range captchaKeywords {
		if strings.Contains(lower, k) {
			keyword = true
			break
		}
	}
	if !keyword {
		return result
	}

	var markers []Marker
	if captchaClassPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "captcha_class", Confidence: 0.65})
	}
	if captchaIDPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "captcha_id", Confidence: 0.65})
	}
	if captchaDataPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "captcha_data_attr", Confidence: 0.6})
	}
	if captchaSrcPattern.MatchString(html) {
		markers = append(markers, Marker{Type: "html", Name: "captcha_asset", Confidence: 0.6})
	}

	if len(markers) > 0 {
		result.Type = ChallengeGeneric
		result.Markers = markers
		result.Confidence = d.calculateConfidence(markers)
	}

	return result
}

func (d *ChallengeDetector) calculateConfidence(markers []Marker) float64 {
	if len(markers) == 0 {
		return 0
	}

	maxConf := 0.0
	for _, m := range markers {
		if m.Confidence > maxConf {
			maxConf = m.Confidence
		}
	}

	bonus := float64(len(markers)-1) * 0.02
	if bonus > 0.1 {
		bonus = 0.1
	}

	total := maxConf + bonus
	if total > 1.0 {
		total = 1.0
	}

	return total
}

// SelectorProbeJS returns a JS expression that reports whether any known
// challenge widget is present AND visible in the live page. Evaluated by
// the browser layer; a JS error there reads as "not detected".
func SelectorProbeJS() string {
	sels, _ := json.Marshal(widgetSelectors)
	return `(() => {
	const sels = ` + string(sels) + `;
	for (const s of sels) {
		let els;
		try { els = document.querySelectorAll(s); } catch (e) { continue; }
		for (const el of els) {
			const st = window.getComputedStyle(el);
			const r = el.getBoundingClientRect();
			if (st.display !== 'none' && st.visibility !== 'hidden' && r.width > 0 && r.height > 0) {
				return true;
			}
		}
	}
	return false;
})()`
}

// ResolvedURL reports whether the URL has left the challenge flow:
// no /sorry/ page, no captcha/challenge/verify fragments.
func ResolvedURL(url string) bool {
	lower := strings.ToLower(url)
	for _, frag := range challengeURLFragments {
		if strings.Contains(lower, frag) {
			return false
		}
	}
	return true
}
