package detector

import "regexp"

// Widget markup
var (
	recaptchaScriptPattern  = regexp.MustCompile(`(?i)google\.com/recaptcha/api`)
	recaptchaClassPattern   = regexp.MustCompile(`class\s*=\s*["'][^"']*g-recaptcha`)
	recaptchaSitekeyPattern = regexp.MustCompile(`data-sitekey\s*=`)
	recaptchaFramePattern   = regexp.MustCompile(`(?i)<iframe[^>]+src\s*=\s*["'][^"']*recaptcha`)
	hcaptchaScriptPattern   = regexp.MustCompile(`(?i)hcaptcha\.com/1/api`)
	hcaptchaClassPattern    = regexp.MustCompile(`class\s*=\s*["'][^"']*h-captcha`)
	hcaptchaFramePattern    = regexp.MustCompile(`(?i)<iframe[^>]+src\s*=\s*["'][^"']*hcaptcha`)
	turnstileClassPattern   = regexp.MustCompile(`class\s*=\s*["'][^"']*cf-turnstile`)
	turnstileScriptPattern  = regexp.MustCompile(`(?i)challenges\.cloudflare\.com/turnstile`)
	cfVerificationPattern   = regexp.MustCompile(`(?i)cf-browser-verification|cf-challenge`)
	cfChallengePattern      = regexp.MustCompile(`(?i)checking\s+your\s+browser|just\s+a\s+moment`)
)

// Challenge phrases scanned over visible page text
var challengePhrases = []string{
	"verify you are human",
	"verify that you are human",
	"i'm not a robot",
	"i am not a robot",
	"prove you are human",
	"are you a robot",
	"unusual traffic",
	"complete the security check",
	"complete the captcha",
	"checking your browser",
	"just a moment",
	"enable javascript and cookies",
}

// Generic captcha: a keyword alone is not enough, it must co-occur with
// structural markup (class/id/data attribute or an asset path)
var (
	captchaKeywords = []string{"captcha", "recaptcha", "hcaptcha"}

	captchaClassPattern = regexp.MustCompile(`(?i)class\s*=\s*["'][^"']*captcha`)
	captchaIDPattern    = regexp.MustCompile(`(?i)id\s*=\s*["'][^"']*captcha`)
	captchaDataPattern  = regexp.MustCompile(`(?i)data-[a-z-]*captcha`)
	captchaSrcPattern   = regexp.MustCompile(`(?i)src\s*=\s*["'][^"']*captcha`)
)

// URL fragments that mean the page is still inside a challenge flow
var challengeURLFragments = []string{"/sorry/", "captcha", "challenge", "verify"}

// Selectors probed live in the page, visible elements only
var widgetSelectors = []string{
	`iframe[src*="recaptcha"]`,
	`.g-recaptcha`,
	`#recaptcha`,
	`iframe[src*="hcaptcha"]`,
	`.h-captcha`,
	`.cf-turnstile`,
	`iframe[src*="turnstile"]`,
	`[class*="captcha"]`,
	`[id*="captcha"]`,
	`img[src*="captcha"]`,
}
