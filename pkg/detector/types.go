package detector

type ChallengeType string

const (
	ChallengeNone       ChallengeType = "none"
	ChallengeReCAPTCHA  ChallengeType = "recaptcha"
	ChallengeHCaptcha   ChallengeType = "hcaptcha"
	ChallengeTurnstile  ChallengeType = "turnstile"
	ChallengeCloudflare ChallengeType = "cloudflare"
	ChallengeGeneric    ChallengeType = "generic"
)

type Marker struct {
	Type       string  `json:"type"` // widget | text | html
	Name       string  `json:"name"`
	Value      string  `json:"value,omitempty"`
	Confidence float64 `json:"confidence"`
}

type Result struct {
	Type       ChallengeType `json:"type"`
	Confidence float64       `json:"confidence"`
	Markers    []Marker      `json:"markers,omitempty"`
}

func (r Result) Detected() bool {
	return r.Type != ChallengeNone
}
