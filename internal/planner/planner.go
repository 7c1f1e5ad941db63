// Package planner maps a natural-language task to a typed browser
// action. A Gemini-backed path produces the plan when an API key is
// configured; a deterministic heuristic path always stands behind it,
// so planning never fails outright.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/webpilot/backend/pkg/logger"
)

type ActionType string

const (
	ActionOpenURL       ActionType = "OPEN_URL"
	ActionSearchDefault ActionType = "SEARCH_DUCKDUCKGO"
	ActionReadPage      ActionType = "READ_PAGE"
	ActionFixIssue      ActionType = "FIX_ISSUE"
)

// Action is the planned first move for a task
type Action struct {
	Type   ActionType `json:"action"`
	URL    string     `json:"url,omitempty"`
	Query  string     `json:"query,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

// Oracle is the reasoning backend; nil means heuristics only
type Oracle interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error)
}

// common misspellings seen in user queries, applied token-wise
var typoCorrections = map[string]string{
	"wikipida":  "wikipedia",
	"wikpedia":  "wikipedia",
	"wikipedai": "wikipedia",
	"linkdin":   "linkedin",
	"linkedn":   "linkedin",
	"goole":     "google",
	"gogle":     "google",
	"youtub":    "youtube",
	"facebok":   "facebook",
	"vist":      "visit",
	"serach":    "search",
	"sarch":     "search",
}

// knownDomains maps site mentions to landing URLs. Typo keys are kept
// so correction and resolution stay consistent even if one side changes.
var knownDomains = map[string]string{
	"wikipedia":     "https://www.wikipedia.org",
	"wikipida":      "https://www.wikipedia.org",
	"linkedin":      "https://www.linkedin.com",
	"linkdin":       "https://www.linkedin.com",
	"github":        "https://www.github.com",
	"google":        "https://www.google.com",
	"youtube":       "https://www.youtube.com",
	"twitter":       "https://www.twitter.com",
	"facebook":      "https://www.facebook.com",
	"instagram":     "https://www.instagram.com",
	"reddit":        "https://www.reddit.com",
	"stackoverflow": "https://stackoverflow.com",
	"medium":        "https://medium.com",
	"bbc":           "https://www.bbc.com",
	"cnn":           "https://www.cnn.com",
	"reuters":       "https://www.reuters.com",
	"techcrunch":    "https://techcrunch.com",
	"theverge":      "https://www.theverge.com",
	"amazon":        "https://www.amazon.com",
	"duckduckgo":    "https://duckduckgo.com",
}

var urlRegex = regexp.MustCompile(`https?://[^\s]+|www\.[^\s]+|[a-zA-Z0-9-]+\.[a-zA-Z]{2,}`)

const planSystemPrompt = `You plan browser actions for a web research agent.
Given a user task, answer with exactly one action:
- OPEN_URL: the task names a site or URL to visit (set "url")
- SEARCH_DUCKDUCKGO: the task needs a web search (set "query")
- READ_PAGE: the task asks to read or summarise the current page
- FIX_ISSUE: the task reports a problem to diagnose
Keep "query" close to the user's wording. Never invent URLs.`

var planSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"action": {
			Type: genai.TypeString,
			Enum: []string{"OPEN_URL", "SEARCH_DUCKDUCKGO", "SEARCH_GOOGLE", "READ_PAGE", "FIX_ISSUE"},
		},
		"url":    {Type: genai.TypeString},
		"query":  {Type: genai.TypeString},
		"reason": {Type: genai.TypeString},
	},
	Required: []string{"action"},
}

type Planner struct {
	oracle Oracle
}

func New(oracle Oracle) *Planner {
	return &Planner{oracle: oracle}
}

// Plan maps a query to an action. The oracle plans when available;
// any oracle failure falls back to the heuristic path.
func (p *Planner) Plan(ctx context.Context, query string) Action {
	if p.oracle != nil {
		action, err := p.planWithOracle(ctx, query)
		if err == nil {
			return action
		}
		logger.Log.Warn().Err(err).Msg("oracle planning failed, using heuristics")
	}

	return p.Heuristic(query)
}

func (p *Planner) planWithOracle(ctx context.Context, query string) (Action, error) {
	raw, err := p.oracle.GenerateJSON(ctx, planSystemPrompt, query, planSchema)
	if err != nil {
		return Action{}, err
	}

	var action Action
	if err := json.Unmarshal([]byte(raw), &action); err != nil {
		return Action{}, fmt.Errorf("decode plan: %w", err)
	}

	return p.coerce(action, query), nil
}

// coerce folds the raw model answer into the supported action set
func (p *Planner) coerce(action Action, originalQuery string) Action {
	switch action.Type {
	case ActionOpenURL:
		if !validURL(action.URL) {
			return Action{Type: ActionSearchDefault, Query: originalQuery, Reason: "invalid url from plan"}
		}
	case ActionSearchDefault, ActionReadPage, ActionFixIssue:
		// supported as-is
	case "SEARCH_GOOGLE":
		action.Type = ActionSearchDefault
	default:
		action.Type = ActionSearchDefault
	}

	if action.Type == ActionSearchDefault && strings.TrimSpace(action.Query) == "" {
		action.Query = originalQuery
	}

	return action
}

// Heuristic is the deterministic planning path: typo correction, a scan
// for known site tokens, then a bare URL scan, then search. A known site
// named anywhere in the query counts as navigation intent, with or
// without "visit"/"go to" phrasing around it.
func (p *Planner) Heuristic(query string) Action {
	corrected := CorrectTypos(query)
	lower := strings.ToLower(corrected)

	if target, ok := mentionedDomain(lower); ok {
		return Action{Type: ActionOpenURL, URL: target, Reason: "known site mention"}
	}

	if match := urlRegex.FindString(corrected); match != "" {
		return Action{Type: ActionOpenURL, URL: ensureScheme(match), Reason: "url in query"}
	}

	return Action{Type: ActionSearchDefault, Query: corrected, Reason: "default search"}
}

// CorrectTypos fixes common misspellings token by token, preserving the
// rest of the query untouched.
func CorrectTypos(query string) string {
	fields := strings.Fields(query)
	for i, f := range fields {
		if fixed, ok := typoCorrections[strings.ToLower(f)]; ok {
			fields[i] = fixed
		}
	}
	return strings.Join(fields, " ")
}

func mentionedDomain(lowerQuery string) (string, bool) {
	for _, token := range strings.Fields(lowerQuery) {
		token = strings.Trim(token, ".,!?;:'\"")
		if target, ok := knownDomains[token]; ok {
			return target, true
		}
	}
	return "", false
}

func ensureScheme(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}

func validURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
