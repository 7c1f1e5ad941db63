// Package fallback picks alternative routes once a page is blocked by
// an unsolved challenge. Strategies come from the oracle when available
// and from a deterministic ladder otherwise; either way every strategy
// is validated before the orchestrator gets to run it.
package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/webpilot/backend/pkg/logger"
)

type Kind string

const (
	KindSearchEngine Kind = "search_engine"
	KindSiteSearch   Kind = "site_search"
	KindCache        Kind = "cache"
)

const defaultEngine = "duckduckgo"

// Strategy is one alternative route to the blocked content
type Strategy struct {
	Kind   Kind   `json:"type"`
	Engine string `json:"engine,omitempty"`
	Site   string `json:"site,omitempty"`
	Query  string `json:"query"`
	Reason string `json:"reason,omitempty"`
}

type Oracle interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema) (string, error)
}

// news and tech outlets recognised in queries for site-scoped retries
var (
	newsSites = map[string]string{
		"bbc":        "bbc.com",
		"techcrunch": "techcrunch.com",
		"theverge":   "theverge.com",
		"reuters":    "reuters.com",
		"cnn":        "cnn.com",
	}

	techSites = map[string]string{
		"medium":        "medium.com",
		"dev.to":        "dev.to",
		"stackoverflow": "stackoverflow.com",
		"github":        "github.com",
	}
)

const chooseSystemPrompt = `A browser task hit a CAPTCHA wall that was not solved in time.
Propose up to three alternative strategies to reach equivalent content, in order of preference.
Strategy types:
- search_engine: retry the query on a search engine (set "engine")
- site_search: search within one specific site (set "site" to its domain)
- cache: consult a cached copy of the blocked page
Set "query" to the search terms for each strategy.`

var chooseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"strategies": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"type":   {Type: genai.TypeString, Enum: []string{"search_engine", "site_search", "cache"}},
					"engine": {Type: genai.TypeString},
					"site":   {Type: genai.TypeString},
					"query":  {Type: genai.TypeString},
					"reason": {Type: genai.TypeString},
				},
				Required: []string{"type"},
			},
		},
	},
	Required: []string{"strategies"},
}

type Chooser struct {
	oracle Oracle
}

func New(oracle Oracle) *Chooser {
	return &Chooser{oracle: oracle}
}

// Choose returns the ordered strategy ladder for a blocked URL. The
// list is never empty: the deterministic ladder backs every failure of
// the oracle path.
func (c *Chooser) Choose(ctx context.Context, originalQuery, blockedURL string) []Strategy {
	if c.oracle != nil {
		strategies, err := c.chooseWithOracle(ctx, originalQuery, blockedURL)
		if err == nil && len(strategies) > 0 {
			return strategies
		}
		if err != nil {
			logger.Log.Warn().Err(err).Msg("oracle fallback selection failed, using deterministic ladder")
		}
	}

	return c.Deterministic(originalQuery)
}

func (c *Chooser) chooseWithOracle(ctx context.Context, originalQuery, blockedURL string) ([]Strategy, error) {
	prompt := fmt.Sprintf("Task: %s\nBlocked URL: %s", originalQuery, blockedURL)

	raw, err := c.oracle.GenerateJSON(ctx, chooseSystemPrompt, prompt, chooseSchema)
	if err != nil {
		return nil, err
	}

	var decoded struct {
		Strategies []Strategy `json:"strategies"`
	}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("decode strategies: %w", err)
	}

	return Validate(decoded.Strategies, originalQuery), nil
}

// Validate coerces oracle output into executable strategies:
// unknown kinds are dropped, engines collapse to the default engine,
// site_search without a site is dropped, empty queries fall back to the
// original query.
func Validate(strategies []Strategy, originalQuery string) []Strategy {
	var valid []Strategy
	for _, s := range strategies {
		switch s.Kind {
		case KindSearchEngine:
			s.Engine = defaultEngine
		case KindSiteSearch:
			s.Site = strings.TrimSpace(strings.ToLower(s.Site))
			if s.Site == "" {
				continue
			}
		case KindCache:
			// executes as a default-engine retry downstream
		default:
			continue
		}

		if strings.TrimSpace(s.Query) == "" {
			s.Query = originalQuery
		}

		valid = append(valid, s)
	}
	return valid
}

// Deterministic builds the no-oracle ladder: a default-engine retry
// first, then site-scoped searches for outlets the query actually
// mentions.
func (c *Chooser) Deterministic(originalQuery string) []Strategy {
	strategies := []Strategy{
		{
			Kind:   KindSearchEngine,
			Engine: defaultEngine,
			Query:  originalQuery,
			Reason: "retry on default engine",
		},
	}

	lower := strings.ToLower(originalQuery)
	for mention, domain := range newsSites {
		if strings.Contains(lower, mention) {
			strategies = append(strategies, Strategy{
				Kind:   KindSiteSearch,
				Site:   domain,
				Query:  originalQuery,
				Reason: "news site mentioned in task",
			})
		}
	}
	for mention, domain := range techSites {
		if strings.Contains(lower, mention) {
			strategies = append(strategies, Strategy{
				Kind:   KindSiteSearch,
				Site:   domain,
				Query:  originalQuery,
				Reason: "tech site mentioned in task",
			})
		}
	}

	return strategies
}
