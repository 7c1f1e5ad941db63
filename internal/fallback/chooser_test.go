package fallback

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/genai"
)

type fakeOracle struct {
	response string
	err      error
}

func (f *fakeOracle) GenerateJSON(_ context.Context, _, _ string, _ *genai.Schema) (string, error) {
	return f.response, f.err
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		in       []Strategy
		expected int
		check    func(t *testing.T, out []Strategy)
	}{
		{
			name: "engine always coerced to default",
			in:   []Strategy{{Kind: KindSearchEngine, Engine: "google", Query: "q"}},
			expected: 1,
			check: func(t *testing.T, out []Strategy) {
				if out[0].Engine != "duckduckgo" {
					t.Errorf("engine = %s, want duckduckgo", out[0].Engine)
				}
			},
		},
		{
			name:     "site search without site dropped",
			in:       []Strategy{{Kind: KindSiteSearch, Query: "q"}},
			expected: 0,
		},
		{
			name:     "unknown kind dropped",
			in:       []Strategy{{Kind: "telepathy", Query: "q"}},
			expected: 0,
		},
		{
			name: "empty query replaced with original",
			in:   []Strategy{{Kind: KindCache, Query: "  "}},
			expected: 1,
			check: func(t *testing.T, out []Strategy) {
				if out[0].Query != "original query" {
					t.Errorf("query = %q, want original", out[0].Query)
				}
			},
		},
		{
			name: "site normalised to lowercase",
			in:   []Strategy{{Kind: KindSiteSearch, Site: " GitHub.COM ", Query: "q"}},
			expected: 1,
			check: func(t *testing.T, out []Strategy) {
				if out[0].Site != "github.com" {
					t.Errorf("site = %q", out[0].Site)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := Validate(tt.in, "original query")
			if len(out) != tt.expected {
				t.Fatalf("len = %d, want %d (%+v)", len(out), tt.expected, out)
			}
			if tt.check != nil && len(out) > 0 {
				tt.check(t, out)
			}
		})
	}
}

func TestDeterministicLadder(t *testing.T) {
	c := New(nil)

	t.Run("always starts with engine retry", func(t *testing.T) {
		strategies := c.Choose(context.Background(), "quantum computing basics", "https://blocked.example.com")
		if len(strategies) != 1 {
			t.Fatalf("len = %d, want 1", len(strategies))
		}
		if strategies[0].Kind != KindSearchEngine || strategies[0].Engine != "duckduckgo" {
			t.Errorf("first strategy = %+v", strategies[0])
		}
	})

	t.Run("mentioned news site adds site search", func(t *testing.T) {
		strategies := c.Choose(context.Background(), "techcrunch coverage of AI startups", "https://blocked.example.com")
		if len(strategies) != 2 {
			t.Fatalf("len = %d, want engine retry + techcrunch", len(strategies))
		}
		if strategies[1].Kind != KindSiteSearch || strategies[1].Site != "techcrunch.com" {
			t.Errorf("second strategy = %+v", strategies[1])
		}
	})

	t.Run("unmentioned sites are not probed", func(t *testing.T) {
		strategies := c.Deterministic("nothing about outlets here")
		for _, s := range strategies {
			if s.Kind == KindSiteSearch {
				t.Errorf("unexpected site search: %+v", s)
			}
		}
	})
}

func TestChooseWithOracle(t *testing.T) {
	c := New(&fakeOracle{response: `{"strategies":[
		{"type":"search_engine","engine":"google","query":"golang captcha"},
		{"type":"site_search","site":"stackoverflow.com","query":"golang captcha"},
		{"type":"site_search","query":"dropped, no site"},
		{"type":"cache"}
	]}`})

	strategies := c.Choose(context.Background(), "original", "https://blocked.example.com")

	if len(strategies) != 3 {
		t.Fatalf("len = %d, want 3 after validation", len(strategies))
	}
	if strategies[0].Engine != "duckduckgo" {
		t.Errorf("engine coercion missing: %+v", strategies[0])
	}
	if strategies[2].Kind != KindCache || strategies[2].Query != "original" {
		t.Errorf("cache strategy should inherit original query: %+v", strategies[2])
	}
}

func TestChooseOracleFailureUsesDeterministic(t *testing.T) {
	c := New(&fakeOracle{err: errors.New("unavailable")})

	strategies := c.Choose(context.Background(), "find it on github", "https://blocked.example.com")

	if len(strategies) != 2 {
		t.Fatalf("len = %d, want deterministic ladder with github", len(strategies))
	}
	if strategies[1].Site != "github.com" {
		t.Errorf("strategies = %+v", strategies)
	}
}
