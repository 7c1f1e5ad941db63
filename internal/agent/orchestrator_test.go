package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/webpilot/backend/internal/extractor"
	"github.com/webpilot/backend/internal/fallback"
	"github.com/webpilot/backend/internal/planner"
)

// fakePage is one page state the scripted surface can show
type fakePage struct {
	url   string
	title string
	html  string

	// challenged answers for HasChallenge: -1 answers true forever,
	// n > 0 answers true n times then false
	challenged int

	searchSel string    // selector Find resolves to, "" means no box
	next      *fakePage // page shown after PressEnter
	solved    *fakePage // page shown once the challenge count runs out
}

// fakeSurface scripts browser behavior per URL. Navigating to the same
// URL twice walks a queue, so a retry can see a different page than the
// first attempt.
type fakeSurface struct {
	pages   map[string][]*fakePage
	tabs    []*fakePage
	pending bool
	filled  []string
	closed  int
}

func newFakeSurface(pages map[string][]*fakePage) *fakeSurface {
	return &fakeSurface{
		pages: pages,
		tabs:  []*fakePage{{url: "about:blank"}},
	}
}

func (f *fakeSurface) active() *fakePage { return f.tabs[len(f.tabs)-1] }

func (f *fakeSurface) Launch(ctx context.Context) error { return nil }
func (f *fakeSurface) Close(force bool)                 {}
func (f *fakeSurface) SetChallengePending(p bool)       { f.pending = p }
func (f *fakeSurface) ChallengePending() bool           { return f.pending }

func (f *fakeSurface) Navigate(ctx context.Context, url string) (string, error) {
	queue := f.pages[url]
	var page *fakePage
	switch {
	case len(queue) == 0:
		page = &fakePage{url: url, title: "untitled"}
	case len(queue) == 1:
		page = queue[0]
	default:
		page = queue[0]
		f.pages[url] = queue[1:]
	}
	if page.url == "" {
		page.url = url
	}
	f.tabs[len(f.tabs)-1] = page
	return page.url, nil
}

func (f *fakeSurface) WaitLoaded(ctx context.Context) {}

func (f *fakeSurface) NewTab(ctx context.Context) error {
	f.tabs = append(f.tabs, &fakePage{url: "about:blank"})
	return nil
}

func (f *fakeSurface) CloseTab() {
	f.closed++
	if len(f.tabs) > 1 {
		f.tabs = f.tabs[:len(f.tabs)-1]
	}
}

func (f *fakeSurface) Title(ctx context.Context) (string, error) { return f.active().title, nil }
func (f *fakeSurface) URL(ctx context.Context) (string, error)   { return f.active().url, nil }
func (f *fakeSurface) HTML(ctx context.Context) (string, error)  { return f.active().html, nil }
func (f *fakeSurface) Text(ctx context.Context) (string, error)  { return f.active().html, nil }

func (f *fakeSurface) Find(ctx context.Context, selectors ...string) (string, error) {
	if f.active().searchSel == "" {
		return "", errors.New("no element matched")
	}
	return f.active().searchSel, nil
}

func (f *fakeSurface) Fill(ctx context.Context, selector, value string) error {
	f.filled = append(f.filled, value)
	return nil
}

func (f *fakeSurface) PressEnter(ctx context.Context, selector string) error {
	if f.active().next != nil {
		f.tabs[len(f.tabs)-1] = f.active().next
	}
	return nil
}

func (f *fakeSurface) HasChallenge(ctx context.Context) bool {
	p := f.active()
	if p.challenged == -1 {
		return true
	}
	if p.challenged > 0 {
		p.challenged--
		if p.challenged == 0 && p.solved != nil {
			f.tabs[len(f.tabs)-1] = p.solved
		}
		return true
	}
	return false
}

func testConfig() Config {
	return Config{
		MaxResults:          5,
		MaxEnrich:           3,
		MaxContentLength:    2000,
		CaptchaPollInterval: 2 * time.Millisecond,
		CaptchaWaitTimeout:  500 * time.Millisecond,
		CaptchaConfirmDelay: time.Millisecond,
	}
}

func newTestOrchestrator(fs *fakeSurface, cfg Config) *Orchestrator {
	return New(fs, planner.New(nil), fallback.New(nil), nil, cfg)
}

func articleHTML(title, body string) string {
	return `<html><head><title>` + title + `</title></head><body><article><h1>` +
		title + `</h1><p>` + body + `</p></article></body></html>`
}

const serpHTML = `<html><body>
<article data-testid="result"><h2><a href="https://golang.org/doc">Go Documentation</a></h2>
<span data-testid="result-snippet">The official documentation for the Go programming language.</span></article>
<article data-testid="result"><h2><a href="https://go.dev/blog">The Go Blog</a></h2>
<span data-testid="result-snippet">News and articles from the Go team.</span></article>
</body></html>`

func ddgFlow(serp *fakePage) *fakePage {
	return &fakePage{
		url:       "https://duckduckgo.com",
		title:     "DuckDuckGo",
		html:      `<html><body><input name="q"></body></html>`,
		searchSel: `input[name="q"]`,
		next:      serp,
	}
}

func findStep(t *Trace, prefix string) (Step, bool) {
	for _, s := range t.Steps {
		if strings.HasPrefix(s.Step, prefix) {
			return s, true
		}
	}
	return Step{}, false
}

func TestRunOpenURL(t *testing.T) {
	fs := newFakeSurface(map[string][]*fakePage{
		"https://example.com": {{
			url:   "https://example.com",
			title: "Example Domain",
			html: articleHTML("Example Domain",
				"This domain is for use in illustrative examples in documents without prior coordination."),
		}},
	})
	o := newTestOrchestrator(fs, testConfig())

	trace := o.Run(context.Background(), "open example.com")

	if !trace.Final().Success {
		t.Fatalf("expected success, got %+v", trace.Final())
	}
	if _, ok := findStep(trace, "Open https://example.com"); !ok {
		t.Errorf("missing open step, got %v", stepNames(trace))
	}
	step, ok := findStep(trace, "Read landing page")
	if !ok {
		t.Fatalf("missing landing page step, got %v", stepNames(trace))
	}
	if step.Result.Data.Title != "Example Domain" {
		t.Errorf("landing title = %q", step.Result.Data.Title)
	}
	if trace.ChallengePending {
		t.Error("challenge pending on a clean run")
	}
}

func TestRunSearchAndEnrich(t *testing.T) {
	fs := newFakeSurface(map[string][]*fakePage{
		"https://duckduckgo.com": {ddgFlow(&fakePage{
			url:   "https://duckduckgo.com/?q=go+concurrency+patterns",
			title: "go concurrency patterns at DuckDuckGo",
			html:  serpHTML,
		})},
		"https://golang.org/doc": {{
			title: "Go Documentation",
			html:  articleHTML("Go Documentation", "The Go programming language documentation covers the language specification and standard library in depth."),
		}},
		"https://go.dev/blog": {{
			title: "The Go Blog",
			html:  articleHTML("The Go Blog", "Articles from the Go team about releases, proposals and best practices for writing Go programs."),
		}},
	})
	o := newTestOrchestrator(fs, testConfig())

	trace := o.Run(context.Background(), "go concurrency patterns")

	if !trace.Final().Success {
		t.Fatalf("expected success, got %+v", trace.Final())
	}

	search, ok := findStep(trace, "Search for")
	if !ok {
		t.Fatalf("missing search step, got %v", stepNames(trace))
	}
	if search.Result.Data.Extras["results"] == nil {
		t.Error("search step carries no results")
	}

	final, ok := findStep(trace, "Extract detailed content")
	if !ok {
		t.Fatalf("missing enrichment step, got %v", stepNames(trace))
	}
	if !final.Success {
		t.Errorf("enrichment step failed: %+v", final.Result)
	}
	if len(fs.filled) == 0 || fs.filled[0] != "go concurrency patterns" {
		t.Errorf("query typed into engine = %v", fs.filled)
	}
	// both results opened in throwaway tabs
	if fs.closed != 2 {
		t.Errorf("tabs closed = %d, want 2", fs.closed)
	}
}

type fakeTextOracle struct{ text string }

func (f *fakeTextOracle) GenerateText(context.Context, string, string) (string, error) {
	return f.text, nil
}

func TestRunSearchSummarisesWithOracle(t *testing.T) {
	fs := newFakeSurface(map[string][]*fakePage{
		"https://duckduckgo.com": {ddgFlow(&fakePage{
			url:   "https://duckduckgo.com/?q=go+concurrency+patterns",
			title: "go concurrency patterns at DuckDuckGo",
			html:  serpHTML,
		})},
		"https://golang.org/doc": {{
			title: "Go Documentation",
			html:  articleHTML("Go Documentation", "The Go programming language documentation covers the language specification and standard library in depth."),
		}},
		"https://go.dev/blog": {{
			title: "The Go Blog",
			html:  articleHTML("The Go Blog", "Articles from the Go team about releases, proposals and best practices for writing Go programs."),
		}},
	})
	oracle := &fakeTextOracle{text: strings.Repeat("s", 400)}
	o := New(fs, planner.New(nil), fallback.New(nil), oracle, testConfig())

	trace := o.Run(context.Background(), "go concurrency patterns")

	step, ok := findStep(trace, "Extract detailed content")
	if !ok {
		t.Fatalf("missing enrichment step, got %v", stepNames(trace))
	}
	detailed, ok := step.Result.Data.Extras["detailed_results"].([]*extractor.PageReport)
	if !ok || len(detailed) == 0 {
		t.Fatalf("detailed results = %v", step.Result.Data.Extras["detailed_results"])
	}
	if len(detailed[0].Summary) != 300 {
		t.Errorf("summary length = %d, want capped at 300", len(detailed[0].Summary))
	}
	if len(detailed[0].KeyPoints) > 0 && detailed[0].KeyPoints[0] == detailed[0].Summary {
		t.Error("summary must not leak into key points")
	}
	if step.Result.Data.Extras["comprehensive_summary"] == nil {
		t.Error("missing cross-source summary with an oracle configured")
	}
}

func TestRunCaptchaResolvedByHuman(t *testing.T) {
	// gate consumes one challenged answer, first poll the second, then
	// the solved page is shown and the confirmation pass lets the run
	// resume. The interstitial carries no results; only a re-read of
	// the solved page can find any.
	fs := newFakeSurface(map[string][]*fakePage{
		"https://duckduckgo.com": {ddgFlow(&fakePage{
			url:        "https://duckduckgo.com/?q=weather+in+berlin",
			title:      "Just a moment...",
			html:       `<html><body><div class="g-recaptcha">Please verify you are human.</div></body></html>`,
			challenged: 2,
			solved: &fakePage{
				url:   "https://duckduckgo.com/?q=weather+in+berlin",
				title: "weather in berlin at DuckDuckGo",
				html:  serpHTML,
			},
		})},
		"https://golang.org/doc": {{html: articleHTML("Go Documentation", "Documentation body long enough to extract without any reported issues at all.")}},
		"https://go.dev/blog":    {{html: articleHTML("The Go Blog", "Blog body long enough to extract without any reported issues at all here.")}},
	})
	o := newTestOrchestrator(fs, testConfig())

	trace := o.Run(context.Background(), "weather in berlin")

	pause, ok := findStep(trace, "Detect CAPTCHA and pause")
	if !ok {
		t.Fatalf("missing pause step, got %v", stepNames(trace))
	}
	if pause.Success || pause.Result.Error != ErrCaptchaDetected {
		t.Errorf("pause step = %+v", pause.Result)
	}
	if _, ok := findStep(trace, "Resume after CAPTCHA resolved"); !ok {
		t.Fatalf("missing resume step, got %v", stepNames(trace))
	}
	search, ok := findStep(trace, "Search for")
	if !ok {
		t.Fatalf("missing search step, got %v", stepNames(trace))
	}
	if search.Result.Message != "found 2 results" {
		t.Errorf("search after resolution = %q, want results from the solved page", search.Result.Message)
	}
	if !trace.Final().Success {
		t.Errorf("expected success after resolution, got %+v", trace.Final())
	}
	if trace.ChallengePending {
		t.Error("challenge still pending after resolution")
	}
	if len(trace.CaptchaURLs) != 1 {
		t.Errorf("captcha urls = %v", trace.CaptchaURLs)
	}
}

func TestRunCaptchaTimeoutThenFallback(t *testing.T) {
	// first engine visit stays challenged past the wait budget; the
	// fallback retry gets a clean results page
	cfg := testConfig()
	cfg.CaptchaWaitTimeout = 20 * time.Millisecond

	fs := newFakeSurface(map[string][]*fakePage{
		"https://duckduckgo.com": {
			ddgFlow(&fakePage{
				url:        "https://duckduckgo.com/?q=rare+stamp+prices",
				title:      "Just a moment...",
				challenged: -1,
			}),
			ddgFlow(&fakePage{
				url:   "https://duckduckgo.com/?q=rare+stamp+prices&retry=1",
				title: "rare stamp prices at DuckDuckGo",
				html:  serpHTML,
			}),
		},
	})
	o := newTestOrchestrator(fs, cfg)

	trace := o.Run(context.Background(), "rare stamp prices")

	if _, ok := findStep(trace, "Detect CAPTCHA and pause"); !ok {
		t.Fatalf("missing pause step, got %v", stepNames(trace))
	}
	fb, ok := findStep(trace, "Fallback search (search_engine)")
	if !ok {
		t.Fatalf("missing fallback step, got %v", stepNames(trace))
	}
	if !fb.Success {
		t.Errorf("fallback step failed: %+v", fb.Result)
	}
	if !trace.Final().Success {
		t.Errorf("expected fallback success, got %+v", trace.Final())
	}
	// the original page still holds an unsolved challenge
	if !trace.ChallengePending {
		t.Error("challenge pending flag lost after fallback")
	}
}

func TestRunAllFallbacksBlocked(t *testing.T) {
	cfg := testConfig()
	cfg.CaptchaWaitTimeout = 20 * time.Millisecond

	blocked := func() *fakePage {
		return ddgFlow(&fakePage{
			url:        "https://duckduckgo.com/?q=rare+stamp+prices",
			title:      "Just a moment...",
			challenged: -1,
		})
	}
	fs := newFakeSurface(map[string][]*fakePage{
		"https://duckduckgo.com": {blocked(), blocked()},
	})
	o := newTestOrchestrator(fs, cfg)

	trace := o.Run(context.Background(), "rare stamp prices")

	final := trace.Final()
	if final.Success {
		t.Fatalf("expected failure, got %+v", final)
	}
	if final.Error != ErrAllFallbacksBlocked {
		t.Errorf("final error = %q, want %q", final.Error, ErrAllFallbacksBlocked)
	}
	// both attempts hit the same blocked URL; the list stays deduped
	if len(trace.CaptchaURLs) != 1 {
		t.Errorf("captcha urls = %v", trace.CaptchaURLs)
	}
	if !trace.ChallengePending {
		t.Error("challenge pending flag lost")
	}
}

func TestRunWikipediaSiteSearch(t *testing.T) {
	wikiResults := `<html><body><ul class="mw-search-results">
<li><a href="/wiki/Quantum_computing" title="Quantum computing">Quantum computing</a></li>
<li><a href="/wiki/Qubit" title="Qubit">Qubit</a></li>
</ul></body></html>`

	fs := newFakeSurface(map[string][]*fakePage{
		"https://www.wikipedia.org": {{
			url:       "https://www.wikipedia.org",
			title:     "Wikipedia",
			html:      `<html><body><input id="searchInput"></body></html>`,
			searchSel: "#searchInput",
			next: &fakePage{
				url:   "https://en.wikipedia.org/w/index.php?search=quantum+computing",
				title: "Search results for quantum computing",
				html:  wikiResults,
			},
		}},
		"https://en.wikipedia.org/wiki/Quantum_computing": {{
			title: "Quantum computing - Wikipedia",
			html:  articleHTML("Quantum computing", "A quantum computer exploits superposition and entanglement to run certain computations faster than classical machines."),
		}},
		"https://en.wikipedia.org/wiki/Qubit": {{
			title: "Qubit - Wikipedia",
			html:  articleHTML("Qubit", "A qubit is the basic unit of quantum information, the quantum analogue of the classical bit."),
		}},
	})
	o := newTestOrchestrator(fs, testConfig())

	trace := o.Run(context.Background(), "find information about quantum computing on wikipedia")

	if !trace.Final().Success {
		t.Fatalf("expected success, got %+v", trace.Final())
	}
	step, ok := findStep(trace, "Search Wikipedia for")
	if !ok {
		t.Fatalf("missing wikipedia step, got %v", stepNames(trace))
	}
	if len(fs.filled) == 0 || fs.filled[0] != "quantum computing" {
		t.Errorf("terms typed into search box = %v", fs.filled)
	}
	hits, _ := step.Result.Data.Extras["search_results"]
	if hits == nil {
		t.Error("step carries no search results")
	}
	detailed, _ := step.Result.Data.Extras["detailed_results"]
	if detailed == nil {
		t.Error("step carries no detailed article reports")
	}
}

func TestRunNavigationalQuerySkipsSiteSearch(t *testing.T) {
	fs := newFakeSurface(map[string][]*fakePage{
		"https://www.github.com": {{
			url:   "https://www.github.com",
			title: "GitHub",
			html: articleHTML("GitHub",
				"GitHub is where over 100 million developers shape the future of software, together."),
			searchSel: `input[type="search"]`,
		}},
	})
	o := newTestOrchestrator(fs, testConfig())

	// nothing left to search for once the site mention is stripped
	trace := o.Run(context.Background(), "open github")

	if _, ok := findStep(trace, "Read landing page"); !ok {
		t.Fatalf("expected landing page read, got %v", stepNames(trace))
	}
	if len(fs.filled) != 0 {
		t.Errorf("search box used for a navigational query: %v", fs.filled)
	}
}

func stepNames(t *Trace) []string {
	names := make([]string, len(t.Steps))
	for i, s := range t.Steps {
		names[i] = s.Step
	}
	return names
}
