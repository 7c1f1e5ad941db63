// Package serp reads organic results out of a search engine results
// page snapshot. DuckDuckGo is the default engine; the selector ladder
// also covers the markup of engines reached through site fallbacks.
package serp

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultMaxResults = 5
	maxSnippetLength  = 200
)

// SearchResult is one organic hit on a results page
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// result container selectors, most specific first
var resultSelectors = []string{
	`article[data-testid="result"]`,
	`.result`,
	`.web-result`,
	`.results_links`,
	`.result__body`,
}

var snippetSelectors = []string{
	`.result__snippet`,
	`span[data-testid="result-snippet"]`,
	`[data-result="snippet"]`,
	`.b_caption p`,
	`.VwiC3b`,
}

// hrefs that are navigation, ads or engine-internal, never results
var (
	skipHrefPrefixes = []string{"javascript:", "mailto:", "#"}

	skipHrefFragments = []string{
		"duckduckgo.com/settings",
		"duckduckgo.com/about",
		"duckduckgo.com/ads",
		"/feedback",
		"/privacy",
		"/terms",
	}
)

type Reader struct {
	maxResults int
}

func NewReader(maxResults int) *Reader {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Reader{maxResults: maxResults}
}

// Read parses the results page snapshot. pageURL is the final URL of the
// SERP, used to resolve relative hrefs. Results are deduped by
// normalised URL and capped at maxResults.
func (r *Reader) Read(html, pageURL string) []SearchResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	base, _ := url.Parse(pageURL)

	seen := make(map[string]bool)
	var results []SearchResult

	appendResult := func(title, href, snippet string) bool {
		resolved := NormalizeURL(href, base)
		if resolved == "" || seen[resolved] {
			return len(results) < r.maxResults
		}
		seen[resolved] = true
		results = append(results, SearchResult{
			Title:   title,
			URL:     resolved,
			Snippet: truncateSnippet(snippet),
		})
		return len(results) < r.maxResults
	}

	for _, sel := range resultSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, item *goquery.Selection) bool {
			link := item.Find("h2 a, h3 a, a[data-testid='result-title-a']").First()
			if link.Length() == 0 {
				link = item.Find("a[href]").First()
			}
			href, ok := link.Attr("href")
			if !ok || skipHref(href) {
				return true
			}

			title := cleanText(link.Text())
			if title == "" {
				return true
			}

			return appendResult(title, href, findSnippet(item))
		})

		if len(results) >= r.maxResults {
			return results
		}
		if len(results) > 0 {
			// one container style per page; don't mix selector generations
			return results
		}
	}

	// last resort: sweep heading links across the page
	doc.Find("h2 a[href], h3 a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if skipHref(href) {
			return true
		}
		title := cleanText(link.Text())
		if title == "" {
			return true
		}
		return appendResult(title, href, "")
	})

	return results
}

func findSnippet(item *goquery.Selection) string {
	for _, sel := range snippetSelectors {
		if text := cleanText(item.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// NormalizeURL turns a raw result href into an absolute URL:
// DDG uddg= redirects are decoded, protocol-relative and root-relative
// hrefs are resolved against the SERP base. Unresolvable hrefs map to "".
func NormalizeURL(href string, base *url.URL) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	// DDG wraps external results: //duckduckgo.com/l/?uddg=<encoded>
	if strings.Contains(href, "uddg=") {
		if u, err := url.Parse(href); err == nil {
			if target := u.Query().Get("uddg"); target != "" {
				if decoded, err := url.QueryUnescape(target); err == nil {
					href = decoded
				} else {
					href = target
				}
			}
		}
	}

	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	if strings.HasPrefix(href, "/") && base != nil && base.Host != "" {
		href = base.Scheme + "://" + base.Host + href
	}

	u, err := url.Parse(href)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}

	return u.String()
}

func skipHref(href string) bool {
	lower := strings.ToLower(strings.TrimSpace(href))
	if lower == "" {
		return true
	}
	for _, prefix := range skipHrefPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	for _, frag := range skipHrefFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func truncateSnippet(s string) string {
	runes := []rune(s)
	if len(runes) <= maxSnippetLength {
		return s
	}
	return string(runes[:maxSnippetLength])
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
