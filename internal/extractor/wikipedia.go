package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxTOCEntries     = 15
	maxKeyParagraphs  = 5
	maxInfoboxEntries = 20
)

// WikiSearchHit is one result on a Wikipedia search page
type WikiSearchHit struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// extractInfobox reads th/td pairs from the article infobox
func extractInfobox(doc *goquery.Document) map[string]string {
	box := doc.Find(".infobox, .infobox_v2").First()
	if box.Length() == 0 {
		return nil
	}

	info := make(map[string]string)
	box.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		key := cleanText(row.Find("th").First().Text())
		val := cleanText(row.Find("td").First().Text())
		if key != "" && val != "" {
			info[key] = val
		}
		return len(info) < maxInfoboxEntries
	})

	if len(info) == 0 {
		return nil
	}
	return info
}

// extractTableOfContents reads section names from the old #toc markup
// and the vector-2022 sidebar
func extractTableOfContents(doc *goquery.Document) []string {
	var toc []string
	doc.Find("#toc a, #vector-toc a, .vector-toc a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Find(".toctext").Text())
		if text == "" {
			text = cleanText(s.Text())
		}
		if text != "" && text != "(Top)" {
			toc = append(toc, text)
		}
		return len(toc) < maxTOCEntries
	})
	return toc
}

// extractKeyParagraphs picks substantial article paragraphs (50-500 chars)
// from the content root
func extractKeyParagraphs(doc *goquery.Document) []string {
	var paragraphs []string
	doc.Find("#mw-content-text p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if len(text) >= 50 && len(text) <= 500 {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < maxKeyParagraphs
	})
	return paragraphs
}

// ParseWikiSearchResults reads article links from a Wikipedia search
// results page (Special:Search). Relative hrefs are resolved against
// the page URL's host.
func ParseWikiSearchResults(html, pageURL string, limit int) []WikiSearchHit {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	base := wikiBase(pageURL)

	var hits []WikiSearchHit
	doc.Find(".mw-search-results li a, ul.mw-search-results a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return true
		}
		title := cleanText(s.Text())
		if title == "" {
			if t, ok := s.Attr("title"); ok {
				title = strings.TrimSpace(t)
			}
		}
		if title == "" {
			return true
		}

		if strings.HasPrefix(href, "/") {
			href = base + href
		}
		hits = append(hits, WikiSearchHit{Title: title, URL: href})
		return limit <= 0 || len(hits) < limit
	})

	return hits
}

func wikiBase(pageURL string) string {
	lower := strings.ToLower(pageURL)
	scheme := "https://"
	rest := lower
	if i := strings.Index(lower, "://"); i >= 0 {
		scheme = pageURL[:i+3]
		rest = pageURL[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "https://en.wikipedia.org"
	}
	return scheme + rest
}
