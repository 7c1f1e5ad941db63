package extractor

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultMaxContentLength = 2000
	contentPreviewLength    = 500

	maxH1Headings = 5
	maxH2Headings = 10
	maxH3Headings = 10

	// article paragraph window; paragraphs outside it are noise
	minParagraphLength   = 20
	maxParagraphLength   = 500
	maxArticleParagraphs = 10
	maxKeyPoints         = 5
)

var whitespaceRegex = regexp.MustCompile(`[\s\n\r\t]+`)

// pageIssueKeywords flag pages that loaded but are effectively broken
var pageIssueKeywords = []string{"error", "404", "not found", "page not found", "access denied"}

// Headings groups the page's heading texts by level.
type Headings struct {
	H1 []string `json:"h1,omitempty"`
	H2 []string `json:"h2,omitempty"`
	H3 []string `json:"h3,omitempty"`
}

// PageReport is the structured digest of one page, built from an HTML
// snapshot. Wikipedia pages additionally carry infobox, table of
// contents and key paragraphs.
type PageReport struct {
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	MainText       string    `json:"main_text,omitempty"`
	ContentPreview string    `json:"content_preview"`
	ContentLength  int       `json:"content_length"`
	Headings       Headings  `json:"headings"`
	ArticleContent []string  `json:"article_content,omitempty"`
	PublishedAt    string    `json:"published_at,omitempty"`
	Author         string    `json:"author,omitempty"`
	KeyPoints      []string  `json:"key_points,omitempty"`
	Summary        string    `json:"summary,omitempty"`
	LinkCount      int       `json:"link_count"`
	Issues         []string  `json:"issues,omitempty"`
	ExtractedAt    time.Time `json:"extracted_at"`

	IsWikipedia     bool              `json:"is_wikipedia,omitempty"`
	Infobox         map[string]string `json:"infobox,omitempty"`
	TableOfContents []string          `json:"table_of_contents,omitempty"`
	KeyParagraphs   []string          `json:"key_paragraphs,omitempty"`
}

type Extractor struct {
	maxContentLength int
}

func New(maxContentLength int) *Extractor {
	if maxContentLength <= 0 {
		maxContentLength = defaultMaxContentLength
	}
	return &Extractor{maxContentLength: maxContentLength}
}

// Extract builds a PageReport from an HTML snapshot. It never fails on
// malformed markup; whatever goquery can parse is what gets reported.
func (e *Extractor) Extract(html, url string) (*PageReport, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	paragraphs := extractArticleContent(doc)

	report := &PageReport{
		URL:            url,
		Title:          ExtractTitle(doc),
		Description:    ExtractDescription(doc),
		Headings:       extractHeadings(doc),
		ArticleContent: paragraphs,
		PublishedAt:    extractPublishedAt(doc),
		Author:         extractAuthor(doc),
		KeyPoints:      keyPoints(paragraphs),
		LinkCount:      doc.Find("a[href]").Length(),
		ExtractedAt:    time.Now(),
	}

	// ExtractMainText mutates the DOM, so it runs on its own copy
	docCopy, copyErr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if copyErr == nil {
		full := ExtractMainText(docCopy, isWikipediaURL(url))
		report.MainText = truncate(full, e.maxContentLength)
		report.ContentPreview = truncate(full, contentPreviewLength)
		report.ContentLength = len(full)
	}

	if isWikipediaURL(url) {
		report.IsWikipedia = true
		report.Infobox = extractInfobox(doc)
		report.TableOfContents = extractTableOfContents(doc)
		report.KeyParagraphs = extractKeyParagraphs(doc)
	}

	report.Issues = detectIssues(report.Title, report.MainText)

	return report, nil
}

// ExtractTitle resolves the page title: og:title, then the first h1,
// then the title element.
func ExtractTitle(doc *goquery.Document) string {
	if ogTitle, exists := doc.Find(`meta[property="og:title"]`).Attr("content"); exists {
		if t := strings.TrimSpace(ogTitle); t != "" {
			return t
		}
	}

	if h1 := cleanText(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}

	return cleanText(doc.Find("title").First().Text())
}

// ExtractDescription prefers og:description over the plain meta tag
func ExtractDescription(doc *goquery.Document) string {
	if desc, exists := doc.Find(`meta[property="og:description"]`).Attr("content"); exists {
		return strings.TrimSpace(desc)
	}

	if desc, exists := doc.Find(`meta[name="description"]`).Attr("content"); exists {
		return strings.TrimSpace(desc)
	}

	return ""
}

// ExtractMainText extracts the main textual content of the page.
// Priority: wikipedia content root > main > article > content containers > body
func ExtractMainText(doc *goquery.Document, wikipedia bool) string {
	doc.Find("script, style, noscript, iframe, svg, nav, header, footer, aside, .sidebar, .menu, .navigation, .comments, .ad, .advertisement").Remove()

	selectors := []string{
		"main",
		"article",
		".content",
		".post-content",
		".post-body",
		".entry-content",
		".article-content",
		".article-body",
		"#content",
		".container main",
	}
	if wikipedia {
		selectors = append([]string{"#mw-content-text"}, selectors...)
	}

	for _, sel := range selectors {
		if el := doc.Find(sel).First(); el.Length() > 0 {
			text := cleanText(el.Text())
			if len(text) > 50 {
				return text
			}
		}
	}

	if body := doc.Find("body").First(); body.Length() > 0 {
		return cleanText(body.Text())
	}

	return ""
}

func extractHeadings(doc *goquery.Document) Headings {
	return Headings{
		H1: headingTexts(doc, "h1", maxH1Headings),
		H2: headingTexts(doc, "h2", maxH2Headings),
		H3: headingTexts(doc, "h3", maxH3Headings),
	}
}

func headingTexts(doc *goquery.Document, selector string, max int) []string {
	var texts []string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := cleanText(s.Text()); text != "" {
			texts = append(texts, text)
		}
		return len(texts) < max
	})
	return texts
}

func extractPublishedAt(doc *goquery.Document) string {
	if dt, exists := doc.Find("time[datetime]").First().Attr("datetime"); exists {
		return strings.TrimSpace(dt)
	}

	for _, sel := range []string{`[class*="date"]`, `[class*="published"]`} {
		if text := cleanText(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}

	if dt, exists := doc.Find(`meta[property="article:published_time"]`).Attr("content"); exists {
		return strings.TrimSpace(dt)
	}

	return ""
}

func extractAuthor(doc *goquery.Document) string {
	selectors := []string{
		`[rel="author"]`,
		`[class*="author"]`,
		`.byline`,
		`[itemprop="author"]`,
	}

	for _, sel := range selectors {
		if text := cleanText(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}

	if name, exists := doc.Find(`meta[name="author"]`).Attr("content"); exists {
		return strings.TrimSpace(name)
	}

	return ""
}

// extractArticleContent collects substantial article paragraphs, up to
// ten inside the 20-500 character window.
func extractArticleContent(doc *goquery.Document) []string {
	var paragraphs []string
	doc.Find("article p, main p, .content p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := cleanText(s.Text())
		if len(text) >= minParagraphLength && len(text) <= maxParagraphLength {
			paragraphs = append(paragraphs, text)
		}
		return len(paragraphs) < maxArticleParagraphs
	})
	return paragraphs
}

// keyPoints is the head of the article paragraphs
func keyPoints(paragraphs []string) []string {
	if len(paragraphs) > maxKeyPoints {
		return paragraphs[:maxKeyPoints]
	}
	return paragraphs
}

func detectIssues(title, mainText string) []string {
	haystack := strings.ToLower(title)
	if len(mainText) > 300 {
		haystack += " " + strings.ToLower(mainText[:300])
	} else {
		haystack += " " + strings.ToLower(mainText)
	}

	var issues []string
	for _, kw := range pageIssueKeywords {
		if strings.Contains(haystack, kw) {
			issues = append(issues, kw)
		}
	}
	return issues
}

func isWikipediaURL(url string) bool {
	return strings.Contains(strings.ToLower(url), "wikipedia.org")
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(s, " "))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
