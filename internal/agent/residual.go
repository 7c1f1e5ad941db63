package agent

import "strings"

// words that signal the task wants something found, not just a page opened
var searchIndicators = []string{"find", "search", "look for", "about", "information"}

// command vocabulary stripped from queries before deciding what is left
// to actually search for
var commandWords = map[string]bool{
	"visit": true, "open": true, "go": true, "to": true, "navigate": true,
	"check": true, "read": true, "browse": true, "on": true, "from": true,
	"find": true, "search": true, "look": true, "for": true,
	"about": true, "information": true, "info": true,
}

var stopwords = map[string]bool{
	"it": true, "is": true, "are": true, "was": true, "were": true,
	"and": true, "or": true, "but": true, "the": true, "a": true, "an": true,
}

// site mentions that name a destination rather than a search term
var domainMentions = map[string]bool{
	"wikipedia": true, "wikipida": true, "linkedin": true, "linkdin": true,
	"github": true, "google": true, "youtube": true, "twitter": true,
	"facebook": true, "instagram": true, "reddit": true, "stackoverflow": true,
	"medium": true, "bbc": true, "cnn": true, "reuters": true,
	"techcrunch": true, "theverge": true, "amazon": true, "duckduckgo": true,
}

// HasSearchTerms reports whether the query asks to find something
// inside the destination rather than just land on it.
func HasSearchTerms(query string) bool {
	lower := " " + strings.ToLower(query) + " "
	for _, ind := range searchIndicators {
		if strings.Contains(lower, " "+ind+" ") {
			return true
		}
	}
	return false
}

// ResidualTerms strips navigation vocabulary, site mentions, stopwords
// and single letters from the query and returns what is left: the part
// worth typing into a site's search box. Kept tokens retain the user's
// casing; only the filtering compares lowercased. Callers gate on
// len > 3, so a residue like "it" or "go" never triggers an in-site
// search.
func ResidualTerms(query string) string {
	var kept []string
	for _, token := range strings.Fields(query) {
		token = strings.Trim(token, ".,!?;:'\"()")
		if token == "" || len(token) == 1 {
			continue
		}
		lower := strings.ToLower(token)
		if commandWords[lower] || stopwords[lower] || domainMentions[lower] {
			continue
		}
		if strings.Contains(token, ".") {
			// bare domains and URLs name the destination, not the topic
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}
