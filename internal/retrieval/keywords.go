package retrieval

import (
	"regexp"
	"sort"
	"strings"
)

const maxKeywords = 10

var questionStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "how": true,
	"what": true, "where": true, "when": true, "why": true, "which": true,
	"who": true, "does": true, "do": true, "did": true, "has": true,
	"have": true, "had": true, "in": true, "on": true, "at": true,
	"to": true, "for": true, "of": true, "with": true, "by": true,
}

var (
	// Tokens that carry code identity and must survive intact.
	filePathToken  = regexp.MustCompile(`[\w./-]+\.[A-Za-z]{1,4}\b`)
	qualifiedToken = regexp.MustCompile(`\w+(?:(?:\.|::|\\)\w+)+`)
	dunderToken    = regexp.MustCompile(`__\w+__`)
	allCapsToken   = regexp.MustCompile(`\b[A-Z][A-Z0-9_]+\b`)
	digitToken     = regexp.MustCompile(`\b\w*\d\w*\b`)
	plainWord      = regexp.MustCompile(`\b\w+\b`)

	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
)

// ExtractKeywords turns a free-text question into search terms. Code-shaped
// tokens (paths, qualified names, dunders, ALLCAPS, digit-bearing) are kept
// verbatim; camelCase and snake_case identifiers additionally contribute
// their split parts. Stopwords and short words are dropped, the result is
// sorted longest first and capped.
func ExtractKeywords(question string) []string {
	seen := map[string]bool{}
	var keywords []string

	add := func(tok string) {
		tok = strings.Trim(tok, ".")
		if len(tok) < 2 || seen[tok] {
			return
		}
		if questionStopwords[strings.ToLower(tok)] {
			return
		}
		seen[tok] = true
		keywords = append(keywords, tok)
	}

	for _, re := range []*regexp.Regexp{filePathToken, qualifiedToken, dunderToken, allCapsToken, digitToken} {
		for _, tok := range re.FindAllString(question, -1) {
			add(tok)
		}
	}

	for _, word := range plainWord.FindAllString(question, -1) {
		if len(word) <= 2 {
			continue
		}
		add(word)
		for _, part := range splitIdentifier(word) {
			if len(part) > 2 {
				add(part)
			}
		}
	}

	sort.SliceStable(keywords, func(i, j int) bool {
		return len(keywords[i]) > len(keywords[j])
	})
	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}

// splitIdentifier breaks camelCase and snake_case into parts. Returns nil
// when the word has no internal boundary.
func splitIdentifier(word string) []string {
	spaced := camelBoundary.ReplaceAllString(word, "$1 $2")
	spaced = strings.ReplaceAll(spaced, "_", " ")
	if spaced == word {
		return nil
	}
	var parts []string
	for _, p := range strings.Fields(spaced) {
		parts = append(parts, strings.ToLower(p))
	}
	return parts
}
