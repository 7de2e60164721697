package answer

import (
	"regexp"
	"strings"
)

var anyWhitespace = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return anyWhitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// VerifyQuote reports whether a claimed quote actually occurs in the source
// content. Strategies run in order from strict to lenient; the first hit
// wins. A lenient hit still counts as verified — the goal is catching
// fabricated evidence, not punishing formatting drift.
func VerifyQuote(quote, content string) bool {
	quote = strings.TrimSpace(quote)
	if quote == "" || content == "" {
		return false
	}

	// Exact.
	if strings.Contains(content, quote) {
		return true
	}

	// Whitespace-normalized.
	if strings.Contains(normalizeSpace(content), normalizeSpace(quote)) {
		return true
	}

	// Case-insensitive.
	if strings.Contains(strings.ToLower(content), strings.ToLower(quote)) {
		return true
	}

	// Multi-line: all non-empty lines, trimmed, contained in order.
	quoteLines := nonEmptyTrimmedLines(quote)
	if len(quoteLines) > 1 {
		joinedContent := strings.Join(nonEmptyTrimmedLines(content), "\n")
		joinedQuote := strings.Join(quoteLines, "\n")
		if strings.Contains(joinedContent, joinedQuote) {
			return true
		}
		if strings.Contains(normalizeSpace(joinedContent), normalizeSpace(joinedQuote)) {
			return true
		}
	}

	// Very short quote: token set membership.
	if tokens := strings.Fields(quote); len(quoteLines) == 1 && len(tokens) <= 3 {
		contentTokens := map[string]bool{}
		for _, t := range strings.Fields(content) {
			contentTokens[t] = true
		}
		for _, t := range tokens {
			if !contentTokens[t] {
				return false
			}
		}
		return true
	}

	return false
}

func nonEmptyTrimmedLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
