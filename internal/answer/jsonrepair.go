package answer

import (
	"encoding/json"
	"regexp"
	"strings"
)

// rawSpan is a claimed verbatim quote as the model emitted it.
type rawSpan struct {
	SourceID int    `json:"source_id"`
	Quote    string `json:"quote"`
}

type rawSection struct {
	Heading     string    `json:"heading"`
	Text        string    `json:"text"`
	SourceIDs   []int     `json:"source_ids"`
	QuotedSpans []rawSpan `json:"quoted_spans"`
}

type rawAnswer struct {
	Sections []rawSection `json:"sections"`
	Unknowns []string     `json:"unknowns"`
}

var markdownFence = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseAnswerJSON works down a ladder of increasingly forgiving parses.
// Models wrap JSON in prose, fence it, truncate it, or emit almost-JSON;
// each rung targets one of those failure shapes. Returns nil when nothing
// on the ladder yields an object.
func parseAnswerJSON(response string) *rawAnswer {
	trimmed := strings.TrimSpace(response)

	// Direct parse.
	if strings.HasPrefix(trimmed, "{") {
		if parsed := tryParse(trimmed); parsed != nil {
			return parsed
		}
	}

	// Inside a markdown fence.
	if m := markdownFence.FindStringSubmatch(response); m != nil {
		if parsed := tryParse(m[1]); parsed != nil {
			return parsed
		}
	}

	// Greedy largest {...} substring.
	candidate := largestBraceSpan(response)
	if candidate == "" {
		return nil
	}
	if parsed := tryParse(candidate); parsed != nil {
		return parsed
	}

	// Mechanical repair of almost-JSON.
	if parsed := tryParse(repairJSON(candidate)); parsed != nil {
		return parsed
	}

	// Truncated output: back off to the last balanced object.
	if balanced := lastBalancedObject(candidate); balanced != "" {
		if parsed := tryParse(balanced); parsed != nil {
			return parsed
		}
		if parsed := tryParse(repairJSON(balanced)); parsed != nil {
			return parsed
		}
	}
	return nil
}

func tryParse(s string) *rawAnswer {
	var parsed rawAnswer
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil
	}
	if parsed.Sections == nil && parsed.Unknowns == nil {
		return nil
	}
	return &parsed
}

func largestBraceSpan(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

var (
	trailingComma = regexp.MustCompile(`,\s*([}\]])`)
	bareKey       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
)

// repairJSON fixes the common mechanical defects: trailing commas, unquoted
// keys, stray control characters, and single-quoted strings (only when the
// text carries no double quotes, so the swap cannot corrupt content).
func repairJSON(s string) string {
	s = trailingComma.ReplaceAllString(s, "$1")
	s = bareKey.ReplaceAllString(s, `$1"$2":`)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	if !strings.Contains(s, `"`) && strings.Contains(s, `'`) {
		s = strings.ReplaceAll(s, `'`, `"`)
	}
	return s
}

// lastBalancedObject walks the text and returns the prefix object at the
// last point brace depth returned to zero. String-aware so braces inside
// values do not count.
func lastBalancedObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	lastBalanced := -1

	for i := start; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				lastBalanced = i
			}
		}
	}

	if lastBalanced < 0 {
		return ""
	}
	return s[start : lastBalanced+1]
}
