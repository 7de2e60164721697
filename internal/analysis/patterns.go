package analysis

import (
	"regexp"
	"strings"

	"github.com/codeproof/codeproof-go/internal/models"
)

// Pattern-match snippets are shorter than evidence snippets; the evidence
// builder re-slices with context at persist time.
const maxMatchSnippetLines = 6

// PatternRule is one compiled regex rule with its finding metadata.
type PatternRule struct {
	RuleID           string
	Category         string
	Title            string
	Description      string
	Severity         models.FindingSeverity
	Confidence       models.FindingConfidence
	Remediation      string
	Pattern          *regexp.Regexp
	Tags             []string
	Impact           map[string]interface{}
	Likelihood       map[string]interface{}
	NormalizedSource string
	NormalizedSink   string
}

// lineForOffset converts a byte offset into a 1-based line number.
func lineForOffset(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}

func snippetForMatch(content string, startLine, endLine int) string {
	lines := strings.Split(content, "\n")
	startIdx := startLine - 1
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := endLine
	if endIdx > len(lines) {
		endIdx = len(lines)
	}
	snippet := lines[startIdx:endIdx]
	if len(snippet) > maxMatchSnippetLines {
		snippet = snippet[:maxMatchSnippetLines]
	}
	return strings.Join(snippet, "\n")
}

// MatchPatterns runs every rule against one file's content and converts
// regex hits to finding matches with offset-derived line numbers.
func MatchPatterns(filePath, content string, rules []PatternRule) []models.FindingMatch {
	var matches []models.FindingMatch
	for _, rule := range rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(content, -1) {
			startLine := lineForOffset(content, loc[0])
			endLine := lineForOffset(content, loc[1])
			matches = append(matches, models.FindingMatch{
				RuleID:            rule.RuleID,
				Category:          rule.Category,
				Title:             rule.Title,
				Description:       rule.Description,
				Severity:          rule.Severity,
				Confidence:        rule.Confidence,
				Remediation:       rule.Remediation,
				Tags:              rule.Tags,
				Impact:            rule.Impact,
				Likelihood:        rule.Likelihood,
				FilePath:          filePath,
				StartLine:         startLine,
				EndLine:           endLine,
				Snippet:           snippetForMatch(content, startLine, endLine),
				RuleTriggerReason: rule.Title,
				NormalizedSource:  rule.NormalizedSource,
				NormalizedSink:    rule.NormalizedSink,
			})
		}
	}
	return matches
}

// matchPatternsScoped applies diff scoping on top of MatchPatterns.
func matchPatternsScoped(ctx *Context, filePath, content string, rules []PatternRule) []models.FindingMatch {
	all := MatchPatterns(filePath, content, rules)
	if ctx.DiffLines == nil {
		return all
	}
	var kept []models.FindingMatch
	for _, m := range all {
		if ctx.inDiff(filePath, m.StartLine) {
			kept = append(kept, m)
		}
	}
	return kept
}
