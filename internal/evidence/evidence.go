package evidence

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/codeproof/codeproof-go/internal/models"
)

// Snippet limits. Enough to show the finding, small enough that evidence
// records stay cheap to store and send to a model.
const (
	maxSnippetLines = 12
	maxSnippetChars = 800
	contextLines    = 2
)

// Token shapes that must never appear verbatim in stored evidence.
var secretValuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`ghp_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`ghu_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`ghs_[A-Za-z0-9]{36}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9]{22}_[A-Za-z0-9]{59}`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?:sk|pk)_live_[A-Za-z0-9]{10,}`),
	regexp.MustCompile(`xox[bp]-[A-Za-z0-9-]{10,}`),
	regexp.MustCompile(`SG\.[A-Za-z0-9_-]{16,}\.[A-Za-z0-9_-]{16,}`),
	regexp.MustCompile(`\bAC[a-f0-9]{32}\b`),
}

var urlCredentials = regexp.MustCompile(`(\w+://)[^/\s:@]+:[^/\s@]+@`)

// Builder turns raw file content into redacted evidence snippets.
type Builder struct{}

func NewBuilder() *Builder { return &Builder{} }

// Build extracts the snippet for [startLine, endLine] (1-based, inclusive)
// with two lines of context either side, truncates it to the snippet
// limits, redacts secret values, and hashes the redacted text.
func (b *Builder) Build(filePath, content string, startLine, endLine int) models.EvidenceSnippet {
	lines := strings.Split(content, "\n")

	if startLine < 1 {
		startLine = 1
	}
	if endLine < startLine {
		endLine = startLine
	}
	if startLine > len(lines) {
		startLine = len(lines)
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}

	// Truncate the core span before slicing context.
	if endLine-startLine+1 > maxSnippetLines {
		endLine = startLine + maxSnippetLines - 1
	}

	snippet := strings.Join(lines[startLine-1:endLine], "\n")
	if len(snippet) > maxSnippetChars {
		snippet = snippet[:maxSnippetChars] + "..."
	}

	beforeStart := startLine - 1 - contextLines
	if beforeStart < 0 {
		beforeStart = 0
	}
	afterEnd := endLine + contextLines
	if afterEnd > len(lines) {
		afterEnd = len(lines)
	}

	snippet = Redact(snippet)
	before := Redact(strings.Join(lines[beforeStart:startLine-1], "\n"))
	after := Redact(strings.Join(lines[endLine:afterEnd], "\n"))

	return models.EvidenceSnippet{
		FilePath:      filePath,
		StartLine:     startLine,
		EndLine:       endLine,
		SnippetText:   snippet,
		SnippetHash:   Hash(snippet),
		ContextBefore: before,
		ContextAfter:  after,
	}
}

// Redact masks every recognized secret value and URL-embedded credential
// in the text. Masking keeps just enough of the value to identify which
// secret leaked without reproducing it.
func Redact(text string) string {
	for _, p := range secretValuePatterns {
		text = p.ReplaceAllStringFunc(text, MaskValue)
	}
	return urlCredentials.ReplaceAllString(text, "${1}[REDACTED]@")
}

// MaskValue keeps the first and last four characters of long values and
// only the first two of short ones.
func MaskValue(value string) string {
	if len(value) > 12 {
		return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
	}
	if len(value) > 2 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return strings.Repeat("*", len(value))
}

// Hash returns the hex SHA-256 of the redacted snippet text, the stable
// identity evidence is compared by.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
