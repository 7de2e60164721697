package analysis

import (
	"strings"

	"github.com/codeproof/codeproof-go/internal/models"
)

var controllerPathTokens = []string{"routes", "controllers", "handlers"}

var dataAccessMarkers = []string{"SELECT ", "session.execute", "db.", "cursor."}

// ArchitectureAnalyzer flags controller-layer files that touch persistence
// directly.
type ArchitectureAnalyzer struct{}

func NewArchitectureAnalyzer() *ArchitectureAnalyzer { return &ArchitectureAnalyzer{} }

func (a *ArchitectureAnalyzer) Name() string { return "architecture" }

func (a *ArchitectureAnalyzer) Analyze(ctx *Context) []models.FindingMatch {
	var findings []models.FindingMatch
	for path, content := range ctx.FileContents {
		lowerPath := strings.ToLower(path)
		if !containsAny(lowerPath, controllerPathTokens) {
			continue
		}
		if !containsAny(content, dataAccessMarkers) {
			continue
		}
		firstLine := ""
		if content != "" {
			firstLine = strings.SplitN(content, "\n", 2)[0]
		}
		findings = append(findings, models.FindingMatch{
			RuleID:            "ARCH-001",
			Category:          "architecture",
			Title:             "Data access in controller layer",
			Description:       "Controller layer appears to access persistence directly.",
			Severity:          models.SeverityLow,
			Confidence:        models.ConfidenceLow,
			Remediation:       "Move data access to a service/repository layer.",
			Tags:              []string{"layering"},
			FilePath:          path,
			StartLine:         1,
			EndLine:           1,
			Snippet:           firstLine,
			RuleTriggerReason: "Persistence marker found in controller-layer file",
		})
	}
	return findings
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
