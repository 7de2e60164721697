package analysis

import (
	"regexp"

	"github.com/codeproof/codeproof-go/internal/models"
)

// PerformanceAnalyzer flags query and blocking-I/O signals.
type PerformanceAnalyzer struct {
	rules []PatternRule
}

func NewPerformanceAnalyzer() *PerformanceAnalyzer {
	return &PerformanceAnalyzer{rules: []PatternRule{
		{
			RuleID:      "PERF-001",
			Category:    "performance",
			Title:       "SELECT * usage detected",
			Description: "SELECT * can fetch unnecessary columns and increase payload size.",
			Severity:    models.SeverityLow,
			Confidence:  models.ConfidenceMedium,
			Remediation: "Select only required columns and add indexes where needed.",
			Pattern:     regexp.MustCompile(`(?i)SELECT\s+\*`),
			Tags:        []string{"sql", "payload"},
		},
		{
			RuleID:      "PERF-002",
			Category:    "performance",
			Title:       "Potential blocking I/O in request path",
			Description: "Synchronous file or network access on request paths can degrade latency.",
			Severity:    models.SeverityMedium,
			Confidence:  models.ConfidenceLow,
			Remediation: "Move blocking work to background jobs or use async APIs.",
			Pattern:     regexp.MustCompile(`(?i)\btime\.sleep\(`),
			Tags:        []string{"blocking-io"},
		},
	}}
}

func (a *PerformanceAnalyzer) Name() string { return "performance" }

func (a *PerformanceAnalyzer) Analyze(ctx *Context) []models.FindingMatch {
	var findings []models.FindingMatch
	for path, content := range ctx.FileContents {
		findings = append(findings, matchPatternsScoped(ctx, path, content, a.rules)...)
	}
	return findings
}
