package analysis

import (
	"regexp"

	"github.com/codeproof/codeproof-go/internal/models"
)

// SecurityAnalyzer flags deterministic code-injection and secret-handling
// signals. Rules here are heuristic; the high-precision family owns the
// near-certain secret shapes.
type SecurityAnalyzer struct {
	rules []PatternRule
}

func NewSecurityAnalyzer() *SecurityAnalyzer {
	return &SecurityAnalyzer{rules: []PatternRule{
		{
			RuleID:      "SEC-001",
			Category:    "security",
			Title:       "Dynamic code execution detected",
			Description: "Use of eval/exec introduces code injection risk when inputs are not strictly controlled.",
			Severity:    models.SeverityHigh,
			Confidence:  models.ConfidenceMedium,
			Remediation: "Avoid eval/exec; prefer safe parsing or explicit dispatch tables.",
			Pattern:     regexp.MustCompile(`(?i)\b(eval|exec)\s*\(`),
			Tags:        []string{"injection", "code-exec"},
			Likelihood:  map[string]interface{}{"exploitability": "depends_on_input_source"},
		},
		{
			RuleID:      "SEC-002",
			Category:    "security",
			Title:       "Shell execution detected",
			Description: "Shell command execution can be dangerous if inputs are user-controlled.",
			Severity:    models.SeverityMedium,
			Confidence:  models.ConfidenceMedium,
			Remediation: "Avoid shell=True; use subprocess with argument lists and strict allowlists.",
			Pattern:     regexp.MustCompile(`(?i)\b(os\.system|subprocess\.Popen|subprocess\.run)\s*\(`),
			Tags:        []string{"command-exec"},
		},
		{
			RuleID:      "SEC-003",
			Category:    "security",
			Title:       "Potential secret in source",
			Description: "Hard-coded secrets in source code increase exposure risk.",
			Severity:    models.SeverityHigh,
			Confidence:  models.ConfidenceLow,
			Remediation: "Move secrets to a secret manager or environment variables.",
			Pattern:     regexp.MustCompile(`(?i)(api_key|secret|token|password)\s*=\s*["'][^"']{8,}["']`),
			Tags:        []string{"secrets"},
		},
	}}
}

func (a *SecurityAnalyzer) Name() string { return "security" }

func (a *SecurityAnalyzer) Analyze(ctx *Context) []models.FindingMatch {
	var findings []models.FindingMatch
	for path, content := range ctx.FileContents {
		findings = append(findings, matchPatternsScoped(ctx, path, content, a.rules)...)
	}
	return findings
}
