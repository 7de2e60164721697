package analysis

import (
	"regexp"

	"github.com/codeproof/codeproof-go/internal/models"
)

// PrivacyAnalyzer inventories likely personal-data fields and flags PII
// reaching log statements.
type PrivacyAnalyzer struct {
	rules []PatternRule
}

func NewPrivacyAnalyzer() *PrivacyAnalyzer {
	return &PrivacyAnalyzer{rules: []PatternRule{
		{
			RuleID:      "PRIV-001",
			Category:    "privacy",
			Title:       "Personal data field detected",
			Description: "Detected likely personal data fields (email, phone, address).",
			Severity:    models.SeverityMedium,
			Confidence:  models.ConfidenceLow,
			Remediation: "Verify data classification and ensure consent/retention policies apply.",
			Pattern:     regexp.MustCompile(`(?i)\b(email|phone|address|dob|ssn|social_security|passport)\b`),
			Tags:        []string{"data-inventory"},
			Impact:      map[string]interface{}{"data_types": []string{"personal"}},
		},
		{
			RuleID:      "PRIV-002",
			Category:    "privacy",
			Title:       "PII in logs",
			Description: "Logging of personal data can increase exposure risk.",
			Severity:    models.SeverityHigh,
			Confidence:  models.ConfidenceMedium,
			Remediation: "Redact PII before logging or remove logging statements.",
			Pattern:     regexp.MustCompile(`(?i)(logger|log)\.(info|debug|warn|error)\(.*\b(email|phone|ssn|address)\b`),
			Tags:        []string{"logging", "pii"},
			Impact:      map[string]interface{}{"data_types": []string{"personal"}},
			Likelihood:  map[string]interface{}{"reachability": "runtime_logs"},
		},
	}}
}

func (a *PrivacyAnalyzer) Name() string { return "privacy" }

func (a *PrivacyAnalyzer) Analyze(ctx *Context) []models.FindingMatch {
	var findings []models.FindingMatch
	for path, content := range ctx.FileContents {
		findings = append(findings, matchPatternsScoped(ctx, path, content, a.rules)...)
	}
	return findings
}
