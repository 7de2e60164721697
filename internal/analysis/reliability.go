package analysis

import (
	"strings"

	"github.com/codeproof/codeproof-go/internal/models"
)

// ReliabilityAnalyzer flags outbound HTTP calls issued without a timeout.
type ReliabilityAnalyzer struct{}

func NewReliabilityAnalyzer() *ReliabilityAnalyzer { return &ReliabilityAnalyzer{} }

func (a *ReliabilityAnalyzer) Name() string { return "reliability" }

func (a *ReliabilityAnalyzer) Analyze(ctx *Context) []models.FindingMatch {
	var findings []models.FindingMatch
	for path, content := range ctx.FileContents {
		for i, line := range strings.Split(content, "\n") {
			lineNo := i + 1
			if !strings.Contains(line, "requests.") || !strings.Contains(line, "(") {
				continue
			}
			if strings.Contains(line, "timeout=") {
				continue
			}
			if !ctx.inDiff(path, lineNo) {
				continue
			}
			findings = append(findings, models.FindingMatch{
				RuleID:            "REL-001",
				Category:          "reliability",
				Title:             "Outbound request without timeout",
				Description:       "Requests without timeouts can hang and exhaust workers.",
				Severity:          models.SeverityMedium,
				Confidence:        models.ConfidenceMedium,
				Remediation:       "Set explicit timeouts on outbound requests.",
				Tags:              []string{"timeouts", "outbound"},
				FilePath:          path,
				StartLine:         lineNo,
				EndLine:           lineNo,
				Snippet:           strings.TrimSpace(line),
				RuleTriggerReason: "Outbound request call site has no timeout argument",
				Likelihood:        map[string]interface{}{"reachability": "runtime_network"},
			})
		}
	}
	return findings
}
