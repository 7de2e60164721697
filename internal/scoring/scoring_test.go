package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeproof/codeproof-go/internal/models"
)

func completeMatch(ruleID, file string, line int) models.FindingMatch {
	return models.FindingMatch{
		RuleID:            ruleID,
		Category:          "security",
		Title:             "Potential secret in source",
		Description:       "desc",
		Severity:          models.SeverityHigh,
		Confidence:        models.ConfidenceHigh,
		FilePath:          file,
		StartLine:         line,
		EndLine:           line,
		Snippet:           "password = \"hunter2hunter2\"",
		RuleTriggerReason: "matched",
	}
}

func fullCoverage() *models.CoverageSummary {
	return &models.CoverageSummary{CoveragePercent: 100, ASTAvailable: true}
}

func TestEvidenceComplete(t *testing.T) {
	m := completeMatch("SEC-003", "a.py", 5)
	assert.True(t, EvidenceComplete(m))

	broken := m
	broken.Snippet = "   "
	assert.False(t, EvidenceComplete(broken))

	broken = m
	broken.StartLine = 0
	assert.False(t, EvidenceComplete(broken))

	broken = m
	broken.EndLine = 2
	broken.StartLine = 4
	assert.False(t, EvidenceComplete(broken))

	broken = m
	broken.RuleTriggerReason = ""
	assert.False(t, EvidenceComplete(broken))
}

func TestProcess_SpeculativeDowngrade(t *testing.T) {
	m := completeMatch("SEC-003", "a.py", 5)
	m.Snippet = ""

	findings := NewScorer().Process("scan-1", []Input{{Match: m}}, fullCoverage())
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityInfo, findings[0].Severity)
	assert.NotEmpty(t, findings[0].ConfidenceRationale)
}

func TestProcess_LocalDedupeWindow(t *testing.T) {
	// Three hits of one rule in the same 10-line window collapse to one
	// instance; a hit in the next window stays separate but still merges
	// into the same root finding (same rule, same directory).
	inputs := []Input{
		{Match: completeMatch("SEC-003", "a.py", 11)},
		{Match: completeMatch("SEC-003", "a.py", 14)},
		{Match: completeMatch("SEC-003", "a.py", 19)},
		{Match: completeMatch("SEC-003", "a.py", 25)},
	}

	findings := NewScorer().Process("scan-1", inputs, fullCoverage())
	require.Len(t, findings, 1)
	assert.Len(t, findings[0].Instances, 2)
}

func TestProcess_PrimaryDedupeAcrossFiles(t *testing.T) {
	// Same rule in the same directory merges; a different directory does
	// not.
	inputs := []Input{
		{Match: completeMatch("SEC-003", "app/a.py", 5)},
		{Match: completeMatch("SEC-003", "app/b.py", 7)},
		{Match: completeMatch("SEC-003", "lib/c.py", 9)},
	}

	findings := NewScorer().Process("scan-1", inputs, fullCoverage())
	require.Len(t, findings, 2)
	assert.Len(t, findings[0].Instances, 2)
	assert.Len(t, findings[1].Instances, 1)
	assert.NotEqual(t, findings[0].DedupeKey, findings[1].DedupeKey)
}

func TestProcess_RepresentativeSeverity(t *testing.T) {
	low := completeMatch("SEC-003", "app/a.py", 5)
	low.Severity = models.SeverityLow
	high := completeMatch("SEC-003", "app/b.py", 7)
	high.Severity = models.SeverityCritical

	findings := NewScorer().Process("scan-1", []Input{{Match: low}, {Match: high}}, fullCoverage())
	require.Len(t, findings, 1)
	assert.Equal(t, models.SeverityCritical, findings[0].Severity)
}

func TestAdjustConfidence_Stacking(t *testing.T) {
	degraded := &models.CoverageSummary{CoveragePercent: 50, ASTAvailable: false}

	c, rationale := adjustConfidence(models.ConfidenceHigh, degraded)
	assert.Equal(t, models.ConfidenceLow, c)
	assert.Len(t, rationale, 2)

	c, _ = adjustConfidence(models.ConfidenceHigh, &models.CoverageSummary{CoveragePercent: 50, ASTAvailable: true})
	assert.Equal(t, models.ConfidenceMedium, c)

	c, rationale = adjustConfidence(models.ConfidenceHigh, fullCoverage())
	assert.Equal(t, models.ConfidenceHigh, c)
	assert.Empty(t, rationale)

	c, _ = adjustConfidence(models.ConfidenceLow, degraded)
	assert.Equal(t, models.ConfidenceUnknown, c)
}

func TestImpact_SensitivityAndRegulatory(t *testing.T) {
	m := completeMatch("PRIV-001", "a.py", 1)
	m.Impact = map[string]interface{}{"data_types": []string{"PII", "health_data"}}
	m.Snippet = "logger.info(email)"

	score, regulatory := impact(m)
	// health_data sensitivity 95, logged flow 70: 95*0.6 + 70*0.4 = 85.
	assert.InDelta(t, 85.0, score, 0.001)
	assert.ElementsMatch(t, []string{"GDPR", "CCPA", "HIPAA"}, regulatory)
}

func TestImpact_SecretDirectFlow(t *testing.T) {
	m := completeMatch("HP-SECRET", "a.py", 1)
	m.Title = "GitHub Personal Access Token"
	m.Impact = map[string]interface{}{"data_types": []string{"credentials"}}
	m.Snippet = "value = ghp_****"

	score, _ := impact(m)
	// credentials 95, direct 90: 95*0.6 + 90*0.4 = 93.
	assert.InDelta(t, 93.0, score, 0.001)
}

func TestExploitability(t *testing.T) {
	exposed := completeMatch("SEC-001", "routes/api.php", 1)
	exposed.Snippet = "eval(input)"
	// internet-facing 90, direct 90: 90.
	assert.InDelta(t, 90.0, exploitability(exposed), 0.001)

	guarded := completeMatch("SEC-001", "app/internal/job.py", 1)
	guarded.Snippet = "if auth.check(): eval(x)"
	// internal 30, auth_bypass 60: 30*0.6 + 60*0.4 = 42.
	assert.InDelta(t, 42.0, exploitability(guarded), 0.001)
}

func TestGroupSummaries(t *testing.T) {
	findings := []models.Finding{
		{RuleID: "HP-SECRET", Category: "secret_exposure", Title: "GitHub Personal Access Token",
			Instances: make([]models.FindingInstance, 3)},
		{RuleID: "HP-MIGRATION", Category: "migration_destructive", Title: "DROP TABLE",
			Instances: make([]models.FindingInstance, 1)},
	}

	summaries := GroupSummaries(findings)
	require.Len(t, summaries, 2)
	assert.Equal(t, "3 GitHub Personal Access Token finding(s)", summaries[0])
	assert.Equal(t, "1 DROP TABLE finding(s)", summaries[1])
}
