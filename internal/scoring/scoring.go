package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/codeproof/codeproof-go/internal/models"
)

// Data-sensitivity scores by declared data type.
var dataSensitivityScores = map[string]int{
	"pii":           90,
	"credentials":   95,
	"payment_data":  90,
	"health_data":   95,
	"student_data":  85,
	"logs":          40,
	"configuration": 50,
	"public":        10,
}

// Flow-width scores; wider exposure scores higher.
var flowWidthScores = map[string]int{
	"direct":      90,
	"logged":      70,
	"third_party": 60,
	"internal":    30,
}

var networkExposureScores = map[string]int{
	"internet-facing": 90,
	"authenticated":   60,
	"internal":        30,
}

var attackComplexityScores = map[string]int{
	"direct":      90,
	"auth_bypass": 60,
	"chain":       30,
}

// Regulatory frameworks attached by data type.
var regulatoryByDataType = map[string][]string{
	"pii":          {"GDPR", "CCPA"},
	"health_data":  {"HIPAA"},
	"student_data": {"FERPA"},
}

// Input pairs an analyzer match with the evidence snippet built for it.
type Input struct {
	Match    models.FindingMatch
	Evidence models.EvidenceSnippet
}

// Scorer turns raw matches into deduplicated, scored findings.
type Scorer struct{}

func NewScorer() *Scorer { return &Scorer{} }

// PrimaryKey is the cross-file dedup key: hits of the same rule on the same
// source/sink pair within one directory collapse into one finding.
func PrimaryKey(m models.FindingMatch) string {
	raw := strings.Join([]string{
		m.RuleID,
		m.NormalizedSink,
		m.NormalizedSource,
		m.Symbol,
		path.Dir(m.FilePath),
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// LocalKey suppresses near-duplicates of the same rule within a 10-line
// window of one file.
func LocalKey(m models.FindingMatch) string {
	return fmt.Sprintf("%s|%s|%d|%s|%s",
		m.RuleID, m.FilePath, m.StartLine/10, m.NormalizedSource, m.NormalizedSink)
}

// EvidenceComplete implements the speculative-finding check: a match
// without a locatable, quotable trigger cannot keep its severity.
func EvidenceComplete(m models.FindingMatch) bool {
	return m.FilePath != "" &&
		m.RuleTriggerReason != "" &&
		m.StartLine > 0 &&
		m.EndLine >= m.StartLine &&
		strings.TrimSpace(m.Snippet) != ""
}

// Process scores, deduplicates, and assembles findings for one scan.
func (s *Scorer) Process(scanRunID string, inputs []Input, coverage *models.CoverageSummary) []models.Finding {
	// Local noise suppression first: within a 10-line window keep the
	// most severe hit.
	byLocal := make(map[string]Input)
	var localOrder []string
	for _, in := range inputs {
		key := LocalKey(in.Match)
		existing, ok := byLocal[key]
		if !ok {
			byLocal[key] = in
			localOrder = append(localOrder, key)
			continue
		}
		if models.SeverityRank(in.Match.Severity) > models.SeverityRank(existing.Match.Severity) {
			byLocal[key] = in
		}
	}

	// Primary grouping.
	groups := make(map[string][]Input)
	var groupOrder []string
	for _, key := range localOrder {
		in := byLocal[key]
		pk := PrimaryKey(in.Match)
		if _, seen := groups[pk]; !seen {
			groupOrder = append(groupOrder, pk)
		}
		groups[pk] = append(groups[pk], in)
	}

	var findings []models.Finding
	for _, pk := range groupOrder {
		group := groups[pk]
		findings = append(findings, s.buildFinding(scanRunID, pk, group, coverage))
	}
	return findings
}

func (s *Scorer) buildFinding(scanRunID, dedupeKey string, group []Input, coverage *models.CoverageSummary) models.Finding {
	// Representative carries the maximum severity and confidence in the
	// group.
	rep := group[0].Match
	for _, in := range group[1:] {
		if models.SeverityRank(in.Match.Severity) > models.SeverityRank(rep.Severity) {
			rep = in.Match
		}
	}
	maxConfidence := group[0].Match.Confidence
	for _, in := range group[1:] {
		if models.ConfidenceRank(in.Match.Confidence) > models.ConfidenceRank(maxConfidence) {
			maxConfidence = in.Match.Confidence
		}
	}

	severity := rep.Severity
	var rationale []string

	if !EvidenceComplete(rep) {
		severity = models.SeverityInfo
		rationale = append(rationale, "severity forced to info: incomplete evidence")
	}

	confidence, confRationale := adjustConfidence(maxConfidence, coverage)
	rationale = append(rationale, confRationale...)

	impactScore, regulatory := impact(rep)
	exploitScore := exploitability(rep)

	finding := models.Finding{
		ID:                  uuid.NewString(),
		ScanRunID:           scanRunID,
		RuleID:              rep.RuleID,
		Category:            rep.Category,
		Title:               rep.Title,
		Description:         rep.Description,
		Severity:            severity,
		Confidence:          confidence,
		ConfidenceRationale: rationale,
		ImpactScore:         impactScore,
		ExploitabilityScore: exploitScore,
		Impact:              rep.Impact,
		Likelihood:          rep.Likelihood,
		RegulatoryTags:      regulatory,
		Tags:                rep.Tags,
		DedupeKey:           dedupeKey,
		RemediationSummary:  rep.Remediation,
	}

	for _, in := range group {
		finding.Instances = append(finding.Instances, models.FindingInstance{
			ID:        uuid.NewString(),
			FindingID: finding.ID,
			Evidence:  in.Evidence,
			Symbol:    in.Match.Symbol,
		})
	}
	return finding
}

// adjustConfidence walks the pattern confidence down one tier per degraded
// signal: low coverage first, then a missing AST layer. The downgrades
// stack.
func adjustConfidence(c models.FindingConfidence, coverage *models.CoverageSummary) (models.FindingConfidence, []string) {
	var rationale []string
	if coverage == nil {
		return c, nil
	}
	if coverage.CoveragePercent < 80 {
		c = downgrade(c)
		rationale = append(rationale, fmt.Sprintf(
			"confidence reduced: coverage %.1f%% below threshold", coverage.CoveragePercent))
	}
	if !coverage.ASTAvailable {
		c = downgrade(c)
		rationale = append(rationale, "confidence reduced: AST layer unavailable")
	}
	return c, rationale
}

func downgrade(c models.FindingConfidence) models.FindingConfidence {
	switch c {
	case models.ConfidenceHigh:
		return models.ConfidenceMedium
	case models.ConfidenceMedium:
		return models.ConfidenceLow
	default:
		return models.ConfidenceUnknown
	}
}

// impact combines data sensitivity (0.6) and flow width (0.4), and returns
// the regulatory frameworks the declared data types fall under.
func impact(m models.FindingMatch) (float64, []string) {
	maxSensitivity := 0
	var regulatory []string
	seen := map[string]bool{}

	if m.Impact != nil {
		if raw, ok := m.Impact["data_types"]; ok {
			for _, dt := range toStrings(raw) {
				key := strings.ToLower(dt)
				score, known := dataSensitivityScores[key]
				if !known {
					score = 50
				}
				if score > maxSensitivity {
					maxSensitivity = score
				}
				for _, tag := range regulatoryByDataType[key] {
					if !seen[tag] {
						seen[tag] = true
						regulatory = append(regulatory, tag)
					}
				}
			}
		}
	}

	return float64(maxSensitivity)*0.6 + float64(flowWidthScores[inferFlow(m)])*0.4, regulatory
}

// inferFlow reads flow width off the snippet when the rule did not declare
// one: logging sinks beat outbound calls beat bare secret exposure.
func inferFlow(m models.FindingMatch) string {
	snippet := strings.ToLower(m.Snippet)
	title := strings.ToLower(m.Title)

	switch {
	case containsAny(snippet, []string{"console.log", "print(", "log(", "logger."}):
		return "logged"
	case containsAny(snippet, []string{"http", "api", "fetch", "axios", "requests."}):
		return "third_party"
	case strings.Contains(title, "secret") || strings.Contains(title, "key"):
		return "direct"
	default:
		return "internal"
	}
}

// exploitability combines network exposure (0.6, inferred from path tokens)
// and attack complexity (0.4, from auth markers in the snippet).
func exploitability(m models.FindingMatch) float64 {
	pathLower := strings.ToLower(m.FilePath)
	snippet := strings.ToLower(m.Snippet)

	exposure := "authenticated"
	switch {
	case containsAny(pathLower, []string{"routes/", "api/", "controller"}):
		exposure = "internet-facing"
	case containsAny(pathLower, []string{"internal", "private", "admin"}):
		exposure = "internal"
	}

	complexity := "direct"
	if containsAny(snippet, []string{"auth", "login", "session", "token"}) {
		complexity = "auth_bypass"
	}

	return float64(networkExposureScores[exposure])*0.6 +
		float64(attackComplexityScores[complexity])*0.4
}

func containsAny(s string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}

func toStrings(raw interface{}) []string {
	switch v := raw.(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}

// GroupSummaries produces one human-readable line per (rule, category)
// group, sorted by descending count.
func GroupSummaries(findings []models.Finding) []string {
	type groupInfo struct {
		title string
		count int
	}
	counts := make(map[string]*groupInfo)
	for _, f := range findings {
		key := f.RuleID + "|" + f.Category
		if g, ok := counts[key]; ok {
			g.count += len(f.Instances)
		} else {
			counts[key] = &groupInfo{title: f.Title, count: len(f.Instances)}
		}
	}

	groups := make([]*groupInfo, 0, len(counts))
	for _, g := range counts {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].title < groups[j].title
	})

	out := make([]string, 0, len(groups))
	for _, g := range groups {
		out = append(out, fmt.Sprintf("%d %s finding(s)", g.count, g.title))
	}
	return out
}
