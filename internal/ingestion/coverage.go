package ingestion

import (
	"github.com/codeproof/codeproof-go/internal/models"
)

// Parse errors kept verbatim in the summary; the rest only counts.
const maxReportedParseErrors = 20

// CoverageThreshold below which a scan is marked incomplete.
const CoverageThreshold = 80.0

// CoverageTracker accounts for every discovered file: parsed, skipped with
// a reason, or failed. One tracker per scan.
type CoverageTracker struct {
	discovered     []string
	parsed         []string
	skipped        map[string][]string
	failed         []models.ParseErrorEntry
	languageCounts map[string]int
	analyzersRan   []string
	astAvailable   bool
}

// NewCoverageTracker creates an empty tracker. astAvailable reflects whether
// the tree-sitter layer loaded for the supported languages.
func NewCoverageTracker(astAvailable bool) *CoverageTracker {
	return &CoverageTracker{
		skipped:        make(map[string][]string),
		languageCounts: make(map[string]int),
		astAvailable:   astAvailable,
	}
}

// RecordDiscovered registers a file seen by the walker.
func (t *CoverageTracker) RecordDiscovered(path, language string) {
	t.discovered = append(t.discovered, path)
	if language != "" {
		t.languageCounts[language]++
	}
}

// RecordParsed marks a file as successfully parsed.
func (t *CoverageTracker) RecordParsed(path string) {
	t.parsed = append(t.parsed, path)
}

// RecordSkipped files a path under one of the skip-taxonomy reasons.
func (t *CoverageTracker) RecordSkipped(path, reason string) {
	t.skipped[reason] = append(t.skipped[reason], path)
}

// RecordFailed records a per-file parse error. Parse errors never abort
// the scan; they degrade it.
func (t *CoverageTracker) RecordFailed(path string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.failed = append(t.failed, models.ParseErrorEntry{Path: path, Error: msg})
}

// RecordAnalyzer marks an analyzer as having run over this scan.
func (t *CoverageTracker) RecordAnalyzer(name string) {
	t.analyzersRan = append(t.analyzersRan, name)
}

// IsSkipped reports whether path was recorded under any skip reason.
func (t *CoverageTracker) IsSkipped(path string) bool {
	for _, paths := range t.skipped {
		for _, p := range paths {
			if p == path {
				return true
			}
		}
	}
	return false
}

// Coverage returns the percentage of discoverable files parsed. The
// denominator excludes binary and vendor files; 0 when nothing is
// discoverable.
func (t *CoverageTracker) Coverage() float64 {
	excluded := len(t.skipped[SkipBinary]) + len(t.skipped[SkipVendorOrBuild])
	discoverable := len(t.discovered) - excluded
	if discoverable <= 0 {
		return 0
	}
	return 100.0 * float64(len(t.parsed)) / float64(discoverable)
}

// Summary produces the per-scan coverage record with degraded-mode flags.
func (t *CoverageTracker) Summary() *models.CoverageSummary {
	coverage := t.Coverage()
	incomplete := coverage < CoverageThreshold

	var degraded []string
	if !t.astAvailable {
		degraded = append(degraded, models.DegradedTreeSitterUnavailable)
	}
	if incomplete {
		degraded = append(degraded, models.DegradedLowCoverage)
	}
	if len(t.failed) > 0 {
		degraded = append(degraded, models.DegradedParseErrors)
	}

	reported := t.failed
	if len(reported) > maxReportedParseErrors {
		reported = reported[:maxReportedParseErrors]
	}

	skipped := make(map[string][]string, len(t.skipped))
	for reason, paths := range t.skipped {
		skipped[reason] = append([]string(nil), paths...)
	}

	return &models.CoverageSummary{
		TotalDiscovered:  len(t.discovered),
		TotalParsed:      len(t.parsed),
		SkippedByReason:  skipped,
		ParseErrors:      reported,
		LanguageCounts:   t.languageCounts,
		AnalyzersRan:     append([]string(nil), t.analyzersRan...),
		CoveragePercent:  coverage,
		Incomplete:       incomplete,
		DegradedModes:    degraded,
		ASTAvailable:     t.astAvailable,
		ParseErrorsTotal: len(t.failed),
	}
}
