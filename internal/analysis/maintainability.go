package analysis

import (
	"fmt"
	"strings"

	"github.com/codeproof/codeproof-go/internal/models"
)

const defaultMaxFunctionLines = 80

// MaintainabilityAnalyzer walks the parse result and flags functions whose
// line span exceeds the threshold.
type MaintainabilityAnalyzer struct {
	maxFunctionLines int
}

func NewMaintainabilityAnalyzer(maxFunctionLines int) *MaintainabilityAnalyzer {
	if maxFunctionLines <= 0 {
		maxFunctionLines = defaultMaxFunctionLines
	}
	return &MaintainabilityAnalyzer{maxFunctionLines: maxFunctionLines}
}

func (a *MaintainabilityAnalyzer) Name() string { return "maintainability" }

func (a *MaintainabilityAnalyzer) Analyze(ctx *Context) []models.FindingMatch {
	var findings []models.FindingMatch
	if ctx.ParseResult == nil {
		return findings
	}

	for _, sym := range ctx.ParseResult.Symbols {
		if sym.Kind != models.SymbolFunction && sym.Kind != models.SymbolMethod {
			continue
		}
		lineCount := sym.LineEnd - sym.LineStart + 1
		if lineCount < a.maxFunctionLines {
			continue
		}
		if !ctx.inDiff(sym.FilePath, sym.LineStart) {
			continue
		}

		snippetLines := strings.Split(sym.Body, "\n")
		if len(snippetLines) > maxMatchSnippetLines {
			snippetLines = snippetLines[:maxMatchSnippetLines]
		}

		findings = append(findings, models.FindingMatch{
			RuleID:            "MAINT-001",
			Category:          "maintainability",
			Title:             "Large function detected",
			Description:       fmt.Sprintf("Function exceeds %d lines, increasing complexity.", a.maxFunctionLines),
			Severity:          models.SeverityMedium,
			Confidence:        models.ConfidenceMedium,
			Remediation:       "Refactor into smaller functions with clear responsibilities.",
			Tags:              []string{"complexity", "refactor"},
			FilePath:          sym.FilePath,
			StartLine:         sym.LineStart,
			EndLine:           sym.LineEnd,
			Snippet:           strings.Join(snippetLines, "\n"),
			Symbol:            sym.QualifiedName,
			RuleTriggerReason: fmt.Sprintf("Function spans %d lines", lineCount),
		})
	}
	return findings
}
