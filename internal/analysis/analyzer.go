package analysis

import (
	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/treesitter"
)

// Context is the shared input for every analyzer in a scan: cached file
// contents keyed by repository-relative path, the parse result, and the
// coverage summary. Files the walker skipped are never present.
type Context struct {
	RepoPath     string
	FileContents map[string]string
	ParseResult  *treesitter.ParseResult
	Coverage     *models.CoverageSummary
	// DiffLines restricts matches to changed lines when set, keyed by
	// file path. Used by the PR review path.
	DiffLines map[string]map[int]bool
}

// inDiff reports whether a match at startLine survives diff scoping.
// No diff set for the file means everything is in scope.
func (c *Context) inDiff(filePath string, startLine int) bool {
	if c.DiffLines == nil {
		return true
	}
	lines, ok := c.DiffLines[filePath]
	if !ok || len(lines) == 0 {
		return true
	}
	return lines[startLine]
}

// Analyzer is the contract every rule family implements.
type Analyzer interface {
	Name() string
	Analyze(ctx *Context) []models.FindingMatch
}

// Registry holds the enabled analyzers in execution order.
type Registry struct {
	analyzers []Analyzer
}

func NewRegistry(analyzers ...Analyzer) *Registry {
	return &Registry{analyzers: analyzers}
}

// DefaultRegistry wires the full analyzer set.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewSecurityAnalyzer(),
		NewPrivacyAnalyzer(),
		NewReliabilityAnalyzer(),
		NewPerformanceAnalyzer(),
		NewMaintainabilityAnalyzer(0),
		NewArchitectureAnalyzer(),
		NewHighPrecisionAnalyzer(),
	)
}

// Register appends an analyzer.
func (r *Registry) Register(a Analyzer) {
	r.analyzers = append(r.analyzers, a)
}

// Enabled filters the registry down to the named analyzers; an empty list
// keeps everything.
func (r *Registry) Enabled(names []string) []Analyzer {
	if len(names) == 0 {
		return r.analyzers
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []Analyzer
	for _, a := range r.analyzers {
		if want[a.Name()] {
			out = append(out, a)
		}
	}
	return out
}

// Names lists the registered analyzer names in order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.analyzers))
	for _, a := range r.analyzers {
		out = append(out, a.Name())
	}
	return out
}
