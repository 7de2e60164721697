package treesitter

import (
	"strings"

	"github.com/codeproof/codeproof-go/internal/models"
)

// FileResult holds everything extracted from a single file.
type FileResult struct {
	Symbols []models.Symbol
	Imports []models.Import
	Calls   []models.CallEdge
}

// ParseResult aggregates extraction across a repository. The indexer and
// analyzers consume this directly.
type ParseResult struct {
	Symbols     []models.Symbol
	Imports     []models.Import
	Calls       []models.CallEdge
	FilesParsed int
	ParseErrors []models.ParseErrorEntry
}

// Merge folds a per-file result into the aggregate.
func (r *ParseResult) Merge(f *FileResult) {
	r.Symbols = append(r.Symbols, f.Symbols...)
	r.Imports = append(r.Imports, f.Imports...)
	r.Calls = append(r.Calls, f.Calls...)
	r.FilesParsed++
}

// qualify builds a qualified name: "file:Name" at top level,
// "parent.Name" when nested.
func qualify(filePath, parent, name string) string {
	if parent == "" {
		return filePath + ":" + name
	}
	return parent + "." + name
}

// functionVisibility derives visibility from underscore conventions:
// __x__ is magic, a single leading underscore is private.
func functionVisibility(name string) models.Visibility {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return models.VisibilityMagic
	}
	if strings.HasPrefix(name, "_") {
		return models.VisibilityPrivate
	}
	return models.VisibilityPublic
}

// classVisibility treats a leading underscore as private; classes have no
// magic form.
func classVisibility(name string) models.Visibility {
	if strings.HasPrefix(name, "_") {
		return models.VisibilityPrivate
	}
	return models.VisibilityPublic
}
