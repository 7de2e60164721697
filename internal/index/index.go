package index

import (
	"sort"
	"strings"

	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/treesitter"
)

// Index is the in-memory navigation structure built from one parse pass:
// a symbol table plus import and call graphs with reverse edges.
type Index struct {
	symbols    map[string]models.Symbol
	byName     map[string][]string
	byFile     map[string][]string
	imports    map[string][]string
	importedBy map[string][]string
	calls      map[string][]string
	calledBy   map[string][]string
	files      map[string]bool
}

// Build constructs the index from extraction output. files is the set of
// repository-relative paths, used to resolve import targets.
func Build(parse *treesitter.ParseResult, files []string) *Index {
	idx := &Index{
		symbols:    make(map[string]models.Symbol),
		byName:     make(map[string][]string),
		byFile:     make(map[string][]string),
		imports:    make(map[string][]string),
		importedBy: make(map[string][]string),
		calls:      make(map[string][]string),
		calledBy:   make(map[string][]string),
		files:      make(map[string]bool),
	}
	for _, f := range files {
		idx.files[f] = true
	}

	for _, sym := range parse.Symbols {
		idx.symbols[sym.QualifiedName] = sym
		idx.byName[sym.Name] = append(idx.byName[sym.Name], sym.QualifiedName)
		idx.byFile[sym.FilePath] = append(idx.byFile[sym.FilePath], sym.QualifiedName)
	}

	for _, imp := range parse.Imports {
		target := idx.resolveImport(imp.FilePath, imp.Module)
		if target == "" || target == imp.FilePath {
			continue
		}
		if !contains(idx.imports[imp.FilePath], target) {
			idx.imports[imp.FilePath] = append(idx.imports[imp.FilePath], target)
			idx.importedBy[target] = append(idx.importedBy[target], imp.FilePath)
		}
	}

	for _, call := range parse.Calls {
		callee := idx.resolveCall(call)
		if callee == "" || callee == call.CallerQName {
			continue
		}
		if !contains(idx.calls[call.CallerQName], callee) {
			idx.calls[call.CallerQName] = append(idx.calls[call.CallerQName], callee)
			idx.calledBy[callee] = append(idx.calledBy[callee], call.CallerQName)
		}
	}

	return idx
}

// Symbol looks up a symbol by qualified name.
func (idx *Index) Symbol(qname string) (models.Symbol, bool) {
	s, ok := idx.symbols[qname]
	return s, ok
}

// SymbolsNamed returns all symbols with the given simple name.
func (idx *Index) SymbolsNamed(name string) []models.Symbol {
	var out []models.Symbol
	for _, q := range idx.byName[name] {
		out = append(out, idx.symbols[q])
	}
	return out
}

// SymbolsInFile returns every symbol declared in a file.
func (idx *Index) SymbolsInFile(path string) []models.Symbol {
	var out []models.Symbol
	for _, q := range idx.byFile[path] {
		out = append(out, idx.symbols[q])
	}
	return out
}

// SymbolCount returns the total number of indexed symbols.
func (idx *Index) SymbolCount() int { return len(idx.symbols) }

// AllSymbols returns every indexed symbol in deterministic order.
func (idx *Index) AllSymbols() []models.Symbol {
	qnames := make([]string, 0, len(idx.symbols))
	for q := range idx.symbols {
		qnames = append(qnames, q)
	}
	sort.Strings(qnames)
	out := make([]models.Symbol, 0, len(qnames))
	for _, q := range qnames {
		out = append(out, idx.symbols[q])
	}
	return out
}

// Imports returns the files a file imports.
func (idx *Index) Imports(path string) []string { return idx.imports[path] }

// ImportedBy returns the files that import a file.
func (idx *Index) ImportedBy(path string) []string { return idx.importedBy[path] }

// Calls returns the qualified names a symbol calls.
func (idx *Index) Calls(qname string) []string { return idx.calls[qname] }

// Callers returns the qualified names that call a symbol.
func (idx *Index) Callers(qname string) []string { return idx.calledBy[qname] }

// Search does case-insensitive substring matching over symbol names and
// qualified names.
func (idx *Index) Search(query string, limit int) []models.Symbol {
	q := strings.ToLower(query)
	var out []models.Symbol
	for _, sym := range idx.AllSymbols() {
		if strings.Contains(strings.ToLower(sym.Name), q) ||
			strings.Contains(strings.ToLower(sym.QualifiedName), q) {
			out = append(out, sym)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
