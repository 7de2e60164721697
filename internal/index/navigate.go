package index

import (
	"sort"
	"strings"

	"github.com/codeproof/codeproof-go/internal/models"
)

// Names that suggest a symbol is a program entry point.
var entryPointNames = map[string]bool{
	"main": true, "__main__": true, "app": true, "server": true,
	"index": true, "handle": true, "handler": true, "route": true,
	"endpoint": true, "view": true, "cli": true, "command": true,
	"run": true, "start": true, "init": true,
}

// Decorator fragments that mark HTTP handlers regardless of name.
var entryPointMarkers = []string{
	"@app.", "@router.", "@route", "@get", "@post", "@put", "@delete",
}

// Names that qualify as entry points even when something calls them.
var alwaysEntryNames = map[string]bool{"main": true, "__main__": true, "app": true}

// EntryPoints returns symbols that look like where execution starts:
// conventionally named symbols nothing calls, plus decorated HTTP handlers.
func (idx *Index) EntryPoints() []models.Symbol {
	var out []models.Symbol
	for _, sym := range idx.AllSymbols() {
		name := strings.ToLower(sym.Name)
		if entryPointNames[name] {
			if len(idx.calledBy[sym.QualifiedName]) == 0 || alwaysEntryNames[name] {
				out = append(out, sym)
				continue
			}
		}
		if hasEntryMarker(sym.Body) {
			out = append(out, sym)
		}
	}
	return out
}

func hasEntryMarker(body string) bool {
	if body == "" {
		return false
	}
	for _, marker := range entryPointMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// TopLevelSymbols ranks the most structurally important declarations:
// classes by member count and functions by caller count, half the limit
// from each.
func (idx *Index) TopLevelSymbols(limit int) []models.Symbol {
	if limit <= 0 {
		limit = 20
	}

	var classes, functions []models.Symbol
	for _, sym := range idx.AllSymbols() {
		switch sym.Kind {
		case models.SymbolClass, models.SymbolInterface:
			classes = append(classes, sym)
		case models.SymbolFunction:
			functions = append(functions, sym)
		}
	}

	sort.SliceStable(classes, func(i, j int) bool {
		return len(classes[i].Children) > len(classes[j].Children)
	})
	sort.SliceStable(functions, func(i, j int) bool {
		ci := len(idx.calledBy[functions[i].QualifiedName])
		cj := len(idx.calledBy[functions[j].QualifiedName])
		return ci > cj
	})

	half := limit / 2
	if len(classes) > half {
		classes = classes[:half]
	}
	if len(functions) > half {
		functions = functions[:half]
	}
	return append(classes, functions...)
}

// Limits on call-flow traversal. Depth keeps traces readable; the
// branching cap stops utility functions from exploding the tree.
const (
	maxTraceDepth     = 5
	maxTraceBranching = 10
)

// FlowNode is one step in a call-flow trace.
type FlowNode struct {
	QualifiedName string      `json:"qualified_name"`
	FilePath      string      `json:"file_path"`
	Line          int         `json:"line"`
	Depth         int         `json:"depth"`
	Callees       []*FlowNode `json:"callees,omitempty"`
}

// TraceFlow walks the call graph downward from a symbol. Cycles are cut by
// never revisiting a node on the current path.
func (idx *Index) TraceFlow(qname string) *FlowNode {
	sym, ok := idx.symbols[qname]
	if !ok {
		return nil
	}
	visited := map[string]bool{qname: true}
	root := &FlowNode{
		QualifiedName: qname,
		FilePath:      sym.FilePath,
		Line:          sym.LineStart,
		Depth:         0,
	}
	idx.traceInto(root, visited)
	return root
}

func (idx *Index) traceInto(node *FlowNode, visited map[string]bool) {
	if node.Depth >= maxTraceDepth {
		return
	}
	callees := idx.calls[node.QualifiedName]
	if len(callees) > maxTraceBranching {
		callees = callees[:maxTraceBranching]
	}
	for _, callee := range callees {
		if visited[callee] {
			continue
		}
		visited[callee] = true
		sym := idx.symbols[callee]
		child := &FlowNode{
			QualifiedName: callee,
			FilePath:      sym.FilePath,
			Line:          sym.LineStart,
			Depth:         node.Depth + 1,
		}
		node.Callees = append(node.Callees, child)
		idx.traceInto(child, visited)
		delete(visited, callee)
	}
}
