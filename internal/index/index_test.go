package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/treesitter"
)

func fixtureParse() (*treesitter.ParseResult, []string) {
	files := []string{
		"app/main.py",
		"app/db.py",
		"app/models/__init__.py",
		"src/util.ts",
		"src/api.js",
	}
	parse := &treesitter.ParseResult{
		Symbols: []models.Symbol{
			{Kind: models.SymbolFunction, Name: "main", QualifiedName: "app/main.py:main", FilePath: "app/main.py", LineStart: 10},
			{Kind: models.SymbolFunction, Name: "get_session", QualifiedName: "app/db.py:get_session", FilePath: "app/db.py", LineStart: 3},
			{Kind: models.SymbolClass, Name: "Session", QualifiedName: "app/db.py:Session", FilePath: "app/db.py", LineStart: 8,
				Children: []string{"run", "close"}},
			{Kind: models.SymbolMethod, Name: "run", QualifiedName: "app/db.py:Session.run", FilePath: "app/db.py",
				Parent: "app/db.py:Session", LineStart: 12},
			{Kind: models.SymbolFunction, Name: "run", QualifiedName: "src/util.ts:run", FilePath: "src/util.ts", LineStart: 1},
			{Kind: models.SymbolFunction, Name: "list_users", QualifiedName: "src/api.js:list_users", FilePath: "src/api.js",
				LineStart: 4, Body: "@app.get('/users')\ndef list_users(): ..."},
		},
		Imports: []models.Import{
			{FilePath: "app/main.py", Module: "app.db", IsFromImport: true, ImportedNames: []string{"get_session"}},
			{FilePath: "app/main.py", Module: "app.models", IsFromImport: true},
			{FilePath: "src/api.js", Module: "./util", IsFromImport: true},
			{FilePath: "app/main.py", Module: "os"},
		},
		Calls: []models.CallEdge{
			{FilePath: "app/main.py", CallerQName: "app/main.py:main", CalleeExpression: "get_session", Line: 11},
			{FilePath: "app/main.py", CallerQName: "app/main.py:main", CalleeExpression: "session.run", Line: 12},
			{FilePath: "app/main.py", CallerQName: "app/main.py:module", CalleeExpression: "main", Line: 30},
		},
	}
	return parse, files
}

func TestBuild_ImportGraph(t *testing.T) {
	parse, files := fixtureParse()
	idx := Build(parse, files)

	assert.ElementsMatch(t, []string{"app/db.py", "app/models/__init__.py"}, idx.Imports("app/main.py"))
	assert.Equal(t, []string{"app/main.py"}, idx.ImportedBy("app/db.py"))

	// JS relative import resolves through the extension candidates.
	assert.Equal(t, []string{"src/util.ts"}, idx.Imports("src/api.js"))

	// stdlib / external modules resolve to nothing.
	assert.NotContains(t, idx.Imports("app/main.py"), "os")
}

func TestBuild_CallGraph(t *testing.T) {
	parse, files := fixtureParse()
	idx := Build(parse, files)

	callees := idx.Calls("app/main.py:main")
	assert.Contains(t, callees, "app/db.py:get_session")
	// Dotted expression prefers the method over the same-named function.
	assert.Contains(t, callees, "app/db.py:Session.run")
	assert.NotContains(t, callees, "src/util.ts:run")

	assert.Equal(t, []string{"app/main.py:main"}, idx.Callers("app/db.py:get_session"))
	assert.Contains(t, idx.Callers("app/main.py:main"), "app/main.py:module")
}

func TestBuild_UnresolvedCallKeepsRawExpression(t *testing.T) {
	parse := &treesitter.ParseResult{
		Symbols: []models.Symbol{
			{Kind: models.SymbolFunction, Name: "handler", QualifiedName: "app.py:handler", FilePath: "app.py", LineStart: 1},
		},
		Calls: []models.CallEdge{
			{FilePath: "app.py", CallerQName: "app.py:handler", CalleeExpression: "requests.get", Line: 2},
		},
	}
	idx := Build(parse, []string{"app.py"})

	// External callees stay in the graph under the raw expression.
	assert.Equal(t, []string{"requests.get"}, idx.Calls("app.py:handler"))
	assert.Equal(t, []string{"app.py:handler"}, idx.Callers("requests.get"))
}

func TestResolveRelative_PythonDots(t *testing.T) {
	files := []string{"pkg/models/user.py", "pkg/services/auth.py"}
	idx := Build(&treesitter.ParseResult{
		Imports: []models.Import{
			{FilePath: "pkg/services/auth.py", Module: "..models.user", IsFromImport: true},
		},
	}, files)

	assert.Equal(t, []string{"pkg/models/user.py"}, idx.Imports("pkg/services/auth.py"))
}

func TestEntryPoints(t *testing.T) {
	parse, files := fixtureParse()
	idx := Build(parse, files)

	eps := idx.EntryPoints()
	var names []string
	for _, e := range eps {
		names = append(names, e.QualifiedName)
	}

	// "main" qualifies even though the module-level statement calls it.
	assert.Contains(t, names, "app/main.py:main")
	// Decorator marker in the body qualifies regardless of name.
	assert.Contains(t, names, "src/api.js:list_users")
	// Plain helpers do not.
	assert.NotContains(t, names, "app/db.py:get_session")
}

func TestTopLevelSymbols(t *testing.T) {
	parse, files := fixtureParse()
	idx := Build(parse, files)

	top := idx.TopLevelSymbols(4)
	require.NotEmpty(t, top)

	// Classes come first, then functions ranked by caller count.
	assert.Equal(t, "app/db.py:Session", top[0].QualifiedName)
	for _, sym := range top {
		assert.NotEqual(t, models.SymbolMethod, sym.Kind)
	}
	assert.LessOrEqual(t, len(top), 4)
}

func TestTraceFlow_DepthAndCycles(t *testing.T) {
	var symbols []models.Symbol
	var calls []models.CallEdge
	// Chain f0 -> f1 -> ... -> f9 plus a back edge f3 -> f0.
	for i := 0; i < 10; i++ {
		q := fmt.Sprintf("a.py:f%d", i)
		symbols = append(symbols, models.Symbol{
			Kind: models.SymbolFunction, Name: fmt.Sprintf("f%d", i),
			QualifiedName: q, FilePath: "a.py", LineStart: i + 1,
		})
		if i > 0 {
			calls = append(calls, models.CallEdge{
				FilePath: "a.py", CallerQName: fmt.Sprintf("a.py:f%d", i-1),
				CalleeExpression: fmt.Sprintf("f%d", i),
			})
		}
	}
	calls = append(calls, models.CallEdge{
		FilePath: "a.py", CallerQName: "a.py:f3", CalleeExpression: "f0",
	})

	idx := Build(&treesitter.ParseResult{Symbols: symbols, Calls: calls}, []string{"a.py"})

	root := idx.TraceFlow("a.py:f0")
	require.NotNil(t, root)

	depth := 0
	for node := root; len(node.Callees) > 0; node = node.Callees[0] {
		depth = node.Callees[0].Depth
	}
	assert.Equal(t, maxTraceDepth, depth)

	assert.Nil(t, idx.TraceFlow("a.py:missing"))
}

func TestTraceFlow_BranchingCap(t *testing.T) {
	symbols := []models.Symbol{{
		Kind: models.SymbolFunction, Name: "hub", QualifiedName: "h.py:hub", FilePath: "h.py",
	}}
	var calls []models.CallEdge
	for i := 0; i < 25; i++ {
		q := fmt.Sprintf("h.py:leaf%02d", i)
		symbols = append(symbols, models.Symbol{
			Kind: models.SymbolFunction, Name: fmt.Sprintf("leaf%02d", i), QualifiedName: q, FilePath: "h.py",
		})
		calls = append(calls, models.CallEdge{
			FilePath: "h.py", CallerQName: "h.py:hub", CalleeExpression: fmt.Sprintf("leaf%02d", i),
		})
	}

	idx := Build(&treesitter.ParseResult{Symbols: symbols, Calls: calls}, []string{"h.py"})
	root := idx.TraceFlow("h.py:hub")
	require.NotNil(t, root)
	assert.Len(t, root.Callees, maxTraceBranching)
}

func TestSearch(t *testing.T) {
	parse, files := fixtureParse()
	idx := Build(parse, files)

	hits := idx.Search("session", 0)
	var names []string
	for _, h := range hits {
		names = append(names, h.QualifiedName)
	}
	assert.Contains(t, names, "app/db.py:Session")
	assert.Contains(t, names, "app/db.py:get_session")

	assert.Len(t, idx.Search("run", 1), 1)
	assert.Empty(t, idx.Search("nonexistent_xyz", 0))
}
