package index

import (
	"path"
	"sort"
	"strings"

	"github.com/codeproof/codeproof-go/internal/models"
)

// Candidate suffixes tried when mapping a module specifier to a repository
// file. Order matters: the first hit wins.
var absoluteSuffixes = []string{
	".py", "/__init__.py", ".js", ".ts", ".tsx", "/index.js", "/index.ts", "/index.tsx",
}

var relativeSuffixes = []string{
	".py", ".js", ".ts", ".tsx", "/index.js", "/index.ts",
}

// resolveImport maps a module specifier to a repository-relative file path,
// or "" when the module is external or unresolvable.
func (idx *Index) resolveImport(fromFile, module string) string {
	if module == "" {
		return ""
	}

	if strings.HasPrefix(module, ".") {
		return idx.resolveRelative(fromFile, module)
	}

	base := strings.ReplaceAll(module, ".", "/")
	if hit := idx.trySuffixes(base, absoluteSuffixes); hit != "" {
		return hit
	}
	if hit := idx.trySuffixes("src/"+base, absoluteSuffixes); hit != "" {
		return hit
	}
	return ""
}

// resolveRelative handles both JS `./db` specifiers and python relative
// imports like `..models.user`.
func (idx *Index) resolveRelative(fromFile, module string) string {
	dir := path.Dir(fromFile)

	if strings.HasPrefix(module, "./") || strings.HasPrefix(module, "../") {
		base := path.Clean(path.Join(dir, module))
		return idx.trySuffixes(base, relativeSuffixes)
	}

	// Python form: each leading dot past the first pops a directory.
	dots := 0
	for dots < len(module) && module[dots] == '.' {
		dots++
	}
	for i := 1; i < dots; i++ {
		dir = path.Dir(dir)
	}
	rest := strings.ReplaceAll(module[dots:], ".", "/")
	base := dir
	if rest != "" {
		base = path.Join(dir, rest)
	}
	return idx.trySuffixes(base, relativeSuffixes)
}

func (idx *Index) trySuffixes(base string, suffixes []string) string {
	for _, suffix := range suffixes {
		candidate := path.Clean(base + suffix)
		if idx.files[candidate] {
			return candidate
		}
	}
	return ""
}

// resolveCall maps a raw call expression to an indexed symbol. The last
// dotted segment selects candidates; dotted expressions prefer methods,
// bare names prefer functions, and same-file declarations win ties.
func (idx *Index) resolveCall(call models.CallEdge) string {
	expr := call.CalleeExpression
	segment := expr
	dotted := false
	if i := strings.LastIndex(expr, "."); i >= 0 {
		segment = expr[i+1:]
		dotted = true
	}

	candidates := idx.byName[segment]
	if len(candidates) == 0 {
		// Nothing indexed matches: keep the edge under the raw
		// expression so callers and flow traces still see it.
		return expr
	}

	preferred := models.SymbolFunction
	if dotted {
		preferred = models.SymbolMethod
	}

	best := ""
	bestScore := -1
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	for _, qname := range sorted {
		sym := idx.symbols[qname]
		score := 0
		if sym.Kind == preferred {
			score += 2
		}
		if sym.FilePath == call.FilePath {
			score++
		}
		if score > bestScore {
			best = qname
			bestScore = score
		}
	}
	return best
}
