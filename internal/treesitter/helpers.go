package treesitter

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// nodeText extracts the source text spanned by a node.
func nodeText(node *sitter.Node, code []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start >= uint(len(code)) || end > uint(len(code)) || start > end {
		return ""
	}
	return string(code[start:end])
}

// startLine returns the 1-based line of a node.
func startLine(node *sitter.Node) int {
	return int(node.StartPosition().Row) + 1
}

// endLine returns the 1-based last line of a node.
func endLine(node *sitter.Node) int {
	return int(node.EndPosition().Row) + 1
}

// eachChild iterates all children of a node, stopping early when fn
// returns false.
func eachChild(node *sitter.Node, fn func(child *sitter.Node) bool) {
	count := node.ChildCount()
	for i := uint(0); i < count; i++ {
		child := node.Child(i)
		if child == nil {
			continue
		}
		if !fn(child) {
			return
		}
	}
}

// eachNamedChild iterates named children only (skips punctuation).
func eachNamedChild(node *sitter.Node, fn func(child *sitter.Node) bool) {
	count := node.NamedChildCount()
	for i := uint(0); i < count; i++ {
		child := node.NamedChild(i)
		if child == nil {
			continue
		}
		if !fn(child) {
			return
		}
	}
}

// stripStringQuotes removes Python string delimiters from a docstring
// literal. Triple quotes are tried before single-character quotes.
func stripStringQuotes(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	for _, q := range []string{`"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2 {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}

// lastDottedSegment returns the trailing identifier of a dotted name,
// e.g. "self.save" yields "save".
func lastDottedSegment(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}
