package treesitter

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeproof/codeproof-go/internal/models"
)

// extractPythonSymbols walks definitions recursively. parent is the
// enclosing symbol's qualified name, empty at module level.
func extractPythonSymbols(node *sitter.Node, code []byte, filePath, parent string, out *[]models.Symbol) {
	eachNamedChild(node, func(child *sitter.Node) bool {
		switch child.Kind() {
		case "function_definition":
			extractPythonFunction(child, child, code, filePath, parent, out)
		case "class_definition":
			extractPythonClass(child, child, code, filePath, parent, out)
		case "decorated_definition":
			// The decorated wrapper owns the span so the body keeps the
			// decorator lines; entry-point detection depends on them.
			if def := child.ChildByFieldName("definition"); def != nil {
				switch def.Kind() {
				case "function_definition":
					extractPythonFunction(def, child, code, filePath, parent, out)
				case "class_definition":
					extractPythonClass(def, child, code, filePath, parent, out)
				}
			}
		default:
			// Top-level control flow (if __name__ guards, try blocks) can
			// still contain definitions.
			extractPythonSymbols(child, code, filePath, parent, out)
		}
		return true
	})
}

func extractPythonFunction(def, span *sitter.Node, code []byte, filePath, parent string, out *[]models.Symbol) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, code)
	qname := qualify(filePath, parent, name)

	kind := models.SymbolFunction
	if parent != "" {
		kind = models.SymbolMethod
	}

	sig := "def " + name + nodeText(def.ChildByFieldName("parameters"), code)

	*out = append(*out, models.Symbol{
		Kind:          kind,
		Name:          name,
		QualifiedName: qname,
		FilePath:      filePath,
		LineStart:     startLine(span),
		LineEnd:       endLine(span),
		Signature:     sig,
		Docstring:     pythonDocstring(def, code),
		Parent:        parent,
		Visibility:    functionVisibility(name),
		Body:          nodeText(span, code),
	})

	// Nested defs qualify under this function.
	if body := def.ChildByFieldName("body"); body != nil {
		extractPythonSymbols(body, code, filePath, qname, out)
	}
}

func extractPythonClass(def, span *sitter.Node, code []byte, filePath, parent string, out *[]models.Symbol) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, code)
	qname := qualify(filePath, parent, name)

	sym := models.Symbol{
		Kind:          models.SymbolClass,
		Name:          name,
		QualifiedName: qname,
		FilePath:      filePath,
		LineStart:     startLine(span),
		LineEnd:       endLine(span),
		Signature:     "class " + name,
		Docstring:     pythonDocstring(def, code),
		Parent:        parent,
		Visibility:    classVisibility(name),
		Body:          nodeText(span, code),
	}

	body := def.ChildByFieldName("body")
	if body != nil {
		eachNamedChild(body, func(member *sitter.Node) bool {
			target := member
			if member.Kind() == "decorated_definition" {
				target = member.ChildByFieldName("definition")
			}
			if target != nil && target.Kind() == "function_definition" {
				if n := target.ChildByFieldName("name"); n != nil {
					sym.Children = append(sym.Children, nodeText(n, code))
				}
			}
			return true
		})
	}

	*out = append(*out, sym)

	if body != nil {
		extractPythonSymbols(body, code, filePath, qname, out)
	}
}

// pythonDocstring reads the first body statement when it is a bare string
// literal, with quote characters stripped.
func pythonDocstring(def *sitter.Node, code []byte) string {
	body := def.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	expr := first.NamedChild(0)
	if expr == nil || expr.Kind() != "string" {
		return ""
	}
	return stripStringQuotes(nodeText(expr, code))
}

func extractPythonImports(node *sitter.Node, code []byte, filePath string, out *[]models.Import) {
	eachNamedChild(node, func(child *sitter.Node) bool {
		switch child.Kind() {
		case "import_statement":
			eachNamedChild(child, func(spec *sitter.Node) bool {
				switch spec.Kind() {
				case "dotted_name":
					*out = append(*out, models.Import{
						FilePath: filePath,
						Line:     startLine(child),
						Module:   nodeText(spec, code),
					})
				case "aliased_import":
					*out = append(*out, models.Import{
						FilePath: filePath,
						Line:     startLine(child),
						Module:   nodeText(spec.ChildByFieldName("name"), code),
						Alias:    nodeText(spec.ChildByFieldName("alias"), code),
					})
				}
				return true
			})
		case "import_from_statement":
			module := nodeText(child.ChildByFieldName("module_name"), code)
			imp := models.Import{
				FilePath:     filePath,
				Line:         startLine(child),
				Module:       module,
				IsFromImport: true,
			}
			eachNamedChild(child, func(spec *sitter.Node) bool {
				switch spec.Kind() {
				case "dotted_name":
					name := nodeText(spec, code)
					if name != module {
						imp.ImportedNames = append(imp.ImportedNames, name)
					}
				case "aliased_import":
					imp.ImportedNames = append(imp.ImportedNames, nodeText(spec.ChildByFieldName("name"), code))
				case "wildcard_import":
					imp.ImportedNames = append(imp.ImportedNames, "*")
				}
				return true
			})
			*out = append(*out, imp)
		default:
			// Imports inside try/except version shims still count.
			if child.Kind() == "try_statement" || child.Kind() == "if_statement" || child.Kind() == "block" {
				extractPythonImports(child, code, filePath, out)
			}
		}
		return true
	})
}

// extractPythonCalls records every call site with the qualified name of
// the enclosing function as caller; module-level calls get "file:module".
func extractPythonCalls(node *sitter.Node, code []byte, filePath, parent string, out *[]models.CallEdge) {
	pythonCallWalk(node, code, filePath, filePath+":module", parent, out)
}

func pythonCallWalk(node *sitter.Node, code []byte, filePath, caller, parent string, out *[]models.CallEdge) {
	eachNamedChild(node, func(child *sitter.Node) bool {
		switch child.Kind() {
		case "function_definition":
			name := nodeText(child.ChildByFieldName("name"), code)
			qname := qualify(filePath, parent, name)
			if body := child.ChildByFieldName("body"); body != nil {
				pythonCallWalk(body, code, filePath, qname, qname, out)
			}
		case "class_definition":
			name := nodeText(child.ChildByFieldName("name"), code)
			qname := qualify(filePath, parent, name)
			if body := child.ChildByFieldName("body"); body != nil {
				pythonCallWalk(body, code, filePath, caller, qname, out)
			}
		case "call":
			if fn := child.ChildByFieldName("function"); fn != nil {
				*out = append(*out, models.CallEdge{
					FilePath:         filePath,
					Line:             startLine(child),
					CallerQName:      caller,
					CalleeExpression: nodeText(fn, code),
				})
			}
			pythonCallWalk(child, code, filePath, caller, parent, out)
		default:
			pythonCallWalk(child, code, filePath, caller, parent, out)
		}
		return true
	})
}
