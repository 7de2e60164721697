package treesitter

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeproof/codeproof-go/internal/models"
)

// extractJSSymbols handles both javascript and typescript trees; the
// grammars share node kinds for everything extracted here.
func extractJSSymbols(node *sitter.Node, code []byte, filePath, parent string, out *[]models.Symbol) {
	eachNamedChild(node, func(child *sitter.Node) bool {
		switch child.Kind() {
		case "function_declaration", "generator_function_declaration":
			extractJSFunction(child, code, filePath, parent, out)
		case "class_declaration":
			extractJSClass(child, code, filePath, parent, out)
		case "lexical_declaration", "variable_declaration":
			extractJSVariableFunctions(child, code, filePath, parent, out)
		case "export_statement":
			extractJSSymbols(child, code, filePath, parent, out)
		default:
			return true
		}
		return true
	})
}

func extractJSFunction(node *sitter.Node, code []byte, filePath, parent string, out *[]models.Symbol) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, code)

	kind := models.SymbolFunction
	if parent != "" {
		kind = models.SymbolMethod
	}

	*out = append(*out, models.Symbol{
		Kind:          kind,
		Name:          name,
		QualifiedName: qualify(filePath, parent, name),
		FilePath:      filePath,
		LineStart:     startLine(node),
		LineEnd:       endLine(node),
		Signature:     "function " + name + nodeText(node.ChildByFieldName("parameters"), code),
		Parent:        parent,
		Visibility:    jsVisibility(name),
		Body:          nodeText(node, code),
	})
}

func extractJSClass(node *sitter.Node, code []byte, filePath, parent string, out *[]models.Symbol) {
	nameNode := node.ChildByFieldName("name")
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
		LineStart:     startLine(node),
		LineEnd:       endLine(node),
		Signature:     "class " + name,
		Parent:        parent,
		Visibility:    models.VisibilityPublic,
		Body:          nodeText(node, code),
	}

	body := node.ChildByFieldName("body")
	var methods []*sitter.Node
	if body != nil {
		eachNamedChild(body, func(member *sitter.Node) bool {
			if member.Kind() == "method_definition" {
				if n := member.ChildByFieldName("name"); n != nil {
					sym.Children = append(sym.Children, nodeText(n, code))
				}
				methods = append(methods, member)
			}
			return true
		})
	}

	*out = append(*out, sym)

	for _, m := range methods {
		nameNode := m.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		mname := nodeText(nameNode, code)
		*out = append(*out, models.Symbol{
			Kind:          models.SymbolMethod,
			Name:          mname,
			QualifiedName: qualify(filePath, qname, mname),
			FilePath:      filePath,
			LineStart:     startLine(m),
			LineEnd:       endLine(m),
			Signature:     mname + nodeText(m.ChildByFieldName("parameters"), code),
			Parent:        qname,
			Visibility:    jsVisibility(mname),
			Body:          nodeText(m, code),
		})
	}
}

// extractJSVariableFunctions picks up `const f = () => {}` and
// `const f = function () {}` declarations.
func extractJSVariableFunctions(node *sitter.Node, code []byte, filePath, parent string, out *[]models.Symbol) {
	eachNamedChild(node, func(decl *sitter.Node) bool {
		if decl.Kind() != "variable_declarator" {
			return true
		}
		value := decl.ChildByFieldName("value")
		if value == nil {
			return true
		}
		k := value.Kind()
		if k != "arrow_function" && k != "function_expression" && k != "function" {
			return true
		}
		nameNode := decl.ChildByFieldName("name")
		if nameNode == nil || nameNode.Kind() != "identifier" {
			return true
		}
		name := nodeText(nameNode, code)

		kind := models.SymbolFunction
		if parent != "" {
			kind = models.SymbolMethod
		}
		*out = append(*out, models.Symbol{
			Kind:          kind,
			Name:          name,
			QualifiedName: qualify(filePath, parent, name),
			FilePath:      filePath,
			LineStart:     startLine(node),
			LineEnd:       endLine(node),
			Signature:     name + nodeText(value.ChildByFieldName("parameters"), code),
			Parent:        parent,
			Visibility:    jsVisibility(name),
			Body:          nodeText(node, code),
		})
		return true
	})
}

func jsVisibility(name string) models.Visibility {
	if strings.HasPrefix(name, "#") || strings.HasPrefix(name, "_") {
		return models.VisibilityPrivate
	}
	return models.VisibilityPublic
}

func extractJSImports(node *sitter.Node, code []byte, filePath string, out *[]models.Import) {
	eachNamedChild(node, func(child *sitter.Node) bool {
		if child.Kind() != "import_statement" {
			return true
		}
		source := child.ChildByFieldName("source")
		if source == nil {
			return true
		}
		imp := models.Import{
			FilePath:     filePath,
			Line:         startLine(child),
			Module:       strings.Trim(nodeText(source, code), `'"`),
			IsFromImport: true,
		}
		eachNamedChild(child, func(clause *sitter.Node) bool {
			if clause.Kind() != "import_clause" {
				return true
			}
			eachNamedChild(clause, func(spec *sitter.Node) bool {
				switch spec.Kind() {
				case "identifier":
					imp.ImportedNames = append(imp.ImportedNames, nodeText(spec, code))
				case "namespace_import":
					eachNamedChild(spec, func(n *sitter.Node) bool {
						if n.Kind() == "identifier" {
							imp.Alias = nodeText(n, code)
							imp.ImportedNames = append(imp.ImportedNames, "*")
						}
						return true
					})
				case "named_imports":
					eachNamedChild(spec, func(n *sitter.Node) bool {
						if n.Kind() == "import_specifier" {
							if nameNode := n.ChildByFieldName("name"); nameNode != nil {
								imp.ImportedNames = append(imp.ImportedNames, nodeText(nameNode, code))
							}
						}
						return true
					})
				}
				return true
			})
			return true
		})
		*out = append(*out, imp)
		return true
	})
}
