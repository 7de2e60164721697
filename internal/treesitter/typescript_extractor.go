package treesitter

import (
	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/codeproof/codeproof-go/internal/models"
)

// extractTSInterfaces adds interface declarations on top of the shared
// javascript extraction. Property and method signature names become the
// interface's children.
func extractTSInterfaces(node *sitter.Node, code []byte, filePath string, out *[]models.Symbol) {
	eachNamedChild(node, func(child *sitter.Node) bool {
		switch child.Kind() {
		case "interface_declaration":
			extractTSInterface(child, code, filePath, out)
		case "export_statement":
			extractTSInterfaces(child, code, filePath, out)
		}
		return true
	})
}

func extractTSInterface(node *sitter.Node, code []byte, filePath string, out *[]models.Symbol) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := nodeText(nameNode, code)

	sym := models.Symbol{
		Kind:          models.SymbolInterface,
		Name:          name,
		QualifiedName: qualify(filePath, "", name),
		FilePath:      filePath,
		LineStart:     startLine(node),
		LineEnd:       endLine(node),
		Signature:     "interface " + name,
		Visibility:    models.VisibilityPublic,
		Body:          nodeText(node, code),
	}

	if body := node.ChildByFieldName("body"); body != nil {
		eachNamedChild(body, func(member *sitter.Node) bool {
			switch member.Kind() {
			case "property_signature", "method_signature":
				if n := member.ChildByFieldName("name"); n != nil {
					sym.Children = append(sym.Children, nodeText(n, code))
				}
			}
			return true
		})
	}

	*out = append(*out, sym)
}
