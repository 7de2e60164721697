package treesitter

import (
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/codeproof/codeproof-go/internal/logging"
)

// LanguageParser wraps a tree-sitter parser with a language grammar.
// IMPORTANT: Always call Close() to prevent memory leaks (CGO requirement)
type LanguageParser struct {
	parser   *sitter.Parser
	language *sitter.Language
	langName string
}

// NewLanguageParser creates a parser for the specified language.
// Supported languages: javascript, typescript, python
func NewLanguageParser(lang string) (*LanguageParser, error) {
	parser := sitter.NewParser()
	if parser == nil {
		return nil, fmt.Errorf("failed to create tree-sitter parser")
	}

	var language *sitter.Language
	switch lang {
	case "javascript":
		language = sitter.NewLanguage(tree_sitter_javascript.Language())
	case "typescript":
		language = sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case "python":
		language = sitter.NewLanguage(tree_sitter_python.Language())
	default:
		parser.Close()
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}

	if err := parser.SetLanguage(language); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set language %s: %w", lang, err)
	}

	return &LanguageParser{
		parser:   parser,
		language: language,
		langName: lang,
	}, nil
}

// Close releases parser resources (REQUIRED - CGO memory management)
func (lp *LanguageParser) Close() {
	if lp.parser != nil {
		lp.parser.Close()
	}
}

// Parse parses source code and returns the syntax tree.
// Caller must call tree.Close() when done.
func (lp *LanguageParser) Parse(code []byte) (*sitter.Tree, error) {
	tree := lp.parser.Parse(code, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse code")
	}
	return tree, nil
}

// Parser extracts symbols, imports, and call edges from source files.
// Languages with a grammar get a full AST pass; everything else goes
// through the regex fallback, which never populates symbol bodies.
type Parser struct {
	parsers map[string]*LanguageParser
	log     *logging.Logger
}

// NewParser initializes grammars for python, javascript, and typescript.
// Grammar load failures are not fatal: the affected language falls back to
// regex extraction and the scan is flagged degraded.
func NewParser(log *logging.Logger) *Parser {
	p := &Parser{
		parsers: make(map[string]*LanguageParser),
		log:     log.WithComponent("parser"),
	}

	for _, lang := range []string{"python", "javascript", "typescript"} {
		lp, err := NewLanguageParser(lang)
		if err != nil {
			p.log.Warn("grammar unavailable, using regex fallback", "language", lang, "error", err)
			continue
		}
		p.parsers[lang] = lp
	}

	p.log.Info("parser initialized", "ast_languages", len(p.parsers))
	return p
}

// Available reports whether every first-class language has its grammar.
func (p *Parser) Available() bool {
	return len(p.parsers) == 3
}

// Close releases all grammar parsers.
func (p *Parser) Close() {
	for _, lp := range p.parsers {
		lp.Close()
	}
}

// ParseFile extracts entities from one file. filePath must be relative to
// the repository root; it becomes the prefix of every qualified name.
func (p *Parser) ParseFile(filePath, content, language string) (*FileResult, error) {
	switch language {
	case "python":
		return p.parsePython(filePath, content)
	case "javascript", "typescript":
		return p.parseJavaScript(filePath, content, language)
	default:
		return parseGenericFallback(filePath, content), nil
	}
}

func (p *Parser) parsePython(filePath, content string) (*FileResult, error) {
	lp, ok := p.parsers["python"]
	if !ok {
		return parsePythonFallback(filePath, content), nil
	}

	code := []byte(content)
	tree, err := lp.Parse(code)
	if err != nil {
		p.log.Warn("tree-sitter parse failed, falling back", "file", filePath, "error", err)
		return parsePythonFallback(filePath, content), nil
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &FileResult{}
	extractPythonSymbols(root, code, filePath, "", &result.Symbols)
	extractPythonImports(root, code, filePath, &result.Imports)
	extractPythonCalls(root, code, filePath, "", &result.Calls)
	return result, nil
}

func (p *Parser) parseJavaScript(filePath, content, language string) (*FileResult, error) {
	lp, ok := p.parsers[language]
	if !ok {
		lp, ok = p.parsers["javascript"]
	}
	if !ok {
		return parseJSFallback(filePath, content), nil
	}

	code := []byte(content)
	tree, err := lp.Parse(code)
	if err != nil {
		p.log.Warn("tree-sitter parse failed, falling back", "file", filePath, "error", err)
		return parseJSFallback(filePath, content), nil
	}
	defer tree.Close()

	root := tree.RootNode()
	result := &FileResult{}
	// No call edges for JS/TS: dynamic dispatch makes syntactic call
	// targets unresolvable without type information, so the call graph
	// covers python only.
	extractJSSymbols(root, code, filePath, "", &result.Symbols)
	extractJSImports(root, code, filePath, &result.Imports)
	if language == "typescript" {
		extractTSInterfaces(root, code, filePath, &result.Symbols)
	}
	return result, nil
}
