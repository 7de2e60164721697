package treesitter

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codeproof/codeproof-go/internal/models"
)

// Regex fallback extraction. Used when a grammar failed to load, when
// tree-sitter could not parse a file, and for languages without first-class
// AST support. Fallback symbols carry no body and no docstring, which
// downstream consumers treat as reduced evidence.

var (
	pyDefPattern   = regexp.MustCompile(`^(\s*)def\s+(\w+)\s*\(`)
	pyClassPattern = regexp.MustCompile(`^(\s*)class\s+(\w+)`)
	pyImportLine   = regexp.MustCompile(`^import\s+([\w.]+)(?:\s+as\s+(\w+))?`)
	pyFromLine     = regexp.MustCompile(`^from\s+([\w.]+)\s+import\s+(.+)`)

	jsFuncPattern  = regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s*\*?\s*(\w+)\s*\(`)
	jsClassPattern = regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`)
	jsArrowPattern = regexp.MustCompile(`^\s*(?:export\s+)?(?:const|let|var)\s+(\w+)\s*=\s*(?:async\s*)?(?:\([^)]*\)|\w+)\s*=>`)
	jsImportLine   = regexp.MustCompile(`^\s*import\s+.*?from\s+['"]([^'"]+)['"]`)

	phpFuncPattern  = regexp.MustCompile(`^\s*(?:public\s+|private\s+|protected\s+|static\s+)*function\s+(\w+)\s*\(`)
	phpClassPattern = regexp.MustCompile(`^\s*(?:abstract\s+|final\s+)?class\s+(\w+)`)

	rubyDefPattern   = regexp.MustCompile(`^\s*def\s+([\w.?!]+)`)
	rubyClassPattern = regexp.MustCompile(`^\s*class\s+(\w+)`)

	goFuncPattern   = regexp.MustCompile(`^func\s+(?:\([^)]+\)\s+)?(\w+)\s*\(`)
	goTypePattern   = regexp.MustCompile(`^type\s+(\w+)\s+(?:struct|interface)\b`)
	javaClassRegexp = regexp.MustCompile(`^\s*(?:public\s+|final\s+|abstract\s+)*(?:class|interface|enum)\s+(\w+)`)
)

func parsePythonFallback(filePath, content string) *FileResult {
	result := &FileResult{}
	parent := "" // qualified name of the current top-level class

	for i, line := range strings.Split(content, "\n") {
		lineNo := i + 1

		if m := pyClassPattern.FindStringSubmatch(line); m != nil {
			name := m[2]
			if m[1] == "" {
				parent = filePath + ":" + name
				result.Symbols = append(result.Symbols, fallbackSymbol(
					models.SymbolClass, name, parent, filePath, "", lineNo, classVisibility(name)))
			} else {
				result.Symbols = append(result.Symbols, fallbackSymbol(
					models.SymbolClass, name, qualify(filePath, parent, name), filePath, parent, lineNo, classVisibility(name)))
			}
			continue
		}

		if m := pyDefPattern.FindStringSubmatch(line); m != nil {
			name := m[2]
			if m[1] == "" {
				parent = ""
				result.Symbols = append(result.Symbols, fallbackSymbol(
					models.SymbolFunction, name, filePath+":"+name, filePath, "", lineNo, functionVisibility(name)))
			} else if parent != "" {
				result.Symbols = append(result.Symbols, fallbackSymbol(
					models.SymbolMethod, name, qualify(filePath, parent, name), filePath, parent, lineNo, functionVisibility(name)))
			}
			continue
		}

		if m := pyImportLine.FindStringSubmatch(line); m != nil {
			result.Imports = append(result.Imports, models.Import{
				FilePath: filePath, Line: lineNo, Module: m[1], Alias: m[2],
			})
			continue
		}
		if m := pyFromLine.FindStringSubmatch(line); m != nil {
			imp := models.Import{FilePath: filePath, Line: lineNo, Module: m[1], IsFromImport: true}
			for _, part := range strings.Split(m[2], ",") {
				name := strings.TrimSpace(strings.TrimSuffix(part, "("))
				if i := strings.Index(name, " as "); i >= 0 {
					name = name[:i]
				}
				name = strings.Trim(name, "() \t")
				if name != "" && name != "\\" {
					imp.ImportedNames = append(imp.ImportedNames, name)
				}
			}
			result.Imports = append(result.Imports, imp)
		}
	}
	return result
}

func parseJSFallback(filePath, content string) *FileResult {
	result := &FileResult{}

	for i, line := range strings.Split(content, "\n") {
		lineNo := i + 1

		if m := jsClassPattern.FindStringSubmatch(line); m != nil {
			result.Symbols = append(result.Symbols, fallbackSymbol(
				models.SymbolClass, m[1], filePath+":"+m[1], filePath, "", lineNo, models.VisibilityPublic))
			continue
		}
		if m := jsFuncPattern.FindStringSubmatch(line); m != nil {
			result.Symbols = append(result.Symbols, fallbackSymbol(
				models.SymbolFunction, m[1], filePath+":"+m[1], filePath, "", lineNo, jsVisibility(m[1])))
			continue
		}
		if m := jsArrowPattern.FindStringSubmatch(line); m != nil {
			result.Symbols = append(result.Symbols, fallbackSymbol(
				models.SymbolFunction, m[1], filePath+":"+m[1], filePath, "", lineNo, jsVisibility(m[1])))
			continue
		}
		if m := jsImportLine.FindStringSubmatch(line); m != nil {
			result.Imports = append(result.Imports, models.Import{
				FilePath: filePath, Line: lineNo, Module: m[1], IsFromImport: true,
			})
		}
	}
	return result
}

// parseGenericFallback covers languages with no grammar wired in. The
// extension picks the pattern set; unknown extensions yield nothing.
func parseGenericFallback(filePath, content string) *FileResult {
	result := &FileResult{}

	type pattern struct {
		re   *regexp.Regexp
		kind models.SymbolKind
	}
	var patterns []pattern

	switch filepath.Ext(filePath) {
	case ".php":
		patterns = []pattern{
			{phpClassPattern, models.SymbolClass},
			{phpFuncPattern, models.SymbolFunction},
		}
	case ".rb":
		patterns = []pattern{
			{rubyClassPattern, models.SymbolClass},
			{rubyDefPattern, models.SymbolFunction},
		}
	case ".go":
		patterns = []pattern{
			{goTypePattern, models.SymbolClass},
			{goFuncPattern, models.SymbolFunction},
		}
	case ".java":
		patterns = []pattern{
			{javaClassRegexp, models.SymbolClass},
		}
	default:
		return result
	}

	for i, line := range strings.Split(content, "\n") {
		for _, p := range patterns {
			if m := p.re.FindStringSubmatch(line); m != nil {
				name := m[1]
				result.Symbols = append(result.Symbols, fallbackSymbol(
					p.kind, name, filePath+":"+name, filePath, "", i+1, models.VisibilityPublic))
				break
			}
		}
	}
	return result
}

func fallbackSymbol(kind models.SymbolKind, name, qname, filePath, parent string, line int, vis models.Visibility) models.Symbol {
	return models.Symbol{
		Kind:          kind,
		Name:          name,
		QualifiedName: qname,
		FilePath:      filePath,
		LineStart:     line,
		LineEnd:       line,
		Parent:        parent,
		Visibility:    vis,
	}
}
