package ingestion

import (
	"os"
	"path/filepath"
	"strings"
)

// Skip reasons recorded by the coverage tracker. binary and
// vendor_or_build_dir are excluded from the discoverable denominator.
const (
	SkipBinary          = "binary"
	SkipVendorOrBuild   = "vendor_or_build_dir"
	SkipTooLarge        = "too_large"
	SkipMinifiedBundle  = "minified_or_bundle"
	SkipUnsupportedLang = "unsupported_language"
)

// DefaultMaxFileBytes is the per-file parse size limit.
const DefaultMaxFileBytes = 1024 * 1024

var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".ico": true,
	".svg": true, ".webp": true, ".pdf": true, ".zip": true, ".tar": true,
	".gz": true, ".bz2": true, ".7z": true, ".rar": true, ".exe": true,
	".dll": true, ".so": true, ".dylib": true, ".bin": true, ".dat": true,
	".db": true, ".sqlite": true, ".woff": true, ".woff2": true, ".ttf": true,
	".eot": true, ".otf": true, ".mp3": true, ".mp4": true, ".avi": true,
	".mov": true, ".wasm": true, ".pyc": true, ".class": true, ".jar": true,
}

var vendorDirNames = []string{
	"node_modules", "vendor", "dist", "build", ".git", "__pycache__",
	".venv", "venv", "coverage", ".next", ".nuxt", "out", "target",
	".cache", ".pytest_cache", ".tox", ".idea", ".vscode",
}

var minifiedSuffixes = []string{".min.js", ".min.css", ".bundle.js", ".map"}

// Languages with a first-class AST path.
var languageByExtension = map[string]string{
	".py":  "python",
	".pyi": "python",
	".pyw": "python",
	".js":  "javascript",
	".jsx": "javascript",
	".mjs": "javascript",
	".cjs": "javascript",
	".ts":  "typescript",
	".tsx": "typescript",
	".mts": "typescript",
	".cts": "typescript",
}

// Extensions handled only by the regex fallback.
var fallbackExtensions = map[string]string{
	".php":  "php",
	".rb":   "ruby",
	".go":   "go",
	".java": "java",
}

// DiscoveredFile is one file found under the working dir with its triage.
type DiscoveredFile struct {
	Path       string // relative to the working dir
	AbsPath    string
	Language   string
	SizeBytes  int64
	SkipReason string // empty when the file should be parsed
}

// Walker discovers files and triages each against the skip taxonomy.
type Walker struct {
	MaxFileBytes int64
}

// NewWalker creates a walker with the default per-file size limit.
func NewWalker() *Walker {
	return &Walker{MaxFileBytes: DefaultMaxFileBytes}
}

// Discover walks repoPath and returns every regular file with its skip
// triage. Vendor directories are still descended so their files can be
// counted under vendor_or_build_dir.
func (w *Walker) Discover(repoPath string) ([]DiscoveredFile, error) {
	var files []DiscoveredFile

	err := filepath.WalkDir(repoPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are not fatal to discovery
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(repoPath, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return nil
		}

		files = append(files, DiscoveredFile{
			Path:       rel,
			AbsPath:    path,
			Language:   DetectLanguage(rel),
			SizeBytes:  info.Size(),
			SkipReason: w.triage(rel, info.Size()),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// triage returns the skip reason for a path, or "" when it is parseable.
// Order matters: vendor placement beats everything, then binary, size,
// minification, language support.
func (w *Walker) triage(relPath string, size int64) string {
	if inVendorDir(relPath) {
		return SkipVendorOrBuild
	}

	ext := strings.ToLower(filepath.Ext(relPath))
	if binaryExtensions[ext] {
		return SkipBinary
	}

	maxBytes := w.MaxFileBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxFileBytes
	}
	if size > maxBytes {
		return SkipTooLarge
	}

	for _, suffix := range minifiedSuffixes {
		if strings.HasSuffix(relPath, suffix) {
			return SkipMinifiedBundle
		}
	}

	if _, ok := languageByExtension[ext]; ok {
		return ""
	}
	if _, ok := fallbackExtensions[ext]; ok {
		return ""
	}
	return SkipUnsupportedLang
}

// inVendorDir reports whether any path segment is a vendor or build dir.
func inVendorDir(relPath string) bool {
	for _, segment := range strings.Split(relPath, "/") {
		for _, name := range vendorDirNames {
			if segment == name {
				return true
			}
		}
	}
	return false
}

// DetectLanguage returns the language identifier for a path, or "" when
// unsupported. Fallback-only languages are included.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageByExtension[ext]; ok {
		return lang
	}
	if lang, ok := fallbackExtensions[ext]; ok {
		return lang
	}
	return ""
}

// HasASTSupport reports whether the language has a first-class parser.
func HasASTSupport(lang string) bool {
	switch lang {
	case "python", "javascript", "typescript":
		return true
	}
	return false
}
