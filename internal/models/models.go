package models

import (
	"time"
)

// IndexStatus tracks the lifecycle of a repository's searchable index.
type IndexStatus string

const (
	IndexStatusPending  IndexStatus = "pending"
	IndexStatusIndexing IndexStatus = "indexing"
	IndexStatusReady    IndexStatus = "ready"
	IndexStatusFailed   IndexStatus = "failed"
)

// Repository represents a connected source repository
type Repository struct {
	ID                string      `json:"id" db:"id"`
	Owner             string      `json:"owner" db:"owner"`
	Name              string      `json:"name" db:"name"`
	FullName          string      `json:"full_name" db:"full_name"`
	URL               string      `json:"url" db:"url"`
	DefaultBranch     string      `json:"default_branch" db:"default_branch"`
	InstallID         int64       `json:"install_id" db:"install_id"`
	IndexStatus       IndexStatus `json:"index_status" db:"index_status"`
	IndexError        string      `json:"index_error" db:"index_error"`
	LastIndexedCommit string      `json:"last_indexed_commit" db:"last_indexed_commit"`
	FileCount         int         `json:"file_count" db:"file_count"`
	SymbolCount       int         `json:"symbol_count" db:"symbol_count"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`
	DeletedAt         *time.Time  `json:"deleted_at" db:"deleted_at"`
}

// ScanStatus is the terminal or in-flight state of a ScanRun.
type ScanStatus string

const (
	ScanStatusQueued    ScanStatus = "queued"
	ScanStatusRunning   ScanStatus = "running"
	ScanStatusCompleted ScanStatus = "completed"
	ScanStatusDegraded  ScanStatus = "degraded"
	ScanStatusFailed    ScanStatus = "failed"
)

// ScanRun is an immutable record of one scan attempt. Two runs with the same
// (repo, commit, config hash) triple are the same run.
type ScanRun struct {
	ID            string     `json:"id" db:"id"`
	RepoID        string     `json:"repo_id" db:"repo_id"`
	CommitSHA     string     `json:"commit_sha" db:"commit_sha"`
	ConfigHash    string     `json:"config_hash" db:"config_hash"`
	Status        ScanStatus `json:"status" db:"status"`
	DegradedModes []string   `json:"degraded_modes"`
	Error         string     `json:"error" db:"error"`
	StartedAt     *time.Time `json:"started_at" db:"started_at"`
	FinishedAt    *time.Time `json:"finished_at" db:"finished_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// FileSnapshot captures one file as seen by a scan.
type FileSnapshot struct {
	ID          string `json:"id" db:"id"`
	ScanRunID   string `json:"scan_run_id" db:"scan_run_id"`
	Path        string `json:"path" db:"path"`
	Language    string `json:"language" db:"language"`
	ContentHash string `json:"content_hash" db:"content_hash"`
	SizeBytes   int64  `json:"size_bytes" db:"size_bytes"`
	IsBinary    bool   `json:"is_binary" db:"is_binary"`
}

// SymbolKind enumerates the symbol shapes the parser emits.
type SymbolKind string

const (
	SymbolClass     SymbolKind = "class"
	SymbolInterface SymbolKind = "interface"
	SymbolFunction  SymbolKind = "function"
	SymbolMethod    SymbolKind = "method"
	SymbolConstant  SymbolKind = "constant"
)

// Visibility is derived from naming conventions when the language has no
// explicit modifier (leading underscore, dunder).
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityProtected Visibility = "protected"
	VisibilityPrivate   Visibility = "private"
	VisibilityMagic     Visibility = "magic"
)

// Symbol is one extracted declaration. QualifiedName is unique within a
// parse result; Parent is the enclosing symbol's qualified name for nested
// declarations. Body is empty when the regex fallback produced the symbol.
type Symbol struct {
	Kind          SymbolKind `json:"kind" db:"kind"`
	Name          string     `json:"name" db:"name"`
	QualifiedName string     `json:"qualified_name" db:"qualified_name"`
	FilePath      string     `json:"file_path" db:"file_path"`
	LineStart     int        `json:"line_start" db:"line_start"`
	LineEnd       int        `json:"line_end" db:"line_end"`
	Signature     string     `json:"signature" db:"signature"`
	Docstring     string     `json:"docstring" db:"docstring"`
	Parent        string     `json:"parent" db:"parent"`
	Visibility    Visibility `json:"visibility" db:"visibility"`
	Body          string     `json:"body,omitempty" db:"body"`
	Children      []string   `json:"children,omitempty"`
}

// Import is one import statement.
type Import struct {
	FilePath      string   `json:"file_path"`
	Line          int      `json:"line"`
	Module        string   `json:"module"`
	Alias         string   `json:"alias"`
	IsFromImport  bool     `json:"is_from_import"`
	ImportedNames []string `json:"imported_names"`
}

// CallEdge records a call site before resolution. CalleeExpression is the
// raw syntactic target; the indexer resolves it to a qualified name.
type CallEdge struct {
	FilePath         string `json:"file_path"`
	Line             int    `json:"line"`
	CallerQName      string `json:"caller_qname"`
	CalleeExpression string `json:"callee_expression"`
}

// EvidenceSnippet is the redacted proof attached to a finding instance or
// citation. SnippetHash is the SHA-256 of the redacted text.
type EvidenceSnippet struct {
	FilePath      string `json:"file_path" db:"file_path"`
	StartLine     int    `json:"start_line" db:"start_line"`
	EndLine       int    `json:"end_line" db:"end_line"`
	SnippetText   string `json:"snippet_text" db:"snippet_text"`
	SnippetHash   string `json:"snippet_hash" db:"snippet_hash"`
	ContextBefore string `json:"context_before" db:"context_before"`
	ContextAfter  string `json:"context_after" db:"context_after"`
}

// Severity ordering: critical > high > medium > low > info.
type FindingSeverity string

const (
	SeverityCritical FindingSeverity = "critical"
	SeverityHigh     FindingSeverity = "high"
	SeverityMedium   FindingSeverity = "medium"
	SeverityLow      FindingSeverity = "low"
	SeverityInfo     FindingSeverity = "info"
)

// Confidence ordering: high > medium > low > unknown.
type FindingConfidence string

const (
	ConfidenceHigh    FindingConfidence = "high"
	ConfidenceMedium  FindingConfidence = "medium"
	ConfidenceLow     FindingConfidence = "low"
	ConfidenceUnknown FindingConfidence = "unknown"
)

// FindingMatch is a raw analyzer hit before scoring and deduplication.
type FindingMatch struct {
	RuleID            string                 `json:"rule_id"`
	Category          string                 `json:"category"`
	Title             string                 `json:"title"`
	Description       string                 `json:"description"`
	Severity          FindingSeverity        `json:"severity"`
	Confidence        FindingConfidence      `json:"confidence"`
	Remediation       string                 `json:"remediation"`
	Tags              []string               `json:"tags"`
	Impact            map[string]interface{} `json:"impact"`
	Likelihood        map[string]interface{} `json:"likelihood"`
	FilePath          string                 `json:"file_path"`
	StartLine         int                    `json:"start_line"`
	EndLine           int                    `json:"end_line"`
	Snippet           string                 `json:"snippet"`
	Symbol            string                 `json:"symbol"`
	RuleTriggerReason string                 `json:"rule_trigger_reason"`
	NormalizedSource  string                 `json:"normalized_source"`
	NormalizedSink    string                 `json:"normalized_sink"`
	Metadata          map[string]string      `json:"metadata,omitempty"`
}

// Finding is the deduplicated root record. Instances carry the individual
// evidence locations that collapsed into it.
type Finding struct {
	ID                  string                 `json:"id" db:"id"`
	ScanRunID           string                 `json:"scan_run_id" db:"scan_run_id"`
	RuleID              string                 `json:"rule_id" db:"rule_id"`
	Category            string                 `json:"category" db:"category"`
	Title               string                 `json:"title" db:"title"`
	Description         string                 `json:"description" db:"description"`
	Severity            FindingSeverity        `json:"severity" db:"severity"`
	Confidence          FindingConfidence      `json:"confidence" db:"confidence"`
	ConfidenceRationale []string               `json:"confidence_rationale"`
	ImpactScore         float64                `json:"impact_score" db:"impact_score"`
	ExploitabilityScore float64                `json:"exploitability_score" db:"exploitability_score"`
	Impact              map[string]interface{} `json:"impact"`
	Likelihood          map[string]interface{} `json:"likelihood"`
	RegulatoryTags      []string               `json:"regulatory_tags"`
	Tags                []string               `json:"tags"`
	DedupeKey           string                 `json:"dedupe_key" db:"dedupe_key"`
	RemediationSummary  string                 `json:"remediation_summary" db:"remediation_summary"`
	Instances           []FindingInstance      `json:"instances"`
}

// FindingInstance is one occurrence of a finding with its evidence.
type FindingInstance struct {
	ID        string          `json:"id" db:"id"`
	FindingID string          `json:"finding_id" db:"finding_id"`
	Evidence  EvidenceSnippet `json:"evidence"`
	Symbol    string          `json:"symbol" db:"symbol"`
}

// Degraded-mode flags recorded on a coverage summary and scan run.
const (
	DegradedTreeSitterUnavailable = "tree_sitter_unavailable"
	DegradedLowCoverage           = "low_coverage"
	DegradedParseErrors           = "parse_errors"
)

// ParseErrorEntry records one file that failed to parse.
type ParseErrorEntry struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// CoverageSummary aggregates what the scan could and could not see.
type CoverageSummary struct {
	ScanRunID        string              `json:"scan_run_id" db:"scan_run_id"`
	TotalDiscovered  int                 `json:"total_discovered"`
	TotalParsed      int                 `json:"total_parsed"`
	SkippedByReason  map[string][]string `json:"skipped_by_reason"`
	ParseErrors      []ParseErrorEntry   `json:"parse_errors"`
	LanguageCounts   map[string]int      `json:"language_counts"`
	AnalyzersRan     []string            `json:"analyzers_ran"`
	CoveragePercent  float64             `json:"coverage_percent"`
	Incomplete       bool                `json:"incomplete"`
	DegradedModes    []string            `json:"degraded_modes"`
	ASTAvailable     bool                `json:"ast_available"`
	ParseErrorsTotal int                 `json:"parse_errors_total"`
}

// Chunk is one embedding unit. ID is a stable UUID derived from
// SHA-256(file_path + qualified_name).
type Chunk struct {
	ID             string `json:"id"`
	RepoID         string `json:"repo_id"`
	FilePath       string `json:"file_path"`
	LineStart      int    `json:"line_start"`
	LineEnd        int    `json:"line_end"`
	SymbolName     string `json:"symbol_name"`
	SymbolType     string `json:"symbol_type"`
	Content        string `json:"content"`
	ContentPreview string `json:"content_preview"`
}

// ConfidenceTier is the discrete trust level of an answer.
type ConfidenceTier string

const (
	TierHigh   ConfidenceTier = "high"
	TierMedium ConfidenceTier = "medium"
	TierLow    ConfidenceTier = "low"
	TierNone   ConfidenceTier = "none"
)

// RetrievedSource is one ranked evidence source handed to the answer engine.
type RetrievedSource struct {
	Index      int     `json:"index"`
	FilePath   string  `json:"file_path"`
	StartLine  int     `json:"start_line"`
	EndLine    int     `json:"end_line"`
	SymbolName string  `json:"symbol_name"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
	Origin     string  `json:"origin"` // "trigram" or "vector"
}

// QuotedSpan is one claimed verbatim quote with its verification outcome.
type QuotedSpan struct {
	SourceID int    `json:"source_id"`
	Quote    string `json:"quote"`
	Verified bool   `json:"verified"`
}

// AnswerSection is one claim of a proof-carrying answer.
type AnswerSection struct {
	Heading     string       `json:"heading"`
	Text        string       `json:"text"`
	SourceIDs   []int        `json:"source_ids"`
	QuotedSpans []QuotedSpan `json:"quoted_spans"`
	Unverified  bool         `json:"unverified"`
}

// Answer is the verified output of the answer engine.
type Answer struct {
	ID                string             `json:"id" db:"id"`
	RepoID            string             `json:"repo_id" db:"repo_id"`
	Question          string             `json:"question" db:"question"`
	Sections          []AnswerSection    `json:"sections"`
	Unknowns          []string           `json:"unknowns"`
	ConfidenceTier    ConfidenceTier     `json:"confidence_tier" db:"confidence_tier"`
	ConfidenceFactors map[string]float64 `json:"confidence_factors"`
	ValidationPassed  bool               `json:"validation_passed" db:"validation_passed"`
	ValidationErrors  []string           `json:"validation_errors"`
	Citations         []Citation         `json:"citations"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
}

// Citation anchors an answer to an exact span of an indexed source.
type Citation struct {
	AnswerID    string `json:"answer_id" db:"answer_id"`
	SourceIndex int    `json:"source_index" db:"source_index"`
	FilePath    string `json:"file_path" db:"file_path"`
	StartLine   int    `json:"start_line" db:"start_line"`
	EndLine     int    `json:"end_line" db:"end_line"`
	Snippet     string `json:"snippet" db:"snippet"`
	SymbolName  string `json:"symbol_name" db:"symbol_name"`
	GitHubURL   string `json:"github_url" db:"github_url"`
}

// SeverityRank orders severities for max-merging during dedup.
func SeverityRank(s FindingSeverity) int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ConfidenceRank orders confidences for max-merging during dedup.
func ConfidenceRank(c FindingConfidence) int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}
