package scan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/codeproof/codeproof-go/internal/analysis"
	"github.com/codeproof/codeproof-go/internal/errors"
	"github.com/codeproof/codeproof-go/internal/evidence"
	"github.com/codeproof/codeproof-go/internal/ingestion"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/scoring"
	"github.com/codeproof/codeproof-go/internal/treesitter"
)

// cloneAttempts bounds retries on transient clone failures.
const cloneAttempts = 2

// Store is the slice of the persistence layer a scan needs.
type Store interface {
	UpsertRepository(ctx context.Context, repo *models.Repository) error
	FindScanRun(ctx context.Context, repoID, commitSHA, configHash string) (*models.ScanRun, error)
	CreateScanRun(ctx context.Context, run *models.ScanRun) error
	FinishScanRun(ctx context.Context, run *models.ScanRun) error
	SaveFileSnapshots(ctx context.Context, snapshots []models.FileSnapshot) error
	SaveCoverageSummary(ctx context.Context, summary *models.CoverageSummary) error
	SaveFindings(ctx context.Context, findings []models.Finding) error
}

// Cloner fetches a repository working tree and disposes of it afterwards.
type Cloner interface {
	Clone(ctx context.Context, repoURL, ref, token string) (*ingestion.CloneResult, error)
	Cleanup(workDir string) error
}

// TokenSource mints clone-capable access tokens. Nil means anonymous clones.
type TokenSource interface {
	Token(ctx context.Context, installID int64) (string, error)
}

// Options selects what a scan covers.
type Options struct {
	// Ref is the branch, tag, or commit to scan. Empty scans the default
	// branch head.
	Ref string
	// Analyzers restricts the run to the named rule families. Empty runs
	// all of them.
	Analyzers []string
}

// ConfigHash fingerprints the effective scan configuration. Two scans of
// the same commit with the same hash are the same scan.
func ConfigHash(opts Options) string {
	analyzers := append([]string(nil), opts.Analyzers...)
	sort.Strings(analyzers)
	raw, _ := json.Marshal(map[string]any{
		"analyzers": analyzers,
		"ref":       opts.Ref,
	})
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Orchestrator drives one scan end to end: clone, discover, parse, analyze,
// score, persist. Every run leaves a terminal ScanRun record and no
// working directory behind.
type Orchestrator struct {
	store    Store
	cloner   Cloner
	tokens   TokenSource
	walker   *ingestion.Walker
	parser   *treesitter.Parser
	registry *analysis.Registry
	builder  *evidence.Builder
	scorer   *scoring.Scorer
	log      *logging.Logger

	now func() time.Time
}

func NewOrchestrator(store Store, cloner Cloner, tokens TokenSource, parser *treesitter.Parser, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		cloner:   cloner,
		tokens:   tokens,
		walker:   ingestion.NewWalker(),
		parser:   parser,
		registry: analysis.DefaultRegistry(),
		builder:  evidence.NewBuilder(),
		scorer:   scoring.NewScorer(),
		log:      log.WithComponent("scan"),
		now:      time.Now,
	}
}

// Run executes a scan of repo at opts.Ref. If a run for the same
// (repo, commit, config) triple already exists it is returned as-is.
func (o *Orchestrator) Run(ctx context.Context, repo *models.Repository, opts Options) (*models.ScanRun, error) {
	configHash := ConfigHash(opts)

	if err := o.store.UpsertRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("resolve repository: %w", err)
	}

	token := ""
	if o.tokens != nil && repo.InstallID != 0 {
		t, err := o.tokens.Token(ctx, repo.InstallID)
		if err != nil {
			o.log.Warn("no installation token, cloning anonymously", "repo", repo.FullName, "error", err)
		} else {
			token = t
		}
	}

	res, err := o.cloneWithRetry(ctx, repo.URL, opts.Ref, token)
	if err != nil {
		run := o.newRun(repo.ID, opts.Ref, configHash)
		run.Status = models.ScanStatusFailed
		run.Error = ingestion.SanitizeError(err.Error())
		if cerr := o.store.CreateScanRun(ctx, run); cerr != nil {
			o.log.Error("failed to record failed scan", "repo", repo.FullName, "error", cerr)
		}
		o.finish(ctx, run)
		return run, err
	}
	defer func() {
		if cerr := o.cloner.Cleanup(res.WorkingDir); cerr != nil {
			o.log.Warn("cleanup failed", "dir", res.WorkingDir, "error", cerr)
		}
	}()

	// Identical (repo, commit, config) collapses onto the existing run.
	if existing, err := o.store.FindScanRun(ctx, repo.ID, res.CommitSHA, configHash); err == nil && existing != nil {
		o.log.Info("scan already recorded", "repo", repo.FullName, "commit", res.CommitSHA, "status", existing.Status)
		return existing, nil
	}

	run := o.newRun(repo.ID, res.CommitSHA, configHash)
	if err := o.store.CreateScanRun(ctx, run); err != nil {
		if existing, ferr := o.store.FindScanRun(ctx, repo.ID, res.CommitSHA, configHash); ferr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create scan run: %w", err)
	}

	if err := o.execute(ctx, run, res.WorkingDir, opts); err != nil {
		run.Status = models.ScanStatusFailed
		run.Error = ingestion.SanitizeError(err.Error())
		o.finish(ctx, run)
		return run, err
	}

	o.finish(ctx, run)
	return run, nil
}

func (o *Orchestrator) newRun(repoID, commitSHA, configHash string) *models.ScanRun {
	started := o.now().UTC()
	return &models.ScanRun{
		ID:         uuid.NewString(),
		RepoID:     repoID,
		CommitSHA:  commitSHA,
		ConfigHash: configHash,
		Status:     models.ScanStatusRunning,
		StartedAt:  &started,
		CreatedAt:  started,
	}
}

func (o *Orchestrator) cloneWithRetry(ctx context.Context, repoURL, ref, token string) (*ingestion.CloneResult, error) {
	var lastErr error
	for attempt := 1; attempt <= cloneAttempts; attempt++ {
		res, err := o.cloner.Clone(ctx, repoURL, ref, token)
		if err == nil {
			return res, nil
		}
		lastErr = err
		// Size and validation rejections are final.
		if errors.IsType(err, errors.ErrorTypeValidation) || ctx.Err() != nil {
			break
		}
		o.log.Warn("clone attempt failed", "attempt", attempt, "error", ingestion.SanitizeError(err.Error()))
	}
	return nil, lastErr
}

// execute runs steps discover through persist against an already-cloned
// working tree. The caller owns run status transitions and cleanup.
func (o *Orchestrator) execute(ctx context.Context, run *models.ScanRun, workDir string, opts Options) error {
	files, err := o.walker.Discover(workDir)
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}

	tracker := ingestion.NewCoverageTracker(o.parser.Available())
	contents := make(map[string]string)
	parseResult := &treesitter.ParseResult{}
	snapshots := make([]models.FileSnapshot, 0, len(files))

	for _, f := range files {
		tracker.RecordDiscovered(f.Path, f.Language)

		snap := models.FileSnapshot{
			ID:        uuid.NewString(),
			ScanRunID: run.ID,
			Path:      f.Path,
			Language:  f.Language,
			SizeBytes: f.SizeBytes,
			IsBinary:  f.SkipReason == ingestion.SkipBinary,
		}

		if f.SkipReason != "" {
			tracker.RecordSkipped(f.Path, f.SkipReason)
			snapshots = append(snapshots, snap)
			continue
		}

		raw, err := os.ReadFile(f.AbsPath)
		if err != nil {
			tracker.RecordFailed(f.Path, err)
			snapshots = append(snapshots, snap)
			continue
		}
		content := string(raw)
		contents[f.Path] = content
		sum := sha256.Sum256(raw)
		snap.ContentHash = hex.EncodeToString(sum[:])
		snapshots = append(snapshots, snap)

		// ParseFile dispatches to the regex fallback for languages
		// without a grammar and when a grammar failed to load.
		fr, err := o.parser.ParseFile(f.Path, content, f.Language)
		if err != nil {
			tracker.RecordFailed(f.Path, err)
			continue
		}
		parseResult.Merge(fr)
		tracker.RecordParsed(f.Path)
	}
	parseResult.ParseErrors = tracker.Summary().ParseErrors

	if err := o.store.SaveFileSnapshots(ctx, snapshots); err != nil {
		return fmt.Errorf("save file snapshots: %w", err)
	}

	actx := &analysis.Context{
		RepoPath:     workDir,
		FileContents: contents,
		ParseResult:  parseResult,
		Coverage:     tracker.Summary(),
	}
	var matches []models.FindingMatch
	for _, a := range o.registry.Enabled(opts.Analyzers) {
		tracker.RecordAnalyzer(a.Name())
		matches = append(matches, a.Analyze(actx)...)
	}

	inputs := make([]scoring.Input, 0, len(matches))
	for _, m := range matches {
		inputs = append(inputs, scoring.Input{
			Match:    m,
			Evidence: o.builder.Build(m.FilePath, contents[m.FilePath], m.StartLine, m.EndLine),
		})
	}

	summary := tracker.Summary()
	summary.ScanRunID = run.ID

	findings := o.scorer.Process(run.ID, inputs, summary)
	if err := o.store.SaveFindings(ctx, findings); err != nil {
		return fmt.Errorf("save findings: %w", err)
	}
	if err := o.store.SaveCoverageSummary(ctx, summary); err != nil {
		return fmt.Errorf("save coverage summary: %w", err)
	}

	run.DegradedModes = summary.DegradedModes
	if len(summary.DegradedModes) > 0 {
		run.Status = models.ScanStatusDegraded
	} else {
		run.Status = models.ScanStatusCompleted
	}

	o.log.Info("scan finished",
		"run", run.ID, "status", run.Status,
		"files", summary.TotalDiscovered, "parsed", summary.TotalParsed,
		"coverage", summary.CoveragePercent, "findings", len(findings),
		"groups", scoring.GroupSummaries(findings))
	return nil
}

// finish stamps the terminal time and persists the run. Persistence
// failures are logged, not propagated: the scan outcome stands.
func (o *Orchestrator) finish(ctx context.Context, run *models.ScanRun) {
	finished := o.now().UTC()
	run.FinishedAt = &finished
	if err := o.store.FinishScanRun(ctx, run); err != nil {
		o.log.Error("failed to persist scan run", "run", run.ID, "error", err)
	}
}
