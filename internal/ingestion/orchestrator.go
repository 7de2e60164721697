package ingestion

import (
	"context"
	"fmt"
	"os"

	"github.com/codeproof/codeproof-go/internal/index"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/storage"
	"github.com/codeproof/codeproof-go/internal/treesitter"
)

// IndexStore is the slice of the persistence layer indexing needs.
type IndexStore interface {
	UpsertRepository(ctx context.Context, repo *models.Repository) error
	SetIndexStatus(ctx context.Context, repoID string, status models.IndexStatus, indexError string) error
	ReplaceIndex(ctx context.Context, repoID string, files []storage.FileRecord, symbols []models.Symbol) error
	FinishIndex(ctx context.Context, repoID, commitSHA string, fileCount, symbolCount int) error
}

// ChunkIndexer pushes symbol chunks into the vector store.
type ChunkIndexer interface {
	IndexRepo(ctx context.Context, repoID string, chunks []models.Chunk) (int, error)
}

// SourceCloner fetches a working tree and disposes of it afterwards.
type SourceCloner interface {
	Clone(ctx context.Context, repoURL, ref, token string) (*CloneResult, error)
	Cleanup(workDir string) error
}

// TokenSource mints clone-capable access tokens. Nil means anonymous
// clones.
type TokenSource interface {
	Token(ctx context.Context, installID int64) (string, error)
}

// Chunker turns the symbol table into embedding units.
type Chunker func(repoID string, symbols []models.Symbol) []models.Chunk

// IndexResult summarizes one completed indexing run.
type IndexResult struct {
	CommitSHA   string
	FileCount   int
	SymbolCount int
	ChunkCount  int
}

// Orchestrator rebuilds a repository's searchable index: clone, parse,
// symbol extraction, row replacement, vector upsert. Replacement is
// idempotent; re-indexing the same commit converges to the same rows and
// points.
type Orchestrator struct {
	store   IndexStore
	cloner  SourceCloner
	tokens  TokenSource
	walker  *Walker
	parser  *treesitter.Parser
	chunker Chunker
	vectors ChunkIndexer
	log     *logging.Logger
}

func NewOrchestrator(store IndexStore, cloner SourceCloner, tokens TokenSource, parser *treesitter.Parser, chunker Chunker, vectors ChunkIndexer, log *logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:   store,
		cloner:  cloner,
		tokens:  tokens,
		walker:  NewWalker(),
		parser:  parser,
		chunker: chunker,
		vectors: vectors,
		log:     log.WithComponent("ingestion"),
	}
}

// IndexRepository rebuilds the index for repo at ref. One indexing run per
// repository at a time; a repo already in the indexing state is rejected.
func (o *Orchestrator) IndexRepository(ctx context.Context, repo *models.Repository, ref string) (*IndexResult, error) {
	if repo.IndexStatus == models.IndexStatusIndexing {
		return nil, fmt.Errorf("repository %s is already being indexed", repo.FullName)
	}

	if err := o.store.UpsertRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("resolve repository: %w", err)
	}
	if err := o.store.SetIndexStatus(ctx, repo.ID, models.IndexStatusIndexing, ""); err != nil {
		return nil, fmt.Errorf("mark indexing: %w", err)
	}

	result, err := o.rebuild(ctx, repo, ref)
	if err != nil {
		if serr := o.store.SetIndexStatus(ctx, repo.ID, models.IndexStatusFailed, SanitizeError(err.Error())); serr != nil {
			o.log.Error("failed to record index failure", "repo", repo.FullName, "error", serr)
		}
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) rebuild(ctx context.Context, repo *models.Repository, ref string) (*IndexResult, error) {
	token := ""
	if o.tokens != nil && repo.InstallID != 0 {
		t, err := o.tokens.Token(ctx, repo.InstallID)
		if err != nil {
			o.log.Warn("no installation token, cloning anonymously", "repo", repo.FullName, "error", err)
		} else {
			token = t
		}
	}

	res, err := o.cloner.Clone(ctx, repo.URL, ref, token)
	if err != nil {
		return nil, fmt.Errorf("clone: %w", err)
	}
	defer func() {
		if cerr := o.cloner.Cleanup(res.WorkingDir); cerr != nil {
			o.log.Warn("cleanup failed", "dir", res.WorkingDir, "error", cerr)
		}
	}()

	files, err := o.walker.Discover(res.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	parseResult := &treesitter.ParseResult{}
	records := make([]storage.FileRecord, 0, len(files))
	paths := make([]string, 0, len(files))

	for _, f := range files {
		if f.SkipReason != "" {
			continue
		}
		records = append(records, storage.FileRecord{
			RepoID:    repo.ID,
			Path:      f.Path,
			Language:  f.Language,
			SizeBytes: f.SizeBytes,
		})
		paths = append(paths, f.Path)

		raw, err := os.ReadFile(f.AbsPath)
		if err != nil {
			o.log.Warn("unreadable file skipped", "file", f.Path, "error", err)
			continue
		}
		fr, err := o.parser.ParseFile(f.Path, string(raw), f.Language)
		if err != nil {
			o.log.Warn("parse failed", "file", f.Path, "error", err)
			continue
		}
		parseResult.Merge(fr)
	}

	idx := index.Build(parseResult, paths)
	symbols := idx.AllSymbols()

	if err := o.store.ReplaceIndex(ctx, repo.ID, records, symbols); err != nil {
		return nil, fmt.Errorf("replace index rows: %w", err)
	}

	chunkCount := 0
	if o.vectors != nil {
		chunks := o.chunker(repo.ID, symbols)
		chunkCount, err = o.vectors.IndexRepo(ctx, repo.ID, chunks)
		if err != nil {
			return nil, fmt.Errorf("index vectors: %w", err)
		}
	}

	if err := o.store.FinishIndex(ctx, repo.ID, res.CommitSHA, len(records), idx.SymbolCount()); err != nil {
		return nil, fmt.Errorf("finish index: %w", err)
	}

	o.log.Info("repository indexed",
		"repo", repo.FullName, "commit", res.CommitSHA,
		"files", len(records), "symbols", idx.SymbolCount(), "chunks", chunkCount)
	return &IndexResult{
		CommitSHA:   res.CommitSHA,
		FileCount:   len(records),
		SymbolCount: idx.SymbolCount(),
		ChunkCount:  chunkCount,
	}, nil
}
