package storage

import (
	"context"
	"errors"

	"github.com/codeproof/codeproof-go/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// FileRecord is one indexed file row, replaced wholesale on re-index.
type FileRecord struct {
	RepoID    string `db:"repo_id"`
	Path      string `db:"path"`
	Language  string `db:"language"`
	SizeBytes int64  `db:"size_bytes"`
}

// Store defines the persistence interface shared by the scan and index
// orchestrators, the retriever, and the CLI.
type Store interface {
	// Repository operations
	UpsertRepository(ctx context.Context, repo *models.Repository) error
	GetRepository(ctx context.Context, repoID string) (*models.Repository, error)
	GetRepositoryByFullName(ctx context.Context, fullName string) (*models.Repository, error)
	SetIndexStatus(ctx context.Context, repoID string, status models.IndexStatus, indexError string) error
	FinishIndex(ctx context.Context, repoID, commitSHA string, fileCount, symbolCount int) error

	// Scan run operations
	FindScanRun(ctx context.Context, repoID, commitSHA, configHash string) (*models.ScanRun, error)
	CreateScanRun(ctx context.Context, run *models.ScanRun) error
	FinishScanRun(ctx context.Context, run *models.ScanRun) error

	// Scan artifact operations
	SaveFileSnapshots(ctx context.Context, snapshots []models.FileSnapshot) error
	SaveCoverageSummary(ctx context.Context, summary *models.CoverageSummary) error
	SaveFindings(ctx context.Context, findings []models.Finding) error
	GetFindings(ctx context.Context, scanRunID string) ([]models.Finding, error)

	// Index record operations
	ReplaceIndex(ctx context.Context, repoID string, files []FileRecord, symbols []models.Symbol) error
	SymbolSearch(ctx context.Context, repoID, query string, limit int) ([]models.RetrievedSource, error)

	// Answer operations
	SaveAnswer(ctx context.Context, answer *models.Answer) error

	// Close connection
	Close() error
}
