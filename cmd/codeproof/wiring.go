package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/codeproof/codeproof-go/internal/github"
	"github.com/codeproof/codeproof-go/internal/ingestion"
	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/storage"
)

func newStore(ctx context.Context) (storage.Store, error) {
	return storage.NewPostgresStore(ctx, cfg.Storage, logger)
}

func newCloner() *ingestion.Cloner {
	c := ingestion.NewCloner(cfg.Scan.TempRoot, logger)
	if cfg.Scan.CloneTimeout > 0 {
		c.Timeout = cfg.Scan.CloneTimeout
	}
	if cfg.Scan.MaxRepoBytes > 0 {
		c.MaxRepoBytes = cfg.Scan.MaxRepoBytes
	}
	return c
}

// newGitHubClient returns nil when no credentials are configured; callers
// fall back to anonymous access where that is possible.
func newGitHubClient() *github.Client {
	gh, err := github.NewClient(cfg.GitHub, logger)
	if err != nil {
		logger.Warn("github client unavailable", "error", err)
		return nil
	}
	return gh
}

// parseRepoArg accepts "owner/name" or a full repository URL.
func parseRepoArg(arg string) (owner, name string, err error) {
	if strings.Contains(arg, "://") {
		return ingestion.ParseRepoURL(arg)
	}
	parts := strings.Split(strings.TrimSuffix(arg, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected owner/name or a repository URL, got %q", arg)
	}
	return parts[0], parts[1], nil
}

// resolveRepository loads the repository record, creating it on first
// contact so the orchestrators have a stable ID to hang rows on.
func resolveRepository(ctx context.Context, store storage.Store, arg string) (*models.Repository, error) {
	owner, name, err := parseRepoArg(arg)
	if err != nil {
		return nil, err
	}
	fullName := owner + "/" + name

	repo, err := store.GetRepositoryByFullName(ctx, fullName)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	repo = &models.Repository{
		ID:          uuid.NewString(),
		Owner:       owner,
		Name:        name,
		FullName:    fullName,
		URL:         ingestion.BuildRepoURL(owner, name),
		IndexStatus: models.IndexStatusPending,
	}
	if err := store.UpsertRepository(ctx, repo); err != nil {
		return nil, err
	}
	return store.GetRepositoryByFullName(ctx, fullName)
}
