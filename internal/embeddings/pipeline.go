package embeddings

import (
	"context"
	"time"

	"github.com/codeproof/codeproof-go/internal/errors"
	"github.com/codeproof/codeproof-go/internal/llm"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
)

const (
	embedBatchSize  = 20
	upsertBatchSize = 100
	maxRetries      = 3
)

// VectorStore is the persistence port for embedded chunks.
type VectorStore interface {
	EnsureCollection(ctx context.Context, dimension int) error
	DeleteByRepo(ctx context.Context, repoID string) error
	Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	Search(ctx context.Context, repoID string, vector []float32, limit int) ([]models.RetrievedSource, error)
}

// Pipeline embeds chunks and replaces a repository's vectors.
type Pipeline struct {
	embedder llm.Embedder
	store    VectorStore
	log      *logging.Logger
	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

func NewPipeline(embedder llm.Embedder, store VectorStore, log *logging.Logger) *Pipeline {
	return &Pipeline{
		embedder: embedder,
		store:    store,
		log:      log.WithComponent("embeddings"),
		sleep:    time.Sleep,
	}
}

// IndexRepo embeds all chunks and swaps them in for the repository:
// prior vectors for the repo are deleted first, then the new set is
// upserted in sub-batches. Returns the number of points written.
func (p *Pipeline) IndexRepo(ctx context.Context, repoID string, chunks []models.Chunk) (int, error) {
	if err := p.store.EnsureCollection(ctx, p.embedder.Dimension()); err != nil {
		return 0, errors.EmbeddingError(err, "failed to ensure vector collection")
	}

	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		embedded, err := p.embedBatchWithRetry(ctx, texts)
		if err != nil {
			return 0, errors.EmbeddingError(err, "embedding batch failed")
		}
		vectors = append(vectors, embedded...)
	}

	if err := p.store.DeleteByRepo(ctx, repoID); err != nil {
		return 0, errors.EmbeddingError(err, "failed to delete stale vectors")
	}

	written := 0
	for start := 0; start < len(chunks); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := p.store.Upsert(ctx, chunks[start:end], vectors[start:end]); err != nil {
			return written, errors.EmbeddingError(err, "vector upsert failed")
		}
		written += end - start
	}

	p.log.Info("repository vectors replaced", "repo_id", repoID, "points", written)
	return written, nil
}

// embedBatchWithRetry retries transient upstream failures with 1s, 2s, 4s
// backoff. Non-transient errors propagate immediately.
func (p *Pipeline) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	backoff := time.Second
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			p.sleep(backoff)
			backoff *= 2
		}
		vectors, err := p.embedder.Embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if !llm.IsRetryable(err) {
			return nil, err
		}
		lastErr = err
		p.log.Warn("transient embedding failure, retrying", "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}
