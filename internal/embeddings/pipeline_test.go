package embeddings

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
)

type fakeEmbedder struct {
	calls      int
	failUntil  int
	failErr    error
	batchSizes []int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failUntil {
		return nil, f.failErr
	}
	f.batchSizes = append(f.batchSizes, len(texts))
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }

type fakeStore struct {
	ensured     bool
	deletedRepo string
	upserts     [][]models.Chunk
}

func (s *fakeStore) EnsureCollection(context.Context, int) error { s.ensured = true; return nil }
func (s *fakeStore) DeleteByRepo(_ context.Context, repoID string) error {
	s.deletedRepo = repoID
	return nil
}
func (s *fakeStore) Upsert(_ context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch")
	}
	s.upserts = append(s.upserts, chunks)
	return nil
}
func (s *fakeStore) Search(context.Context, string, []float32, int) ([]models.RetrievedSource, error) {
	return nil, nil
}

func testPipeline(t *testing.T, e *fakeEmbedder, s *fakeStore) *Pipeline {
	t.Helper()
	log, err := logging.NewLogger(logging.Config{Level: logging.ERROR})
	require.NoError(t, err)
	p := NewPipeline(e, s, log)
	p.sleep = func(time.Duration) {}
	return p
}

func makeChunks(n int) []models.Chunk {
	chunks := make([]models.Chunk, n)
	for i := range chunks {
		chunks[i] = models.Chunk{
			ID:      ChunkID("f.py", fmt.Sprintf("f.py:sym%d", i)),
			RepoID:  "repo-1",
			Content: fmt.Sprintf("def sym%d(): pass", i),
		}
	}
	return chunks
}

func TestIndexRepo_BatchesAndUpserts(t *testing.T) {
	e := &fakeEmbedder{}
	s := &fakeStore{}
	p := testPipeline(t, e, s)

	written, err := p.IndexRepo(context.Background(), "repo-1", makeChunks(250))
	require.NoError(t, err)
	assert.Equal(t, 250, written)

	// 250 chunks embed in batches of 20.
	assert.Len(t, e.batchSizes, 13)
	assert.Equal(t, 20, e.batchSizes[0])
	assert.Equal(t, 10, e.batchSizes[12])

	// Stale vectors are deleted before the new set lands in 100s.
	assert.True(t, s.ensured)
	assert.Equal(t, "repo-1", s.deletedRepo)
	require.Len(t, s.upserts, 3)
	assert.Len(t, s.upserts[0], 100)
	assert.Len(t, s.upserts[2], 50)
}

func TestIndexRepo_RetriesTransientErrors(t *testing.T) {
	e := &fakeEmbedder{failUntil: 2, failErr: fmt.Errorf("upstream 503")}
	s := &fakeStore{}
	p := testPipeline(t, e, s)

	written, err := p.IndexRepo(context.Background(), "repo-1", makeChunks(5))
	require.NoError(t, err)
	assert.Equal(t, 5, written)
	assert.Equal(t, 3, e.calls)
}

func TestIndexRepo_GivesUpAfterMaxRetries(t *testing.T) {
	e := &fakeEmbedder{failUntil: 99, failErr: fmt.Errorf("rate limit exceeded")}
	s := &fakeStore{}
	p := testPipeline(t, e, s)

	_, err := p.IndexRepo(context.Background(), "repo-1", makeChunks(5))
	require.Error(t, err)
	assert.Equal(t, 3, e.calls)
	// Nothing was deleted if embedding never succeeded.
	assert.Empty(t, s.deletedRepo)
}

func TestIndexRepo_NonTransientFailsFast(t *testing.T) {
	e := &fakeEmbedder{failUntil: 99, failErr: fmt.Errorf("invalid api key")}
	s := &fakeStore{}
	p := testPipeline(t, e, s)

	_, err := p.IndexRepo(context.Background(), "repo-1", makeChunks(5))
	require.Error(t, err)
	assert.Equal(t, 1, e.calls)
}

func TestBuildChunks(t *testing.T) {
	symbols := []models.Symbol{
		{Kind: models.SymbolFunction, QualifiedName: "a.py:f", FilePath: "a.py",
			LineStart: 1, LineEnd: 3, Signature: "def f()", Docstring: "Does f.",
			Body: "def f():\n    pass"},
		// No body or docstring (regex fallback): skipped.
		{Kind: models.SymbolFunction, QualifiedName: "a.py:g", FilePath: "a.py"},
		// Constants are not embedded.
		{Kind: models.SymbolConstant, QualifiedName: "a.py:X", FilePath: "a.py", Body: "X = 1"},
	}

	chunks := BuildChunks("repo-1", symbols)
	require.Len(t, chunks, 1)

	c := chunks[0]
	assert.Equal(t, "repo-1", c.RepoID)
	assert.Equal(t, "a.py:f", c.SymbolName)
	assert.Contains(t, c.Content, "File: a.py")
	assert.Contains(t, c.Content, "Signature: def f()")
	assert.Contains(t, c.Content, "Docstring: Does f.")
	assert.Contains(t, c.Content, "def f():")
}

func TestBuildChunks_ElidesLongBodies(t *testing.T) {
	sym := models.Symbol{
		Kind: models.SymbolFunction, QualifiedName: "a.py:big", FilePath: "a.py",
		Body: strings.Repeat("x", 5000),
	}
	chunks := BuildChunks("repo-1", []models.Symbol{sym})
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "[elided]")
	assert.Less(t, len(chunks[0].Content), 2500)
}

func TestChunkID_Stable(t *testing.T) {
	a := ChunkID("a.py", "a.py:f")
	b := ChunkID("a.py", "a.py:f")
	c := ChunkID("a.py", "a.py:g")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	// Valid UUID shape.
	assert.Len(t, a, 36)
}
