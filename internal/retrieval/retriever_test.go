package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeproof/codeproof-go/internal/cache"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
)

type fakeSymbolSearcher struct {
	query   string
	results []models.RetrievedSource
}

func (f *fakeSymbolSearcher) SymbolSearch(_ context.Context, _ string, query string, _ int) ([]models.RetrievedSource, error) {
	f.query = query
	return f.results, nil
}

type fakeVectorSearcher struct {
	results []models.RetrievedSource
}

func (f *fakeVectorSearcher) Search(context.Context, string, []float32, int) ([]models.RetrievedSource, error) {
	return f.results, nil
}

type fakeQuestionEmbedder struct{}

func (fakeQuestionEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}
func (fakeQuestionEmbedder) Dimension() int { return 2 }

type fakeFetcher struct {
	mu    sync.Mutex
	files map[string]string
	calls int
}

func (f *fakeFetcher) FileContent(_ context.Context, _ models.Repository, path, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	content, ok := f.files[path]
	if !ok {
		return "", fmt.Errorf("not found: %s", path)
	}
	return content, nil
}

type fakeSnippetCache struct {
	mu      sync.Mutex
	entries map[cache.SnippetKey]string
	hits    int
}

func (c *fakeSnippetCache) GetSnippet(_ context.Context, key cache.SnippetKey) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *fakeSnippetCache) SetSnippet(_ context.Context, key cache.SnippetKey, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = map[cache.SnippetKey]string{}
	}
	c.entries[key] = content
}

func testRetriever(t *testing.T, sym *fakeSymbolSearcher, vec *fakeVectorSearcher, fetcher *fakeFetcher, snip *fakeSnippetCache) *Retriever {
	t.Helper()
	log, err := logging.NewLogger(logging.Config{Level: logging.ERROR})
	require.NoError(t, err)
	return NewRetriever(sym, vec, fakeQuestionEmbedder{}, fetcher, snip, log)
}

func testRepo() models.Repository {
	return models.Repository{ID: "repo-1", LastIndexedCommit: "abc123"}
}

func src(file string, start int, score float64) models.RetrievedSource {
	return models.RetrievedSource{FilePath: file, StartLine: start, EndLine: start + 2, Score: score}
}

func TestRetrieve_MergesAndRanks(t *testing.T) {
	sym := &fakeSymbolSearcher{results: []models.RetrievedSource{
		src("app/auth.py", 10, 0.9),
		src("app/db.py", 5, 0.4),
	}}
	vec := &fakeVectorSearcher{results: []models.RetrievedSource{
		src("app/auth.py", 10, 0.7), // duplicate of the trigram hit, lower score
		src("app/models.py", 1, 0.8),
		src("app/low.py", 1, 0.3), // under the vector threshold
	}}
	fetcher := &fakeFetcher{files: map[string]string{
		"app/auth.py":   strings.Repeat("line\n", 30),
		"app/db.py":     strings.Repeat("line\n", 30),
		"app/models.py": strings.Repeat("line\n", 30),
	}}
	r := testRetriever(t, sym, vec, fetcher, &fakeSnippetCache{})

	sources, err := r.Retrieve(context.Background(), testRepo(), "how does auth work")
	require.NoError(t, err)
	require.Len(t, sources, 3)

	// Duplicate kept the higher trigram score; threshold dropped app/low.py.
	assert.Equal(t, "app/auth.py", sources[0].FilePath)
	assert.Equal(t, 0.9, sources[0].Score)
	assert.Equal(t, "trigram", sources[0].Origin)
	assert.Equal(t, "app/models.py", sources[1].FilePath)
	assert.Equal(t, "vector", sources[1].Origin)
	assert.Equal(t, "app/db.py", sources[2].FilePath)

	// Re-indexed 1..N after the merge.
	for i, s := range sources {
		assert.Equal(t, i+1, s.Index)
		assert.NotEmpty(t, s.Content)
	}
}

func TestRetrieve_TrimsToFifteen(t *testing.T) {
	var hits []models.RetrievedSource
	for i := 0; i < 20; i++ {
		hits = append(hits, src(fmt.Sprintf("f%02d.py", i), 1, 0.95-float64(i)*0.01))
	}
	vec := &fakeVectorSearcher{results: hits}
	fetcher := &fakeFetcher{files: map[string]string{}}
	r := testRetriever(t, &fakeSymbolSearcher{}, vec, fetcher, &fakeSnippetCache{})

	sources, err := r.Retrieve(context.Background(), testRepo(), "list everything")
	require.NoError(t, err)
	assert.Len(t, sources, 15)
	assert.Equal(t, 15, sources[14].Index)
}

func TestRetrieve_SnippetCacheHit(t *testing.T) {
	vec := &fakeVectorSearcher{results: []models.RetrievedSource{src("app/auth.py", 10, 0.8)}}
	fetcher := &fakeFetcher{files: map[string]string{"app/auth.py": "x"}}
	snip := &fakeSnippetCache{entries: map[cache.SnippetKey]string{
		{RepoID: "repo-1", CommitSHA: "abc123", FilePath: "app/auth.py", StartLine: 10, EndLine: 12}: "cached content",
	}}
	r := testRetriever(t, &fakeSymbolSearcher{}, vec, fetcher, snip)

	sources, err := r.Retrieve(context.Background(), testRepo(), "auth")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "cached content", sources[0].Content)
	assert.Equal(t, 0, fetcher.calls)
	assert.Equal(t, 1, snip.hits)
}

func TestRetrieve_FetchFailureIsDegraded(t *testing.T) {
	vec := &fakeVectorSearcher{results: []models.RetrievedSource{src("gone.py", 1, 0.8)}}
	fetcher := &fakeFetcher{files: map[string]string{}}
	r := testRetriever(t, &fakeSymbolSearcher{}, vec, fetcher, &fakeSnippetCache{})

	sources, err := r.Retrieve(context.Background(), testRepo(), "missing file")
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Contains(t, sources[0].Content, "[Could not fetch")
}

func TestRetrieve_NoResults(t *testing.T) {
	r := testRetriever(t, &fakeSymbolSearcher{}, &fakeVectorSearcher{}, &fakeFetcher{}, &fakeSnippetCache{})
	sources, err := r.Retrieve(context.Background(), testRepo(), "anything here")
	require.NoError(t, err)
	assert.Empty(t, sources)
}

func TestSliceLines(t *testing.T) {
	content := "one\ntwo\nthree\nfour"
	assert.Equal(t, "two\nthree", sliceLines(content, 2, 3))
	assert.Equal(t, "one\ntwo\nthree\nfour", sliceLines(content, 1, 99))
	assert.Equal(t, "", sliceLines(content, 10, 12))

	long := strings.Repeat("a", 600)
	out := sliceLines(long, 1, 1)
	assert.Len(t, out, 503)
	assert.True(t, strings.HasSuffix(out, "..."))
}

func TestExtractKeywords(t *testing.T) {
	kws := ExtractKeywords("How does UserAuthService.login handle JWT tokens?")

	assert.Contains(t, kws, "UserAuthService.login")
	assert.Contains(t, kws, "JWT")
	assert.Contains(t, kws, "auth")
	assert.Contains(t, kws, "service")
	assert.NotContains(t, kws, "does")
	assert.NotContains(t, kws, "in")
	assert.LessOrEqual(t, len(kws), 10)

	// Longest first.
	for i := 1; i < len(kws); i++ {
		assert.GreaterOrEqual(t, len(kws[i-1]), len(kws[i]))
	}
}

func TestExtractKeywords_CodeTokens(t *testing.T) {
	kws := ExtractKeywords("what is __init__ and MAX_RETRIES and sha256")
	assert.Contains(t, kws, "__init__")
	assert.Contains(t, kws, "MAX_RETRIES")
	assert.Contains(t, kws, "sha256")
}

func TestExtractKeywords_FilePaths(t *testing.T) {
	kws := ExtractKeywords("where is app/services/auth_service.py used")
	assert.Contains(t, kws, "app/services/auth_service.py")
}
