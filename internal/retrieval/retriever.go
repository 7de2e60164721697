package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/codeproof/codeproof-go/internal/cache"
	"github.com/codeproof/codeproof-go/internal/llm"
	"github.com/codeproof/codeproof-go/internal/logging"
	"github.com/codeproof/codeproof-go/internal/models"
)

const (
	trigramLimit   = 10
	vectorLimit    = 15
	finalLimit     = 15
	minVectorScore = 0.5

	maxSnippetChars = 500
	snippetFanOut   = 10
)

// SymbolSearcher runs trigram similarity over indexed symbols.
type SymbolSearcher interface {
	SymbolSearch(ctx context.Context, repoID, query string, limit int) ([]models.RetrievedSource, error)
}

// VectorSearcher runs kNN over a repository's chunk vectors.
type VectorSearcher interface {
	Search(ctx context.Context, repoID string, vector []float32, limit int) ([]models.RetrievedSource, error)
}

// FileFetcher retrieves a file's full content at an exact ref.
type FileFetcher interface {
	FileContent(ctx context.Context, repo models.Repository, path, ref string) (string, error)
}

// SnippetCache holds fetched source spans for a bounded time.
type SnippetCache interface {
	GetSnippet(ctx context.Context, key cache.SnippetKey) (string, bool)
	SetSnippet(ctx context.Context, key cache.SnippetKey, content string)
}

// Retriever combines trigram symbol search with vector search and fills
// snippet content for the merged result set.
type Retriever struct {
	symbols  SymbolSearcher
	vectors  VectorSearcher
	embedder llm.Embedder
	fetcher  FileFetcher
	cache    SnippetCache
	log      *logging.Logger
}

func NewRetriever(symbols SymbolSearcher, vectors VectorSearcher, embedder llm.Embedder, fetcher FileFetcher, snippets SnippetCache, log *logging.Logger) *Retriever {
	return &Retriever{
		symbols:  symbols,
		vectors:  vectors,
		embedder: embedder,
		fetcher:  fetcher,
		cache:    snippets,
		log:      log.WithComponent("retrieval"),
	}
}

// Retrieve returns the ranked, deduplicated, content-filled sources for a
// question. Either search arm failing degrades to the other arm rather than
// failing the whole retrieval.
func (r *Retriever) Retrieve(ctx context.Context, repo models.Repository, question string) ([]models.RetrievedSource, error) {
	merged := map[string]models.RetrievedSource{}

	keywords := ExtractKeywords(question)
	if len(keywords) > 0 && r.symbols != nil {
		trigram, err := r.symbols.SymbolSearch(ctx, repo.ID, strings.Join(keywords, " "), trigramLimit)
		if err != nil {
			r.log.Warn("trigram search failed", "error", err)
		}
		for _, s := range trigram {
			s.Origin = "trigram"
			mergeSource(merged, s)
		}
	}

	if r.embedder != nil && r.vectors != nil {
		if err := r.vectorSearch(ctx, repo.ID, question, merged); err != nil {
			r.log.Warn("vector search failed", "error", err)
		}
	}

	sources := rankSources(merged)
	if len(sources) == 0 {
		return nil, nil
	}

	if err := r.fillSnippets(ctx, repo, sources); err != nil {
		return nil, err
	}
	return sources, nil
}

func (r *Retriever) vectorSearch(ctx context.Context, repoID, question string, merged map[string]models.RetrievedSource) error {
	vectors, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return err
	}
	if len(vectors) == 0 {
		return fmt.Errorf("empty embedding for question")
	}

	hits, err := r.vectors.Search(ctx, repoID, vectors[0], vectorLimit)
	if err != nil {
		return err
	}
	for _, s := range hits {
		if s.Score < minVectorScore {
			continue
		}
		s.Origin = "vector"
		mergeSource(merged, s)
	}
	return nil
}

// mergeSource unions by (file_path, start_line), keeping the higher score.
func mergeSource(merged map[string]models.RetrievedSource, s models.RetrievedSource) {
	key := fmt.Sprintf("%s:%d", s.FilePath, s.StartLine)
	if prev, ok := merged[key]; ok && prev.Score >= s.Score {
		return
	}
	merged[key] = s
}

func rankSources(merged map[string]models.RetrievedSource) []models.RetrievedSource {
	sources := make([]models.RetrievedSource, 0, len(merged))
	for _, s := range merged {
		sources = append(sources, s)
	}
	// Ties break on path then line so ordering is deterministic.
	sort.Slice(sources, func(i, j int) bool { return lessRanked(sources[i], sources[j]) })
	if len(sources) > finalLimit {
		sources = sources[:finalLimit]
	}
	for i := range sources {
		sources[i].Index = i + 1
	}
	return sources
}

func lessRanked(a, b models.RetrievedSource) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.FilePath != b.FilePath {
		return a.FilePath < b.FilePath
	}
	return a.StartLine < b.StartLine
}

// fillSnippets loads each source's content through the TTL cache, fetching
// misses from the upstream with bounded parallelism.
func (r *Retriever) fillSnippets(ctx context.Context, repo models.Repository, sources []models.RetrievedSource) error {
	if repo.LastIndexedCommit == "" {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snippetFanOut)

	for i := range sources {
		g.Go(func() error {
			key := cache.SnippetKey{
				RepoID:    repo.ID,
				CommitSHA: repo.LastIndexedCommit,
				FilePath:  sources[i].FilePath,
				StartLine: sources[i].StartLine,
				EndLine:   sources[i].EndLine,
			}

			if r.cache != nil {
				if content, ok := r.cache.GetSnippet(gctx, key); ok {
					sources[i].Content = content
					return nil
				}
			}

			content, err := r.fetcher.FileContent(gctx, repo, sources[i].FilePath, repo.LastIndexedCommit)
			if err != nil {
				r.log.Warn("snippet fetch failed", "file", sources[i].FilePath, "error", err)
				sources[i].Content = fmt.Sprintf("[Could not fetch: %v]", err)
				return nil
			}

			snippet := sliceLines(content, sources[i].StartLine, sources[i].EndLine)
			sources[i].Content = snippet
			if r.cache != nil {
				r.cache.SetSnippet(gctx, key, snippet)
			}
			return nil
		})
	}
	return g.Wait()
}

// sliceLines extracts the 1-based inclusive line span, capped in size.
func sliceLines(content string, startLine, endLine int) string {
	lines := strings.Split(content, "\n")
	start := startLine - 1
	if start < 0 {
		start = 0
	}
	end := endLine
	if end > len(lines) {
		end = len(lines)
	}
	if start >= end {
		return ""
	}

	snippet := strings.Join(lines[start:end], "\n")
	if len(snippet) > maxSnippetChars {
		snippet = snippet[:maxSnippetChars] + "..."
	}
	return snippet
}
