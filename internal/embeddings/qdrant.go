package embeddings

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/codeproof/codeproof-go/internal/config"
	"github.com/codeproof/codeproof-go/internal/models"
)

// QdrantStore implements VectorStore on a Qdrant collection. Points carry
// enough payload for the retriever to build citations without a second
// lookup.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

func NewQdrantStore(cfg config.QdrantConfig) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	return &QdrantStore{client: client, collection: cfg.Collection}, nil
}

// EnsureCollection creates the collection with cosine distance when it does
// not exist yet.
func (s *QdrantStore) EnsureCollection(ctx context.Context, dimension int) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func repoFilter(repoID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("repo_id", repoID)},
	}
}

// DeleteByRepo removes every point whose payload repo_id matches.
func (s *QdrantStore) DeleteByRepo(ctx context.Context, repoID string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelectorFilter(repoFilter(repoID)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete vectors for repo %s: %w", repoID, err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(c.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"repo_id":     c.RepoID,
				"file_path":   c.FilePath,
				"line_start":  int64(c.LineStart),
				"line_end":    int64(c.LineEnd),
				"symbol_name": c.SymbolName,
				"symbol_type": c.SymbolType,
				"preview":     c.ContentPreview,
			}),
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("vector upsert failed: %w", err)
	}
	return nil
}

// Search runs kNN over the repository's points.
func (s *QdrantStore) Search(ctx context.Context, repoID string, vector []float32, limit int) ([]models.RetrievedSource, error) {
	lim := uint64(limit)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         repoFilter(repoID),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	sources := make([]models.RetrievedSource, 0, len(results))
	for _, point := range results {
		payload := point.Payload
		sources = append(sources, models.RetrievedSource{
			FilePath:   payload["file_path"].GetStringValue(),
			StartLine:  int(payload["line_start"].GetIntegerValue()),
			EndLine:    int(payload["line_end"].GetIntegerValue()),
			SymbolName: payload["symbol_name"].GetStringValue(),
			Score:      float64(point.Score),
			Origin:     "vector",
		})
	}
	return sources, nil
}
