package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/codeproof/codeproof-go/internal/config"
	"github.com/codeproof/codeproof-go/internal/logging"
)

// Snippets expire after an hour; a re-index within that window changes the
// commit in the key, so stale content is never served.
const snippetTTL = time.Hour

// Client wraps Redis for snippet caching during retrieval.
type Client struct {
	rdb *redis.Client
	log *logging.Logger
}

func NewClient(ctx context.Context, cfg config.RedisConfig, log *logging.Logger) (*Client, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("redis host missing")
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       0,
	})

	// Fail fast on startup.
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	logger := log.WithComponent("cache")
	logger.Info("redis client connected", "addr", addr)

	return &Client{rdb: rdb, log: logger}, nil
}

func (c *Client) Close() error {
	if err := c.rdb.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	return nil
}

// SnippetKey identifies one cached source span at an exact commit.
type SnippetKey struct {
	RepoID    string
	CommitSHA string
	FilePath  string
	StartLine int
	EndLine   int
}

func (k SnippetKey) redisKey() string {
	return fmt.Sprintf("snippet:%s:%s:%s:%d-%d",
		k.RepoID, k.CommitSHA, k.FilePath, k.StartLine, k.EndLine)
}

// GetSnippet returns the cached content and whether it was present. Redis
// being unreachable is reported as a miss, not an error; retrieval can
// always fall back to the upstream fetch.
func (c *Client) GetSnippet(ctx context.Context, key SnippetKey) (string, bool) {
	val, err := c.rdb.Get(ctx, key.redisKey()).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		c.log.Warn("snippet cache read failed", "error", err)
		return "", false
	}
	return val, true
}

// SetSnippet stores the content under the standard TTL. Write failures are
// logged and swallowed for the same reason reads are.
func (c *Client) SetSnippet(ctx context.Context, key SnippetKey, content string) {
	if err := c.rdb.Set(ctx, key.redisKey(), content, snippetTTL).Err(); err != nil {
		c.log.Warn("snippet cache write failed", "error", err)
	}
}
