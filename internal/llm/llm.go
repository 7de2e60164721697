package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/codeproof/codeproof-go/internal/config"
	"github.com/codeproof/codeproof-go/internal/logging"
)

// Completer generates a text completion for a prompt pair.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Embedder converts a batch of texts into vectors.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Provider selects the upstream model vendor.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Client bundles completion and embedding behind one provider choice,
// with a circuit breaker wrapped around the upstream.
type Client struct {
	provider  Provider
	completer Completer
	embedder  Embedder
	breaker   *CircuitBreaker
	log       *logging.Logger
}

// NewClient builds the provider-specific client from configuration.
func NewClient(ctx context.Context, cfg *config.Config, log *logging.Logger) (*Client, error) {
	logger := log.WithComponent("llm")
	breaker := NewCircuitBreaker(DefaultFailureThreshold, DefaultBreakerWindow)

	switch Provider(cfg.LLM.Provider) {
	case ProviderOpenAI:
		oc := NewOpenAIClient(cfg.LLM.OpenAIKey, cfg.LLM.OpenAIModel, cfg.LLM.EmbeddingModel, cfg.LLM.EmbeddingDim)
		logger.Info("llm client initialized", "provider", "openai", "model", cfg.LLM.OpenAIModel)
		return &Client{provider: ProviderOpenAI, completer: oc, embedder: oc, breaker: breaker, log: logger}, nil
	case ProviderGemini:
		gc, err := NewGeminiClient(ctx, cfg.LLM.GeminiKey, cfg.LLM.GeminiModel, cfg.LLM.EmbeddingModel, cfg.LLM.EmbeddingDim)
		if err != nil {
			return nil, err
		}
		logger.Info("llm client initialized", "provider", "gemini", "model", cfg.LLM.GeminiModel)
		return &Client{provider: ProviderGemini, completer: gc, embedder: gc, breaker: breaker, log: logger}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %q", cfg.LLM.Provider)
	}
}

func (c *Client) Provider() Provider { return c.provider }

// Complete runs a completion through the circuit breaker.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var out string
	err := c.breaker.Call(func() error {
		var err error
		out, err = c.completer.Complete(ctx, systemPrompt, userPrompt)
		return err
	})
	return out, err
}

// Embed runs an embedding batch through the circuit breaker.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := c.breaker.Call(func() error {
		var err error
		out, err = c.embedder.Embed(ctx, texts)
		return err
	})
	return out, err
}

func (c *Client) Dimension() int { return c.embedder.Dimension() }

// Transient upstream failures worth retrying. Anything else propagates.
var retryableFragments = []string{
	"429", "rate limit", "rate_limit", "quota",
	"500", "502", "503", "504",
	"timeout", "deadline exceeded", "connection reset", "overloaded",
}

// IsRetryable classifies an upstream error as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, f := range retryableFragments {
		if strings.Contains(msg, f) {
			return true
		}
	}
	return false
}
