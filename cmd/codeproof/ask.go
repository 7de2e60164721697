package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codeproof/codeproof-go/internal/answer"
	"github.com/codeproof/codeproof-go/internal/cache"
	"github.com/codeproof/codeproof-go/internal/embeddings"
	"github.com/codeproof/codeproof-go/internal/llm"
	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/retrieval"
)

var askCmd = &cobra.Command{
	Use:   "ask <owner/repo> <question>",
	Short: "Ask a question about an indexed repository",
	Long: `Retrieves the most relevant indexed symbols for the question and
generates an answer whose quotes are verified against the retrieved
sources. The repository must have been indexed first.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		question := strings.TrimSpace(strings.Join(args[1:], " "))
		if err := validateQuestion(question); err != nil {
			return err
		}

		store, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		repo, err := store.GetRepositoryByFullName(ctx, args[0])
		if err != nil {
			return fmt.Errorf("repository %s is not known; index it first", args[0])
		}
		if repo.IndexStatus != models.IndexStatusReady {
			return fmt.Errorf("repository %s is not indexed (status %s)", repo.FullName, repo.IndexStatus)
		}

		llmClient, err := llm.NewClient(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("llm client: %w", err)
		}
		vectors, err := embeddings.NewQdrantStore(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}

		var snippets retrieval.SnippetCache
		if redis, err := cache.NewClient(ctx, cfg.Redis, logger); err != nil {
			logger.Warn("snippet cache unavailable, fetching uncached", "error", err)
			snippets = noSnippetCache{}
		} else {
			snippets = redis
		}

		var fetcher retrieval.FileFetcher
		if gh := newGitHubClient(); gh != nil {
			fetcher = gh
		} else {
			fetcher = noFetcher{}
		}

		retriever := retrieval.NewRetriever(store, vectors, llmClient, fetcher, snippets, logger)
		sources, err := retriever.Retrieve(ctx, *repo, question)
		if err != nil {
			return err
		}

		engine := answer.NewEngine(llmClient, logger)
		ans, err := engine.Answer(ctx, *repo, question, sources)
		if err != nil {
			return err
		}
		if err := store.SaveAnswer(ctx, ans); err != nil {
			logger.Warn("failed to persist answer", "error", err)
		}

		printAnswer(ans)
		return nil
	},
}

const maxQuestionChars = 1000

func validateQuestion(q string) error {
	if q == "" {
		return fmt.Errorf("question must not be empty")
	}
	if len(q) > maxQuestionChars {
		return fmt.Errorf("question exceeds %d characters", maxQuestionChars)
	}
	return nil
}

type noSnippetCache struct{}

func (noSnippetCache) GetSnippet(context.Context, cache.SnippetKey) (string, bool) { return "", false }
func (noSnippetCache) SetSnippet(context.Context, cache.SnippetKey, string)        {}

type noFetcher struct{}

func (noFetcher) FileContent(context.Context, models.Repository, string, string) (string, error) {
	return "", fmt.Errorf("no github credentials configured")
}

func printAnswer(ans *models.Answer) {
	for _, s := range ans.Sections {
		marker := ""
		if s.Unverified {
			marker = " (unverified)"
		}
		fmt.Printf("## %s%s\n%s\n\n", s.Heading, marker, s.Text)
	}

	if len(ans.Unknowns) > 0 {
		fmt.Println("Could not determine:")
		for _, u := range ans.Unknowns {
			fmt.Printf("  - %s\n", u)
		}
		fmt.Println()
	}

	fmt.Printf("Confidence: %s\n", ans.ConfidenceTier)
	if len(ans.ValidationErrors) > 0 {
		fmt.Printf("Validation issues: %v\n", ans.ValidationErrors)
	}
	if len(ans.Citations) > 0 {
		fmt.Println("Sources:")
		for _, c := range ans.Citations {
			fmt.Printf("  [%d] %s:%d-%d\n", c.SourceIndex, c.FilePath, c.StartLine, c.EndLine)
		}
	}
}
