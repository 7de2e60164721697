package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeproof/codeproof-go/internal/embeddings"
	"github.com/codeproof/codeproof-go/internal/ingestion"
	"github.com/codeproof/codeproof-go/internal/llm"
	"github.com/codeproof/codeproof-go/internal/treesitter"
)

var indexRef string

var indexCmd = &cobra.Command{
	Use:   "index <owner/repo | url>",
	Short: "Build or rebuild a repository's searchable index",
	Long: `Clones the repository, extracts its symbols, replaces the stored
file and symbol records, and re-embeds every symbol chunk into the
vector store. Required before asking questions about a repository.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		repo, err := resolveRepository(ctx, store, args[0])
		if err != nil {
			return err
		}

		llmClient, err := llm.NewClient(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("llm client: %w", err)
		}

		vectors, err := embeddings.NewQdrantStore(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("qdrant: %w", err)
		}

		var tokens ingestion.TokenSource
		if gh := newGitHubClient(); gh != nil {
			tokens = gh
		}

		parser := treesitter.NewParser(logger)
		defer parser.Close()

		pipeline := embeddings.NewPipeline(llmClient, vectors, logger)
		orch := ingestion.NewOrchestrator(store, newCloner(), tokens, parser, embeddings.BuildChunks, pipeline, logger)

		result, err := orch.IndexRepository(ctx, repo, indexRef)
		if err != nil {
			return err
		}

		fmt.Printf("Indexed %s at %s\n", repo.FullName, result.CommitSHA)
		fmt.Printf("  files:   %d\n", result.FileCount)
		fmt.Printf("  symbols: %d\n", result.SymbolCount)
		fmt.Printf("  chunks:  %d\n", result.ChunkCount)
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexRef, "ref", "", "branch, tag, or commit to index (default branch head if empty)")
}
