package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeproof/codeproof-go/internal/models"
	"github.com/codeproof/codeproof-go/internal/scan"
	"github.com/codeproof/codeproof-go/internal/treesitter"
)

var (
	scanRef       string
	scanAnalyzers []string
	scanJSON      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <owner/repo | url>",
	Short: "Scan a repository for risk findings",
	Long: `Clones the repository, parses it, runs the enabled analyzers, and
persists scored findings with evidence. A repeated scan of the same
commit with the same configuration returns the recorded run.`,
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

		var tokens scan.TokenSource
		if gh := newGitHubClient(); gh != nil {
			tokens = gh
		}

		parser := treesitter.NewParser(logger)
		defer parser.Close()

		orch := scan.NewOrchestrator(store, newCloner(), tokens, parser, logger)
		run, err := orch.Run(ctx, repo, scan.Options{Ref: scanRef, Analyzers: scanAnalyzers})
		if err != nil {
			return err
		}

		findings, err := store.GetFindings(ctx, run.ID)
		if err != nil {
			return err
		}

		if scanJSON {
			return json.NewEncoder(os.Stdout).Encode(map[string]any{
				"run":      run,
				"findings": findings,
			})
		}
		printScanRun(run, findings)
		return nil
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanRef, "ref", "", "branch, tag, or commit to scan (default branch head if empty)")
	scanCmd.Flags().StringSliceVar(&scanAnalyzers, "analyzers", nil, "restrict to the named analyzers (default: all)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit JSON instead of text")
}

func printScanRun(run *models.ScanRun, findings []models.Finding) {
	fmt.Printf("Scan %s\n", run.ID)
	fmt.Printf("  commit:   %s\n", run.CommitSHA)
	fmt.Printf("  status:   %s\n", run.Status)
	if len(run.DegradedModes) > 0 {
		fmt.Printf("  degraded: %v\n", run.DegradedModes)
	}
	if run.Error != "" {
		fmt.Printf("  error:    %s\n", run.Error)
	}

	fmt.Println()
	printFindings(findings)
}

func printFindings(findings []models.Finding) {
	if len(findings) == 0 {
		fmt.Println("No findings.")
		return
	}
	fmt.Printf("%d finding(s):\n", len(findings))
	for _, f := range findings {
		fmt.Printf("  [%s/%s] %s (%s, impact %.0f)\n",
			f.Severity, f.Confidence, f.Title, f.RuleID, f.ImpactScore)
		for _, inst := range f.Instances {
			fmt.Printf("      %s:%d-%d\n",
				inst.Evidence.FilePath, inst.Evidence.StartLine, inst.Evidence.EndLine)
		}
	}
}
