package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeproof/codeproof-go/internal/config"
	"github.com/codeproof/codeproof-go/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logging.Logger
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codeproof",
	Short: "CodeProof - repository analysis with proof-carrying answers",
	Long: `CodeProof scans repositories for risk findings backed by verifiable
evidence, indexes their symbols for retrieval, and answers questions
about the code with quotes verified against the indexed sources.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logging.INFO
		if verbose {
			level = logging.DEBUG
		}
		var err error
		logger, err = logging.NewLogger(logging.Config{Level: level})
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		cfg, err = config.Load(cfgFile)
		if err != nil {
			logger.Warn("failed to load config, using defaults", "error", err)
			cfg = config.Default()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .codeproof/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`CodeProof {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(findingsCmd)
	rootCmd.AddCommand(serveWebhookCmd)
	rootCmd.AddCommand(cleanupCmd)
}
