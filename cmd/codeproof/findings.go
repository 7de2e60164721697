package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var findingsJSON bool

var findingsCmd = &cobra.Command{
	Use:   "findings <scan-run-id>",
	Short: "List the findings of a recorded scan run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		store, err := newStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		findings, err := store.GetFindings(ctx, args[0])
		if err != nil {
			return err
		}

		if findingsJSON {
			return json.NewEncoder(os.Stdout).Encode(findings)
		}
		printFindings(findings)
		return nil
	},
}

func init() {
	findingsCmd.Flags().BoolVar(&findingsJSON, "json", false, "emit JSON instead of text")
}
