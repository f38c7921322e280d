package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/mdboard/internal/loadtest"
	"github.com/mschirtzinger/mdboard/internal/ui"
)

var benchCmd = &cobra.Command{
	Use:     "bench",
	GroupID: "setup",
	Short:   "Measure a large board on this machine",
	Long: `Build a throwaway board in a temporary directory and time the operations a
large board depends on:
  - loading every card file
  - reconciling a batch of edits made behind mdboard's back
  - concurrent searches against the index

Examples:
  mdboard bench
  mdboard bench --cards 5000 --readers 50
  mdboard bench --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadtest.DefaultConfig()
		cfg.Cards, _ = cmd.Flags().GetInt("cards")
		cfg.Readers, _ = cmd.Flags().GetInt("readers")
		cfg.QueriesPerReader, _ = cmd.Flags().GetInt("queries")
		cfg.EditFraction, _ = cmd.Flags().GetFloat64("edits")
		jsonOutput, _ := cmd.Flags().GetBool("json")

		if cfg.Cards <= 0 || cfg.Readers <= 0 || cfg.QueriesPerReader <= 0 {
			return errors.New("--cards, --readers and --queries must be positive")
		}
		if cfg.EditFraction < 0 || cfg.EditFraction > 1 {
			return errors.New("--edits must be between 0.0 and 1.0")
		}

		dir, err := os.MkdirTemp("", "mdboard-bench-")
		if err != nil {
			return err
		}
		defer os.RemoveAll(dir)

		out := cmd.OutOrStdout()
		if !jsonOutput {
			fmt.Fprintf(out, "%s Building a board of %d cards...\n\n", ui.RenderAccent("⏱"), cfg.Cards)
		}
		result, err := loadtest.Run(rootCtx, dir, cfg)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		result.Print(out)
		return nil
	},
}

func init() {
	benchCmd.Flags().Int("cards", 500, "Number of cards on the board")
	benchCmd.Flags().Int("readers", 20, "Concurrent searchers")
	benchCmd.Flags().Int("queries", 10, "Searches per reader")
	benchCmd.Flags().Float64("edits", 0.1, "Fraction of cards edited externally before reconciling")
	benchCmd.Flags().Bool("json", false, "Output results as JSON")
	rootCmd.AddCommand(benchCmd)
}
