package main

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/mdboard/internal/config"
	"github.com/mschirtzinger/mdboard/internal/format"
	"github.com/mschirtzinger/mdboard/internal/store"
	"github.com/mschirtzinger/mdboard/internal/ui"
)

var initCmd = &cobra.Command{
	Use:     "init [title]",
	GroupID: "setup",
	Short:   "Create a board in the current directory",
	Long: `Create board.md with the columns To Do, Doing and Done, a directory for each
column under cards/, and a default .mdboard/config.yaml.

The title defaults to the directory name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		title := filepath.Base(boardRoot)
		if len(args) == 1 {
			title = args[0]
		}

		if err := store.Init(boardRoot, title, format.Markdown{}); err != nil {
			return err
		}

		cfgPath := config.ProjectConfigPath(boardRoot)
		if err := config.WriteDefault(cfgPath); err != nil && !errors.Is(err, fs.ErrExist) {
			logger.Warn("could not write default config", "path", cfgPath, "error", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s Created board %q in %s\n", ui.RenderPass("✓"), title, boardRoot)
		fmt.Fprintf(out, "   Add a card: mdboard card add \"First card\"\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
