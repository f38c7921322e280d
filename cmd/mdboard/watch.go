package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mschirtzinger/mdboard/internal/daemon"
	"github.com/mschirtzinger/mdboard/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "sync",
	Short:   "Keep the board in step with its files (foreground)",
	Long: `Run in the foreground, watching the board directory for changes made by
editors, sync clients or git. The watch:
  1. Folds every added, changed or removed card file into the board
  2. Reloads board.md when it changes
  3. Tracks the sync state against the board's remote
  4. Keeps the search index current
  5. Serves a live WebSocket feed when --port is set

On Unix, SIGUSR1 pauses change detection (poll backend only) and SIGUSR2
resumes it with an immediate check.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := daemon.New(boardRoot, cfg, daemon.WithLogger(logger))
		if err != nil {
			return err
		}
		stopSignals := handleLifecycleSignals(d)
		defer stopSignals()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s Watching %s\n", ui.RenderAccent("👀"), boardRoot)
		fmt.Fprintf(out, "   Backend: %s\n", cfg.WatcherKind())
		fmt.Fprintf(out, "   Sync: %s\n", ui.RenderSyncState(d.SyncState()))
		if cfg.Dashboard.Port > 0 {
			fmt.Fprintf(out, "   Dashboard: ws://%s:%d/ws\n", cfg.Dashboard.Host, cfg.Dashboard.Port)
		}
		fmt.Fprintf(out, "\nPress Ctrl+C to stop\n\n")

		return d.Start(rootCtx)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
