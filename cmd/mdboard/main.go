package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mschirtzinger/mdboard/internal/config"
	"github.com/mschirtzinger/mdboard/internal/format"
	"github.com/mschirtzinger/mdboard/internal/layout"
	"github.com/mschirtzinger/mdboard/internal/logging"
	"github.com/mschirtzinger/mdboard/internal/store"
	"github.com/mschirtzinger/mdboard/internal/ui"
)

var (
	rootFlag     string
	logLevelFlag string
	backendFlag  string
	portFlag     int

	// Set by PersistentPreRunE for every command.
	rootCtx    context.Context
	rootCancel context.CancelFunc
	boardRoot  string
	cfg        *config.Config
	logger     *slog.Logger
	logCloser  io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "mdboard",
	Short: "mdboard - a kanban board kept as markdown files",
	Long: `A kanban board whose columns are directories and whose cards are markdown
files. Edit the files with anything; mdboard keeps the board in step and
tells you how far your copy is from its synced remote.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

		root, err := resolveRoot(rootFlag)
		if err != nil {
			return err
		}
		boardRoot = root

		flags := cmd.Root().PersistentFlags()
		cfg, err = config.Load(boardRoot,
			config.WithFlag("log.level", flags.Lookup("log-level")),
			config.WithFlag("watch.backend", flags.Lookup("backend")),
			config.WithFlag("dashboard.port", flags.Lookup("port")),
		)
		if err != nil {
			return err
		}

		logger, logCloser, err = logging.New(logging.Options{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File,
			MaxSizeMB:  cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			Console:    cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		ui.Init(cmd.OutOrStdout())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
		if rootCancel != nil {
			rootCancel()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Board directory (default: nearest directory with board.md)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&backendFlag, "backend", "", "Change watcher: auto, events, poll")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "Dashboard port for watch (0 disables it)")

	rootCmd.AddGroup(&cobra.Group{ID: "board", Title: "Working With the Board:"})
	rootCmd.AddGroup(&cobra.Group{ID: "views", Title: "Views & Search:"})
	rootCmd.AddGroup(&cobra.Group{ID: "sync", Title: "Sync & Watching:"})
	rootCmd.AddGroup(&cobra.Group{ID: "setup", Title: "Setup:"})
}

// resolveRoot returns the explicit root, or the nearest directory at or
// above the working directory that holds a board file. With no board in
// sight it returns the working directory so init can create one there.
func resolveRoot(explicit string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		if _, err := os.Stat(layout.New(dir).BoardPath()); err == nil {
			return dir, nil
		}
		if filepath.Dir(dir) == dir {
			return cwd, nil
		}
	}
}

// interactive reports whether cmd reads from a terminal, so prompts can be
// shown.
func interactive(cmd *cobra.Command) bool {
	f, ok := cmd.InOrStdin().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func openStore() (*store.Store, error) {
	return store.Open(boardRoot, format.Markdown{}, store.WithLogger(logger))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
