package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mschirtzinger/mdboard/internal/cloudmeta"
	"github.com/mschirtzinger/mdboard/internal/daemon"
	"github.com/mschirtzinger/mdboard/internal/index"
	"github.com/mschirtzinger/mdboard/internal/store"
	"github.com/mschirtzinger/mdboard/internal/syncstatus"
	"github.com/mschirtzinger/mdboard/internal/ui"
	"github.com/mschirtzinger/mdboard/internal/vcs"
)

// openTracker returns a tracker for the configured provider, or nil when
// sync tracking is off. The returned func releases the provider.
func openTracker() (*syncstatus.Tracker, func()) {
	provider := daemon.NewProvider(cfg.Sync, logger)
	if provider == nil {
		return nil, func() {}
	}
	release := func() {
		if c, ok := provider.(io.Closer); ok {
			_ = c.Close()
		}
	}
	return syncstatus.New(boardRoot, provider, syncstatus.WithLogger(logger)), release
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show card counts and the sync state",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		board := st.Board()

		fmt.Fprintf(out, "\n%s %s\n\n", ui.RenderAccent("📋"), board.Title)
		counts, err := columnCounts(st)
		if err != nil {
			return err
		}
		for _, col := range board.Columns {
			fmt.Fprintf(out, "  %-20s %d\n", col.Name, counts[col.ID])
		}
		if orphans := st.Orphans(); len(orphans) > 0 {
			fmt.Fprintf(out, "  %-20s %d\n", ui.RenderWarn("Unknown column"), len(orphans))
		}

		tracker, release := openTracker()
		defer release()
		state := syncstatus.NotConfigured
		if tracker != nil {
			state = tracker.Scan(rootCtx)
		}
		fmt.Fprintf(out, "\nSync: %s\n", ui.RenderSyncState(state))
		if tracker == nil {
			fmt.Fprintln(out)
			return nil
		}
		if err := tracker.Err(); err != nil {
			fmt.Fprintf(out, "  %s\n", ui.RenderFail(err.Error()))
		}
		for _, f := range tracker.Files() {
			s := syncstatus.Reduce([]cloudmeta.FileMetadata{f})
			if s == syncstatus.Synced {
				continue
			}
			rel, err := filepath.Rel(boardRoot, f.Path)
			if err != nil {
				rel = f.Path
			}
			fmt.Fprintf(out, "  %-40s %s\n", rel, ui.RenderSyncState(s))
		}
		fmt.Fprintln(out)
		return nil
	},
}

// columnCounts counts cards per column through the index. A disabled index
// is built in memory for the call.
func columnCounts(st *store.Store) (map[string]int, error) {
	path := index.Memory
	if cfg.Index.Enabled {
		path = st.Layout().IndexPath()
	}
	db, err := index.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if err := db.Rebuild(rootCtx, st.Board(), st.Cards()); err != nil {
		return nil, err
	}
	return db.ColumnCounts(rootCtx)
}

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Download remote changes",
	Long: `Download every card the remote has changed and the local copy lacks, then
report the sync state. With the git provider this is a fast-forward pull.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, release := openTracker()
		defer release()
		if tracker == nil {
			return cloudmeta.ErrNotCloudBacked
		}

		state, err := tracker.Sync(rootCtx)
		fmt.Fprintf(cmd.OutOrStdout(), "Sync: %s\n", ui.RenderSyncState(state))
		return err
	},
}

var pushCmd = &cobra.Command{
	Use:     "push",
	GroupID: "sync",
	Short:   "Report whether local changes have been uploaded",
	Long: `Report whether local changes have reached the remote. Uploads happen on
their own once files are written; with git, commit and push as usual.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, release := openTracker()
		defer release()
		if tracker == nil {
			return cloudmeta.ErrNotCloudBacked
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sync: %s\n", ui.RenderSyncState(tracker.Push(rootCtx)))
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:     "resolve [card|path]",
	GroupID: "sync",
	Short:   "Settle conflicted files",
	Long: `Keep the local or the remote copy of a conflicted file. With no argument,
every conflicted file is resolved in turn. Without --keep, you are asked for
each file on a terminal.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tracker, release := openTracker()
		defer release()
		if tracker == nil {
			return cloudmeta.ErrNotCloudBacked
		}

		var keep vcs.Side
		if k, _ := cmd.Flags().GetString("keep"); k != "" {
			side, err := vcs.ParseSide(k)
			if err != nil {
				return err
			}
			keep = side
		}

		var paths []string
		if len(args) == 1 {
			path, err := resolvePath(args[0])
			if err != nil {
				return err
			}
			paths = []string{path}
		} else {
			tracker.Scan(rootCtx)
			for _, f := range tracker.Files() {
				if f.HasConflict {
					paths = append(paths, f.Path)
				}
			}
		}

		out := cmd.OutOrStdout()
		if len(paths) == 0 {
			fmt.Fprintf(out, "%s No conflicts\n", ui.RenderPass("✓"))
			return nil
		}

		for _, path := range paths {
			side := keep
			if side == "" {
				var err error
				if side, err = askSide(cmd, path); err != nil {
					return err
				}
			}
			state, err := tracker.Resolve(rootCtx, path, side)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Fprintf(out, "%s Kept %s copy of %s (sync: %s)\n", ui.RenderPass("✓"), side, filepath.Base(path), state)
		}
		return nil
	},
}

// resolvePath turns a card reference or a file path into an absolute path.
func resolvePath(ref string) (string, error) {
	if st, err := openStore(); err == nil {
		if path, err := st.Path(ref); err == nil {
			return path, nil
		}
	}
	path, err := filepath.Abs(ref)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%s: no such card or file", ref)
	}
	return path, nil
}

func askSide(cmd *cobra.Command, path string) (vcs.Side, error) {
	if !interactive(cmd) {
		return "", errors.New("conflicts need --keep local or --keep remote when not on a terminal")
	}
	var choice string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which copy of %s should be kept?", filepath.Base(path))).
				Description(path).
				Options(
					huh.NewOption("Local (this machine's version)", string(vcs.SideLocal)),
					huh.NewOption("Remote (the synced version)", string(vcs.SideRemote)),
				).
				Value(&choice),
		),
	).Run()
	if err != nil {
		return "", fmt.Errorf("failed to read choice: %w", err)
	}
	return vcs.Side(choice), nil
}

func init() {
	resolveCmd.Flags().String("keep", "", "Side to keep: local or remote")
	rootCmd.AddCommand(statusCmd, syncCmd, pushCmd, resolveCmd)
}
