package git

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mschirtzinger/mdboard/internal/vcs"
)

// locate asks git for the metadata directory and the top level of the
// checkout containing path.
func (g *Git) locate(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	out, err := vcs.ExecContext(context.Background(), vcs.DefaultTimeout, abs,
		"git", "rev-parse", "--git-dir", "--show-toplevel")
	if err != nil {
		return vcs.ErrNotInVCS
	}
	lines := vcs.ParseLines(out)
	if len(lines) < 2 {
		return fmt.Errorf("unexpected git rev-parse output: %q", out)
	}

	gitDir := lines[0]
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(abs, gitDir)
	}
	g.gitDir = filepath.Clean(gitDir)

	// Resolve symlinks so the root compares equal to paths the watcher
	// and the store hand out.
	g.root = filepath.FromSlash(lines[1])
	if resolved, err := filepath.EvalSymlinks(g.root); err == nil {
		g.root = resolved
	}
	return nil
}

func (g *Git) HasRemote() bool {
	out, err := g.output("remote")
	return err == nil && strings.TrimSpace(string(out)) != ""
}

func (g *Git) IsInRebaseOrMerge() bool {
	return g.isRebasing() || exists(filepath.Join(g.gitDir, "MERGE_HEAD"))
}

// isRebasing covers both rebase backends: rebase-merge and rebase-apply (am).
func (g *Git) isRebasing() bool {
	return exists(filepath.Join(g.gitDir, "rebase-merge")) ||
		exists(filepath.Join(g.gitDir, "rebase-apply"))
}

// GetConflictedFiles lists unmerged paths, relative to the repository root.
func (g *Git) GetConflictedFiles() ([]string, error) {
	out, err := g.output("status", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}
	var conflicts []string
	for _, line := range strings.Split(string(out), "\n") {
		if len(line) > 3 && unmerged(line[:2]) {
			conflicts = append(conflicts, strings.TrimSpace(line[3:]))
		}
	}
	return conflicts, nil
}

// unmerged reports whether a porcelain XY code marks an unmerged path.
func unmerged(xy string) bool {
	switch xy {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return true
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
