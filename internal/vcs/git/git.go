// Package git implements vcs.VCS on top of the git binary.
//
// Read-only commands are bounded by vcs.DefaultTimeout. Network commands
// (fetch, pull) use the caller's context.
package git

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/mschirtzinger/mdboard/internal/vcs"
)

// Git is a repository checkout. For a linked worktree, gitDir is the
// worktree's own metadata directory.
type Git struct {
	root   string
	gitDir string
}

// New opens the repository containing path.
func New(path string) (*Git, error) {
	g := &Git{}
	if err := g.locate(path); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Git) Name() vcs.Type { return vcs.TypeGit }

func (g *Git) RepoRoot() (string, error) {
	if g.root == "" {
		return "", vcs.ErrNotInVCS
	}
	return g.root, nil
}

func (g *Git) VCSDir() (string, error) {
	if g.gitDir == "" {
		return "", vcs.ErrNotInVCS
	}
	return g.gitDir, nil
}

// Exec runs git with args in the repository root. On failure the error
// carries git's combined output so vcs.IsFatal and friends can inspect it.
func (g *Git) Exec(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %w\n%s", strings.Join(args, " "), err, out)
	}
	return out, nil
}

func (g *Git) output(args ...string) ([]byte, error) {
	return vcs.ExecContext(context.Background(), vcs.DefaultTimeout, g.root, "git", args...)
}
