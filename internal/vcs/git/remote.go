package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/mschirtzinger/mdboard/internal/vcs"
)

// Fetch fetches from the specified remote and reference
// If remote is empty, uses the current branch's remote (or origin)
func (g *Git) Fetch(ctx context.Context, remote, ref string) error {
	if !g.HasRemote() {
		return vcs.ErrNoRemote
	}

	if remote == "" {
		remote = g.defaultRemote()
	}

	args := []string{"fetch", "--quiet", remote}
	if ref != "" {
		args = append(args, ref)
	}

	if _, err := g.Exec(ctx, args...); err != nil {
		return err
	}
	return nil
}

// Pull integrates the current branch's remote into it.
func (g *Git) Pull(ctx context.Context, opts vcs.PullOptions) error {
	if !g.HasRemote() {
		return vcs.ErrNoRemote
	}
	ref, err := g.CurrentRef()
	if err != nil {
		return err
	}
	if ref == "" {
		return vcs.ErrDetached
	}

	// Without a mode git refuses divergent branches unless pull.rebase is set.
	mode := "--no-rebase"
	if opts.FFOnly {
		mode = "--ff-only"
	}
	if _, err := g.Exec(ctx, "pull", mode, g.defaultRemote(), ref); err != nil {
		msg := err.Error()
		if strings.Contains(msg, "CONFLICT") || strings.Contains(msg, "conflicts") {
			return fmt.Errorf("%w: %v", vcs.ErrConflicts, err)
		}
		if strings.Contains(msg, "Not possible to fast-forward") ||
			strings.Contains(msg, "non-fast-forward") ||
			strings.Contains(msg, "divergent branches") {
			return fmt.Errorf("%w: %v", vcs.ErrMergeRequired, err)
		}
		return err
	}
	return nil
}

// defaultRemote returns branch.<current>.remote, or origin.
func (g *Git) defaultRemote() string {
	branch, err := g.CurrentRef()
	if err == nil && branch != "" {
		output, err := g.output("config", "--get", fmt.Sprintf("branch.%s.remote", branch))
		if err == nil {
			if remote := strings.TrimSpace(string(output)); remote != "" {
				return remote
			}
		}
	}
	return "origin"
}
