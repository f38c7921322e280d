package git

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mschirtzinger/mdboard/internal/vcs"
)

// CurrentRef returns the current branch name
// Returns empty string if in detached HEAD state
func (g *Git) CurrentRef() (string, error) {
	output, err := g.output("symbolic-ref", "--short", "HEAD")
	if err != nil {
		if strings.Contains(err.Error(), "not a symbolic ref") {
			return "", nil // Detached HEAD
		}
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// Upstream returns the remote-tracking ref the current branch follows,
// e.g. "origin/main".
func (g *Git) Upstream() (string, error) {
	output, err := g.output("rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		return "", fmt.Errorf("%w: %v", vcs.ErrNoUpstream, err)
	}
	upstream := strings.TrimSpace(string(output))
	if upstream == "" {
		return "", vcs.ErrNoUpstream
	}
	return upstream, nil
}

// ChangedFiles lists files changed on to since its merge base with from.
func (g *Git) ChangedFiles(from, to string, paths ...string) ([]string, error) {
	args := []string{"diff", "--name-only", from + "..." + to}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	output, err := g.output(args...)
	if err != nil {
		return nil, fmt.Errorf("git diff %s...%s failed: %w", from, to, err)
	}
	return vcs.ParseLines(output), nil
}

// HasDivergence checks if local and remote refs have diverged
func (g *Git) HasDivergence(local, remote string) (vcs.DivergenceInfo, error) {
	info := vcs.DivergenceInfo{}

	// Left counts commits only in local, right counts commits only in remote.
	output, err := g.output("rev-list", "--left-right", "--count", local+"..."+remote)
	if err != nil {
		return info, fmt.Errorf("failed to count divergent commits: %w", err)
	}

	fields := strings.Fields(string(output))
	if len(fields) != 2 {
		return info, fmt.Errorf("unexpected git rev-list output: %q", strings.TrimSpace(string(output)))
	}
	if info.LocalAhead, err = strconv.Atoi(fields[0]); err != nil {
		return info, fmt.Errorf("failed to parse ahead count: %w", err)
	}
	if info.RemoteAhead, err = strconv.Atoi(fields[1]); err != nil {
		return info, fmt.Errorf("failed to parse behind count: %w", err)
	}

	info.IsDiverged = info.LocalAhead > 0 && info.RemoteAhead > 0
	return info, nil
}
