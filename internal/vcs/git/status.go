package git

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mschirtzinger/mdboard/internal/vcs"
)

// Status returns the status of files in the working directory
func (g *Git) Status(paths ...string) ([]vcs.FileStatus, error) {
	args := []string{"status", "--porcelain", "--untracked-files=all"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}

	output, err := g.output(args...)
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}

	var statuses []vcs.FileStatus
	for _, line := range strings.Split(string(output), "\n") {
		if len(line) < 4 {
			continue
		}

		// Parse status format: XY filename
		// X = staged status, Y = unstaged status
		staged := line[0:1]
		unstaged := line[1:2]
		path := strings.TrimSpace(line[3:])

		// Renames are reported as "old -> new"
		if i := strings.Index(path, " -> "); i >= 0 {
			path = path[i+len(" -> "):]
		}

		code := parseStatusCode(unstaged)
		if unmerged(line[:2]) {
			code = vcs.StatusConflict
		}

		statuses = append(statuses, vcs.FileStatus{
			Path:       strings.Trim(path, `"`),
			Status:     code,
			StagedCode: parseStatusCode(staged),
		})
	}

	return statuses, nil
}

// parseStatusCode converts git status code to vcs.StatusCode
func parseStatusCode(code string) vcs.StatusCode {
	switch code {
	case " ":
		return vcs.StatusUnmodified
	case "M":
		return vcs.StatusModified
	case "A":
		return vcs.StatusAdded
	case "D":
		return vcs.StatusDeleted
	case "R":
		return vcs.StatusRenamed
	case "C":
		return vcs.StatusCopied
	case "?":
		return vcs.StatusUntracked
	case "!":
		return vcs.StatusIgnored
	case "U":
		return vcs.StatusConflict
	default:
		return vcs.StatusUnmodified
	}
}

// Resolve settles a conflicted file by checking out one side and staging
// it. During a rebase git's ours and theirs are swapped relative to a merge,
// so local and remote are mapped accordingly.
func (g *Git) Resolve(ctx context.Context, path string, side vcs.Side) error {
	if _, err := vcs.ParseSide(string(side)); err != nil {
		return err
	}

	conflicts, err := g.GetConflictedFiles()
	if err != nil {
		return err
	}
	if !slices.Contains(conflicts, path) {
		return fmt.Errorf("%s: %w", path, vcs.ErrNotConflicted)
	}

	flag := "--ours"
	if side == vcs.SideRemote {
		flag = "--theirs"
	}
	if g.isRebasing() {
		if flag == "--ours" {
			flag = "--theirs"
		} else {
			flag = "--ours"
		}
	}

	if _, err := g.Exec(ctx, "checkout", flag, "--", path); err != nil {
		return err
	}
	if _, err := g.Exec(ctx, "add", "--", path); err != nil {
		return err
	}
	return nil
}
