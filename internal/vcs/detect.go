package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DetectionResult describes the repository found around a path.
type DetectionResult struct {
	Type     Type
	RepoRoot string
	// VCSDir is the metadata directory. For a worktree it is the
	// per-worktree directory under the main repository's .git.
	VCSDir       string
	IsWorktree   bool
	MainRepoRoot string
}

// Detect walks up from path until it finds a .git directory or file.
// It returns ErrNotInVCS when it reaches the filesystem root first.
func Detect(path string) (*DetectionResult, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	for {
		dotGit := filepath.Join(dir, ".git")
		info, err := os.Stat(dotGit)
		if err == nil {
			res := &DetectionResult{Type: TypeGit, RepoRoot: dir, VCSDir: dotGit, MainRepoRoot: dir}
			if info.Mode().IsRegular() {
				res.IsWorktree = true
				res.MainRepoRoot, res.VCSDir = worktreeMain(dir, dotGit)
			}
			return res, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNotInVCS
		}
		dir = parent
	}
}

// worktreeMain reads a worktree's .git file ("gitdir: <path>") and returns
// the main repository root and the worktree's metadata directory.
func worktreeMain(dir, dotGit string) (mainRoot, gitDir string) {
	data, err := os.ReadFile(dotGit)
	if err != nil {
		return dir, dotGit
	}
	target, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir: ")
	if !ok {
		return dir, dotGit
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	target = filepath.Clean(target)

	sep := string(filepath.Separator)
	if i := strings.Index(target, sep+"worktrees"+sep); i > 0 {
		return filepath.Dir(target[:i]), target
	}
	return dir, target
}

// IsGitAvailable reports whether a git binary is on PATH.
func IsGitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// DetectWithAvailability is Detect that also fails with ErrVCSNotAvailable
// when the repository's binary is missing.
func DetectWithAvailability(path string) (*DetectionResult, error) {
	res, err := Detect(path)
	if err != nil {
		return nil, err
	}
	if res.Type == TypeGit && !IsGitAvailable() {
		return nil, ErrVCSNotAvailable
	}
	return res, nil
}
