// Package vcs provides the version control operations mdboard uses to
// observe a board that is synced through a repository.
//
// A board directory inside a git checkout is treated as "cloud backed": the
// sync status tracker asks this package which files are uncommitted, which
// changed upstream and which are in conflict, and reduces that to one state.
//
// # Usage
//
//	import _ "github.com/mschirtzinger/mdboard/internal/vcs/git" // registers git
//
//	v, err := vcs.Open(boardRoot)
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // not synced through a repository
//	}
//	upstream, err := v.Upstream()
//
// # Implementations
//
//   - internal/vcs/git: shells out to the git binary
package vcs

import (
	"context"
)

// Type represents the VCS backend type
type Type string

const (
	// TypeGit indicates a git repository
	TypeGit Type = "git"
)

// String returns the string representation of the VCS type
func (t Type) String() string {
	return string(t)
}

// VCS defines the version control operations needed to derive sync state
// and to bring remote changes in.
type VCS interface {
	// Name returns the VCS type
	Name() Type

	// RepoRoot returns the repository root directory path.
	RepoRoot() (string, error)

	// VCSDir returns the VCS metadata directory path (.git, or the worktree
	// git dir).
	VCSDir() (string, error)

	// HasRemote returns true if any remote is configured.
	HasRemote() bool

	// CurrentRef returns the current branch name, or "" when detached.
	CurrentRef() (string, error)

	// Upstream returns the tracking ref of the current branch, e.g.
	// "origin/main". Returns ErrNoUpstream if none is configured.
	Upstream() (string, error)

	// Status returns working directory status, optionally limited to paths.
	// Paths are relative to the repository root.
	Status(paths ...string) ([]FileStatus, error)

	// ChangedFiles lists files that changed on to since it diverged from
	// from, optionally limited to paths. Paths are relative to the
	// repository root.
	ChangedFiles(from, to string, paths ...string) ([]string, error)

	// HasDivergence counts commits unique to each side.
	HasDivergence(local, remote string) (DivergenceInfo, error)

	// GetConflictedFiles returns files with unresolved merge conflicts.
	GetConflictedFiles() ([]string, error)

	// IsInRebaseOrMerge returns true while a rebase or merge is in progress.
	IsInRebaseOrMerge() bool

	// Fetch updates remote-tracking refs. An empty remote means the default.
	Fetch(ctx context.Context, remote, ref string) error

	// Pull integrates remote changes into the current branch.
	Pull(ctx context.Context, opts PullOptions) error

	// Resolve settles a conflicted file by keeping one side's content.
	Resolve(ctx context.Context, path string, side Side) error
}

// FileStatus represents the status of a file in the working directory
type FileStatus struct {
	// Path is the file path relative to repository root
	Path string

	// Status is the working directory status
	Status StatusCode

	// StagedCode is the staging area status
	StagedCode StatusCode
}

// Changed reports whether the file differs from HEAD in any way.
func (s FileStatus) Changed() bool {
	return s.Status != StatusUnmodified || s.StagedCode != StatusUnmodified
}

// StatusCode represents file status codes
type StatusCode string

const (
	StatusUnmodified StatusCode = " " // No changes
	StatusModified   StatusCode = "M" // Modified
	StatusAdded      StatusCode = "A" // Added/new file
	StatusDeleted    StatusCode = "D" // Deleted
	StatusRenamed    StatusCode = "R" // Renamed
	StatusCopied     StatusCode = "C" // Copied
	StatusUntracked  StatusCode = "?" // Untracked
	StatusIgnored    StatusCode = "!" // Ignored
	StatusConflict   StatusCode = "U" // Unmerged/conflict
)

// PullOptions configures a pull of the current branch from its remote.
type PullOptions struct {
	// FFOnly refuses to pull when histories have diverged. Without it the
	// remote is merged in, which may stop with conflicts.
	FFOnly bool
}

// Side selects which copy of a conflicted file to keep.
type Side string

const (
	// SideLocal keeps the content committed on this machine.
	SideLocal Side = "local"

	// SideRemote keeps the content that came from the remote.
	SideRemote Side = "remote"
)

// ParseSide converts user input to a Side.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case SideLocal, SideRemote:
		return Side(s), nil
	}
	return "", ErrInvalidSide
}

// DivergenceInfo describes divergence between local and remote refs
type DivergenceInfo struct {
	// LocalAhead is the number of commits local is ahead of remote
	LocalAhead int

	// RemoteAhead is the number of commits remote is ahead of local
	RemoteAhead int

	// IsDiverged is true if both local and remote have unique commits
	IsDiverged bool
}
