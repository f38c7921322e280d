package vcs

import "errors"

// Common errors returned by VCS operations.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, vcs.ErrNotInVCS) {
//	    // the board is not inside a repository
//	}
var (
	// ErrNotInVCS is returned when the operation requires being inside
	// a VCS repository but none was found.
	ErrNotInVCS = errors.New("not in a VCS repository")

	// ErrVCSNotAvailable is returned when the required VCS binary
	// is not installed or not in PATH.
	ErrVCSNotAvailable = errors.New("VCS binary not available")

	// ErrNotSupported is returned when no implementation is registered
	// for the detected repository type.
	ErrNotSupported = errors.New("operation not supported by this VCS")

	// ErrNoRemote is returned when an operation requires a remote
	// but none is configured.
	ErrNoRemote = errors.New("no remote configured")

	// ErrNoUpstream is returned when the current branch tracks nothing.
	ErrNoUpstream = errors.New("no upstream configured")

	// ErrConflicts is returned when an operation cannot complete
	// due to unresolved conflicts.
	ErrConflicts = errors.New("unresolved conflicts")

	// ErrNotConflicted is returned by Resolve for a file that has no conflict.
	ErrNotConflicted = errors.New("file is not in conflict")

	// ErrInvalidSide is returned for a resolution side other than local or remote.
	ErrInvalidSide = errors.New("side must be local or remote")

	// ErrDetached is returned when an operation requires being on
	// a branch but HEAD is detached.
	ErrDetached = errors.New("not on a branch")

	// ErrMergeRequired is returned when a pull results in divergent
	// histories that require a merge.
	ErrMergeRequired = errors.New("merge required")

	// ErrTimeout is returned when a VCS operation exceeds its timeout.
	ErrTimeout = errors.New("operation timed out")
)

// IsFatal returns true if the error means version control can not be used
// for this directory at all.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrNotInVCS) ||
		errors.Is(err, ErrVCSNotAvailable) ||
		errors.Is(err, ErrNotSupported)
}
