// Package cloudmeta exposes per-file sync metadata for a board directory.
//
// A Provider reports, for each file under the board root, whether local
// content has reached the remote and whether the remote holds content that
// is not local yet. The sync status tracker reduces that to one state.
package cloudmeta

import (
	"context"
	"errors"

	"github.com/mschirtzinger/mdboard/internal/vcs"
)

// DownloadStatus describes whether a file's remote content is local.
type DownloadStatus string

const (
	// Current means the local copy matches the remote.
	Current DownloadStatus = "current"
	// Downloaded means a local copy exists but a newer remote version may.
	Downloaded DownloadStatus = "downloaded"
	// NotDownloaded means the remote holds content that is not local.
	NotDownloaded DownloadStatus = "notDownloaded"
)

// FileMetadata is the sync state of one file. Path is absolute.
type FileMetadata struct {
	Path           string
	IsUploading    bool
	IsDownloading  bool
	IsUploaded     bool
	DownloadStatus DownloadStatus
	HasConflict    bool
}

// Synced returns metadata for a file with nothing pending either way.
func Synced(path string) FileMetadata {
	return FileMetadata{Path: path, IsUploaded: true, DownloadStatus: Current}
}

// Provider reads sync metadata from whatever keeps the board in sync.
type Provider interface {
	// IsCloudBacked reports whether root is kept in sync by this provider.
	IsCloudBacked(root string) bool
	// Query returns metadata for the files under root.
	Query(ctx context.Context, root string) ([]FileMetadata, error)
	// Download requests the remote content of paths.
	Download(ctx context.Context, paths []string) error
}

// Notifier is implemented by providers that can signal metadata changes
// instead of waiting for the next interval.
type Notifier interface {
	Changes() <-chan struct{}
}

// Resolver is implemented by providers that can settle a conflicted file.
type Resolver interface {
	Resolve(ctx context.Context, path string, side vcs.Side) error
}

// ErrNotCloudBacked is returned when an operation needs a synced root.
var ErrNotCloudBacked = errors.New("board is not cloud backed")
