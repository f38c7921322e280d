// Package syncstatus computes whether a board directory is in step with its
// remote copy.
//
// The state is never advanced incrementally. Every scan asks the provider for
// per-file metadata and reduces it with Reduce, so the state is a function of
// what is observed now, not of history.
package syncstatus

import (
	"fmt"

	"github.com/mschirtzinger/mdboard/internal/cloudmeta"
)

// State is the sync state of a whole board.
type State int

const (
	NotConfigured State = iota
	Synced
	LocalChanges
	RemoteChanges
	Diverged
	Syncing
	Conflict
	Error
)

var stateNames = [...]string{
	NotConfigured: "notConfigured",
	Synced:        "synced",
	LocalChanges:  "localChanges",
	RemoteChanges: "remoteChanges",
	Diverged:      "diverged",
	Syncing:       "syncing",
	Conflict:      "conflict",
	Error:         "error",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reduce folds per-file metadata into one state. Rules are checked in order
// and the first match wins:
//
//  1. any file in conflict: Conflict
//  2. any file uploading or downloading: Syncing
//  3. remote content missing locally and local content not uploaded: Diverged
//  4. remote content missing locally: RemoteChanges
//  5. local content not uploaded: LocalChanges
//  6. otherwise: Synced
func Reduce(files []cloudmeta.FileMetadata) State {
	var conflict, transferring, notDownloaded, notUploaded bool
	for _, f := range files {
		conflict = conflict || f.HasConflict
		transferring = transferring || f.IsUploading || f.IsDownloading
		notDownloaded = notDownloaded || f.DownloadStatus == cloudmeta.NotDownloaded
		notUploaded = notUploaded || !f.IsUploaded
	}

	switch {
	case conflict:
		return Conflict
	case transferring:
		return Syncing
	case notDownloaded && notUploaded:
		return Diverged
	case notDownloaded:
		return RemoteChanges
	case notUploaded:
		return LocalChanges
	default:
		return Synced
	}
}
