package cloudmeta

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mschirtzinger/mdboard/internal/vcs"
)

// Memory is a Provider whose metadata is set by the caller.
type Memory struct {
	mu        sync.Mutex
	backed    bool
	files     map[string]FileMetadata
	err       error
	downloads []string
	// complete marks requested downloads current right away.
	complete bool
	changes  chan struct{}
}

// NewMemory returns a cloud-backed provider with no files.
func NewMemory() *Memory {
	return &Memory{
		backed:  true,
		files:   make(map[string]FileMetadata),
		changes: make(chan struct{}, 1),
	}
}

// SetBacked changes what IsCloudBacked reports.
func (m *Memory) SetBacked(backed bool) {
	m.mu.Lock()
	m.backed = backed
	m.mu.Unlock()
	m.notify()
}

// Set stores metadata for md.Path.
func (m *Memory) Set(md FileMetadata) {
	m.mu.Lock()
	m.files[filepath.Clean(md.Path)] = md
	m.mu.Unlock()
	m.notify()
}

// Remove forgets path.
func (m *Memory) Remove(path string) {
	m.mu.Lock()
	delete(m.files, filepath.Clean(path))
	m.mu.Unlock()
	m.notify()
}

// Fail makes Query return err until called again with nil.
func (m *Memory) Fail(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
	m.notify()
}

// CompleteDownloads makes Download mark requested files current.
func (m *Memory) CompleteDownloads(complete bool) {
	m.mu.Lock()
	m.complete = complete
	m.mu.Unlock()
}

// Downloads returns every path passed to Download so far.
func (m *Memory) Downloads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.downloads...)
}

func (m *Memory) IsCloudBacked(string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backed
}

// Query returns the stored metadata under root in path order.
func (m *Memory) Query(ctx context.Context, root string) ([]FileMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]FileMetadata, 0, len(m.files))
	for p, md := range m.files {
		if vcs.IsSubPath(root, p) {
			out = append(out, md)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (m *Memory) Download(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.downloads = append(m.downloads, paths...)
	if m.complete {
		for _, p := range paths {
			md, ok := m.files[filepath.Clean(p)]
			if !ok {
				continue
			}
			md.DownloadStatus = Current
			md.IsDownloading = false
			m.files[filepath.Clean(p)] = md
		}
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

// Resolve clears the conflict flag on path.
func (m *Memory) Resolve(_ context.Context, path string, side vcs.Side) error {
	if _, err := vcs.ParseSide(string(side)); err != nil {
		return err
	}
	m.mu.Lock()
	md, ok := m.files[filepath.Clean(path)]
	if !ok || !md.HasConflict {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", path, vcs.ErrNotConflicted)
	}
	md.HasConflict = false
	m.files[filepath.Clean(path)] = md
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *Memory) Changes() <-chan struct{} {
	return m.changes
}

func (m *Memory) notify() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}
