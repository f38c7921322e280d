package syncstatus

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mschirtzinger/mdboard/internal/cloudmeta"
	"github.com/mschirtzinger/mdboard/internal/vcs"
)

const root = "/board"

func TestTracker_RemoteChangesThenSync(t *testing.T) {
	m := cloudmeta.NewMemory()
	m.Set(cloudmeta.Synced(root + "/board.md"))
	m.Set(cloudmeta.FileMetadata{
		Path:           root + "/cards/todo/new-card.md",
		IsUploaded:     true,
		DownloadStatus: cloudmeta.NotDownloaded,
	})
	m.CompleteDownloads(true)

	tr := New(root, m)
	var notified int
	tr.OnRemoteChanges(func() { notified++ })

	ctx := context.Background()
	if got := tr.Scan(ctx); got != RemoteChanges {
		t.Fatalf("Scan() = %s, want remoteChanges", got)
	}
	// A second scan in the same state does not notify again.
	tr.Scan(ctx)
	if notified != 1 {
		t.Errorf("remote change notifications = %d, want 1", notified)
	}

	state, err := tr.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync() failed: %v", err)
	}
	if state != Synced {
		t.Errorf("Sync() = %s, want synced", state)
	}
	downloads := m.Downloads()
	if len(downloads) != 1 || downloads[0] != root+"/cards/todo/new-card.md" {
		t.Errorf("Downloads() = %v", downloads)
	}

	// Re-entering remoteChanges notifies again.
	m.Set(cloudmeta.FileMetadata{Path: root + "/cards/todo/later.md", IsUploaded: true, DownloadStatus: cloudmeta.NotDownloaded})
	tr.Scan(ctx)
	if notified != 2 {
		t.Errorf("remote change notifications = %d, want 2", notified)
	}
}

func TestTracker_NotConfigured(t *testing.T) {
	m := cloudmeta.NewMemory()
	m.SetBacked(false)
	tr := New(root, m, WithInterval(10*time.Millisecond))

	if got := tr.Scan(context.Background()); got != NotConfigured {
		t.Errorf("Scan() = %s, want notConfigured", got)
	}
	if _, err := tr.Sync(context.Background()); !errors.Is(err, cloudmeta.ErrNotCloudBacked) {
		t.Errorf("Sync() error = %v, want ErrNotCloudBacked", err)
	}

	// The loop exits after the first scan, so a later change is not seen
	// until the tracker is started again.
	tr.Start(context.Background())
	defer tr.Stop()
	time.Sleep(50 * time.Millisecond)
	m.SetBacked(true)
	m.Set(cloudmeta.Synced(root + "/board.md"))
	time.Sleep(50 * time.Millisecond)
	if got := tr.State(); got != NotConfigured {
		t.Errorf("State() = %s after loop exit, want notConfigured", got)
	}

	changed := make(chan State, 8)
	tr.OnStateChange(func(_, to State) { changed <- to })
	tr.Start(context.Background())
	waitFor(t, changed, Synced)
}

func TestTracker_ProviderError(t *testing.T) {
	m := cloudmeta.NewMemory()
	m.Set(cloudmeta.Synced(root + "/board.md"))
	boom := errors.New("metadata query failed")
	m.Fail(boom)

	tr := New(root, m)
	if got := tr.Scan(context.Background()); got != Error {
		t.Fatalf("Scan() = %s, want error", got)
	}
	if !errors.Is(tr.Err(), boom) {
		t.Errorf("Err() = %v, want %v", tr.Err(), boom)
	}

	m.Fail(nil)
	if got := tr.Scan(context.Background()); got != Synced {
		t.Errorf("Scan() after recovery = %s, want synced", got)
	}
	if tr.Err() != nil {
		t.Errorf("Err() = %v after recovery", tr.Err())
	}
}

func TestTracker_ReactiveScan(t *testing.T) {
	m := cloudmeta.NewMemory()
	m.Set(cloudmeta.Synced(root + "/board.md"))

	// Long interval: only notifications can drive the second scan.
	tr := New(root, m, WithInterval(time.Hour))

	changed := make(chan State, 8)
	tr.OnStateChange(func(_, to State) { changed <- to })

	tr.Start(context.Background())
	defer tr.Stop()

	waitFor(t, changed, Synced)
	m.Set(cloudmeta.FileMetadata{Path: root + "/board.md", IsUploaded: false, DownloadStatus: cloudmeta.Current})
	waitFor(t, changed, LocalChanges)

	tr.Stop()
	tr.Stop()
}

func TestTracker_IntervalScan(t *testing.T) {
	p := &silentProvider{files: []cloudmeta.FileMetadata{cloudmeta.Synced(root + "/a.md")}}
	tr := New(root, p, WithInterval(20*time.Millisecond))

	changed := make(chan State, 8)
	tr.OnStateChange(func(_, to State) { changed <- to })
	tr.Start(context.Background())
	defer tr.Stop()

	waitFor(t, changed, Synced)
	p.set([]cloudmeta.FileMetadata{{Path: root + "/a.md", IsUploaded: true, DownloadStatus: cloudmeta.Current, IsDownloading: true}})
	waitFor(t, changed, Syncing)
}

func TestTracker_Resolve(t *testing.T) {
	m := cloudmeta.NewMemory()
	m.Set(cloudmeta.FileMetadata{Path: root + "/board.md", IsUploaded: true, DownloadStatus: cloudmeta.Current, HasConflict: true})
	tr := New(root, m)

	if got := tr.Scan(context.Background()); got != Conflict {
		t.Fatalf("Scan() = %s, want conflict", got)
	}
	state, err := tr.Resolve(context.Background(), root+"/board.md", vcs.SideLocal)
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	if state != Synced {
		t.Errorf("Resolve() = %s, want synced", state)
	}

	other := New(root, &silentProvider{})
	if _, err := other.Resolve(context.Background(), root+"/board.md", vcs.SideLocal); !errors.Is(err, ErrResolveUnsupported) {
		t.Errorf("Resolve() error = %v, want ErrResolveUnsupported", err)
	}
}

func TestTracker_PushRescans(t *testing.T) {
	m := cloudmeta.NewMemory()
	m.Set(cloudmeta.FileMetadata{Path: root + "/board.md", IsUploaded: false, DownloadStatus: cloudmeta.Current})
	tr := New(root, m)
	if got := tr.Push(context.Background()); got != LocalChanges {
		t.Errorf("Push() = %s, want localChanges", got)
	}
	if n := len(tr.Files()); n != 1 {
		t.Errorf("Files() = %d entries, want 1", n)
	}
}

func waitFor(t *testing.T, ch <-chan State, want State) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-ch:
			if got == want {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

// silentProvider has no change notifications and no conflict resolution.
type silentProvider struct {
	mu    sync.Mutex
	files []cloudmeta.FileMetadata
}

func (p *silentProvider) set(files []cloudmeta.FileMetadata) {
	p.mu.Lock()
	p.files = files
	p.mu.Unlock()
}

func (p *silentProvider) IsCloudBacked(string) bool { return true }

func (p *silentProvider) Query(context.Context, string) ([]cloudmeta.FileMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]cloudmeta.FileMetadata(nil), p.files...), nil
}

func (p *silentProvider) Download(context.Context, []string) error { return nil }
