package cloudmeta

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/mschirtzinger/mdboard/internal/vcs"
)

func gitCmd(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v failed: %v\n%s", args, err, out)
	}
}

func configure(t *testing.T, dir string) {
	t.Helper()
	gitCmd(t, dir, "config", "user.name", "Test User")
	gitCmd(t, dir, "config", "user.email", "test@example.com")
	gitCmd(t, dir, "config", "commit.gpgsign", "false")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func commitAll(t *testing.T, dir, msg string) {
	t.Helper()
	gitCmd(t, dir, "add", "-A")
	gitCmd(t, dir, "commit", "--quiet", "-m", msg)
}

// setupBoardRepos returns two clones of one remote, each holding a board
// under board/.
func setupBoardRepos(t *testing.T) (string, string) {
	t.Helper()
	if !vcs.IsGitAvailable() {
		t.Skip("git not installed")
	}

	a := t.TempDir()
	gitCmd(t, a, "init", "--quiet")
	gitCmd(t, a, "symbolic-ref", "HEAD", "refs/heads/main")
	configure(t, a)
	writeFile(t, filepath.Join(a, "board", "board.md"), "# Board\n")
	writeFile(t, filepath.Join(a, "board", "cards", "todo", "first.md"), "first\n")
	writeFile(t, filepath.Join(a, "notes.txt"), "outside the board\n")
	commitAll(t, a, "initial")

	bare := filepath.Join(t.TempDir(), "remote.git")
	gitCmd(t, a, "init", "--quiet", "--bare", bare)
	gitCmd(t, a, "remote", "add", "origin", bare)
	gitCmd(t, a, "push", "--quiet", "-u", "origin", "main")

	b := filepath.Join(t.TempDir(), "b")
	gitCmd(t, a, "clone", "--quiet", "--branch", "main", bare, b)
	configure(t, b)
	return a, b
}

func byPath(files []FileMetadata) map[string]FileMetadata {
	out := make(map[string]FileMetadata, len(files))
	for _, f := range files {
		out[f.Path] = f
	}
	return out
}

func TestGitProvider_IsCloudBacked(t *testing.T) {
	if !vcs.IsGitAvailable() {
		t.Skip("git not installed")
	}
	p := NewGitProvider()
	defer p.Close()

	if p.IsCloudBacked(t.TempDir()) {
		t.Error("IsCloudBacked(plain dir) = true")
	}

	local := t.TempDir()
	gitCmd(t, local, "init", "--quiet")
	if p.IsCloudBacked(local) {
		t.Error("IsCloudBacked(repo without remote) = true")
	}

	a, _ := setupBoardRepos(t)
	if !p.IsCloudBacked(filepath.Join(a, "board")) {
		t.Error("IsCloudBacked(clone) = false")
	}
}

func TestGitProvider_RemoteChangesThenDownload(t *testing.T) {
	a, b := setupBoardRepos(t)
	writeFile(t, filepath.Join(b, "board", "cards", "todo", "new-card.md"), "from b\n")
	writeFile(t, filepath.Join(b, "notes.txt"), "changed outside the board\n")
	commitAll(t, b, "add card")
	gitCmd(t, b, "push", "--quiet")

	root := filepath.Join(a, "board")
	p := NewGitProvider()
	defer p.Close()
	ctx := context.Background()

	files, err := p.Query(ctx, root)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	got := byPath(files)
	newCard := filepath.Join(root, "cards", "todo", "new-card.md")
	if md, ok := got[newCard]; !ok || md.DownloadStatus != NotDownloaded {
		t.Errorf("new-card.md = %+v, want notDownloaded", md)
	}
	if md := got[filepath.Join(root, "board.md")]; md.DownloadStatus != Current || !md.IsUploaded {
		t.Errorf("board.md = %+v, want synced", md)
	}
	if _, ok := got[filepath.Join(a, "notes.txt")]; ok {
		t.Error("file outside the board reported")
	}

	if err := p.Download(ctx, []string{newCard}); err != nil {
		t.Fatalf("Download() failed: %v", err)
	}
	if _, err := os.Stat(newCard); err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}

	files, err = p.Query(ctx, root)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	for _, md := range files {
		if md != Synced(md.Path) {
			t.Errorf("after download %s = %+v, want synced", md.Path, md)
		}
	}
}

func TestGitProvider_LocalChanges(t *testing.T) {
	a, _ := setupBoardRepos(t)
	root := filepath.Join(a, "board")
	p := NewGitProvider(WithFetch(false))
	defer p.Close()
	ctx := context.Background()

	edited := filepath.Join(root, "cards", "todo", "first.md")
	writeFile(t, edited, "edited\n")
	writeFile(t, filepath.Join(root, ".mdboard", "index.db"), "cache")

	files, err := p.Query(ctx, root)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	got := byPath(files)
	if got[edited].IsUploaded {
		t.Errorf("uncommitted edit reported as uploaded: %+v", got[edited])
	}
	if _, ok := got[filepath.Join(root, ".mdboard", "index.db")]; ok {
		t.Error("hidden state file reported")
	}

	// Committed but not pushed is still not uploaded.
	commitAll(t, a, "edit")
	files, err = p.Query(ctx, root)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if byPath(files)[edited].IsUploaded {
		t.Error("unpushed commit reported as uploaded")
	}

	gitCmd(t, a, "push", "--quiet")
	files, err = p.Query(ctx, root)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if !byPath(files)[edited].IsUploaded {
		t.Error("pushed file reported as not uploaded")
	}
}

func TestGitProvider_MergeInProgress(t *testing.T) {
	a, b := setupBoardRepos(t)
	writeFile(t, filepath.Join(b, "board", "cards", "todo", "first.md"), "from b\n")
	commitAll(t, b, "edit in b")
	gitCmd(t, b, "push", "--quiet")

	card := filepath.Join(a, "board", "cards", "todo", "first.md")
	writeFile(t, card, "from a\n")
	commitAll(t, a, "edit in a")
	gitCmd(t, a, "fetch", "--quiet")
	merge := exec.Command("git", "merge", "--no-edit", "origin/main")
	merge.Dir = a
	if out, err := merge.CombinedOutput(); err == nil {
		t.Fatalf("merge succeeded without a conflict:\n%s", out)
	}

	root := filepath.Join(a, "board")
	p := NewGitProvider(WithFetch(false))
	defer p.Close()
	ctx := context.Background()

	files, err := p.Query(ctx, root)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	got := byPath(files)
	if !got[card].HasConflict {
		t.Errorf("first.md = %+v, want conflict", got[card])
	}
	if !got[filepath.Join(root, "board.md")].IsDownloading {
		t.Errorf("board.md = %+v, want downloading while the merge is open", got[filepath.Join(root, "board.md")])
	}

	// Resolved but not yet committed: still integrating.
	gitCmd(t, a, "checkout", "--theirs", "--", "board/cards/todo/first.md")
	gitCmd(t, a, "add", "board/cards/todo/first.md")
	files, err = p.Query(ctx, root)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if md := byPath(files)[card]; md.HasConflict || !md.IsDownloading {
		t.Errorf("after resolving, first.md = %+v, want downloading without conflict", md)
	}

	gitCmd(t, a, "commit", "--quiet", "--no-edit")
	files, err = p.Query(ctx, root)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	for _, md := range files {
		if md.IsDownloading || md.HasConflict {
			t.Errorf("after commit %s = %+v", md.Path, md)
		}
	}
}

func TestGitProvider_DeletedFileIsNotUploaded(t *testing.T) {
	a, _ := setupBoardRepos(t)
	root := filepath.Join(a, "board")
	p := NewGitProvider(WithFetch(false))
	defer p.Close()

	gone := filepath.Join(root, "cards", "todo", "first.md")
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}
	files, err := p.Query(context.Background(), root)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	md, ok := byPath(files)[gone]
	if !ok || md.IsUploaded {
		t.Errorf("deleted file = %+v (present %v), want not uploaded", md, ok)
	}
}

func TestGitProvider_ChangesOnCommit(t *testing.T) {
	a, _ := setupBoardRepos(t)
	root := filepath.Join(a, "board")
	p := NewGitProvider(WithFetch(false))
	defer p.Close()

	if _, err := p.Query(context.Background(), root); err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	// Drain anything the initial open produced.
	select {
	case <-p.Changes():
	default:
	}

	writeFile(t, filepath.Join(root, "cards", "todo", "second.md"), "second\n")
	commitAll(t, a, "second")

	select {
	case <-p.Changes():
	case <-time.After(2 * time.Second):
		t.Error("no change notification after commit")
	}
}
