package cloudmeta

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/mschirtzinger/mdboard/internal/vcs"
	_ "github.com/mschirtzinger/mdboard/internal/vcs/git" // registers git with vcs.Open
)

// GitProvider derives sync metadata from a git checkout that contains the
// board:
//   - modified, untracked or committed-but-unpushed files are not uploaded
//   - files changed on the upstream branch are not downloaded
//   - unmerged files are in conflict
//   - every file is downloading while a pull runs
//
// Download fast-forwards the checkout. Changes under .git/refs and HEAD are
// reported through Changes so the tracker rescans without waiting.
type GitProvider struct {
	logger *slog.Logger
	fetch  bool
	open   func(path string) (vcs.VCS, error)

	mu      sync.Mutex
	repos   map[string]vcs.VCS // by board root or file directory
	watched map[string]bool    // .git directories
	fsw     *fsnotify.Watcher
	done    chan struct{}
	closed  bool

	pulling atomic.Int32
	changes chan struct{}
}

// GitOption configures a GitProvider.
type GitOption func(*GitProvider)

// WithGitLogger sets the logger.
func WithGitLogger(l *slog.Logger) GitOption {
	return func(p *GitProvider) { p.logger = l }
}

// WithFetch controls whether Query fetches before comparing with upstream.
// Without fetching, remote changes show up only after something else
// updates the remote-tracking refs.
func WithFetch(fetch bool) GitOption {
	return func(p *GitProvider) { p.fetch = fetch }
}

// WithOpener replaces vcs.Open, for tests.
func WithOpener(open func(string) (vcs.VCS, error)) GitOption {
	return func(p *GitProvider) { p.open = open }
}

// NewGitProvider returns a provider. Call Close to release its watches.
func NewGitProvider(opts ...GitOption) *GitProvider {
	p := &GitProvider{
		logger:  slog.Default(),
		fetch:   true,
		open:    vcs.Open,
		repos:   make(map[string]vcs.VCS),
		watched: make(map[string]bool),
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		p.logger.Warn("git ref notifications unavailable, relying on interval scans", "error", err)
	} else {
		p.fsw = fsw
		go p.watchRefs(fsw)
	}
	return p
}

// IsCloudBacked reports whether root is inside a git checkout with a remote.
func (p *GitProvider) IsCloudBacked(root string) bool {
	repo, err := p.repo(root)
	if err != nil {
		if !vcs.IsFatal(err) {
			p.logger.Warn("cannot inspect repository", "path", root, "error", err)
		}
		return false
	}
	return repo.HasRemote()
}

// Query returns metadata for every visible file under root plus files that
// exist only upstream or were deleted locally.
func (p *GitProvider) Query(ctx context.Context, root string) ([]FileMetadata, error) {
	repo, err := p.repo(root)
	if err != nil {
		return nil, err
	}
	repoRoot, err := repo.RepoRoot()
	if err != nil {
		return nil, err
	}
	boardRel, err := boardPath(repoRoot, root)
	if err != nil {
		return nil, err
	}

	if p.fetch && p.pulling.Load() == 0 {
		if err := repo.Fetch(ctx, "", ""); err != nil {
			// Offline is not an error; compare with the last fetched refs.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Debug("fetch failed, using cached remote refs", "error", err)
		}
	}

	files := make(map[string]*FileMetadata)
	entry := func(rel string) *FileMetadata {
		abs := filepath.Join(root, rel)
		md, ok := files[abs]
		if !ok {
			synced := Synced(abs)
			md = &synced
			files[abs] = md
		}
		return md
	}

	if err := listFiles(root, func(rel string) { entry(rel) }); err != nil {
		return nil, err
	}

	// toBoard maps a repository-relative path to a board-relative one.
	toBoard := func(repoPath string) (string, bool) {
		repoPath = filepath.FromSlash(repoPath)
		if !vcs.IsSubPath(boardRel, repoPath) {
			return "", false
		}
		rel, err := vcs.RelativePath(boardRel, repoPath)
		if err != nil || hiddenPath(rel) {
			return "", false
		}
		return rel, true
	}

	statuses, err := repo.Status(filepath.ToSlash(boardRel))
	if err != nil {
		return nil, err
	}
	for _, st := range statuses {
		rel, ok := toBoard(st.Path)
		if !ok || !st.Changed() || st.Status == vcs.StatusIgnored {
			continue
		}
		md := entry(rel)
		md.IsUploaded = false
		if st.Status == vcs.StatusConflict {
			md.HasConflict = true
		}
	}

	conflicts, err := repo.GetConflictedFiles()
	if err != nil {
		return nil, err
	}
	for _, c := range conflicts {
		if rel, ok := toBoard(c); ok {
			entry(rel).HasConflict = true
		}
	}

	upstream, err := repo.Upstream()
	switch {
	case errors.Is(err, vcs.ErrNoUpstream):
		p.logger.Debug("branch has no upstream, comparing working tree only", "root", root)
	case err != nil:
		return nil, err
	default:
		// Counting commits is cheaper than diffing; skip the diff for a side
		// with nothing new.
		div, err := repo.HasDivergence("HEAD", upstream)
		if err != nil {
			return nil, err
		}
		if div.LocalAhead > 0 {
			unpushed, err := repo.ChangedFiles(upstream, "HEAD", filepath.ToSlash(boardRel))
			if err != nil {
				return nil, err
			}
			for _, f := range unpushed {
				if rel, ok := toBoard(f); ok {
					entry(rel).IsUploaded = false
				}
			}
		}
		if div.RemoteAhead > 0 {
			incoming, err := repo.ChangedFiles("HEAD", upstream, filepath.ToSlash(boardRel))
			if err != nil {
				return nil, err
			}
			for _, f := range incoming {
				if rel, ok := toBoard(f); ok {
					entry(rel).DownloadStatus = NotDownloaded
				}
			}
		}
	}

	// A merge or rebase stopped half way is an integration still in flight
	// until the user commits or aborts it.
	busy := p.pulling.Load() > 0 || p.indexLocked(repo) || repo.IsInRebaseOrMerge()
	out := make([]FileMetadata, 0, len(files))
	for _, md := range files {
		md.IsDownloading = busy
		out = append(out, *md)
	}
	return out, nil
}

// Download fast-forwards each repository that holds one of paths. A pull
// brings every remote change in, not only the named files.
func (p *GitProvider) Download(ctx context.Context, paths []string) error {
	seen := make(map[string]bool)
	var errs []error
	for _, path := range paths {
		repo, err := p.repo(filepath.Dir(path))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		root, _ := repo.RepoRoot()
		if seen[root] {
			continue
		}
		seen[root] = true

		p.pulling.Add(1)
		p.notify()
		err = repo.Pull(ctx, vcs.PullOptions{FFOnly: true})
		p.pulling.Add(-1)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to pull %s: %w", root, err))
			continue
		}
		p.logger.Info("pulled remote changes", "repo", root)
	}
	return errors.Join(errs...)
}

// Resolve keeps one side of a conflicted board file.
func (p *GitProvider) Resolve(ctx context.Context, path string, side vcs.Side) error {
	repo, err := p.repo(filepath.Dir(path))
	if err != nil {
		return err
	}
	repoRoot, err := repo.RepoRoot()
	if err != nil {
		return err
	}
	rel, err := boardPath(repoRoot, path)
	if err != nil {
		return err
	}
	return repo.Resolve(ctx, filepath.ToSlash(rel), side)
}

// Changes signals ref updates: commits, fetches, pulls and merges.
func (p *GitProvider) Changes() <-chan struct{} {
	return p.changes
}

// Close stops watching .git directories.
func (p *GitProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	if p.fsw != nil {
		return p.fsw.Close()
	}
	return nil
}

// repo opens (once) the repository containing dir and subscribes to its
// refs.
func (p *GitProvider) repo(dir string) (vcs.VCS, error) {
	dir = filepath.Clean(dir)

	p.mu.Lock()
	if r, ok := p.repos[dir]; ok {
		p.mu.Unlock()
		return r, nil
	}
	p.mu.Unlock()

	r, err := p.open(dir)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.repos[dir]; ok {
		return existing, nil
	}
	p.repos[dir] = r
	if gitDir, err := r.VCSDir(); err == nil && !p.closed {
		p.watchLocked(gitDir)
	}
	return r, nil
}

func (p *GitProvider) watchLocked(gitDir string) {
	if p.fsw == nil || p.watched[gitDir] {
		return
	}
	p.watched[gitDir] = true

	dirs := []string{gitDir}
	for _, sub := range []string{"refs/heads", "refs/remotes"} {
		_ = filepath.WalkDir(filepath.Join(gitDir, filepath.FromSlash(sub)), func(path string, d fs.DirEntry, err error) error {
			if err == nil && d.IsDir() {
				dirs = append(dirs, path)
			}
			return nil
		})
	}
	for _, d := range dirs {
		if err := p.fsw.Add(d); err != nil {
			p.logger.Debug("cannot watch git directory", "path", d, "error", err)
		}
	}
}

func (p *GitProvider) watchRefs(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-p.done:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Create) && isRefDir(event.Name) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = fsw.Add(event.Name)
				}
			}
			if refEvent(event) {
				p.notify()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			p.logger.Debug("git ref watch error", "error", err)
			p.notify()
		}
	}
}

// refEvent filters out index, FETCH_HEAD and lock file churn that every
// status or fetch causes.
func refEvent(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".lock") {
		return false
	}
	switch name {
	case "HEAD", "MERGE_HEAD", "packed-refs":
		return true
	}
	return isRefDir(event.Name)
}

func isRefDir(path string) bool {
	return strings.Contains(filepath.ToSlash(path), "/refs/")
}

func (p *GitProvider) indexLocked(repo vcs.VCS) bool {
	gitDir, err := repo.VCSDir()
	if err != nil {
		return false
	}
	_, err = os.Stat(filepath.Join(gitDir, "index.lock"))
	return err == nil
}

func (p *GitProvider) notify() {
	select {
	case p.changes <- struct{}{}:
	default:
	}
}

// boardPath returns path relative to repoRoot, resolving symlinks the way
// git reports its top level.
func boardPath(repoRoot, path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	} else if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		abs = filepath.Join(dir, filepath.Base(abs))
	}
	if !vcs.IsSubPath(repoRoot, abs) {
		return "", fmt.Errorf("%s is outside repository %s: %w", path, repoRoot, vcs.ErrNotInVCS)
	}
	return vcs.RelativePath(repoRoot, abs)
}

// listFiles calls fn with the root-relative path of every regular file that
// is not hidden.
func listFiles(root string, fn func(rel string)) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			fn(rel)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list board files: %w", err)
	}
	return nil
}

func hiddenPath(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}
