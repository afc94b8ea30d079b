package git

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nickryand/flox/pkg/errors"
)

// memoryCommit is one immutable point in a simulated branch history.
type memoryCommit struct {
	rev     string
	parent  *memoryCommit
	files   map[string][]byte
	message string
}

func newMemoryCommit(parent *memoryCommit, staged map[string][]byte, message string) *memoryCommit {
	files := make(map[string][]byte)
	if parent != nil {
		for path, data := range parent.files {
			files[path] = data
		}
	}
	for path, data := range staged {
		files[path] = data
	}

	h := sha256.New()
	if parent != nil {
		fmt.Fprint(h, parent.rev)
	}
	fmt.Fprint(h, message)
	for path, data := range files {
		fmt.Fprint(h, path)
		h.Write(data)
	}
	rev := fmt.Sprintf("%x", h.Sum(nil))[:40]

	return &memoryCommit{rev: rev, parent: parent, files: files, message: message}
}

// MemoryRemote simulates the remote side of a tracked repository. Multiple
// MemoryProviders cloned from the same remote share its branch heads, which
// makes concurrent-writer conflicts observable: a push only succeeds when the
// remote head is the pushed commit's parent (fast-forward).
type MemoryRemote struct {
	mu       sync.Mutex
	branches map[string]*memoryCommit
}

// NewMemoryRemote creates an empty simulated remote.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{branches: make(map[string]*memoryCommit)}
}

// Seed commits a single file directly onto a branch of the remote,
// bypassing any provider. Intended for test setup.
func (r *MemoryRemote) Seed(branch, path string, data []byte, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.branches[branch] = newMemoryCommit(r.branches[branch], map[string][]byte{path: data}, message)
}

// Clone creates a MemoryProvider tracking this remote, using workdir as its
// working directory. The clone starts synchronized with the remote's current
// branch heads.
func (r *MemoryRemote) Clone(workdir string) *MemoryProvider {
	p := NewMemoryProvider(workdir)
	p.remote = r
	r.mu.Lock()
	for branch, head := range r.branches {
		p.branches[branch] = head
	}
	r.mu.Unlock()
	return p
}

// MemoryProvider is an in-memory Provider used to test the document
// protocols without invoking git. Branch histories live entirely in memory;
// the working directory is a real filesystem path so callers can write files
// before staging them, exactly as with CommandProvider.
//
// Each primitive has an injectable error so tests can simulate transient and
// permanent backend failures. A provider without a remote synchronizes
// trivially (Fetch is a no-op).
type MemoryProvider struct {
	mu       sync.Mutex
	workdir  string
	branches map[string]*memoryCommit
	staged   map[string][]byte
	current  string
	remote   *MemoryRemote

	// Injectable failures, returned verbatim (wrapped in the matching
	// sentinel) by the corresponding primitive.
	FetchErr    error
	ShowErr     error
	CheckoutErr error
	AddErr      error
	CommitErr   error
}

// NewMemoryProvider creates a detached MemoryProvider with the given working
// directory.
func NewMemoryProvider(workdir string) *MemoryProvider {
	return &MemoryProvider{
		workdir:  workdir,
		branches: make(map[string]*memoryCommit),
		staged:   make(map[string][]byte),
	}
}

// Fetch implements Provider.Fetch.
func (p *MemoryProvider) Fetch(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FetchErr != nil {
		return fmt.Errorf("%w: %w", ErrFetch, p.FetchErr)
	}
	if p.remote == nil {
		return nil
	}

	p.remote.mu.Lock()
	defer p.remote.mu.Unlock()
	for branch, head := range p.remote.branches {
		p.branches[branch] = head
	}
	return nil
}

// Show implements Provider.Show.
func (p *MemoryProvider) Show(ctx context.Context, ref string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ShowErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrShow, p.ShowErr)
	}

	branch, path, ok := splitRef(ref)
	if !ok {
		return nil, errors.Wrapf(ErrShow, "malformed ref %q", ref)
	}

	head := p.branches[branch]
	if head == nil {
		return nil, errors.Wrapf(ErrObjectNotFound, "branch %s does not exist", branch)
	}
	data, ok := head.files[path]
	if !ok {
		return nil, errors.Wrapf(ErrObjectNotFound, "path %s does not exist in %s", path, branch)
	}
	return data, nil
}

// Checkout implements Provider.Checkout. Existing branch contents are
// materialized into the working directory so subsequent writes see the same
// layout a real checkout would produce.
func (p *MemoryProvider) Checkout(ctx context.Context, branch string, create bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.CheckoutErr != nil {
		return fmt.Errorf("%w: %w", ErrCheckout, p.CheckoutErr)
	}

	head, exists := p.branches[branch]
	if !exists && !create {
		return errors.Wrapf(ErrCheckout, "branch %s does not exist", branch)
	}
	if exists && create {
		return errors.Wrapf(ErrCheckout, "branch %s already exists", branch)
	}
	if !exists {
		p.branches[branch] = nil
	}

	if head != nil {
		for path, data := range head.files {
			full := filepath.Join(p.workdir, path)
			if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
				return fmt.Errorf("%w: %w", ErrCheckout, err)
			}
			if err := os.WriteFile(full, data, 0644); err != nil {
				return fmt.Errorf("%w: %w", ErrCheckout, err)
			}
		}
	}

	p.current = branch
	return nil
}

// Add implements Provider.Add by snapshotting the named files from the
// working directory into the staging area.
func (p *MemoryProvider) Add(ctx context.Context, paths ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.AddErr != nil {
		return fmt.Errorf("%w: %w", ErrAdd, p.AddErr)
	}
	if p.current == "" {
		return errors.Wrap(ErrAdd, "no branch checked out")
	}

	for _, path := range paths {
		data, err := os.ReadFile(filepath.Join(p.workdir, path))
		if err != nil {
			return fmt.Errorf("%w: %w", ErrAdd, err)
		}
		p.staged[path] = data
	}
	return nil
}

// Commit implements Provider.Commit. When the provider tracks a remote, the
// new commit is pushed with a fast-forward check: if the remote branch head
// moved since this provider last synchronized, the commit fails with
// ErrCommitRejected.
func (p *MemoryProvider) Commit(ctx context.Context, message string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.CommitErr != nil {
		return "", fmt.Errorf("%w: %w", ErrCommit, p.CommitErr)
	}
	if p.current == "" {
		return "", errors.Wrap(ErrCommit, "no branch checked out")
	}
	if len(p.staged) == 0 {
		return "", errors.Wrap(ErrNothingToCommit, "staging area is empty")
	}

	parent := p.branches[p.current]
	commit := newMemoryCommit(parent, p.staged, message)

	if p.remote != nil {
		p.remote.mu.Lock()
		remoteHead := p.remote.branches[p.current]
		if remoteHead != parent {
			p.remote.mu.Unlock()
			return "", errors.Wrapf(ErrCommitRejected,
				"remote branch %s has diverged (non-fast-forward)", p.current)
		}
		p.remote.branches[p.current] = commit
		p.remote.mu.Unlock()
	}

	p.branches[p.current] = commit
	p.staged = make(map[string][]byte)
	return commit.rev, nil
}

// Workdir implements Provider.Workdir.
func (p *MemoryProvider) Workdir() string {
	return p.workdir
}

// HasChanges reports whether any paths are staged but not committed.
func (p *MemoryProvider) HasChanges(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.staged) > 0, nil
}

// Reset discards the staging area.
func (p *MemoryProvider) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.staged = make(map[string][]byte)
	return nil
}

// Head returns the revision of the given branch head, or "" when the branch
// does not exist or has no commits yet.
func (p *MemoryProvider) Head(branch string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if head := p.branches[branch]; head != nil {
		return head.rev
	}
	return ""
}

// StagedPaths returns the paths currently staged, for test assertions.
func (p *MemoryProvider) StagedPaths() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	paths := make([]string, 0, len(p.staged))
	for path := range p.staged {
		paths = append(paths, path)
	}
	return paths
}

// splitRef splits a "branch:path" ref into its parts.
func splitRef(ref string) (branch, path string, ok bool) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == ':' {
			return ref[:i], ref[i+1:], i > 0 && i < len(ref)-1
		}
	}
	return "", "", false
}
