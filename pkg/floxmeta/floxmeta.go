package floxmeta

import (
	"context"
	"os"
	"path/filepath"

	"github.com/nickryand/flox/pkg/errors"
	"github.com/nickryand/flox/pkg/git"
	"github.com/nickryand/flox/pkg/lock"
)

const (
	// DefaultBranch is the branch the user metadata document is tracked on.
	DefaultBranch = "floxmain"

	// UserMetaFile is the document's path within the repository.
	UserMetaFile = "floxUserMeta.json"
)

// Locker manages the per-working-copy transaction lock
type Locker interface {
	Acquire() error
	Release() error
}

// changeReporter is implemented by providers that can report a dirty
// working copy or staging area. When available it is consulted before a
// transaction is entered.
type changeReporter interface {
	HasChanges(ctx context.Context) (bool, error)
}

// resetter is implemented by providers that can discard uncommitted changes
// from the working copy and staging area. When available it is used by
// Abort, so an abandoned transaction leaves a clean working copy behind.
type resetter interface {
	Reset(ctx context.Context) error
}

// Floxmeta is a read-only handle to one user's floxmeta repository.
//
// The handle exposes no mutating operation; the only way to change the
// repository is to upgrade to a Transaction via EnterTransaction.
type Floxmeta struct {
	owner     string
	provider  git.Provider
	newLocker func(workdir string) (Locker, error)
}

// Open binds a read-only handle for owner to the given backend provider.
func Open(owner string, provider git.Provider) *Floxmeta {
	return OpenWithDeps(owner, provider, defaultLocker)
}

// OpenWithDeps binds a read-only handle using a custom transaction locker
// factory. Intended for tests.
func OpenWithDeps(owner string, provider git.Provider, newLocker func(workdir string) (Locker, error)) *Floxmeta {
	return &Floxmeta{
		owner:     owner,
		provider:  provider,
		newLocker: newLocker,
	}
}

func defaultLocker(workdir string) (Locker, error) {
	l, err := lock.New(workdir)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Owner returns the name of the user this handle is scoped to.
func (f *Floxmeta) Owner() string {
	return f.owner
}

// EnterTransaction upgrades the read-only handle to a sandboxed Transaction.
//
// It acquires the per-working-copy transaction lock and verifies the
// working copy has no uncommitted changes, so the transaction starts from a
// clean, exclusively owned state. It fails with ErrTransaction when the
// repository is locked by another transaction or cannot be prepared.
//
// The read-only handle stays valid; only the Transaction may mutate.
func (f *Floxmeta) EnterTransaction(ctx context.Context) (*Transaction, error) {
	locker, err := f.newLocker(f.provider.Workdir())
	if err != nil {
		return nil, stageError(ErrTransaction, err)
	}
	if err := locker.Acquire(); err != nil {
		return nil, stageError(ErrTransaction, err)
	}

	if reporter, ok := f.provider.(changeReporter); ok {
		dirty, err := reporter.HasChanges(ctx)
		if err != nil {
			_ = locker.Release()
			return nil, stageError(ErrTransaction, err)
		}
		if dirty {
			_ = locker.Release()
			return nil, errors.Wrap(ErrTransaction, "working copy has uncommitted changes")
		}
	}

	return &Transaction{
		owner:     f.owner,
		provider:  f.provider,
		newLocker: f.newLocker,
		locker:    locker,
	}, nil
}

// Transaction is the sandboxed handle for one floxmeta mutation.
//
// It exclusively owns the repository's working copy from EnterTransaction
// until Commit or Abort. Writes performed through it are staged only;
// nothing is durable or visible to readers until Commit succeeds.
//
// A Transaction is single-use: Commit consumes it and returns a fresh
// read-only handle. Every mutating entry point rejects a consumed
// transaction with ErrTransactionDone.
type Transaction struct {
	owner     string
	provider  git.Provider
	newLocker func(workdir string) (Locker, error)
	locker    Locker
	done      bool
}

// Owner returns the name of the user this transaction is scoped to.
func (t *Transaction) Owner() string {
	return t.owner
}

// Workdir returns the working copy owned by this transaction.
func (t *Transaction) Workdir() string {
	return t.provider.Workdir()
}

// StageFile writes data to path inside the working copy and stages it.
// Multiple files may be staged before a single Commit, so related changes
// land in one atomic finalize.
func (t *Transaction) StageFile(ctx context.Context, path string, data []byte) error {
	if t.done {
		return ErrTransactionDone
	}

	full := filepath.Join(t.provider.Workdir(), path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return stageError(ErrWrite, err)
	}
	if err := os.WriteFile(full, data, 0644); err != nil {
		return stageError(ErrWrite, err)
	}
	if err := t.provider.Add(ctx, path); err != nil {
		return stageError(ErrStage, err)
	}
	return nil
}

// Commit finalizes the transaction: staged changes are committed with the
// given message and propagated to the remote, the transaction lock is
// released, and a fresh read-only handle representing the post-commit state
// is returned.
//
// Commit fails with ErrCommit when there is nothing staged
// (git.ErrNothingToCommit in the chain) or when a concurrent writer
// committed first (git.ErrCommitRejected in the chain). A failed Commit
// does not consume the transaction; the caller can retry or Abort.
//
// In the rare case the commit succeeds but the lock cannot be released, the
// new handle is returned together with the release error: the commit is
// durable, and the stale lock is recovered by the next transaction.
func (t *Transaction) Commit(ctx context.Context, message string) (*Floxmeta, error) {
	if t.done {
		return nil, ErrTransactionDone
	}

	if _, err := t.provider.Commit(ctx, message); err != nil {
		return nil, stageError(ErrCommit, err)
	}
	t.done = true

	handle := OpenWithDeps(t.owner, t.provider, t.newLocker)
	if err := t.locker.Release(); err != nil {
		return handle, errors.Wrap(err, "transaction committed but failed to release lock")
	}
	return handle, nil
}

// Abort abandons the transaction and releases the transaction lock.
// When the provider supports it, uncommitted changes are discarded so the
// working copy is clean for the next transaction.
func (t *Transaction) Abort(ctx context.Context) error {
	if t.done {
		return ErrTransactionDone
	}
	t.done = true

	var resetErr error
	if r, ok := t.provider.(resetter); ok {
		resetErr = r.Reset(ctx)
	}
	if err := t.locker.Release(); err != nil {
		return err
	}
	return resetErr
}
