package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/nickryand/flox/pkg/errors"
)

// Sentinel errors describing the failure class of each backend primitive.
// They are wrapped inside the *errors.GitError returned by CommandProvider,
// so callers can branch with errors.Is while still seeing the command output.
var (
	// ErrFetch indicates the tracked branch could not be synchronized with its remote
	ErrFetch = errors.New("failed to synchronize with remote")

	// ErrShow indicates an object could not be read from the repository
	ErrShow = errors.New("failed to read object")

	// ErrObjectNotFound indicates the requested ref:path does not exist
	ErrObjectNotFound = errors.New("object not found")

	// ErrCheckout indicates the working copy could not be switched to the requested branch
	ErrCheckout = errors.New("failed to checkout branch")

	// ErrAdd indicates paths could not be staged
	ErrAdd = errors.New("failed to stage paths")

	// ErrCommit indicates staged changes could not be committed
	ErrCommit = errors.New("failed to commit")

	// ErrNothingToCommit indicates a commit was requested with an empty staging area
	ErrNothingToCommit = errors.New("nothing to commit")

	// ErrCommitRejected indicates the commit could not be propagated to the
	// remote, typically because a concurrent writer committed first
	ErrCommitRejected = errors.New("commit rejected by remote")
)

// Provider is the capability surface the floxmeta document protocols consume.
// The production implementation is CommandProvider; MemoryProvider satisfies
// the same contract for tests.
type Provider interface {
	// Fetch synchronizes the currently tracked branch with its remote
	// counterpart. It fails when there is no remote, the remote is
	// unreachable, or the local branch has diverged.
	Fetch(ctx context.Context) error

	// Show returns the raw contents of the object at ref, where ref has the
	// form "branch:path". A missing object fails with ErrObjectNotFound.
	Show(ctx context.Context, ref string) ([]byte, error)

	// Checkout switches the working copy to branch, creating it when create
	// is true.
	Checkout(ctx context.Context, branch string, create bool) error

	// Add stages the given paths, relative to the working directory.
	Add(ctx context.Context, paths ...string) error

	// Commit records the staged changes with the given message, propagates
	// them to the tracked remote when one is configured, and returns the new
	// revision. An empty staging area fails with ErrNothingToCommit; a
	// remote rejection (for example a concurrent writer committed first)
	// fails with ErrCommitRejected.
	Commit(ctx context.Context, message string) (string, error)

	// Workdir returns the path of the working directory.
	Workdir() string
}

// CommandProvider implements Provider by shelling out to the git executable.
type CommandProvider struct {
	workdir  string
	executor CommandExecutor
}

// Open binds a CommandProvider to an existing repository at path.
func Open(path string) (*CommandProvider, error) {
	return OpenWithExecutor(path, NewExecExecutor())
}

// OpenWithExecutor binds a CommandProvider to an existing repository using a
// custom executor.
func OpenWithExecutor(path string, executor CommandExecutor) (*CommandProvider, error) {
	p := &CommandProvider{workdir: path, executor: executor}
	if !p.isRepository(context.Background()) {
		return nil, errors.Wrapf(errors.ErrGitOperationFailed, "%s is not a git repository", path)
	}
	return p, nil
}

// Clone clones the repository at origin into dest and returns a provider
// bound to the fresh clone.
func Clone(ctx context.Context, origin, dest string) (*CommandProvider, error) {
	executor := NewExecExecutor()
	if err := executor.ExecuteWithContext(ctx, "git", "clone", "--quiet", origin, dest); err != nil {
		return nil, err
	}
	return OpenWithExecutor(dest, executor)
}

// Init creates a new repository at path with the given initial branch and
// returns a provider bound to it.
func Init(ctx context.Context, path, branch string) (*CommandProvider, error) {
	executor := NewExecExecutor()
	if err := executor.ExecuteWithContext(ctx, "git", "init", "--quiet", "-b", branch, path); err != nil {
		return nil, err
	}
	return &CommandProvider{workdir: path, executor: executor}, nil
}

// IsRepository checks if the given path is a git repository
func IsRepository(path string) bool {
	p := &CommandProvider{workdir: path, executor: NewExecExecutor()}
	return p.isRepository(context.Background())
}

func (p *CommandProvider) isRepository(ctx context.Context) bool {
	return p.run(ctx, "rev-parse", "--is-inside-work-tree") == nil
}

// Fetch implements Provider.Fetch. It fast-forwards the currently checked-out
// branch from its upstream; a diverged branch is a synchronization failure,
// never an implicit merge.
func (p *CommandProvider) Fetch(ctx context.Context) error {
	if err := p.run(ctx, "pull", "--ff-only", "--quiet"); err != nil {
		return tagGitError(err, ErrFetch)
	}
	return nil
}

// Show implements Provider.Show.
func (p *CommandProvider) Show(ctx context.Context, ref string) ([]byte, error) {
	output, err := p.runWithOutput(ctx, "show", ref)
	if err != nil {
		if isMissingObject(err) {
			return nil, tagGitError(err, ErrObjectNotFound)
		}
		return nil, tagGitError(err, ErrShow)
	}
	return []byte(output), nil
}

// Checkout implements Provider.Checkout.
func (p *CommandProvider) Checkout(ctx context.Context, branch string, create bool) error {
	args := []string{"checkout", "--quiet"}
	if create {
		args = append(args, "-b")
	}
	args = append(args, branch)

	if err := p.run(ctx, args...); err != nil {
		return tagGitError(err, ErrCheckout)
	}
	return nil
}

// Add implements Provider.Add.
func (p *CommandProvider) Add(ctx context.Context, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	if err := p.run(ctx, args...); err != nil {
		return tagGitError(err, ErrAdd)
	}
	return nil
}

// Commit implements Provider.Commit.
func (p *CommandProvider) Commit(ctx context.Context, message string) (string, error) {
	// diff --cached exits zero when the staging area matches HEAD. git itself
	// reports "nothing to commit" on stdout, which the executor does not
	// capture, so detect the empty staging area up front.
	if err := p.run(ctx, "diff", "--cached", "--quiet"); err == nil {
		return "", errors.Wrap(ErrNothingToCommit, "staging area is empty")
	}

	if err := p.run(ctx, "commit", "--quiet", "-m", message); err != nil {
		if isNothingToCommit(err) {
			return "", tagGitError(err, ErrNothingToCommit)
		}
		return "", tagGitError(err, ErrCommit)
	}

	rev, err := p.runWithOutput(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", tagGitError(err, ErrCommit)
	}
	rev = strings.TrimSpace(rev)

	if p.hasRemote(ctx) {
		if err := p.run(ctx, "push", "--quiet", "origin", "HEAD"); err != nil {
			// Undo the local commit so the branch does not diverge from the
			// remote; the changes stay staged and the caller decides whether
			// to retry or abandon.
			_ = p.run(ctx, "reset", "--soft", "HEAD~1")
			if isRejectedPush(err) {
				return "", tagGitError(err, ErrCommitRejected)
			}
			return "", tagGitError(err, ErrCommit)
		}
	}

	return rev, nil
}

// Workdir implements Provider.Workdir.
func (p *CommandProvider) Workdir() string {
	return p.workdir
}

// HasChanges reports whether the working copy or staging area differs from HEAD.
func (p *CommandProvider) HasChanges(ctx context.Context) (bool, error) {
	output, err := p.runWithOutput(ctx, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(output) != "", nil
}

// Reset discards all uncommitted changes: tracked files are restored to
// HEAD and untracked files are removed.
func (p *CommandProvider) Reset(ctx context.Context) error {
	if err := p.run(ctx, "reset", "--hard", "--quiet"); err != nil {
		return err
	}
	return p.run(ctx, "clean", "-fdq")
}

// CurrentBranch returns the name of the currently checked-out branch.
func (p *CommandProvider) CurrentBranch(ctx context.Context) (string, error) {
	output, err := p.runWithOutput(ctx, "branch", "--show-current")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}

// SetRemote points the origin remote at url, replacing any existing origin.
func (p *CommandProvider) SetRemote(ctx context.Context, url string) error {
	if p.hasRemote(ctx) {
		return p.run(ctx, "remote", "set-url", "origin", url)
	}
	return p.run(ctx, "remote", "add", "origin", url)
}

func (p *CommandProvider) hasRemote(ctx context.Context) bool {
	return p.run(ctx, "remote", "get-url", "origin") == nil
}

// run executes a git command in the repository directory with context.
func (p *CommandProvider) run(ctx context.Context, args ...string) error {
	allArgs := append([]string{"-C", p.workdir}, args...)
	return p.executor.ExecuteWithContext(ctx, "git", allArgs...)
}

// runWithOutput executes a git command and returns its output with context.
func (p *CommandProvider) runWithOutput(ctx context.Context, args ...string) (string, error) {
	allArgs := append([]string{"-C", p.workdir}, args...)
	return p.executor.ExecuteWithContextAndOutput(ctx, "git", allArgs...)
}

// tagGitError threads a failure-class sentinel into the error chain while
// keeping the GitError (with its captured output) and the original cause
// intact, so errors.Is still matches both.
func tagGitError(err error, sentinel error) error {
	var gitErr *errors.GitError
	if errors.As(err, &gitErr) {
		return errors.NewGitError(gitErr.Operation, gitErr.Args,
			fmt.Errorf("%w: %w", sentinel, gitErr.Err), gitErr.Output)
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// gitErrorOutput returns the captured stderr of a failed git command, if any.
func gitErrorOutput(err error) string {
	var gitErr *errors.GitError
	if errors.As(err, &gitErr) {
		return gitErr.Output
	}
	return err.Error()
}

// isMissingObject reports whether a failed show was caused by the object
// being absent rather than by the command itself failing.
func isMissingObject(err error) bool {
	output := gitErrorOutput(err)
	for _, marker := range []string{
		"does not exist",
		"invalid object name",
		"bad revision",
		"exists on disk, but not in",
	} {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

// isNothingToCommit reports whether a failed commit was caused by an empty
// staging area. git prints the diagnosis on stdout, so stderr may be empty;
// check both.
func isNothingToCommit(err error) bool {
	output := gitErrorOutput(err)
	return strings.Contains(output, "nothing to commit") ||
		strings.Contains(output, "nothing added to commit") ||
		strings.Contains(output, "no changes added to commit")
}

// isRejectedPush reports whether a failed push was refused by the remote,
// which is how a concurrent writer surfaces.
func isRejectedPush(err error) bool {
	output := gitErrorOutput(err)
	for _, marker := range []string{
		"non-fast-forward",
		"fetch first",
		"[rejected]",
		"failed to push some refs",
	} {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}
