package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nickryand/flox/pkg/errors"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git executable not available")
	}
}

// runGit runs a raw git command for test setup, failing the test on error.
func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), output)
	return string(output)
}

func configureIdentity(t *testing.T, dir string) {
	t.Helper()
	runGit(t, dir, "config", "user.name", "Test User")
	runGit(t, dir, "config", "user.email", "test@example.com")
}

// setupOrigin creates a bare origin whose branch carries the given files, and
// returns the origin path.
func setupOrigin(t *testing.T, branch string, files map[string]string) string {
	t.Helper()

	origin := filepath.Join(t.TempDir(), "origin.git")
	seed := filepath.Join(t.TempDir(), "seed")

	out, err := exec.Command("git", "init", "--quiet", "--bare", "-b", branch, origin).CombinedOutput()
	require.NoError(t, err, "init bare: %s", out)
	out, err = exec.Command("git", "init", "--quiet", "-b", branch, seed).CombinedOutput()
	require.NoError(t, err, "init seed: %s", out)
	configureIdentity(t, seed)

	for path, data := range files {
		full := filepath.Join(seed, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(data), 0644))
	}
	runGit(t, seed, "add", "--all")
	runGit(t, seed, "commit", "--quiet", "-m", "seed")
	runGit(t, seed, "remote", "add", "origin", origin)
	runGit(t, seed, "push", "--quiet", "origin", branch)

	return origin
}

// cloneOrigin clones origin and binds a provider to the clone.
func cloneOrigin(t *testing.T, ctx context.Context, origin string) *CommandProvider {
	t.Helper()

	dest := filepath.Join(t.TempDir(), "clone")
	p, err := Clone(ctx, origin, dest)
	require.NoError(t, err)
	configureIdentity(t, dest)
	return p
}

func TestOpen(t *testing.T) {
	requireGit(t)
	t.Parallel()
	ctx := context.Background()

	t.Run("existing repository", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		_, err := Init(ctx, dir, "floxmain")
		require.NoError(t, err)

		p, err := Open(dir)
		require.NoError(t, err)
		assert.Equal(t, dir, p.Workdir())
		assert.True(t, IsRepository(dir))
	})

	t.Run("plain directory is not a repository", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		_, err := Open(dir)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrGitOperationFailed), "got %v", err)
		assert.False(t, IsRepository(dir))
	})
}

func TestCommandProviderShow(t *testing.T) {
	requireGit(t)
	t.Parallel()
	ctx := context.Background()

	origin := setupOrigin(t, "floxmain", map[string]string{"doc.json": `{"version": 1}`})
	p := cloneOrigin(t, ctx, origin)

	t.Run("existing object", func(t *testing.T) {
		t.Parallel()
		data, err := p.Show(ctx, "floxmain:doc.json")
		require.NoError(t, err)
		assert.Equal(t, `{"version": 1}`, string(data))
	})

	t.Run("missing path", func(t *testing.T) {
		t.Parallel()
		_, err := p.Show(ctx, "floxmain:missing.json")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)
	})

	t.Run("missing branch", func(t *testing.T) {
		t.Parallel()
		_, err := p.Show(ctx, "nosuchbranch:doc.json")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrObjectNotFound), "got %v", err)
	})
}

func TestCommandProviderFetch(t *testing.T) {
	requireGit(t)
	t.Parallel()
	ctx := context.Background()

	origin := setupOrigin(t, "floxmain", map[string]string{"doc.json": "v1"})
	reader := cloneOrigin(t, ctx, origin)
	writer := cloneOrigin(t, ctx, origin)

	// The writer advances the remote.
	require.NoError(t, os.WriteFile(filepath.Join(writer.Workdir(), "doc.json"), []byte("v2"), 0644))
	require.NoError(t, writer.Add(ctx, "doc.json"))
	_, err := writer.Commit(ctx, "update doc")
	require.NoError(t, err)

	// Before synchronizing the reader still sees the old object.
	data, err := reader.Show(ctx, "floxmain:doc.json")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(data))

	require.NoError(t, reader.Fetch(ctx))
	data, err = reader.Show(ctx, "floxmain:doc.json")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestCommandProviderCommit(t *testing.T) {
	requireGit(t)
	t.Parallel()
	ctx := context.Background()

	t.Run("commit and propagate", func(t *testing.T) {
		t.Parallel()

		origin := setupOrigin(t, "floxmain", map[string]string{"doc.json": "v1"})
		p := cloneOrigin(t, ctx, origin)

		require.NoError(t, os.WriteFile(filepath.Join(p.Workdir(), "doc.json"), []byte("v2"), 0644))
		require.NoError(t, p.Add(ctx, "doc.json"))

		rev, err := p.Commit(ctx, "update doc")
		require.NoError(t, err)
		assert.Len(t, rev, 40)

		// The commit is visible to a fresh clone, proving it reached origin.
		other := cloneOrigin(t, ctx, origin)
		data, err := other.Show(ctx, "floxmain:doc.json")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(data))
	})

	t.Run("nothing staged", func(t *testing.T) {
		t.Parallel()

		origin := setupOrigin(t, "floxmain", map[string]string{"doc.json": "v1"})
		p := cloneOrigin(t, ctx, origin)

		_, err := p.Commit(ctx, "empty")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNothingToCommit), "got %v", err)
	})

	t.Run("concurrent writer rejects the push", func(t *testing.T) {
		t.Parallel()

		origin := setupOrigin(t, "floxmain", map[string]string{"doc.json": "v1"})
		first := cloneOrigin(t, ctx, origin)
		second := cloneOrigin(t, ctx, origin)

		require.NoError(t, os.WriteFile(filepath.Join(first.Workdir(), "doc.json"), []byte("first"), 0644))
		require.NoError(t, first.Add(ctx, "doc.json"))
		_, err := first.Commit(ctx, "first writer")
		require.NoError(t, err)

		require.NoError(t, os.WriteFile(filepath.Join(second.Workdir(), "doc.json"), []byte("second"), 0644))
		require.NoError(t, second.Add(ctx, "doc.json"))
		_, err = second.Commit(ctx, "second writer")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCommitRejected), "got %v", err)
	})
}

func TestCommandProviderCheckout(t *testing.T) {
	requireGit(t)
	t.Parallel()
	ctx := context.Background()

	origin := setupOrigin(t, "floxmain", map[string]string{"doc.json": "v1"})
	p := cloneOrigin(t, ctx, origin)

	branch, err := p.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "floxmain", branch)

	require.NoError(t, p.Checkout(ctx, "scratch", true))
	branch, err = p.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "scratch", branch)

	require.NoError(t, p.Checkout(ctx, "floxmain", false))

	err = p.Checkout(ctx, "nosuchbranch", false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCheckout), "got %v", err)
}

func TestCommandProviderHasChangesAndReset(t *testing.T) {
	requireGit(t)
	t.Parallel()
	ctx := context.Background()

	origin := setupOrigin(t, "floxmain", map[string]string{"doc.json": "v1"})
	p := cloneOrigin(t, ctx, origin)

	dirty, err := p.HasChanges(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, os.WriteFile(filepath.Join(p.Workdir(), "stray.txt"), []byte("x"), 0644))
	dirty, err = p.HasChanges(ctx)
	require.NoError(t, err)
	assert.True(t, dirty)

	require.NoError(t, p.Reset(ctx))
	dirty, err = p.HasChanges(ctx)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.NoFileExists(t, filepath.Join(p.Workdir(), "stray.txt"))
}

func TestCommandProviderFailedCommandOutput(t *testing.T) {
	requireGit(t)
	t.Parallel()
	ctx := context.Background()

	origin := setupOrigin(t, "floxmain", map[string]string{"doc.json": "v1"})
	p := cloneOrigin(t, ctx, origin)

	_, err := p.Show(ctx, "floxmain:missing.json")
	require.Error(t, err)

	// The captured git diagnostics survive the sentinel tagging.
	var gitErr *errors.GitError
	require.True(t, errors.As(err, &gitErr))
	assert.Equal(t, "git", gitErr.Operation)
	assert.NotEmpty(t, gitErr.Output)

	// So does the executor's own failure class.
	assert.True(t, errors.Is(err, errors.ErrGitOperationFailed), "got %v", err)
}

func TestCommandProviderCancelledContext(t *testing.T) {
	requireGit(t)
	t.Parallel()

	origin := setupOrigin(t, "floxmain", map[string]string{"doc.json": "v1"})
	p := cloneOrigin(t, context.Background(), origin)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The context error stays matchable through the sentinel tagging.
	err := p.Fetch(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetch), "got %v", err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
