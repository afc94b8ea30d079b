// Package git provides the version-control backend used as the storage
// substrate for floxmeta repositories.
//
// The package is organized around a small capability interface, Provider,
// which exposes exactly the primitives the document protocols need:
// synchronize, read-object-at-ref, checkout, stage, commit, and the working
// directory path. Protocol code is written against Provider, never against
// a concrete implementation.
//
// # Core Components
//
//   - Provider: the capability interface consumed by the floxmeta package
//   - CommandProvider: the production implementation that shells out to git
//   - CommandExecutor: an abstraction over command execution that allows
//     git invocations to be mocked in tests
//   - MemoryProvider: an in-memory Provider that simulates branches, a
//     remote, and injectable failures without invoking git at all
//
// # Error Mapping
//
// Every failing git invocation is returned as a *errors.GitError carrying
// the operation, arguments, stderr output, and an underlying sentinel
// describing the failure class. Callers branch on the sentinels with
// errors.Is:
//
//	data, err := provider.Show(ctx, "floxmain:floxUserMeta.json")
//	if errors.Is(err, git.ErrObjectNotFound) {
//	    // document has never been written
//	}
//
// # Usage
//
//	provider, err := git.Open("/path/to/floxmeta")
//	if err != nil {
//	    // not a git repository
//	}
//	if err := provider.Fetch(ctx); err != nil {
//	    // could not synchronize with the remote
//	}
package git
