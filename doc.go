// Package flox is an SDK for working with per-user flox metadata stored in
// git-backed floxmeta repositories.
//
// The Flox type is the process context: it resolves the configured
// directories, provisions a session temporary directory, initializes the
// per-installation client UUID, and loads the floxhub token. From a Flox
// context, Floxmeta opens (cloning on first use) the metadata repository of
// a user and returns a read-only handle from package
// github.com/nickryand/flox/pkg/floxmeta.
//
// The transactional document protocol itself, including its access-state
// discipline and error taxonomy, lives in pkg/floxmeta; the git backend it
// runs on lives in pkg/git.
package flox
