// Package floxmeta implements the transactional document protocol for
// per-user flox metadata stored in a git-backed floxmeta repository.
//
// The persisted document is a single JSON file, floxUserMeta.json, tracked
// on the floxmain branch. It records the user's opted-in channels, the
// per-installation client UUID, the metrics consent flag, and a schema
// version tag.
//
// # Access States
//
// Access to the repository is split into two handle types with disjoint
// operation sets:
//
//   - Floxmeta is the read-only handle. It can load the document
//     (UserMeta) and enter a transaction, nothing else. There is no
//     mutating method to misuse.
//   - Transaction is the sandboxed handle returned by EnterTransaction.
//     It can mutate the working copy (SetUserMeta, StageFile) and must be
//     finalized with Commit, which yields a fresh read-only handle.
//
// A Transaction is consumed by Commit: the handle types make mutation
// outside a transaction inexpressible, and a runtime tag rejects reuse of a
// finalized transaction as a defense-in-depth fallback.
//
// # Protocols
//
// The read protocol always synchronizes with the remote before reading, so
// staleness is bounded by "as of my last load". The write protocol stages
// changes into the exclusively-owned working copy but does not commit;
// durability and visibility to other readers happen only at Commit. Two
// concurrent writers are not coordinated here: the backend's fast-forward
// check on commit is the safety net, surfaced as git.ErrCommitRejected.
//
// # Usage
//
//	meta := floxmeta.Open("flox", provider)
//	doc, err := meta.UserMeta(ctx)
//	if err != nil {
//	    // errors.Is(err, floxmeta.ErrNotFound): document never written
//	}
//
//	tx, err := meta.EnterTransaction(ctx)
//	if err != nil {
//	    // repository locked by another transaction, or dirty working copy
//	}
//	doc.Channels = nil
//	if err := tx.SetUserMeta(ctx, doc); err != nil {
//	    _ = tx.Abort(ctx)
//	    return err
//	}
//	meta, err = tx.Commit(ctx, "clear channels")
package floxmeta
