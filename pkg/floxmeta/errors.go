package floxmeta

import (
	"fmt"

	"github.com/nickryand/flox/pkg/errors"
)

// Sentinel errors for the read protocol. Exactly one backend failure mode
// maps to each variant, so callers can branch with errors.Is (for example
// retry on ErrSync, bootstrap a default document on ErrNotFound).
var (
	// ErrSync indicates the repository could not be synchronized with its
	// remote; the read was not attempted
	ErrSync = errors.New("failed to synchronize floxmeta with its remote")

	// ErrNotFound indicates the user metadata document has never been
	// written to the repository
	ErrNotFound = errors.New("user metadata not found")

	// ErrShow indicates the user metadata object could not be accessed for
	// a reason other than absence
	ErrShow = errors.New("could not access user metadata")

	// ErrDeserialize indicates the document bytes could not be parsed into
	// the expected schema
	ErrDeserialize = errors.New("could not parse user metadata")

	// ErrVersionMismatch indicates the document carries a schema version
	// other than the one this reader understands
	ErrVersionMismatch = errors.New("unexpected user metadata version")
)

// Sentinel errors for the write protocol and transaction lifecycle.
var (
	// ErrCheckout indicates the working copy could not be switched to the
	// document branch
	ErrCheckout = errors.New("could not checkout the floxmain branch")

	// ErrSerialize indicates the document could not be serialized
	ErrSerialize = errors.New("could not serialize user metadata")

	// ErrWrite indicates the serialized document could not be written into
	// the working copy
	ErrWrite = errors.New("could not write user metadata file")

	// ErrStage indicates the written document could not be staged
	ErrStage = errors.New("could not stage user metadata file")

	// ErrTransaction indicates a transaction could not be entered (the
	// repository is locked or the working copy could not be prepared)
	ErrTransaction = errors.New("could not enter transaction")

	// ErrCommit indicates staged changes could not be finalized; the cause
	// chain distinguishes an empty staging area (git.ErrNothingToCommit)
	// from a concurrent-writer conflict (git.ErrCommitRejected)
	ErrCommit = errors.New("could not commit transaction")

	// ErrTransactionDone indicates an operation was attempted on a
	// transaction that has already been finalized or aborted
	ErrTransactionDone = errors.New("transaction already finalized")
)

// stageError tags a protocol-stage sentinel onto a backend cause. Both are
// part of the chain, so errors.Is matches the stage as well as the
// underlying backend failure.
func stageError(stage, cause error) error {
	return fmt.Errorf("%w: %w", stage, cause)
}
