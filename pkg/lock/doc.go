// Package lock provides file-based transaction locking for floxmeta
// repositories.
//
// A floxmeta transaction owns the repository's working copy exclusively
// between entering the transaction and committing it. This package enforces
// that ownership across processes with a lock file keyed to the working
// directory. The lock file contains the owning process ID and stale locks
// left behind by dead processes are detected and recovered.
//
// # Core Components
//
// - Locker: Main type that manages lock files
//
// # Features
//
// - Working-directory-specific lock files
// - Process ID tracking to identify lock ownership
// - Stale lock detection and cleanup
// - Clean error messages for lock conflicts
//
// # Usage
//
// Basic usage pattern:
//
//	// Create a file lock for a floxmeta working directory
//	l, err := lock.New("/path/to/floxmeta")
//	if err != nil {
//	    // Handle error
//	}
//
//	// Acquire the lock before mutating the working copy
//	if err := l.Acquire(); err != nil {
//	    // Another process is inside a transaction on this repository
//	}
//
//	// ... checkout, write, stage, commit ...
//
//	// Release the lock when the transaction finishes
//	defer l.Release()
package lock
