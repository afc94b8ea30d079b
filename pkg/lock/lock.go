package lock

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"

	floxErrors "github.com/nickryand/flox/pkg/errors"
)

// Locker serializes floxmeta transactions using file locks
type Locker struct {
	lockFile string
	lockFd   *os.File
	pid      int
	acquired bool
}

// New creates a Locker for the specified working directory
func New(workdir string) (*Locker, error) {
	if runtime.GOOS == "windows" {
		return nil, floxErrors.NewLockError("", 0,
			floxErrors.Wrap(floxErrors.ErrLockAcquisitionFailure,
				"flox currently only supports Unix-like operating systems (Linux, macOS, BSD)"))
	}

	dirHash := fmt.Sprintf("%x", sha256.Sum256([]byte(workdir)))[:16]
	lockFile := filepath.Join(os.TempDir(), fmt.Sprintf("floxmeta-%s.lock", dirHash))

	return &Locker{
		lockFile: lockFile,
		pid:      os.Getpid(),
		acquired: false,
	}, nil
}

// Acquire tries to acquire the lock
func (l *Locker) Acquire() error {
	err := l.tryCreateLock()
	if err == nil {
		return nil
	} else if os.IsExist(err) {
		// Only try to acquire an existing lock if the error is specifically about the file already existing
		return l.tryAcquireExistingLock()
	}

	// For other errors, return immediately without trying to acquire an existing lock
	return err
}

// tryCreateLock attempts to create and lock a new lock file
func (l *Locker) tryCreateLock() error {
	var err error

	// O_EXCL with O_CREATE ensures the file is created atomically
	l.lockFd, err = os.OpenFile(l.lockFile, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0666)
	if err != nil {
		// Pass through the original error so os.IsExist() can detect it
		if os.IsExist(err) {
			return err
		}
		return floxErrors.NewLockError(l.lockFile, 0,
			floxErrors.Wrap(err, "failed to create lock file"))
	}

	if err = l.acquireFlock(); err != nil {
		l.closeFileDescriptor()
		return floxErrors.NewLockError(l.lockFile, 0,
			floxErrors.Wrap(err, "failed to acquire lock on newly created lock file"))
	}

	if err = l.writePidToLockFile(); err != nil {
		releaseErr := l.Release()
		if releaseErr != nil {
			return floxErrors.Wrap(err, fmt.Sprintf("failed to write PID and failed to release lock: %v", releaseErr))
		}
		return err
	}

	l.acquired = true
	return nil
}

// tryAcquireExistingLock acquires a lock on an existing lock file
func (l *Locker) tryAcquireExistingLock() error {
	var err error
	l.lockFd, err = os.OpenFile(l.lockFile, os.O_RDWR, 0666)
	if err != nil {
		return floxErrors.NewLockError(l.lockFile, 0,
			floxErrors.Wrap(err, "failed to open existing lock file"))
	}

	if err = l.acquireFlock(); err != nil {
		l.closeFileDescriptor()

		// Older Unix systems report a held flock as either EWOULDBLOCK or
		// EAGAIN, so check for both.
		if floxErrors.Is(err, syscall.EWOULDBLOCK) || floxErrors.Is(err, syscall.EAGAIN) {
			return l.handleBlockedLock()
		}

		return floxErrors.NewLockError(l.lockFile, 0,
			floxErrors.Wrap(err, "failed to acquire lock"))
	}

	if err = l.resetAndWritePid(); err != nil {
		releaseErr := l.Release()
		if releaseErr != nil {
			return floxErrors.Wrap(err, fmt.Sprintf("failed to reset/write PID and failed to release lock: %v", releaseErr))
		}
		return err
	}

	l.acquired = true
	return nil
}

// handleBlockedLock handles locks held by another process
// and attempts to recover from stale locks
func (l *Locker) handleBlockedLock() error {
	otherPid, pidErr := l.readLockFilePid()
	if pidErr != nil {
		return floxErrors.NewLockError(l.lockFile, 0,
			floxErrors.Wrap(pidErr, "another process is inside a transaction, but couldn't identify its PID"))
	}

	if isProcessRunning(otherPid) {
		return floxErrors.NewLockError(l.lockFile, otherPid, floxErrors.ErrLockHeld)
	}

	return l.handleStaleLock(otherPid)
}

// acquireFlock gets an exclusive non-blocking lock
func (l *Locker) acquireFlock() error {
	return syscall.Flock(int(l.lockFd.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
}

// resetAndWritePid clears the file and writes the current PID
func (l *Locker) resetAndWritePid() error {
	if err := l.lockFd.Truncate(0); err != nil {
		return floxErrors.NewLockError(l.lockFile, l.pid,
			floxErrors.Wrap(err, "failed to truncate lock file"))
	}

	return l.writePidToLockFile()
}

// writePidToLockFile writes PID to the lock file
func (l *Locker) writePidToLockFile() error {
	_, err := l.lockFd.WriteAt([]byte(strconv.Itoa(l.pid)), 0)
	if err != nil {
		return floxErrors.NewLockError(l.lockFile, l.pid,
			floxErrors.Wrap(err, "failed to write PID to lock file"))
	}
	return nil
}

// closeFileDescriptor closes the lock file descriptor
func (l *Locker) closeFileDescriptor() {
	if l.lockFd != nil {
		_ = l.lockFd.Close()
		l.lockFd = nil
	}
}

// isProcessRunning checks if a process exists using signal 0
func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	err = process.Signal(syscall.Signal(0))
	return err == nil
}

// handleStaleLock removes and recreates a stale lock
func (l *Locker) handleStaleLock(otherPid int) error {
	l.closeFileDescriptor()

	if err := os.Remove(l.lockFile); err != nil {
		return floxErrors.NewLockError(l.lockFile, otherPid,
			floxErrors.Wrap(err, fmt.Sprintf("found stale lock file from PID %d, but failed to remove it", otherPid)))
	}

	var err error
	l.lockFd, err = os.OpenFile(l.lockFile, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0666)
	if err != nil {
		if os.IsExist(err) {
			return floxErrors.NewLockError(l.lockFile, 0,
				floxErrors.Wrap(err, "another process took the lock immediately after we removed the stale lock"))
		}
		return floxErrors.NewLockError(l.lockFile, 0,
			floxErrors.Wrap(err, "failed to open lock file after removing stale lock"))
	}

	if err = l.acquireFlock(); err != nil {
		l.closeFileDescriptor()
		return floxErrors.NewLockError(l.lockFile, 0,
			floxErrors.Wrap(err, "failed to acquire lock even after removing stale lock"))
	}

	if err = l.writePidToLockFile(); err != nil {
		releaseErr := l.Release()
		if releaseErr != nil {
			return floxErrors.Wrap(err, fmt.Sprintf("failed to write PID and failed to release lock: %v", releaseErr))
		}
		return err
	}

	l.acquired = true
	return nil
}

// readLockFilePid reads and parses the PID from the lock file
func (l *Locker) readLockFilePid() (int, error) {
	data, err := os.ReadFile(l.lockFile)
	if err != nil {
		return 0, floxErrors.Wrap(err, "failed to read lock file")
	}

	pidStr := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return 0, floxErrors.Wrap(err, "invalid PID in lock file")
	}

	return pid, nil
}

// Release releases the lock if it was acquired
func (l *Locker) Release() error {
	if l.lockFd == nil {
		return nil
	}

	var err error

	if flockErr := syscall.Flock(int(l.lockFd.Fd()), syscall.LOCK_UN); flockErr != nil {
		err = floxErrors.NewLockError(l.lockFile, l.pid,
			floxErrors.Wrap(flockErr, "failed to release lock"))
	}

	// Always try to close the file descriptor, even if the unlock failed
	if closeErr := l.lockFd.Close(); closeErr != nil && err == nil {
		err = floxErrors.NewLockError(l.lockFile, l.pid,
			floxErrors.Wrap(closeErr, "failed to close lock file"))
	}

	l.lockFd = nil
	l.acquired = false

	// Always try to remove the lock file, regardless of previous errors,
	// so a failed unlock cannot strand future transactions.
	if removeErr := os.Remove(l.lockFile); removeErr != nil && !os.IsNotExist(removeErr) && err == nil {
		err = floxErrors.NewLockError(l.lockFile, l.pid,
			floxErrors.Wrap(removeErr, "failed to remove lock file"))
	}

	return err
}

// LockFile returns the path of the lock file backing this Locker.
func (l *Locker) LockFile() string {
	return l.lockFile
}
