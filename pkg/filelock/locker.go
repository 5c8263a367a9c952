// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

// Package filelock provides cross-platform advisory file locking.
//
// Locks are used to serialize operations that mutate shared files on
// disk, such as the environment file written during configuration
// bootstrap. Unix uses flock(2), Windows uses LockFileEx.
package filelock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrFileLocked is returned when the lock is held by another process.
var ErrFileLocked = errors.New("file is locked by another process")

// retryInterval is how often Acquire re-attempts a contended lock.
const retryInterval = 100 * time.Millisecond

// FileLocker abstracts platform-specific file locking operations.
//
// # Description
//
// Provides a unified interface for exclusive file locking across Unix
// and Windows. All operations are non-blocking: Lock returns
// ErrFileLocked immediately if the lock is held elsewhere.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use on different files.
// Locking the same file from multiple goroutines is undefined behavior.
type FileLocker interface {
	// Lock acquires an exclusive lock on the file.
	//
	// # Inputs
	//
	//   - f: Open file handle to lock.
	//
	// # Outputs
	//
	//   - error: nil on success, ErrFileLocked if already locked.
	Lock(f *os.File) error

	// Unlock releases the lock on the file.
	//
	// Safe to call even if the file is not locked.
	Unlock(f *os.File) error
}

// New returns a platform-appropriate FileLocker.
func New() FileLocker {
	return newPlatformLocker()
}

// Handle represents a held lock. Release it when done.
type Handle struct {
	path   string
	file   *os.File
	locker FileLocker
}

// Path returns the lock file path.
func (h *Handle) Path() string {
	return h.path
}

// Release unlocks and closes the underlying lock file.
//
// Safe to call more than once; subsequent calls are no-ops.
func (h *Handle) Release() error {
	if h.file == nil {
		return nil
	}
	unlockErr := h.locker.Unlock(h.file)
	closeErr := h.file.Close()
	h.file = nil
	if unlockErr != nil {
		return fmt.Errorf("unlock %s: %w", h.path, unlockErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", h.path, closeErr)
	}
	return nil
}

// TryAcquire attempts to take the lock at path without waiting.
//
// # Description
//
// Opens (creating if necessary) the lock file and attempts a
// non-blocking exclusive lock. The lock file is left in place after
// release so concurrent processes always contend on the same inode.
//
// # Inputs
//
//   - path: Lock file path. Created with 0600 if missing.
//
// # Outputs
//
//   - *Handle: Held lock on success.
//   - error: ErrFileLocked if another process holds the lock.
func TryAcquire(path string) (*Handle, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}

	locker := New()
	if err := locker.Lock(f); err != nil {
		f.Close()
		if errors.Is(err, ErrFileLocked) {
			return nil, fmt.Errorf("%w: %s", ErrFileLocked, path)
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	return &Handle{path: path, file: f, locker: locker}, nil
}

// Acquire takes the lock at path, retrying until the context is done.
//
// # Description
//
// Repeatedly attempts TryAcquire at a fixed interval. Returns
// ErrFileLocked (wrapped with the context error) when the context is
// cancelled or times out before the lock becomes available.
//
// # Inputs
//
//   - ctx: Bounds the total wait.
//   - path: Lock file path.
//
// # Outputs
//
//   - *Handle: Held lock on success.
//   - error: Non-nil if the lock could not be acquired in time.
func Acquire(ctx context.Context, path string) (*Handle, error) {
	for {
		h, err := TryAcquire(path)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrFileLocked) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s (%v)", ErrFileLocked, path, ctx.Err())
		case <-time.After(retryInterval):
		}
	}
}
