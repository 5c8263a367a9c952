// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

//go:build unix

package filelock

import (
	"os"
	"syscall"
)

// unixFileLocker implements FileLocker using syscall.Flock.
//
// # Description
//
// Uses advisory file locking via flock(2). Locks are:
//   - Tied to the open file description
//   - Released on file close or process exit
//   - Non-blocking (LOCK_NB)
type unixFileLocker struct{}

// Lock acquires an exclusive lock using flock(2).
func (l *unixFileLocker) Lock(f *os.File) error {
	err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
	if err != nil {
		if err == syscall.EWOULDBLOCK {
			return ErrFileLocked
		}
		return err
	}
	return nil
}

// Unlock releases the lock using LOCK_UN. Safe when not locked.
func (l *unixFileLocker) Unlock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}

// newPlatformLocker returns the Unix flock-based locker.
func newPlatformLocker() FileLocker {
	return &unixFileLocker{}
}
