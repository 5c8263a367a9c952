// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

//go:build windows

package filelock

import (
	"os"

	"golang.org/x/sys/windows"
)

// windowsFileLocker implements FileLocker using LockFileEx.
//
// # Description
//
// Uses mandatory byte-range locking over the first byte of the file.
// LOCKFILE_FAIL_IMMEDIATELY makes the call non-blocking to match the
// Unix flock(2) behavior.
type windowsFileLocker struct{}

// Lock acquires an exclusive lock using LockFileEx.
func (l *windowsFileLocker) Lock(f *os.File) error {
	ol := new(windows.Overlapped)
	err := windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, ol,
	)
	if err != nil {
		if err == windows.ERROR_LOCK_VIOLATION {
			return ErrFileLocked
		}
		return err
	}
	return nil
}

// Unlock releases the lock using UnlockFileEx. Safe when not locked.
func (l *windowsFileLocker) Unlock(f *os.File) error {
	ol := new(windows.Overlapped)
	err := windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
	if err != nil && err != windows.ERROR_NOT_LOCKED {
		return err
	}
	return nil
}

// newPlatformLocker returns the Windows LockFileEx-based locker.
func newPlatformLocker() FileLocker {
	return &windowsFileLocker{}
}
