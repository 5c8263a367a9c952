// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

//go:build unix

package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// execProcess replaces the current process with argv. The main command
// inherits PID 1 and receives container signals directly. Returns only
// on failure.
func execProcess(_ context.Context, argv []string) (int, error) {
	path, err := exec.LookPath(argv[0])
	if err != nil {
		return -1, fmt.Errorf("lookup %s: %w", argv[0], err)
	}
	if err := syscall.Exec(path, argv, os.Environ()); err != nil {
		return -1, fmt.Errorf("exec %s: %w", path, err)
	}
	// Unreachable: Exec does not return on success.
	return 0, nil
}
