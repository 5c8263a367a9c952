// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

/*
Package process abstracts external process execution.

All exec.Command calls in budgetctl go through the Manager interface so
command invocations can be mocked and verified in unit tests. The
wrapped tool's exit code is always surfaced to the caller; budgetctl's
exit-code passthrough contract depends on it.
*/
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// -----------------------------------------------------------------------------
// Interface Definition
// -----------------------------------------------------------------------------

// Manager handles external process operations.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use from multiple
// goroutines.
//
// # Context Handling
//
// All methods accept a context.Context; cancelling it kills the child
// process.
type Manager interface {
	// RunInDir executes a command in a directory, capturing output.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation/timeout.
	//   - dir: Working directory. Empty means inherit the caller's.
	//   - env: Extra environment entries appended to os.Environ().
	//   - name: Executable name or path.
	//   - args: Command arguments.
	//
	// # Outputs
	//
	//   - string: Captured stdout.
	//   - string: Captured stderr.
	//   - int: Exit code. -1 when the process never started.
	//   - error: Non-nil on non-zero exit or infrastructure failure.
	RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error)

	// RunStreaming executes a command, piping combined output to w.
	//
	// Used for long-running follow operations (compose logs -f). The
	// call blocks until the process exits or the context is cancelled;
	// cancellation is the normal way to end a follow and is not an
	// error. Returns the child's exit code.
	RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) (int, error)

	// RunInteractive executes a command with inherited stdio.
	//
	// Used for commands the operator interacts with directly (Django
	// shell, createsuperuser) and for migrations whose output must land
	// on the container's stdout. Returns the child's exit code.
	RunInteractive(ctx context.Context, dir string, env []string, name string, args ...string) (int, error)
}

// -----------------------------------------------------------------------------
// Implementation
// -----------------------------------------------------------------------------

// DefaultManager implements Manager using os/exec.
//
// This is the production implementation. Use MockManager in tests.
type DefaultManager struct{}

// NewDefaultManager creates a Manager that executes real processes.
func NewDefaultManager() *DefaultManager {
	return &DefaultManager{}
}

// RunInDir executes a command and captures stdout, stderr, and exit code.
func (m *DefaultManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = buildEnv(env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := exitCodeFromError(err)
	if err != nil {
		return stdout.String(), stderr.String(), exitCode,
			fmt.Errorf("%s: %w", name, err)
	}
	return stdout.String(), stderr.String(), 0, nil
}

// RunStreaming executes a command with combined output piped to w.
func (m *DefaultManager) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	if err != nil {
		// Cancellation is the normal way to end a follow; not an error.
		if ctx.Err() != nil {
			return 0, nil
		}
		return exitCodeFromError(err), fmt.Errorf("%s: %w", name, err)
	}
	return 0, nil
}

// RunInteractive executes a command with the caller's stdio attached.
func (m *DefaultManager) RunInteractive(ctx context.Context, dir string, env []string, name string, args ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = buildEnv(env)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	exitCode := exitCodeFromError(err)
	if err != nil {
		return exitCode, fmt.Errorf("%s: %w", name, err)
	}
	return 0, nil
}

// buildEnv appends extra entries to the inherited environment.
func buildEnv(extra []string) []string {
	if len(extra) == 0 {
		return os.Environ()
	}
	return append(os.Environ(), extra...)
}

// exitCodeFromError extracts the child exit code from a Run error.
// Returns 0 for nil, the child's code for ExitError, and -1 when the
// process never ran (binary missing, fork failure).
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// -----------------------------------------------------------------------------
// Mock Implementation for Testing
// -----------------------------------------------------------------------------

// MockManager is a test double for Manager.
//
// Configure the mock by setting function fields before use. A nil
// function field makes the corresponding method succeed with zero
// values, so simple tests need no setup.
//
// # Examples
//
//	mock := &process.MockManager{
//	    RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
//	        return "", "permission denied", 13, errors.New("exit status 13")
//	    },
//	}
type MockManager struct {
	// RunInDirFunc is called when RunInDir is invoked.
	RunInDirFunc func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error)

	// RunStreamingFunc is called when RunStreaming is invoked.
	RunStreamingFunc func(ctx context.Context, dir string, w io.Writer, name string, args ...string) (int, error)

	// RunInteractiveFunc is called when RunInteractive is invoked.
	RunInteractiveFunc func(ctx context.Context, dir string, env []string, name string, args ...string) (int, error)

	// Calls records all method invocations for verification.
	Calls []ManagerCall

	mu sync.Mutex
}

// ManagerCall records a single method invocation.
type ManagerCall struct {
	Method string
	Dir    string
	Name   string
	Args   []string
	Env    []string
}

// RunInDir records the call and delegates to RunInDirFunc.
func (m *MockManager) RunInDir(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
	m.record(ManagerCall{Method: "RunInDir", Dir: dir, Name: name, Args: args, Env: env})
	if m.RunInDirFunc != nil {
		return m.RunInDirFunc(ctx, dir, env, name, args...)
	}
	return "", "", 0, nil
}

// RunStreaming records the call and delegates to RunStreamingFunc.
func (m *MockManager) RunStreaming(ctx context.Context, dir string, w io.Writer, name string, args ...string) (int, error) {
	m.record(ManagerCall{Method: "RunStreaming", Dir: dir, Name: name, Args: args})
	if m.RunStreamingFunc != nil {
		return m.RunStreamingFunc(ctx, dir, w, name, args...)
	}
	return 0, nil
}

// RunInteractive records the call and delegates to RunInteractiveFunc.
func (m *MockManager) RunInteractive(ctx context.Context, dir string, env []string, name string, args ...string) (int, error) {
	m.record(ManagerCall{Method: "RunInteractive", Dir: dir, Name: name, Args: args, Env: env})
	if m.RunInteractiveFunc != nil {
		return m.RunInteractiveFunc(ctx, dir, env, name, args...)
	}
	return 0, nil
}

func (m *MockManager) record(call ManagerCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

// Reset clears all recorded calls.
func (m *MockManager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
}

// GetCalls returns a copy of all recorded calls.
func (m *MockManager) GetCalls() []ManagerCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ManagerCall, len(m.Calls))
	copy(result, m.Calls)
	return result
}

// Compile-time interface compliance check.
var (
	_ Manager = (*DefaultManager)(nil)
	_ Manager = (*MockManager)(nil)
)
