// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/budgetis/budgetctl/cmd/budgetctl/config"
	"github.com/budgetis/budgetctl/internal/infra/compose"
)

// === INTERFACE ===

// ManageRunner runs application management commands in the app
// service's containers.
//
// # Description
//
// Commands get the configured prefix (python manage.py) prepended and
// run with inherited stdio. RunManage uses a fresh one-off container;
// ExecManage runs inside the already-running container, which
// interactive commands like shell and createsuperuser need so they see
// the live application. The returned exit code is the command's own.
type ManageRunner interface {
	// RunManage runs manageArgs in a one-off container.
	RunManage(ctx context.Context, manageArgs []string) (int, error)

	// ExecManage runs manageArgs in the running app container.
	ExecManage(ctx context.Context, manageArgs []string) (int, error)
}

// === DEFAULT IMPLEMENTATION ===

// DefaultManageRunner is the production ManageRunner.
type DefaultManageRunner struct{}

// NewManageRunner creates the default manage runner.
func NewManageRunner() *DefaultManageRunner {
	return &DefaultManageRunner{}
}

// RunManage implements ManageRunner.
func (d *DefaultManageRunner) RunManage(ctx context.Context, manageArgs []string) (int, error) {
	opts, exec, err := d.buildRun(manageArgs)
	if err != nil {
		return -1, err
	}
	return exec.RunOneOff(ctx, opts)
}

// ExecManage implements ManageRunner.
func (d *DefaultManageRunner) ExecManage(ctx context.Context, manageArgs []string) (int, error) {
	opts, exec, err := d.buildRun(manageArgs)
	if err != nil {
		return -1, err
	}
	return exec.ExecInteractive(ctx, opts)
}

// buildRun assembles the full management command for the app service.
func (d *DefaultManageRunner) buildRun(manageArgs []string) (compose.RunOptions, compose.Executor, error) {
	cfg := config.Global
	if cfg == nil {
		return compose.RunOptions{}, nil, fmt.Errorf("configuration not loaded")
	}
	exec, err := stackExecutor()
	if err != nil {
		return compose.RunOptions{}, nil, err
	}

	command := append(append([]string{}, cfg.Manage.Command...), manageArgs...)
	return compose.RunOptions{
		Service: cfg.Project.AppService,
		Command: command,
	}, exec, nil
}

// === MOCK IMPLEMENTATION ===

// MockManageRunner records calls for testing.
type MockManageRunner struct {
	mu        sync.Mutex
	Calls     [][]string
	ExecCalls [][]string

	RunManageFunc  func(ctx context.Context, manageArgs []string) (int, error)
	ExecManageFunc func(ctx context.Context, manageArgs []string) (int, error)
}

// RunManage implements ManageRunner.
func (m *MockManageRunner) RunManage(ctx context.Context, manageArgs []string) (int, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, append([]string{}, manageArgs...))
	m.mu.Unlock()

	if m.RunManageFunc != nil {
		return m.RunManageFunc(ctx, manageArgs)
	}
	return 0, nil
}

// ExecManage implements ManageRunner.
func (m *MockManageRunner) ExecManage(ctx context.Context, manageArgs []string) (int, error) {
	m.mu.Lock()
	m.ExecCalls = append(m.ExecCalls, append([]string{}, manageArgs...))
	m.mu.Unlock()

	if m.ExecManageFunc != nil {
		return m.ExecManageFunc(ctx, manageArgs)
	}
	return 0, nil
}

// Compile-time interface checks.
var (
	_ ManageRunner = (*DefaultManageRunner)(nil)
	_ ManageRunner = (*MockManageRunner)(nil)
)

// === OPERATIONS ===

// runManageOp is the shared body for every management operation: run
// the command, pass its exit code through unchanged.
func runManageOp(ctx context.Context, name string, manageArgs []string, interactive bool) *OperationResult {
	r := newResult(name)

	var code int
	var err error
	if interactive {
		code, err = manageRunner.ExecManage(ctx, manageArgs)
	} else {
		code, err = manageRunner.RunManage(ctx, manageArgs)
	}
	if err != nil && code <= 0 {
		return r.finish(CLIExitError, "", err)
	}
	if code != 0 {
		return r.finish(code, "", fmt.Errorf("%s exited %d", name, code))
	}
	return r.finish(CLIExitSuccess, "", nil)
}

// opMigrate applies pending schema migrations.
func opMigrate(ctx context.Context, args []string) *OperationResult {
	cfg := config.Global
	if cfg == nil {
		return newResult("migrate").finish(CLIExitError, "", fmt.Errorf("configuration not loaded"))
	}
	manageArgs := append(append([]string{}, cfg.Manage.MigrateArgs...), args...)
	return runManageOp(ctx, "migrate", manageArgs, false)
}

// opMakeMigrations generates new migration files.
func opMakeMigrations(ctx context.Context, args []string) *OperationResult {
	return runManageOp(ctx, "makemigrations", append([]string{"makemigrations"}, args...), false)
}

// opShell opens a shell inside the running app container.
func opShell(ctx context.Context, args []string) *OperationResult {
	return runManageOp(ctx, "shell", append([]string{"shell"}, args...), true)
}

// opCreateSuperuser creates an admin account interactively, inside the
// running app container.
func opCreateSuperuser(ctx context.Context, args []string) *OperationResult {
	return runManageOp(ctx, "createsuperuser", append([]string{"createsuperuser"}, args...), true)
}

// opCollectStatic gathers static assets. Runs non-interactive unless
// the caller passes their own flags.
func opCollectStatic(ctx context.Context, args []string) *OperationResult {
	manageArgs := []string{"collectstatic"}
	if len(args) == 0 {
		manageArgs = append(manageArgs, "--noinput")
	} else {
		manageArgs = append(manageArgs, args...)
	}
	return runManageOp(ctx, "collectstatic", manageArgs, false)
}

// opManage passes arbitrary arguments straight to the management
// command.
func opManage(ctx context.Context, args []string) *OperationResult {
	if len(args) == 0 {
		return newResult("manage").finish(CLIExitError, "",
			fmt.Errorf("manage requires at least one argument"))
	}
	return runManageOp(ctx, "manage", args, false)
}
