// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/budgetis/budgetctl/cmd/budgetctl/config"
	"github.com/budgetis/budgetctl/internal/infra/compose"
	"github.com/budgetis/budgetctl/internal/infra/process"
)

// === COLLABORATORS ===

// Operations reach their infrastructure through these variables so
// tests can swap in mocks.
var (
	procMgr      process.Manager  = process.NewDefaultManager()
	bootstrapMgr BootstrapManager = NewBootstrapManager()
	readinessChk ReadinessChecker = NewReadinessChecker(DefaultProbeTimeout)
	manageRunner ManageRunner     = NewManageRunner()

	stackExec compose.Executor
)

// stackExecutor returns the compose executor, building it from the
// loaded configuration on first use.
func stackExecutor() (compose.Executor, error) {
	if stackExec != nil {
		return stackExec, nil
	}
	cfg := config.Global
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	exec, err := compose.NewDefaultExecutor(compose.Config{
		ProjectDir:   ".",
		ProjectName:  cfg.Project.Name,
		ComposeFile:  cfg.Project.ComposeFile,
		OverrideFile: cfg.Project.OverrideFile,
		EnvFile:      cfg.Project.EnvFile,
	}, procMgr)
	if err != nil {
		return nil, err
	}
	stackExec = exec
	return stackExec, nil
}

// === OPERATION RESULTS ===

// OperationResult is the structured outcome every operation returns.
type OperationResult struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Success     bool          `json:"success"`
	ExitCode    int           `json:"exit_code"`
	Message     string        `json:"message,omitempty"`
	Err         error         `json:"-"`
	Duration    time.Duration `json:"duration"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
}

// newResult starts a result for the named operation.
func newResult(name string) *OperationResult {
	return &OperationResult{
		ID:        uuid.NewString(),
		Name:      name,
		StartedAt: time.Now(),
	}
}

// finish stamps the result and returns it. Success follows the exit
// code so the two can never disagree.
func (r *OperationResult) finish(exitCode int, message string, err error) *OperationResult {
	r.CompletedAt = time.Now()
	r.Duration = r.CompletedAt.Sub(r.StartedAt)
	r.ExitCode = exitCode
	r.Success = exitCode == CLIExitSuccess && err == nil
	r.Message = message
	r.Err = err
	return r
}

// === DISPATCH TABLE ===

// OperationFunc is one dispatchable operation.
type OperationFunc func(ctx context.Context, args []string) *OperationResult

// operations maps command names to their implementations. Every
// user-facing verb routes through this table.
var operations = map[string]OperationFunc{
	"init":            opInit,
	"build":           opBuild,
	"start":           opStart,
	"stop":            opStop,
	"restart":         opRestart,
	"reset":           opReset,
	"logs":            opLogs,
	"ps":              opPs,
	"migrate":         opMigrate,
	"makemigrations":  opMakeMigrations,
	"shell":           opShell,
	"createsuperuser": opCreateSuperuser,
	"collectstatic":   opCollectStatic,
	"manage":          opManage,
	"entrypoint":      opEntrypoint,
}

// Dispatch looks up and runs the named operation.
func Dispatch(ctx context.Context, name string, args []string) *OperationResult {
	op, ok := operations[name]
	if !ok {
		return newResult(name).finish(CLIExitError, "",
			fmt.Errorf("unknown operation %q", name))
	}
	return op(ctx, args)
}
