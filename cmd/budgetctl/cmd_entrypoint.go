// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/budgetis/budgetctl/cmd/budgetctl/config"
	"github.com/budgetis/budgetctl/internal/infra/process"
)

// opEntrypoint is the container entrypoint: wait for backing services,
// migrate the schema exactly once, then hand the process over to the
// main command. On success control never returns here; the main
// command becomes PID 1.
func opEntrypoint(ctx context.Context, args []string) *OperationResult {
	r := newResult("entrypoint")
	if len(args) == 0 {
		return r.finish(CLIExitError, "", fmt.Errorf("entrypoint requires a command to exec"))
	}
	cfg := config.Global
	if cfg == nil {
		return r.finish(CLIExitError, "", fmt.Errorf("configuration not loaded"))
	}

	// SIGINT/SIGTERM cancel the wait so shutdown during startup is
	// prompt instead of riding out the backoff.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := dependenciesFromConfig(cfg)
	opts := waitOptionsFromConfig(cfg)
	logger.Info("Waiting for dependencies",
		"count", len(deps),
		"timeout", opts.Timeout.String())

	wait, err := readinessChk.WaitForDependencies(sigCtx, deps, opts)
	if err != nil {
		return r.finish(CLIExitFailure, "", err)
	}
	logger.Info("Dependencies ready",
		"attempts", wait.Attempts,
		"duration", wait.Duration.String())

	if code, err := runMigration(sigCtx, procMgr, cfg); err != nil {
		if code > 0 {
			return r.finish(code, "", err)
		}
		return r.finish(CLIExitError, "", err)
	}
	logger.Info("Migrations applied")

	// Restore default signal handling; the main command owns signals
	// from here.
	stop()

	code, err := execProcess(ctx, args)
	if err != nil {
		return r.finish(CLIExitError, "", err)
	}
	return r.finish(code, "", nil)
}

// runMigration applies schema migrations via the configured management
// command, directly in this container. Returns the command's exit code
// and an error when it did not exit zero.
func runMigration(ctx context.Context, proc process.Manager, cfg *config.ProjectConfig) (int, error) {
	argv := append(append([]string{}, cfg.Manage.Command...), cfg.Manage.MigrateArgs...)
	if len(argv) == 0 {
		return -1, fmt.Errorf("no migration command configured")
	}

	mctx, cancel := context.WithTimeout(ctx, DefaultMigrateTimeout)
	defer cancel()

	code, err := proc.RunInteractive(mctx, "", nil, argv[0], argv[1:]...)
	if err != nil {
		return code, fmt.Errorf("migration failed: %w", err)
	}
	return 0, nil
}
