// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/budgetis/budgetctl/internal/infra/compose"
)

// composeFailure turns a non-zero compose result into a finished
// operation result. The tool's exit code passes through unchanged; a
// process that never started (code -1) is an infrastructure error.
func composeFailure(r *OperationResult, res *compose.Result) *OperationResult {
	detail := strings.TrimSpace(res.Stderr)
	if detail == "" {
		detail = strings.TrimSpace(res.Stdout)
	}
	code := res.ExitCode
	if code <= 0 {
		code = CLIExitError
	}
	return r.finish(code, "", fmt.Errorf("%s exited %d: %s", res.Command, res.ExitCode, detail))
}

// opBuild builds service images.
func opBuild(ctx context.Context, args []string) *OperationResult {
	r := newResult("build")
	exec, err := stackExecutor()
	if err != nil {
		return r.finish(CLIExitError, "", err)
	}

	res, err := exec.Build(ctx, compose.BuildOptions{
		Services: args,
		NoCache:  flagNoCache,
		Pull:     flagPull,
	})
	if res == nil {
		return r.finish(CLIExitError, "", err)
	}
	if !res.Success {
		return composeFailure(r, res)
	}
	return r.finish(CLIExitSuccess, "Images built", nil)
}

// opStart bootstraps the env file, then brings the stack up detached.
func opStart(ctx context.Context, args []string) *OperationResult {
	r := newResult("start")

	if init := opInit(ctx, nil); !init.Success {
		return r.finish(init.ExitCode, "", init.Err)
	}

	exec, err := stackExecutor()
	if err != nil {
		return r.finish(CLIExitError, "", err)
	}

	res, err := exec.Up(ctx, compose.UpOptions{
		Build:    flagBuildOnStart,
		Services: args,
	})
	if res == nil {
		return r.finish(CLIExitError, "", err)
	}
	if !res.Success {
		return composeFailure(r, res)
	}
	return r.finish(CLIExitSuccess, "Stack started", nil)
}

// opStop stops and removes containers. Volumes survive.
func opStop(ctx context.Context, args []string) *OperationResult {
	r := newResult("stop")
	exec, err := stackExecutor()
	if err != nil {
		return r.finish(CLIExitError, "", err)
	}

	res, err := exec.Down(ctx, compose.DownOptions{})
	if res == nil {
		return r.finish(CLIExitError, "", err)
	}
	if !res.Success {
		return composeFailure(r, res)
	}
	return r.finish(CLIExitSuccess, "Stack stopped", nil)
}

// opRestart halts containers in place, then starts the stack again.
// Containers are stopped rather than removed so the restart is fast.
func opRestart(ctx context.Context, args []string) *OperationResult {
	r := newResult("restart")
	exec, err := stackExecutor()
	if err != nil {
		return r.finish(CLIExitError, "", err)
	}

	res, err := exec.Stop(ctx, args...)
	if res == nil {
		return r.finish(CLIExitError, "", err)
	}
	if !res.Success {
		return composeFailure(r, res)
	}

	if start := opStart(ctx, args); !start.Success {
		return r.finish(start.ExitCode, "", start.Err)
	}
	return r.finish(CLIExitSuccess, "Stack restarted", nil)
}

// opReset destroys the stack including volumes, then rebuilds and
// starts fresh. Database state is lost; the operation confirms first
// unless --force is given.
func opReset(ctx context.Context, args []string) *OperationResult {
	r := newResult("reset")

	if !flagForce && !confirmReset(os.Stdin) {
		return r.finish(CLIExitFailure, "", fmt.Errorf("reset aborted"))
	}

	exec, err := stackExecutor()
	if err != nil {
		return r.finish(CLIExitError, "", err)
	}

	res, err := exec.Down(ctx, compose.DownOptions{RemoveVolumes: true})
	if res == nil {
		return r.finish(CLIExitError, "", err)
	}
	if !res.Success {
		return composeFailure(r, res)
	}

	res, err = exec.Up(ctx, compose.UpOptions{Build: true})
	if res == nil {
		return r.finish(CLIExitError, "", err)
	}
	if !res.Success {
		return composeFailure(r, res)
	}
	return r.finish(CLIExitSuccess, "Stack reset: volumes destroyed, images rebuilt, stack started", nil)
}

// confirmReset asks for explicit confirmation before destroying data.
func confirmReset(in *os.File) bool {
	fmt.Fprint(os.Stderr, "This will DESTROY all containers and volumes, including the database.\nType 'yes' to continue: ")
	reader := bufio.NewReader(in)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}

// opLogs streams service logs to stdout.
func opLogs(ctx context.Context, args []string) *OperationResult {
	r := newResult("logs")
	exec, err := stackExecutor()
	if err != nil {
		return r.finish(CLIExitError, "", err)
	}

	res, err := exec.Logs(ctx, compose.LogsOptions{
		Services: args,
		Follow:   flagFollow,
		Tail:     flagTail,
	}, os.Stdout)
	if res == nil {
		return r.finish(CLIExitError, "", err)
	}
	if !res.Success {
		return composeFailure(r, res)
	}
	return r.finish(CLIExitSuccess, "", nil)
}

// opPs reports per-service container state.
func opPs(ctx context.Context, args []string) *OperationResult {
	r := newResult("ps")
	exec, err := stackExecutor()
	if err != nil {
		return r.finish(CLIExitError, "", err)
	}

	status, res, err := exec.Status(ctx)
	if err != nil {
		if res != nil && !res.Success {
			return composeFailure(r, res)
		}
		return r.finish(CLIExitError, "", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%-20s %-12s %-10s %s\n", "SERVICE", "STATE", "HEALTH", "STATUS")
	for _, svc := range status.Services {
		health := svc.Health
		if health == "" {
			health = "-"
		}
		fmt.Fprintf(&sb, "%-20s %-12s %-10s %s\n", svc.Service, svc.State, health, svc.Status)
	}
	fmt.Fprintf(&sb, "%d running, %d stopped", status.Running, status.Stopped)
	return r.finish(CLIExitSuccess, sb.String(), nil)
}
