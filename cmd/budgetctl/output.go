// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Exit codes for budgetctl itself. Wrapped tools keep their own codes:
// when docker compose or manage.py fails, budgetctl exits with exactly
// that tool's exit code.
const (
	// CLIExitSuccess means the operation completed.
	CLIExitSuccess = 0

	// CLIExitFailure means the operation itself failed (dependency
	// unavailable, template missing, lock contention).
	CLIExitFailure = 1

	// CLIExitError means budgetctl could not run the operation at all
	// (tool missing, bad configuration).
	CLIExitError = 2
)

// OutputConfig controls result rendering.
type OutputConfig struct {
	JSON    bool // Emit the structured result as JSON on stdout
	Compact bool // No indentation
	Quiet   bool // Exit code only
}

// CommandResult is the JSON envelope for machine consumers.
type CommandResult struct {
	APIVersion string    `json:"api_version"`
	Command    string    `json:"command"`
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMs int64     `json:"duration_ms"`
	Success    bool      `json:"success"`
	ExitCode   int       `json:"exit_code"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// OutputOperationResult renders an operation result and returns the
// process exit code to use.
func OutputOperationResult(cfg OutputConfig, r *OperationResult) int {
	if cfg.Quiet {
		return r.ExitCode
	}

	if cfg.JSON {
		envelope := CommandResult{
			APIVersion: "1.0",
			Command:    r.Name,
			ID:         r.ID,
			Timestamp:  r.CompletedAt,
			DurationMs: r.Duration.Milliseconds(),
			Success:    r.Success,
			ExitCode:   r.ExitCode,
			Message:    r.Message,
		}
		if r.Err != nil {
			envelope.Error = r.Err.Error()
		}
		encoder := json.NewEncoder(os.Stdout)
		if !cfg.Compact {
			encoder.SetIndent("", "  ")
		}
		if err := encoder.Encode(envelope); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to encode JSON: %v\n", err)
			return CLIExitError
		}
		return r.ExitCode
	}

	if r.Err != nil {
		fmt.Fprintf(os.Stderr, "%s %s: %v\n", paint("Error:", ansiRed), r.Name, r.Err)
	} else if r.Message != "" {
		fmt.Println(r.Message)
	}
	return r.ExitCode
}

// ANSI color codes for human output.
const (
	ansiRed   = "31"
	ansiGreen = "32"
)

// paint wraps s in an ANSI color when stdout is a terminal.
func paint(s, color string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return s
	}
	return "\x1b[" + color + "m" + s + "\x1b[0m"
}
