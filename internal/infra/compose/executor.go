// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

/*
Package compose wraps docker compose for the Budgetis container topology.

The Executor interface covers every compose interaction budgetctl
performs: building images, bringing the stack up and down, streaming
logs, inspecting container status, and running one-off management
commands inside the application service.

# Compose File Layering

Commands always operate on the project's base compose file, with an
optional override file layered on top when it exists on disk. The
layering order is fixed: base first, override second, so local
overrides win.

# Exit Codes

Results carry the wrapped tool's exit code unchanged. Callers decide
what a non-zero code means; this package never retries.
*/
package compose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/budgetis/budgetctl/internal/infra/process"
)

// =============================================================================
// ERROR VARIABLES
// =============================================================================

var (
	// ErrInvalidConfig is returned when the executor config is unusable.
	ErrInvalidConfig = errors.New("invalid compose configuration")

	// ErrInvalidEnvVar is returned when an injected env var key is malformed.
	ErrInvalidEnvVar = errors.New("invalid environment variable name")

	// ErrComposeFileMissing is returned when the base compose file is absent.
	ErrComposeFileMissing = errors.New("compose file not found")
)

// envVarKeyRegex matches valid POSIX environment variable names.
var envVarKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// =============================================================================
// INTERFACE
// =============================================================================

// Executor runs docker compose operations for the project.
//
// # Description
//
// Abstracts the compose CLI so command handlers stay testable. The
// production implementation shells out through process.Manager; tests
// use MockExecutor.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Executor interface {
	// Build builds service images. Empty Services means all services.
	Build(ctx context.Context, opts BuildOptions) (*Result, error)

	// Up starts the topology detached, optionally rebuilding images.
	Up(ctx context.Context, opts UpOptions) (*Result, error)

	// Down stops and removes containers; RemoveVolumes also discards
	// named volumes, which destroys database state.
	Down(ctx context.Context, opts DownOptions) (*Result, error)

	// Stop halts containers without removing them. Empty services
	// means the whole topology.
	Stop(ctx context.Context, services ...string) (*Result, error)

	// Logs streams service logs to w. With Follow set it blocks until
	// the context is cancelled. The Result carries the wrapped tool's
	// exit code unchanged.
	Logs(ctx context.Context, opts LogsOptions, w io.Writer) (*Result, error)

	// Status reports per-service container state. On failure the
	// Result, when non-nil, carries the underlying ps invocation's
	// exit code and output.
	Status(ctx context.Context) (*Status, *Result, error)

	// RunOneOff runs a command in a fresh, auto-removed container of
	// the given service with inherited stdio. Returns the command's
	// exit code.
	RunOneOff(ctx context.Context, opts RunOptions) (int, error)

	// ExecInteractive runs a command inside the service's running
	// container with inherited stdio. Returns the command's exit code.
	ExecInteractive(ctx context.Context, opts RunOptions) (int, error)

	// GetComposeFiles returns the compose files in layering order.
	GetComposeFiles() []string
}

// =============================================================================
// CONFIG & OPTION TYPES
// =============================================================================

// Config configures a DefaultExecutor.
type Config struct {
	// ProjectDir is the directory holding the compose files. Required.
	ProjectDir string

	// ProjectName is passed as the compose project name when set.
	ProjectName string

	// ComposeFile is the base manifest, relative to ProjectDir.
	// Default: docker-compose.yml.
	ComposeFile string

	// OverrideFile is layered on top of ComposeFile when it exists.
	// Default: docker-compose.override.yml.
	OverrideFile string

	// EnvFile is passed via --env-file when it exists on disk.
	EnvFile string

	// Runtime is the container CLI. Default: docker.
	Runtime string

	// DefaultTimeout bounds non-streaming compose operations.
	// Default: 5 minutes.
	DefaultTimeout time.Duration
}

// BuildOptions configures Build.
type BuildOptions struct {
	// Services limits the build; empty means all.
	Services []string

	// NoCache disables the image build cache.
	NoCache bool

	// Pull always attempts to pull newer base images.
	Pull bool
}

// UpOptions configures Up.
type UpOptions struct {
	// Build rebuilds images before starting.
	Build bool

	// Services limits startup; empty means the whole topology.
	Services []string

	// Env holds extra variables injected into the compose invocation.
	Env map[string]string

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// DownOptions configures Down.
type DownOptions struct {
	// RemoveVolumes discards named volumes. Destroys database state.
	RemoveVolumes bool

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// LogsOptions configures Logs.
type LogsOptions struct {
	// Services limits output; empty means all.
	Services []string

	// Follow streams until the context is cancelled.
	Follow bool

	// Tail limits history to the last N lines. Zero means all.
	Tail int
}

// RunOptions configures RunOneOff.
type RunOptions struct {
	// Service is the compose service to run in. Required.
	Service string

	// Command is the argv executed inside the container. Required.
	Command []string

	// Env holds extra variables passed to the container via -e flags.
	Env map[string]string
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// Result captures the outcome of a compose invocation.
type Result struct {
	// Success is true when the command exited zero.
	Success bool

	// ExitCode is the wrapped tool's exit code, unchanged.
	ExitCode int

	// Stdout and Stderr hold the captured output.
	Stdout string
	Stderr string

	// Duration is how long the invocation took.
	Duration time.Duration

	// Command is the full command line, for diagnostics.
	Command string
}

// Status summarizes container state for the project.
type Status struct {
	// Services holds per-container status, sorted by service name.
	Services []ServiceStatus

	// Running and Stopped count containers by state.
	Running int
	Stopped int
}

// ServiceStatus describes one container.
type ServiceStatus struct {
	Name    string `json:"Name"`
	Service string `json:"Service"`
	State   string `json:"State"`
	Status  string `json:"Status"`
	Health  string `json:"Health"`
	Image   string `json:"Image"`
}

// =============================================================================
// DEFAULT EXECUTOR
// =============================================================================

// DefaultExecutor is the production Executor backed by the docker CLI.
type DefaultExecutor struct {
	cfg  Config
	proc process.Manager
}

// NewDefaultExecutor validates the config, applies defaults, and
// returns a ready executor.
//
// # Inputs
//
//   - cfg: Executor configuration. ProjectDir is required.
//   - proc: Process manager used for all CLI invocations.
//
// # Outputs
//
//   - *DefaultExecutor: Configured executor.
//   - error: ErrInvalidConfig when required fields are missing.
func NewDefaultExecutor(cfg Config, proc process.Manager) (*DefaultExecutor, error) {
	if proc == nil {
		return nil, fmt.Errorf("%w: process manager is required", ErrInvalidConfig)
	}
	if cfg.ProjectDir == "" {
		return nil, fmt.Errorf("%w: project directory is required", ErrInvalidConfig)
	}
	applyConfigDefaults(&cfg)
	return &DefaultExecutor{cfg: cfg, proc: proc}, nil
}

// applyConfigDefaults fills zero-valued config fields.
func applyConfigDefaults(cfg *Config) {
	if cfg.ComposeFile == "" {
		cfg.ComposeFile = "docker-compose.yml"
	}
	if cfg.OverrideFile == "" {
		cfg.OverrideFile = "docker-compose.override.yml"
	}
	if cfg.Runtime == "" {
		cfg.Runtime = "docker"
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 5 * time.Minute
	}
}

// Build builds service images.
func (e *DefaultExecutor) Build(ctx context.Context, opts BuildOptions) (*Result, error) {
	args := []string{"build"}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	if opts.Pull {
		args = append(args, "--pull")
	}
	args = append(args, opts.Services...)
	return e.runCompose(ctx, args, nil, e.cfg.DefaultTimeout)
}

// Up starts the topology detached.
func (e *DefaultExecutor) Up(ctx context.Context, opts UpOptions) (*Result, error) {
	args := []string{"up", "-d"}
	if opts.Build {
		args = append(args, "--build")
	}
	args = append(args, opts.Services...)
	return e.runCompose(ctx, args, opts.Env, e.resolveTimeout(opts.Timeout))
}

// Down stops and removes containers.
func (e *DefaultExecutor) Down(ctx context.Context, opts DownOptions) (*Result, error) {
	args := []string{"down"}
	if opts.RemoveVolumes {
		args = append(args, "-v")
	}
	return e.runCompose(ctx, args, nil, e.resolveTimeout(opts.Timeout))
}

// Stop halts containers without removing them.
func (e *DefaultExecutor) Stop(ctx context.Context, services ...string) (*Result, error) {
	args := append([]string{"stop"}, services...)
	return e.runCompose(ctx, args, nil, e.cfg.DefaultTimeout)
}

// Logs streams logs to w until the process exits or ctx is cancelled.
func (e *DefaultExecutor) Logs(ctx context.Context, opts LogsOptions, w io.Writer) (*Result, error) {
	args := []string{"logs"}
	if opts.Follow {
		args = append(args, "-f")
	}
	if opts.Tail > 0 {
		args = append(args, "--tail", strconv.Itoa(opts.Tail))
	}
	args = append(args, opts.Services...)

	full, err := e.buildArgs(args)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	exitCode, runErr := e.proc.RunStreaming(ctx, e.cfg.ProjectDir, w, e.cfg.Runtime, full...)
	result := &Result{
		Success:  runErr == nil,
		ExitCode: exitCode,
		Duration: time.Since(start),
		Command:  e.cfg.Runtime + " " + strings.Join(full, " "),
	}
	if runErr != nil {
		return result, fmt.Errorf("compose logs failed: %w", runErr)
	}
	return result, nil
}

// Status reports per-service container state via ps --format json.
func (e *DefaultExecutor) Status(ctx context.Context) (*Status, *Result, error) {
	result, err := e.runCompose(ctx, []string{"ps", "-a", "--format", "json"}, nil, e.cfg.DefaultTimeout)
	if err != nil {
		return nil, result, err
	}
	status, err := parseStatus(result.Stdout)
	if err != nil {
		return nil, result, err
	}
	return status, result, nil
}

// RunOneOff runs a command in a fresh container with inherited stdio.
func (e *DefaultExecutor) RunOneOff(ctx context.Context, opts RunOptions) (int, error) {
	if opts.Service == "" {
		return -1, fmt.Errorf("%w: service is required for one-off run", ErrInvalidConfig)
	}
	if len(opts.Command) == 0 {
		return -1, fmt.Errorf("%w: command is required for one-off run", ErrInvalidConfig)
	}
	if err := validateEnvVars(opts.Env); err != nil {
		return -1, err
	}

	args := []string{"run", "--rm"}
	for _, k := range sortedKeys(opts.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, opts.Env[k]))
	}
	args = append(args, opts.Service)
	args = append(args, opts.Command...)

	full, err := e.buildArgs(args)
	if err != nil {
		return -1, err
	}
	return e.proc.RunInteractive(ctx, e.cfg.ProjectDir, nil, e.cfg.Runtime, full...)
}

// ExecInteractive runs a command in the service's running container
// with inherited stdio.
func (e *DefaultExecutor) ExecInteractive(ctx context.Context, opts RunOptions) (int, error) {
	if opts.Service == "" {
		return -1, fmt.Errorf("%w: service is required for exec", ErrInvalidConfig)
	}
	if len(opts.Command) == 0 {
		return -1, fmt.Errorf("%w: command is required for exec", ErrInvalidConfig)
	}
	if err := validateEnvVars(opts.Env); err != nil {
		return -1, err
	}

	args := []string{"exec"}
	for _, k := range sortedKeys(opts.Env) {
		args = append(args, "-e", fmt.Sprintf("%s=%s", k, opts.Env[k]))
	}
	args = append(args, opts.Service)
	args = append(args, opts.Command...)

	full, err := e.buildArgs(args)
	if err != nil {
		return -1, err
	}
	return e.proc.RunInteractive(ctx, e.cfg.ProjectDir, nil, e.cfg.Runtime, full...)
}

// GetComposeFiles returns the compose files in layering order: base
// first, override second when it exists on disk.
func (e *DefaultExecutor) GetComposeFiles() []string {
	base := filepath.Join(e.cfg.ProjectDir, e.cfg.ComposeFile)
	files := []string{base}

	override := filepath.Join(e.cfg.ProjectDir, e.cfg.OverrideFile)
	if fileExists(override) {
		files = append(files, override)
	}
	return files
}

// =============================================================================
// PRIVATE HELPERS
// =============================================================================

// buildArgs prepends the compose subcommand, file flags, project name,
// and env-file flag to the operation arguments.
func (e *DefaultExecutor) buildArgs(opArgs []string) ([]string, error) {
	base := filepath.Join(e.cfg.ProjectDir, e.cfg.ComposeFile)
	if !fileExists(base) {
		return nil, fmt.Errorf("%w: %s", ErrComposeFileMissing, base)
	}

	args := []string{"compose"}
	for _, f := range e.GetComposeFiles() {
		args = append(args, "-f", f)
	}
	if e.cfg.ProjectName != "" {
		args = append(args, "-p", e.cfg.ProjectName)
	}
	if e.cfg.EnvFile != "" {
		envPath := filepath.Join(e.cfg.ProjectDir, e.cfg.EnvFile)
		if fileExists(envPath) {
			args = append(args, "--env-file", envPath)
		}
	}
	return append(args, opArgs...), nil
}

// runCompose executes a compose operation, capturing output.
func (e *DefaultExecutor) runCompose(ctx context.Context, opArgs []string, env map[string]string, timeout time.Duration) (*Result, error) {
	if err := validateEnvVars(env); err != nil {
		return nil, err
	}
	full, err := e.buildArgs(opArgs)
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var extraEnv []string
	for _, k := range sortedKeys(env) {
		extraEnv = append(extraEnv, fmt.Sprintf("%s=%s", k, env[k]))
	}

	start := time.Now()
	stdout, stderr, exitCode, runErr := e.proc.RunInDir(execCtx, e.cfg.ProjectDir, extraEnv, e.cfg.Runtime, full...)
	result := &Result{
		Success:  runErr == nil,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
		Command:  e.cfg.Runtime + " " + strings.Join(full, " "),
	}
	if runErr != nil {
		return result, fmt.Errorf("compose %s failed: %w", opArgs[0], runErr)
	}
	return result, nil
}

// resolveTimeout applies the default when the requested is unset.
func (e *DefaultExecutor) resolveTimeout(requested time.Duration) time.Duration {
	if requested <= 0 {
		return e.cfg.DefaultTimeout
	}
	return requested
}

// parseStatus decodes the line-delimited JSON of ps --format json.
func parseStatus(output string) (*Status, error) {
	status := &Status{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var svc ServiceStatus
		if err := json.Unmarshal([]byte(line), &svc); err != nil {
			return nil, fmt.Errorf("parse container status: %w", err)
		}
		status.Services = append(status.Services, svc)
		if strings.EqualFold(svc.State, "running") {
			status.Running++
		} else {
			status.Stopped++
		}
	}
	sort.Slice(status.Services, func(i, j int) bool {
		return status.Services[i].Service < status.Services[j].Service
	})
	return status, nil
}

// validateEnvVars rejects malformed env var keys before injection.
func validateEnvVars(env map[string]string) error {
	for k := range env {
		if !envVarKeyRegex.MatchString(k) {
			return fmt.Errorf("%w: %q", ErrInvalidEnvVar, k)
		}
	}
	return nil
}

// sortedKeys returns map keys in stable order for reproducible argv.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// =============================================================================
// MOCK EXECUTOR
// =============================================================================

// MockExecutor is a configurable test double for Executor.
//
// Set function fields to control behavior; unset fields succeed with
// zero-valued results. All invocations are recorded.
type MockExecutor struct {
	BuildFunc           func(ctx context.Context, opts BuildOptions) (*Result, error)
	UpFunc              func(ctx context.Context, opts UpOptions) (*Result, error)
	DownFunc            func(ctx context.Context, opts DownOptions) (*Result, error)
	StopFunc            func(ctx context.Context, services ...string) (*Result, error)
	LogsFunc            func(ctx context.Context, opts LogsOptions, w io.Writer) (*Result, error)
	StatusFunc          func(ctx context.Context) (*Status, *Result, error)
	RunOneOffFunc       func(ctx context.Context, opts RunOptions) (int, error)
	ExecInteractiveFunc func(ctx context.Context, opts RunOptions) (int, error)
	ComposeFiles        []string

	BuildCalls           []BuildOptions
	UpCalls              []UpOptions
	DownCalls            []DownOptions
	StopCalls            [][]string
	LogsCalls            []LogsOptions
	StatusCalls          int
	RunOneOffCalls       []RunOptions
	ExecInteractiveCalls []RunOptions
}

// Build records the call and delegates to BuildFunc.
func (m *MockExecutor) Build(ctx context.Context, opts BuildOptions) (*Result, error) {
	m.BuildCalls = append(m.BuildCalls, opts)
	if m.BuildFunc != nil {
		return m.BuildFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Up records the call and delegates to UpFunc.
func (m *MockExecutor) Up(ctx context.Context, opts UpOptions) (*Result, error) {
	m.UpCalls = append(m.UpCalls, opts)
	if m.UpFunc != nil {
		return m.UpFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Down records the call and delegates to DownFunc.
func (m *MockExecutor) Down(ctx context.Context, opts DownOptions) (*Result, error) {
	m.DownCalls = append(m.DownCalls, opts)
	if m.DownFunc != nil {
		return m.DownFunc(ctx, opts)
	}
	return &Result{Success: true}, nil
}

// Stop records the call and delegates to StopFunc.
func (m *MockExecutor) Stop(ctx context.Context, services ...string) (*Result, error) {
	m.StopCalls = append(m.StopCalls, services)
	if m.StopFunc != nil {
		return m.StopFunc(ctx, services...)
	}
	return &Result{Success: true}, nil
}

// Logs records the call and delegates to LogsFunc.
func (m *MockExecutor) Logs(ctx context.Context, opts LogsOptions, w io.Writer) (*Result, error) {
	m.LogsCalls = append(m.LogsCalls, opts)
	if m.LogsFunc != nil {
		return m.LogsFunc(ctx, opts, w)
	}
	return &Result{Success: true}, nil
}

// Status records the call and delegates to StatusFunc.
func (m *MockExecutor) Status(ctx context.Context) (*Status, *Result, error) {
	m.StatusCalls++
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return &Status{}, &Result{Success: true}, nil
}

// RunOneOff records the call and delegates to RunOneOffFunc.
func (m *MockExecutor) RunOneOff(ctx context.Context, opts RunOptions) (int, error) {
	m.RunOneOffCalls = append(m.RunOneOffCalls, opts)
	if m.RunOneOffFunc != nil {
		return m.RunOneOffFunc(ctx, opts)
	}
	return 0, nil
}

// ExecInteractive records the call and delegates to ExecInteractiveFunc.
func (m *MockExecutor) ExecInteractive(ctx context.Context, opts RunOptions) (int, error) {
	m.ExecInteractiveCalls = append(m.ExecInteractiveCalls, opts)
	if m.ExecInteractiveFunc != nil {
		return m.ExecInteractiveFunc(ctx, opts)
	}
	return 0, nil
}

// GetComposeFiles returns the configured file list.
func (m *MockExecutor) GetComposeFiles() []string {
	return m.ComposeFiles
}

// Compile-time interface compliance check.
var (
	_ Executor = (*DefaultExecutor)(nil)
	_ Executor = (*MockExecutor)(nil)
)
