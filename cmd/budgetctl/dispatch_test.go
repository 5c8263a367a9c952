// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetis/budgetctl/cmd/budgetctl/config"
	"github.com/budgetis/budgetctl/internal/infra/compose"
)

// useConfig installs a default config for the test.
func useConfig(t *testing.T) {
	t.Helper()
	old := config.Global
	config.Global = config.Default()
	t.Cleanup(func() { config.Global = old })
}

// useStackExec swaps the compose executor for a mock.
func useStackExec(t *testing.T, mock compose.Executor) *compose.MockExecutor {
	t.Helper()
	old := stackExec
	stackExec = mock
	t.Cleanup(func() { stackExec = old })
	return mock.(*compose.MockExecutor)
}

// useBootstrap swaps the bootstrap manager for a mock.
func useBootstrap(t *testing.T, mock BootstrapManager) {
	t.Helper()
	old := bootstrapMgr
	bootstrapMgr = mock
	t.Cleanup(func() { bootstrapMgr = old })
}

// useManageRunner swaps the manage runner for a mock.
func useManageRunner(t *testing.T, mock ManageRunner) {
	t.Helper()
	old := manageRunner
	manageRunner = mock
	t.Cleanup(func() { manageRunner = old })
}

func TestOperationsTableComplete(t *testing.T) {
	want := []string{
		"init", "build", "start", "stop", "restart", "reset",
		"logs", "ps",
		"migrate", "makemigrations", "shell", "createsuperuser",
		"collectstatic", "manage",
		"entrypoint",
	}
	for _, name := range want {
		assert.Contains(t, operations, name)
	}
	assert.Len(t, operations, len(want))
}

func TestDispatch_UnknownOperation(t *testing.T) {
	result := Dispatch(context.Background(), "frobnicate", nil)
	assert.False(t, result.Success)
	assert.Equal(t, CLIExitError, result.ExitCode)
	assert.Error(t, result.Err)
}

func TestOpBuild_Success(t *testing.T) {
	useConfig(t)
	mock := useStackExec(t, &compose.MockExecutor{})

	result := Dispatch(context.Background(), "build", []string{"django"})
	assert.True(t, result.Success)
	assert.Equal(t, CLIExitSuccess, result.ExitCode)
	require.Len(t, mock.BuildCalls, 1)
	assert.Equal(t, []string{"django"}, mock.BuildCalls[0].Services)
}

func TestOpBuild_ExitCodePassthrough(t *testing.T) {
	useConfig(t)
	useStackExec(t, &compose.MockExecutor{
		BuildFunc: func(ctx context.Context, opts compose.BuildOptions) (*compose.Result, error) {
			return &compose.Result{
				Success:  false,
				ExitCode: 17,
				Stderr:   "no space left on device",
				Command:  "docker compose build",
			}, nil
		},
	})

	result := Dispatch(context.Background(), "build", nil)
	assert.False(t, result.Success)
	assert.Equal(t, 17, result.ExitCode, "wrapped tool exit codes pass through unchanged")
	assert.Contains(t, result.Err.Error(), "no space left on device")
}

func TestOpStart_BootstrapsThenUp(t *testing.T) {
	useConfig(t)
	bootstrap := &MockBootstrapManager{}
	useBootstrap(t, bootstrap)
	mock := useStackExec(t, &compose.MockExecutor{})

	result := Dispatch(context.Background(), "start", nil)
	assert.True(t, result.Success)
	require.Len(t, bootstrap.Calls, 1)
	assert.Equal(t, ".env", bootstrap.Calls[0].EnvPath)
	assert.Equal(t, ".env.example", bootstrap.Calls[0].TemplatePath)
	require.Len(t, mock.UpCalls, 1)
}

func TestOpStart_BootstrapFailureStopsStart(t *testing.T) {
	useConfig(t)
	useBootstrap(t, &MockBootstrapManager{
		EnsureEnvFileFunc: func(ctx context.Context, envPath, templatePath string) (*BootstrapResult, error) {
			return nil, ErrTemplateMissing
		},
	})
	mock := useStackExec(t, &compose.MockExecutor{})

	result := Dispatch(context.Background(), "start", nil)
	assert.False(t, result.Success)
	assert.Equal(t, CLIExitFailure, result.ExitCode)
	assert.Empty(t, mock.UpCalls, "stack must not start when bootstrap fails")
}

func TestOpReset_RemovesVolumesAndRebuilds(t *testing.T) {
	useConfig(t)
	mock := useStackExec(t, &compose.MockExecutor{})
	flagForce = true
	t.Cleanup(func() { flagForce = false })

	result := Dispatch(context.Background(), "reset", nil)
	assert.True(t, result.Success)
	require.Len(t, mock.DownCalls, 1)
	assert.True(t, mock.DownCalls[0].RemoveVolumes)
	require.Len(t, mock.UpCalls, 1)
	assert.True(t, mock.UpCalls[0].Build)
}

func TestOpStop_KeepsVolumes(t *testing.T) {
	useConfig(t)
	mock := useStackExec(t, &compose.MockExecutor{})

	result := Dispatch(context.Background(), "stop", nil)
	assert.True(t, result.Success)
	require.Len(t, mock.DownCalls, 1)
	assert.False(t, mock.DownCalls[0].RemoveVolumes)
}

func TestOpMigrate_ArgsAndPassthrough(t *testing.T) {
	useConfig(t)
	mock := &MockManageRunner{
		RunManageFunc: func(ctx context.Context, manageArgs []string) (int, error) {
			return 3, nil
		},
	}
	useManageRunner(t, mock)

	result := Dispatch(context.Background(), "migrate", nil)
	assert.False(t, result.Success)
	assert.Equal(t, 3, result.ExitCode, "manage.py exit codes pass through unchanged")
	require.Len(t, mock.Calls, 1)
	assert.Equal(t, []string{"migrate", "--noinput"}, mock.Calls[0])
}

func TestOpCollectStatic_NonInteractiveByDefault(t *testing.T) {
	useConfig(t)
	mock := &MockManageRunner{}
	useManageRunner(t, mock)

	result := Dispatch(context.Background(), "collectstatic", nil)
	assert.True(t, result.Success)
	require.Len(t, mock.Calls, 1)
	assert.Equal(t, []string{"collectstatic", "--noinput"}, mock.Calls[0])
}

func TestOpShell_ExecsIntoRunningContainer(t *testing.T) {
	useConfig(t)
	mock := &MockManageRunner{}
	useManageRunner(t, mock)

	result := Dispatch(context.Background(), "shell", nil)
	assert.True(t, result.Success)
	require.Len(t, mock.ExecCalls, 1)
	assert.Equal(t, []string{"shell"}, mock.ExecCalls[0])
	assert.Empty(t, mock.Calls, "shell must not spawn a one-off container")
}

func TestOpRestart_StopsThenStarts(t *testing.T) {
	useConfig(t)
	useBootstrap(t, &MockBootstrapManager{})
	mock := useStackExec(t, &compose.MockExecutor{})

	result := Dispatch(context.Background(), "restart", nil)
	assert.True(t, result.Success)
	require.Len(t, mock.StopCalls, 1)
	require.Len(t, mock.UpCalls, 1)
	assert.Empty(t, mock.DownCalls, "restart must not remove containers")
}

func TestOpManage_RequiresArgs(t *testing.T) {
	useConfig(t)
	mock := &MockManageRunner{}
	useManageRunner(t, mock)

	result := Dispatch(context.Background(), "manage", nil)
	assert.False(t, result.Success)
	assert.Equal(t, CLIExitError, result.ExitCode)
	assert.Empty(t, mock.Calls)
}

func TestOpManage_Passthrough(t *testing.T) {
	useConfig(t)
	mock := &MockManageRunner{}
	useManageRunner(t, mock)

	result := Dispatch(context.Background(), "manage", []string{"loaddata", "fixtures.json"})
	assert.True(t, result.Success)
	require.Len(t, mock.Calls, 1)
	assert.Equal(t, []string{"loaddata", "fixtures.json"}, mock.Calls[0])
}

func TestOpPs_FormatsStatus(t *testing.T) {
	useConfig(t)
	useStackExec(t, &compose.MockExecutor{
		StatusFunc: func(ctx context.Context) (*compose.Status, *compose.Result, error) {
			return &compose.Status{
				Services: []compose.ServiceStatus{
					{Service: "django", State: "running", Status: "Up 2 hours", Health: "healthy"},
					{Service: "postgres", State: "exited", Status: "Exited (0)"},
				},
				Running: 1,
				Stopped: 1,
			}, &compose.Result{Success: true}, nil
		},
	})

	result := Dispatch(context.Background(), "ps", nil)
	assert.True(t, result.Success)
	assert.Contains(t, result.Message, "django")
	assert.Contains(t, result.Message, "1 running, 1 stopped")
}

func TestOpPs_InfrastructureError(t *testing.T) {
	useConfig(t)
	useStackExec(t, &compose.MockExecutor{
		StatusFunc: func(ctx context.Context) (*compose.Status, *compose.Result, error) {
			return nil, nil, errors.New("docker daemon unreachable")
		},
	})

	result := Dispatch(context.Background(), "ps", nil)
	assert.False(t, result.Success)
	assert.Equal(t, CLIExitError, result.ExitCode)
}

// TestOpPs_ExitCodePassthrough verifies ps surfaces the wrapped tool's
// exit code unchanged when the underlying invocation fails.
func TestOpPs_ExitCodePassthrough(t *testing.T) {
	useConfig(t)
	useStackExec(t, &compose.MockExecutor{
		StatusFunc: func(ctx context.Context) (*compose.Status, *compose.Result, error) {
			return nil, &compose.Result{
				Success:  false,
				ExitCode: 17,
				Stderr:   "no such project",
				Command:  "docker compose ps",
			}, errors.New("compose ps failed: exit status 17")
		},
	})

	result := Dispatch(context.Background(), "ps", nil)
	assert.False(t, result.Success)
	assert.Equal(t, 17, result.ExitCode)
	assert.Contains(t, result.Err.Error(), "no such project")
}

// TestOpLogs_ExitCodePassthrough verifies logs surfaces the wrapped
// tool's exit code unchanged.
func TestOpLogs_ExitCodePassthrough(t *testing.T) {
	useConfig(t)
	useStackExec(t, &compose.MockExecutor{
		LogsFunc: func(ctx context.Context, opts compose.LogsOptions, w io.Writer) (*compose.Result, error) {
			return &compose.Result{
				Success:  false,
				ExitCode: 17,
				Command:  "docker compose logs",
			}, errors.New("compose logs failed: exit status 17")
		},
	})

	result := Dispatch(context.Background(), "logs", nil)
	assert.False(t, result.Success)
	assert.Equal(t, 17, result.ExitCode)
}

// TestOpLogs_Success verifies a clean log invocation exits zero.
func TestOpLogs_Success(t *testing.T) {
	useConfig(t)
	mock := &compose.MockExecutor{}
	useStackExec(t, mock)

	result := Dispatch(context.Background(), "logs", []string{"django"})
	assert.True(t, result.Success)
	assert.Equal(t, CLIExitSuccess, result.ExitCode)
	require.Len(t, mock.LogsCalls, 1)
	assert.Equal(t, []string{"django"}, mock.LogsCalls[0].Services)
}

func TestOperationResult_Finish(t *testing.T) {
	r := newResult("test").finish(CLIExitSuccess, "done", nil)
	assert.True(t, r.Success)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "test", r.Name)
	assert.False(t, r.CompletedAt.Before(r.StartedAt))

	r = newResult("test").finish(7, "", errors.New("boom"))
	assert.False(t, r.Success)
	assert.Equal(t, 7, r.ExitCode)
}

func TestOutputOperationResult_Quiet(t *testing.T) {
	r := newResult("test").finish(5, "", errors.New("boom"))
	code := OutputOperationResult(OutputConfig{Quiet: true}, r)
	assert.Equal(t, 5, code)
}
