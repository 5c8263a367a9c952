// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastWaitOptions keeps wait tests quick.
func fastWaitOptions() WaitOptions {
	return WaitOptions{
		Timeout:         500 * time.Millisecond,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     40 * time.Millisecond,
		Multiplier:      2.0,
		Jitter:          0,
	}
}

// listenTCP opens a listener on an ephemeral port and returns its
// dependency definition.
func listenTCP(t *testing.T) (net.Listener, DependencyDefinition) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return ln, DependencyDefinition{
		Name:     "db",
		Kind:     KindTCP,
		Host:     "127.0.0.1",
		Port:     port,
		Critical: true,
	}
}

// TestNewReadinessChecker_FloorsProbeTimeout verifies unset or tiny
// probe timeouts are raised to the minimum.
func TestNewReadinessChecker_FloorsProbeTimeout(t *testing.T) {
	checker := NewReadinessChecker(0)
	assert.Equal(t, MinProbeTimeout, checker.probeTimeout)
	assert.Equal(t, MinProbeTimeout, checker.httpClient.Timeout)

	checker = NewReadinessChecker(10 * time.Millisecond)
	assert.Equal(t, MinProbeTimeout, checker.probeTimeout)

	checker = NewReadinessChecker(3 * time.Second)
	assert.Equal(t, 3*time.Second, checker.probeTimeout)
}

func TestCheckDependency_TCPReady(t *testing.T) {
	_, dep := listenTCP(t)
	checker := NewReadinessChecker(DefaultProbeTimeout)

	status := checker.CheckDependency(context.Background(), dep)
	assert.Equal(t, StateReady, status.State)
	assert.Empty(t, status.Error)
	assert.Equal(t, "db", status.Name)
}

func TestCheckDependency_TCPRefused(t *testing.T) {
	ln, dep := listenTCP(t)
	ln.Close() // port is now closed

	checker := NewReadinessChecker(DefaultProbeTimeout)
	status := checker.CheckDependency(context.Background(), dep)
	assert.Equal(t, StateUnreachable, status.State)
	assert.NotEmpty(t, status.Error)
}

func TestCheckDependency_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthy" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	checker := NewReadinessChecker(DefaultProbeTimeout)

	status := checker.CheckDependency(context.Background(), DependencyDefinition{
		Name: "web", Kind: KindHTTP, URL: srv.URL + "/healthy",
	})
	assert.Equal(t, StateReady, status.State)

	status = checker.CheckDependency(context.Background(), DependencyDefinition{
		Name: "web", Kind: KindHTTP, URL: srv.URL + "/starting",
	})
	assert.Equal(t, StateUnready, status.State, "non-2xx answers mean unready, not unreachable")
}

func TestCheckDependency_UnknownKind(t *testing.T) {
	checker := NewReadinessChecker(DefaultProbeTimeout)
	status := checker.CheckDependency(context.Background(), DependencyDefinition{
		Name: "weird", Kind: DependencyKind("carrier-pigeon"),
	})
	assert.NotEqual(t, StateReady, status.State)
	assert.NotEmpty(t, status.Error)
}

func TestWaitForDependencies_Ready(t *testing.T) {
	_, dep := listenTCP(t)
	checker := NewReadinessChecker(DefaultProbeTimeout)

	result, err := checker.WaitForDependencies(context.Background(),
		[]DependencyDefinition{dep}, fastWaitOptions())
	require.NoError(t, err)
	assert.True(t, result.Ready)
	assert.Equal(t, 1, result.Attempts)
}

func TestWaitForDependencies_Timeout(t *testing.T) {
	ln, dep := listenTCP(t)
	ln.Close()

	checker := NewReadinessChecker(DefaultProbeTimeout)
	result, err := checker.WaitForDependencies(context.Background(),
		[]DependencyDefinition{dep}, fastWaitOptions())
	require.ErrorIs(t, err, ErrDependencyUnavailable)
	assert.Contains(t, err.Error(), "db", "error must name the failing dependency")
	assert.False(t, result.Ready)
	assert.Greater(t, result.Attempts, 1, "must retry before giving up")
}

func TestWaitForDependencies_NonCriticalIgnored(t *testing.T) {
	ln, dep := listenTCP(t)
	ln.Close()
	dep.Critical = false

	checker := NewReadinessChecker(DefaultProbeTimeout)
	result, err := checker.WaitForDependencies(context.Background(),
		[]DependencyDefinition{dep}, fastWaitOptions())
	require.NoError(t, err)
	assert.True(t, result.Ready)
	// The status is still reported.
	require.Len(t, result.Statuses, 1)
	assert.Equal(t, StateUnreachable, result.Statuses[0].State)
}

func TestWaitForDependencies_Cancellation(t *testing.T) {
	ln, dep := listenTCP(t)
	ln.Close()

	opts := fastWaitOptions()
	opts.Timeout = 30 * time.Second
	opts.InitialInterval = 10 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	checker := NewReadinessChecker(DefaultProbeTimeout)
	start := time.Now()
	_, err := checker.WaitForDependencies(ctx, []DependencyDefinition{dep}, opts)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must interrupt the backoff sleep")
}

func TestCalculateNextInterval(t *testing.T) {
	tests := []struct {
		name       string
		current    time.Duration
		multiplier float64
		max        time.Duration
		want       time.Duration
	}{
		{"doubles", 1 * time.Second, 2.0, 8 * time.Second, 2 * time.Second},
		{"caps at max", 6 * time.Second, 2.0, 8 * time.Second, 8 * time.Second},
		{"multiplier one holds", 3 * time.Second, 1.0, 8 * time.Second, 3 * time.Second},
		{"no max", 4 * time.Second, 2.0, 0, 8 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateNextInterval(tt.current, tt.multiplier, tt.max)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyJitter_Bounds(t *testing.T) {
	interval := 1 * time.Second
	for i := 0; i < 100; i++ {
		jittered := applyJitter(interval, 0.1)
		assert.GreaterOrEqual(t, jittered, 900*time.Millisecond)
		assert.LessOrEqual(t, jittered, 1100*time.Millisecond)
	}
	// Zero jitter is a no-op.
	assert.Equal(t, interval, applyJitter(interval, 0))
}

func TestCriticalFailures(t *testing.T) {
	statuses := []DependencyStatus{
		{Name: "postgres", Critical: true, State: StateReady},
		{Name: "redis", Critical: true, State: StateUnreachable},
		{Name: "mail", Critical: false, State: StateUnreachable},
	}
	assert.Equal(t, []string{"redis"}, criticalFailures(statuses))

	statuses[1].State = StateReady
	assert.Nil(t, criticalFailures(statuses))
}

func TestWaitOptionsFromConfig_Defaults(t *testing.T) {
	opts := DefaultWaitOptions()
	assert.Equal(t, DefaultGateTimeout, opts.Timeout)
	assert.Equal(t, 1*time.Second, opts.InitialInterval)
	assert.Equal(t, 8*time.Second, opts.MaxInterval)
}
