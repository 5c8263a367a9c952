// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
)

// === ERRORS ===

// ErrDependencyUnavailable is returned when a critical dependency is
// still not ready after the wait deadline.
var ErrDependencyUnavailable = errors.New("dependency unavailable")

// === INTERFACE ===

// ReadinessChecker gates startup on backing services.
//
// # Description
//
// WaitForDependencies polls every dependency with exponential backoff
// until all critical ones are ready, the deadline passes, or the
// context is canceled. Non-critical dependencies are probed and
// reported but never fail the wait.
type ReadinessChecker interface {
	// WaitForDependencies blocks until all critical deps are ready.
	// Returns ErrDependencyUnavailable (wrapped, naming the deps that
	// never came up) on deadline, or the context error on cancellation.
	WaitForDependencies(ctx context.Context, deps []DependencyDefinition, opts WaitOptions) (*WaitResult, error)

	// CheckDependency probes one dependency once.
	CheckDependency(ctx context.Context, dep DependencyDefinition) DependencyStatus

	// CheckAll probes every dependency once, in order.
	CheckAll(ctx context.Context, deps []DependencyDefinition) []DependencyStatus
}

// === DEFAULT IMPLEMENTATION ===

// DefaultReadinessChecker probes over real network connections.
type DefaultReadinessChecker struct {
	httpClient   *http.Client
	probeTimeout time.Duration
}

// NewReadinessChecker creates a checker probing with the given
// per-attempt timeout, floored at MinProbeTimeout so a misconfigured
// value cannot make every probe fail instantly.
func NewReadinessChecker(probeTimeout time.Duration) *DefaultReadinessChecker {
	timeout := EnforceMinTimeout(probeTimeout, MinProbeTimeout)
	return &DefaultReadinessChecker{
		httpClient:   &http.Client{Timeout: timeout},
		probeTimeout: timeout,
	}
}

// WaitForDependencies implements ReadinessChecker.
func (c *DefaultReadinessChecker) WaitForDependencies(ctx context.Context, deps []DependencyDefinition, opts WaitOptions) (*WaitResult, error) {
	start := time.Now()
	timeout := EnforceDefaultTimeout(opts.Timeout, DefaultGateTimeout)
	deadline := start.Add(timeout)

	interval := opts.InitialInterval
	if interval <= 0 {
		interval = 1 * time.Second
	}

	result := &WaitResult{}
	for {
		result.Attempts++
		result.Statuses = c.CheckAll(ctx, deps)

		if criticalFailures(result.Statuses) == nil {
			result.Ready = true
			result.Duration = time.Since(start)
			return result, nil
		}

		sleepFor := applyJitter(interval, opts.Jitter)
		if time.Now().Add(sleepFor).After(deadline) {
			result.Duration = time.Since(start)
			failed := criticalFailures(result.Statuses)
			return result, fmt.Errorf("%w after %s: %s",
				ErrDependencyUnavailable, timeout, strings.Join(failed, ", "))
		}

		if err := sleepWithContext(ctx, sleepFor); err != nil {
			result.Duration = time.Since(start)
			return result, err
		}

		interval = calculateNextInterval(interval, opts.Multiplier, opts.MaxInterval)
	}
}

// CheckAll implements ReadinessChecker.
func (c *DefaultReadinessChecker) CheckAll(ctx context.Context, deps []DependencyDefinition) []DependencyStatus {
	statuses := make([]DependencyStatus, 0, len(deps))
	for _, dep := range deps {
		statuses = append(statuses, c.CheckDependency(ctx, dep))
	}
	return statuses
}

// CheckDependency implements ReadinessChecker.
func (c *DefaultReadinessChecker) CheckDependency(ctx context.Context, dep DependencyDefinition) DependencyStatus {
	start := time.Now()
	status := DependencyStatus{
		Name:     dep.Name,
		Kind:     dep.Kind,
		Critical: dep.Critical,
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	var err error
	switch dep.Kind {
	case KindTCP:
		err = c.probeTCP(probeCtx, dep)
	case KindHTTP:
		err = c.probeHTTP(probeCtx, dep)
	case KindPostgres:
		err = c.probePostgres(probeCtx, dep)
	case KindRedis:
		err = c.probeRedis(probeCtx, dep)
	default:
		err = fmt.Errorf("unknown dependency kind %q", dep.Kind)
	}

	status.Latency = time.Since(start)
	if err != nil {
		status.State = classifyProbeError(err)
		status.Error = err.Error()
	} else {
		status.State = StateReady
	}
	return status
}

// probeTCP checks that the port accepts connections.
func (c *DefaultReadinessChecker) probeTCP(ctx context.Context, dep DependencyDefinition) error {
	var dialer net.Dialer
	addr := net.JoinHostPort(dep.Host, strconv.Itoa(dep.Port))
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn.Close()
}

// probeHTTP expects a 2xx response.
func (c *DefaultReadinessChecker) probeHTTP(ctx context.Context, dep DependencyDefinition) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dep.URL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", dep.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s returned %d", dep.URL, resp.StatusCode)
	}
	return nil
}

// probePostgres opens a connection and pings. A successful ping means
// the server is past recovery and accepting queries, which is the
// signal schema migration needs.
func (c *DefaultReadinessChecker) probePostgres(ctx context.Context, dep DependencyDefinition) error {
	db, err := sql.Open("postgres", dep.URL)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// probeRedis pings the server.
func (c *DefaultReadinessChecker) probeRedis(ctx context.Context, dep DependencyDefinition) error {
	opt, err := goredis.ParseURL(dep.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	client := goredis.NewClient(opt)
	defer client.Close()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// === HELPERS ===

// criticalFailures returns the names of critical deps not in
// StateReady, or nil when all critical deps are ready.
func criticalFailures(statuses []DependencyStatus) []string {
	var failed []string
	for _, s := range statuses {
		if s.Critical && s.State != StateReady {
			failed = append(failed, s.Name)
		}
	}
	return failed
}

// classifyProbeError maps a probe error to a dependency state.
// Connection refused and timeouts mean unreachable; anything else
// means the service answered but is not serving.
func classifyProbeError(err error) string {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return StateUnreachable
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return StateUnreachable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StateUnreachable
	}
	return StateUnready
}

// applyJitter randomizes interval by +/- jitter fraction.
func applyJitter(interval time.Duration, jitter float64) time.Duration {
	if jitter <= 0 {
		return interval
	}
	delta := (rand.Float64()*2 - 1) * jitter
	jittered := time.Duration(float64(interval) * (1 + delta))
	if jittered <= 0 {
		return interval
	}
	return jittered
}

// calculateNextInterval grows the interval, capped at max.
func calculateNextInterval(current time.Duration, multiplier float64, max time.Duration) time.Duration {
	if multiplier <= 1 {
		return current
	}
	next := time.Duration(float64(current) * multiplier)
	if max > 0 && next > max {
		return max
	}
	return next
}

// sleepWithContext sleeps for d or until ctx is done.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// === MOCK IMPLEMENTATION ===

// MockReadinessChecker provides controllable probe results for tests.
type MockReadinessChecker struct {
	WaitForDependenciesFunc func(ctx context.Context, deps []DependencyDefinition, opts WaitOptions) (*WaitResult, error)
	CheckDependencyFunc     func(ctx context.Context, dep DependencyDefinition) DependencyStatus
}

// WaitForDependencies implements ReadinessChecker.
func (m *MockReadinessChecker) WaitForDependencies(ctx context.Context, deps []DependencyDefinition, opts WaitOptions) (*WaitResult, error) {
	if m.WaitForDependenciesFunc != nil {
		return m.WaitForDependenciesFunc(ctx, deps, opts)
	}
	return &WaitResult{Ready: true, Attempts: 1}, nil
}

// CheckDependency implements ReadinessChecker.
func (m *MockReadinessChecker) CheckDependency(ctx context.Context, dep DependencyDefinition) DependencyStatus {
	if m.CheckDependencyFunc != nil {
		return m.CheckDependencyFunc(ctx, dep)
	}
	return DependencyStatus{Name: dep.Name, Kind: dep.Kind, Critical: dep.Critical, State: StateReady}
}

// CheckAll implements ReadinessChecker.
func (m *MockReadinessChecker) CheckAll(ctx context.Context, deps []DependencyDefinition) []DependencyStatus {
	statuses := make([]DependencyStatus, 0, len(deps))
	for _, dep := range deps {
		statuses = append(statuses, m.CheckDependency(ctx, dep))
	}
	return statuses
}

// Compile-time interface checks.
var (
	_ ReadinessChecker = (*DefaultReadinessChecker)(nil)
	_ ReadinessChecker = (*MockReadinessChecker)(nil)
)
