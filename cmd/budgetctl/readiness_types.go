package main

import (
	"time"

	"github.com/budgetis/budgetctl/cmd/budgetctl/config"
)

// DependencyKind selects which probe checks a dependency.
type DependencyKind string

const (
	KindTCP      DependencyKind = "tcp"
	KindHTTP     DependencyKind = "http"
	KindPostgres DependencyKind = "postgres"
	KindRedis    DependencyKind = "redis"
)

// Dependency states reported by probes.
const (
	// StateReady means the probe succeeded.
	StateReady = "ready"

	// StateUnready means the service answered but is not serving yet.
	StateUnready = "unready"

	// StateUnreachable means the probe could not connect at all.
	StateUnreachable = "unreachable"
)

// DependencyDefinition is one backing service to gate on.
type DependencyDefinition struct {
	Name     string
	Kind     DependencyKind
	Host     string
	Port     int
	URL      string
	Critical bool
}

// WaitOptions tunes the readiness wait loop.
type WaitOptions struct {
	// Timeout bounds the whole wait across all dependencies.
	Timeout time.Duration

	// InitialInterval is the first poll interval.
	InitialInterval time.Duration

	// MaxInterval caps exponential growth.
	MaxInterval time.Duration

	// Multiplier grows the interval after each failed round.
	Multiplier float64

	// Jitter randomizes each interval by +/- this fraction.
	Jitter float64
}

// DefaultWaitOptions returns the standard gate tuning.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{
		Timeout:         DefaultGateTimeout,
		InitialInterval: 1 * time.Second,
		MaxInterval:     8 * time.Second,
		Multiplier:      2.0,
		Jitter:          0.1,
	}
}

// DependencyStatus is the outcome of probing one dependency.
type DependencyStatus struct {
	Name     string         `json:"name"`
	Kind     DependencyKind `json:"kind"`
	State    string         `json:"state"`
	Critical bool           `json:"critical"`
	Error    string         `json:"error,omitempty"`
	Latency  time.Duration  `json:"latency"`
}

// WaitResult summarizes a completed (or failed) readiness wait.
type WaitResult struct {
	Ready    bool               `json:"ready"`
	Attempts int                `json:"attempts"`
	Duration time.Duration      `json:"duration"`
	Statuses []DependencyStatus `json:"statuses"`
}

// dependenciesFromConfig converts configured dependencies to probe
// definitions.
func dependenciesFromConfig(cfg *config.ProjectConfig) []DependencyDefinition {
	deps := make([]DependencyDefinition, 0, len(cfg.Dependencies))
	for _, d := range cfg.Dependencies {
		deps = append(deps, DependencyDefinition{
			Name:     d.Name,
			Kind:     DependencyKind(d.Kind),
			Host:     d.Host,
			Port:     d.Port,
			URL:      d.URL,
			Critical: d.Critical,
		})
	}
	return deps
}

// waitOptionsFromConfig builds wait options from the gate config,
// falling back to defaults for unset fields.
func waitOptionsFromConfig(cfg *config.ProjectConfig) WaitOptions {
	opts := DefaultWaitOptions()
	gate := cfg.Gate
	if gate.TimeoutSeconds > 0 {
		opts.Timeout = time.Duration(gate.TimeoutSeconds) * time.Second
	}
	if gate.InitialIntervalSeconds > 0 {
		opts.InitialInterval = time.Duration(gate.InitialIntervalSeconds) * time.Second
	}
	if gate.MaxIntervalSeconds > 0 {
		opts.MaxInterval = time.Duration(gate.MaxIntervalSeconds) * time.Second
	}
	if gate.Multiplier > 0 {
		opts.Multiplier = gate.Multiplier
	}
	if gate.Jitter > 0 {
		opts.Jitter = gate.Jitter
	}
	return opts
}
