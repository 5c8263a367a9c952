package main

import "time"

// Timeout constants define minimum and default values for operations
// that must never hang forever, even when misconfigured.
const (
	// MinProbeTimeout is the absolute minimum for a dependency probe.
	MinProbeTimeout = 500 * time.Millisecond

	// DefaultProbeTimeout is the standard per-probe timeout.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultGateTimeout bounds the whole readiness wait.
	DefaultGateTimeout = 120 * time.Second

	// DefaultMigrateTimeout bounds schema migration at startup.
	DefaultMigrateTimeout = 10 * time.Minute

	// DefaultBootstrapTimeout bounds env-file bootstrap, including
	// waiting on the file lock.
	DefaultBootstrapTimeout = 30 * time.Second
)

// EnforceMinTimeout returns at least the minimum timeout.
//
// Zero, negative, or below-minimum values are raised to the minimum so
// misconfiguration cannot produce an instant or infinite timeout.
func EnforceMinTimeout(requested, minimum time.Duration) time.Duration {
	if requested <= 0 || requested < minimum {
		return minimum
	}
	return requested
}

// EnforceDefaultTimeout returns the default when requested is unset.
func EnforceDefaultTimeout(requested, defaultVal time.Duration) time.Duration {
	if requested <= 0 {
		return defaultVal
	}
	return requested
}
