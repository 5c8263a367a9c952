// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/budgetis/budgetctl/cmd/budgetctl/config"
)

// useLogger restores the process logger after the test.
func useLogger(t *testing.T) {
	t.Helper()
	old := logger
	t.Cleanup(func() {
		logger.Close()
		logger = old
	})
}

// TestConfigureLogger_WritesDatedLogFile verifies log_dir from the
// config produces a dated JSON log file.
func TestConfigureLogger_WritesDatedLogFile(t *testing.T) {
	useLogger(t)
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LogDir = dir

	configureLogger(cfg)
	logger.Info("stack started", "services", 4)
	require.NoError(t, logger.Close())

	logPath := filepath.Join(dir, fmt.Sprintf("budgetctl_%s.log", time.Now().Format("2006-01-02")))
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "stack started", entry["msg"])
	assert.Equal(t, "budgetctl", entry["service"])
}

// TestConfigureLogger_QuietStillLogsToFile verifies --quiet silences
// stderr without dropping the file log.
func TestConfigureLogger_QuietStillLogsToFile(t *testing.T) {
	useLogger(t)
	dir := t.TempDir()
	cfg := config.Default()
	cfg.LogDir = dir

	oldQuiet := flagQuiet
	flagQuiet = true
	t.Cleanup(func() { flagQuiet = oldQuiet })

	configureLogger(cfg)
	logger.Info("bootstrap complete")
	require.NoError(t, logger.Close())

	logPath := filepath.Join(dir, fmt.Sprintf("budgetctl_%s.log", time.Now().Format("2006-01-02")))
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bootstrap complete")
}

// TestConfigureLogger_NoLogDir verifies the logger stays stderr-only
// when log_dir is unset.
func TestConfigureLogger_NoLogDir(t *testing.T) {
	useLogger(t)
	cfg := config.Default()
	cfg.LogDir = ""

	configureLogger(cfg)
	logger.Info("no file expected")
	require.NoError(t, logger.Close())
}
