// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the config filename looked up in the project dir.
const DefaultConfigFile = "budgetctl.yaml"

// ErrInvalidConfig is returned when the file parses but fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Global is the process-wide configuration, set by Load.
var Global *ProjectConfig

var (
	loadOnce sync.Once
	loadErr  error
)

// Load reads, validates, and caches the configuration at path.
//
// # Description
//
// A missing file is created from Default() so budgetctl works
// unconfigured against the standard topology. The result is cached:
// repeated calls return the first outcome.
//
// # Inputs
//
//   - path: Config file path. Empty means DefaultConfigFile in the
//     current directory.
//
// # Outputs
//
//   - *ProjectConfig: The loaded configuration (also stored in Global).
//   - error: Non-nil on read, parse, or validation failure.
func Load(path string) (*ProjectConfig, error) {
	loadOnce.Do(func() {
		Global, loadErr = loadFile(path)
	})
	return Global, loadErr
}

// loadFile performs one uncached load.
func loadFile(path string) (*ProjectConfig, error) {
	if path == "" {
		path = DefaultConfigFile
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createDefault(path); err != nil {
			return nil, fmt.Errorf("create default config: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and cross-field rules.
func Validate(cfg *ProjectConfig) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	for _, dep := range cfg.Dependencies {
		switch dep.Kind {
		case "tcp":
			if dep.Host == "" || dep.Port == 0 {
				return fmt.Errorf("%w: dependency %q: tcp probe requires host and port", ErrInvalidConfig, dep.Name)
			}
		case "http", "postgres", "redis":
			if dep.URL == "" {
				return fmt.Errorf("%w: dependency %q: %s probe requires url", ErrInvalidConfig, dep.Name, dep.Kind)
			}
		}
	}
	return nil
}

// createDefault writes the default config, creating parent directories.
func createDefault(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return err
		}
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ResetForTest clears the load cache. Tests only.
func ResetForTest() {
	loadOnce = sync.Once{}
	Global = nil
	loadErr = nil
}
