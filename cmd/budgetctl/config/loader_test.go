// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

// TestCreateDefault verifies default config creation.
func TestCreateDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "budgetctl.yaml")

	if err := createDefault(configPath); err != nil {
		t.Fatalf("createDefault() failed: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("failed to parse config: %v", err)
	}

	if cfg.Project.Name != "budgetis" {
		t.Errorf("Project.Name = %q, want %q", cfg.Project.Name, "budgetis")
	}
	if cfg.Project.AppService != "django" {
		t.Errorf("Project.AppService = %q, want %q", cfg.Project.AppService, "django")
	}
	if cfg.Meta.Version != CurrentConfigVersion {
		t.Errorf("Meta.Version = %q, want %q", cfg.Meta.Version, CurrentConfigVersion)
	}
	if len(cfg.Dependencies) != 2 {
		t.Fatalf("len(Dependencies) = %d, want 2", len(cfg.Dependencies))
	}
	if cfg.Dependencies[0].Kind != "postgres" || cfg.Dependencies[1].Kind != "redis" {
		t.Errorf("default dependencies = %q, %q; want postgres, redis",
			cfg.Dependencies[0].Kind, cfg.Dependencies[1].Kind)
	}
}

// TestLoadFile_MissingCreatesDefault verifies first-run behavior.
func TestLoadFile_MissingCreatesDefault(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "budgetctl.yaml")

	cfg, err := loadFile(configPath)
	if err != nil {
		t.Fatalf("loadFile() failed: %v", err)
	}
	if cfg.Gate.TimeoutSeconds != 120 {
		t.Errorf("Gate.TimeoutSeconds = %d, want 120", cfg.Gate.TimeoutSeconds)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Errorf("default config file was not created: %v", err)
	}
}

// TestValidate_RejectsBadDependencyKind verifies kind validation.
func TestValidate_RejectsBadDependencyKind(t *testing.T) {
	cfg := Default()
	cfg.Dependencies[0].Kind = "carrier-pigeon"

	if err := Validate(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
	}
}

// TestValidate_RejectsMissingProbeTarget verifies cross-field rules.
func TestValidate_RejectsMissingProbeTarget(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ProjectConfig)
	}{
		{"tcp without port", func(c *ProjectConfig) {
			c.Dependencies[0] = DependencyConfig{Name: "db", Kind: "tcp", Host: "postgres"}
		}},
		{"postgres without url", func(c *ProjectConfig) {
			c.Dependencies[0] = DependencyConfig{Name: "db", Kind: "postgres"}
		}},
		{"redis without url", func(c *ProjectConfig) {
			c.Dependencies[1] = DependencyConfig{Name: "cache", Kind: "redis"}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := Validate(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

// TestLoadFile_UserValuesOverrideDefaults verifies partial configs
// merge over the defaults.
func TestLoadFile_UserValuesOverrideDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "budgetctl.yaml")
	content := []byte("project:\n  name: budgetis\n  compose_file: docker-compose.yml\n  env_file: .env\n  env_template: .env.example\n  app_service: web\n")
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := loadFile(configPath)
	if err != nil {
		t.Fatalf("loadFile() failed: %v", err)
	}
	if cfg.Project.AppService != "web" {
		t.Errorf("Project.AppService = %q, want %q", cfg.Project.AppService, "web")
	}
	// Untouched sections keep their defaults.
	if cfg.Gate.MaxIntervalSeconds != 8 {
		t.Errorf("Gate.MaxIntervalSeconds = %d, want 8", cfg.Gate.MaxIntervalSeconds)
	}
}
