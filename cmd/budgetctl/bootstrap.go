// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/budgetis/budgetctl/pkg/filelock"
)

// === ERRORS ===

// ErrTemplateMissing is returned when neither the env file nor its
// template exists. Nothing is created in that case.
var ErrTemplateMissing = errors.New("env template not found")

// secretKeyVar is the env entry bootstrap guarantees.
const secretKeyVar = "DJANGO_SECRET_KEY"

// === TYPES ===

// BootstrapResult reports what EnsureEnvFile did.
type BootstrapResult struct {
	ID              string        `json:"id"`
	EnvPath         string        `json:"env_path"`
	Created         bool          `json:"created"`          // env file created from template
	SecretGenerated bool          `json:"secret_generated"` // secret key appended this run
	Duration        time.Duration `json:"duration"`
}

// === INTERFACE ===

// BootstrapManager prepares the runtime environment file.
//
// # Description
//
// EnsureEnvFile makes the env file exist and contain a secret key,
// doing the minimum work needed. It holds an exclusive file lock for
// the whole check-and-write, so concurrent invocations converge on one
// secret instead of racing.
type BootstrapManager interface {
	// EnsureEnvFile creates envPath from templatePath when missing and
	// appends a generated secret key when absent or empty. Both steps
	// are idempotent.
	EnsureEnvFile(ctx context.Context, envPath, templatePath string) (*BootstrapResult, error)
}

// === DEFAULT IMPLEMENTATION ===

// DefaultBootstrapManager is the production implementation.
type DefaultBootstrapManager struct{}

// NewBootstrapManager creates the default bootstrap manager.
func NewBootstrapManager() *DefaultBootstrapManager {
	return &DefaultBootstrapManager{}
}

// EnsureEnvFile implements BootstrapManager.
func (m *DefaultBootstrapManager) EnsureEnvFile(ctx context.Context, envPath, templatePath string) (*BootstrapResult, error) {
	start := time.Now()
	result := &BootstrapResult{
		ID:      uuid.NewString(),
		EnvPath: envPath,
	}

	lock, err := filelock.Acquire(ctx, envPath+".lock")
	if err != nil {
		return nil, fmt.Errorf("acquire env lock: %w", err)
	}
	defer lock.Release()

	content, err := os.ReadFile(envPath)
	if errors.Is(err, os.ErrNotExist) {
		templateContent, terr := os.ReadFile(templatePath)
		if errors.Is(terr, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateMissing, templatePath)
		}
		if terr != nil {
			return nil, fmt.Errorf("read template %s: %w", templatePath, terr)
		}
		content = templateContent
		result.Created = true
	} else if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", envPath, err)
	}

	lines := parseEnvLines(string(content))
	if value, found := lookupEnv(lines, secretKeyVar); !found || value == "" {
		secret, serr := generateSecretKey()
		if serr != nil {
			return nil, fmt.Errorf("generate secret key: %w", serr)
		}
		lines = upsertEnv(lines, secretKeyVar, secret)
		result.SecretGenerated = true
	}

	if result.Created || result.SecretGenerated {
		if err := writeFileAtomic(envPath, []byte(renderEnvLines(lines)), 0o600); err != nil {
			return nil, fmt.Errorf("write env file %s: %w", envPath, err)
		}
	}

	result.Duration = time.Since(start)
	return result, nil
}

// === MOCK IMPLEMENTATION ===

// MockBootstrapManager records calls for testing.
type MockBootstrapManager struct {
	mu    sync.Mutex
	Calls []BootstrapCall

	EnsureEnvFileFunc func(ctx context.Context, envPath, templatePath string) (*BootstrapResult, error)
}

// BootstrapCall records one EnsureEnvFile invocation.
type BootstrapCall struct {
	EnvPath      string
	TemplatePath string
}

// EnsureEnvFile implements BootstrapManager.
func (m *MockBootstrapManager) EnsureEnvFile(ctx context.Context, envPath, templatePath string) (*BootstrapResult, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, BootstrapCall{EnvPath: envPath, TemplatePath: templatePath})
	m.mu.Unlock()

	if m.EnsureEnvFileFunc != nil {
		return m.EnsureEnvFileFunc(ctx, envPath, templatePath)
	}
	return &BootstrapResult{ID: uuid.NewString(), EnvPath: envPath}, nil
}

// Compile-time interface checks.
var (
	_ BootstrapManager = (*DefaultBootstrapManager)(nil)
	_ BootstrapManager = (*MockBootstrapManager)(nil)
)
