// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"strings"
	"testing"
)

// TestGenerateSecretKey verifies length and character set.
func TestGenerateSecretKey(t *testing.T) {
	key, err := generateSecretKey()
	if err != nil {
		t.Fatalf("generateSecretKey() failed: %v", err)
	}
	if len(key) != secretKeyLength {
		t.Errorf("len(key) = %d, want %d", len(key), secretKeyLength)
	}
	for i, c := range key {
		if !strings.ContainsRune(secretKeyAlphabet, c) {
			t.Errorf("key[%d] = %q, not in alphabet", i, c)
		}
	}
}

// TestGenerateSecretKey_Unique verifies two keys differ.
func TestGenerateSecretKey_Unique(t *testing.T) {
	a, err := generateSecretKey()
	if err != nil {
		t.Fatalf("generateSecretKey() failed: %v", err)
	}
	b, err := generateSecretKey()
	if err != nil {
		t.Fatalf("generateSecretKey() failed: %v", err)
	}
	if a == b {
		t.Error("two generated keys are identical")
	}
}
