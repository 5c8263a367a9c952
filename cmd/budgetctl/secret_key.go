// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// secretKeyLength matches what Django's get_random_secret_key
	// equivalent tooling produces for production keys.
	secretKeyLength = 64

	// secretKeyAlphabet is Django's SECRET_KEY character set.
	secretKeyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*(-_=+)"
)

// generateSecretKey returns a cryptographically random Django secret
// key. Each character is drawn uniformly from the Django alphabet
// using crypto/rand.
func generateSecretKey() (string, error) {
	alphabetLen := big.NewInt(int64(len(secretKeyAlphabet)))
	key := make([]byte, secretKeyLength)
	for i := range key {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		key[i] = secretKeyAlphabet[n.Int64()]
	}
	return string(key), nil
}
