// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// envLine is one physical line of an env file. Comments and blank
// lines are preserved verbatim so bootstrap never reorders or strips
// anything a human wrote.
type envLine struct {
	raw     string
	key     string
	value   string
	isEntry bool
}

// parseEnvLines splits env file content into lines, classifying
// KEY=VALUE entries. Everything else (comments, blanks, malformed
// lines) passes through untouched.
func parseEnvLines(content string) []envLine {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return nil
	}

	rawLines := strings.Split(content, "\n")
	lines := make([]envLine, 0, len(rawLines))
	for _, raw := range rawLines {
		line := envLine{raw: raw}
		trimmed := strings.TrimSpace(raw)
		if trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if idx := strings.Index(trimmed, "="); idx > 0 {
				line.key = strings.TrimSpace(trimmed[:idx])
				line.value = trimmed[idx+1:]
				line.isEntry = true
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// renderEnvLines joins lines back into file content with a trailing
// newline.
func renderEnvLines(lines []envLine) string {
	if len(lines) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line.raw)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// lookupEnv returns the value of key and whether an entry exists.
// The last entry wins, matching how most env loaders resolve
// duplicates.
func lookupEnv(lines []envLine, key string) (string, bool) {
	value := ""
	found := false
	for _, line := range lines {
		if line.isEntry && line.key == key {
			value = line.value
			found = true
		}
	}
	return value, found
}

// upsertEnv sets key to value, rewriting the existing entry in place
// or appending a new one at the end.
func upsertEnv(lines []envLine, key, value string) []envLine {
	entry := envLine{
		raw:     key + "=" + value,
		key:     key,
		value:   value,
		isEntry: true,
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if lines[i].isEntry && lines[i].key == key {
			lines[i] = entry
			return lines
		}
	}
	return append(lines, entry)
}

// writeFileAtomic writes content via a temp file in the same directory
// followed by rename, so readers never observe a partial file.
func writeFileAtomic(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(content); err != nil {
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
