// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

// budgetctl operates the Budgetis container stack. It bootstraps the
// environment file, gates container startup on backing services, and
// wraps docker compose and the application's management commands
// behind one small CLI.
package main

import (
	"os"

	"github.com/budgetis/budgetctl/pkg/logging"
)

// logger is the process-wide logger. Operations log through it;
// human-facing output goes to stdout separately.
var logger = logging.Default()

func main() {
	defer logger.Close()

	if err := Execute(); err != nil {
		logger.Close()
		os.Exit(CLIExitError)
	}
}
