// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"context"
	"fmt"

	"github.com/budgetis/budgetctl/cmd/budgetctl/config"
)

// opInit prepares the project for first start: the env file exists and
// carries a secret key afterwards. Safe to run any number of times.
func opInit(ctx context.Context, args []string) *OperationResult {
	r := newResult("init")
	cfg := config.Global
	if cfg == nil {
		return r.finish(CLIExitError, "", fmt.Errorf("configuration not loaded"))
	}

	bctx, cancel := context.WithTimeout(ctx, DefaultBootstrapTimeout)
	defer cancel()

	res, err := bootstrapMgr.EnsureEnvFile(bctx, cfg.Project.EnvFile, cfg.Project.EnvTemplate)
	if err != nil {
		return r.finish(CLIExitFailure, "", err)
	}

	switch {
	case res.Created && res.SecretGenerated:
		return r.finish(CLIExitSuccess,
			fmt.Sprintf("Created %s from template and generated %s", res.EnvPath, secretKeyVar), nil)
	case res.SecretGenerated:
		return r.finish(CLIExitSuccess,
			fmt.Sprintf("Generated %s in %s", secretKeyVar, res.EnvPath), nil)
	default:
		return r.finish(CLIExitSuccess,
			fmt.Sprintf("%s already configured", res.EnvPath), nil)
	}
}
