// Copyright (C) 2026 The Budgetis Authors
// Use of this source code is governed by the MIT license
// found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/budgetis/budgetctl/cmd/budgetctl/config"
	"github.com/budgetis/budgetctl/pkg/logging"
)

// Global flags.
var (
	flagConfigPath string
	flagJSON       bool
	flagQuiet      bool
)

// Per-command flags.
var (
	flagNoCache      bool
	flagPull         bool
	flagBuildOnStart bool
	flagFollow       bool
	flagTail         int
	flagForce        bool
)

// All commands are declared here; init() wires them together.
var (
	rootCmd = &cobra.Command{
		Use:   "budgetctl",
		Short: "Operate the Budgetis container stack",
		Long: `budgetctl operates the Budgetis application stack: it bootstraps
configuration, builds and runs the containers, and wraps the
application's management commands.

Wrapped tools keep their exit codes: when docker compose or a
management command fails, budgetctl exits with exactly that code.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfigPath)
			if err != nil {
				return err
			}
			configureLogger(cfg)
			return nil
		},
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Bootstrap the env file and secret key",
		Long: `Creates the env file from its template when missing and generates
DJANGO_SECRET_KEY when absent or empty. Idempotent: existing values
are never touched.`,
		Args: cobra.NoArgs,
		Run:  runOp("init"),
	}

	buildCmd = &cobra.Command{
		Use:   "build [SERVICE...]",
		Short: "Build service images",
		Run:   runOp("build"),
	}

	startCmd = &cobra.Command{
		Use:     "start [SERVICE...]",
		Aliases: []string{"up"},
		Short:   "Bootstrap config and start the stack detached",
		Run:     runOp("start"),
	}

	stopCmd = &cobra.Command{
		Use:     "stop",
		Aliases: []string{"down"},
		Short:   "Stop and remove containers (volumes survive)",
		Args:    cobra.NoArgs,
		Run:     runOp("stop"),
	}

	restartCmd = &cobra.Command{
		Use:   "restart [SERVICE...]",
		Short: "Stop the stack and start it again",
		Run:   runOp("restart"),
	}

	resetCmd = &cobra.Command{
		Use:   "reset",
		Short: "Destroy the stack including volumes, rebuild, start fresh",
		Long: `Stops the stack, removes containers AND volumes (the database is
destroyed), rebuilds images, and starts fresh. Asks for confirmation
unless --force is given.`,
		Args: cobra.NoArgs,
		Run:  runOp("reset"),
	}

	logsCmd = &cobra.Command{
		Use:   "logs [SERVICE...]",
		Short: "Show service logs",
		Run:   runOp("logs"),
	}

	psCmd = &cobra.Command{
		Use:     "ps",
		Aliases: []string{"status"},
		Short:   "Show per-service container state",
		Args:    cobra.NoArgs,
		Run:     runOp("ps"),
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate [ARGS...]",
		Short: "Apply pending database migrations",
		Run:   runOp("migrate"),
	}

	makeMigrationsCmd = &cobra.Command{
		Use:   "makemigrations [APP...]",
		Short: "Generate new migration files",
		Run:   runOp("makemigrations"),
	}

	shellCmd = &cobra.Command{
		Use:   "shell",
		Short: "Open an interactive application shell",
		Args:  cobra.NoArgs,
		Run:   runOp("shell"),
	}

	createSuperuserCmd = &cobra.Command{
		Use:   "createsuperuser",
		Short: "Create an admin account interactively",
		Args:  cobra.NoArgs,
		Run:   runOp("createsuperuser"),
	}

	collectStaticCmd = &cobra.Command{
		Use:   "collectstatic [ARGS...]",
		Short: "Collect static assets (non-interactive by default)",
		Run:   runOp("collectstatic"),
	}

	manageCmd = &cobra.Command{
		Use:   "manage -- ARGS...",
		Short: "Run an arbitrary management command",
		Args:  cobra.ArbitraryArgs,
		Run:   runOp("manage"),
	}

	entrypointCmd = &cobra.Command{
		Use:   "entrypoint -- COMMAND [ARGS...]",
		Short: "Container entrypoint: wait for dependencies, migrate, exec",
		Long: `Waits for backing services with bounded exponential backoff, applies
database migrations exactly once, then replaces itself with COMMAND.
Intended as the container's ENTRYPOINT; SIGINT/SIGTERM cancel the
wait.`,
		Args: cobra.MinimumNArgs(1),
		Run:  runOp("entrypoint"),
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file (default budgetctl.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress output, exit code only")

	buildCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "build without the image cache")
	buildCmd.Flags().BoolVar(&flagPull, "pull", false, "always pull newer base images")
	startCmd.Flags().BoolVar(&flagBuildOnStart, "build", false, "rebuild images before starting")
	restartCmd.Flags().BoolVar(&flagBuildOnStart, "build", false, "rebuild images before starting")
	resetCmd.Flags().BoolVar(&flagForce, "force", false, "skip the confirmation prompt")
	logsCmd.Flags().BoolVarP(&flagFollow, "follow", "f", false, "stream logs until interrupted")
	logsCmd.Flags().IntVar(&flagTail, "tail", 0, "show only the last N lines")

	rootCmd.AddCommand(
		initCmd,
		buildCmd,
		startCmd,
		stopCmd,
		restartCmd,
		resetCmd,
		logsCmd,
		psCmd,
		migrateCmd,
		makeMigrationsCmd,
		shellCmd,
		createSuperuserCmd,
		collectStaticCmd,
		manageCmd,
		entrypointCmd,
	)
}

// configureLogger rebuilds the process logger from the loaded config
// and flags. --quiet silences the logger along with result output;
// LogDir keeps a JSON file log regardless.
func configureLogger(cfg *config.ProjectConfig) {
	logger.Close()
	logger = logging.New(logging.Config{
		Level:   logging.LevelInfo,
		LogDir:  cfg.LogDir,
		Service: "budgetctl",
		JSON:    flagJSON,
		Quiet:   flagQuiet,
	})
}

// runOp adapts a dispatch-table operation to a cobra handler.
func runOp(name string) func(cmd *cobra.Command, args []string) {
	return func(cmd *cobra.Command, args []string) {
		result := Dispatch(cmd.Context(), name, args)
		if result.Err != nil {
			logger.Error("Operation failed",
				"operation", result.Name,
				"id", result.ID,
				"exit_code", result.ExitCode,
				"error", result.Err.Error())
		} else {
			logger.Debug("Operation completed",
				"operation", result.Name,
				"id", result.ID,
				"duration", result.Duration.String())
		}

		code := OutputOperationResult(OutputConfig{JSON: flagJSON, Quiet: flagQuiet}, result)
		if code != CLIExitSuccess {
			logger.Close()
			os.Exit(code)
		}
	}
}

// Execute runs the CLI.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", paint("Error:", ansiRed), err)
		return err
	}
	return nil
}
