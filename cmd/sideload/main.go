package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ebarretto/sideload/internal/cmd"
	"github.com/ebarretto/sideload/internal/config"
	"github.com/ebarretto/sideload/internal/core"
	"github.com/ebarretto/sideload/internal/logging"
)

var version = "dev"

func main() {
	// Ctrl-C cancels the context; an in-flight package manager run still
	// finishes or times out before the batch reacts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(core.ExitGeneral)
	}

	// Initialize logger
	log := logging.NewLogger(logging.Config{
		Level:   cfg.Logging.Level,
		LogFile: cfg.Logging.File,
		NoColor: cfg.Logging.NoColor,
	})

	// Execute root command
	rootCmd := cmd.NewRootCmd(cfg, log, version)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(core.ExitCodeFor(err))
	}
}
