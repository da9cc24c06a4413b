package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"logcourier/src/internal/auth"
	"logcourier/src/internal/config"
	"logcourier/src/internal/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	args := os.Args[1:]

	// Subcommands before any configuration loading
	if len(args) > 0 {
		switch args[0] {
		case "auth":
			if err := auth.NewGeneratorCommand().Execute(args[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "version", "-v", "--version":
			fmt.Println(version.String())
			return
		}
	}

	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := initializeLogger(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer shutdownLogger()

	logger.Info("msg", "LogCourier starting",
		"version", version.String(),
		"config_file", config.GetConfigPath(),
		"log_output", cfg.Logging.Output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := bootstrapService(ctx, cfg)
	if err != nil {
		logger.Error("msg", "Failed to bootstrap service", "error", err)
		shutdownLogger()
		os.Exit(1)
	}

	sig := waitForSignal(ctx, logger)
	logger.Info("msg", "Shutdown signal received, starting graceful shutdown...",
		"signal", fmt.Sprintf("%v", sig))

	done := make(chan struct{})
	go func() {
		svc.Shutdown(shutdownTimeout)
		close(done)
	}()

	select {
	case <-done:
		logger.Info("msg", "Shutdown complete")
	case <-time.After(shutdownTimeout + 5*time.Second):
		logger.Error("msg", "Shutdown timeout exceeded - forcing exit")
		shutdownLogger()
		os.Exit(1)
	}
}

func shutdownLogger() {
	if logger != nil {
		if err := logger.Shutdown(2 * time.Second); err != nil {
			// Best effort - can't log the shutdown error
			fmt.Fprintf(os.Stderr, "Logger shutdown error: %v\n", err)
		}
	}
}
