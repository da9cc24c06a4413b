package main

import (
	"context"
	"fmt"
	"strings"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"
	"logcourier/src/internal/service"
	"logcourier/src/internal/version"

	"github.com/lixenwraith/log"
)

var logger *log.Logger

// bootstrapService creates and starts the relay service.
func bootstrapService(ctx context.Context, cfg *config.Config) (*service.Service, error) {
	core.Strict.Store(cfg.StrictErrors)
	if cfg.StrictErrors {
		logger.Warn("msg", "Strict error mode enabled - internal defects will panic")
	}

	svc, err := service.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build service: %w", err)
	}

	if err := svc.Start(); err != nil {
		svc.Shutdown(0)
		return nil, err
	}

	logger.Info("msg", "LogCourier started",
		"version", version.Short(),
		"sources", len(cfg.Sources),
		"targets", len(cfg.Targets),
		"routes", len(cfg.Routes))

	return svc, nil
}

// initializeLogger sets up the diagnostic logger from configuration.
func initializeLogger(cfg *config.Config) error {
	logger = log.NewLogger()

	var configArgs []string

	levelValue, err := parseLogLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	configArgs = append(configArgs, fmt.Sprintf("level=%d", levelValue))

	switch cfg.Logging.Output {
	case "none":
		configArgs = append(configArgs, "disable_file=true", "enable_stdout=false")

	case "stdout":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stdout")

	case "stderr":
		configArgs = append(configArgs,
			"disable_file=true",
			"enable_stdout=true",
			"stdout_target=stderr")

	case "file":
		configArgs = append(configArgs, "enable_stdout=false")
		configureFileLogging(&configArgs, cfg)

	case "both":
		configArgs = append(configArgs, "enable_stdout=true", "stdout_target=stderr")
		configureFileLogging(&configArgs, cfg)

	default:
		return fmt.Errorf("invalid log output mode: %s", cfg.Logging.Output)
	}

	if err := logger.ApplyConfigString(configArgs...); err != nil {
		return err
	}
	return logger.Start()
}

// configureFileLogging sets up file-based logging parameters
func configureFileLogging(configArgs *[]string, cfg *config.Config) {
	if cfg.Logging.File != nil {
		*configArgs = append(*configArgs,
			fmt.Sprintf("directory=%s", cfg.Logging.File.Directory),
			fmt.Sprintf("name=%s", cfg.Logging.File.Name),
			fmt.Sprintf("max_size_mb=%d", cfg.Logging.File.MaxSizeMB),
			fmt.Sprintf("max_total_size_mb=%d", cfg.Logging.File.MaxTotalSizeMB))

		if cfg.Logging.File.RetentionHours > 0 {
			*configArgs = append(*configArgs,
				fmt.Sprintf("retention_period_hrs=%.1f", cfg.Logging.File.RetentionHours))
		}
	}
}

func parseLogLevel(level string) (int, error) {
	switch strings.ToLower(level) {
	case "debug":
		return int(log.LevelDebug), nil
	case "info":
		return int(log.LevelInfo), nil
	case "warn", "warning":
		return int(log.LevelWarn), nil
	case "error":
		return int(log.LevelError), nil
	default:
		return 0, fmt.Errorf("unknown log level: %s", level)
	}
}
