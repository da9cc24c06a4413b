package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/lixenwraith/log"
)

// waitForSignal blocks until a termination signal arrives or the
// context is cancelled.
func waitForSignal(ctx context.Context, logger *log.Logger) os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		return sig
	case <-ctx.Done():
		logger.Debug("msg", "Context cancelled before signal")
		return nil
	}
}
