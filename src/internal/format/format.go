package format

import (
	"fmt"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"

	"github.com/lixenwraith/log"
)

// Formatter defines the interface for transforming a LogEntry into a
// wire payload. Formatters are layout collaborators: the dispatch core
// consumes their output verbatim as bytes.
type Formatter interface {
	// Format takes a LogEntry and returns the formatted log as a byte slice.
	Format(entry core.LogEntry) ([]byte, error)

	// Name returns the formatter type name
	Name() string
}

// New creates a new Formatter for a target configuration.
func New(cfg *config.TargetConfig, logger *log.Logger) (Formatter, error) {
	name := cfg.Format
	if name == "" {
		name = "raw"
	}

	switch name {
	case "json":
		return NewJSONFormatter(cfg.JSONFormat, logger)
	case "text":
		return NewTextFormatter(cfg.TextFormat, logger)
	case "raw":
		return NewRawFormatter(logger)
	default:
		return nil, fmt.Errorf("unknown formatter type: %s", name)
	}
}
