package format

import (
	"encoding/json"
	"fmt"
	"time"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"

	"github.com/lixenwraith/log"
)

// JSONFormatter produces structured JSON logs from LogEntry objects.
type JSONFormatter struct {
	config *config.JSONFormatterOptions
	logger *log.Logger
}

// NewJSONFormatter creates a new JSON formatter. Missing field names
// fall back to the standard ones.
func NewJSONFormatter(opts *config.JSONFormatterOptions, logger *log.Logger) (*JSONFormatter, error) {
	if opts == nil {
		opts = &config.JSONFormatterOptions{}
	}
	cfg := *opts
	if cfg.TimestampField == "" {
		cfg.TimestampField = "time"
	}
	if cfg.LevelField == "" {
		cfg.LevelField = "level"
	}
	if cfg.SourceField == "" {
		cfg.SourceField = "source"
	}
	if cfg.MessageField == "" {
		cfg.MessageField = "message"
	}

	return &JSONFormatter{
		config: &cfg,
		logger: logger,
	}, nil
}

// Format transforms a single LogEntry into a JSON byte slice.
func (f *JSONFormatter) Format(entry core.LogEntry) ([]byte, error) {
	output := make(map[string]any)

	output[f.config.TimestampField] = entry.Time.Format(time.RFC3339Nano)
	output[f.config.LevelField] = entry.Level.String()
	output[f.config.SourceField] = entry.Source
	output[f.config.MessageField] = entry.Message
	if entry.Error != "" {
		output["error"] = entry.Error
	}

	// Merge the property bag without overriding standard fields
	if len(entry.Fields) > 0 {
		var fields map[string]any
		if err := json.Unmarshal(entry.Fields, &fields); err == nil {
			for k, v := range fields {
				if _, exists := output[k]; !exists {
					output[k] = v
				}
			}
		} else {
			f.logger.Debug("msg", "Dropping unparsable entry fields",
				"component", "json_formatter",
				"error", err)
		}
	}

	var result []byte
	var err error
	if f.config.Pretty {
		result, err = json.MarshalIndent(output, "", "  ")
	} else {
		result, err = json.Marshal(output)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return append(result, '\n'), nil
}

// Name returns the formatter's type name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// FormatBatch transforms a slice of LogEntry objects into a single JSON
// array byte slice.
func (f *JSONFormatter) FormatBatch(entries []core.LogEntry) ([]byte, error) {
	batch := make([]json.RawMessage, 0, len(entries))

	for _, entry := range entries {
		formatted, err := f.Format(entry)
		if err != nil {
			f.logger.Warn("msg", "Failed to format entry in batch",
				"component", "json_formatter",
				"error", err)
			continue
		}

		// Strip the trailing newline for array elements
		if len(formatted) > 0 && formatted[len(formatted)-1] == '\n' {
			formatted = formatted[:len(formatted)-1]
		}
		batch = append(batch, formatted)
	}

	if f.config.Pretty {
		return json.MarshalIndent(batch, "", "  ")
	}
	return json.Marshal(batch)
}
