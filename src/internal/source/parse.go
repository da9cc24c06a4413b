package source

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"logcourier/src/internal/core"
)

// wireEntry is the ingest line format: LogEntry with the level as a
// string.
type wireEntry struct {
	Time    time.Time       `json:"time"`
	Source  string          `json:"source"`
	Level   string          `json:"level"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Fields  json.RawMessage `json:"fields"`
}

// parseJSONLine decodes one newline-delimited JSON ingest line,
// applying defaults for omitted fields.
func parseJSONLine(line []byte, defaultSource string) (core.LogEntry, error) {
	var wire wireEntry
	if err := json.Unmarshal(line, &wire); err != nil {
		return core.LogEntry{}, fmt.Errorf("invalid json entry: %w", err)
	}
	if wire.Message == "" {
		return core.LogEntry{}, fmt.Errorf("entry missing message")
	}

	entry := core.LogEntry{
		Time:    wire.Time,
		Source:  wire.Source,
		Message: wire.Message,
		Error:   wire.Error,
		Fields:  wire.Fields,
		Level:   core.LevelInfo,
		RawSize: int64(len(line)),
	}
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	if entry.Source == "" {
		entry.Source = defaultSource
	}
	if wire.Level != "" {
		level, err := core.ParseLevel(wire.Level)
		if err != nil {
			return core.LogEntry{}, err
		}
		entry.Level = level
	}
	return entry, nil
}

// detectLevel guesses the severity of a plain-text line from common
// level markers; unknown lines default to info.
func detectLevel(line string) core.Level {
	upper := strings.ToUpper(line)
	switch {
	case strings.Contains(upper, "FATAL"):
		return core.LevelFatal
	case strings.Contains(upper, "ERROR"):
		return core.LevelError
	case strings.Contains(upper, "WARN"):
		return core.LevelWarn
	case strings.Contains(upper, "DEBUG"):
		return core.LevelDebug
	case strings.Contains(upper, "TRACE"):
		return core.LevelTrace
	default:
		return core.LevelInfo
	}
}
