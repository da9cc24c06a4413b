package core

import (
	"encoding/json"
	"time"
)

// LogEntry represents a single log record flowing through the pipeline.
// Entries are immutable once dispatched; ownership transfers on
// enqueue/dequeue and no two stages mutate one concurrently.
type LogEntry struct {
	Time    time.Time       `json:"time"`
	Source  string          `json:"source"`
	Level   Level           `json:"-"`
	Message string          `json:"message"`
	Error   string          `json:"error,omitempty"`
	Fields  json.RawMessage `json:"fields,omitempty"`
	RawSize int64           `json:"-"`
}
