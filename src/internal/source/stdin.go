package source

import (
	"bufio"
	"bytes"
	"os"
	"sync/atomic"
	"time"

	"logcourier/src/internal/core"

	"github.com/lixenwraith/log"
)

// Reads log entries from standard input. JSON lines are decoded into
// structured entries; anything else becomes a plain-text entry with a
// guessed level.
type StdinSource struct {
	subscribers    []chan core.LogEntry
	done           chan struct{}
	totalEntries   atomic.Uint64
	droppedEntries atomic.Uint64
	invalidEntries atomic.Uint64
	bufferSize     int64
	startTime      time.Time
	lastEntryTime  atomic.Value // time.Time
	logger         *log.Logger
}

func NewStdinSource(bufferSize int64, logger *log.Logger) (*StdinSource, error) {
	if bufferSize <= 0 {
		bufferSize = 1000
	}

	source := &StdinSource{
		bufferSize:  bufferSize,
		subscribers: make([]chan core.LogEntry, 0),
		done:        make(chan struct{}),
		logger:      logger,
		startTime:   time.Now(),
	}
	source.lastEntryTime.Store(time.Time{})
	return source, nil
}

func (s *StdinSource) Subscribe() <-chan core.LogEntry {
	ch := make(chan core.LogEntry, s.bufferSize)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

func (s *StdinSource) Start() error {
	go s.readLoop()
	s.logger.Info("msg", "Stdin source started", "component", "stdin_source")
	return nil
}

func (s *StdinSource) Stop() {
	close(s.done)
	for _, ch := range s.subscribers {
		close(ch)
	}
	s.logger.Info("msg", "Stdin source stopped", "component", "stdin_source")
}

func (s *StdinSource) GetStats() SourceStats {
	lastEntry, _ := s.lastEntryTime.Load().(time.Time)

	return SourceStats{
		Type:           "stdin",
		TotalEntries:   s.totalEntries.Load(),
		DroppedEntries: s.droppedEntries.Load(),
		StartTime:      s.startTime,
		LastEntryTime:  lastEntry,
		Details: map[string]any{
			"invalid_entries": s.invalidEntries.Load(),
		},
	}
}

func (s *StdinSource) readLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-s.done:
			return
		default:
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			s.publish(s.parse(line))
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Error("msg", "Scanner error reading stdin",
			"component", "stdin_source",
			"error", err)
	}
}

// parse treats lines that look like JSON objects as structured
// entries, falling back to plain text.
func (s *StdinSource) parse(line []byte) core.LogEntry {
	if bytes.HasPrefix(bytes.TrimSpace(line), []byte("{")) {
		entry, err := parseJSONLine(line, "stdin")
		if err == nil {
			return entry
		}
		s.invalidEntries.Add(1)
		s.logger.Debug("msg", "Invalid JSON line, treating as text",
			"component", "stdin_source",
			"error", err)
	}

	text := string(line)
	return core.LogEntry{
		Time:    time.Now(),
		Source:  "stdin",
		Message: text,
		Level:   detectLevel(text),
		RawSize: int64(len(line)),
	}
}

func (s *StdinSource) publish(entry core.LogEntry) {
	s.totalEntries.Add(1)
	s.lastEntryTime.Store(entry.Time)

	for _, ch := range s.subscribers {
		select {
		case ch <- entry:
		default:
			s.droppedEntries.Add(1)
			s.logger.Debug("msg", "Dropped log entry - subscriber buffer full",
				"component", "stdin_source")
		}
	}
}
