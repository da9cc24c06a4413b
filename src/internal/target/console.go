package target

import (
	"fmt"
	"io"
	"os"
	"sync"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"
	"logcourier/src/internal/format"

	"github.com/lixenwraith/log"
	"golang.org/x/term"
)

// ANSI SGR sequences per level; only used on a terminal.
var levelColors = [core.LevelCount]string{
	core.LevelTrace: "\x1b[90m",
	core.LevelDebug: "\x1b[36m",
	core.LevelInfo:  "",
	core.LevelWarn:  "\x1b[33m",
	core.LevelError: "\x1b[31m",
	core.LevelFatal: "\x1b[31;1m",
}

const colorReset = "\x1b[0m"

// ConsoleSink writes formatted entries to stdout, stderr, or both in
// split mode (warn and above to stderr, the rest to stdout). Level
// colors apply only when the destination is a terminal.
type ConsoleSink struct {
	mode      string
	out       io.Writer
	errOut    io.Writer
	outTTY    bool
	errTTY    bool
	formatter format.Formatter
	logger    *log.Logger
	mu        sync.Mutex
}

// NewConsoleSink creates a console sink. Mode is "stdout" (default),
// "stderr" or "split".
func NewConsoleSink(opts *config.ConsoleTargetOptions, formatter format.Formatter, logger *log.Logger) (*ConsoleSink, error) {
	mode := "stdout"
	noColor := false
	if opts != nil {
		if opts.Target != "" {
			mode = opts.Target
		}
		noColor = opts.NoColor
	}
	switch mode {
	case "stdout", "stderr", "split":
	default:
		return nil, fmt.Errorf("unknown console target: %q", mode)
	}

	s := &ConsoleSink{
		mode:      mode,
		out:       os.Stdout,
		errOut:    os.Stderr,
		formatter: formatter,
		logger:    logger,
	}
	if !noColor {
		s.outTTY = term.IsTerminal(int(os.Stdout.Fd()))
		s.errTTY = term.IsTerminal(int(os.Stderr.Fd()))
	}
	return s, nil
}

func (s *ConsoleSink) Write(entry core.LogEntry) error {
	formatted, err := s.formatter.Format(entry)
	if err != nil {
		return fmt.Errorf("format entry: %w", err)
	}

	w, tty := s.destination(entry.Level)
	line := formatted
	if tty {
		if color := levelColor(entry.Level); color != "" {
			line = make([]byte, 0, len(color)+len(formatted)+len(colorReset))
			line = append(line, color...)
			line = append(line, formatted...)
			line = append(line, colorReset...)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("console write: %w", err)
	}
	return nil
}

func (s *ConsoleSink) WriteBatch(entries []core.LogEntry) error {
	for _, entry := range entries {
		if err := s.Write(entry); err != nil {
			return err
		}
	}
	return nil
}

func (s *ConsoleSink) destination(level core.Level) (io.Writer, bool) {
	switch s.mode {
	case "stderr":
		return s.errOut, s.errTTY
	case "split":
		if level >= core.LevelWarn {
			return s.errOut, s.errTTY
		}
		return s.out, s.outTTY
	default:
		return s.out, s.outTTY
	}
}

func levelColor(level core.Level) string {
	if !level.Valid() {
		return ""
	}
	return levelColors[level]
}
