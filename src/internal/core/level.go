package core

import (
	"fmt"
	"strings"
)

// Level is the severity of a log entry. Dispatch routing is per-level.
type Level int8

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal

	levelCount = int(LevelFatal) + 1
)

// LevelCount is the number of distinct severity levels.
const LevelCount = levelCount

func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	default:
		return fmt.Sprintf("level(%d)", int8(l))
	}
}

// Valid reports whether l is one of the defined severity levels.
func (l Level) Valid() bool {
	return l >= LevelTrace && l <= LevelFatal
}

// ParseLevel converts a level name to a Level. Matching is
// case-insensitive and accepts common aliases ("warning", "err").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "information":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error", "err":
		return LevelError, nil
	case "fatal", "critical":
		return LevelFatal, nil
	default:
		return LevelInfo, fmt.Errorf("unknown level: %q", s)
	}
}
