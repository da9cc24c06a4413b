package core

import (
	"fmt"
	"strings"
)

// FilterResult is the verdict of a filter for one log entry.
type FilterResult int8

const (
	// ResultNeutral defers the decision to the next filter in the chain,
	// or to the chain's default action when the chain is exhausted.
	ResultNeutral FilterResult = iota

	// ResultLog accepts the entry for the current target.
	ResultLog

	// ResultIgnore drops the entry for the current target.
	ResultIgnore

	// ResultLogFinal accepts the entry and stops evaluation of any
	// remaining chain nodes for this entry.
	ResultLogFinal

	// ResultIgnoreFinal drops the entry and stops evaluation of any
	// remaining chain nodes for this entry.
	ResultIgnoreFinal
)

func (r FilterResult) String() string {
	switch r {
	case ResultNeutral:
		return "neutral"
	case ResultLog:
		return "log"
	case ResultIgnore:
		return "ignore"
	case ResultLogFinal:
		return "log_final"
	case ResultIgnoreFinal:
		return "ignore_final"
	default:
		return fmt.Sprintf("result(%d)", int8(r))
	}
}

// Final reports whether the verdict stops the walk over the remaining
// chain nodes for this entry.
func (r FilterResult) Final() bool {
	return r == ResultLogFinal || r == ResultIgnoreFinal
}

// ShouldLog reports whether the verdict accepts the entry.
func (r FilterResult) ShouldLog() bool {
	return r == ResultLog || r == ResultLogFinal
}

// ParseFilterResult converts a configuration string to a FilterResult.
func ParseFilterResult(s string) (FilterResult, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "neutral", "":
		return ResultNeutral, nil
	case "log":
		return ResultLog, nil
	case "ignore":
		return ResultIgnore, nil
	case "log_final", "logfinal":
		return ResultLogFinal, nil
	case "ignore_final", "ignorefinal":
		return ResultIgnoreFinal, nil
	default:
		return ResultNeutral, fmt.Errorf("unknown filter result: %q", s)
	}
}
