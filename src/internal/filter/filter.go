package filter

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"

	"github.com/lixenwraith/log"
	"golang.org/x/time/rate"
)

// Filter evaluates one log entry to a verdict. Implementations are
// pure with respect to the entry but may keep internal state across
// calls (the rate filter does).
type Filter interface {
	Evaluate(entry core.LogEntry) core.FilterResult
	Name() string
}

// New creates a filter from configuration. Invalid configuration fails
// here, never at evaluation time.
func New(cfg config.FilterConfig, logger *log.Logger) (Filter, error) {
	switch strings.ToLower(cfg.Type) {
	case "match", "":
		return newMatchFilter(cfg, logger)
	case "level":
		return newLevelFilter(cfg)
	case "rate":
		return newRateFilter(cfg)
	default:
		return nil, fmt.Errorf("unknown filter type: %q", cfg.Type)
	}
}

// resultOrDefault parses a configured verdict string, falling back to
// def for the empty string.
func resultOrDefault(s string, def core.FilterResult) (core.FilterResult, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return core.ParseFilterResult(s)
}

// MatchFilter applies regex patterns to the entry's source, level and
// message, the way the relay matches raw lines.
type MatchFilter struct {
	patterns []*regexp.Regexp
	logicAnd bool
	onMatch  core.FilterResult
	onMiss   core.FilterResult
	logger   *log.Logger

	// Statistics
	totalProcessed atomic.Uint64
	totalMatched   atomic.Uint64
}

func newMatchFilter(cfg config.FilterConfig, logger *log.Logger) (*MatchFilter, error) {
	if len(cfg.Patterns) == 0 {
		return nil, fmt.Errorf("match filter requires at least one pattern")
	}

	f := &MatchFilter{
		patterns: make([]*regexp.Regexp, 0, len(cfg.Patterns)),
		logger:   logger,
	}

	switch strings.ToLower(cfg.Logic) {
	case "or", "":
		f.logicAnd = false
	case "and":
		f.logicAnd = true
	default:
		return nil, fmt.Errorf("unknown filter logic: %q", cfg.Logic)
	}

	for i, pattern := range cfg.Patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern[%d] '%s': %w", i, pattern, err)
		}
		f.patterns = append(f.patterns, re)
	}

	var err error
	if f.onMatch, err = resultOrDefault(cfg.OnMatch, core.ResultLog); err != nil {
		return nil, fmt.Errorf("on_match: %w", err)
	}
	if f.onMiss, err = resultOrDefault(cfg.OnMiss, core.ResultNeutral); err != nil {
		return nil, fmt.Errorf("on_miss: %w", err)
	}

	return f, nil
}

func (f *MatchFilter) Evaluate(entry core.LogEntry) core.FilterResult {
	f.totalProcessed.Add(1)

	text := entry.Message
	if entry.Level.Valid() {
		text = entry.Level.String() + " " + text
	}
	if entry.Source != "" {
		text = entry.Source + " " + text
	}

	if f.matches(text) {
		f.totalMatched.Add(1)
		return f.onMatch
	}
	return f.onMiss
}

func (f *MatchFilter) matches(text string) bool {
	if f.logicAnd {
		for _, re := range f.patterns {
			if !re.MatchString(text) {
				return false
			}
		}
		return true
	}
	for _, re := range f.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (f *MatchFilter) Name() string { return "match" }

// Stats returns match filter statistics.
func (f *MatchFilter) Stats() map[string]any {
	return map[string]any{
		"type":            "match",
		"pattern_count":   len(f.patterns),
		"total_processed": f.totalProcessed.Load(),
		"total_matched":   f.totalMatched.Load(),
	}
}

// LevelFilter yields its on-match verdict for entries inside the
// configured severity range. Outside the range defaults to Ignore,
// which makes a bare min_level behave as a threshold.
type LevelFilter struct {
	min     core.Level
	max     core.Level
	onMatch core.FilterResult
	onMiss  core.FilterResult
}

func newLevelFilter(cfg config.FilterConfig) (*LevelFilter, error) {
	f := &LevelFilter{min: core.LevelTrace, max: core.LevelFatal}

	var err error
	if cfg.MinLevel != "" {
		if f.min, err = core.ParseLevel(cfg.MinLevel); err != nil {
			return nil, fmt.Errorf("min_level: %w", err)
		}
	}
	if cfg.MaxLevel != "" {
		if f.max, err = core.ParseLevel(cfg.MaxLevel); err != nil {
			return nil, fmt.Errorf("max_level: %w", err)
		}
	}
	if f.min > f.max {
		return nil, fmt.Errorf("min_level %s above max_level %s", f.min, f.max)
	}

	if f.onMatch, err = resultOrDefault(cfg.OnMatch, core.ResultNeutral); err != nil {
		return nil, fmt.Errorf("on_match: %w", err)
	}
	if f.onMiss, err = resultOrDefault(cfg.OnMiss, core.ResultIgnore); err != nil {
		return nil, fmt.Errorf("on_miss: %w", err)
	}

	return f, nil
}

func (f *LevelFilter) Evaluate(entry core.LogEntry) core.FilterResult {
	if entry.Level >= f.min && entry.Level <= f.max {
		return f.onMatch
	}
	return f.onMiss
}

func (f *LevelFilter) Name() string { return "level" }

// RateFilter drops entries above a sustained events-per-second budget
// with a configurable burst.
type RateFilter struct {
	limiter *rate.Limiter
	onMiss  core.FilterResult

	totalDropped atomic.Uint64
}

func newRateFilter(cfg config.FilterConfig) (*RateFilter, error) {
	if cfg.EventsPerSecond <= 0 {
		return nil, fmt.Errorf("rate filter requires positive 'events_per_second'")
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = int64(cfg.EventsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	onMiss, err := resultOrDefault(cfg.OnMiss, core.ResultIgnore)
	if err != nil {
		return nil, fmt.Errorf("on_miss: %w", err)
	}

	return &RateFilter{
		limiter: rate.NewLimiter(rate.Limit(cfg.EventsPerSecond), int(burst)),
		onMiss:  onMiss,
	}, nil
}

func (f *RateFilter) Evaluate(entry core.LogEntry) core.FilterResult {
	if f.limiter.Allow() {
		return core.ResultNeutral
	}
	f.totalDropped.Add(1)
	return f.onMiss
}

func (f *RateFilter) Name() string { return "rate" }

// Dropped returns the number of entries rejected by the rate budget.
func (f *RateFilter) Dropped() uint64 {
	return f.totalDropped.Load()
}
