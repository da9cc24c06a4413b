package config

// FilterConfig describes one filter in a chain, a post-filtering rule
// predicate, or a post-filtering rule action.
type FilterConfig struct {
	// Type: "match" (default), "level", "rate"
	Type string `toml:"type"`

	// OnMatch / OnMiss are verdict names: "neutral", "log", "ignore",
	// "log_final", "ignore_final". Defaults depend on the filter type.
	OnMatch string `toml:"on_match"`
	OnMiss  string `toml:"on_miss"`

	// match: regex patterns over "source level message"
	Patterns []string `toml:"patterns"`
	Logic    string   `toml:"logic"` // "or" (default) or "and"

	// level: inclusive severity bounds
	MinLevel string `toml:"min_level"`
	MaxLevel string `toml:"max_level"`

	// rate: sustained budget with burst
	EventsPerSecond float64 `toml:"events_per_second"`
	Burst           int64   `toml:"burst"`
}

// RuleConfig is one post-filtering rule: when the When filter accepts
// any entry of a batch, the Apply filter is applied to every entry of
// that batch.
type RuleConfig struct {
	When  FilterConfig `toml:"when"`
	Apply FilterConfig `toml:"apply"`
}
