package filter

import (
	"fmt"
	"sync/atomic"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"

	"github.com/lixenwraith/log"
)

// Chain evaluates an ordered list of filters against one entry,
// short-circuiting on the first non-neutral verdict. An exhausted or
// empty chain yields the configured default action.
type Chain struct {
	filters    []Filter
	defaultRes core.FilterResult
	logger     *log.Logger

	// Statistics
	totalProcessed atomic.Uint64
	totalAccepted  atomic.Uint64
}

// NewChain builds a chain from filter configurations. A neutral (or
// empty) default action is coerced to Log so an empty chain passes
// everything.
func NewChain(configs []config.FilterConfig, defaultAction string, logger *log.Logger) (*Chain, error) {
	def, err := resultOrDefault(defaultAction, core.ResultLog)
	if err != nil {
		return nil, fmt.Errorf("default action: %w", err)
	}
	if def == core.ResultNeutral {
		def = core.ResultLog
	}

	chain := &Chain{
		filters:    make([]Filter, 0, len(configs)),
		defaultRes: def,
		logger:     logger,
	}

	for i, cfg := range configs {
		f, err := New(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("filter[%d]: %w", i, err)
		}
		chain.filters = append(chain.filters, f)
	}

	return chain, nil
}

// Evaluate returns the first non-neutral verdict, or the default action
// when every filter stays neutral. A panicking filter never reaches the
// caller: it is reported to diagnostics and treated as Ignore.
func (c *Chain) Evaluate(entry core.LogEntry) core.FilterResult {
	c.totalProcessed.Add(1)

	for _, f := range c.filters {
		res := Safe(f, entry, c.logger)
		if res != core.ResultNeutral {
			if res.ShouldLog() {
				c.totalAccepted.Add(1)
			}
			return res
		}
	}

	if c.defaultRes.ShouldLog() {
		c.totalAccepted.Add(1)
	}
	return c.defaultRes
}

// Len returns the number of filters in the chain.
func (c *Chain) Len() int {
	return len(c.filters)
}

// Stats returns aggregated chain statistics.
func (c *Chain) Stats() map[string]any {
	return map[string]any{
		"filter_count":    len(c.filters),
		"default":         c.defaultRes.String(),
		"total_processed": c.totalProcessed.Load(),
		"total_accepted":  c.totalAccepted.Load(),
	}
}

// Safe is the single-filter evaluation form shared by the chain and the
// post-filtering wrapper. A filter panic is recovered and reported;
// the entry is dropped for this target only. Strict mode re-panics.
func Safe(f Filter, entry core.LogEntry, logger *log.Logger) (res core.FilterResult) {
	defer func() {
		if r := recover(); r != nil {
			if core.Strict.Load() {
				panic(r)
			}
			if logger != nil {
				logger.Error("msg", "Filter evaluation panic",
					"component", "filter",
					"filter", f.Name(),
					"panic", r)
			}
			res = core.ResultIgnore
		}
	}()
	return f.Evaluate(entry)
}
