package target

import (
	"fmt"
	"sync/atomic"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"
	"logcourier/src/internal/filter"

	"github.com/lixenwraith/log"
)

// PostFilteringRule pairs a trigger with the filter it activates. When
// the trigger accepts any event in a batch, Apply decides the fate of
// every event in that batch.
type PostFilteringRule struct {
	When  filter.Filter
	Apply filter.Filter
}

// PostFilterTarget wraps a target with ordered post-filtering rules.
// Rule selection is batch-scoped: the first rule whose trigger accepts
// any event in the batch wins, and its Apply filter is evaluated per
// event. With no matching rule the default filter applies; a nil
// default passes everything through.
type PostFilterTarget struct {
	inner    Target
	rules    []PostFilteringRule
	def      filter.Filter
	logger   *log.Logger
	closed   atomic.Bool

	// Statistics
	totalFiltered atomic.Uint64
	ruleHits      []atomic.Uint64
}

// NewPostFilter builds the wrapper from validated rule configurations.
func NewPostFilter(inner Target, ruleConfigs []config.RuleConfig, def *config.FilterConfig, logger *log.Logger) (*PostFilterTarget, error) {
	if inner == nil {
		return nil, fmt.Errorf("post-filter target requires a wrapped target")
	}

	rules := make([]PostFilteringRule, 0, len(ruleConfigs))
	for i, rc := range ruleConfigs {
		when, err := filter.New(rc.When, logger)
		if err != nil {
			return nil, fmt.Errorf("rule[%d] when: %w", i, err)
		}
		apply, err := filter.New(rc.Apply, logger)
		if err != nil {
			return nil, fmt.Errorf("rule[%d] apply: %w", i, err)
		}
		rules = append(rules, PostFilteringRule{When: when, Apply: apply})
	}

	var defFilter filter.Filter
	if def != nil {
		f, err := filter.New(*def, logger)
		if err != nil {
			return nil, fmt.Errorf("default filter: %w", err)
		}
		defFilter = f
	}

	return &PostFilterTarget{
		inner:    inner,
		rules:    rules,
		def:      defFilter,
		logger:   logger,
		ruleHits: make([]atomic.Uint64, len(rules)),
	}, nil
}

func (p *PostFilterTarget) Write(ev Envelope) {
	p.WriteBatch([]Envelope{ev})
}

func (p *PostFilterTarget) WriteBatch(batch []Envelope) {
	if len(batch) == 0 {
		return
	}
	if p.closed.Load() {
		for _, ev := range batch {
			ev.Done.Resolve(ErrTargetClosed)
		}
		return
	}

	apply := p.selectFilter(batch)
	if apply == nil {
		p.inner.WriteBatch(batch)
		return
	}

	kept := batch[:0]
	for _, ev := range batch {
		// A standalone filter has no chain behind it, so a neutral
		// verdict falls through to accept.
		res := filter.Safe(apply, ev.Entry, p.logger)
		if res == core.ResultNeutral || res.ShouldLog() {
			kept = append(kept, ev)
			continue
		}
		p.totalFiltered.Add(1)
		ev.Done.Resolve(nil)
	}
	if len(kept) > 0 {
		p.inner.WriteBatch(kept)
	}
}

func (p *PostFilterTarget) Flush(done *core.Continuation) {
	p.inner.Flush(done)
}

func (p *PostFilterTarget) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	p.inner.Close()
}

func (p *PostFilterTarget) Stats() TargetStats {
	stats := p.inner.Stats()
	hits := make([]uint64, len(p.ruleHits))
	for i := range p.ruleHits {
		hits[i] = p.ruleHits[i].Load()
	}
	if stats.Details == nil {
		stats.Details = map[string]any{}
	}
	stats.Details["post_filtered"] = p.totalFiltered.Load()
	stats.Details["rule_hits"] = hits
	return stats
}

// selectFilter picks the filter governing this batch: the first rule
// triggered by any event, else the default (which may be nil).
func (p *PostFilterTarget) selectFilter(batch []Envelope) filter.Filter {
	for i, rule := range p.rules {
		for _, ev := range batch {
			if filter.Safe(rule.When, ev.Entry, p.logger).ShouldLog() {
				p.ruleHits[i].Add(1)
				return rule.Apply
			}
		}
	}
	return p.def
}
