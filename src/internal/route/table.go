package route

import (
	"logcourier/src/internal/core"
	"logcourier/src/internal/filter"
	"logcourier/src/internal/target"

	"github.com/lixenwraith/log"
)

// Node is one step in a level's dispatch list: a target guarded by a
// filter chain. Immutable after build; a nil chain accepts everything.
type Node struct {
	Target  target.Target
	Filters *filter.Chain
	Next    *Node
}

// Table routes entries to targets by severity level. Each level has
// its own dispatch list; lists are built once and never mutated, so
// dispatch runs without locks.
type Table struct {
	heads   [core.LevelCount]*Node
	targets []target.Target
	logger  *log.Logger
}

// Builder accumulates routes in configuration order.
type Builder struct {
	heads  [core.LevelCount]*Node
	tails  [core.LevelCount]*Node
	seen   map[target.Target]struct{}
	order  []target.Target
	logger *log.Logger
}

func NewBuilder(logger *log.Logger) *Builder {
	return &Builder{
		seen:   make(map[target.Target]struct{}),
		logger: logger,
	}
}

// Add appends one target with its chain to the dispatch list of every
// given level. The same target may appear on multiple levels; it is
// tracked once for flush and close.
func (b *Builder) Add(levels []core.Level, tgt target.Target, chain *filter.Chain) {
	if _, ok := b.seen[tgt]; !ok {
		b.seen[tgt] = struct{}{}
		b.order = append(b.order, tgt)
	}
	for _, level := range levels {
		if !level.Valid() {
			continue
		}
		node := &Node{Target: tgt, Filters: chain}
		if b.tails[level] == nil {
			b.heads[level] = node
		} else {
			b.tails[level].Next = node
		}
		b.tails[level] = node
	}
}

func (b *Builder) Build() *Table {
	return &Table{
		heads:   b.heads,
		targets: b.order,
		logger:  b.logger,
	}
}

// Dispatch walks the entry's level list, evaluating each node's chain
// and fanning the entry out to every accepting target. A final verdict
// (LogFinal/IgnoreFinal) stops the walk after its own node. With no
// accepting target the continuation resolves nil immediately.
func (t *Table) Dispatch(entry core.LogEntry, done *core.Continuation) {
	if !entry.Level.Valid() {
		t.logger.Debug("msg", "Entry with invalid level discarded",
			"component", "route",
			"level", int8(entry.Level))
		done.Resolve(nil)
		return
	}

	var accept []target.Target

	// Consecutive nodes sharing a chain pointer reuse its verdict.
	var lastChain *filter.Chain
	var lastRes core.FilterResult

	for n := t.heads[entry.Level]; n != nil; n = n.Next {
		var res core.FilterResult
		switch {
		case n.Filters == nil:
			res = core.ResultLog
		case n.Filters == lastChain:
			res = lastRes
		default:
			res = n.Filters.Evaluate(entry)
			lastChain = n.Filters
			lastRes = res
		}

		if res.ShouldLog() {
			accept = append(accept, n.Target)
		}
		if res.Final() {
			break
		}
	}

	if len(accept) == 0 {
		done.Resolve(nil)
		return
	}

	children := done.Split(len(accept))
	for i, tgt := range accept {
		tgt.Write(target.Envelope{Entry: entry, Done: children[i]})
	}
}

// FlushAll fans a flush barrier out to every distinct target; done
// resolves when all of them have.
func (t *Table) FlushAll(done *core.Continuation) {
	if len(t.targets) == 0 {
		done.Resolve(nil)
		return
	}
	children := done.Split(len(t.targets))
	for i, tgt := range t.targets {
		tgt.Flush(children[i])
	}
}

// CloseAll closes every distinct target once.
func (t *Table) CloseAll() {
	for _, tgt := range t.targets {
		tgt.Close()
	}
}

// Targets returns the distinct targets in configuration order.
func (t *Table) Targets() []target.Target {
	return t.targets
}

// Stats aggregates per-target statistics.
func (t *Table) Stats() []target.TargetStats {
	out := make([]target.TargetStats, 0, len(t.targets))
	for _, tgt := range t.targets {
		out = append(out, tgt.Stats())
	}
	return out
}
