package filter

import (
	"testing"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticFilter returns a fixed verdict; evalCount tracks short-circuit
// behavior.
type staticFilter struct {
	result    core.FilterResult
	evalCount int
}

func (f *staticFilter) Evaluate(core.LogEntry) core.FilterResult {
	f.evalCount++
	return f.result
}

func (f *staticFilter) Name() string { return "static" }

type panicFilter struct{}

func (panicFilter) Evaluate(core.LogEntry) core.FilterResult { panic("filter bug") }
func (panicFilter) Name() string                             { return "panic" }

func chainOf(t *testing.T, def core.FilterResult, filters ...Filter) *Chain {
	t.Helper()
	c, err := NewChain(nil, "", newTestLogger())
	require.NoError(t, err)
	c.filters = filters
	c.defaultRes = def
	return c
}

func TestChain_ShortCircuit(t *testing.T) {
	entry := core.LogEntry{Message: "x"}

	t.Run("NeutralIgnoreLog", func(t *testing.T) {
		first := &staticFilter{result: core.ResultNeutral}
		second := &staticFilter{result: core.ResultIgnore}
		third := &staticFilter{result: core.ResultLog}
		c := chainOf(t, core.ResultLog, first, second, third)

		assert.Equal(t, core.ResultIgnore, c.Evaluate(entry))
		assert.Equal(t, 1, first.evalCount)
		assert.Equal(t, 1, second.evalCount)
		assert.Equal(t, 0, third.evalCount, "third filter must not be evaluated")
	})

	t.Run("NeutralLogFinalIgnore", func(t *testing.T) {
		first := &staticFilter{result: core.ResultNeutral}
		second := &staticFilter{result: core.ResultLogFinal}
		third := &staticFilter{result: core.ResultIgnore}
		c := chainOf(t, core.ResultLog, first, second, third)

		assert.Equal(t, core.ResultLogFinal, c.Evaluate(entry))
		assert.Equal(t, 0, third.evalCount)
	})
}

func TestChain_DefaultAction(t *testing.T) {
	entry := core.LogEntry{Message: "x"}

	t.Run("EmptyChainPasses", func(t *testing.T) {
		c, err := NewChain(nil, "", newTestLogger())
		require.NoError(t, err)
		assert.Equal(t, core.ResultLog, c.Evaluate(entry))
	})

	t.Run("AllNeutralYieldsDefault", func(t *testing.T) {
		c := chainOf(t, core.ResultIgnore, &staticFilter{result: core.ResultNeutral})
		assert.Equal(t, core.ResultIgnore, c.Evaluate(entry))
	})

	t.Run("NeutralDefaultCoercedToLog", func(t *testing.T) {
		c, err := NewChain(nil, "neutral", newTestLogger())
		require.NoError(t, err)
		assert.Equal(t, core.ResultLog, c.Evaluate(entry))
	})

	t.Run("BadDefaultFailsConstruction", func(t *testing.T) {
		_, err := NewChain(nil, "bogus", newTestLogger())
		assert.Error(t, err)
	})
}

func TestChain_FromConfig(t *testing.T) {
	configs := []config.FilterConfig{
		{Type: "level", MinLevel: "info"},
		{Patterns: []string{"heartbeat"}, OnMatch: "ignore"},
	}
	c, err := NewChain(configs, "log", newTestLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, core.ResultIgnore,
		c.Evaluate(core.LogEntry{Level: core.LevelDebug, Message: "below threshold"}))
	assert.Equal(t, core.ResultIgnore,
		c.Evaluate(core.LogEntry{Level: core.LevelInfo, Message: "heartbeat ok"}))
	assert.Equal(t, core.ResultLog,
		c.Evaluate(core.LogEntry{Level: core.LevelInfo, Message: "real work"}))

	t.Run("BadFilterFailsConstruction", func(t *testing.T) {
		_, err := NewChain([]config.FilterConfig{{Type: "bogus"}}, "", newTestLogger())
		assert.Error(t, err)
	})
}

func TestChain_PanicTreatedAsIgnore(t *testing.T) {
	entry := core.LogEntry{Message: "x"}
	after := &staticFilter{result: core.ResultLog}
	c := chainOf(t, core.ResultLog, panicFilter{}, after)

	assert.Equal(t, core.ResultIgnore, c.Evaluate(entry))
	assert.Equal(t, 0, after.evalCount, "panic verdict is Ignore, not Neutral")
}

func TestChain_IndependentPerEntry(t *testing.T) {
	// A final verdict for one entry must not leak into the next.
	f, err := New(config.FilterConfig{Patterns: []string{"stop"}, OnMatch: "ignore_final"}, newTestLogger())
	require.NoError(t, err)
	c := chainOf(t, core.ResultLog, f)

	assert.Equal(t, core.ResultIgnoreFinal, c.Evaluate(core.LogEntry{Message: "stop here"}))
	assert.Equal(t, core.ResultLog, c.Evaluate(core.LogEntry{Message: "carry on"}))
}

func TestSafe_StrictModeRepanics(t *testing.T) {
	core.Strict.Store(true)
	defer core.Strict.Store(false)

	assert.Panics(t, func() {
		Safe(panicFilter{}, core.LogEntry{}, newTestLogger())
	})
}
