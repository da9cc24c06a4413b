package target

import (
	"testing"
	"time"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func leveledEntry(msg string, level core.Level) core.LogEntry {
	return core.LogEntry{
		Time:    time.Now(),
		Source:  "test",
		Level:   level,
		Message: msg,
	}
}

func TestPostFilter(t *testing.T) {
	t.Run("TriggeredRuleGovernsWholeBatch", func(t *testing.T) {
		inner := &memTarget{}
		rules := []config.RuleConfig{{
			When:  config.FilterConfig{Patterns: []string{"timeout"}},
			Apply: config.FilterConfig{Type: "level", MinLevel: "error"},
		}}
		tgt, err := NewPostFilter(inner, rules, nil, newTestLogger())
		require.NoError(t, err)

		res := newResolutions()
		tgt.WriteBatch([]Envelope{
			{Entry: leveledEntry("starting worker", core.LevelInfo), Done: res.done("starting worker")},
			{Entry: leveledEntry("timeout talking to db", core.LevelError), Done: res.done("timeout talking to db")},
			{Entry: leveledEntry("retrying", core.LevelInfo), Done: res.done("retrying")},
		})

		// One event triggered the rule; its filter judged all three.
		assert.Equal(t, []string{"timeout talking to db"}, inner.messages())
		for _, msg := range []string{"starting worker", "retrying"} {
			err, ok := res.get(msg)
			require.True(t, ok, "filtered entry %s must resolve", msg)
			assert.NoError(t, err)
		}

		stats := tgt.Stats()
		assert.Equal(t, uint64(2), stats.Details["post_filtered"])
		assert.Equal(t, []uint64{1}, stats.Details["rule_hits"])
	})

	t.Run("NoTriggerPassesThrough", func(t *testing.T) {
		inner := &memTarget{}
		rules := []config.RuleConfig{{
			When:  config.FilterConfig{Patterns: []string{"never-present"}},
			Apply: config.FilterConfig{Type: "level", MinLevel: "fatal"},
		}}
		tgt, err := NewPostFilter(inner, rules, nil, newTestLogger())
		require.NoError(t, err)

		res := newResolutions()
		tgt.WriteBatch([]Envelope{
			{Entry: leveledEntry("a", core.LevelDebug), Done: res.done("a")},
			{Entry: leveledEntry("b", core.LevelInfo), Done: res.done("b")},
		})

		assert.Equal(t, []string{"a", "b"}, inner.messages())
		assert.Equal(t, []uint64{0}, tgt.Stats().Details["rule_hits"])
	})

	t.Run("FirstMatchingRuleWins", func(t *testing.T) {
		inner := &memTarget{}
		rules := []config.RuleConfig{
			{
				When:  config.FilterConfig{Patterns: []string{"alpha"}},
				Apply: config.FilterConfig{Patterns: []string{"keep"}, OnMiss: "ignore"},
			},
			{
				When:  config.FilterConfig{Patterns: []string{"beta"}},
				Apply: config.FilterConfig{Patterns: []string{".*"}},
			},
		}
		tgt, err := NewPostFilter(inner, rules, nil, newTestLogger())
		require.NoError(t, err)

		// Both rules could trigger; order decides.
		tgt.WriteBatch([]Envelope{
			{Entry: testEntry("alpha keep this"), Done: core.NewContinuation(nil)},
			{Entry: testEntry("beta something"), Done: core.NewContinuation(nil)},
		})

		assert.Equal(t, []string{"alpha keep this"}, inner.messages())
		assert.Equal(t, []uint64{1, 0}, tgt.Stats().Details["rule_hits"])
	})

	t.Run("DefaultFilterWhenNoRuleTriggers", func(t *testing.T) {
		inner := &memTarget{}
		def := &config.FilterConfig{Type: "level", MinLevel: "warn"}
		tgt, err := NewPostFilter(inner, nil, def, newTestLogger())
		require.NoError(t, err)

		res := newResolutions()
		tgt.WriteBatch([]Envelope{
			{Entry: leveledEntry("quiet", core.LevelInfo), Done: res.done("quiet")},
			{Entry: leveledEntry("loud", core.LevelWarn), Done: res.done("loud")},
		})

		assert.Equal(t, []string{"loud"}, inner.messages())
		err2, ok := res.get("quiet")
		require.True(t, ok)
		assert.NoError(t, err2)
	})

	t.Run("WriteIsSingleEventBatch", func(t *testing.T) {
		inner := &memTarget{}
		rules := []config.RuleConfig{{
			When:  config.FilterConfig{Patterns: []string{"drop-me"}},
			Apply: config.FilterConfig{Patterns: []string{"drop-me"}, OnMatch: "ignore"},
		}}
		tgt, err := NewPostFilter(inner, rules, nil, newTestLogger())
		require.NoError(t, err)

		done := core.NewContinuation(nil)
		tgt.Write(Envelope{Entry: testEntry("drop-me please"), Done: done})

		assert.Empty(t, inner.messages())
		assert.True(t, done.Resolved())
	})

	t.Run("InvalidRuleConfigFails", func(t *testing.T) {
		rules := []config.RuleConfig{{
			When:  config.FilterConfig{Patterns: []string{"("}},
			Apply: config.FilterConfig{Patterns: []string{".*"}},
		}}
		_, err := NewPostFilter(&memTarget{}, rules, nil, newTestLogger())
		assert.Error(t, err)
	})

	t.Run("ClosedFailsFast", func(t *testing.T) {
		inner := &memTarget{}
		tgt, err := NewPostFilter(inner, nil, nil, newTestLogger())
		require.NoError(t, err)

		tgt.Close()
		tgt.Close() // idempotent

		errCh := make(chan error, 1)
		tgt.Write(Envelope{Entry: testEntry("late"), Done: core.NewContinuation(func(err error) { errCh <- err })})
		assert.ErrorIs(t, <-errCh, ErrTargetClosed)
		assert.True(t, inner.closed.Load())
	})
}
