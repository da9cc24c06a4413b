package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContinuation_ResolveOnce(t *testing.T) {
	calls := 0
	var got error
	c := NewContinuation(func(err error) {
		calls++
		got = err
	})

	c.Resolve(nil)
	c.Resolve(errors.New("late"))

	assert.Equal(t, 1, calls)
	assert.NoError(t, got)
	assert.True(t, c.Resolved())
}

func TestContinuation_NilSafe(t *testing.T) {
	var c *Continuation
	assert.NotPanics(t, func() { c.Resolve(nil) })
	assert.False(t, c.Resolved())

	// Nil callback still enforces single resolution
	n := NewContinuation(nil)
	n.Resolve(errors.New("x"))
	assert.True(t, n.Resolved())
}

func TestContinuation_DoubleResolveCounted(t *testing.T) {
	before := DoubleResolveCount()
	c := NewContinuation(func(error) {})
	c.Resolve(nil)
	c.Resolve(nil)
	assert.Equal(t, before+1, DoubleResolveCount())
}

func TestContinuation_ConcurrentResolve(t *testing.T) {
	calls := 0
	var mu sync.Mutex
	c := NewContinuation(func(error) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Resolve(nil)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
}

func TestContinuation_Split(t *testing.T) {
	t.Run("AllSucceed", func(t *testing.T) {
		var got error
		fired := false
		parent := NewContinuation(func(err error) {
			fired = true
			got = err
		})

		children := parent.Split(3)
		assert.Len(t, children, 3)

		children[0].Resolve(nil)
		children[1].Resolve(nil)
		assert.False(t, fired)
		children[2].Resolve(nil)
		assert.True(t, fired)
		assert.NoError(t, got)
	})

	t.Run("FirstErrorWins", func(t *testing.T) {
		errA := errors.New("a")
		errB := errors.New("b")
		var got error
		parent := NewContinuation(func(err error) { got = err })

		children := parent.Split(3)
		children[0].Resolve(nil)
		children[1].Resolve(errA)
		children[2].Resolve(errB)

		assert.Equal(t, errA, got)
	})

	t.Run("SingleChildIsParent", func(t *testing.T) {
		parent := NewContinuation(func(error) {})
		children := parent.Split(1)
		assert.Len(t, children, 1)
		assert.Same(t, parent, children[0])
	})

	t.Run("Concurrent", func(t *testing.T) {
		fired := 0
		parent := NewContinuation(func(error) { fired++ })

		const n = 64
		children := parent.Split(n)
		var wg sync.WaitGroup
		for _, child := range children {
			wg.Add(1)
			go func() {
				defer wg.Done()
				child.Resolve(nil)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, fired)
	})
}

func TestParseLevel(t *testing.T) {
	testCases := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"trace", LevelTrace, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"err", LevelError, false},
		{"critical", LevelFatal, false},
		{" info ", LevelInfo, false},
		{"verbose", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			lvl, err := ParseLevel(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, lvl)
			}
		})
	}
}

func TestFilterResult(t *testing.T) {
	assert.True(t, ResultLogFinal.Final())
	assert.True(t, ResultIgnoreFinal.Final())
	assert.False(t, ResultLog.Final())
	assert.False(t, ResultNeutral.Final())

	assert.True(t, ResultLog.ShouldLog())
	assert.True(t, ResultLogFinal.ShouldLog())
	assert.False(t, ResultIgnore.ShouldLog())
	assert.False(t, ResultIgnoreFinal.ShouldLog())

	r, err := ParseFilterResult("ignore_final")
	assert.NoError(t, err)
	assert.Equal(t, ResultIgnoreFinal, r)

	_, err = ParseFilterResult("bogus")
	assert.Error(t, err)
}
