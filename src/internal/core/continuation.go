package core

import (
	"sync"
	"sync/atomic"
)

// Strict converts internal defects (double-resolved continuations,
// recovered filter panics) into panics. Off by default; enabled only
// for test and diagnostic builds via configuration.
var Strict atomic.Bool

var doubleResolves atomic.Uint64

// DoubleResolveCount returns how many continuations were resolved more
// than once since process start. Non-zero is a defect.
func DoubleResolveCount() uint64 {
	return doubleResolves.Load()
}

// Continuation is a single-shot completion callback carrying an
// optional error. Every entry that leaves the pipeline - delivered,
// dropped, or failed - resolves its continuation exactly once.
type Continuation struct {
	fn   func(error)
	done atomic.Bool
}

// NewContinuation wraps fn in a Continuation. A nil fn is valid and
// produces a no-op continuation that still enforces single resolution.
func NewContinuation(fn func(error)) *Continuation {
	return &Continuation{fn: fn}
}

// Resolve invokes the callback with err. Only the first call has any
// effect; later calls are counted as defects and, in strict mode,
// panic. Resolving a nil continuation is a no-op.
func (c *Continuation) Resolve(err error) {
	if c == nil {
		return
	}
	if !c.done.CompareAndSwap(false, true) {
		doubleResolves.Add(1)
		if Strict.Load() {
			panic("core: continuation resolved twice")
		}
		return
	}
	if c.fn != nil {
		c.fn(err)
	}
}

// Resolved reports whether the continuation has already fired.
func (c *Continuation) Resolved() bool {
	return c != nil && c.done.Load()
}

// Split fans c out to n child continuations. The parent resolves once
// every child has resolved, with the first non-nil child error. Used
// when one entry is written to several targets on the same level.
func (c *Continuation) Split(n int) []*Continuation {
	if n <= 1 {
		return []*Continuation{c}
	}
	agg := &aggregate{parent: c}
	agg.remaining.Store(int32(n))
	children := make([]*Continuation, n)
	for i := range children {
		children[i] = NewContinuation(agg.childDone)
	}
	return children
}

type aggregate struct {
	parent    *Continuation
	remaining atomic.Int32
	mu        sync.Mutex
	firstErr  error
}

func (a *aggregate) childDone(err error) {
	if err != nil {
		a.mu.Lock()
		if a.firstErr == nil {
			a.firstErr = err
		}
		a.mu.Unlock()
	}
	if a.remaining.Add(-1) == 0 {
		a.mu.Lock()
		err := a.firstErr
		a.mu.Unlock()
		a.parent.Resolve(err)
	}
}
