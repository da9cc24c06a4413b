package queue

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lixenwraith/log"
)

// OverflowAction is the rule applied when a bounded queue is full.
type OverflowAction int8

const (
	// OverflowDiscard drops the newest item; the drop callback receives
	// a nil error because a policy drop is not a failure.
	OverflowDiscard OverflowAction = iota

	// OverflowBlock suspends the producer until space frees or the
	// block timeout elapses, after which it degrades to a discard with
	// ErrBlockTimeout.
	OverflowBlock

	// OverflowGrow lets the queue exceed its capacity; crossing the
	// high-water mark reports a one-shot warning to diagnostics.
	OverflowGrow
)

func (a OverflowAction) String() string {
	switch a {
	case OverflowDiscard:
		return "discard"
	case OverflowBlock:
		return "block"
	case OverflowGrow:
		return "grow"
	default:
		return fmt.Sprintf("overflow(%d)", int8(a))
	}
}

// ParseOverflowAction converts a configuration string to an action.
func ParseOverflowAction(s string) (OverflowAction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "discard", "":
		return OverflowDiscard, nil
	case "block":
		return OverflowBlock, nil
	case "grow":
		return OverflowGrow, nil
	default:
		return OverflowDiscard, fmt.Errorf("unknown overflow action: %q", s)
	}
}

var (
	// ErrBlockTimeout is reported for an item dropped after the block
	// policy's wait expired.
	ErrBlockTimeout = errors.New("queue: block timeout elapsed")

	// ErrClosed is reported for an item pushed after Close.
	ErrClosed = errors.New("queue: closed")
)

// Config holds construction parameters for a Queue.
type Config struct {
	Capacity     int
	Overflow     OverflowAction
	BlockTimeout time.Duration
}

func (c Config) validate() error {
	if c.Capacity < 1 {
		return fmt.Errorf("queue capacity must be positive: %d", c.Capacity)
	}
	if c.Overflow == OverflowBlock && c.BlockTimeout <= 0 {
		return fmt.Errorf("block overflow requires a positive block timeout")
	}
	if c.Overflow != OverflowBlock && c.BlockTimeout != 0 {
		return fmt.Errorf("block timeout is only valid with the block overflow action")
	}
	return nil
}

// Queue is a bounded FIFO shared between one consumer and any number of
// producers. It is the only structure mutated from both sides of an
// async boundary; every size/capacity check happens under one mutex.
//
// Items rejected by the overflow policy or by Close are handed to the
// construction-time drop callback so their continuations still resolve
// exactly once.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	items    []T
	cfg      Config
	closed   bool
	warned   bool
	onDrop   func(T, error)
	logger   *log.Logger
}

// New creates a bounded queue. onDrop may be nil when dropped items
// carry no completion state.
func New[T any](cfg Config, onDrop func(T, error), logger *log.Logger) (*Queue[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	q := &Queue[T]{
		items:  make([]T, 0, cfg.Capacity),
		cfg:    cfg,
		onDrop: onDrop,
		logger: logger,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)
	return q, nil
}

// Push appends item, applying the overflow policy when the queue is
// full. The item is either queued or handed to the drop callback; it is
// never silently lost.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		q.drop(item, ErrClosed)
		return
	}

	if len(q.items) < q.cfg.Capacity {
		q.append(item)
		q.mu.Unlock()
		return
	}

	switch q.cfg.Overflow {
	case OverflowDiscard:
		q.mu.Unlock()
		q.drop(item, nil)

	case OverflowBlock:
		if q.waitNotFull() {
			if q.closed {
				q.mu.Unlock()
				q.drop(item, ErrClosed)
				return
			}
			q.append(item)
			q.mu.Unlock()
			return
		}
		q.mu.Unlock()
		q.drop(item, ErrBlockTimeout)

	case OverflowGrow:
		q.append(item)
		if !q.warned && len(q.items) > q.cfg.Capacity {
			q.warned = true
			if q.logger != nil {
				q.logger.Warn("msg", "Queue grew past configured capacity",
					"component", "queue",
					"capacity", q.cfg.Capacity,
					"length", len(q.items))
			}
		}
		q.mu.Unlock()
	}
}

// ForcePush appends item regardless of capacity, so a full queue under
// the discard policy cannot drop a flush barrier. Returns false when
// the queue is already closed.
func (q *Queue[T]) ForcePush(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.append(item)
	return true
}

// PushFront prepends items ahead of everything queued, preserving their
// relative order. Used to requeue payloads after a failed network
// drain; requeued items bypass capacity so the policy cannot drop them.
func (q *Queue[T]) PushFront(items ...T) {
	if len(items) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		// Close already drained; the caller's close path owns these.
		q.items = append(items, q.items...)
		return
	}
	q.items = append(items, q.items...)
	q.notEmpty.Signal()
}

// DrainWait blocks until at least one item is available or the queue is
// closed, then removes and returns up to max items in FIFO order. A nil
// return means the queue is closed and empty; leftovers after Close are
// still returned until exhausted.
func (q *Queue[T]) DrainWait(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return nil
	}

	n := len(q.items)
	if max > 0 && n > max {
		n = max
	}
	out := make([]T, n)
	copy(out, q.items[:n])
	rest := copy(q.items, q.items[n:])
	clear(q.items[rest:])
	q.items = q.items[:rest]
	q.notFull.Broadcast()
	return out
}

// Len returns the current queue length.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops intake and wakes all waiters. Idempotent. Items still
// queued remain drainable via DrainWait.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *Queue[T]) append(item T) {
	q.items = append(q.items, item)
	q.notEmpty.Signal()
}

func (q *Queue[T]) drop(item T, err error) {
	if q.onDrop != nil {
		q.onDrop(item, err)
	}
}

// waitNotFull blocks until space frees, the queue closes, or the block
// timeout expires. Returns true when the producer may append. Called
// with the mutex held; returns with it held.
func (q *Queue[T]) waitNotFull() bool {
	deadline := time.Now().Add(q.cfg.BlockTimeout)
	timer := time.AfterFunc(q.cfg.BlockTimeout, func() {
		q.mu.Lock()
		q.notFull.Broadcast()
		q.mu.Unlock()
	})
	defer timer.Stop()

	for len(q.items) >= q.cfg.Capacity && !q.closed {
		if !time.Now().Before(deadline) {
			return false
		}
		q.notFull.Wait()
	}
	return true
}
