package target

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"logcourier/src/internal/config"
	"logcourier/src/internal/core"
	"logcourier/src/internal/queue"

	"github.com/lixenwraith/log"
)

const defaultAsyncBatchSize = 100

// AsyncConfig holds construction parameters for an AsyncTarget.
type AsyncConfig struct {
	Capacity     int
	Overflow     queue.OverflowAction
	BlockTimeout time.Duration
	BatchSize    int
}

// AsyncConfigFromOptions converts validated TOML options.
func AsyncConfigFromOptions(opts *config.AsyncOptions) (AsyncConfig, error) {
	action, err := queue.ParseOverflowAction(opts.OverflowAction)
	if err != nil {
		return AsyncConfig{}, err
	}
	return AsyncConfig{
		Capacity:     int(opts.Capacity),
		Overflow:     action,
		BlockTimeout: time.Duration(opts.BlockTimeoutMS) * time.Millisecond,
		BatchSize:    int(opts.BatchSize),
	}, nil
}

// asyncItem is one queue slot: either an envelope or a flush barrier.
type asyncItem struct {
	ev    Envelope
	flush *core.Continuation
}

// AsyncTarget decouples producers from a wrapped target with a bounded
// queue and a dedicated worker. Entries accepted by the same wrapper
// reach the wrapped target in FIFO order; dropped entries are omitted,
// never reordered. The worker starts lazily on first write and writes
// to the wrapped target in batches of at most BatchSize.
type AsyncTarget struct {
	inner  Target
	cfg    AsyncConfig
	q      *queue.Queue[asyncItem]
	logger *log.Logger

	flushes flushTracker

	startWorker sync.Once
	workerDone  chan struct{}
	started     atomic.Bool

	closed    atomic.Bool
	closeOnce sync.Once

	startTime time.Time

	// Statistics
	totalEnqueued atomic.Uint64
	totalDropped  atomic.Uint64
	totalBatches  atomic.Uint64
	lastWrite     atomic.Value // time.Time
}

// NewAsync wraps inner in an async dispatch wrapper. inner is owned by
// the wrapper from now on: closing the wrapper closes inner.
func NewAsync(inner Target, cfg AsyncConfig, logger *log.Logger) (*AsyncTarget, error) {
	if inner == nil {
		return nil, fmt.Errorf("async target requires a wrapped target")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultAsyncBatchSize
	}

	a := &AsyncTarget{
		inner:      inner,
		cfg:        cfg,
		logger:     logger,
		workerDone: make(chan struct{}),
		startTime:  time.Now(),
	}
	a.lastWrite.Store(time.Time{})

	q, err := queue.New[asyncItem](queue.Config{
		Capacity:     cfg.Capacity,
		Overflow:     cfg.Overflow,
		BlockTimeout: cfg.BlockTimeout,
	}, a.onDrop, logger)
	if err != nil {
		return nil, err
	}
	a.q = q

	return a, nil
}

// Write queues one envelope, applying the overflow policy when full.
// After Close the envelope fails fast with ErrTargetClosed.
func (a *AsyncTarget) Write(ev Envelope) {
	if a.closed.Load() {
		ev.Done.Resolve(ErrTargetClosed)
		return
	}
	a.ensureWorker()
	a.totalEnqueued.Add(1)
	a.q.Push(asyncItem{ev: ev})
}

// WriteBatch queues each envelope individually; the overflow policy
// applies per entry.
func (a *AsyncTarget) WriteBatch(batch []Envelope) {
	for _, ev := range batch {
		a.Write(ev)
	}
}

// Flush places a barrier behind everything queued so far. The barrier
// bypasses capacity so a full discard-policy queue cannot drop it. It
// resolves once every entry accepted before it has resolved.
func (a *AsyncTarget) Flush(done *core.Continuation) {
	if a.closed.Load() {
		// Close resolved or will resolve everything outstanding.
		done.Resolve(nil)
		return
	}
	a.ensureWorker()
	if !a.q.ForcePush(asyncItem{flush: done}) {
		done.Resolve(nil)
	}
}

// Close stops intake, drains the remaining queue best effort, then
// stops the worker and closes the wrapped target. Idempotent.
func (a *AsyncTarget) Close() {
	a.closeOnce.Do(func() {
		a.closed.Store(true)
		a.q.Close()
		if a.started.Load() {
			<-a.workerDone
		} else {
			// Worker never ran; nothing was queued.
			close(a.workerDone)
		}
		a.inner.Close()
		a.flushes.closeOut()
	})
}

func (a *AsyncTarget) Stats() TargetStats {
	lastWrite, _ := a.lastWrite.Load().(time.Time)
	return TargetStats{
		Type:         "async",
		TotalWritten: a.totalEnqueued.Load() - a.totalDropped.Load(),
		TotalDropped: a.totalDropped.Load(),
		StartTime:    a.startTime,
		LastWrite:    lastWrite,
		Details: map[string]any{
			"capacity":      a.cfg.Capacity,
			"overflow":      a.cfg.Overflow.String(),
			"batch_size":    a.cfg.BatchSize,
			"queue_length":  a.q.Len(),
			"total_batches": a.totalBatches.Load(),
			"inner":         a.inner.Stats().Type,
		},
	}
}

func (a *AsyncTarget) ensureWorker() {
	a.startWorker.Do(func() {
		a.started.Store(true)
		go a.worker()
	})
}

// onDrop resolves the continuation of an item rejected by the overflow
// policy or by Close. A discard-policy drop is not a failure.
func (a *AsyncTarget) onDrop(it asyncItem, err error) {
	if errors.Is(err, queue.ErrClosed) {
		err = ErrTargetClosed
	}
	if it.flush != nil {
		it.flush.Resolve(nil)
		return
	}
	a.totalDropped.Add(1)
	if err != nil {
		a.logger.Debug("msg", "Entry rejected by async queue",
			"component", "async_target",
			"error", err)
	}
	it.ev.Done.Resolve(err)
}

func (a *AsyncTarget) worker() {
	defer close(a.workerDone)

	for {
		items := a.q.DrainWait(a.cfg.BatchSize)
		if items == nil {
			return
		}
		a.forward(items)
	}
}

// forward hands a drained run to the wrapped target, keeping envelope
// order and firing flush barriers between the batches they separate.
func (a *AsyncTarget) forward(items []asyncItem) {
	batch := make([]Envelope, 0, len(items))
	for _, it := range items {
		if it.flush != nil {
			a.forwardBatch(batch)
			batch = batch[:0]
			a.flushes.barrier(it.flush)
			continue
		}
		batch = append(batch, it.ev)
	}
	a.forwardBatch(batch)
}

// forwardBatch writes one batch to the wrapped target. Each envelope's
// continuation is chained through the flush tracker so barriers observe
// completion, not just hand-off. A panic from the wrapped target fails
// every continuation in the batch; nothing is retried here.
func (a *AsyncTarget) forwardBatch(batch []Envelope) {
	if len(batch) == 0 {
		return
	}
	a.totalBatches.Add(1)
	a.lastWrite.Store(time.Now())

	wrapped := make([]Envelope, len(batch))
	for i, ev := range batch {
		a.flushes.inc()
		orig := ev.Done
		wrapped[i] = Envelope{
			Entry: ev.Entry,
			Done: core.NewContinuation(func(err error) {
				orig.Resolve(err)
				a.flushes.dec()
			}),
		}
	}

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("wrapped target panic: %v", r)
			a.logger.Error("msg", "Wrapped target failed during batch write",
				"component", "async_target",
				"batch_size", len(wrapped),
				"panic", r)
			for _, ev := range wrapped {
				ev.Done.Resolve(err)
			}
		}
	}()

	a.inner.WriteBatch(wrapped)
}

// flushTracker counts in-flight envelopes handed to the wrapped target
// and holds flush barriers until the count returns to zero.
type flushTracker struct {
	mu      sync.Mutex
	pending int64
	waiters []*core.Continuation
}

func (t *flushTracker) inc() {
	t.mu.Lock()
	t.pending++
	t.mu.Unlock()
}

func (t *flushTracker) dec() {
	t.mu.Lock()
	t.pending--
	var fire []*core.Continuation
	if t.pending == 0 && len(t.waiters) > 0 {
		fire = t.waiters
		t.waiters = nil
	}
	t.mu.Unlock()
	for _, done := range fire {
		done.Resolve(nil)
	}
}

func (t *flushTracker) barrier(done *core.Continuation) {
	t.mu.Lock()
	if t.pending == 0 {
		t.mu.Unlock()
		done.Resolve(nil)
		return
	}
	t.waiters = append(t.waiters, done)
	t.mu.Unlock()
}

// closeOut resolves any barriers still waiting when the wrapper shuts
// down; by then every pending envelope has been resolved by the inner
// target's close path.
func (t *flushTracker) closeOut() {
	t.mu.Lock()
	fire := t.waiters
	t.waiters = nil
	t.mu.Unlock()
	for _, done := range fire {
		done.Resolve(nil)
	}
}
