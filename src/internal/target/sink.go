package target

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"logcourier/src/internal/core"

	"github.com/lixenwraith/log"
)

// sinkTarget adapts a synchronous Sink to the Target contract: the
// sink's returned error resolves the continuations, and a sink panic
// is recovered into an error instead of crossing the async boundary.
type sinkTarget struct {
	kind      string
	sink      Sink
	logger    *log.Logger
	closed    atomic.Bool
	startTime time.Time

	// Statistics
	totalWritten atomic.Uint64
	totalFailed  atomic.Uint64
	lastWrite    atomic.Value // time.Time
}

// FromSink wraps a synchronous sink as a Target. If the sink also
// implements io.Closer, Close is forwarded to it.
func FromSink(kind string, sink Sink, logger *log.Logger) Target {
	t := &sinkTarget{
		kind:      kind,
		sink:      sink,
		logger:    logger,
		startTime: time.Now(),
	}
	t.lastWrite.Store(time.Time{})
	return t
}

func (t *sinkTarget) Write(ev Envelope) {
	if t.closed.Load() {
		ev.Done.Resolve(ErrTargetClosed)
		return
	}

	err := t.safeWrite(ev.Entry)
	if err != nil {
		t.totalFailed.Add(1)
	} else {
		t.totalWritten.Add(1)
		t.lastWrite.Store(time.Now())
	}
	ev.Done.Resolve(err)
}

func (t *sinkTarget) WriteBatch(batch []Envelope) {
	if len(batch) == 0 {
		return
	}
	if t.closed.Load() {
		for _, ev := range batch {
			ev.Done.Resolve(ErrTargetClosed)
		}
		return
	}

	entries := make([]core.LogEntry, len(batch))
	for i, ev := range batch {
		entries[i] = ev.Entry
	}

	err := t.safeWriteBatch(entries)
	if err != nil {
		t.totalFailed.Add(uint64(len(batch)))
	} else {
		t.totalWritten.Add(uint64(len(batch)))
		t.lastWrite.Store(time.Now())
	}
	for _, ev := range batch {
		ev.Done.Resolve(err)
	}
}

// Flush is immediate: sink writes complete before Write returns.
func (t *sinkTarget) Flush(done *core.Continuation) {
	done.Resolve(nil)
}

func (t *sinkTarget) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	if closer, ok := t.sink.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			t.logger.Error("msg", "Failed to close sink",
				"component", t.kind,
				"error", err)
		}
	}
}

func (t *sinkTarget) Stats() TargetStats {
	lastWrite, _ := t.lastWrite.Load().(time.Time)
	return TargetStats{
		Type:         t.kind,
		TotalWritten: t.totalWritten.Load(),
		TotalFailed:  t.totalFailed.Load(),
		StartTime:    t.startTime,
		LastWrite:    lastWrite,
		Details:      map[string]any{},
	}
}

func (t *sinkTarget) safeWrite(entry core.LogEntry) (err error) {
	defer t.recoverWrite(&err)
	return t.sink.Write(entry)
}

func (t *sinkTarget) safeWriteBatch(entries []core.LogEntry) (err error) {
	defer t.recoverWrite(&err)
	return t.sink.WriteBatch(entries)
}

func (t *sinkTarget) recoverWrite(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s sink panic: %v", t.kind, r)
		t.logger.Error("msg", "Sink write panic",
			"component", t.kind,
			"panic", r)
	}
}
