package target

import (
	"errors"
	"time"

	"logcourier/src/internal/core"
)

// ErrTargetClosed is reported to continuations of entries written
// after a target has been closed.
var ErrTargetClosed = errors.New("target: closed")

// Envelope pairs a log entry with its completion continuation. It is
// the unit that flows through queues; ownership transfers on
// enqueue/dequeue.
type Envelope struct {
	Entry core.LogEntry
	Done  *core.Continuation
}

// Target is a delivery destination for log entries. Implementations
// resolve every envelope's continuation exactly once: on delivery, on
// drop, or on failure. Write and WriteBatch must tolerate being called
// from any goroutine; Flush and Close are idempotent with respect to
// continuation resolution.
type Target interface {
	Write(ev Envelope)
	WriteBatch(batch []Envelope)

	// Flush resolves done once every entry accepted before the call has
	// had its continuation resolved. Entries written concurrently with
	// the call carry no ordering guarantee relative to it.
	Flush(done *core.Continuation)

	// Close stops intake, drains best effort and releases resources.
	// Idempotent; never leaves a continuation unresolved.
	Close()

	Stats() TargetStats
}

// TargetStats contains statistics about a target.
type TargetStats struct {
	Type         string
	TotalWritten uint64
	TotalDropped uint64
	TotalFailed  uint64
	StartTime    time.Time
	LastWrite    time.Time
	Details      map[string]any
}

// Sink is the narrow collaborator contract for synchronous
// destinations: a write either completes or returns an error. Sinks
// must tolerate being called from a non-producer goroutine.
type Sink interface {
	Write(entry core.LogEntry) error
	WriteBatch(entries []core.LogEntry) error
}
