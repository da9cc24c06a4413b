package target

import (
	"fmt"
	"sync/atomic"
	"time"

	"logcourier/src/internal/core"
	"logcourier/src/internal/format"
	"logcourier/src/internal/netsend"

	"github.com/lixenwraith/log"
)

// NetworkTarget renders entries through a formatter and hands the
// payloads to a queued network sender. Delivery continuations resolve
// from the sender's outcome; a formatting failure fails the entry
// without touching the transport.
type NetworkTarget struct {
	sender    *netsend.Sender
	formatter format.Formatter
	logger    *log.Logger
	startTime time.Time

	// Statistics
	formatFailed atomic.Uint64
	lastWrite    atomic.Value // time.Time
}

// NewNetworkTarget creates a network target around a running sender.
func NewNetworkTarget(sender *netsend.Sender, formatter format.Formatter, logger *log.Logger) (*NetworkTarget, error) {
	if sender == nil {
		return nil, fmt.Errorf("network target requires a sender")
	}
	t := &NetworkTarget{
		sender:    sender,
		formatter: formatter,
		logger:    logger,
		startTime: time.Now(),
	}
	t.lastWrite.Store(time.Time{})
	return t, nil
}

func (t *NetworkTarget) Write(ev Envelope) {
	data, err := t.formatter.Format(ev.Entry)
	if err != nil {
		t.formatFailed.Add(1)
		t.logger.Error("msg", "Failed to format entry for network delivery",
			"component", "network_target",
			"error", err)
		ev.Done.Resolve(fmt.Errorf("format entry: %w", err))
		return
	}
	t.lastWrite.Store(time.Now())
	t.sender.EnqueueSend(data, ev.Done)
}

func (t *NetworkTarget) WriteBatch(batch []Envelope) {
	for _, ev := range batch {
		t.Write(ev)
	}
}

func (t *NetworkTarget) Flush(done *core.Continuation) {
	t.sender.Flush(done)
}

func (t *NetworkTarget) Close() {
	t.sender.Close()
}

func (t *NetworkTarget) Stats() TargetStats {
	ss := t.sender.Stats()
	lastWrite, _ := t.lastWrite.Load().(time.Time)
	return TargetStats{
		Type:         "network",
		TotalWritten: ss.TotalSent,
		TotalDropped: ss.TotalDropped,
		TotalFailed:  ss.TotalFailed + t.formatFailed.Load(),
		StartTime:    t.startTime,
		LastWrite:    lastWrite,
		Details: map[string]any{
			"address":          ss.Address,
			"state":            ss.State,
			"queue_length":     ss.QueueLength,
			"total_retries":    ss.TotalRetries,
			"total_reconnects": ss.TotalReconnects,
			"last_error":       ss.LastError,
		},
	}
}
