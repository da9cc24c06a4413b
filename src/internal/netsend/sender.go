package netsend

import (
	"context"
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

// ErrSenderClosed is reported to continuations of payloads enqueued
// after Close, and to payloads still queued when Close runs.
var ErrSenderClosed = errors.New("netsend: sender closed")

// ConnState is the sender's connection lifecycle state.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateClosing
	StateFaulted
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SenderConfig holds construction parameters for a Sender.
type SenderConfig struct {
	QueueCapacity int
	Overflow      queue.OverflowAction
	BlockTimeout  time.Duration

	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	ReconnectBackoff  float64

	// MaxWriteRetries bounds how many times one payload is requeued
	// after transport write failures before it is failed.
	MaxWriteRetries int
}

// SenderConfigFromOptions converts validated TOML options, applying
// the sender defaults for unset values.
func SenderConfigFromOptions(opts *config.NetworkTargetOptions) (SenderConfig, error) {
	action, err := queue.ParseOverflowAction(opts.OverflowAction)
	if err != nil {
		return SenderConfig{}, err
	}

	cfg := SenderConfig{
		QueueCapacity:     1000,
		Overflow:          action,
		BlockTimeout:      time.Duration(opts.BlockTimeoutMS) * time.Millisecond,
		ConnectTimeout:    10 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
		ReconnectBackoff:  1.5,
		MaxWriteRetries:   3,
	}
	if opts.QueueCapacity > 0 {
		cfg.QueueCapacity = int(opts.QueueCapacity)
	}
	if opts.ConnectTimeoutSeconds > 0 {
		cfg.ConnectTimeout = time.Duration(opts.ConnectTimeoutSeconds) * time.Second
	}
	if opts.WriteTimeoutSeconds > 0 {
		cfg.WriteTimeout = time.Duration(opts.WriteTimeoutSeconds) * time.Second
	}
	if opts.ReconnectDelayMS > 0 {
		cfg.ReconnectDelay = time.Duration(opts.ReconnectDelayMS) * time.Millisecond
	}
	if opts.MaxReconnectDelaySeconds > 0 {
		cfg.MaxReconnectDelay = time.Duration(opts.MaxReconnectDelaySeconds) * time.Second
	}
	if opts.ReconnectBackoff >= 1.0 {
		cfg.ReconnectBackoff = opts.ReconnectBackoff
	}
	if opts.MaxWriteRetries > 0 {
		cfg.MaxWriteRetries = int(opts.MaxWriteRetries)
	}
	return cfg, nil
}

// payload is one queue slot: either data awaiting delivery or a flush
// barrier.
type payload struct {
	data     []byte
	done     *core.Continuation
	attempts int
	flush    *core.Continuation
}

// Sender delivers payloads to a remote endpoint through a bounded
// queue and a single worker, one in-flight write at a time. Connection
// establishment is lazy: the first payload triggers it. A connect
// failure fails everything currently queued and parks the sender in
// the faulted state until the next enqueue wakes the worker for a
// fresh attempt.
type Sender struct {
	transport Transport
	cfg       SenderConfig
	q         *queue.Queue[payload]
	logger    *log.Logger

	state      atomic.Int32
	closeCh    chan struct{}
	workerDone chan struct{}
	closed     atomic.Bool
	closeOnce  sync.Once

	// Worker-owned reconnect state
	consecutiveFailures int
	backoffDelay        time.Duration

	// Statistics
	totalSent       atomic.Uint64
	totalFailed     atomic.Uint64
	totalDropped    atomic.Uint64
	totalRetries    atomic.Uint64
	totalReconnects atomic.Uint64
	lastError       atomic.Value // string
}

// NewSender creates a sender and starts its worker.
func NewSender(transport Transport, cfg SenderConfig, logger *log.Logger) (*Sender, error) {
	if transport == nil {
		return nil, fmt.Errorf("sender requires a transport")
	}

	s := &Sender{
		transport:    transport,
		cfg:          cfg,
		logger:       logger,
		closeCh:      make(chan struct{}),
		workerDone:   make(chan struct{}),
		backoffDelay: cfg.ReconnectDelay,
	}
	s.lastError.Store("")

	q, err := queue.New[payload](queue.Config{
		Capacity:     cfg.QueueCapacity,
		Overflow:     cfg.Overflow,
		BlockTimeout: cfg.BlockTimeout,
	}, s.onDrop, logger)
	if err != nil {
		return nil, err
	}
	s.q = q

	go s.worker()
	return s, nil
}

// EnqueueSend queues one payload for delivery. The continuation
// resolves on delivery, on drop, or on failure.
func (s *Sender) EnqueueSend(data []byte, done *core.Continuation) {
	if s.closed.Load() {
		done.Resolve(ErrSenderClosed)
		return
	}
	s.q.Push(payload{data: data, done: done})
}

// Flush places a barrier behind everything queued so far; it resolves
// once every payload ahead of it has been delivered or failed.
func (s *Sender) Flush(done *core.Continuation) {
	if s.closed.Load() {
		done.Resolve(nil)
		return
	}
	if !s.q.ForcePush(payload{flush: done}) {
		done.Resolve(nil)
	}
}

// Close stops intake, fails queued payloads with ErrSenderClosed and
// closes the transport. Idempotent.
func (s *Sender) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.state.Store(int32(StateClosing))
		close(s.closeCh)
		s.q.Close()
		<-s.workerDone
		if err := s.transport.Close(); err != nil {
			s.logger.Debug("msg", "Transport close failed",
				"component", "netsend",
				"error", err)
		}
		s.state.Store(int32(StateDisconnected))
		s.logger.Info("msg", "Network sender stopped",
			"component", "netsend",
			"address", s.transport.Address(),
			"total_sent", s.totalSent.Load(),
			"total_failed", s.totalFailed.Load(),
			"total_reconnects", s.totalReconnects.Load())
	})
}

// State returns the current connection state.
func (s *Sender) State() ConnState {
	return ConnState(s.state.Load())
}

// SenderStats contains statistics about a sender.
type SenderStats struct {
	State           string
	Address         string
	QueueLength     int
	TotalSent       uint64
	TotalFailed     uint64
	TotalDropped    uint64
	TotalRetries    uint64
	TotalReconnects uint64
	LastError       string
}

func (s *Sender) Stats() SenderStats {
	lastErr, _ := s.lastError.Load().(string)
	return SenderStats{
		State:           s.State().String(),
		Address:         s.transport.Address(),
		QueueLength:     s.q.Len(),
		TotalSent:       s.totalSent.Load(),
		TotalFailed:     s.totalFailed.Load(),
		TotalDropped:    s.totalDropped.Load(),
		TotalRetries:    s.totalRetries.Load(),
		TotalReconnects: s.totalReconnects.Load(),
		LastError:       lastErr,
	}
}

// onDrop resolves the continuation of a payload rejected by the
// overflow policy or by Close.
func (s *Sender) onDrop(p payload, err error) {
	if errors.Is(err, queue.ErrClosed) {
		err = ErrSenderClosed
	}
	if p.flush != nil {
		p.flush.Resolve(nil)
		return
	}
	s.totalDropped.Add(1)
	if err != nil {
		s.logger.Debug("msg", "Payload rejected by send queue",
			"component", "netsend",
			"error", err)
	}
	p.done.Resolve(err)
}

func (s *Sender) worker() {
	defer close(s.workerDone)

	for {
		items := s.q.DrainWait(1)
		if items == nil {
			return
		}
		p := items[0]

		if s.closed.Load() {
			s.failPayload(p, ErrSenderClosed)
			continue
		}
		if p.flush != nil {
			// One in-flight write at a time: everything ahead of the
			// barrier has already resolved.
			p.flush.Resolve(nil)
			continue
		}
		s.deliver(p)
	}
}

// deliver sends one payload, connecting first when needed.
func (s *Sender) deliver(p payload) {
	if s.State() != StateConnected {
		if !s.connect(p) {
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
	err := s.transport.Write(ctx, p.data)
	if err == nil && s.transport.ResponseBearing() {
		err = s.transport.ReadResponse(ctx)
	}
	cancel()

	if err == nil {
		s.totalSent.Add(1)
		p.done.Resolve(nil)
		return
	}

	s.lastError.Store(err.Error())

	if IsTerminal(err) {
		// The endpoint rejected this payload; the transport is fine.
		s.totalFailed.Add(1)
		s.logger.Error("msg", "Payload rejected by endpoint",
			"component", "netsend",
			"address", s.transport.Address(),
			"error", err)
		p.done.Resolve(err)
		return
	}

	// Transport fault: discard the connection and decide the payload's
	// fate by its retry budget. Requeued payloads go to the front so
	// delivery order is preserved across the reconnect.
	s.transport.Close()
	s.state.Store(int32(StateFaulted))
	s.consecutiveFailures++

	s.logger.Warn("msg", "Write failed, connection discarded",
		"component", "netsend",
		"address", s.transport.Address(),
		"attempts", p.attempts+1,
		"error", err)

	p.attempts++
	if p.attempts > s.cfg.MaxWriteRetries {
		s.totalFailed.Add(1)
		p.done.Resolve(fmt.Errorf("payload failed after %d attempts: %w", p.attempts, err))
		return
	}
	s.totalRetries.Add(1)
	s.q.PushFront(p)
}

// connect establishes the transport for payload p, applying
// exponential backoff after consecutive failures. On failure, p and
// everything currently queued fail with the connect error and the
// sender parks in the faulted state; the next enqueue retries. Returns
// true when connected.
func (s *Sender) connect(p payload) bool {
	if s.consecutiveFailures > 0 {
		select {
		case <-time.After(s.backoffDelay):
		case <-s.closeCh:
			s.failPayload(p, ErrSenderClosed)
			return false
		}
		s.backoffDelay = time.Duration(float64(s.backoffDelay) * s.cfg.ReconnectBackoff)
		if s.backoffDelay > s.cfg.MaxReconnectDelay {
			s.backoffDelay = s.cfg.MaxReconnectDelay
		}
	}

	s.state.Store(int32(StateConnecting))
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ConnectTimeout)
	err := s.transport.Connect(ctx)
	cancel()

	if err != nil {
		s.consecutiveFailures++
		s.lastError.Store(err.Error())
		s.state.Store(int32(StateFaulted))
		s.logger.Warn("msg", "Failed to connect to endpoint",
			"component", "netsend",
			"address", s.transport.Address(),
			"error", err,
			"retry_delay", s.backoffDelay)
		s.failPayload(p, err)
		s.failQueued(err)
		return false
	}

	s.consecutiveFailures = 0
	s.backoffDelay = s.cfg.ReconnectDelay
	s.totalReconnects.Add(1)
	s.state.Store(int32(StateConnected))
	s.logger.Info("msg", "Connected to endpoint",
		"component", "netsend",
		"address", s.transport.Address())
	return true
}

// failQueued fails everything queued at the time of a connect failure.
func (s *Sender) failQueued(err error) {
	for s.q.Len() > 0 {
		for _, p := range s.q.DrainWait(s.q.Len()) {
			s.failPayload(p, err)
		}
	}
}

func (s *Sender) failPayload(p payload, err error) {
	if p.flush != nil {
		p.flush.Resolve(nil)
		return
	}
	s.totalFailed.Add(1)
	p.done.Resolve(err)
}
