package netsend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"logcourier/src/internal/core"
	"logcourier/src/internal/queue"

	"github.com/lixenwraith/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *log.Logger {
	return log.NewLogger()
}

// fakeTransport is a scriptable in-memory transport. Scripted errors
// are consumed one per call; an empty script means success.
type fakeTransport struct {
	mu            sync.Mutex
	connects      int
	closes        int
	writes        []string
	connectScript []error
	writeScript   []error
	connectErr    error         // applied to every Connect when set
	writeEntered  chan struct{} // signaled when Write is entered, if set
	writeGate     chan struct{} // Write blocks on a receive when set
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	if len(f.connectScript) > 0 {
		err := f.connectScript[0]
		f.connectScript = f.connectScript[1:]
		return err
	}
	return nil
}

func (f *fakeTransport) Write(ctx context.Context, data []byte) error {
	if f.writeEntered != nil {
		f.writeEntered <- struct{}{}
	}
	if f.writeGate != nil {
		<-f.writeGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.writeScript) > 0 {
		err := f.writeScript[0]
		f.writeScript = f.writeScript[1:]
		if err != nil {
			return err
		}
	}
	f.writes = append(f.writes, string(data))
	return nil
}

func (f *fakeTransport) ResponseBearing() bool                  { return false }
func (f *fakeTransport) ReadResponse(ctx context.Context) error { return nil }
func (f *fakeTransport) Address() string                        { return "fake:1234" }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writes))
	copy(out, f.writes)
	return out
}

func (f *fakeTransport) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func testSenderConfig() SenderConfig {
	return SenderConfig{
		QueueCapacity:     64,
		Overflow:          queue.OverflowDiscard,
		ConnectTimeout:    time.Second,
		WriteTimeout:      time.Second,
		ReconnectDelay:    time.Millisecond,
		MaxReconnectDelay: 2 * time.Millisecond,
		ReconnectBackoff:  1.0,
		MaxWriteRetries:   3,
	}
}

func enqueue(s *Sender, data string) chan error {
	ch := make(chan error, 1)
	s.EnqueueSend([]byte(data), core.NewContinuation(func(err error) { ch <- err }))
	return ch
}

func waitErr(t *testing.T, ch chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("continuation not resolved")
		return nil
	}
}

func flushAndWait(t *testing.T, s *Sender) {
	t.Helper()
	ch := make(chan error, 1)
	s.Flush(core.NewContinuation(func(err error) { ch <- err }))
	waitErr(t, ch)
}

func TestSenderDelivery(t *testing.T) {
	tr := &fakeTransport{}
	s, err := NewSender(tr, testSenderConfig(), newTestLogger())
	require.NoError(t, err)
	defer s.Close()

	chs := []chan error{enqueue(s, "a"), enqueue(s, "b"), enqueue(s, "c")}
	for _, ch := range chs {
		assert.NoError(t, waitErr(t, ch))
	}

	assert.Equal(t, []string{"a", "b", "c"}, tr.written())
	assert.Equal(t, 1, tr.connectCount())
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, uint64(3), s.Stats().TotalSent)
}

func TestSenderWriteFailureRequeuesFront(t *testing.T) {
	tr := &fakeTransport{writeScript: []error{errors.New("broken pipe")}}
	s, err := NewSender(tr, testSenderConfig(), newTestLogger())
	require.NoError(t, err)
	defer s.Close()

	chs := []chan error{enqueue(s, "p1"), enqueue(s, "p2"), enqueue(s, "p3")}
	for _, ch := range chs {
		assert.NoError(t, waitErr(t, ch))
	}

	// p1's failed write discarded the connection; the retry went back to
	// the front so order survived the reconnect.
	assert.Equal(t, []string{"p1", "p2", "p3"}, tr.written())
	assert.Equal(t, 2, tr.connectCount())

	stats := s.Stats()
	assert.Equal(t, uint64(3), stats.TotalSent)
	assert.Equal(t, uint64(1), stats.TotalRetries)
	assert.Equal(t, uint64(2), stats.TotalReconnects)
}

func TestSenderRetryBudgetExhausted(t *testing.T) {
	boom := errors.New("broken pipe")
	tr := &fakeTransport{writeScript: []error{boom, boom}}
	cfg := testSenderConfig()
	cfg.MaxWriteRetries = 1
	s, err := NewSender(tr, cfg, newTestLogger())
	require.NoError(t, err)
	defer s.Close()

	err = waitErr(t, enqueue(s, "doomed"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "after 2 attempts")

	assert.Empty(t, tr.written())
	assert.Equal(t, uint64(1), s.Stats().TotalFailed)
}

func TestSenderConnectFailureFailsQueued(t *testing.T) {
	refused := errors.New("connection refused")
	tr := &fakeTransport{connectErr: refused}
	s, err := NewSender(tr, testSenderConfig(), newTestLogger())
	require.NoError(t, err)
	defer s.Close()

	chs := []chan error{enqueue(s, "a"), enqueue(s, "b"), enqueue(s, "c")}
	for _, ch := range chs {
		assert.ErrorIs(t, waitErr(t, ch), refused)
	}

	assert.Empty(t, tr.written())
	assert.Equal(t, StateFaulted, s.State())
	assert.Equal(t, uint64(3), s.Stats().TotalFailed)
	assert.Equal(t, refused.Error(), s.Stats().LastError)
}

func TestSenderTerminalErrorKeepsConnection(t *testing.T) {
	tr := &fakeTransport{writeScript: []error{&StatusError{Code: 400, Body: "bad payload"}}}
	s, err := NewSender(tr, testSenderConfig(), newTestLogger())
	require.NoError(t, err)
	defer s.Close()

	err = waitErr(t, enqueue(s, "rejected"))
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 400, se.Code)

	// The endpoint rejected the payload; the connection is still good
	// and the next payload goes straight out.
	assert.NoError(t, waitErr(t, enqueue(s, "fine")))
	assert.Equal(t, []string{"fine"}, tr.written())
	assert.Equal(t, 1, tr.connectCount())
	assert.Equal(t, StateConnected, s.State())

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.TotalFailed)
	assert.Equal(t, uint64(0), stats.TotalRetries)
}

func TestSenderFlushBarrier(t *testing.T) {
	tr := &fakeTransport{}
	s, err := NewSender(tr, testSenderConfig(), newTestLogger())
	require.NoError(t, err)
	defer s.Close()

	var mu sync.Mutex
	var order []string
	record := func(tag string) *core.Continuation {
		return core.NewContinuation(func(error) {
			mu.Lock()
			order = append(order, tag)
			mu.Unlock()
		})
	}

	s.EnqueueSend([]byte("a"), record("a"))
	s.EnqueueSend([]byte("b"), record("b"))

	ch := make(chan struct{})
	s.Flush(core.NewContinuation(func(error) {
		mu.Lock()
		order = append(order, "flush")
		mu.Unlock()
		close(ch)
	}))
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("flush did not resolve")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "flush"}, order)
}

func TestSenderClose(t *testing.T) {
	tr := &fakeTransport{
		writeEntered: make(chan struct{}, 1),
		writeGate:    make(chan struct{}),
	}
	s, err := NewSender(tr, testSenderConfig(), newTestLogger())
	require.NoError(t, err)

	inflight := enqueue(s, "inflight")
	select {
	case <-tr.writeEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never reached the transport")
	}
	queued1 := enqueue(s, "queued1")
	queued2 := enqueue(s, "queued2")

	closeDone := make(chan struct{})
	go func() {
		s.Close()
		close(closeDone)
	}()

	// Let the blocked in-flight write finish; Close then drains the rest
	// as failures.
	close(tr.writeGate)
	select {
	case <-closeDone:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not complete")
	}

	assert.NoError(t, waitErr(t, inflight))
	assert.ErrorIs(t, waitErr(t, queued1), ErrSenderClosed)
	assert.ErrorIs(t, waitErr(t, queued2), ErrSenderClosed)
	assert.Equal(t, StateDisconnected, s.State())

	// Intake after close fails fast.
	assert.ErrorIs(t, waitErr(t, enqueue(s, "late")), ErrSenderClosed)

	s.Close() // idempotent
}
