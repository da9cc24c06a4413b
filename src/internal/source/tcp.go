package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"logcourier/src/internal/auth"
	"logcourier/src/internal/config"
	"logcourier/src/internal/core"

	"github.com/lixenwraith/log"
	"github.com/lixenwraith/log/compat"
	"github.com/panjf2000/gnet/v2"
)

const (
	maxClientBufferSize   = 10 * 1024 * 1024 // 10MB max per client
	defaultMaxLineLength  = 1 * 1024 * 1024  // 1MB max per log line
	authHandshakeDeadline = 30 * time.Second
)

// Receives newline-delimited JSON log entries via TCP connections.
// When authentication is enabled, the first line of a connection must
// be "AUTH <secret>", verified against the configured Argon2id
// credential hashes.
type TCPSource struct {
	host          string
	port          int64
	bufferSize    int64
	maxLineLength int64
	server        *tcpSourceServer
	subscribers   []chan core.LogEntry
	mu            sync.RWMutex
	done          chan struct{}
	engine        *gnet.Engine
	engineMu      sync.Mutex
	wg            sync.WaitGroup
	logger        *log.Logger

	credentialHashes []string

	// Statistics
	totalEntries   atomic.Uint64
	droppedEntries atomic.Uint64
	invalidEntries atomic.Uint64
	activeConns    atomic.Int64
	startTime      time.Time
	lastEntryTime  atomic.Value // time.Time
	authFailures   atomic.Uint64
	authSuccesses  atomic.Uint64
}

// Creates a new TCP server source from validated options.
func NewTCPSource(opts *config.TCPSourceOptions, bufferSize int64, logger *log.Logger) (*TCPSource, error) {
	if opts == nil {
		return nil, fmt.Errorf("tcp source options cannot be nil")
	}
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, fmt.Errorf("tcp source requires a valid port: %d", opts.Port)
	}

	host := "0.0.0.0"
	if opts.Host != "" {
		host = opts.Host
	}
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	maxLine := int64(defaultMaxLineLength)
	if opts.MaxLineLength > 0 {
		maxLine = opts.MaxLineLength
	}

	t := &TCPSource{
		host:          host,
		port:          opts.Port,
		bufferSize:    bufferSize,
		maxLineLength: maxLine,
		done:          make(chan struct{}),
		startTime:     time.Now(),
		logger:        logger,
	}
	t.lastEntryTime.Store(time.Time{})

	if opts.Auth != nil && opts.Auth.Enabled {
		if len(opts.Auth.CredentialHashes) == 0 {
			return nil, fmt.Errorf("tcp source auth enabled without credential hashes")
		}
		t.credentialHashes = opts.Auth.CredentialHashes
	}

	return t, nil
}

func (t *TCPSource) Subscribe() <-chan core.LogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	ch := make(chan core.LogEntry, t.bufferSize)
	t.subscribers = append(t.subscribers, ch)
	return ch
}

func (t *TCPSource) Start() error {
	t.server = &tcpSourceServer{
		source:  t,
		clients: make(map[gnet.Conn]*tcpClient),
	}

	addr := fmt.Sprintf("tcp://%s:%d", t.host, t.port)

	// Route gnet's own logging through the shared logger instance
	gnetLogger := compat.NewGnetAdapter(t.logger)

	errChan := make(chan error, 1)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.logger.Info("msg", "TCP source server starting",
			"component", "tcp_source",
			"port", t.port)

		err := gnet.Run(t.server, addr,
			gnet.WithLogger(gnetLogger),
			gnet.WithMulticore(true),
			gnet.WithReusePort(true),
		)
		if err != nil {
			t.logger.Error("msg", "TCP source server failed",
				"component", "tcp_source",
				"port", t.port,
				"error", err)
		}
		errChan <- err
	}()

	// Wait briefly for server to start or fail
	select {
	case err := <-errChan:
		close(t.done)
		t.wg.Wait()
		return err
	case <-time.After(100 * time.Millisecond):
		t.logger.Info("msg", "TCP server started", "port", t.port)
		return nil
	}
}

func (t *TCPSource) Stop() {
	t.logger.Info("msg", "Stopping TCP source")
	close(t.done)

	t.engineMu.Lock()
	engine := t.engine
	t.engineMu.Unlock()

	if engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		(*engine).Stop(ctx)
	}

	t.wg.Wait()

	t.mu.Lock()
	for _, ch := range t.subscribers {
		close(ch)
	}
	t.mu.Unlock()

	t.logger.Info("msg", "TCP source stopped")
}

func (t *TCPSource) GetStats() SourceStats {
	lastEntry, _ := t.lastEntryTime.Load().(time.Time)

	return SourceStats{
		Type:           "tcp",
		TotalEntries:   t.totalEntries.Load(),
		DroppedEntries: t.droppedEntries.Load(),
		StartTime:      t.startTime,
		LastEntryTime:  lastEntry,
		Details: map[string]any{
			"port":               t.port,
			"active_connections": t.activeConns.Load(),
			"invalid_entries":    t.invalidEntries.Load(),
			"auth_required":      len(t.credentialHashes) > 0,
			"auth_failures":      t.authFailures.Load(),
			"auth_successes":     t.authSuccesses.Load(),
		},
	}
}

func (t *TCPSource) publish(entry core.LogEntry) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	t.totalEntries.Add(1)
	t.lastEntryTime.Store(entry.Time)

	dropped := false
	for _, ch := range t.subscribers {
		select {
		case ch <- entry:
		default:
			dropped = true
			t.droppedEntries.Add(1)
		}
	}

	if dropped {
		t.logger.Debug("msg", "Dropped log entry - subscriber buffer full",
			"component", "tcp_source")
	}
}

// Represents a connected TCP client
type tcpClient struct {
	conn          gnet.Conn
	buffer        bytes.Buffer
	authenticated bool
	authTimeout   time.Time
	maxBufferSeen int
}

// Handles gnet events
type tcpSourceServer struct {
	gnet.BuiltinEventEngine
	source  *TCPSource
	clients map[gnet.Conn]*tcpClient
	mu      sync.RWMutex
}

func (s *tcpSourceServer) OnBoot(eng gnet.Engine) gnet.Action {
	s.source.engineMu.Lock()
	s.source.engine = &eng
	s.source.engineMu.Unlock()

	s.source.logger.Debug("msg", "TCP source server booted",
		"component", "tcp_source",
		"port", s.source.port)
	return gnet.None
}

func (s *tcpSourceServer) OnOpen(c gnet.Conn) (out []byte, action gnet.Action) {
	requiresAuth := len(s.source.credentialHashes) > 0

	client := &tcpClient{
		conn:          c,
		authenticated: !requiresAuth,
	}
	if requiresAuth {
		client.authTimeout = time.Now().Add(authHandshakeDeadline)
	}

	s.mu.Lock()
	s.clients[c] = client
	s.mu.Unlock()

	newCount := s.source.activeConns.Add(1)
	s.source.logger.Debug("msg", "TCP connection opened",
		"component", "tcp_source",
		"remote_addr", c.RemoteAddr().String(),
		"active_connections", newCount,
		"requires_auth", requiresAuth)

	if requiresAuth {
		return []byte("AUTH_REQUIRED\n"), gnet.None
	}
	return nil, gnet.None
}

func (s *tcpSourceServer) OnClose(c gnet.Conn, err error) gnet.Action {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()

	newCount := s.source.activeConns.Add(-1)
	s.source.logger.Debug("msg", "TCP connection closed",
		"component", "tcp_source",
		"remote_addr", c.RemoteAddr().String(),
		"active_connections", newCount,
		"error", err)
	return gnet.None
}

func (s *tcpSourceServer) OnTraffic(c gnet.Conn) gnet.Action {
	s.mu.RLock()
	client, exists := s.clients[c]
	s.mu.RUnlock()

	if !exists {
		return gnet.Close
	}

	data, err := c.Next(-1)
	if err != nil {
		s.source.logger.Error("msg", "Error reading from connection",
			"component", "tcp_source",
			"error", err)
		return gnet.Close
	}

	// Authentication phase
	if !client.authenticated {
		if time.Now().After(client.authTimeout) {
			s.source.logger.Warn("msg", "Authentication timeout",
				"component", "tcp_source",
				"remote_addr", c.RemoteAddr().String())
			return gnet.Close
		}

		client.buffer.Write(data)

		if idx := bytes.IndexByte(client.buffer.Bytes(), '\n'); idx >= 0 {
			line := strings.TrimRight(string(client.buffer.Bytes()[:idx]), "\r")
			client.buffer.Next(idx + 1)

			secret, ok := strings.CutPrefix(line, "AUTH ")
			if !ok || !auth.VerifyAgainstAny(secret, s.source.credentialHashes) {
				s.source.authFailures.Add(1)
				s.source.logger.Warn("msg", "Authentication failed",
					"component", "tcp_source",
					"remote_addr", c.RemoteAddr().String())
				c.AsyncWrite([]byte("AUTH_FAIL\n"), nil)
				return gnet.Close
			}

			s.source.authSuccesses.Add(1)
			s.mu.Lock()
			client.authenticated = true
			s.mu.Unlock()

			s.source.logger.Info("msg", "TCP client authenticated",
				"component", "tcp_source",
				"remote_addr", c.RemoteAddr().String())

			c.AsyncWrite([]byte("AUTH_OK\n"), nil)
			client.buffer.Reset()
		}
		return gnet.None
	}

	// Check if appending the new data would exceed the client buffer limit.
	if client.buffer.Len()+len(data) > maxClientBufferSize {
		s.source.logger.Warn("msg", "Client buffer limit exceeded, closing connection",
			"component", "tcp_source",
			"remote_addr", c.RemoteAddr().String(),
			"buffer_size", client.buffer.Len(),
			"incoming_size", len(data),
			"limit", maxClientBufferSize)
		s.source.invalidEntries.Add(1)
		return gnet.Close
	}

	client.buffer.Write(data)

	if client.buffer.Len() > client.maxBufferSeen {
		client.maxBufferSeen = client.buffer.Len()
	}

	// A buffer past the line limit with no newline in sight means a
	// runaway line; drop the connection instead of buffering forever.
	if int64(client.buffer.Len()) > s.source.maxLineLength {
		if !bytes.ContainsRune(client.buffer.Bytes(), '\n') {
			s.source.logger.Warn("msg", "Line too long without newline",
				"component", "tcp_source",
				"remote_addr", c.RemoteAddr().String(),
				"buffer_size", client.buffer.Len())
			s.source.invalidEntries.Add(1)
			return gnet.Close
		}
	}

	// Process complete lines
	for {
		line, err := client.buffer.ReadBytes('\n')
		if err != nil {
			// Partial line; keep it buffered for the next read.
			client.buffer.Write(line)
			break
		}

		line = bytes.TrimRight(line, "\r\n")
		if len(line) == 0 {
			continue
		}

		entry, err := parseJSONLine(line, "tcp")
		if err != nil {
			s.source.invalidEntries.Add(1)
			s.source.logger.Debug("msg", "Invalid log entry",
				"component", "tcp_source",
				"error", err,
				"data", string(line))
			continue
		}

		s.source.publish(entry)
	}

	return gnet.None
}
