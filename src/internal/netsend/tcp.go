package netsend

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"logcourier/src/internal/config"
	ltls "logcourier/src/internal/tls"

	"github.com/lixenwraith/log"
)

// tcpTransport delivers payloads over a single TCP connection, plain
// or TLS. The connection is (re)established by Connect and discarded
// by the sender after a write failure.
type tcpTransport struct {
	address   string
	tlsConfig *tls.Config

	dialTimeout  time.Duration
	writeTimeout time.Duration
	keepAlive    time.Duration

	conn   net.Conn
	logger *log.Logger
}

func newTCPTransport(scheme, address string, opts *config.NetworkTargetOptions, logger *log.Logger) (*tcpTransport, error) {
	t := &tcpTransport{
		address:      address,
		dialTimeout:  10 * time.Second,
		writeTimeout: 30 * time.Second,
		keepAlive:    30 * time.Second,
		logger:       logger,
	}
	if opts.ConnectTimeoutSeconds > 0 {
		t.dialTimeout = time.Duration(opts.ConnectTimeoutSeconds) * time.Second
	}
	if opts.WriteTimeoutSeconds > 0 {
		t.writeTimeout = time.Duration(opts.WriteTimeoutSeconds) * time.Second
	}
	if opts.KeepAliveSeconds > 0 {
		t.keepAlive = time.Duration(opts.KeepAliveSeconds) * time.Second
	}

	wantTLS := scheme == "tcp+tls" || (opts.TLS != nil && opts.TLS.Enabled)
	if wantTLS {
		tlsOpts := opts.TLS
		if tlsOpts == nil || !tlsOpts.Enabled {
			// Scheme alone requests TLS with default settings.
			tlsOpts = &config.TLSClientConfig{Enabled: true}
		}
		manager, err := ltls.NewClientManager(tlsOpts, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS client manager: %w", err)
		}
		t.tlsConfig = manager.GetConfig()
		if t.tlsConfig.ServerName == "" {
			host, _, err := net.SplitHostPort(address)
			if err == nil {
				t.tlsConfig.ServerName = host
			}
		}
	}

	return t, nil
}

func (t *tcpTransport) Connect(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}

	dialer := &net.Dialer{
		Timeout:   t.dialTimeout,
		KeepAlive: t.keepAlive,
	}

	conn, err := dialer.DialContext(ctx, "tcp", t.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.address, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		tcpConn.SetKeepAlive(true)
		tcpConn.SetKeepAlivePeriod(t.keepAlive)
	}

	if t.tlsConfig != nil {
		tlsConn := tls.Client(conn, t.tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return fmt.Errorf("tls handshake with %s: %w", t.address, err)
		}
		conn = tlsConn
	}

	t.conn = conn
	return nil
}

func (t *tcpTransport) Write(ctx context.Context, data []byte) error {
	if t.conn == nil {
		return fmt.Errorf("not connected")
	}

	deadline := time.Now().Add(t.writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := t.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	n, err := t.conn.Write(data)
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("partial write: %d/%d bytes", n, len(data))
	}
	return nil
}

func (t *tcpTransport) ResponseBearing() bool { return false }

func (t *tcpTransport) ReadResponse(ctx context.Context) error { return nil }

func (t *tcpTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *tcpTransport) Address() string { return t.address }
