package netsend

import (
	"context"
	"fmt"
	"net"
)

// udpTransport delivers payloads as datagrams. Connect only resolves
// and binds; delivery is fire-and-forget.
type udpTransport struct {
	address string
	conn    net.Conn
}

func newUDPTransport(address string) *udpTransport {
	return &udpTransport{address: address}
}

func (t *udpTransport) Connect(ctx context.Context) error {
	if t.conn != nil {
		return nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", t.address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.address, err)
	}
	t.conn = conn
	return nil
}

func (t *udpTransport) Write(ctx context.Context, data []byte) error {
	if t.conn == nil {
		return fmt.Errorf("not connected")
	}
	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
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

func (t *udpTransport) ResponseBearing() bool { return false }

func (t *udpTransport) ReadResponse(ctx context.Context) error { return nil }

func (t *udpTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *udpTransport) Address() string { return t.address }
