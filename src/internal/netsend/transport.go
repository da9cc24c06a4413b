package netsend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"logcourier/src/internal/config"

	"github.com/lixenwraith/log"
)

// Transport carries one payload at a time to a remote endpoint. A
// transport is owned by a single sender worker; implementations need
// not be safe for concurrent use.
type Transport interface {
	// Connect establishes the transport. Idempotent once connected.
	Connect(ctx context.Context) error

	// Write delivers one payload. A returned error means the payload
	// was not (fully) delivered; the sender decides whether to retry.
	Write(ctx context.Context, data []byte) error

	// ResponseBearing reports whether the endpoint answers each write
	// with a response the sender should drain via ReadResponse.
	ResponseBearing() bool

	// ReadResponse consumes the endpoint's response to the last write.
	ReadResponse(ctx context.Context) error

	Close() error
	Address() string
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

// Terminal reports whether retrying the same payload is pointless.
// Client errors (4xx) are; server errors and transport faults are not.
func (e *StatusError) Terminal() bool {
	return e.Code >= 400 && e.Code < 500
}

type terminalError interface {
	error
	Terminal() bool
}

// IsTerminal reports whether err marks the payload itself as
// undeliverable, as opposed to a transport fault worth a retry.
func IsTerminal(err error) bool {
	var te terminalError
	return errors.As(err, &te) && te.Terminal()
}

// ParseEndpoint splits "scheme://host:port" and validates both parts.
// Supported schemes: tcp, tcp+tls, udp, http, https.
func ParseEndpoint(endpoint string) (scheme, address string, err error) {
	scheme, address, ok := strings.Cut(endpoint, "://")
	if !ok || scheme == "" || address == "" {
		return "", "", fmt.Errorf("invalid endpoint %q: expected scheme://host:port", endpoint)
	}

	switch scheme {
	case "tcp", "tcp+tls", "udp":
		if _, _, err := net.SplitHostPort(address); err != nil {
			return "", "", fmt.Errorf("invalid endpoint address (expected host:port): %w", err)
		}
	case "http", "https":
		u, err := url.Parse(endpoint)
		if err != nil {
			return "", "", fmt.Errorf("invalid endpoint URL: %w", err)
		}
		if u.Host == "" {
			return "", "", fmt.Errorf("invalid endpoint %q: missing host", endpoint)
		}
	default:
		return "", "", fmt.Errorf("unsupported endpoint scheme: %q", scheme)
	}

	return scheme, address, nil
}

// NewTransport builds the transport for the configured endpoint.
func NewTransport(opts *config.NetworkTargetOptions, logger *log.Logger) (Transport, error) {
	if opts == nil {
		return nil, fmt.Errorf("network target options cannot be nil")
	}

	scheme, address, err := ParseEndpoint(opts.Endpoint)
	if err != nil {
		return nil, err
	}

	switch scheme {
	case "tcp", "tcp+tls":
		return newTCPTransport(scheme, address, opts, logger)
	case "udp":
		if opts.TLS != nil && opts.TLS.Enabled {
			return nil, fmt.Errorf("tls is not supported over udp")
		}
		return newUDPTransport(address), nil
	case "http", "https":
		return newHTTPTransport(scheme, opts, logger)
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme: %q", scheme)
	}
}
