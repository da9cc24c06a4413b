package netsend

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"logcourier/src/internal/auth"
	"logcourier/src/internal/config"
	ltls "logcourier/src/internal/tls"
	"logcourier/src/internal/version"

	"github.com/lixenwraith/log"
	"github.com/valyala/fasthttp"
)

// httpTransport POSTs payloads to a remote endpoint. fasthttp manages
// the connection pool, so Connect only verifies configuration; a non-2xx
// response is a write error, with 4xx terminal for the payload.
type httpTransport struct {
	url     string
	client  *fasthttp.Client
	signer  *auth.TokenSigner
	timeout time.Duration
	logger  *log.Logger
}

func newHTTPTransport(scheme string, opts *config.NetworkTargetOptions, logger *log.Logger) (*httpTransport, error) {
	timeout := 30 * time.Second
	if opts.WriteTimeoutSeconds > 0 {
		timeout = time.Duration(opts.WriteTimeoutSeconds) * time.Second
	}

	t := &httpTransport{
		url:     opts.Endpoint,
		timeout: timeout,
		logger:  logger,
		client: &fasthttp.Client{
			MaxConnsPerHost:               10,
			MaxIdleConnDuration:           10 * time.Second,
			ReadTimeout:                   timeout,
			WriteTimeout:                  timeout,
			DisableHeaderNamesNormalizing: true,
		},
	}

	if scheme == "https" {
		if opts.TLS != nil && opts.TLS.Enabled {
			manager, err := ltls.NewClientManager(opts.TLS, logger)
			if err != nil {
				return nil, fmt.Errorf("failed to create TLS client manager: %w", err)
			}
			t.client.TLSConfig = manager.GetConfig()
		}
	} else if opts.TLS != nil && opts.TLS.Enabled {
		return nil, fmt.Errorf("tls options require an https endpoint")
	}
	if t.client.TLSConfig == nil && opts.TLS != nil && opts.TLS.InsecureSkipVerify {
		t.client.TLSConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if opts.Auth != nil && opts.Auth.JWTSecret != "" {
		signer, err := auth.NewTokenSigner(opts.Auth)
		if err != nil {
			return nil, err
		}
		t.signer = signer
	}

	return t, nil
}

// Connect is a no-op beyond configuration checks; fasthttp dials on
// demand per request.
func (t *httpTransport) Connect(ctx context.Context) error {
	return nil
}

func (t *httpTransport) Write(ctx context.Context, data []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()

	req.SetRequestURI(t.url)
	req.Header.SetMethod("POST")
	req.Header.SetContentType("application/json")
	req.SetBody(data)
	req.Header.Set("User-Agent", fmt.Sprintf("LogCourier/%s", version.Short()))

	if t.signer != nil {
		token, err := t.signer.Bearer()
		if err != nil {
			fasthttp.ReleaseRequest(req)
			fasthttp.ReleaseResponse(resp)
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	timeout := t.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	err := t.client.DoTimeout(req, resp, timeout)

	// Capture response before releasing
	statusCode := resp.StatusCode()
	var responseBody []byte
	if len(resp.Body()) > 0 {
		responseBody = make([]byte, len(resp.Body()))
		copy(responseBody, resp.Body())
	}

	fasthttp.ReleaseRequest(req)
	fasthttp.ReleaseResponse(resp)

	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	return &StatusError{Code: statusCode, Body: string(responseBody)}
}

func (t *httpTransport) ResponseBearing() bool { return false }

func (t *httpTransport) ReadResponse(ctx context.Context) error { return nil }

func (t *httpTransport) Close() error {
	t.client.CloseIdleConnections()
	return nil
}

func (t *httpTransport) Address() string { return t.url }
