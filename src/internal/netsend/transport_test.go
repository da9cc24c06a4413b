package netsend

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name        string
		endpoint    string
		wantScheme  string
		wantAddress string
		wantErr     bool
	}{
		{
			name:        "tcp",
			endpoint:    "tcp://logs.example.com:5514",
			wantScheme:  "tcp",
			wantAddress: "logs.example.com:5514",
		},
		{
			name:        "tcp with tls",
			endpoint:    "tcp+tls://logs.example.com:6514",
			wantScheme:  "tcp+tls",
			wantAddress: "logs.example.com:6514",
		},
		{
			name:        "udp",
			endpoint:    "udp://10.0.0.1:514",
			wantScheme:  "udp",
			wantAddress: "10.0.0.1:514",
		},
		{
			name:        "http",
			endpoint:    "http://collector:8080/ingest",
			wantScheme:  "http",
			wantAddress: "collector:8080/ingest",
		},
		{
			name:        "https",
			endpoint:    "https://collector.example.com/ingest",
			wantScheme:  "https",
			wantAddress: "collector.example.com/ingest",
		},
		{
			name:     "missing scheme",
			endpoint: "logs.example.com:5514",
			wantErr:  true,
		},
		{
			name:     "unsupported scheme",
			endpoint: "ftp://logs.example.com:21",
			wantErr:  true,
		},
		{
			name:     "tcp without port",
			endpoint: "tcp://logs.example.com",
			wantErr:  true,
		},
		{
			name:     "empty address",
			endpoint: "tcp://",
			wantErr:  true,
		},
		{
			name:     "empty string",
			endpoint: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme, address, err := ParseEndpoint(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScheme, scheme)
			assert.Equal(t, tt.wantAddress, address)
		})
	}
}

func TestStatusErrorTerminal(t *testing.T) {
	assert.True(t, (&StatusError{Code: 400}).Terminal())
	assert.True(t, (&StatusError{Code: 404}).Terminal())
	assert.True(t, (&StatusError{Code: 422}).Terminal())
	assert.False(t, (&StatusError{Code: 500}).Terminal())
	assert.False(t, (&StatusError{Code: 503}).Terminal())
	assert.False(t, (&StatusError{Code: 302}).Terminal())
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(&StatusError{Code: 403}))
	assert.False(t, IsTerminal(&StatusError{Code: 502}))
	assert.False(t, IsTerminal(errors.New("broken pipe")))
	assert.False(t, IsTerminal(nil))

	// Terminality survives wrapping.
	wrapped := fmt.Errorf("send: %w", &StatusError{Code: 401, Body: "unauthorized"})
	assert.True(t, IsTerminal(wrapped))
}
