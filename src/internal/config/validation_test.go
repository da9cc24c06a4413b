package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a minimal configuration that passes validation;
// tests mutate one aspect at a time.
func validConfig() *Config {
	return &Config{
		Logging: DefaultLogConfig(),
		Sources: []SourceConfig{{Type: "stdin"}},
		Targets: []TargetConfig{
			{Name: "console", Type: "console"},
			{
				Name: "remote",
				Type: "network",
				Network: &NetworkTargetOptions{
					Endpoint: "tcp://logs.example.com:5514",
				},
			},
		},
		Routes: []RouteConfig{
			{MinLevel: "info", Targets: []string{"console", "remote"}},
		},
	}
}

func TestValidateAccepts(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "no targets",
			mutate:  func(c *Config) { c.Targets = nil },
			wantErr: "no targets",
		},
		{
			name:    "no routes",
			mutate:  func(c *Config) { c.Routes = nil },
			wantErr: "no routes",
		},
		{
			name:    "unnamed target",
			mutate:  func(c *Config) { c.Targets[0].Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "duplicate target name",
			mutate:  func(c *Config) { c.Targets[1].Name = "console" },
			wantErr: "duplicate name",
		},
		{
			name:    "unknown target type",
			mutate:  func(c *Config) { c.Targets[0].Type = "carrier-pigeon" },
			wantErr: "invalid type",
		},
		{
			name:    "unknown format",
			mutate:  func(c *Config) { c.Targets[0].Format = "xml" },
			wantErr: "invalid format",
		},
		{
			name:    "bad default action",
			mutate:  func(c *Config) { c.Targets[0].DefaultAction = "maybe" },
			wantErr: "default_action",
		},
		{
			name: "bad filter regex",
			mutate: func(c *Config) {
				c.Targets[0].Filters = []FilterConfig{{Patterns: []string{"("}}}
			},
			wantErr: "invalid regex",
		},
		{
			name: "match filter without patterns",
			mutate: func(c *Config) {
				c.Targets[0].Filters = []FilterConfig{{Type: "match"}}
			},
			wantErr: "requires patterns",
		},
		{
			name: "rate filter without budget",
			mutate: func(c *Config) {
				c.Targets[0].Filters = []FilterConfig{{Type: "rate"}}
			},
			wantErr: "events_per_second",
		},
		{
			name: "async without capacity",
			mutate: func(c *Config) {
				c.Targets[0].Async = &AsyncOptions{Enabled: true, OverflowAction: "discard"}
			},
			wantErr: "capacity",
		},
		{
			name: "async block without timeout",
			mutate: func(c *Config) {
				c.Targets[0].Async = &AsyncOptions{
					Enabled: true, Capacity: 10, OverflowAction: "block",
				}
			},
			wantErr: "block_timeout_ms",
		},
		{
			name: "async unknown overflow action",
			mutate: func(c *Config) {
				c.Targets[0].Async = &AsyncOptions{
					Enabled: true, Capacity: 10, OverflowAction: "explode",
				}
			},
			wantErr: "overflow action",
		},
		{
			name:    "network without endpoint",
			mutate:  func(c *Config) { c.Targets[1].Network.Endpoint = "" },
			wantErr: "endpoint",
		},
		{
			name:    "network bad scheme",
			mutate:  func(c *Config) { c.Targets[1].Network.Endpoint = "ftp://x:21" },
			wantErr: "scheme",
		},
		{
			name:    "network missing port",
			mutate:  func(c *Config) { c.Targets[1].Network.Endpoint = "tcp://logs.example.com" },
			wantErr: "address",
		},
		{
			name:    "backoff below one",
			mutate:  func(c *Config) { c.Targets[1].Network.ReconnectBackoff = 0.5 },
			wantErr: "reconnect_backoff",
		},
		{
			name: "tls over udp",
			mutate: func(c *Config) {
				c.Targets[1].Network.Endpoint = "udp://10.0.0.1:514"
				c.Targets[1].Network.TLS = &TLSClientConfig{Enabled: true}
			},
			wantErr: "udp",
		},
		{
			name: "mtls cert without key",
			mutate: func(c *Config) {
				c.Targets[1].Network.TLS = &TLSClientConfig{
					Enabled: true, ClientCertFile: "/etc/certs/client.pem",
				}
			},
			wantErr: "client_key_file",
		},
		{
			name: "jwt auth on tcp endpoint",
			mutate: func(c *Config) {
				c.Targets[1].Network.Auth = &NetworkAuthConfig{JWTSecret: "s3cret"}
			},
			wantErr: "http",
		},
		{
			name:    "route without level selector",
			mutate:  func(c *Config) { c.Routes[0].MinLevel = "" },
			wantErr: "min_level or levels",
		},
		{
			name: "route with both selectors",
			mutate: func(c *Config) {
				c.Routes[0].Levels = []string{"error"}
			},
			wantErr: "mutually exclusive",
		},
		{
			name:    "route unknown target",
			mutate:  func(c *Config) { c.Routes[0].Targets = []string{"ghost"} },
			wantErr: "unknown target",
		},
		{
			name:    "route without targets",
			mutate:  func(c *Config) { c.Routes[0].Targets = nil },
			wantErr: "at least one target",
		},
		{
			name:    "unknown source type",
			mutate:  func(c *Config) { c.Sources[0].Type = "kafka" },
			wantErr: "invalid type",
		},
		{
			name: "tcp source without options",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{Type: "tcp"})
			},
			wantErr: "source.tcp",
		},
		{
			name: "tcp source bad port",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{
					Type: "tcp", TCP: &TCPSourceOptions{Port: 70000},
				})
			},
			wantErr: "port",
		},
		{
			name: "tcp auth without hashes",
			mutate: func(c *Config) {
				c.Sources = append(c.Sources, SourceConfig{
					Type: "tcp",
					TCP: &TCPSourceOptions{
						Port: 5514,
						Auth: &IngestAuthConfig{Enabled: true},
					},
				})
			},
			wantErr: "credential_hashes",
		},
		{
			name:    "bad log output mode",
			mutate:  func(c *Config) { c.Logging.Output = "syslog" },
			wantErr: "log output",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
