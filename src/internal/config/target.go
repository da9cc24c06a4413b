package config

// TargetConfig describes one delivery target and its wrapper stack:
// filters and post-filtering rules evaluate first, then the optional
// async wrapper queues entries in front of the concrete target.
type TargetConfig struct {
	// Name is the identifier routes refer to. Required, unique.
	Name string `toml:"name"`

	// Type: "console", "file", "network"
	Type string `toml:"type"`

	// Format selects the layout: "raw" (default), "json", "text"
	Format     string                `toml:"format"`
	JSONFormat *JSONFormatterOptions `toml:"json_format"`
	TextFormat *TextFormatterOptions `toml:"text_format"`

	// DefaultAction applies when every chain filter stays neutral.
	DefaultAction string `toml:"default_action"`

	Filters []FilterConfig `toml:"filter"`
	Rules   []RuleConfig   `toml:"rule"`

	Async   *AsyncOptions          `toml:"async"`
	Console *ConsoleTargetOptions  `toml:"console"`
	File    *FileTargetOptions     `toml:"file"`
	Network *NetworkTargetOptions  `toml:"network"`
}

// AsyncOptions configures the bounded-queue async wrapper.
type AsyncOptions struct {
	Enabled bool `toml:"enabled"`

	// Capacity of the bounded queue.
	Capacity int64 `toml:"capacity"`

	// OverflowAction: "discard" (default), "block", "grow"
	OverflowAction string `toml:"overflow_action"`

	// BlockTimeoutMS bounds producer blocking under the block policy.
	BlockTimeoutMS int64 `toml:"block_timeout_ms"`

	// BatchSize limits how many entries one worker drain forwards.
	BatchSize int64 `toml:"batch_size"`
}

type ConsoleTargetOptions struct {
	// Target: "stdout" (default), "stderr", "split"
	Target string `toml:"target"`

	// NoColor disables ANSI colors even on a terminal.
	NoColor bool `toml:"no_color"`
}

type FileTargetOptions struct {
	Directory      string  `toml:"directory"`
	Name           string  `toml:"name"`
	MaxSizeMB      int64   `toml:"max_size_mb"`
	MaxTotalSizeMB int64   `toml:"max_total_size_mb"`
	RetentionHours float64 `toml:"retention_hours"`
	MinDiskFreeMB  int64   `toml:"min_disk_free_mb"`
}

// NetworkTargetOptions configures a queued network sender. The send
// queue is independent of the async wrapper's queue.
type NetworkTargetOptions struct {
	// Endpoint: scheme://host:port with scheme tcp, tcp+tls, udp,
	// http or https.
	Endpoint string `toml:"endpoint"`

	QueueCapacity  int64  `toml:"queue_capacity"`
	OverflowAction string `toml:"overflow_action"`
	BlockTimeoutMS int64  `toml:"block_timeout_ms"`

	ConnectTimeoutSeconds int64 `toml:"connect_timeout_seconds"`
	WriteTimeoutSeconds   int64 `toml:"write_timeout_seconds"`
	KeepAliveSeconds      int64 `toml:"keep_alive_seconds"`

	// Reconnection settings
	ReconnectDelayMS         int64   `toml:"reconnect_delay_ms"`
	MaxReconnectDelaySeconds int64   `toml:"max_reconnect_delay_seconds"`
	ReconnectBackoff         float64 `toml:"reconnect_backoff"`

	// MaxWriteRetries bounds per-payload retries across reconnects
	// before the payload is failed.
	MaxWriteRetries int64 `toml:"max_write_retries"`

	TLS  *TLSClientConfig   `toml:"tls"`
	Auth *NetworkAuthConfig `toml:"auth"`
}

// TLSClientConfig configures transport security for network targets.
type TLSClientConfig struct {
	Enabled bool `toml:"enabled"`

	// MinVersion / MaxVersion: "TLS1.2", "TLS1.3"
	MinVersion string `toml:"min_version"`
	MaxVersion string `toml:"max_version"`

	// CipherSuites is a comma-separated list of suite names; empty
	// uses the Go defaults.
	CipherSuites string `toml:"cipher_suites"`

	// Client certificate for mTLS
	ClientCertFile string `toml:"client_cert_file"`
	ClientKeyFile  string `toml:"client_key_file"`

	// CA bundle for server verification
	ServerCAFile string `toml:"server_ca_file"`
	ServerName   string `toml:"server_name"`

	// InsecureSkipVerify accepts any server certificate. Explicit
	// opt-in; verification failures fail the connection otherwise.
	InsecureSkipVerify bool `toml:"insecure_skip_verify"`
}

// NetworkAuthConfig configures HTTP transport authentication. A signed
// short-lived JWT is attached as a bearer token.
type NetworkAuthConfig struct {
	JWTSecret     string `toml:"jwt_secret"`
	JWTIssuer     string `toml:"jwt_issuer"`
	JWTTTLSeconds int64  `toml:"jwt_ttl_seconds"`
}

// JSONFormatterOptions configures the JSON layout.
type JSONFormatterOptions struct {
	TimestampField string `toml:"timestamp_field"`
	LevelField     string `toml:"level_field"`
	SourceField    string `toml:"source_field"`
	MessageField   string `toml:"message_field"`
	Pretty         bool   `toml:"pretty"`
}

// TextFormatterOptions configures the text layout.
type TextFormatterOptions struct {
	Template        string `toml:"template"`
	TimestampFormat string `toml:"timestamp_format"`
}
