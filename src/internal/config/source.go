package config

// SourceConfig describes one ingest source feeding the dispatcher.
type SourceConfig struct {
	// Type: "stdin", "tcp"
	Type string `toml:"type"`

	// BufferSize of each subscriber channel.
	BufferSize int64 `toml:"buffer_size"`

	TCP *TCPSourceOptions `toml:"tcp"`
}

// TCPSourceOptions configures the newline-delimited TCP listener.
type TCPSourceOptions struct {
	Host string `toml:"host"`
	Port int64  `toml:"port"`

	// MaxLineLength caps a single log line in bytes.
	MaxLineLength int64 `toml:"max_line_length"`

	Auth *IngestAuthConfig `toml:"auth"`
}

// IngestAuthConfig configures shared-secret authentication for the TCP
// source. Credentials are stored as argon2id hashes, never plaintext.
type IngestAuthConfig struct {
	Enabled bool `toml:"enabled"`

	// CredentialHashes are encoded argon2id hashes produced by
	// auth.HashSecret.
	CredentialHashes []string `toml:"credential_hashes"`
}
