package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"

	"logcourier/src/internal/core"
	"logcourier/src/internal/queue"
)

// Validate checks the whole configuration tree. Invalid combinations
// fail here, at construction time, never at runtime.
func (c *Config) Validate() error {
	if c.Logging != nil {
		if err := validateLogConfig(c.Logging); err != nil {
			return err
		}
	}

	if len(c.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}
	if len(c.Routes) == 0 {
		return fmt.Errorf("no routes configured")
	}

	targetNames := make(map[string]bool)
	for i := range c.Targets {
		t := &c.Targets[i]
		if err := validateTarget(i, t, targetNames); err != nil {
			return err
		}
	}

	for i := range c.Routes {
		if err := validateRoute(i, &c.Routes[i], targetNames); err != nil {
			return err
		}
	}

	for i := range c.Sources {
		if err := validateSource(i, &c.Sources[i]); err != nil {
			return err
		}
	}

	return nil
}

func validateTarget(index int, t *TargetConfig, names map[string]bool) error {
	if t.Name == "" {
		return fmt.Errorf("target[%d]: name is required", index)
	}
	if names[t.Name] {
		return fmt.Errorf("target[%d]: duplicate name '%s'", index, t.Name)
	}
	names[t.Name] = true

	switch t.Type {
	case "console", "file", "network":
	default:
		return fmt.Errorf("target '%s': invalid type '%s' (must be 'console', 'file' or 'network')",
			t.Name, t.Type)
	}

	switch t.Format {
	case "", "raw", "json", "text":
	default:
		return fmt.Errorf("target '%s': invalid format '%s'", t.Name, t.Format)
	}

	if _, err := core.ParseFilterResult(t.DefaultAction); err != nil {
		return fmt.Errorf("target '%s': default_action: %w", t.Name, err)
	}

	for i := range t.Filters {
		if err := validateFilter(t.Name, i, &t.Filters[i]); err != nil {
			return err
		}
	}
	for i := range t.Rules {
		if err := validateFilter(t.Name, i, &t.Rules[i].When); err != nil {
			return fmt.Errorf("rule when: %w", err)
		}
		if err := validateFilter(t.Name, i, &t.Rules[i].Apply); err != nil {
			return fmt.Errorf("rule apply: %w", err)
		}
	}

	if t.Async != nil && t.Async.Enabled {
		if err := validateAsync(t.Name, t.Async); err != nil {
			return err
		}
	}

	switch t.Type {
	case "console":
		if t.Console != nil {
			switch t.Console.Target {
			case "", "stdout", "stderr", "split":
			default:
				return fmt.Errorf("target '%s': invalid console target '%s'", t.Name, t.Console.Target)
			}
		}
	case "network":
		if t.Network == nil || t.Network.Endpoint == "" {
			return fmt.Errorf("target '%s': network target requires 'endpoint'", t.Name)
		}
		if err := validateNetwork(t.Name, t.Network); err != nil {
			return err
		}
	}

	return nil
}

func validateAsync(targetName string, a *AsyncOptions) error {
	if a.Capacity < 1 {
		return fmt.Errorf("target '%s': async capacity must be positive: %d", targetName, a.Capacity)
	}
	action, err := queue.ParseOverflowAction(a.OverflowAction)
	if err != nil {
		return fmt.Errorf("target '%s': async: %w", targetName, err)
	}
	if action == queue.OverflowBlock && a.BlockTimeoutMS < 1 {
		return fmt.Errorf("target '%s': async block policy requires positive block_timeout_ms", targetName)
	}
	if action != queue.OverflowBlock && a.BlockTimeoutMS != 0 {
		return fmt.Errorf("target '%s': async block_timeout_ms is only valid with the block policy", targetName)
	}
	if a.BatchSize < 0 {
		return fmt.Errorf("target '%s': async batch_size must not be negative: %d", targetName, a.BatchSize)
	}
	return nil
}

func validateNetwork(targetName string, n *NetworkTargetOptions) error {
	scheme, hostport, ok := strings.Cut(n.Endpoint, "://")
	if !ok {
		return fmt.Errorf("target '%s': endpoint must be scheme://host:port: %s", targetName, n.Endpoint)
	}

	switch scheme {
	case "tcp", "tcp+tls", "udp":
		if _, _, err := net.SplitHostPort(hostport); err != nil {
			return fmt.Errorf("target '%s': invalid endpoint address: %w", targetName, err)
		}
	case "http", "https":
		if _, err := url.Parse(n.Endpoint); err != nil {
			return fmt.Errorf("target '%s': invalid endpoint URL: %w", targetName, err)
		}
	default:
		return fmt.Errorf("target '%s': unsupported endpoint scheme '%s'", targetName, scheme)
	}

	if n.QueueCapacity < 0 {
		return fmt.Errorf("target '%s': queue_capacity must not be negative", targetName)
	}
	action, err := queue.ParseOverflowAction(n.OverflowAction)
	if err != nil {
		return fmt.Errorf("target '%s': %w", targetName, err)
	}
	if action == queue.OverflowBlock && n.BlockTimeoutMS < 1 {
		return fmt.Errorf("target '%s': block policy requires positive block_timeout_ms", targetName)
	}
	if n.ReconnectBackoff != 0 && n.ReconnectBackoff < 1.0 {
		return fmt.Errorf("target '%s': reconnect_backoff must be >= 1.0", targetName)
	}

	if n.TLS != nil && n.TLS.Enabled {
		if scheme == "udp" {
			return fmt.Errorf("target '%s': TLS is not supported over udp", targetName)
		}
		hasCert := n.TLS.ClientCertFile != ""
		hasKey := n.TLS.ClientKeyFile != ""
		if hasCert != hasKey {
			return fmt.Errorf("target '%s': both client_cert_file and client_key_file must be provided for mTLS", targetName)
		}
	}

	if n.Auth != nil && n.Auth.JWTSecret != "" {
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("target '%s': JWT auth is only supported for http/https endpoints", targetName)
		}
	}

	return nil
}

func validateFilter(targetName string, index int, f *FilterConfig) error {
	switch f.Type {
	case "", "match":
		if len(f.Patterns) == 0 {
			return fmt.Errorf("target '%s' filter[%d]: match filter requires patterns", targetName, index)
		}
		for i, pattern := range f.Patterns {
			if _, err := regexp.Compile(pattern); err != nil {
				return fmt.Errorf("target '%s' filter[%d] pattern[%d] '%s': invalid regex: %w",
					targetName, index, i, pattern, err)
			}
		}
		switch f.Logic {
		case "", "or", "and":
		default:
			return fmt.Errorf("target '%s' filter[%d]: invalid logic '%s'", targetName, index, f.Logic)
		}
	case "level":
		if f.MinLevel != "" {
			if _, err := core.ParseLevel(f.MinLevel); err != nil {
				return fmt.Errorf("target '%s' filter[%d]: %w", targetName, index, err)
			}
		}
		if f.MaxLevel != "" {
			if _, err := core.ParseLevel(f.MaxLevel); err != nil {
				return fmt.Errorf("target '%s' filter[%d]: %w", targetName, index, err)
			}
		}
	case "rate":
		if f.EventsPerSecond <= 0 {
			return fmt.Errorf("target '%s' filter[%d]: rate filter requires positive events_per_second",
				targetName, index)
		}
	default:
		return fmt.Errorf("target '%s' filter[%d]: invalid type '%s'", targetName, index, f.Type)
	}

	if _, err := core.ParseFilterResult(f.OnMatch); err != nil {
		return fmt.Errorf("target '%s' filter[%d]: on_match: %w", targetName, index, err)
	}
	if _, err := core.ParseFilterResult(f.OnMiss); err != nil {
		return fmt.Errorf("target '%s' filter[%d]: on_miss: %w", targetName, index, err)
	}

	return nil
}

func validateRoute(index int, r *RouteConfig, targetNames map[string]bool) error {
	if r.MinLevel != "" && len(r.Levels) > 0 {
		return fmt.Errorf("route[%d]: min_level and levels are mutually exclusive", index)
	}
	if r.MinLevel == "" && len(r.Levels) == 0 {
		return fmt.Errorf("route[%d]: either min_level or levels is required", index)
	}
	if r.MinLevel != "" {
		if _, err := core.ParseLevel(r.MinLevel); err != nil {
			return fmt.Errorf("route[%d]: %w", index, err)
		}
	}
	for _, lvl := range r.Levels {
		if _, err := core.ParseLevel(lvl); err != nil {
			return fmt.Errorf("route[%d]: %w", index, err)
		}
	}
	if len(r.Targets) == 0 {
		return fmt.Errorf("route[%d]: at least one target is required", index)
	}
	for _, name := range r.Targets {
		if !targetNames[name] {
			return fmt.Errorf("route[%d]: unknown target '%s'", index, name)
		}
	}
	return nil
}

func validateSource(index int, s *SourceConfig) error {
	switch s.Type {
	case "stdin":
	case "tcp":
		if s.TCP == nil {
			return fmt.Errorf("source[%d]: tcp source requires a [source.tcp] section", index)
		}
		if s.TCP.Port < 1 || s.TCP.Port > 65535 {
			return fmt.Errorf("source[%d]: invalid tcp port: %d", index, s.TCP.Port)
		}
		if s.TCP.Auth != nil && s.TCP.Auth.Enabled && len(s.TCP.Auth.CredentialHashes) == 0 {
			return fmt.Errorf("source[%d]: tcp auth enabled but no credential_hashes configured", index)
		}
	default:
		return fmt.Errorf("source[%d]: invalid type '%s' (must be 'stdin' or 'tcp')", index, s.Type)
	}
	if s.BufferSize < 0 {
		return fmt.Errorf("source[%d]: buffer_size must not be negative", index)
	}
	return nil
}
