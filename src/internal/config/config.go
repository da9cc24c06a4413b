package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lconfig "github.com/lixenwraith/config"
)

// Config is the root of the logcourier configuration tree.
type Config struct {
	// StrictErrors converts recovered internal defects into panics.
	// Test/diagnostic builds only.
	StrictErrors bool `toml:"strict_errors"`

	Logging *LogConfig     `toml:"logging"`
	Sources []SourceConfig `toml:"source"`
	Targets []TargetConfig `toml:"target"`
	Routes  []RouteConfig  `toml:"route"`
}

// RouteConfig binds severity levels to an ordered list of targets. The
// target order is the chain-node walk order for those levels.
type RouteConfig struct {
	// MinLevel routes this level and above. Mutually exclusive with Levels.
	MinLevel string `toml:"min_level"`

	// Levels routes an explicit set of levels.
	Levels []string `toml:"levels"`

	// Targets are target names, walked in order.
	Targets []string `toml:"targets"`
}

func defaults() *Config {
	return &Config{
		Logging: DefaultLogConfig(),
		Sources: []SourceConfig{
			{Type: "stdin"},
		},
	}
}

// Load builds the configuration from defaults, the TOML file, the
// environment and CLI arguments, then validates it.
func Load(cliArgs []string) (*Config, error) {
	configPath := GetConfigPath()

	cfg, err := lconfig.NewBuilder().
		WithDefaults(defaults()).
		WithEnvPrefix("LOGCOURIER_").
		WithFile(configPath).
		WithArgs(cliArgs).
		WithEnvTransform(customEnvTransform).
		WithSources(
			lconfig.SourceCLI,
			lconfig.SourceEnv,
			lconfig.SourceFile,
			lconfig.SourceDefault,
		).
		Build()

	if err != nil {
		if !strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	finalConfig := &Config{}
	if err := cfg.Scan(finalConfig, ""); err != nil {
		return nil, fmt.Errorf("failed to scan config: %w", err)
	}

	return finalConfig, finalConfig.Validate()
}

func customEnvTransform(path string) string {
	env := strings.ReplaceAll(path, ".", "_")
	env = strings.ToUpper(env)
	return "LOGCOURIER_" + env
}

// GetConfigPath resolves the configuration file location from the
// environment, falling back to ~/.config/logcourier.toml.
func GetConfigPath() string {
	if configFile := os.Getenv("LOGCOURIER_CONFIG_FILE"); configFile != "" {
		if filepath.IsAbs(configFile) {
			return configFile
		}
		if configDir := os.Getenv("LOGCOURIER_CONFIG_DIR"); configDir != "" {
			return filepath.Join(configDir, configFile)
		}
		return configFile
	}

	if configDir := os.Getenv("LOGCOURIER_CONFIG_DIR"); configDir != "" {
		return filepath.Join(configDir, "logcourier.toml")
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config", "logcourier.toml")
	}

	return "logcourier.toml"
}
