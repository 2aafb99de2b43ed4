// Package config loads RuneDB configuration from defaults, an optional
// YAML file, and environment variables, in that precedence order.
//
// Environment variables:
//
//	RUNEDB_AUTH_MODE       - "none" or "token"
//	RUNEDB_WRITE_TOKEN     - write token (bcrypt hash) for token mode
//	RUNEDB_MAX_QUERY_LEN   - maximum query text length in bytes
//	RUNEDB_MAX_OPCODES     - maximum compiled program length
//	RUNEDB_MAX_LABEL_LEN   - maximum label length in bytes
//	RUNEDB_MAX_DATA_LEN    - maximum node payload length in bytes
//	RUNEDB_MAX_NODES       - maximum node count
//	RUNEDB_MAX_EDGES       - maximum edge count
//	RUNEDB_DATA_DIR        - snapshot directory
//	RUNEDB_LOG_LEVEL       - logrus level name
//	RUNEDB_LOG_FORMAT      - "text" or "json"
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Auth modes.
const (
	AuthNone  = "none"
	AuthToken = "token"
)

// Config is the full runtime configuration.
type Config struct {
	Auth    AuthConfig    `yaml:"auth"`
	Limits  LimitsConfig  `yaml:"limits"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// AuthConfig controls write authorization.
type AuthConfig struct {
	Mode       string `yaml:"mode"`
	WriteToken string `yaml:"write_token"`
}

// LimitsConfig caps query size, program size, and graph growth.
type LimitsConfig struct {
	MaxQueryLen int    `yaml:"max_query_len"`
	MaxOpcodes  int    `yaml:"max_opcodes"`
	MaxLabelLen int    `yaml:"max_label_len"`
	MaxDataLen  int    `yaml:"max_data_len"`
	MaxNodes    uint64 `yaml:"max_nodes"`
	MaxEdges    uint64 `yaml:"max_edges"`
}

// StorageConfig locates the on-disk snapshot.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Auth: AuthConfig{Mode: AuthNone},
		Limits: LimitsConfig{
			MaxQueryLen: 4096,
			MaxOpcodes:  100,
			MaxLabelLen: 64,
			MaxDataLen:  1024,
			MaxNodes:    100_000,
			MaxEdges:    1_000_000,
		},
		Storage: StorageConfig{DataDir: "data"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, the YAML file at path
// (skipped when path is empty or the file does not exist), and then the
// environment. The result is validated before being returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envUint := func(key string, dst *uint64) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.ParseUint(v, 10, 64); err == nil {
				*dst = n
			}
		}
	}

	envStr("RUNEDB_AUTH_MODE", &cfg.Auth.Mode)
	envStr("RUNEDB_WRITE_TOKEN", &cfg.Auth.WriteToken)
	envInt("RUNEDB_MAX_QUERY_LEN", &cfg.Limits.MaxQueryLen)
	envInt("RUNEDB_MAX_OPCODES", &cfg.Limits.MaxOpcodes)
	envInt("RUNEDB_MAX_LABEL_LEN", &cfg.Limits.MaxLabelLen)
	envInt("RUNEDB_MAX_DATA_LEN", &cfg.Limits.MaxDataLen)
	envUint("RUNEDB_MAX_NODES", &cfg.Limits.MaxNodes)
	envUint("RUNEDB_MAX_EDGES", &cfg.Limits.MaxEdges)
	envStr("RUNEDB_DATA_DIR", &cfg.Storage.DataDir)
	envStr("RUNEDB_LOG_LEVEL", &cfg.Logging.Level)
	envStr("RUNEDB_LOG_FORMAT", &cfg.Logging.Format)
}

// Validate checks the configuration for internally inconsistent or
// unusable values.
func (c Config) Validate() error {
	switch c.Auth.Mode {
	case AuthNone:
	case AuthToken:
		if c.Auth.WriteToken == "" {
			return fmt.Errorf("config: auth mode %q requires a write token", AuthToken)
		}
	default:
		return fmt.Errorf("config: unknown auth mode %q", c.Auth.Mode)
	}

	if c.Limits.MaxQueryLen <= 0 {
		return fmt.Errorf("config: max_query_len must be positive, got %d", c.Limits.MaxQueryLen)
	}
	if c.Limits.MaxOpcodes <= 0 {
		return fmt.Errorf("config: max_opcodes must be positive, got %d", c.Limits.MaxOpcodes)
	}
	if c.Limits.MaxLabelLen <= 0 {
		return fmt.Errorf("config: max_label_len must be positive, got %d", c.Limits.MaxLabelLen)
	}
	if c.Limits.MaxDataLen <= 0 {
		return fmt.Errorf("config: max_data_len must be positive, got %d", c.Limits.MaxDataLen)
	}
	if c.Limits.MaxNodes == 0 {
		return fmt.Errorf("config: max_nodes must be positive")
	}
	if c.Limits.MaxEdges == 0 {
		return fmt.Errorf("config: max_edges must be positive")
	}
	return nil
}
