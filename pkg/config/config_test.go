package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, AuthNone, cfg.Auth.Mode)
	assert.Equal(t, 4096, cfg.Limits.MaxQueryLen)
	assert.Equal(t, 100, cfg.Limits.MaxOpcodes)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
limits:
  max_query_len: 512
  max_opcodes: 20
storage:
  data_dir: /var/lib/runedb
logging:
  level: debug
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Limits.MaxQueryLen)
	assert.Equal(t, 20, cfg.Limits.MaxOpcodes)
	assert.Equal(t, "/var/lib/runedb", cfg.Storage.DataDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched sections keep their defaults.
	assert.Equal(t, uint64(100_000), cfg.Limits.MaxNodes)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits:\n  max_query_len: 512\n"), 0o600))

	t.Setenv("RUNEDB_MAX_QUERY_LEN", "256")
	t.Setenv("RUNEDB_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Limits.MaxQueryLen)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runedb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits: [not a map"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidateAuthToken(t *testing.T) {
	cfg := Default()
	cfg.Auth.Mode = AuthToken
	assert.Error(t, cfg.Validate(), "token mode without a token must fail")

	cfg.Auth.WriteToken = "$2a$10$abcdefghijklmnopqrstuv"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownAuthMode(t *testing.T) {
	cfg := Default()
	cfg.Auth.Mode = "basic"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveLimits(t *testing.T) {
	cfg := Default()
	cfg.Limits.MaxOpcodes = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Limits.MaxNodes = 0
	assert.Error(t, cfg.Validate())
}
