package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tarmac.yaml")
	content := `
explain:
  min_leaf_fraction: 0.05
  max_depth: 4
delta:
  task: regression
  epsilon: 2.5
storage:
  dsn: sqlite:///tmp/reports.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Explain.MinLeafFraction)
	assert.Equal(t, 4, cfg.Explain.MaxDepth)
	assert.Equal(t, "regression", cfg.Delta.Task)
	assert.Equal(t, 2.5, cfg.Delta.Epsilon)
	assert.Equal(t, "sqlite:///tmp/reports.db", cfg.Storage.DSN)
	// untouched sections keep their defaults
	assert.Equal(t, 0.4, cfg.Sampling.TestSize)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/tarmac")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("TARMAC_API_KEY_HASH", "$2a$10$hash")
	t.Setenv("TARMAC_SEED", "42")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres://u:p@db/tarmac", cfg.Storage.DSN)
	assert.Equal(t, "from-env", cfg.Server.JWTSecret)
	assert.Equal(t, "$2a$10$hash", cfg.Server.APIKeyHash)
	assert.Equal(t, int64(42), cfg.Explain.Seed)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "explain: [1, 2"},
		{"bad task", "delta:\n  task: clustering\n"},
		{"bad fraction", "explain:\n  min_leaf_fraction: 1.5\n"},
		{"bad test size", "sampling:\n  test_size: 0\n"},
		{"bad ttl", "server:\n  token_ttl: forever\n"},
		{"negative epsilon", "delta:\n  epsilon: -0.1\n"},
		{"key hash without secret", "server:\n  api_key_hash: $2a$10$hash\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tarmac.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_ZeroEpsilonIsValid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tarmac.yaml")
	require.NoError(t, os.WriteFile(path, []byte("delta:\n  epsilon: 0\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.0, cfg.Delta.Epsilon)
}

func TestValidate_APIKeyNeedsSecret(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.APIKeyHash = "$2a$10$hash"
	assert.Error(t, cfg.Validate())

	cfg.Server.JWTSecret = "s3cret"
	assert.NoError(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tarmac.yaml")
	cfg := DefaultConfig()
	cfg.Explain.MaxDepth = 6
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestDurations(t *testing.T) {
	cfg := DefaultConfig()
	ttl, err := cfg.TokenTTL()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, ttl)

	timeout, err := cfg.RequestTimeout()
	require.NoError(t, err)
	assert.Equal(t, time.Minute, timeout)
}
