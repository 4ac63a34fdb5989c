package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HTTP_ADDR", "GRPC_ADDR", "GSB_API_KEY", "GSB_BASE_URL", "GSB_TIMEOUT",
	"URLSCAN_API_KEY", "URLSCAN_BASE_URL", "URLSCAN_TIMEOUT", "GEMINI_API_KEY",
	"GEMINI_MODEL", "EXPLAIN_TIMEOUT", "DENYLIST_URL", "DENYLIST_PATH",
	"DENYLIST_RELOAD_INTERVAL", "DENYLIST_RELOAD_TOKEN", "DATABASE_PATH", "RATE_LIMIT_PER_MINUTE", "LOG_VERBOSE",
}

// clearEnv unsets every key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.GRPCAddr)
	assert.Equal(t, 10*time.Second, cfg.GSBTimeout)
	assert.Equal(t, 30*time.Second, cfg.URLScanTimeout)
	assert.Equal(t, 20*time.Second, cfg.ExplainTimeout)
	assert.Equal(t, "gemini-2.0-flash", cfg.GeminiModel)
	assert.Equal(t, DefaultDenylistURL, cfg.DenylistURL)
	assert.Equal(t, "malicious_urls.txt", cfg.DenylistPath)
	assert.Equal(t, "WaaeiDB.db", cfg.DatabasePath)
	assert.Zero(t, cfg.DenylistReloadInterval)
	assert.Equal(t, 60, cfg.RateLimitPerMinute)
	assert.False(t, cfg.Verbose)
	assert.Empty(t, cfg.GSBAPIKey)
	assert.Empty(t, cfg.DenylistReloadToken)
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", "127.0.0.1:8080")
	t.Setenv("GRPC_ADDR", "")
	t.Setenv("GSB_API_KEY", "gsb")
	t.Setenv("GSB_TIMEOUT", "3s")
	t.Setenv("DENYLIST_RELOAD_INTERVAL", "6h")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "0")
	t.Setenv("LOG_VERBOSE", "true")
	t.Setenv("DENYLIST_URL", "")
	t.Setenv("DENYLIST_RELOAD_TOKEN", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.GRPCAddr, "an explicitly empty GRPC_ADDR disables gRPC")
	assert.Equal(t, "gsb", cfg.GSBAPIKey)
	assert.Equal(t, 3*time.Second, cfg.GSBTimeout)
	assert.Equal(t, 6*time.Hour, cfg.DenylistReloadInterval)
	assert.Zero(t, cfg.RateLimitPerMinute)
	assert.True(t, cfg.Verbose)
	assert.Empty(t, cfg.DenylistURL, "an explicitly empty DENYLIST_URL disables downloads")
	assert.Equal(t, "s3cret", cfg.DenylistReloadToken)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		key, value string
	}{
		{"DENYLIST_RELOAD_INTERVAL", "30m"},
		{"DENYLIST_RELOAD_INTERVAL", "72h"},
		{"DENYLIST_RELOAD_INTERVAL", "soon"},
		{"GSB_TIMEOUT", "-1s"},
		{"URLSCAN_TIMEOUT", "abc"},
		{"RATE_LIMIT_PER_MINUTE", "-5"},
		{"RATE_LIMIT_PER_MINUTE", "many"},
		{"LOG_VERBOSE", "loud"},
	}
	for _, c := range cases {
		t.Run(c.key+"="+c.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(c.key, c.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), c.key)
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)

	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GSB_API_KEY=from-file\nHTTP_ADDR=:7000\n"), 0o600))
	t.Setenv("HTTP_ADDR", ":9000")

	require.NoError(t, LoadEnvFile(path))
	t.Cleanup(func() { _ = os.Unsetenv("GSB_API_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.GSBAPIKey)
	assert.Equal(t, ":9000", cfg.HTTPAddr, "the environment wins over the file")
}
