package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cdr.dev/slog/v3/sloggers/slogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Waeei/waeei-backend/internal/audit"
	"github.com/Waeei/waeei-backend/internal/config"
	"github.com/Waeei/waeei-backend/internal/domain"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "malicious_urls.txt")
	require.NoError(t, os.WriteFile(path, []byte("# test list\nphish.test\n"), 0o600))

	return config.Config{
		HTTPAddr:       "127.0.0.1:0",
		GRPCAddr:       "127.0.0.1:0",
		GSBTimeout:     time.Second,
		URLScanTimeout: time.Second,
		ExplainTimeout: time.Second,
		DenylistPath:   path,
		DatabasePath:   filepath.Join(dir, "waeei.db"),
	}
}

func TestBuild_AnalyzeEndToEnd(t *testing.T) {
	ctx := context.Background()
	logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})

	deps, err := Build(ctx, testConfig(t), audit.NewMemoryStore(nil), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close() })

	_, err = deps.Denylist.Reload(ctx, false)
	require.NoError(t, err)

	a, err := deps.Engine.Analyze(ctx, "http://sub.phish.test/path")
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictMalicious, a.Verdict)

	a, err = deps.Engine.Analyze(ctx, "http://example.com")
	require.NoError(t, err)
	assert.Equal(t, domain.VerdictSafe, a.Verdict)
	assert.Equal(t, domain.StatusSkipped, a.Result("gsb").Status)
	assert.Equal(t, domain.StatusSkipped, a.Result("urlscan").Status)

	families, err := deps.Registry.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "waeei_analyses_total")
	assert.Contains(t, names, "waeei_denylist_entries")
}

func TestBuild_OpensSQLite(t *testing.T) {
	cfg := testConfig(t)
	logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})

	deps, err := Build(context.Background(), cfg, nil, logger)
	require.NoError(t, err)
	require.NoError(t, deps.Close())

	_, err = os.Stat(cfg.DatabasePath)
	require.NoError(t, err)
}

func TestRun_StopsGracefully(t *testing.T) {
	cfg := testConfig(t)
	logger := slogtest.Make(t, &slogtest.Options{IgnoreErrors: true})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, logger) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
