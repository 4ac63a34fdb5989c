package app

import (
	"context"
	"net/http"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/audit"
	"github.com/Waeei/waeei-backend/internal/audit/sqlite"
	"github.com/Waeei/waeei-backend/internal/config"
	"github.com/Waeei/waeei-backend/internal/denylist"
	"github.com/Waeei/waeei-backend/internal/engine"
	"github.com/Waeei/waeei-backend/internal/explain"
	"github.com/Waeei/waeei-backend/internal/metrics"
	"github.com/Waeei/waeei-backend/internal/provider"
	"github.com/Waeei/waeei-backend/internal/transport/grpc"
	httpapi "github.com/Waeei/waeei-backend/internal/transport/http"
)

// Deps is everything built from a Config.
type Deps struct {
	Engine   *engine.Engine
	Denylist *denylist.Manager
	Store    audit.Store
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry
}

func (d *Deps) Close() error {
	if d.Store == nil {
		return nil
	}
	return d.Store.Close()
}

// Build wires the engine and its collaborators. A nil store opens the SQLite
// database at cfg.DatabasePath. The denylist is not loaded yet.
func Build(ctx context.Context, cfg config.Config, store audit.Store, logger slog.Logger) (*Deps, error) {
	clock := quartz.NewReal()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	if store == nil {
		s, err := sqlite.Open(cfg.DatabasePath, clock)
		if err != nil {
			return nil, xerrors.Errorf("open audit store: %w", err)
		}
		store = s
	}

	httpClient := &http.Client{}
	providers := []provider.Provider{
		provider.NewSafeBrowsing(provider.SafeBrowsingOptions{
			APIKey:  cfg.GSBAPIKey,
			BaseURL: cfg.GSBBaseURL,
			Timeout: cfg.GSBTimeout,
			Client:  httpClient,
		}),
		provider.NewURLScan(provider.URLScanOptions{
			APIKey:  cfg.URLScanAPIKey,
			BaseURL: cfg.URLScanBaseURL,
			Timeout: cfg.URLScanTimeout,
			Client:  httpClient,
		}),
	}
	for _, p := range providers {
		if !p.Configured() {
			logger.Warn(ctx, "provider has no API key, its checks will be skipped", slog.F("provider", p.Name()))
		}
	}

	var text explain.TextGenerator
	if cfg.GeminiAPIKey != "" {
		g, err := explain.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, httpClient)
		if err != nil {
			// Explanations fall back to canned texts.
			logger.Warn(ctx, "gemini client unavailable", slog.Error(err))
		} else {
			text = g
		}
	}

	holder := denylist.NewHolder()
	manager := denylist.NewManager(
		holder,
		denylist.NewSource(cfg.DenylistPath, cfg.DenylistURL, logger.Named("denylist")),
		clock,
		logger.Named("denylist"),
	)
	manager.OnReload = m.ObserveDenylistReload

	eng := engine.New(engine.Options{
		Holder:       holder,
		Orchestrator: provider.NewOrchestrator(providers, logger.Named("provider"), m),
		Explainer:    explain.New(text, cfg.ExplainTimeout, logger.Named("explain"), m),
		Store:        store,
		Logger:       logger.Named("engine"),
		Metrics:      m,
	})

	return &Deps{
		Engine:   eng,
		Denylist: manager,
		Store:    store,
		Metrics:  m,
		Registry: reg,
	}, nil
}

func Run(ctx context.Context, cfg config.Config, logger slog.Logger) error {
	deps, err := Build(ctx, cfg, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn(ctx, "close audit store", slog.Error(err))
		}
	}()

	if _, err := deps.Denylist.Reload(ctx, false); err != nil {
		// Serve on provider signals alone until a reload succeeds.
		logger.Error(ctx, "initial denylist load failed", slog.Error(err))
	}

	updCfg := denylist.Config{
		Interval:       cfg.DenylistReloadInterval,
		InitialBackoff: 30 * time.Second,
		MaxBackoff:     30 * time.Minute,
	}

	var maxAge time.Duration
	if cfg.DenylistReloadInterval > 0 {
		maxAge = 2 * cfg.DenylistReloadInterval
	}
	handler := httpapi.NewHandler(httpapi.Options{
		Engine:         deps.Engine,
		Denylist:       deps.Denylist,
		Metrics:        promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}),
		Logger:         logger.Named("http"),
		RateLimit:      cfg.RateLimitPerMinute,
		MaxSnapshotAge: maxAge,
		ReloadToken:    cfg.DenylistReloadToken,
	})

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return denylist.Start(ctx, updCfg, deps.Denylist, logger.Named("updater"))
	})

	if cfg.GRPCAddr != "" {
		g.Go(func() error {
			return grpc.RunGRPCServer(ctx, cfg.GRPCAddr, grpc.NewServer(deps.Engine, logger.Named("grpc")), logger.Named("grpc"))
		})
	}

	g.Go(func() error {
		return httpapi.RunHTTPServer(ctx, cfg.HTTPAddr, handler, logger.Named("http"))
	})

	if err := g.Wait(); err != nil && !xerrors.Is(err, context.Canceled) {
		logger.Error(ctx, "app: servers stopped with error", slog.Error(err))
		return err
	}

	logger.Info(ctx, "app: servers stopped gracefully")
	return nil
}
