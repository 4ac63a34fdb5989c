package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"cdr.dev/slog/v3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/Waeei/waeei-backend/internal/domain"
	"github.com/Waeei/waeei-backend/internal/engine"
)

// Engine is the part of engine.Engine the HTTP API needs.
type Engine interface {
	Analyze(ctx context.Context, raw string) (engine.Analysis, error)
	History(ctx context.Context, limit int) ([]domain.VerdictRecord, error)
	ProbeProvider(ctx context.Context, name, target string) (domain.ProviderResult, error)
}

// Denylist exposes the snapshot state and on-demand reloads.
type Denylist interface {
	Snapshot() *domain.Snapshot
	Reload(ctx context.Context, refresh bool) (*domain.Snapshot, error)
}

type Options struct {
	Engine   Engine
	Denylist Denylist
	Metrics  http.Handler // served on /metrics when set
	Logger   slog.Logger

	// RateLimit is the number of analyze, provider test and reload requests
	// allowed per client IP per minute. Zero disables the limit.
	RateLimit int
	// MaxSnapshotAge marks the service not ready once the denylist snapshot
	// is older than this. Zero disables the check.
	MaxSnapshotAge time.Duration
	// ReloadToken guards POST /denylist/reload as a bearer token. The route
	// is not registered when empty.
	ReloadToken string
}

type server struct {
	engine   Engine
	denylist Denylist
	logger   slog.Logger
	maxAge   time.Duration
}

// NewHandler builds the HTTP API.
func NewHandler(opts Options) http.Handler {
	s := &server{
		engine:   opts.Engine,
		denylist: opts.Denylist,
		logger:   opts.Logger,
		maxAge:   opts.MaxSnapshotAge,
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/history", http.StatusFound)
	})

	// /healthz: basic liveness check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	r.Get("/readyz", s.readyz)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		if opts.RateLimit > 0 {
			r.Use(httprate.Limit(
				opts.RateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded, try again later"})
				}),
			))
		}
		r.Get("/analyze-link", s.analyzeGet)
		r.Post("/analyze-link", s.analyzePost)
		r.Get("/test-gsb", s.testProvider("gsb", testGSBURL))
		r.Get("/test-urlscan", s.testProvider("urlscan", testURLScanURL))

		if opts.ReloadToken != "" {
			r.With(requireToken(opts.ReloadToken)).Post("/denylist/reload", s.reloadDenylist)
		}
	})

	r.Get("/history", s.historyHTML)
	r.Get("/history-json", s.historyJSON)

	return r
}

// requireToken rejects requests without "Authorization: Bearer <token>".
func requireToken(token string) func(http.Handler) http.Handler {
	want := []byte("Bearer " + token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get("Authorization"))
			if subtle.ConstantTimeCompare(got, want) != 1 {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RunHTTPServer serves h on addr until ctx is canceled.
func RunHTTPServer(ctx context.Context, addr string, h http.Handler, logger slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Analyze waits on providers (up to 30s) and the explanation.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown of the HTTP server when the parent context is canceled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn(shutdownCtx, "http: graceful shutdown error", slog.Error(err))
		}
	}()

	logger.Info(ctx, "HTTP server listening", slog.F("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return ctx.Err()
}
