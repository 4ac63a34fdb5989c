package provider

import (
	"context"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/domain"
	"github.com/Waeei/waeei-backend/internal/metrics"
)

const fallbackTimeout = 10 * time.Second

// Orchestrator fans a URL out to every provider and collects their results.
type Orchestrator struct {
	providers []Provider
	authority func(string) bool
	logger    slog.Logger
	metrics   *metrics.Metrics
}

func NewOrchestrator(providers []Provider, logger slog.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		providers: providers,
		authority: AuthorityOf(providers),
		logger:    logger,
		metrics:   m,
	}
}

func (o *Orchestrator) Providers() []Provider { return o.providers }

// Authoritative reports whether the named provider can convict a URL alone.
func (o *Orchestrator) Authoritative(name string) bool { return o.authority(name) }

// Provider looks a provider up by name.
func (o *Orchestrator) Provider(name string) (Provider, bool) {
	for _, p := range o.providers {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// QueryAll checks u against every provider concurrently and waits for all of
// them. Each provider runs under its own deadline; one that overruns is
// reported as an error with reason "timeout" and does not hold up the rest.
func (o *Orchestrator) QueryAll(ctx context.Context, u domain.NormalizedURL) map[string]domain.ProviderResult {
	results := make(map[string]domain.ProviderResult, len(o.providers))
	var mu sync.Mutex

	var eg errgroup.Group
	for _, p := range o.providers {
		eg.Go(func() error {
			start := time.Now()
			r := o.Run(ctx, p, u)
			o.metrics.ObserveProvider(p.Name(), string(r.Status), time.Since(start))

			mu.Lock()
			results[p.Name()] = r
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// Run performs a single provider check under the provider's deadline.
func (o *Orchestrator) Run(ctx context.Context, p Provider, u domain.NormalizedURL) domain.ProviderResult {
	if !p.Configured() {
		return p.Check(ctx, u)
	}

	timeout := p.Timeout()
	if timeout <= 0 {
		timeout = fallbackTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Buffered so an adapter that ignores ctx can still finish and exit.
	done := make(chan domain.ProviderResult, 1)
	go func() { done <- p.Check(ctx, u) }()

	var r domain.ProviderResult
	select {
	case r = <-done:
		if r.Status == domain.StatusError && xerrors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.Reason = "timeout"
		}
	case <-ctx.Done():
		r = domain.ProviderResult{Status: domain.StatusError, Reason: "timeout"}
		if xerrors.Is(ctx.Err(), context.Canceled) {
			r.Reason = "canceled"
		}
	}
	r.Provider = p.Name()

	if r.Status == domain.StatusError {
		o.logger.Warn(ctx, "provider check failed",
			slog.F("provider", p.Name()),
			slog.F("url", u.Canonical),
			slog.F("reason", r.Reason),
			slog.F("code", r.Code),
		)
	}
	return r
}

// QueryAll is a convenience for callers without an Orchestrator.
func QueryAll(ctx context.Context, u domain.NormalizedURL, providers []Provider) map[string]domain.ProviderResult {
	return NewOrchestrator(providers, slog.Make(), nil).QueryAll(ctx, u)
}
