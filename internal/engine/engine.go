// Package engine runs the verdict pipeline: normalize, match the denylist,
// query providers, combine, explain and record.
package engine

import (
	"context"
	"strings"
	"time"

	"cdr.dev/slog/v3"
	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/audit"
	"github.com/Waeei/waeei-backend/internal/denylist"
	"github.com/Waeei/waeei-backend/internal/domain"
	"github.com/Waeei/waeei-backend/internal/explain"
	"github.com/Waeei/waeei-backend/internal/metrics"
	"github.com/Waeei/waeei-backend/internal/provider"
)

var (
	ErrEmptyURL        = xerrors.New("missing url parameter")
	ErrUnknownProvider = xerrors.New("unknown provider")
)

const (
	LocalListProvider = "local_list"
	localListReason   = "local list matched"
	notSavedNote      = "تعذّر حفظ نتيجة الفحص في السجل."

	sourceDenylist  = "denylist"
	sourceProviders = "providers"
)

// Analysis is the outcome of one Analyze call.
type Analysis struct {
	URL         domain.NormalizedURL
	Verdict     domain.Verdict
	Denylist    *domain.Match // set when the denylist decided the verdict
	Results     map[string]domain.ProviderResult
	Explanation string
	Record      domain.VerdictRecord
	Saved       bool
	CheckedAt   time.Time
}

// Result returns the provider result reported under name, or a skipped
// result when the provider is not wired.
func (a Analysis) Result(name string) domain.ProviderResult {
	if r, ok := a.Results[name]; ok {
		return r
	}
	return domain.ProviderResult{Provider: name, Status: domain.StatusSkipped, Reason: "provider not configured"}
}

type Engine struct {
	holder       *denylist.Holder
	orchestrator *provider.Orchestrator
	explainer    *explain.Generator
	store        audit.Store
	logger       slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
}

type Options struct {
	Holder       *denylist.Holder
	Orchestrator *provider.Orchestrator
	Explainer    *explain.Generator
	Store        audit.Store
	Logger       slog.Logger
	Metrics      *metrics.Metrics
}

func New(opts Options) *Engine {
	if opts.Holder == nil {
		opts.Holder = denylist.NewHolder()
	}
	if opts.Orchestrator == nil {
		opts.Orchestrator = provider.NewOrchestrator(nil, opts.Logger, opts.Metrics)
	}
	if opts.Store == nil {
		opts.Store = audit.NewMemoryStore(nil)
	}
	return &Engine{
		holder:       opts.Holder,
		orchestrator: opts.Orchestrator,
		explainer:    opts.Explainer,
		store:        opts.Store,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		now:          time.Now,
	}
}

// Analyze runs the full pipeline for raw. Only an empty input fails; every
// downstream failure degrades into the returned Analysis.
func (e *Engine) Analyze(ctx context.Context, raw string) (Analysis, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Analysis{}, ErrEmptyURL
	}

	u := domain.Normalize(raw)
	a := Analysis{URL: u}

	source := sourceProviders
	if m, ok := domain.Check(e.holder.Get(), u); ok {
		source = sourceDenylist
		a.Denylist = &m
		a.Results = e.denylistResults()
		a.Verdict = domain.Combine(true, nil, nil)
		e.logger.Info(ctx, "denylist match",
			slog.F("url", u.Canonical),
			slog.F("rule", m.Rule),
			slog.F("entry", m.Entry),
		)
	} else {
		a.Results = e.orchestrator.QueryAll(ctx, u)
		a.Verdict = domain.Combine(false, a.Results, e.orchestrator.Authoritative)
	}
	e.metrics.ObserveAnalysis(string(a.Verdict), source)

	// The verdict is fixed from here on.
	a.Explanation = e.explainer.Explain(ctx, a.Verdict, u)

	rec, err := e.store.Append(ctx, domain.RecordDraft{
		URL:         u.Raw,
		Verdict:     a.Verdict,
		Explanation: a.Explanation,
	})
	if err != nil {
		e.logger.Warn(ctx, "failed to save verdict record",
			slog.F("url", u.Canonical),
			slog.Error(err),
		)
		e.metrics.ObserveAuditFailure()
		a.Explanation = strings.TrimSpace(a.Explanation + "\n" + notSavedNote)
		a.CheckedAt = e.now().UTC()
		return a, nil
	}

	a.Record = rec
	a.Saved = true
	a.CheckedAt = rec.CheckedAt
	return a, nil
}

// denylistResults fills every provider slot without calling any provider.
// The authoritative slot carries the local list as the deciding source.
func (e *Engine) denylistResults() map[string]domain.ProviderResult {
	providers := e.orchestrator.Providers()
	results := make(map[string]domain.ProviderResult, len(providers))
	for _, p := range providers {
		if p.Authoritative() {
			results[p.Name()] = domain.ProviderResult{
				Provider: LocalListProvider,
				Status:   domain.StatusMalicious,
			}
			continue
		}
		results[p.Name()] = domain.ProviderResult{
			Provider: p.Name(),
			Status:   domain.StatusSkipped,
			Reason:   localListReason,
		}
	}
	return results
}

// History returns recorded verdicts, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]domain.VerdictRecord, error) {
	records, err := e.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, xerrors.Errorf("list history: %w", err)
	}
	return records, nil
}

// ProbeProvider runs a single provider against target, bypassing the
// denylist and the audit log.
func (e *Engine) ProbeProvider(ctx context.Context, name, target string) (domain.ProviderResult, error) {
	p, ok := e.orchestrator.Provider(name)
	if !ok {
		return domain.ProviderResult{}, xerrors.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return e.orchestrator.Run(ctx, p, domain.Normalize(target)), nil
}

// DenylistReady reports whether a denylist snapshot has been loaded.
func (e *Engine) DenylistReady() bool { return e.holder.Ready() }
