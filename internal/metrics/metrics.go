// Package metrics defines the Prometheus collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ns = "waeei"

	LabelVerdict  = "verdict"
	LabelProvider = "provider"
	LabelStatus   = "status"
	LabelSource   = "source"
	LabelResult   = "result"

	ResultSuccess = "success"
	ResultFailure = "failure"
)

type Metrics struct {
	Analyses         *prometheus.CounterVec
	ProviderResults  *prometheus.CounterVec
	ProviderSeconds  *prometheus.HistogramVec
	DenylistEntries  prometheus.Gauge
	DenylistReloads  *prometheus.CounterVec
	AuditFailures    prometheus.Counter
	ExplainFallbacks prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Analyses: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "analyses_total", Namespace: ns,
			Help: "The number of analyzed URLs by final verdict and decision source (denylist or providers).",
		}, []string{LabelVerdict, LabelSource}),
		ProviderResults: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "provider_results_total", Namespace: ns, Subsystem: "provider",
			Help: "The number of provider checks by provider and reported status.",
		}, []string{LabelProvider, LabelStatus}),
		ProviderSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name: "check_seconds", Namespace: ns, Subsystem: "provider",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
			Help:    "The time taken by a single provider check, including timeouts.",
		}, []string{LabelProvider}),
		DenylistEntries: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "entries", Namespace: ns, Subsystem: "denylist",
			Help: "The number of entries in the denylist snapshot currently in effect.",
		}),
		DenylistReloads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reloads_total", Namespace: ns, Subsystem: "denylist",
			Help: "The number of denylist load attempts by result.",
		}, []string{LabelResult}),
		AuditFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "append_failures_total", Namespace: ns, Subsystem: "audit",
			Help: "The number of verdict records that could not be persisted.",
		}),
		ExplainFallbacks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "fallbacks_total", Namespace: ns, Subsystem: "explain",
			Help: "The number of explanations that fell back to the fixed unavailable message.",
		}),
	}
}

func (m *Metrics) ObserveAnalysis(verdict, source string) {
	if m == nil {
		return
	}
	m.Analyses.WithLabelValues(verdict, source).Inc()
}

func (m *Metrics) ObserveProvider(provider, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.ProviderResults.WithLabelValues(provider, status).Inc()
	m.ProviderSeconds.WithLabelValues(provider).Observe(took.Seconds())
}

// ObserveDenylistReload matches denylist.Manager.OnReload. The entries gauge
// only moves on success, since a failed load keeps the previous snapshot.
func (m *Metrics) ObserveDenylistReload(entries int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.DenylistReloads.WithLabelValues(ResultFailure).Inc()
		return
	}
	m.DenylistReloads.WithLabelValues(ResultSuccess).Inc()
	m.DenylistEntries.Set(float64(entries))
}

func (m *Metrics) ObserveAuditFailure() {
	if m == nil {
		return
	}
	m.AuditFailures.Inc()
}

func (m *Metrics) ObserveExplainFallback() {
	if m == nil {
		return
	}
	m.ExplainFallbacks.Inc()
}
