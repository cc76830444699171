package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing, which keeps tests free of registry wiring.
type Metrics struct {
	ConsentsCreated      prometheus.Counter
	ConsentsWithdrawn    prometheus.Counter
	PurposesAutoCreated  prometheus.Counter
	DomainsAutoCreated   prometheus.Counter
	ParseFailures        *prometheus.CounterVec
	HookRejections       *prometheus.CounterVec
	OrchestrationSeconds prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ConsentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentry_consents_created_total",
			Help: "Total number of consent records created.",
		}),
		ConsentsWithdrawn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentry_consents_withdrawn_total",
			Help: "Total number of consent records withdrawn.",
		}),
		PurposesAutoCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentry_purposes_auto_created_total",
			Help: "Total number of purposes auto-created during consent capture.",
		}),
		DomainsAutoCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "consentry_domains_auto_created_total",
			Help: "Total number of domains auto-created during consent capture.",
		}),
		ParseFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_parse_failures_total",
			Help: "Input parse failures by entity.",
		}, []string{"entity"}),
		HookRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "consentry_hook_rejections_total",
			Help: "Writes rejected by before-hooks, by entity.",
		}, []string{"entity"}),
		OrchestrationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "consentry_consent_orchestration_seconds",
			Help:    "Latency of the consent creation orchestration.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncConsentsCreated() {
	if m == nil {
		return
	}
	m.ConsentsCreated.Inc()
}

func (m *Metrics) IncConsentsWithdrawn() {
	if m == nil {
		return
	}
	m.ConsentsWithdrawn.Inc()
}

func (m *Metrics) IncPurposesAutoCreated() {
	if m == nil {
		return
	}
	m.PurposesAutoCreated.Inc()
}

func (m *Metrics) IncDomainsAutoCreated() {
	if m == nil {
		return
	}
	m.DomainsAutoCreated.Inc()
}

func (m *Metrics) IncParseFailure(entity string) {
	if m == nil {
		return
	}
	m.ParseFailures.WithLabelValues(entity).Inc()
}

func (m *Metrics) IncHookRejection(entity string) {
	if m == nil {
		return
	}
	m.HookRejections.WithLabelValues(entity).Inc()
}

func (m *Metrics) ObserveOrchestration(d time.Duration) {
	if m == nil {
		return
	}
	m.OrchestrationSeconds.Observe(d.Seconds())
}
