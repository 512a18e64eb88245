package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	completions   *prometheus.HistogramVec
	cacheLookups  *prometheus.CounterVec
	cacheFailures *prometheus.CounterVec
	busy          prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		completions: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentree",
			Name:      "completion_duration_seconds",
			Help:      "Latency of completion service calls by template and outcome.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"template", "outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentree",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by flavor and result (hit, miss).",
		}, []string{"flavor", "result"}),
		cacheFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentree",
			Name:      "cache_failures_total",
			Help:      "Cache I/O failures by operation (read, write, clear).",
		}, []string{"op"}),
		busy: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sentree",
			Name:      "busy_rejections_total",
			Help:      "Analysis requests refused because another was in flight.",
		}),
	}
	reg.MustRegister(
		m.completions,
		m.cacheLookups,
		m.cacheFailures,
		m.busy,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveCompletion(template string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.completions.WithLabelValues(template, outcome).Observe(d.Seconds())
}

func (m *Metrics) CacheLookup(flavor string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(flavor, result).Inc()
}

func (m *Metrics) CacheFailure(op string) {
	if m == nil {
		return
	}
	m.cacheFailures.WithLabelValues(op).Inc()
}

func (m *Metrics) BusyRejection() {
	if m == nil {
		return
	}
	m.busy.Inc()
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
