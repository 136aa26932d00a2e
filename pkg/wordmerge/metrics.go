package wordmerge

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains Prometheus metrics for exports. A nil *Metrics records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	exports        *prometheus.CounterVec
	exportDuration prometheus.Histogram
	directives     *prometheus.CounterVec
	failures       *prometheus.CounterVec
}

// NewMetrics creates the export metrics on their own registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		exports: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordmerge_exports_total",
				Help: "Total number of template exports by result",
			},
			[]string{"result"},
		),
		exportDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wordmerge_export_duration_seconds",
				Help:    "Duration of template exports",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
			},
		),
		directives: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordmerge_directives_total",
				Help: "Total number of parsed directives by evaluator kind",
			},
			[]string{"kind"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wordmerge_evaluator_failures_total",
				Help: "Total number of evaluator failures by function",
			},
			[]string{"function"},
		),
	}
}

// Registry exposes the collectors, e.g. to merge them into another
// gatherer.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}

func (m *Metrics) export(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.exports.WithLabelValues(result).Inc()
	m.exportDuration.Observe(d.Seconds())
}

func (m *Metrics) directive(kind string) {
	if m == nil {
		return
	}
	m.directives.WithLabelValues(kind).Inc()
}

func (m *Metrics) failure(function string) {
	if m == nil {
		return
	}
	if function == "" {
		function = "default"
	}
	m.failures.WithLabelValues(function).Inc()
}
