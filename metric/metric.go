// Package metric exposes Prometheus metrics about captures and the
// documentation server.
package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "autodoc"

const (
	StatusOK    = "ok"
	StatusError = "error"
)

type Metrics struct {
	CapturesTotal    *prometheus.CounterVec
	CaptureDuration  *prometheus.HistogramVec
	ChangesTotal     *prometheus.CounterVec
	Operations       prometheus.Gauge
	Definitions      prometheus.Gauge
	DocumentRequests *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		CapturesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "capture",
				Name:      "total",
				Help:      "Total number of captured request/response pairs",
			},
			[]string{"method", "status"},
		),

		CaptureDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "capture",
				Name:      "duration_seconds",
				Help:      "Time spent folding one pair into the document, storage included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),

		ChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "document",
				Name:      "changes_total",
				Help:      "Total number of document changes per stage",
			},
			[]string{"stage"},
		),

		Operations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "document",
				Name:      "operations",
				Help:      "Operations in the intermediate document",
			},
		),

		Definitions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "document",
				Name:      "definitions",
				Help:      "Definitions in the intermediate document",
			},
		),

		DocumentRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "server",
				Name:      "requests_total",
				Help:      "Total number of documentation requests",
			},
			[]string{"route", "code"},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CapturesTotal,
		m.CaptureDuration,
		m.ChangesTotal,
		m.Operations,
		m.Definitions,
		m.DocumentRequests,
	}
}

// Register adds every metric to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveCapture records one finished capture.
func (m *Metrics) ObserveCapture(method string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.CapturesTotal.WithLabelValues(method, status).Inc()
	m.CaptureDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

func (m *Metrics) Changed(stage string) {
	if m == nil {
		return
	}
	m.ChangesTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) DocumentSize(operations, definitions int) {
	if m == nil {
		return
	}
	m.Operations.Set(float64(operations))
	m.Definitions.Set(float64(definitions))
}

// Registry is a Prometheus registry holding Metrics and the Go runtime
// collectors.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

func NewRegistry() (*Registry, error) {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
	}
	if err := r.Metrics.Register(r.prometheusRegistry); err != nil {
		return nil, err
	}
	if err := r.prometheusRegistry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.prometheusRegistry, promhttp.HandlerOpts{})
}
