// Package metrics exposes detection statistics to Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records detection passes. It satisfies session.Observer.
type Metrics struct {
	// Snapshot of the most recent pass
	LastMolds     atomic.Uint64
	LastElapsedMs atomic.Uint64
	Processing    atomic.Uint64 // 0 = idle, 1 = running

	detections *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	molds      prometheus.Counter

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	m.detections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moldmeasure_detections_total",
			Help: "Detection passes by strategy and outcome",
		},
		[]string{"strategy", "result"},
	)
	m.duration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "moldmeasure_detection_duration_seconds",
			Help:    "Wall time of a detection pass",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"strategy"},
	)
	m.molds = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "moldmeasure_molds_detected_total",
		Help: "Molds created by detection passes",
	})
	m.registry.MustRegister(m.detections, m.duration, m.molds)

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "moldmeasure_last_molds",
			Help: "Molds created by the most recent pass",
		},
		func() float64 { return float64(m.LastMolds.Load()) },
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "moldmeasure_last_detection_ms",
			Help: "Duration of the most recent pass in milliseconds",
		},
		func() float64 { return float64(m.LastElapsedMs.Load()) },
	))
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "moldmeasure_processing",
			Help: "Detection running (0=idle, 1=running)",
		},
		func() float64 { return float64(m.Processing.Load()) },
	))
}

// ObserveDetect records one finished pass.
func (m *Metrics) ObserveDetect(strategy string, elapsed time.Duration, molds int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.detections.WithLabelValues(strategy, result).Inc()
	m.duration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	m.LastElapsedMs.Store(uint64(elapsed.Milliseconds()))
	if err == nil {
		m.molds.Add(float64(molds))
		m.LastMolds.Store(uint64(molds))
	}
}

// SetProcessing updates the processing gauge.
func (m *Metrics) SetProcessing(on bool) {
	if on {
		m.Processing.Store(1)
	} else {
		m.Processing.Store(0)
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr until the listener fails.
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
