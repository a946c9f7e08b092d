// Package metrics exposes Prometheus collectors for recognition and batches.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	ItemsProcessed  *prometheus.CounterVec
	ItemDuration    *prometheus.HistogramVec
	EngineCalls     *prometheus.CounterVec
	EngineDuration  prometheus.Histogram
	CacheLookups    *prometheus.CounterVec
	RetryAttempts   prometheus.Counter
	BatchesActive   prometheus.Gauge
	BatchesFinished *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ItemsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_ocr_items_total",
				Help: "Batch items finished, by status and error code",
			},
			[]string{"status", "code"},
		),
		ItemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "invoice_ocr_item_duration_seconds",
				Help:    "Wall time per batch item",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"status"},
		),
		EngineCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_ocr_engine_calls_total",
				Help: "Recognition engine invocations, by engine and outcome",
			},
			[]string{"engine", "outcome"},
		),
		EngineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "invoice_ocr_engine_duration_seconds",
			Help:    "Recognition engine latency",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_ocr_cache_lookups_total",
				Help: "Fingerprint cache lookups, by result",
			},
			[]string{"result"},
		),
		RetryAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "invoice_ocr_retries_total",
			Help: "Engine retries after a retryable failure",
		}),
		BatchesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "invoice_ocr_batches_active",
			Help: "Batches currently running",
		}),
		BatchesFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "invoice_ocr_batches_total",
				Help: "Finished batches, by final state",
			},
			[]string{"state"},
		),
		gatherer: reg,
	}
	reg.MustRegister(
		m.ItemsProcessed, m.ItemDuration, m.EngineCalls, m.EngineDuration,
		m.CacheLookups, m.RetryAttempts, m.BatchesActive, m.BatchesFinished,
	)
	return m
}

func (m *Metrics) ObserveItem(status, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(status, code).Inc()
	m.ItemDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) ObserveEngine(engine, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.EngineCalls.WithLabelValues(engine, outcome).Inc()
	m.EngineDuration.Observe(d.Seconds())
}

func (m *Metrics) CacheResult(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.RetryAttempts.Inc()
}

func (m *Metrics) BatchStarted() {
	if m == nil {
		return
	}
	m.BatchesActive.Inc()
}

func (m *Metrics) BatchFinished(state string) {
	if m == nil {
		return
	}
	m.BatchesActive.Dec()
	m.BatchesFinished.WithLabelValues(state).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
