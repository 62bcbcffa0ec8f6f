// Package metrics exposes Prometheus collectors for the upload pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "receipt_ledger"

// Metrics groups the collectors recorded by the receipt service and the
// HTTP layer.
type Metrics struct {
	registry *prometheus.Registry

	ExtractionRuns      *prometheus.CounterVec
	CandidatesExtracted *prometheus.CounterVec
	PersistFailures     prometheus.Counter
	UploadBytes         prometheus.Histogram
	ProcessingSeconds   *prometheus.HistogramVec
	HTTPRequests        *prometheus.CounterVec
}

// New registers every collector on a fresh registry, together with the Go
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ExtractionRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_runs_total",
			Help:      "Extraction runs by detected format and winning strategy.",
		}, []string{"format", "strategy"}),
		CandidatesExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_extracted_total",
			Help:      "Candidate transactions extracted, by type.",
		}, []string{"type"}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidate_persist_failures_total",
			Help:      "Candidates that could not be stored.",
		}),
		UploadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Size of uploaded files.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		}),
		ProcessingSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_processing_seconds",
			Help:      "Time spent processing an upload, by content kind.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ExtractionRuns,
		m.CandidatesExtracted,
		m.PersistFailures,
		m.UploadBytes,
		m.ProcessingSeconds,
		m.HTTPRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
