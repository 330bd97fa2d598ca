package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// serverMetrics holds the Prometheus metrics owned by the HTTP server.
// A single instance is created in New and stored on Server so that tests
// can inject a fresh prometheus.Registry without polluting the default one.
type serverMetrics struct {
	// requestsTotal counts handled HTTP requests, partitioned by the
	// logical handler name and status code.
	requestsTotal *prometheus.CounterVec

	// requestDurationSeconds records the wall-clock latency of each request.
	requestDurationSeconds *prometheus.HistogramVec

	// queriesTotal counts /api/query requests by outcome: "ok", "cached"
	// or "error".
	queriesTotal *prometheus.CounterVec

	// documentsIndexedTotal counts documents indexed through uploads.
	documentsIndexedTotal prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	factory := promauto.With(reg)

	return &serverMetrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled, by handler and status.",
		}, []string{"handler", "status"}),

		requestDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pdfrag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests by handler.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"handler"}),

		queriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "query",
			Name:      "total",
			Help:      "Total number of /api/query requests by outcome.",
		}, []string{"outcome"}),

		documentsIndexedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pdfrag",
			Subsystem: "index",
			Name:      "documents_total",
			Help:      "Total number of documents indexed via the upload endpoint.",
		}),
	}
}
