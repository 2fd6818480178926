// Package metrics holds the pipeline's Prometheus instrumentation:
// upload counts, quota rejections, enrichment state transitions, and
// event-bus drops. Grounded on the teacher's pkg/metrics/metrics.go
// (package-level prometheus.NewCounterVec/HistogramVec registered at
// init) and its metrics HTTP exposition pattern.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts Ingestion Service completions by outcome:
	// "committed", or the apperr.Kind of the failure (e.g.
	// "quota_exceeded", "io_failure", "database_failure").
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingestion_uploads_total",
			Help: "Total uploads processed by outcome",
		},
		[]string{"outcome"},
	)

	// UploadBytes observes the observed (stat-based) size of committed
	// uploads.
	UploadBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingestion_upload_bytes",
			Help:    "Observed size of committed uploads",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	// EnrichmentTransitionsTotal counts C6 state machine transitions
	// by the state reached ("extracted", "failed_extract", "promoted",
	// "failed_promote").
	EnrichmentTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_transitions_total",
			Help: "Enrichment state machine transitions by state reached",
		},
		[]string{"state"},
	)

	// BusDropsTotal counts events dropped from a subscriber's queue on
	// overflow, by topic.
	BusDropsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "eventbus_drops_total",
			Help: "Events dropped from a subscriber queue on overflow, by topic",
		},
		[]string{"topic"},
	)
)

// Register adds every collector above to reg. Called once at startup
// from cmd/ingestd; kept explicit rather than a package init() so
// tests can use their own registry.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{UploadsTotal, UploadBytes, EnrichmentTransitionsTotal, BusDropsTotal} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewServer builds the standalone metrics listener, grounded on the
// teacher's pkg/metrics exposition server.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  15 * time.Second,
	}
}
