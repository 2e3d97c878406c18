// Package metrics exposes Prometheus counters for the sync engine. Metrics
// are optional: they are only served when the operator passes a listen
// address, but they are always collected.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequests counts report queries by outcome ("success", "error").
	APIRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tap_google_analytics",
		Name:      "api_requests_total",
		Help:      "Report API queries issued, by outcome.",
	}, []string{"outcome"})

	// APIRetries counts report queries that were retried after a
	// transient error.
	APIRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tap_google_analytics",
		Name:      "api_retries_total",
		Help:      "Report API queries retried after a transient error.",
	})

	// RecordsEmitted counts records written to the output sink per stream.
	RecordsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tap_google_analytics",
		Name:      "records_emitted_total",
		Help:      "Records emitted to the output sink, by stream.",
	}, []string{"stream"})

	// WindowsCompleted counts report windows fully synced per stream.
	WindowsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tap_google_analytics",
		Name:      "windows_completed_total",
		Help:      "Report windows completed and bookmarked, by stream.",
	}, []string{"stream"})

	// StreamOutcomes counts terminal stream states by status.
	StreamOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tap_google_analytics",
		Name:      "stream_outcomes_total",
		Help:      "Terminal stream states, by stream and status.",
	}, []string{"stream", "status"})

	// WindowDuration observes wall time per completed window.
	WindowDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tap_google_analytics",
		Name:      "window_duration_seconds",
		Help:      "Wall time spent syncing one report window.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stream"})
)

// Serve exposes /metrics on addr in a background goroutine. Errors from the
// listener are returned on the channel; the caller decides whether a broken
// metrics endpoint is fatal.
func Serve(addr string) <-chan error {
	errs := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		errs <- server.ListenAndServe()
	}()

	return errs
}
