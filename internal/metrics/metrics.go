// Package metrics provides Prometheus metrics for the filer client.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spacefiler/spacefiler/internal/logging"
)

var (
	// Listing metrics
	listingFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacefiler_listing_fetches_total",
			Help: "Total folder listing fetches",
		},
		[]string{"status"},
	)

	listingFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spacefiler_listing_fetch_duration_seconds",
			Help:    "Folder listing fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Upload metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacefiler_uploads_total",
			Help: "Total uploads by action and outcome",
		},
		[]string{"action", "status"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spacefiler_upload_bytes_total",
			Help: "Total bytes of successfully uploaded files",
		},
	)

	uploadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spacefiler_uploads_tracked",
			Help: "Number of entries in the upload map",
		},
	)

	// Conflict metrics
	conflictChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacefiler_conflict_checks_total",
			Help: "Total existence checks by result",
		},
		[]string{"result"},
	)

	conflictDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spacefiler_conflict_decisions_total",
			Help: "Total conflict decisions",
		},
		[]string{"decision"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordListingFetch records one listing fetch.
func RecordListingFetch(duration time.Duration, success bool) {
	listingFetchDuration.Observe(duration.Seconds())
	listingFetchesTotal.WithLabelValues(status(success)).Inc()
}

// RecordUpload records a finished upload attempt.
func RecordUpload(action string, bytes int64, success bool) {
	if action == "" {
		action = "new"
	}
	uploadsTotal.WithLabelValues(action, status(success)).Inc()
	if success {
		uploadBytesTotal.Add(float64(bytes))
	}
}

// SetTrackedUploads sets the current size of the upload map.
func SetTrackedUploads(n int) {
	uploadsInFlight.Set(float64(n))
}

// RecordConflictCheck records an existence check: "exists", "free" or "error".
func RecordConflictCheck(result string) {
	conflictChecksTotal.WithLabelValues(result).Inc()
}

// RecordConflictDecision records "replace", "keep_both" or "skip".
func RecordConflictDecision(decision string) {
	conflictDecisionsTotal.WithLabelValues(decision).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if logger != nil {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
