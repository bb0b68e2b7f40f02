package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dossier_search_queries_total",
			Help: "Total number of SERP queries issued",
		},
		[]string{"status"},
	)

	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dossier_page_fetches_total",
			Help: "Total number of page fetches by outcome",
		},
		[]string{"domain", "outcome"},
	)

	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dossier_page_fetch_duration_seconds",
			Help:    "Duration of page fetch and extraction in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"domain"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dossier_research_runs_total",
			Help: "Total number of research runs by terminal status",
		},
		[]string{"status"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dossier_research_run_duration_seconds",
			Help:    "Wall-clock duration of a full research run",
			Buckets: []float64{5, 15, 30, 60, 120, 300},
		},
	)
)

// RecordFetch updates fetch counters for one URL attempt. Outcome is one of
// "ok", "skip" or "error".
func RecordFetch(domain, outcome string, duration time.Duration) {
	FetchesTotal.WithLabelValues(domain, outcome).Inc()
	FetchDuration.WithLabelValues(domain).Observe(duration.Seconds())
}

// RecordRun updates run counters with the terminal status of one run.
func RecordRun(status string, duration time.Duration) {
	RunsTotal.WithLabelValues(status).Inc()
	RunDuration.Observe(duration.Seconds())
}

// Server exposes /metrics for Prometheus scraping.
type Server struct {
	srv *http.Server
}

// Start begins listening on the given port in a background goroutine.
func Start(port int) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server failed: %v\n", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
