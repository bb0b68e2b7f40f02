// Package server exposes the research pipeline over HTTP. The research
// endpoint streams newline-delimited JSON progress events over a single
// response; health and metrics endpoints are plain JSON.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/FranksOps/dossier/internal/pipeline"
	"github.com/FranksOps/dossier/internal/stream"
)

// Runner starts one research run and emits its progress. Satisfied by
// *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, emit stream.Emitter)
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	runner Runner
	logger *slog.Logger
}

// New builds a Server around the given runner.
func New(runner Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{runner: runner, logger: logger}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/api/research", s.handleResearch)
	r.Get("/healthz", s.handleHealth)

	return r
}

// researchRequest is the wire form of one research job.
type researchRequest struct {
	CompanyName      string `json:"company_name"`
	Requirements     string `json:"requirements"`
	EnableComparison bool   `json:"enable_comparison"`
	CompetitorNames  string `json:"competitor_names"`
}

// handleResearch runs the pipeline and streams its progress as NDJSON.
// Invalid input still produces a well-formed stream: a single terminal error
// event, so stream consumers never need a second error channel.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	out := stream.NewWriter(w)

	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		out.Emit(stream.Error(fmt.Sprintf("invalid request body: %v", err)))
		return
	}

	req.CompanyName = strings.TrimSpace(req.CompanyName)
	req.Requirements = strings.TrimSpace(req.Requirements)
	if req.CompanyName == "" || req.Requirements == "" {
		out.Emit(stream.Error("company_name and requirements are required"))
		return
	}

	s.logger.Info("research started",
		"company", req.CompanyName,
		"comparison", req.EnableComparison,
		"request_id", middleware.GetReqID(r.Context()),
	)
	start := time.Now()

	s.runner.Run(r.Context(), pipeline.Request{
		Company:          req.CompanyName,
		Requirements:     req.Requirements,
		EnableComparison: req.EnableComparison,
		CompetitorNames:  req.CompetitorNames,
	}, out)

	s.logger.Info("research finished", "company", req.CompanyName, "duration", time.Since(start))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// ListenAndServe runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully within the given timeout.
func (s *Server) ListenAndServe(ctx context.Context, port int, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
