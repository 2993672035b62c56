// Package server provides the optional status HTTP server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HerbHall/feedwatch/internal/spike"
	"github.com/HerbHall/feedwatch/internal/version"
)

// FeedSource exposes tracked feed statistics. *spike.Tracker satisfies it.
type FeedSource interface {
	Snapshot() []spike.FeedStats
	Get(id uint32) (spike.FeedStats, bool)
}

// Per-peer request budget for the non-probe routes.
const (
	peerRequestsPerSecond = 20
	peerBurst             = 40
)

// ReadinessChecker verifies that the monitor is ready.
// Returns nil if ready, an error describing why not otherwise.
type ReadinessChecker func(ctx context.Context) error

// Server is the status HTTP server.
type Server struct {
	httpServer *http.Server
	feeds      FeedSource
	logger     *zap.Logger
	mux        *http.ServeMux
	ready      ReadinessChecker
}

// New creates the status server. ready may be nil, in which case /readyz
// always reports ready.
func New(addr string, feeds FeedSource, logger *zap.Logger, ready ReadinessChecker) *Server {
	mux := http.NewServeMux()

	s := &Server{
		feeds:  feeds,
		logger: logger,
		mux:    mux,
		ready:  ready,
	}

	s.registerRoutes()

	handler := Chain(mux,
		withRecovery(logger),
		withRequestID,
		withAccessLog(logger),
		withHeaders,
		withReadOnly,
		withPeerLimit(peerRequestsPerSecond, peerBurst),
	)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerRoutes() {
	// Probes.
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /readyz", s.handleReadyz)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Tracker state.
	s.mux.HandleFunc("GET /api/v1/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/feeds", s.handleFeeds)
	s.mux.HandleFunc("GET /api/v1/feeds/{id}", s.handleFeed)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("starting status server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("status server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down status server")
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealthz is a liveness probe; it answers while the process runs.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleReadyz answers 200 once the monitor has completed a recent cycle.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Tracked int               `json:"tracked"`
	Version map[string]string `json:"version"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Service: "feedwatch",
		Tracked: len(s.feeds.Snapshot()),
		Version: version.Map(),
	})
}

// handleFeeds lists every tracked feed's statistics, ordered by id.
func (s *Server) handleFeeds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.feeds.Snapshot())
}

// handleFeed returns one feed's statistics.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		writeProblem(w, r, http.StatusBadRequest, "feed id must be an unsigned 32-bit integer")
		return
	}

	st, ok := s.feeds.Get(uint32(id))
	if !ok {
		writeProblem(w, r, http.StatusNotFound, fmt.Sprintf("feed %d is not tracked", id))
		return
	}
	writeJSON(w, http.StatusOK, st)
}
