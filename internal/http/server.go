package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"reshard/pkg/metrics"
	"reshard/pkg/topology"
	"reshard/pkg/types"
)

const (
	contentTypeJSON        = "application/json"
	defaultHTTPPort        = "8080"
	defaultShutdownTimeout = time.Second * 5
)

// Info is the static part of the status payload, fixed for one operator run.
type Info struct {
	Operation    string            `json:"operation"`
	Policy       string            `json:"policy"`
	OldSegments  int               `json:"old_segments"`
	NewSegments  int               `json:"new_segments"`
	SelfIndex    int               `json:"self_index"`
	Destinations []types.SegmentID `json:"destinations,omitempty"`
}

// NewInfo assembles the static status from the operator's construction
// inputs.
func NewInfo(operation string, t topology.Topology, policy string, dests []types.SegmentID) Info {
	return Info{
		Operation:    operation,
		Policy:       policy,
		OldSegments:  t.OldCount,
		NewSegments:  t.NewCount,
		SelfIndex:    t.SelfIndex,
		Destinations: dests,
	}
}

type statusPayload struct {
	Info
	Counters map[string]float64 `json:"counters"`
}

// Server exposes the reshuffle worker's health and progress.
type Server struct {
	info       Info
	stats      metrics.Collector
	httpServer *http.Server
	addr       string
}

// NewServer creates a new status server instance.
func NewServer(port string, info Info, stats metrics.Collector) *Server {
	if port == "" {
		port = defaultHTTPPort
	}
	if stats == nil {
		stats = metrics.Nop{}
	}
	s := &Server{
		info:  info,
		stats: stats,
		addr:  ":" + port,
	}
	s.httpServer = &http.Server{
		Addr:    s.addr,
		Handler: s.createRouter(),
	}
	return s
}

// createRouter builds chi router
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, statusPayload{
		Info:     s.info,
		Counters: s.stats.Snapshot(),
	})
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		slog.Info("status server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("status server", "err", err)
		}
	}()
}

// Shutdown stops the server, waiting up to the default timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("status server shutdown: %w", err)
	}
	return nil
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}
