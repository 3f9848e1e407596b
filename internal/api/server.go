// Package api serves the controller's JSON API: measurement windows, CSV
// exports, cycle history and manual cycle runs.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/dripline/internal/cycle"
	"github.com/lox/dripline/internal/store"
)

// CycleRunner runs one decision cycle on demand.
type CycleRunner interface {
	Run(ctx context.Context) (*cycle.Outcome, error)
}

type Server struct {
	store  *store.Store
	port   string
	loc    *time.Location
	runner CycleRunner
	now    func() time.Time
}

func NewServer(store *store.Store, port string, loc *time.Location) *Server {
	return &Server{
		store: store,
		port:  port,
		loc:   loc,
		now:   time.Now,
	}
}

// SetCycleRunner enables POST /api/cycle.
func (s *Server) SetCycleRunner(r CycleRunner) {
	s.runner = r
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/measurements", s.handleMeasurements)
	mux.HandleFunc("GET /api/export.csv", s.handleExportCSV)
	mux.HandleFunc("GET /api/cycles", s.handleCycles)
	mux.HandleFunc("POST /api/cycle", s.handleRunCycle)
	mux.HandleFunc("GET /api/ingest/health", s.handleIngestHealth)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
