// Package api is the authority HTTP server: it serves canonical workspace
// records, rules on feature writes and publishes the resulting echoes.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/marcus/wsmenu/internal/serverdb"
)

// Publisher sends echoes to listening clients.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
}

// Server is the authority HTTP server.
type Server struct {
	config    Config
	http      *http.Server
	store     *serverdb.ServerDB
	publisher Publisher
	metrics   *Metrics

	mu       sync.RWMutex // guards latency and failRate
	latency  time.Duration
	failRate float64
	rand     func() float64
}

// NewServer builds a server over store. publisher may be nil.
func NewServer(cfg Config, store *serverdb.ServerDB, publisher Publisher) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	s := &Server{
		config:    cfg,
		store:     store,
		publisher: publisher,
		metrics:   NewMetrics(),
		latency:   cfg.Latency,
		failRate:  cfg.FailRate,
		rand:      rand.Float64,
	}
	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Metrics returns the server counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Start listens and serves in the background. It returns the bound address.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) faults() (time.Duration, float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latency, s.failRate
}

// SetFaults changes injected latency and failure rate at runtime.
func (s *Server) SetFaults(latency time.Duration, failRate float64) error {
	if latency < 0 {
		return fmt.Errorf("latency must not be negative")
	}
	if failRate < 0 || failRate > 1 {
		return fmt.Errorf("fail_rate must be between 0.0 and 1.0")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency, s.failRate = latency, failRate
	return nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(loggerMiddleware)
	r.Use(metricsMiddleware(s.metrics))
	r.Use(loggingMiddleware)
	r.Use(maxBytesMiddleware(s.config.MaxBodyBytes))

	r.Get("/healthz", s.handleHealth)
	r.Get("/metricz", s.handleMetrics)
	r.Get("/admin/faults", s.handleGetFaults)
	r.Put("/admin/faults", s.handleSetFaults)

	// Fault injection applies to the data API only.
	r.Route("/v1", func(r chi.Router) {
		r.Use(s.latencyInjection)
		r.Use(s.randomFailure)

		r.Get("/workspaces", s.handleListWorkspaces)
		r.Get("/workspaces/{id}", s.handleGetWorkspace)
		r.Post("/workspaces/{id}/features/{feature}", s.handleSetFeature)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
