package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/flowpulse/flowpulse/internal/config"
	"github.com/flowpulse/flowpulse/internal/engine"
	"github.com/flowpulse/flowpulse/internal/telemetry"
)

// Server is the read-only HTTP surface over the engine plus the
// WebSocket push stream and Prometheus metrics.
type Server struct {
	router *mux.Router
	server *http.Server
	engine *engine.Engine
	cfg    config.ServerConfig
}

// NewServer builds the server and wires all routes.
func NewServer(cfg config.ServerConfig, eng *engine.Engine, metrics *telemetry.Registry) *Server {
	s := &Server{
		router: mux.NewRouter(),
		engine: eng,
		cfg:    cfg,
	}

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/ws", s.handleStream)

	v1 := s.router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/instruments", s.handleInstruments).Methods(http.MethodGet)
	v1.HandleFunc("/instruments/{symbol}/factors", s.handleFactors).Methods(http.MethodGet)
	v1.HandleFunc("/instruments/{symbol}/scenarios", s.handleScenarios).Methods(http.MethodGet)
	v1.HandleFunc("/instruments/{symbol}/levels", s.handleLevels).Methods(http.MethodGet)
	v1.HandleFunc("/instruments/{symbol}/flow", s.handleFlow).Methods(http.MethodGet)
	v1.HandleFunc("/instruments/{symbol}/events", s.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/instruments/{symbol}/transactions", s.handleTransactions).Methods(http.MethodGet)
	v1.HandleFunc("/signals", s.handleSignals).Methods(http.MethodGet)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
