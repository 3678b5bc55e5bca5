// Package api implements the external HTTP interface (spec §6): a single
// analysis entry point plus a progress-event stream, mirroring the
// teacher's internal/web server in structure (stdlib http.ServeMux,
// graceful shutdown on SIGINT/SIGTERM) without depending on any of its
// coding-agent-specific handlers.
package api

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mosiclaw/dialogue-orchestrator/internal/events"
	"github.com/mosiclaw/dialogue-orchestrator/internal/orchestrator"
)

// Server holds the HTTP server and its dependencies.
type Server struct {
	mux           *http.ServeMux
	analyzeHandler *AnalyzeHandler
	eventsHandler  *EventsHandler
	healthHandler  *HealthHandler
}

// NewServer constructs a Server wired to the given orchestrator, event
// bus, and health info provider.
func NewServer(orch *orchestrator.Orchestrator, bus *events.Bus, info HealthInfo) *Server {
	s := &Server{
		mux:            http.NewServeMux(),
		analyzeHandler: NewAnalyzeHandler(orch),
		eventsHandler:  NewEventsHandler(bus),
		healthHandler:  NewHealthHandler(info),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/api/analyze", s.analyzeHandler.ServeHTTP)
	s.mux.HandleFunc("/api/events/", s.eventsHandler.ServeHTTP)
	s.mux.HandleFunc("/api/health", s.healthHandler.ServeHTTP)
}

// Start begins listening with graceful shutdown, matching the teacher's
// internal/web.Server.Start idiom exactly (same env vars, same 10s
// shutdown grace period).
func (s *Server) Start() error {
	port := os.Getenv("WEB_PORT")
	if port == "" {
		port = "8080"
	}
	host := os.Getenv("WEB_HOST")
	if host == "" {
		host = "127.0.0.1"
	}
	addr := host + ":" + port

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		log.Printf("[API] received signal %v, shutting down gracefully", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[API] graceful shutdown error: %v", err)
		}
	}()

	log.Printf("[API] dialogue orchestrator listening at http://%s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		log.Println("[API] server stopped gracefully")
		return nil
	}
	return err
}
