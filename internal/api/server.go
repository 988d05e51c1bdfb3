package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"horde-server/internal/config"
	"horde-server/internal/game"

	"github.com/go-chi/chi/v5"
)

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with WebSocket hub for real-time updates.
type Server struct {
	manager     *game.MatchManager
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates an API server for a match manager.
//
// Background workers do NOT start until Start() is called, so the server
// can be constructed in tests without goroutines or listeners.
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(manager *game.MatchManager, waves WaveQuerier, cfg config.AppConfig) *Server {
	s := &Server{
		manager:     manager,
		wsHub:       NewWebSocketHub(),
		rateLimiter: NewIPRateLimiter(RateLimitConfigFrom(cfg.Requests)),
	}

	tuning := cfg.Waves
	s.router = NewRouter(RouterConfig{
		Matches:     manager,
		Waves:       waves,
		Tuning:      &tuning,
		RateLimiter: s.rateLimiter,
		CORSOrigins: cfg.Server.CORSOrigins,
		ClientCount: s.wsHub.ClientCount,
	})

	// The websocket route needs the hub instance
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Hub returns the websocket hub so engine hooks can broadcast wave events
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Start begins the HTTP server AND starts background workers.
// It blocks until the server stops; http.ErrServerClosed is not an error.
func (s *Server) Start() error {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.manager)

	log.Printf("🌐 API server starting on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
func (s *Server) Router() http.Handler {
	return s.router
}

// Stop performs graceful shutdown of the listener and background workers.
func (s *Server) Stop(ctx context.Context) {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown error: %v", err)
	}
	s.wsHub.Stop()
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
}
