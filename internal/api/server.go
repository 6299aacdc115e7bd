package api

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"arena-sim/internal/config"
	"arena-sim/internal/game"
)

// statsInterval is how often the event log counters are pushed to Prometheus
const statsInterval = 5 * time.Second

// ServerConfig wires the API server's dependencies
type ServerConfig struct {
	Engine      *game.Engine
	Commands    CommandSink // optional; nil ignores WebSocket commands
	RateLimit   config.RateLimitConfig
	CORSOrigins []string
}

// Server owns the HTTP listener, the REST router and the WebSocket hub
type Server struct {
	engine      *game.Engine
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewServer wires the router and hub. No goroutines run and no port is
// opened until StartWorkers or Start.
func NewServer(cfg ServerConfig) *Server {
	limiter := NewIPRateLimiter(cfg.RateLimit)
	hub := NewWebSocketHub(cfg.CORSOrigins, cfg.Commands)

	router := NewRouter(RouterConfig{
		Engine:      cfg.Engine,
		RateLimiter: limiter,
		CORSOrigins: cfg.CORSOrigins,
	})
	router.Get("/ws", hub.HandleWebSocket)

	return &Server{
		engine:      cfg.Engine,
		router:      router,
		wsHub:       hub,
		rateLimiter: limiter,
		httpServer: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		stopChan: make(chan struct{}),
	}
}

// StartWorkers launches the hub, the state broadcast loop and the stats loop
func (s *Server) StartWorkers() {
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine)
	go s.statsLoop()
}

// Start runs the workers and serves on addr until Shutdown or a listener error
func (s *Server) Start(addr string) error {
	s.StartWorkers()

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", addr)
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🗺️  Arena plot: http://localhost%s/api/arena.png", addr)

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return errors.Wrap(err, "api server")
	}
	return nil
}

// Router returns the full handler, /ws included, for httptest
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub exposes the WebSocket hub
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown stops the workers, drops WebSocket clients and drains the listener
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wsHub.Stop()
	s.rateLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// statsLoop mirrors event log totals into Prometheus counters
func (s *Server) statsLoop() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			stats := s.engine.GetEventLogStats()
			UpdateEventLogStats(stats.Total, stats.Dropped)
		}
	}
}
