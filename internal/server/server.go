package server

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/snarehq/snare/internal/aggregator"
)

// Server exposes the live pipeline over HTTP: health, stats, and a
// WebSocket event stream for dashboard clients.
type Server struct {
	engine *gin.Engine
	stats  func() aggregator.Stats
	b      *Broadcaster
	port   string
	logger *slog.Logger
}

// New creates the dashboard server.
func New(stats func() aggregator.Stats, b *Broadcaster, port string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		stats:  stats,
		b:      b,
		port:   port,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		stats := s.stats()
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"uptime":         stats.Uptime,
			"sources":        stats.Sources,
			"eps":            stats.EPS,
			"dropped_events": s.b.Dropped(),
		})
	})

	s.engine.GET("/api/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.stats())
	})

	s.engine.GET("/ws", s.handleWebSocket)
}

// Start runs the server. Blocks until the server is stopped.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "port", s.port)
	return s.engine.Run(":" + s.port)
}
