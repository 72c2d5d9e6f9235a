// Package web serves the streaming endpoints, the stats and status API and
// the health probes.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/VickramC07/BikeGuard/internal/config"
	"github.com/VickramC07/BikeGuard/internal/health"
	"github.com/VickramC07/BikeGuard/internal/logger"
	"github.com/VickramC07/BikeGuard/internal/pipeline"
	"github.com/VickramC07/BikeGuard/internal/service"
	"github.com/VickramC07/BikeGuard/internal/stream"
)

//go:embed static/index.html
var staticFiles embed.FS

// LoopStatus is the read side of the frame loop
type LoopStatus interface {
	State() pipeline.State
	Stats() pipeline.Stats
}

// Deps are the components the server exposes
type Deps struct {
	Sink   *stream.Sink
	Loop   LoopStatus
	Health *health.Manager
	WS     stream.WSConfig
}

// Server represents the web server service
type Server struct {
	*service.ServiceBase
	config     *config.WebConfig
	logger     *logger.Logger
	deps       Deps
	router     *gin.Engine
	httpServer *http.Server
	version    string
	startTime  time.Time

	mu   sync.Mutex
	addr net.Addr
}

// NewServer creates a new web server service
func NewServer(cfg *config.WebConfig, deps Deps, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	log = log.Named("web")
	router := gin.New()
	router.Use(ginLogger(log))
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	s := &Server{
		ServiceBase: service.NewServiceBase("web-server", log),
		config:      cfg,
		logger:      log,
		deps:        deps,
		router:      router,
		version:     "dev",
		startTime:   time.Now(),
	}
	s.setupRoutes()
	return s
}

// SetVersion sets the application version
func (s *Server) SetVersion(version string) {
	s.version = version
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound address once started
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start binds the listen address and serves in the background
func (s *Server) Start(ctx context.Context) error {
	addr := s.config.Address()

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	// No write or idle timeouts: stream handlers manage their own deadlines.
	s.httpServer = &http.Server{
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.LogError("Web server error", err, "address", ln.Addr().String())
		}
	}()

	s.LogInfo("Web server started", "address", ln.Addr().String())
	return nil
}

// Stop stops the web server
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.LogInfo("Stopping web server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/ws/stream", s.handleWebSocket)

	api := s.router.Group("/api")
	{
		api.GET("/stream.mjpeg", s.handleMJPEG)
		api.GET("/snapshot", s.handleSnapshot)
		api.GET("/stats", s.handleStats)
		api.GET("/status", s.handleStatus)
	}

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/health/live", s.handleLiveness)
	s.router.GET("/health/ready", s.handleReadiness)

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}

// ginLogger creates a Gin middleware for logging
func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}

// corsMiddleware allows viewers served from other origins on the local network
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
