// Package api exposes the engine over HTTP (gin), a websocket event stream
// and a gRPC health service.
package api

import (
	"net/http"
	"time"

	"trading-engine/internal/engine"
	"trading-engine/internal/events"
	"trading-engine/internal/monitor"

	"github.com/gin-gonic/gin"
)

// Options configures the HTTP server.
type Options struct {
	JWTSecret      string
	Broadcaster    *events.Broadcaster
	Metrics        *monitor.SystemMetrics
	RateLimit      float64 // requests per second per client IP
	RateBurst      int
	RequestTimeout time.Duration
}

// Server wires HTTP endpoints around the engine facade.
type Server struct {
	Router      *gin.Engine
	Engine      engine.Service
	Broadcaster *events.Broadcaster
	Metrics     *monitor.SystemMetrics
	JWTSecret   string
}

func NewServer(svc engine.Service, opts Options) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 20
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 50
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}

	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())              // Panic recovery (first)
	r.Use(RequestIDMiddleware())       // Request ID tracking
	r.Use(RequestLogger(opts.Metrics)) // Request logging (after ID is set)
	r.Use(RateLimitMiddleware(newIPLimiter(opts.RateLimit, opts.RateBurst)))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(CORSMiddleware()) // CORS (last before routes)

	s := &Server{
		Router:      r,
		Engine:      svc,
		Broadcaster: opts.Broadcaster,
		Metrics:     opts.Metrics,
		JWTSecret:   opts.JWTSecret,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/metrics", s.getMetrics)
		api.GET("/symbols/:symbol", s.getSymbol)
		api.GET("/positions", s.getPositions)
		api.GET("/orders", s.getOrders)
		api.GET("/risk", s.getRiskMetrics)
		api.GET("/risk/config", s.getRiskConfig)
		api.GET("/strategies", s.getStrategies)

		// Mutating API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/events", s.publishEvent)
			protected.POST("/intents", s.handleIntent)
			protected.POST("/orders", s.createOrder)
			protected.DELETE("/orders/:id", s.cancelOrder)

			protected.POST("/strategies/:id/pause", s.pauseStrategy)
			protected.POST("/strategies/:id/resume", s.resumeStrategy)

			protected.PUT("/risk/config", s.updateRiskConfig)
			protected.POST("/risk/reset", s.resetRiskDaily)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	running := s.Engine.Running()
	status := http.StatusOK
	if !running {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"status": statusText(running), "running": running})
}

func statusText(running bool) string {
	if running {
		return "ok"
	}
	return "stopped"
}

// HTTPServer returns an http.Server bound to addr so the caller controls
// shutdown.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
