package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"signal-gateway/internal/broker"
	"signal-gateway/internal/events"
	"signal-gateway/internal/health"
	"signal-gateway/internal/monitor"
	"signal-gateway/internal/persistence"
	"signal-gateway/internal/registry"
	"signal-gateway/internal/signal"
	"signal-gateway/pkg/db"
)

// Deps are the collaborators the HTTP server routes requests to.
type Deps struct {
	Engine     *signal.Engine
	Publisher  broker.Publisher
	Registry   *registry.Registry
	DB         *db.Database
	Bus        *events.Bus
	Metrics    *monitor.SystemMetrics
	Prom       *monitor.Prometheus // nil disables /metrics
	Health     *health.Checker
	Audit      *persistence.BatchWriter // nil when the audit log is disabled
	Log        zerolog.Logger
	JWTSecret  string
	EventStore string
	RoutingKey string
	Timeout    time.Duration
}

// Server wires HTTP endpoints around the signal engine and the publish sink.
type Server struct {
	Router *gin.Engine
	Deps
	limiter *ipLimiter
}

func NewServer(deps Deps) *Server {
	if deps.Timeout <= 0 {
		deps.Timeout = 30 * time.Second
	}
	r := gin.New()
	s := &Server{Router: r, Deps: deps, limiter: newIPLimiter(20, 50, 5*time.Minute)}

	// Middleware stack (order matters!)
	r.Use(Recovery(s.Log))                   // Panic recovery (first)
	r.Use(RequestIDMiddleware())             // Request ID tracking
	r.Use(RequestLogger(s.Log, s.Prom))      // Request logging (after ID is set)
	r.Use(RateLimitMiddleware(s.limiter))    // Rate limiting
	r.Use(TimeoutMiddleware(s.Deps.Timeout)) // Request deadline
	r.Use(CORSMiddleware())                  // CORS (last before routes)

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/HealthCheck", s.healthCheck)
	s.Router.GET("/ws", StreamAuthMiddleware(s.JWTSecret), s.websocket)
	if s.Prom != nil {
		s.Router.GET("/metrics", gin.WrapH(s.Prom.Handler()))
	}

	webhook := s.Router.Group("/webhook")
	{
		webhook.POST("/signals", s.receiveSignal)
	}

	api := s.Router.Group("/api")
	{
		api.GET("/metrics", s.getMetrics)

		// Auth endpoints (register is open only until the first operator exists)
		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Protected API
		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/bots", s.listBots)
			protected.POST("/bots", s.createBot)
			protected.PUT("/bots/:id/active", s.setBotActive)
			protected.DELETE("/bots/:id", s.deleteBot)

			protected.GET("/bots/:id/secrets", s.listSecrets)
			protected.POST("/bots/:id/secrets", s.createSecret)

			protected.GET("/bots/:id/channels", s.listChannels)
			protected.POST("/bots/:id/channels", s.createChannel)
			protected.PUT("/bots/:id/channels/:name/mapping", s.updateChannelMapping)

			protected.GET("/webhook-log", s.listWebhookLog)
		}
	}
}

// health reports database connectivity and answers 503 when unhealthy.
func (s *Server) health(c *gin.Context) {
	st := s.Health.Check(c.Request.Context())
	code := http.StatusOK
	if !st.Healthy() {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, st)
}

// healthCheck always answers 200 and carries the verdict in the body.
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, s.Health.Check(c.Request.Context()))
}

type metricsResponse struct {
	monitor.MetricsSnapshot
	Audit *persistence.BatchWriterMetrics `json:"audit,omitempty"`
}

func (s *Server) getMetrics(c *gin.Context) {
	resp := metricsResponse{MetricsSnapshot: s.Metrics.GetSnapshot()}
	if s.Audit != nil {
		m := s.Audit.GetMetrics()
		resp.Audit = &m
	}
	c.JSON(http.StatusOK, resp)
}

// Handler exposes the router for an http.Server owned by the caller.
func (s *Server) Handler() http.Handler {
	return s.Router
}
