package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"snappy-license-server/config"
	"snappy-license-server/internal/auth"
	"snappy-license-server/internal/cache"
	"snappy-license-server/internal/database"
	"snappy-license-server/internal/events"
	"snappy-license-server/internal/license"
	"snappy-license-server/internal/vault"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins string
	ProductionMode bool
}

// Server represents the HTTP API server
type Server struct {
	router         *gin.Engine
	httpServer     *http.Server
	repo           *database.Repository
	licenseService *license.Service
	authService    *auth.Service
	jwtManager     *auth.JWTManager
	eventBus       *events.EventBus
	dashboardCache *cache.DashboardCache
	vaultClient    *vault.Client
	payment        config.PaymentConfig
	pricing        license.PlanPricing
	config         ServerConfig
	rateLimiter    *RateLimiter
	logger         zerolog.Logger
	startedAt      time.Time
}

// NewServer creates a new API server. dashboardCache and vaultClient
// may be nil when those backends are disabled.
func NewServer(
	cfg ServerConfig,
	repo *database.Repository,
	licenseService *license.Service,
	authService *auth.Service,
	jwtManager *auth.JWTManager,
	eventBus *events.EventBus,
	dashboardCache *cache.DashboardCache,
	vaultClient *vault.Client,
	payment config.PaymentConfig,
	pricing license.PlanPricing,
	logger zerolog.Logger,
) *Server {
	if cfg.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if cfg.AllowedOrigins == "" || cfg.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(cfg.AllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	corsConfig.ExposeHeaders = []string{"Content-Length"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:         router,
		repo:           repo,
		licenseService: licenseService,
		authService:    authService,
		jwtManager:     jwtManager,
		eventBus:       eventBus,
		dashboardCache: dashboardCache,
		vaultClient:    vaultClient,
		payment:        payment,
		pricing:        pricing,
		config:         cfg,
		rateLimiter:    NewRateLimiter(120, time.Minute),
		logger:         logger.With().Str("component", "api").Logger(),
		startedAt:      time.Now(),
	}

	server.setupRoutes()

	// WebSocket hub for the admin live event stream
	InitWebSocket(eventBus)

	return server
}

// rateLimitMiddleware creates a middleware that rate limits requests by endpoint
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "RATE_LIMITED",
				"message": "too many requests to this endpoint, please slow down",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health checks
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/api/health/status", s.handleHealthStatus)

	// Public endpoints
	s.router.GET("/api/plans", s.handleGetPlans)
	s.router.GET("/api/payment/upi-details", s.handleGetUPIDetails)
	s.router.GET("/api/payment/upi-details/:plan", s.handleGetUPIDetails)

	// Auth routes (public)
	authHandlers := auth.NewHandlers(s.authService)
	authGroup := s.router.Group("/api/auth")
	authGroup.Use(s.rateLimitMiddleware())
	{
		authGroup.POST("/register", authHandlers.Register)
		authGroup.POST("/login", authHandlers.Login)
	}

	// Authenticated user routes
	api := s.router.Group("/api")
	api.Use(s.rateLimitMiddleware())
	api.Use(auth.Middleware(s.jwtManager))
	{
		api.GET("/auth/me", authHandlers.Me)

		api.POST("/payment/submit", s.handleSubmitPayment)
		api.GET("/licenses", s.handleGetMyLicenses)
		api.GET("/licenses/:id", s.handleGetMyLicense)
		api.GET("/dashboard", s.handleGetDashboard)
	}

	// Admin routes
	admin := s.router.Group("/admin")
	admin.Use(s.rateLimitMiddleware())
	admin.Use(auth.Middleware(s.jwtManager))
	admin.Use(auth.RequireAdmin())
	{
		admin.GET("/licenses", s.handleAdminListLicenses)
		admin.GET("/licenses/pending", s.handleAdminPendingLicenses)
		admin.GET("/licenses/:id", s.handleAdminGetLicense)
		admin.GET("/licenses/:id/payment-logs", s.handleAdminPaymentLogs)
		admin.POST("/licenses/:id/verify", s.handleAdminVerifyLicense)
		admin.POST("/licenses/:id/send-activation", s.handleAdminSendActivation)
		admin.POST("/licenses/:id/reject", s.handleAdminRejectLicense)
		admin.DELETE("/licenses/:id", s.handleAdminDeleteLicense)

		admin.GET("/events/ws", s.handleAdminEventStream)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.repo.HealthCheck(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"database": "unhealthy",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"database": "healthy",
		"uptime":   time.Since(s.startedAt).String(),
	})
}

// handleHealthStatus returns component-level health for monitoring
func (s *Server) handleHealthStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	components := gin.H{}

	if err := s.repo.HealthCheck(ctx); err != nil {
		components["database"] = gin.H{"healthy": false, "error": err.Error()}
	} else {
		components["database"] = gin.H{"healthy": true}
	}

	if s.vaultClient != nil && s.vaultClient.Enabled() {
		if err := s.vaultClient.HealthCheck(ctx); err != nil {
			components["vault"] = gin.H{"healthy": false, "error": err.Error()}
		} else {
			components["vault"] = gin.H{"healthy": true}
		}
	}

	if wsHub != nil {
		components["websocket"] = gin.H{"clients": wsHub.GetClientCount()}
	}

	c.JSON(http.StatusOK, gin.H{
		"components": components,
		"uptime":     time.Since(s.startedAt).String(),
	})
}

// respondLicenseError maps pipeline errors to HTTP status codes
func (s *Server) respondLicenseError(c *gin.Context, err error) {
	pipeErr, ok := err.(license.PipelineError)
	if !ok {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("Internal error")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "INTERNAL_ERROR",
			"message": "an internal error occurred",
		})
		return
	}

	status := http.StatusBadRequest
	switch {
	case pipeErr.Code == license.ErrLicenseNotFound.Code || pipeErr.Code == license.ErrOwnerNotFound.Code:
		status = http.StatusNotFound
	case pipeErr.Code == license.ErrDeliveryFailed.Code:
		status = http.StatusBadGateway
	case license.IsConflict(pipeErr):
		status = http.StatusConflict
	}

	c.JSON(status, gin.H{
		"error":   pipeErr.Code,
		"message": pipeErr.Message,
	})
}
