package api

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/energizer-project/craftflow/internal/config"
	"github.com/energizer-project/craftflow/internal/db"
	"github.com/energizer-project/craftflow/internal/events"
	"github.com/energizer-project/craftflow/internal/health"
	"github.com/energizer-project/craftflow/internal/network"
	"github.com/energizer-project/craftflow/internal/telemetry"
	"github.com/energizer-project/craftflow/internal/util"
)

// SessionLister reads the session ledger.
type SessionLister interface {
	Recent(limit int) ([]db.Session, error)
	ForConnection(connID uint64) (db.Session, bool, error)
}

// HealthReporter exposes the latest health check results.
type HealthReporter interface {
	Results() []health.Result
	Healthy() bool
}

// Server is the admin REST API server.
type Server struct {
	cfg         *config.Config
	eventBus    *events.EventBus
	connections *network.ConnectionRegistry

	// Optional dependencies
	sessions SessionLister
	metrics  *telemetry.Metrics
	health   HealthReporter

	routerOnce sync.Once
	router     *gin.Engine
	httpServer *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg *config.Config, eventBus *events.EventBus, connections *network.ConnectionRegistry) *Server {
	if cfg.GetLogging().Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	return &Server{
		cfg:         cfg,
		eventBus:    eventBus,
		connections: connections,
	}
}

// SetDependencies injects the ledger and metrics. Either may be nil, in
// which case its routes answer 503.
func (s *Server) SetDependencies(sessions SessionLister, metrics *telemetry.Metrics) {
	s.sessions = sessions
	s.metrics = metrics
}

// SetHealth injects the health manager behind /api/public/health.
func (s *Server) SetHealth(h HealthReporter) {
	s.health = h
}

// Handler returns the router, building it on first use.
func (s *Server) Handler() http.Handler {
	s.routerOnce.Do(func() { s.router = s.buildRouter() })
	return s.router
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	apiCfg := s.cfg.GetAPI()
	addr := fmt.Sprintf(":%d", apiCfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if apiCfg.TLSEnabled {
		tlsCfg, err := loadTLS(apiCfg)
		if err != nil {
			return err
		}
		s.httpServer.TLSConfig = tlsCfg
	}

	lc := network.ReuseAddrListenConfig()
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("API server error: %w", err)
	}

	log.Info().Str("addr", addr).Bool("tls", apiCfg.TLSEnabled).Msg("REST API server starting")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if s.httpServer.TLSConfig != nil {
		err = s.httpServer.Serve(tls.NewListener(ln, s.httpServer.TLSConfig))
	} else {
		err = s.httpServer.Serve(ln)
	}

	if err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server error: %w", err)
	}
	return nil
}

// loadTLS loads the configured key pair, generating a self-signed one the
// first time.
func loadTLS(apiCfg config.APIConfig) (*tls.Config, error) {
	if !util.FileExists(apiCfg.TLSCertFile) || !util.FileExists(apiCfg.TLSKeyFile) {
		log.Info().Str("cert", apiCfg.TLSCertFile).Msg("generating self-signed API certificate")
		if err := util.GenerateSelfSignedCert(apiCfg.TLSCertFile, apiCfg.TLSKeyFile); err != nil {
			return nil, fmt.Errorf("failed to generate API certificate: %w", err)
		}
	}
	cert, err := tls.LoadX509KeyPair(apiCfg.TLSCertFile, apiCfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load API certificate: %w", err)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}, nil
}

// buildRouter creates the Gin router with all routes and middleware.
func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger())
	router.Use(SecurityHeaders())

	apiCfg := s.cfg.GetAPI()
	allowedOrigins := apiCfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false, // must stay false while AllowOrigins is "*"
		MaxAge:           12 * time.Hour,
	}))

	router.Use(NewRateLimiter(apiCfg.RateLimitRPS).Middleware())

	auth := NewAuthMiddleware(s.cfg)

	public := router.Group("/api/public")
	{
		public.GET("/ping", s.handlePing)
		public.GET("/info", s.handleInfo)
		public.GET("/health", s.handleHealth)
	}

	protected := router.Group("/api")
	protected.Use(auth.RequireAuth())
	{
		protected.GET("/connections", s.handleListConnections)
		protected.GET("/connections/:id", s.handleGetConnection)
		protected.POST("/connections/:id/kick", s.handleKick)
		protected.POST("/connections/kick_all", s.handleKickAll)
		protected.GET("/versions", s.handleVersions)
		protected.GET("/sessions", s.handleSessions)
		protected.GET("/system", s.handleSystem)
		protected.GET("/config", s.handleGetConfig)
		protected.POST("/config/server", s.handleSetServerField)
	}

	metrics := router.Group("/metrics")
	metrics.Use(auth.RequireAuth())
	metrics.GET("", s.handleMetrics)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "craftflow admin API is running"})
	})

	return router
}

func (s *Server) handleMetrics(c *gin.Context) {
	if s.metrics == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metrics disabled"})
		return
	}
	promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(c.Writer, c.Request)
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
