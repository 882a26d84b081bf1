// Package server exposes the provisioning service over HTTP: workflow runs,
// network-free draft validation, registry inspection, health, and metrics.
package server

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/gateprov/gateprov/internal/credcache"
	"github.com/gateprov/gateprov/internal/infrastructure/config"
	"github.com/gateprov/gateprov/internal/infrastructure/monitoring"
	"github.com/gateprov/gateprov/internal/logging"
	"github.com/gateprov/gateprov/internal/registry"
)

// Server wraps the HTTP server and dependencies.
type Server struct {
	router   *gin.Engine
	registry *registry.Manager
	creds    *credcache.Cache
	logger   *logging.Logger
	config   *config.Config
	metrics  *monitoring.Metrics
}

// NewServer creates a new server instance.
func NewServer(cfg *config.Config) (*Server, error) {
	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		logger = logging.NewDefault()
	}

	logger.Info("Initializing gateprov server",
		zap.String("port", cfg.Server.Port),
		zap.String("registry", cfg.Registry.Path),
	)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.New(promRegistry)

	reg, err := registry.NewManager(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance registry: %w", err)
	}
	logger.Info("Instance registry loaded", zap.Int("instances", len(reg.List())))

	creds := credcache.New(credcache.Options{
		TTL:       cfg.Cache.TTL,
		HighWater: cfg.Cache.HighWater,
		Keep:      cfg.Cache.Keep,
	})
	creds.SetRecorder(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(monitoring.Middleware(metrics))
	router.Use(CORS(DefaultCORSConfig()))

	handlers := NewHandlers(reg, creds, cfg, logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	v1 := router.Group("/v1")
	{
		v1.GET("/instances", handlers.ListInstances)
		v1.POST("/instances/:id/entities", handlers.CreateEntity)
		v1.POST("/validate", handlers.ValidateDraft)
		v1.POST("/registry/reload", handlers.ReloadRegistry)
	}

	logger.Info("Server initialized successfully")

	return &Server{
		router:   router,
		registry: reg,
		creds:    creds,
		logger:   logger,
		config:   cfg,
		metrics:  metrics,
	}, nil
}

// Router exposes the underlying engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	addr := s.config.Server.Host + ":" + s.config.Server.Port
	s.logger.Info("Starting HTTP server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close gracefully shuts down the server.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")
	s.logger.Sync()
	return nil
}
