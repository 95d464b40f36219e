package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/authware/rbac-core/internal/api/handlers"
	"github.com/authware/rbac-core/internal/api/middleware"
	"github.com/authware/rbac-core/internal/authz"
	"github.com/authware/rbac-core/internal/config"
	"github.com/authware/rbac-core/internal/monitoring"
	"github.com/authware/rbac-core/internal/registry"
	"github.com/authware/rbac-core/internal/repo/policy"
	"github.com/authware/rbac-core/pkg/cache"
	"github.com/authware/rbac-core/pkg/logger"
)

type Server struct {
	config   *config.Config
	logger   logger.Logger
	cache    cache.Valkey
	store    policy.Store
	registry *registry.Registry

	decisions *authz.DecisionCache
	router    *gin.Engine
	http      *http.Server
}

func NewServer(cfg *config.Config, log logger.Logger, valkey cache.Valkey, store policy.Store, reg *registry.Registry) (*Server, error) {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:   cfg,
		logger:   log,
		cache:    valkey,
		store:    store,
		registry: reg,
		router:   gin.New(),
	}
	if cfg.Authz.DecisionCacheTTL > 0 {
		s.decisions = authz.NewDecisionCache(valkey, log,
			time.Duration(cfg.Authz.DecisionCacheTTL)*time.Second)
	}

	s.setupMiddleware()
	if err := s.setupRoutes(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery(s.logger, s.config.Authz.Debug))
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestLogger(s.logger))
	s.router.Use(monitoring.HTTPMetricsMiddleware())

	s.router.Use(middleware.AuthMiddleware(s.config.Auth, s.logger))
	if !s.config.Auth.Enabled {
		s.logger.Warn("Authentication is DISABLED by configuration; identity comes from trusted headers")
	}

	bypass := s.config.Authz.BypassPrefixes
	if len(bypass) == 0 {
		bypass = config.DefaultBypassPrefixes
	}
	authorizer := middleware.NewAuthorizer(
		authz.NewResolver(s.store),
		authz.NewEngine(s.store),
		s.decisions,
		s.logger,
		bypass,
	)
	s.router.Use(authorizer.Middleware())

	monitoring.SetupPrometheusMetrics(s.router)
}

func (s *Server) setupRoutes() error {
	healthHandler := handlers.NewHealthHandler(s.store, s.cache, s.logger)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	// Operator surface; lives under a bypass prefix and carries its own gate
	// in deployment.
	adminHandler := handlers.NewAdminHandler(s.store, s.decisions, s.logger)
	adminHandler.RegisterRoutes(s.router.Group("/admin/api"))

	// Tenant-facing API, guarded by the authorizer.
	apiGroup := s.router.Group("/api")
	enquiries := handlers.NewEnquiryHandler(s.logger)
	if err := enquiries.RegisterRoutes(apiGroup, s.registry); err != nil {
		return fmt.Errorf("register enquiry routes: %w", err)
	}

	s.router.NoRoute(middleware.NotFoundHandler())
	return nil
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("rbac-core API server starting", "port", s.config.Port)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down rbac-core gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// Handler returns the underlying gin engine so tests can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
