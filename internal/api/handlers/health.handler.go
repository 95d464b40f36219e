package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/authware/rbac-core/internal/repo/policy"
	"github.com/authware/rbac-core/pkg/cache"
	"github.com/authware/rbac-core/pkg/logger"
)

type HealthHandler struct {
	store  policy.Store
	cache  cache.Valkey
	logger logger.Logger
}

func NewHealthHandler(store policy.Store, c cache.Valkey, log logger.Logger) *HealthHandler {
	return &HealthHandler{store: store, cache: c, logger: log}
}

// GET /health - quick liveness check.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "rbac-core",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// GET /ready - readiness check probing the policy store and the cache.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if _, err := h.store.ListEndpoints(c.Request.Context()); err != nil {
		checks["policy_store"] = gin.H{"status": "unhealthy", "error": err.Error()}
		healthy = false
	} else {
		checks["policy_store"] = gin.H{"status": "healthy"}
	}

	if h.cache != nil {
		probe := "ready:" + time.Now().Format("150405.000000000")
		if err := h.cache.Set(c.Request.Context(), probe, "1", time.Second); err != nil {
			checks["cache"] = gin.H{"status": "unhealthy", "error": err.Error()}
			healthy = false
		} else {
			checks["cache"] = gin.H{"status": "healthy"}
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		h.logger.Warn("Readiness check failed", "checks", checks)
	}
	c.JSON(httpStatus, gin.H{
		"status":    status,
		"service":   "rbac-core",
		"checks":    checks,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
