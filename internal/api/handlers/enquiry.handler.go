package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/authware/rbac-core/internal/api/middleware"
	"github.com/authware/rbac-core/internal/registry"
	"github.com/authware/rbac-core/internal/tenantctx"
	"github.com/authware/rbac-core/pkg/logger"
)

// Enquiry is a sample domain record demonstrating tenant-scoped reads
// behind the authorization layer.
type Enquiry struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// EnquiryHandler stores enquiries per tenant. Data access goes through
// the tenant carried on the request context; an unset tenant yields the
// empty set, never cross-tenant rows.
type EnquiryHandler struct {
	mu     sync.RWMutex
	byID   map[string]*Enquiry
	logger logger.Logger
}

func NewEnquiryHandler(log logger.Logger) *EnquiryHandler {
	return &EnquiryHandler{byID: make(map[string]*Enquiry), logger: log}
}

// RegisterRoutes mounts the handler and declares its routes for catalog
// reconciliation.
func (h *EnquiryHandler) RegisterRoutes(g *gin.RouterGroup, reg *registry.Registry) error {
	g.GET("/enquiries", h.List)
	g.POST("/enquiries", h.Create)
	g.GET("/enquiries/:id", h.Get)

	if err := reg.Register(registry.Route{
		Path: "/api/enquiries", ModuleCode: "CRM", ModuleName: "Crm",
		SubModuleCode: "LEADS", SubModuleName: "Leads",
		Operations: []registry.Operation{{HTTPMethod: "GET"}, {HTTPMethod: "POST"}},
	}); err != nil {
		return err
	}
	return reg.Register(registry.Route{
		Path: "/api/enquiries/{id}", ModuleCode: "CRM", ModuleName: "Crm",
		SubModuleCode: "LEADS", SubModuleName: "Leads",
		Operations: []registry.Operation{{HTTPMethod: "GET"}},
	})
}

// GET /api/enquiries
func (h *EnquiryHandler) List(c *gin.Context) {
	tenantID, _ := tenantctx.From(c.Request.Context())

	h.mu.RLock()
	out := make([]*Enquiry, 0)
	for _, e := range h.byID {
		if tenantID != "" && e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	h.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"enquiries": out, "total": len(out)}})
}

// GET /api/enquiries/:id
func (h *EnquiryHandler) Get(c *gin.Context) {
	tenantID, _ := tenantctx.From(c.Request.Context())

	h.mu.RLock()
	e, ok := h.byID[c.Param("id")]
	h.mu.RUnlock()

	if !ok || tenantID == "" || e.TenantID != tenantID {
		middleware.WriteError(c, http.StatusNotFound, "enquiry not found")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": e})
}

// POST /api/enquiries
func (h *EnquiryHandler) Create(c *gin.Context) {
	tenantID, ok := tenantctx.From(c.Request.Context())
	if !ok {
		middleware.WriteError(c, http.StatusBadRequest, "tenant context is required")
		return
	}

	var req struct {
		Name    string `json:"name"`
		Email   string `json:"email"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		middleware.WriteError(c, http.StatusBadRequest, "name is required")
		return
	}

	e := &Enquiry{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(req.Name),
		Email:     req.Email,
		Message:   req.Message,
		CreatedAt: time.Now(),
	}
	h.mu.Lock()
	h.byID[e.ID] = e
	h.mu.Unlock()

	h.logger.Info("Enquiry created", "enquiry_id", e.ID, "tenant_id", tenantID)
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": e})
}
