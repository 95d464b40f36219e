package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/authware/rbac-core/internal/api/middleware"
	"github.com/authware/rbac-core/internal/authz"
	"github.com/authware/rbac-core/internal/models"
	"github.com/authware/rbac-core/internal/repo/policy"
	"github.com/authware/rbac-core/pkg/logger"
)

// AdminHandler exposes the administrative writes that shape policy: roles,
// grants, user-role assignment, user blocks, tenant operation overrides,
// and module subscriptions. Every mutation invalidates the affected
// verdict cache entries so policy changes take effect immediately.
//
// These routes live under /admin/ and are therefore outside the
// authorization regime themselves; deployment puts them behind a
// separate operator-facing gate.
type AdminHandler struct {
	store     policy.Store
	decisions *authz.DecisionCache // may be nil
	logger    logger.Logger
}

func NewAdminHandler(store policy.Store, decisions *authz.DecisionCache, log logger.Logger) *AdminHandler {
	return &AdminHandler{store: store, decisions: decisions, logger: log}
}

// RegisterRoutes mounts the admin surface on the given group.
func (h *AdminHandler) RegisterRoutes(g *gin.RouterGroup) {
	g.POST("/tenants", h.CreateTenant)
	g.GET("/tenants/:id", h.GetTenant)
	g.POST("/users", h.CreateUser)

	g.POST("/roles", h.CreateRole)
	g.GET("/roles", h.ListRoles)
	g.DELETE("/roles/:id", h.DeleteRole)
	g.POST("/roles/:id/grants", h.GrantPermission)
	g.POST("/users/:id/roles", h.AssignRole)

	g.POST("/blocks", h.CreateBlock)
	g.DELETE("/blocks", h.DeleteBlock)
	g.PUT("/overrides", h.SetOverride)
	g.PUT("/subscriptions", h.UpsertSubscription)
}

func (h *AdminHandler) invalidateTenant(c *gin.Context, tenantID string) {
	if h.decisions == nil {
		return
	}
	if err := h.decisions.InvalidateTenant(c.Request.Context(), tenantID); err != nil {
		h.logger.Warn("Failed to invalidate tenant verdicts", "tenant_id", tenantID, "error", err)
	}
}

func (h *AdminHandler) invalidateUser(c *gin.Context, tenantID, userID string) {
	if h.decisions == nil {
		return
	}
	if err := h.decisions.InvalidateUser(c.Request.Context(), tenantID, userID); err != nil {
		h.logger.Warn("Failed to invalidate user verdicts", "tenant_id", tenantID, "user_id", userID, "error", err)
	}
}

func (h *AdminHandler) audit(c *gin.Context, action string, fields ...interface{}) {
	fields = append(fields,
		"action", action,
		"actor", c.GetString(middleware.UserIDKey),
		"request_id", c.GetString(middleware.RequestIDKey),
	)
	h.logger.Info("Admin write", fields...)
}

// POST /admin/api/tenants
func (h *AdminHandler) CreateTenant(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		middleware.WriteError(c, http.StatusBadRequest, "tenant name is required")
		return
	}

	tenant := &models.Tenant{Name: strings.TrimSpace(req.Name), IsActive: true}
	if err := h.store.CreateTenant(c.Request.Context(), tenant); err != nil {
		middleware.WriteError(c, http.StatusBadRequest, err.Error())
		return
	}
	h.audit(c, "create_tenant", "tenant_id", tenant.ID, "name", tenant.Name)
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": tenant})
}

// GET /admin/api/tenants/:id
func (h *AdminHandler) GetTenant(c *gin.Context) {
	tenant, err := h.store.GetTenant(c.Request.Context(), c.Param("id"))
	if err == policy.ErrNotFound {
		middleware.WriteError(c, http.StatusNotFound, "tenant not found")
		return
	}
	if err != nil {
		middleware.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": tenant})
}

// POST /admin/api/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req struct {
		Username    string `json:"username"`
		Email       string `json:"email"`
		TenantID    string `json:"tenant_id"`
		IsSuperuser bool   `json:"is_superuser"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" {
		middleware.WriteError(c, http.StatusBadRequest, "username is required")
		return
	}

	user := &models.User{
		Username:    strings.TrimSpace(req.Username),
		Email:       req.Email,
		TenantID:    req.TenantID,
		IsSuperuser: req.IsSuperuser,
		IsActive:    true,
	}
	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		middleware.WriteError(c, http.StatusBadRequest, err.Error())
		return
	}
	h.audit(c, "create_user", "user_id", user.ID, "tenant_id", user.TenantID)
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": user})
}

// POST /admin/api/roles
func (h *AdminHandler) CreateRole(c *gin.Context) {
	var req struct {
		TenantID string `json:"tenant_id"`
		Name     string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.TenantID == "" || strings.TrimSpace(req.Name) == "" {
		middleware.WriteError(c, http.StatusBadRequest, "tenant_id and name are required")
		return
	}

	role := &models.Role{TenantID: req.TenantID, Name: strings.TrimSpace(req.Name)}
	if err := h.store.CreateRole(c.Request.Context(), role); err != nil {
		middleware.WriteError(c, http.StatusBadRequest, err.Error())
		return
	}
	h.audit(c, "create_role", "role_id", role.ID, "tenant_id", role.TenantID, "name", role.Name)
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": role})
}

// GET /admin/api/roles?tenant_id=...
func (h *AdminHandler) ListRoles(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		middleware.WriteError(c, http.StatusBadRequest, "tenant_id query parameter is required")
		return
	}
	roles, err := h.store.ListRoles(c.Request.Context(), tenantID)
	if err != nil {
		middleware.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"roles": roles, "total": len(roles)}})
}

// DELETE /admin/api/roles/:id?tenant_id=...
func (h *AdminHandler) DeleteRole(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		middleware.WriteError(c, http.StatusBadRequest, "tenant_id query parameter is required")
		return
	}
	err := h.store.SoftDeleteRole(c.Request.Context(), tenantID, c.Param("id"))
	if err == policy.ErrNotFound {
		middleware.WriteError(c, http.StatusNotFound, "role not found")
		return
	}
	if err != nil {
		middleware.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.invalidateTenant(c, tenantID)
	h.audit(c, "delete_role", "role_id", c.Param("id"), "tenant_id", tenantID)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// POST /admin/api/roles/:id/grants
func (h *AdminHandler) GrantPermission(c *gin.Context) {
	var req struct {
		TenantID       string `json:"tenant_id"`
		TenantModuleID string `json:"tenant_module_id"`
		Action         string `json:"action"`
		Allowed        *bool  `json:"allowed"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.TenantID == "" || req.TenantModuleID == "" || req.Action == "" {
		middleware.WriteError(c, http.StatusBadRequest, "tenant_id, tenant_module_id and action are required")
		return
	}
	allowed := true
	if req.Allowed != nil {
		allowed = *req.Allowed
	}

	perm, err := h.store.GetOrCreatePermission(c.Request.Context(), req.TenantID, req.TenantModuleID, req.Action)
	if err != nil {
		middleware.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.store.GrantRolePermission(c.Request.Context(), c.Param("id"), perm.ID, allowed); err != nil {
		middleware.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.invalidateTenant(c, req.TenantID)
	h.audit(c, "grant_permission",
		"role_id", c.Param("id"), "tenant_id", req.TenantID, "action", req.Action, "allowed", allowed)
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"permission_id": perm.ID, "allowed": allowed}})
}

// POST /admin/api/users/:id/roles
func (h *AdminHandler) AssignRole(c *gin.Context) {
	var req struct {
		TenantID string `json:"tenant_id"`
		RoleID   string `json:"role_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.RoleID == "" {
		middleware.WriteError(c, http.StatusBadRequest, "role_id is required")
		return
	}
	if err := h.store.AssignUserRole(c.Request.Context(), c.Param("id"), req.RoleID); err != nil {
		middleware.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.invalidateUser(c, req.TenantID, c.Param("id"))
	h.audit(c, "assign_role", "user_id", c.Param("id"), "role_id", req.RoleID)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// POST /admin/api/blocks
func (h *AdminHandler) CreateBlock(c *gin.Context) {
	var req struct {
		TenantID    string `json:"tenant_id"`
		UserID      string `json:"user_id"`
		OperationID string `json:"operation_id"`
		Reason      string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.TenantID == "" || req.UserID == "" || req.OperationID == "" {
		middleware.WriteError(c, http.StatusBadRequest, "tenant_id, user_id and operation_id are required")
		return
	}

	block := &models.UserApiBlock{
		TenantID:       req.TenantID,
		UserID:         req.UserID,
		ApiOperationID: req.OperationID,
		Reason:         req.Reason,
	}
	if err := h.store.CreateUserBlock(c.Request.Context(), block); err != nil {
		middleware.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.invalidateUser(c, req.TenantID, req.UserID)
	h.audit(c, "create_block",
		"tenant_id", req.TenantID, "user_id", req.UserID, "operation_id", req.OperationID, "reason", req.Reason)
	c.JSON(http.StatusCreated, gin.H{"status": "success", "data": block})
}

// DELETE /admin/api/blocks
func (h *AdminHandler) DeleteBlock(c *gin.Context) {
	var req struct {
		TenantID    string `json:"tenant_id"`
		UserID      string `json:"user_id"`
		OperationID string `json:"operation_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.TenantID == "" || req.UserID == "" || req.OperationID == "" {
		middleware.WriteError(c, http.StatusBadRequest, "tenant_id, user_id and operation_id are required")
		return
	}
	err := h.store.DeleteUserBlock(c.Request.Context(), req.TenantID, req.UserID, req.OperationID)
	if err == policy.ErrNotFound {
		middleware.WriteError(c, http.StatusNotFound, "block not found")
		return
	}
	if err != nil {
		middleware.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.invalidateUser(c, req.TenantID, req.UserID)
	h.audit(c, "delete_block", "tenant_id", req.TenantID, "user_id", req.UserID, "operation_id", req.OperationID)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// PUT /admin/api/overrides
func (h *AdminHandler) SetOverride(c *gin.Context) {
	var req struct {
		TenantID    string `json:"tenant_id"`
		OperationID string `json:"operation_id"`
		Enabled     *bool  `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.TenantID == "" || req.OperationID == "" || req.Enabled == nil {
		middleware.WriteError(c, http.StatusBadRequest, "tenant_id, operation_id and enabled are required")
		return
	}
	if err := h.store.SetTenantOverride(c.Request.Context(), req.TenantID, req.OperationID, *req.Enabled); err != nil {
		middleware.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.invalidateTenant(c, req.TenantID)
	h.audit(c, "set_override", "tenant_id", req.TenantID, "operation_id", req.OperationID, "enabled", *req.Enabled)
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// PUT /admin/api/subscriptions
func (h *AdminHandler) UpsertSubscription(c *gin.Context) {
	var req struct {
		TenantID       string `json:"tenant_id"`
		Module         string `json:"module"`
		SubModule      string `json:"submodule"`
		Enabled        *bool  `json:"enabled"`
		ExpirationDate string `json:"expiration_date"` // YYYY-MM-DD
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.TenantID == "" || req.Module == "" {
		middleware.WriteError(c, http.StatusBadRequest, "tenant_id and module are required")
		return
	}

	tm := &models.TenantModule{
		TenantID:   req.TenantID,
		ModuleCode: req.Module,
		IsEnabled:  true,
	}
	if req.SubModule != "" {
		sub := req.SubModule
		tm.SubModuleCode = &sub
	}
	if req.Enabled != nil {
		tm.IsEnabled = *req.Enabled
	}
	if req.ExpirationDate != "" {
		exp, err := time.Parse("2006-01-02", req.ExpirationDate)
		if err != nil {
			middleware.WriteError(c, http.StatusBadRequest, "expiration_date must be YYYY-MM-DD")
			return
		}
		tm.ExpirationDate = &exp
	}

	if err := h.store.UpsertTenantModule(c.Request.Context(), tm); err != nil {
		middleware.WriteError(c, http.StatusInternalServerError, err.Error())
		return
	}
	h.invalidateTenant(c, req.TenantID)
	h.audit(c, "upsert_subscription",
		"tenant_id", req.TenantID, "module", req.Module, "submodule", req.SubModule, "enabled", tm.IsEnabled)
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": tm})
}
