package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authware/rbac-core/internal/authz"
	"github.com/authware/rbac-core/internal/config"
	"github.com/authware/rbac-core/internal/models"
	"github.com/authware/rbac-core/internal/repo/policy"
	"github.com/authware/rbac-core/internal/tenantctx"
	"github.com/authware/rbac-core/pkg/cache"
	"github.com/authware/rbac-core/pkg/logger"
)

type authzHarness struct {
	router *gin.Engine
	store  policy.Store

	tenant *models.Tenant
	user   *models.User
}

// newAuthzHarness builds a router guarded by the authorizer with a viewer
// user subscribed to CRM/LEADS holding only the view action.
func newAuthzHarness(t *testing.T, withCache bool) *authzHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	store := policy.NewMemoryStore()
	log := logger.NewNop()

	h := &authzHarness{store: store}

	h.tenant = &models.Tenant{Name: "Acme", IsActive: true}
	require.NoError(t, store.CreateTenant(ctx, h.tenant))
	h.user = &models.User{Username: "viewer", TenantID: h.tenant.ID, IsActive: true}
	require.NoError(t, store.CreateUser(ctx, h.user))

	sub := "LEADS"
	tm := &models.TenantModule{TenantID: h.tenant.ID, ModuleCode: "CRM", SubModuleCode: &sub, IsEnabled: true}
	require.NoError(t, store.UpsertTenantModule(ctx, tm))

	role := &models.Role{TenantID: h.tenant.ID, Name: "Viewer"}
	require.NoError(t, store.CreateRole(ctx, role))
	require.NoError(t, store.AssignUserRole(ctx, h.user.ID, role.ID))
	perm, err := store.GetOrCreatePermission(ctx, h.tenant.ID, tm.ID, "view")
	require.NoError(t, err)
	require.NoError(t, store.GrantRolePermission(ctx, role.ID, perm.ID, true))

	ep, _, err := store.GetOrCreateEndpoint(ctx, "/api/enquiries", "CRM", &sub)
	require.NoError(t, err)
	_, _, err = store.GetOrCreateOperation(ctx, ep.ID, "GET", "")
	require.NoError(t, err)
	_, _, err = store.GetOrCreateOperation(ctx, ep.ID, "POST", "")
	require.NoError(t, err)

	var dc *authz.DecisionCache
	if withCache {
		dc = authz.NewDecisionCache(cache.NewNoop(log), log, time.Minute)
	}
	authorizer := NewAuthorizer(
		authz.NewResolver(store),
		authz.NewEngine(store),
		dc,
		log,
		config.DefaultBypassPrefixes,
	)

	router := gin.New()
	router.Use(AuthMiddleware(config.AuthConfig{}, log))
	router.Use(authorizer.Middleware())
	router.GET("/api/enquiries", func(c *gin.Context) {
		tenant, _ := tenantctx.From(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"tenant": tenant})
	})
	router.POST("/api/enquiries", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"status": "created"})
	})
	router.GET("/admin/console", func(c *gin.Context) {
		c.String(http.StatusOK, "admin")
	})
	h.router = router
	return h
}

func (h *authzHarness) do(method, path string, identified bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if identified {
		req.Header.Set("X-User-ID", h.user.ID)
		req.Header.Set("X-Tenant-ID", h.tenant.ID)
		req.Header.Set("X-Username", h.user.Username)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestAuthorizerAllowsGrantedRequest(t *testing.T) {
	h := newAuthzHarness(t, false)

	w := h.do(http.MethodGet, "/api/enquiries", true)
	require.Equal(t, http.StatusOK, w.Code)

	// The handler saw the tenant through the request context.
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, h.tenant.ID, body["tenant"])
}

func TestAuthorizerDeniesWithEnvelope(t *testing.T) {
	h := newAuthzHarness(t, false)

	w := h.do(http.MethodPost, "/api/enquiries", true)
	require.Equal(t, http.StatusForbidden, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Unauthorized Access", env.Error)
	assert.Equal(t, string(authz.KindPermissionDenied), env.Violation)
	assert.Equal(t, http.StatusForbidden, env.StatusCode)
	assert.Equal(t, "/api/enquiries", env.Path)
	assert.NotEmpty(t, env.Detail)
}

func TestAuthorizerUnregisteredPath(t *testing.T) {
	h := newAuthzHarness(t, false)
	h.router.GET("/api/unlisted", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := h.do(http.MethodGet, "/api/unlisted", true)
	require.Equal(t, http.StatusForbidden, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, string(authz.KindAPINotRegistered), env.Violation)
}

func TestAuthorizerAnonymousPassesThrough(t *testing.T) {
	h := newAuthzHarness(t, false)

	w := h.do(http.MethodGet, "/api/enquiries", false)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthorizerBypassPrefix(t *testing.T) {
	h := newAuthzHarness(t, false)

	// /admin/ is never evaluated even for identified users.
	w := h.do(http.MethodGet, "/admin/console", true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthorizerCachedVerdictStable(t *testing.T) {
	h := newAuthzHarness(t, true)

	first := h.do(http.MethodPost, "/api/enquiries", true)
	require.Equal(t, http.StatusForbidden, first.Code)

	// Second request is served from the decision cache with the same body.
	second := h.do(http.MethodPost, "/api/enquiries", true)
	require.Equal(t, http.StatusForbidden, second.Code)

	var e1, e2 Envelope
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &e1))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &e2))
	assert.Equal(t, e1.Violation, e2.Violation)
	assert.Equal(t, e1.Detail, e2.Detail)
}

func TestAuthorizerTenantMismatchDenied(t *testing.T) {
	h := newAuthzHarness(t, false)

	other := &models.Tenant{Name: "Rival", IsActive: true}
	require.NoError(t, h.store.CreateTenant(context.Background(), other))

	req := httptest.NewRequest(http.MethodGet, "/api/enquiries", nil)
	req.Header.Set("X-User-ID", h.user.ID)
	req.Header.Set("X-Tenant-ID", other.ID)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, string(authz.KindTenantNotSubscribed), env.Violation)
}
