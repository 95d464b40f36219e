package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"/api/enquiries", "/api/enquiries"},
		{"/api/enquiries/123", "/api/enquiries/:id"},
		{"/api/enquiries/123/notes/456", "/api/enquiries/:id/notes/:id"},
		{"/api/tenants/0f8fad5b-d9cb-469f-a165-70867728950e", "/api/tenants/:id"},
		{"/api/v1/status", "/api/v1/status"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.out, normalizeEndpoint(tt.in), "input %q", tt.in)
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	SetupPrometheusMetrics(router)
	router.Use(HTTPMetricsMiddleware())
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Generate some traffic, then scrape.
	RecordDecision("denied", "permission_denied", 2*time.Millisecond)
	RecordCacheOperation("get", "hit")
	RecordSyncRun(3, 1, 50*time.Millisecond, true)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, "rbac_core_build_info")
	assert.Contains(t, body, "rbac_core_authz_decisions_total")
	assert.Contains(t, body, "rbac_core_cache_operations_total")
	assert.Contains(t, body, "rbac_core_catalog_sync_runs_total")
}
