package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/authware/rbac-core/internal/authz"
	"github.com/authware/rbac-core/internal/monitoring"
	"github.com/authware/rbac-core/internal/repo/policy"
	"github.com/authware/rbac-core/internal/tenantctx"
	"github.com/authware/rbac-core/pkg/logger"
)

// Authorizer wires the endpoint resolver, the decision engine, and the
// optional verdict cache into one gin middleware.
type Authorizer struct {
	resolver *authz.Resolver
	engine   *authz.Engine
	cache    *authz.DecisionCache // nil disables memoization
	logger   logger.Logger

	bypassPrefixes []string
}

func NewAuthorizer(resolver *authz.Resolver, engine *authz.Engine, cache *authz.DecisionCache, log logger.Logger, bypassPrefixes []string) *Authorizer {
	return &Authorizer{
		resolver:       resolver,
		engine:         engine,
		cache:          cache,
		logger:         log,
		bypassPrefixes: bypassPrefixes,
	}
}

// Middleware enforces the layered policy on every request.
//
// Bypass-prefixed paths are never evaluated. Anonymous requests pass
// through untouched; whatever sits behind the gateway decides what
// anonymous may see. Authenticated requests are resolved against the
// endpoint catalog and evaluated; a denial short-circuits with the 403
// envelope and never reaches the handler.
func (a *Authorizer) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if a.bypassed(path) {
			c.Next()
			return
		}

		userID := c.GetString(UserIDKey)
		if userID == "" {
			c.Next()
			return
		}

		tenantID := c.GetString(TenantIDKey)
		username := c.GetString(UsernameKey)
		method := strings.ToUpper(c.Request.Method)

		// Downstream data access reads the tenant from the request context.
		c.Request = c.Request.WithContext(tenantctx.With(c.Request.Context(), tenantID))
		ctx := c.Request.Context()

		canonical := authz.CanonicalPath(path)
		start := time.Now()

		if a.cache != nil {
			if d := a.cache.Get(ctx, tenantID, userID, method, canonical); d != nil {
				monitoring.RecordCacheOperation("decision_get", "hit")
				a.settle(c, *d, method, canonical, tenantID, username, start)
				return
			}
			monitoring.RecordCacheOperation("decision_get", "miss")
		}

		req := &authz.Request{
			TenantID: tenantID,
			UserID:   userID,
			Username: username,
			Method:   method,
			Path:     canonical,
		}
		endpoint, op, err := a.resolver.Resolve(ctx, method, canonical)
		if err != nil && err != policy.ErrNotFound {
			a.fail(c, err)
			return
		}
		req.Endpoint = endpoint
		req.Operation = op

		decision, err := a.engine.Evaluate(ctx, req)
		if err != nil {
			a.fail(c, err)
			return
		}

		if a.cache != nil {
			a.cache.Set(ctx, tenantID, userID, method, canonical, decision)
		}
		a.settle(c, decision, method, canonical, tenantID, username, start)
	}
}

func (a *Authorizer) settle(c *gin.Context, d authz.Decision, method, path, tenantID, username string, start time.Time) {
	if d.Allowed {
		monitoring.RecordDecision("allowed", "", time.Since(start))
		c.Next()
		return
	}

	kind := string(d.Violation.Kind)
	monitoring.RecordDecision("denied", kind, time.Since(start))
	a.logger.Warn("Authorization denied",
		"violation", kind,
		"detail", d.Violation.Detail,
		"method", method,
		"path", path,
		"tenant_id", tenantID,
		"username", username,
		"request_id", c.GetString(RequestIDKey),
	)

	c.AbortWithStatusJSON(http.StatusForbidden, Envelope{
		Error:      "Unauthorized Access",
		Violation:  kind,
		Detail:     d.Violation.Detail,
		StatusCode: http.StatusForbidden,
		Path:       c.Request.URL.Path,
	})
}

func (a *Authorizer) fail(c *gin.Context, err error) {
	monitoring.RecordError("authz", "middleware")
	a.logger.Error("Authorization evaluation failed",
		"error", err,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"request_id", c.GetString(RequestIDKey),
	)
	WriteError(c, http.StatusInternalServerError, "Authorization could not be evaluated.")
}

func (a *Authorizer) bypassed(path string) bool {
	for _, prefix := range a.bypassPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
