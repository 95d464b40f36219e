package middleware

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/authware/rbac-core/internal/config"
	"github.com/authware/rbac-core/pkg/logger"
)

// Gin context keys set by identity extraction and read downstream.
const (
	UserIDKey   = "user_id"
	TenantIDKey = "tenant_id"
	UsernameKey = "username"
)

// AuthMiddleware extracts the caller's identity from a bearer JWT and
// stashes it in the gin context. It never aborts: requests without a
// usable token continue as anonymous and the authorization layer decides
// what anonymous may reach. When auth is disabled the identity headers
// X-User-ID / X-Tenant-ID / X-Username are trusted instead, which keeps
// local development and tests simple.
func AuthMiddleware(cfg config.AuthConfig, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.Enabled {
			if uid := c.GetHeader("X-User-ID"); uid != "" {
				c.Set(UserIDKey, uid)
				c.Set(TenantIDKey, c.GetHeader("X-Tenant-ID"))
				c.Set(UsernameKey, c.GetHeader("X-Username"))
			}
			c.Next()
			return
		}

		token := extractToken(c)
		if token == "" {
			c.Next()
			return
		}

		claims, err := parseClaims(token, cfg.JWTSecret)
		if err != nil {
			log.Warn("Rejected bearer token",
				"error", err,
				"path", c.Request.URL.Path,
				"client_ip", c.ClientIP(),
			)
			c.Next()
			return
		}

		c.Set(UserIDKey, claims.userID)
		c.Set(TenantIDKey, claims.tenantID)
		c.Set(UsernameKey, claims.username)
		c.Next()
	}
}

type identityClaims struct {
	userID   string
	tenantID string
	username string
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return ""
}

func parseClaims(tokenString, secret string) (*identityClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return nil, fmt.Errorf("missing sub claim")
	}

	out := &identityClaims{userID: userID}
	if tenant, ok := claims["tenant"].(string); ok {
		out.tenantID = tenant
	}
	if username, ok := claims["username"].(string); ok {
		out.username = username
	}
	if out.username == "" {
		out.username = userID
	}
	return out, nil
}
