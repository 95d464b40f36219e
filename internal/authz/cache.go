package authz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/authware/rbac-core/pkg/cache"
	"github.com/authware/rbac-core/pkg/logger"
)

// CachedDecision is the serialized form of a memoized verdict.
type CachedDecision struct {
	Allowed  bool      `json:"allowed"`
	Kind     Kind      `json:"kind,omitempty"`
	Detail   string    `json:"detail,omitempty"`
	CachedAt time.Time `json:"cached_at"`
}

// DecisionCache memoizes verdicts keyed by (tenant, user, method, path).
// Policy writes must invalidate the affected tenant or user; entries also
// age out on TTL so a missed invalidation self-heals.
type DecisionCache struct {
	cache  cache.Valkey
	logger logger.Logger
	ttl    time.Duration
}

func NewDecisionCache(c cache.Valkey, log logger.Logger, ttl time.Duration) *DecisionCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DecisionCache{cache: c, logger: log, ttl: ttl}
}

func decisionKey(tenantID, userID, method, path string) string {
	return fmt.Sprintf("authz:verdict:%s:%s:%s:%s", tenantID, userID, method, path)
}

// Get returns the memoized decision, or nil on a miss.
func (dc *DecisionCache) Get(ctx context.Context, tenantID, userID, method, path string) *Decision {
	data, err := dc.cache.Get(ctx, decisionKey(tenantID, userID, method, path))
	if err != nil {
		return nil
	}

	var cached CachedDecision
	if err := json.Unmarshal(data, &cached); err != nil {
		dc.logger.Warn("Failed to unmarshal cached decision", "error", err)
		return nil
	}
	if time.Since(cached.CachedAt) > dc.ttl {
		return nil
	}

	if cached.Allowed {
		d := allowDecision
		return &d
	}
	return &Decision{Violation: &Violation{Kind: cached.Kind, Detail: cached.Detail}}
}

// Set memoizes a decision. Failures are logged and swallowed: the cache is
// an optimization, never a correctness dependency.
func (dc *DecisionCache) Set(ctx context.Context, tenantID, userID, method, path string, d Decision) {
	cached := CachedDecision{Allowed: d.Allowed, CachedAt: time.Now()}
	if d.Violation != nil {
		cached.Kind = d.Violation.Kind
		cached.Detail = d.Violation.Detail
	}
	if err := dc.cache.Set(ctx, decisionKey(tenantID, userID, method, path), cached, dc.ttl); err != nil {
		dc.logger.Warn("Failed to cache decision", "error", err)
	}
}

// InvalidateUser drops every memoized verdict for one user.
func (dc *DecisionCache) InvalidateUser(ctx context.Context, tenantID, userID string) error {
	return dc.cache.DeletePattern(ctx, fmt.Sprintf("authz:verdict:%s:%s:*", tenantID, userID))
}

// InvalidateTenant drops every memoized verdict for a tenant. Called after
// subscription, override, role, or catalog writes affecting the tenant.
func (dc *DecisionCache) InvalidateTenant(ctx context.Context, tenantID string) error {
	return dc.cache.DeletePattern(ctx, fmt.Sprintf("authz:verdict:%s:*", tenantID))
}
