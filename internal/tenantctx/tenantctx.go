// Package tenantctx carries the per-request tenant identity on the request
// context. The authorization middleware binds it at request entry; it is
// released with the request context on every exit path, including panics.
// Downstream data access must treat an unset tenant as "no rows".
package tenantctx

import "context"

type ctxKey struct{}

// With returns a child context carrying the tenant ID.
func With(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, tenantID)
}

// From returns the tenant ID bound to the context, and whether one is set.
func From(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// MustFrom returns the bound tenant ID or the empty string. Callers that
// use it for query scoping get the empty-set behavior for free: no tenant,
// no rows.
func MustFrom(ctx context.Context) string {
	v, _ := From(ctx)
	return v
}
