package authz

import (
	"context"
	"time"

	"github.com/authware/rbac-core/internal/models"
	"github.com/authware/rbac-core/internal/repo/policy"
)

// HTTPMethodActionDefaults maps an HTTP method to the action required when
// an operation does not declare one explicitly. Any other method needs an
// explicit action code on the operation.
var HTTPMethodActionDefaults = map[string]string{
	"GET":    "view",
	"POST":   "create",
	"PUT":    "update",
	"PATCH":  "update",
	"DELETE": "delete",
}

// Request is the input for one authorization decision. Endpoint and
// Operation come from the Resolver and are nil when resolution failed.
type Request struct {
	TenantID  string
	UserID    string
	Username  string
	Method    string
	Path      string
	Endpoint  *models.ApiEndpoint
	Operation *models.ApiOperation
}

// Engine evaluates the layered deny-wins policy. It is stateless: each
// evaluation reads the policy store and returns an independent verdict.
//
// Layer order is part of the contract and must not change:
//
//	1. operation resolved
//	2. operation enabled platform-wide
//	3. tenant subscribed to the module (exists, enabled, unexpired)
//	4. no tenant-level operation override
//	5. no user-level block (highest-priority deny)
//	6. action code derivable
//	7. role permissions cover (module, submodule?, action)
type Engine struct {
	store policy.Store
	now   func() time.Time
}

func NewEngine(store policy.Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Evaluate walks the policy layers in order and returns the first denial,
// or an allow when every layer passes. Every denial carries a stable
// violation kind and a diagnostic detail naming the rule that fired.
func (e *Engine) Evaluate(ctx context.Context, req *Request) (Decision, error) {
	// Layer 1: the API must be registered.
	if req.Endpoint == nil || req.Operation == nil {
		return denied(deny(KindAPINotRegistered,
			"The API endpoint '%s %s' is not registered in the system. Access is denied.",
			req.Method, req.Path))
	}
	op := req.Operation
	ep := req.Endpoint

	// Layer 2: platform-level disable.
	if !op.IsEnabled {
		return denied(deny(KindAPIDisabledGlobally,
			"The API endpoint '%s %s' has been disabled globally by the platform administrator.",
			req.Method, req.Path))
	}

	// Layer 3: tenant module subscription.
	tm, err := e.store.TenantModule(ctx, req.TenantID, ep.ModuleCode, ep.SubModuleCode)
	if err == policy.ErrNotFound {
		return denied(deny(KindTenantNotSubscribed,
			"Tenant '%s' does not have an active subscription to the module '%s'. Access is denied.",
			req.TenantID, ep.ModuleCode))
	}
	if err != nil {
		return Decision{}, err
	}
	if !tm.IsEnabled {
		return denied(deny(KindModuleDisabled,
			"Module '%s' has been disabled for tenant '%s' by the tenant administrator.",
			ep.ModuleCode, req.TenantID))
	}
	if tm.Expired(e.now()) {
		return denied(deny(KindSubscriptionExpired,
			"Tenant '%s' subscription for module '%s' expired on %s.",
			req.TenantID, ep.ModuleCode, tm.ExpirationDate.Format("2006-01-02")))
	}

	// Layer 4: tenant-level operation override.
	disabled, err := e.store.TenantOverrideDisabled(ctx, req.TenantID, op.ID)
	if err != nil {
		return Decision{}, err
	}
	if disabled {
		return denied(deny(KindAPIDisabledForTenant,
			"The API endpoint '%s %s' has been disabled by the administrator for tenant '%s'.",
			req.Method, req.Path, req.TenantID))
	}

	// Layer 5: user-level explicit block.
	blocked, err := e.store.UserBlocked(ctx, req.TenantID, req.UserID, op.ID)
	if err != nil {
		return Decision{}, err
	}
	if blocked {
		return denied(deny(KindAPIBlockedForUser,
			"User '%s' has been explicitly blocked from accessing '%s %s'.",
			req.Username, req.Method, req.Path))
	}

	// Layer 6: resolve the required action code.
	action := op.ActionCode
	if action == "" {
		action = HTTPMethodActionDefaults[req.Method]
	}
	if action == "" {
		return denied(deny(KindUnknownAction,
			"Cannot map HTTP method '%s' to a permission action code. The endpoint may be misconfigured.",
			req.Method))
	}

	// Layer 7: role permissions. A module-wide grant covers every
	// submodule; otherwise the specific submodule grant must exist.
	tuples, err := e.store.UserPermissionTuples(ctx, req.TenantID, req.UserID)
	if err != nil {
		return Decision{}, err
	}
	if tuples.Covers(ep.ModuleCode, subCode(ep.SubModuleCode), action) {
		return allowDecision, nil
	}

	detail := "User '" + req.Username + "' does not have '" + action + "' permission on module '" + ep.ModuleCode + "'"
	if ep.SubModuleCode != nil {
		detail += " / submodule '" + *ep.SubModuleCode + "'"
	}
	detail += " required to access '" + req.Method + " " + req.Path + "'."
	return denied(&Violation{Kind: KindPermissionDenied, Detail: detail})
}

func denied(v *Violation) (Decision, error) {
	return Decision{Allowed: false, Violation: v}, nil
}

func subCode(sub *string) string {
	if sub == nil {
		return ""
	}
	return *sub
}
