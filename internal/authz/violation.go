package authz

import "fmt"

// Kind identifies which policy rule denied a request. The values are part
// of the wire contract and must stay stable.
type Kind string

const (
	KindAPINotRegistered     Kind = "api_not_registered"
	KindAPIDisabledGlobally  Kind = "api_disabled_globally"
	KindTenantNotSubscribed  Kind = "tenant_not_subscribed"
	KindModuleDisabled       Kind = "module_disabled_for_tenant"
	KindSubscriptionExpired  Kind = "tenant_subscription_expired"
	KindAPIDisabledForTenant Kind = "api_disabled_for_tenant"
	KindAPIBlockedForUser    Kind = "api_blocked_for_user"
	KindUnknownAction        Kind = "unknown_action_mapping"
	KindPermissionDenied     Kind = "permission_denied"
)

// Violation carries a machine-readable kind and a human-readable detail
// for one denied request. It satisfies error so it can travel up the
// handler chain to the error translator.
type Violation struct {
	Kind   Kind
	Detail string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("[%s] %s", v.Kind, v.Detail)
}

func deny(kind Kind, format string, args ...interface{}) *Violation {
	return &Violation{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Decision is the engine's verdict for one request. Violation is nil
// exactly when Allowed is true.
type Decision struct {
	Allowed   bool
	Violation *Violation
}

var allowDecision = Decision{Allowed: true}
