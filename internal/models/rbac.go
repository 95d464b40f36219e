package models

import (
	"time"
)

// RBAC models for multi-tenant role-based access control. These mirror the
// persisted policy tables; the decision engine only ever sees read-only
// snapshots of them.

// Tenant represents one isolated customer workspace.
type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"` // unique across the system
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Module is a coarse functional area (e.g. CRM). The short code is the
// primary key.
type Module struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// SubModule is a finer area within a module (e.g. LEADS). Identified by a
// short code; may be shared by multiple modules via ModuleSubModuleMapping.
type SubModule struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// ModuleSubModuleMapping links a submodule into a module. Unique on the
// (module, submodule) pair.
type ModuleSubModuleMapping struct {
	ModuleCode    string `json:"moduleCode"`
	SubModuleCode string `json:"submoduleCode"`
}

// Action is a verb token in the permission vocabulary (view, create,
// update, delete, approve). Globally unique code.
type Action struct {
	Code string `json:"code"`
}

// TenantModule is the subscription edge: a tenant has optionally
// time-bounded access to a (module, submodule?) pair. Unique on
// (tenant, module, submodule) with an absent submodule treated as its own
// key.
type TenantModule struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenantId"`
	ModuleCode     string     `json:"moduleCode"`
	SubModuleCode  *string    `json:"submoduleCode,omitempty"`
	IsEnabled      bool       `json:"isEnabled"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"` // date precision; == today is still valid
}

// Expired reports whether the subscription lapsed before the given day.
// A nil expiration never expires; expiring today still passes.
func (tm *TenantModule) Expired(today time.Time) bool {
	if tm.ExpirationDate == nil {
		return false
	}
	y1, m1, d1 := tm.ExpirationDate.Date()
	y2, m2, d2 := today.Date()
	exp := time.Date(y1, m1, d1, 0, 0, 0, 0, time.UTC)
	day := time.Date(y2, m2, d2, 0, 0, 0, 0, time.UTC)
	return exp.Before(day)
}

// Permission is the grantable unit scoped to a tenant subscription:
// (tenant, tenant_module, action). Unique on that triple.
type Permission struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenantId"`
	TenantModuleID string `json:"tenantModuleId"`
	ActionCode     string `json:"actionCode"`
}

// Role is a named bundle of permissions, scoped to a tenant. Unique on
// (tenant, name). Soft-deleted roles are excluded from permission
// resolution.
type Role struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenantId"`
	Name      string     `json:"name"`
	IsDeleted bool       `json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// RolePermission is the grant edge between a role and a permission.
// Unique on (role, permission). Allowed=false is a tombstone that removes
// an otherwise-granted permission.
type RolePermission struct {
	ID           string `json:"id"`
	RoleID       string `json:"roleId"`
	PermissionID string `json:"permissionId"`
	Allowed      bool   `json:"allowed"`
}

// User is the identified principal. Belongs to exactly one tenant; the
// tenant is empty only for the platform superuser.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	TenantID    string    `json:"tenantId,omitempty"`
	IsSuperuser bool      `json:"isSuperuser"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// UserRole assigns a role to a user. Unique on (user, role).
type UserRole struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	RoleID string `json:"roleId"`
}

// ApiEndpoint is a normalized URL template with its owning module and
// optional submodule. Unique on path.
type ApiEndpoint struct {
	ID            string  `json:"id"`
	Path          string  `json:"path"` // canonical form: /api/enquiries/{pk}
	ModuleCode    string  `json:"moduleCode"`
	SubModuleCode *string `json:"submoduleCode,omitempty"`
}

// ApiOperation is one HTTP method on an endpoint, with the action the
// caller must hold to invoke it. Unique on (endpoint, http_method). When
// ActionCode is empty a default derived from the method is used.
type ApiOperation struct {
	ID         string `json:"id"`
	EndpointID string `json:"endpointId"`
	HTTPMethod string `json:"httpMethod"` // stored upper-case
	ActionCode string `json:"actionCode,omitempty"`
	IsEnabled  bool   `json:"isEnabled"`
}

// TenantApiOverride is a tenant-level per-operation switch. Enabled=false
// denies the operation for the tenant regardless of role grants.
type TenantApiOverride struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenantId"`
	ApiOperationID string `json:"apiOperationId"`
	IsEnabled      bool   `json:"isEnabled"`
}

// UserApiBlock is a user-level hard deny on one operation, the
// highest-priority deny in the policy.
type UserApiBlock struct {
	ID             string `json:"id"`
	TenantID       string `json:"tenantId"`
	UserID         string `json:"userId"`
	ApiOperationID string `json:"apiOperationId"`
	Reason         string `json:"reason,omitempty"`
}

// PermissionTuple is the denormalized form a user's effective permissions
// resolve to: (module, submodule?, action). A tuple with an empty
// SubModule is a module-wide grant covering every submodule.
type PermissionTuple struct {
	Module    string
	SubModule string // empty means module-wide
	Action    string
}

// TupleSet is the set of permission tuples a user holds through non-deleted
// roles, restricted to allowed=true grants.
type TupleSet map[PermissionTuple]struct{}

// Has reports whether the exact tuple is present.
func (s TupleSet) Has(module, submodule, action string) bool {
	_, ok := s[PermissionTuple{Module: module, SubModule: submodule, Action: action}]
	return ok
}

// Covers applies the module-wide shortcut: a module-level grant
// (module, "", action) covers every submodule of the module.
func (s TupleSet) Covers(module, submodule, action string) bool {
	if s.Has(module, "", action) {
		return true
	}
	if submodule == "" {
		return false
	}
	return s.Has(module, submodule, action)
}
