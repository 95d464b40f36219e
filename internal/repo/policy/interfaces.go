package policy

import (
	"context"
	"errors"

	"github.com/authware/rbac-core/internal/models"
)

// ErrNotFound is returned by lookups when no row matches. Callers on the
// hot path treat it as an ordinary miss, not a failure.
var ErrNotFound = errors.New("policy: not found")

// Store is the persistence surface for the RBAC policy data. Every query
// is tenant-scoped at source: a store never returns rows belonging to
// another tenant, and an empty tenant ID yields the empty set.
//
// Reads on the hot path are plain row lookups; administrative writes and
// catalog reconciliation run inside transactions so the policy is never
// observed half-applied.
type Store interface {
	// Endpoint catalog reads (hot path)
	ResolveEndpoint(ctx context.Context, path string) (*models.ApiEndpoint, error)
	ListEndpoints(ctx context.Context) ([]*models.ApiEndpoint, error)
	FindOperation(ctx context.Context, endpointID, httpMethod string) (*models.ApiOperation, error)

	// Policy reads (hot path)
	TenantModule(ctx context.Context, tenantID, moduleCode string, submoduleCode *string) (*models.TenantModule, error)
	TenantOverrideDisabled(ctx context.Context, tenantID, operationID string) (bool, error)
	UserBlocked(ctx context.Context, tenantID, userID, operationID string) (bool, error)
	UserPermissionTuples(ctx context.Context, tenantID, userID string) (models.TupleSet, error)

	// Tenant and user administration
	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, userID string) (*models.User, error)

	// Role and grant administration
	CreateRole(ctx context.Context, role *models.Role) error
	GetRole(ctx context.Context, tenantID, name string) (*models.Role, error)
	ListRoles(ctx context.Context, tenantID string) ([]*models.Role, error)
	SoftDeleteRole(ctx context.Context, tenantID, roleID string) error
	GetOrCreatePermission(ctx context.Context, tenantID, tenantModuleID, actionCode string) (*models.Permission, error)
	GrantRolePermission(ctx context.Context, roleID, permissionID string, allowed bool) error
	AssignUserRole(ctx context.Context, userID, roleID string) error

	// Subscription, override and block administration
	UpsertTenantModule(ctx context.Context, tm *models.TenantModule) error
	SetTenantOverride(ctx context.Context, tenantID, operationID string, enabled bool) error
	CreateUserBlock(ctx context.Context, block *models.UserApiBlock) error
	DeleteUserBlock(ctx context.Context, tenantID, userID, operationID string) error

	// Catalog reconciliation (used by the apisync tool)
	GetOrCreateModule(ctx context.Context, code, name string) (*models.Module, bool, error)
	GetOrCreateSubModule(ctx context.Context, code, name string) (*models.SubModule, bool, error)
	EnsureModuleMapping(ctx context.Context, moduleCode, submoduleCode string) error
	GetOrCreateEndpoint(ctx context.Context, path, moduleCode string, submoduleCode *string) (*models.ApiEndpoint, bool, error)
	UpdateEndpointOwnership(ctx context.Context, endpointID, moduleCode string, submoduleCode *string) error
	GetOrCreateOperation(ctx context.Context, endpointID, httpMethod, actionCode string) (*models.ApiOperation, bool, error)
}
