package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authware/rbac-core/internal/models"
)

func strPtr(s string) *string { return &s }

func TestMemoryStoreTenantUniqueName(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.CreateTenant(ctx, &models.Tenant{Name: "Acme", IsActive: true}))
	err := s.CreateTenant(ctx, &models.Tenant{Name: "Acme", IsActive: true})
	assert.Error(t, err)
}

func TestMemoryStoreUserNeedsTenantUnlessSuperuser(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	err := s.CreateUser(ctx, &models.User{Username: "orphan"})
	assert.Error(t, err)

	root := &models.User{Username: "root", IsSuperuser: true, IsActive: true}
	require.NoError(t, s.CreateUser(ctx, root))
	assert.NotEmpty(t, root.ID)
}

func TestMemoryStoreUpsertTenantModuleKeepsID(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tm := &models.TenantModule{TenantID: "t1", ModuleCode: "CRM", SubModuleCode: strPtr("LEADS"), IsEnabled: true}
	require.NoError(t, s.UpsertTenantModule(ctx, tm))
	firstID := tm.ID
	require.NotEmpty(t, firstID)

	again := &models.TenantModule{TenantID: "t1", ModuleCode: "CRM", SubModuleCode: strPtr("LEADS"), IsEnabled: false}
	require.NoError(t, s.UpsertTenantModule(ctx, again))
	assert.Equal(t, firstID, again.ID)

	got, err := s.TenantModule(ctx, "t1", "CRM", strPtr("LEADS"))
	require.NoError(t, err)
	assert.False(t, got.IsEnabled)
}

func TestMemoryStoreTenantModuleSubmoduleScoping(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.UpsertTenantModule(ctx, &models.TenantModule{
		TenantID: "t1", ModuleCode: "CRM", SubModuleCode: strPtr("LEADS"), IsEnabled: true,
	}))

	// A submodule-level subscription does not answer module-level lookups,
	// and vice versa.
	_, err := s.TenantModule(ctx, "t1", "CRM", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.TenantModule(ctx, "t1", "CRM", strPtr("LEADS"))
	assert.NoError(t, err)
}

func TestMemoryStoreEmptyTenantReadsAreEmpty(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.TenantModule(ctx, "", "CRM", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	blocked, err := s.UserBlocked(ctx, "", "u1", "op1")
	require.NoError(t, err)
	assert.False(t, blocked)

	disabled, err := s.TenantOverrideDisabled(ctx, "", "op1")
	require.NoError(t, err)
	assert.False(t, disabled)

	tuples, err := s.UserPermissionTuples(ctx, "", "u1")
	require.NoError(t, err)
	assert.Empty(t, tuples)
}

func TestMemoryStorePermissionTupleJoin(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tenant := &models.Tenant{Name: "Acme", IsActive: true}
	require.NoError(t, s.CreateTenant(ctx, tenant))
	user := &models.User{Username: "u", TenantID: tenant.ID, IsActive: true}
	require.NoError(t, s.CreateUser(ctx, user))

	tm := &models.TenantModule{TenantID: tenant.ID, ModuleCode: "CRM", SubModuleCode: strPtr("LEADS"), IsEnabled: true}
	require.NoError(t, s.UpsertTenantModule(ctx, tm))

	role := &models.Role{TenantID: tenant.ID, Name: "Viewer"}
	require.NoError(t, s.CreateRole(ctx, role))
	require.NoError(t, s.AssignUserRole(ctx, user.ID, role.ID))

	perm, err := s.GetOrCreatePermission(ctx, tenant.ID, tm.ID, "view")
	require.NoError(t, err)
	require.NoError(t, s.GrantRolePermission(ctx, role.ID, perm.ID, true))

	tuples, err := s.UserPermissionTuples(ctx, tenant.ID, user.ID)
	require.NoError(t, err)
	assert.True(t, tuples.Has("CRM", "LEADS", "view"))

	// Tombstoning the grant removes the tuple.
	require.NoError(t, s.GrantRolePermission(ctx, role.ID, perm.ID, false))
	tuples, err = s.UserPermissionTuples(ctx, tenant.ID, user.ID)
	require.NoError(t, err)
	assert.False(t, tuples.Has("CRM", "LEADS", "view"))
}

func TestMemoryStoreTuplesScopedToTenant(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	t1 := &models.Tenant{Name: "A", IsActive: true}
	require.NoError(t, s.CreateTenant(ctx, t1))
	t2 := &models.Tenant{Name: "B", IsActive: true}
	require.NoError(t, s.CreateTenant(ctx, t2))

	user := &models.User{Username: "u", TenantID: t1.ID, IsActive: true}
	require.NoError(t, s.CreateUser(ctx, user))

	tm := &models.TenantModule{TenantID: t1.ID, ModuleCode: "CRM", IsEnabled: true}
	require.NoError(t, s.UpsertTenantModule(ctx, tm))
	role := &models.Role{TenantID: t1.ID, Name: "Viewer"}
	require.NoError(t, s.CreateRole(ctx, role))
	require.NoError(t, s.AssignUserRole(ctx, user.ID, role.ID))
	perm, err := s.GetOrCreatePermission(ctx, t1.ID, tm.ID, "view")
	require.NoError(t, err)
	require.NoError(t, s.GrantRolePermission(ctx, role.ID, perm.ID, true))

	// Evaluated under the wrong tenant the user has nothing.
	tuples, err := s.UserPermissionTuples(ctx, t2.ID, user.ID)
	require.NoError(t, err)
	assert.Empty(t, tuples)
}

func TestMemoryStoreSoftDeleteRole(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	role := &models.Role{TenantID: "t1", Name: "Temp"}
	require.NoError(t, s.CreateRole(ctx, role))
	require.NoError(t, s.SoftDeleteRole(ctx, "t1", role.ID))

	_, err := s.GetRole(ctx, "t1", "Temp")
	assert.ErrorIs(t, err, ErrNotFound)

	roles, err := s.ListRoles(ctx, "t1")
	require.NoError(t, err)
	assert.Empty(t, roles)

	// The name is free for reuse after the soft delete.
	assert.NoError(t, s.CreateRole(ctx, &models.Role{TenantID: "t1", Name: "Temp"}))
}

func TestMemoryStoreSoftDeleteRoleWrongTenant(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	role := &models.Role{TenantID: "t1", Name: "Temp"}
	require.NoError(t, s.CreateRole(ctx, role))
	assert.ErrorIs(t, s.SoftDeleteRole(ctx, "t2", role.ID), ErrNotFound)
}

func TestMemoryStoreUserBlockLifecycle(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	block := &models.UserApiBlock{TenantID: "t1", UserID: "u1", ApiOperationID: "op1", Reason: "abuse"}
	require.NoError(t, s.CreateUserBlock(ctx, block))
	// Duplicate create is a no-op.
	require.NoError(t, s.CreateUserBlock(ctx, &models.UserApiBlock{TenantID: "t1", UserID: "u1", ApiOperationID: "op1"}))

	blocked, err := s.UserBlocked(ctx, "t1", "u1", "op1")
	require.NoError(t, err)
	assert.True(t, blocked)

	require.NoError(t, s.DeleteUserBlock(ctx, "t1", "u1", "op1"))
	blocked, err = s.UserBlocked(ctx, "t1", "u1", "op1")
	require.NoError(t, err)
	assert.False(t, blocked)

	assert.ErrorIs(t, s.DeleteUserBlock(ctx, "t1", "u1", "op1"), ErrNotFound)
}

func TestMemoryStoreGetOrCreateIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, created, err := s.GetOrCreateModule(ctx, "CRM", "Crm")
	require.NoError(t, err)
	assert.True(t, created)
	_, created, err = s.GetOrCreateModule(ctx, "CRM", "Crm")
	require.NoError(t, err)
	assert.False(t, created)

	ep, created, err := s.GetOrCreateEndpoint(ctx, "/api/enquiries", "CRM", strPtr("LEADS"))
	require.NoError(t, err)
	assert.True(t, created)
	again, created, err := s.GetOrCreateEndpoint(ctx, "/api/enquiries", "CRM", strPtr("LEADS"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, ep.ID, again.ID)

	op, created, err := s.GetOrCreateOperation(ctx, ep.ID, "GET", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, op.IsEnabled)
	_, created, err = s.GetOrCreateOperation(ctx, ep.ID, "GET", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestMemoryStoreUpdateEndpointOwnership(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	ep, _, err := s.GetOrCreateEndpoint(ctx, "/api/enquiries", "UNASSIGNED", nil)
	require.NoError(t, err)
	require.NoError(t, s.UpdateEndpointOwnership(ctx, ep.ID, "CRM", strPtr("LEADS")))

	got, err := s.ResolveEndpoint(ctx, "/api/enquiries")
	require.NoError(t, err)
	assert.Equal(t, "CRM", got.ModuleCode)
	require.NotNil(t, got.SubModuleCode)
	assert.Equal(t, "LEADS", *got.SubModuleCode)
}
