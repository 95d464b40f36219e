package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/authware/rbac-core/internal/models"
)

// memoryStore is a process-local Store used by tests and by the apisync
// dry-run mode. It enforces the same uniqueness invariants the SQL schema
// does so behavior stays interchangeable.
type memoryStore struct {
	mu sync.RWMutex

	tenants    map[string]*models.Tenant
	users      map[string]*models.User
	modules    map[string]*models.Module
	submodules map[string]*models.SubModule
	modMap     map[string]struct{} // moduleCode|submoduleCode

	tenantModules map[string]*models.TenantModule // id
	permissions   map[string]*models.Permission   // id
	roles         map[string]*models.Role         // id
	rolePerms     map[string]*models.RolePermission
	userRoles     map[string]*models.UserRole

	endpoints  map[string]*models.ApiEndpoint // id
	operations map[string]*models.ApiOperation
	overrides  map[string]*models.TenantApiOverride
	blocks     map[string]*models.UserApiBlock
}

// NewMemoryStore returns an empty in-memory policy store.
func NewMemoryStore() Store {
	return &memoryStore{
		tenants:       make(map[string]*models.Tenant),
		users:         make(map[string]*models.User),
		modules:       make(map[string]*models.Module),
		submodules:    make(map[string]*models.SubModule),
		modMap:        make(map[string]struct{}),
		tenantModules: make(map[string]*models.TenantModule),
		permissions:   make(map[string]*models.Permission),
		roles:         make(map[string]*models.Role),
		rolePerms:     make(map[string]*models.RolePermission),
		userRoles:     make(map[string]*models.UserRole),
		endpoints:     make(map[string]*models.ApiEndpoint),
		operations:    make(map[string]*models.ApiOperation),
		overrides:     make(map[string]*models.TenantApiOverride),
		blocks:        make(map[string]*models.UserApiBlock),
	}
}

func subKey(submodule *string) string {
	if submodule == nil {
		return ""
	}
	return *submodule
}

// ─── Endpoint catalog reads ──────────────────────────────────────────────

func (m *memoryStore) ResolveEndpoint(ctx context.Context, path string) (*models.ApiEndpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ep := range m.endpoints {
		if ep.Path == path {
			cp := *ep
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) ListEndpoints(ctx context.Context) ([]*models.ApiEndpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.ApiEndpoint, 0, len(m.endpoints))
	for _, ep := range m.endpoints {
		cp := *ep
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memoryStore) FindOperation(ctx context.Context, endpointID, httpMethod string) (*models.ApiOperation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, op := range m.operations {
		if op.EndpointID == endpointID && op.HTTPMethod == httpMethod {
			cp := *op
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ─── Policy reads ────────────────────────────────────────────────────────

func (m *memoryStore) TenantModule(ctx context.Context, tenantID, moduleCode string, submoduleCode *string) (*models.TenantModule, error) {
	if tenantID == "" {
		return nil, ErrNotFound
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, tm := range m.tenantModules {
		if tm.TenantID == tenantID && tm.ModuleCode == moduleCode && subKey(tm.SubModuleCode) == subKey(submoduleCode) {
			cp := *tm
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) TenantOverrideDisabled(ctx context.Context, tenantID, operationID string) (bool, error) {
	if tenantID == "" {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ov := range m.overrides {
		if ov.TenantID == tenantID && ov.ApiOperationID == operationID && !ov.IsEnabled {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) UserBlocked(ctx context.Context, tenantID, userID, operationID string) (bool, error) {
	if tenantID == "" {
		return false, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, b := range m.blocks {
		if b.TenantID == tenantID && b.UserID == userID && b.ApiOperationID == operationID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) UserPermissionTuples(ctx context.Context, tenantID, userID string) (models.TupleSet, error) {
	set := make(models.TupleSet)
	if tenantID == "" {
		return set, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	// User → UserRole → Role (non-deleted, same tenant) → RolePermission
	// (allowed=true) → Permission → TenantModule → tuple.
	for _, ur := range m.userRoles {
		if ur.UserID != userID {
			continue
		}
		role, ok := m.roles[ur.RoleID]
		if !ok || role.IsDeleted || role.TenantID != tenantID {
			continue
		}
		for _, rp := range m.rolePerms {
			if rp.RoleID != role.ID || !rp.Allowed {
				continue
			}
			perm, ok := m.permissions[rp.PermissionID]
			if !ok || perm.TenantID != tenantID {
				continue
			}
			tm, ok := m.tenantModules[perm.TenantModuleID]
			if !ok {
				continue
			}
			set[models.PermissionTuple{
				Module:    tm.ModuleCode,
				SubModule: subKey(tm.SubModuleCode),
				Action:    perm.ActionCode,
			}] = struct{}{}
		}
	}
	return set, nil
}

// ─── Tenant and user administration ──────────────────────────────────────

func (m *memoryStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Name == tenant.Name {
			return fmt.Errorf("tenant name already exists: %s", tenant.Name)
		}
	}
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	tenant.CreatedAt = time.Now()
	tenant.UpdatedAt = tenant.CreatedAt
	cp := *tenant
	m.tenants[tenant.ID] = &cp
	return nil
}

func (m *memoryStore) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memoryStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.TenantID == "" && !user.IsSuperuser {
		return fmt.Errorf("user %s must belong to a tenant", user.Username)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// ─── Role and grant administration ───────────────────────────────────────

func (m *memoryStore) CreateRole(ctx context.Context, role *models.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.roles {
		if r.TenantID == role.TenantID && r.Name == role.Name && !r.IsDeleted {
			return fmt.Errorf("role already exists: %s", role.Name)
		}
	}
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	role.CreatedAt = time.Now()
	role.UpdatedAt = role.CreatedAt
	cp := *role
	m.roles[role.ID] = &cp
	return nil
}

func (m *memoryStore) GetRole(ctx context.Context, tenantID, name string) (*models.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.roles {
		if r.TenantID == tenantID && r.Name == name && !r.IsDeleted {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryStore) ListRoles(ctx context.Context, tenantID string) ([]*models.Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Role
	for _, r := range m.roles {
		if r.TenantID == tenantID && !r.IsDeleted {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memoryStore) SoftDeleteRole(ctx context.Context, tenantID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.roles[roleID]
	if !ok || r.TenantID != tenantID {
		return ErrNotFound
	}
	if !r.IsDeleted {
		now := time.Now()
		r.IsDeleted = true
		r.DeletedAt = &now
		r.UpdatedAt = now
	}
	return nil
}

func (m *memoryStore) GetOrCreatePermission(ctx context.Context, tenantID, tenantModuleID, actionCode string) (*models.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.permissions {
		if p.TenantID == tenantID && p.TenantModuleID == tenantModuleID && p.ActionCode == actionCode {
			cp := *p
			return &cp, nil
		}
	}
	p := &models.Permission{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		TenantModuleID: tenantModuleID,
		ActionCode:     actionCode,
	}
	m.permissions[p.ID] = p
	cp := *p
	return &cp, nil
}

func (m *memoryStore) GrantRolePermission(ctx context.Context, roleID, permissionID string, allowed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rp := range m.rolePerms {
		if rp.RoleID == roleID && rp.PermissionID == permissionID {
			rp.Allowed = allowed
			return nil
		}
	}
	rp := &models.RolePermission{
		ID:           uuid.NewString(),
		RoleID:       roleID,
		PermissionID: permissionID,
		Allowed:      allowed,
	}
	m.rolePerms[rp.ID] = rp
	return nil
}

func (m *memoryStore) AssignUserRole(ctx context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ur := range m.userRoles {
		if ur.UserID == userID && ur.RoleID == roleID {
			return nil
		}
	}
	ur := &models.UserRole{ID: uuid.NewString(), UserID: userID, RoleID: roleID}
	m.userRoles[ur.ID] = ur
	return nil
}

// ─── Subscription, override and block administration ─────────────────────

func (m *memoryStore) UpsertTenantModule(ctx context.Context, tm *models.TenantModule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.tenantModules {
		if existing.TenantID == tm.TenantID && existing.ModuleCode == tm.ModuleCode &&
			subKey(existing.SubModuleCode) == subKey(tm.SubModuleCode) {
			existing.IsEnabled = tm.IsEnabled
			existing.ExpirationDate = tm.ExpirationDate
			tm.ID = existing.ID
			return nil
		}
	}
	if tm.ID == "" {
		tm.ID = uuid.NewString()
	}
	cp := *tm
	m.tenantModules[tm.ID] = &cp
	return nil
}

func (m *memoryStore) SetTenantOverride(ctx context.Context, tenantID, operationID string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ov := range m.overrides {
		if ov.TenantID == tenantID && ov.ApiOperationID == operationID {
			ov.IsEnabled = enabled
			return nil
		}
	}
	ov := &models.TenantApiOverride{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		ApiOperationID: operationID,
		IsEnabled:      enabled,
	}
	m.overrides[ov.ID] = ov
	return nil
}

func (m *memoryStore) CreateUserBlock(ctx context.Context, block *models.UserApiBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.blocks {
		if b.TenantID == block.TenantID && b.UserID == block.UserID && b.ApiOperationID == block.ApiOperationID {
			return nil
		}
	}
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	cp := *block
	m.blocks[block.ID] = &cp
	return nil
}

func (m *memoryStore) DeleteUserBlock(ctx context.Context, tenantID, userID, operationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, b := range m.blocks {
		if b.TenantID == tenantID && b.UserID == userID && b.ApiOperationID == operationID {
			delete(m.blocks, id)
			return nil
		}
	}
	return ErrNotFound
}

// ─── Catalog reconciliation ──────────────────────────────────────────────

func (m *memoryStore) GetOrCreateModule(ctx context.Context, code, name string) (*models.Module, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mod, ok := m.modules[code]; ok {
		cp := *mod
		return &cp, false, nil
	}
	mod := &models.Module{Code: code, Name: name}
	m.modules[code] = mod
	cp := *mod
	return &cp, true, nil
}

func (m *memoryStore) GetOrCreateSubModule(ctx context.Context, code, name string) (*models.SubModule, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sm, ok := m.submodules[code]; ok {
		cp := *sm
		return &cp, false, nil
	}
	sm := &models.SubModule{Code: code, Name: name}
	m.submodules[code] = sm
	cp := *sm
	return &cp, true, nil
}

func (m *memoryStore) EnsureModuleMapping(ctx context.Context, moduleCode, submoduleCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modMap[moduleCode+"|"+submoduleCode] = struct{}{}
	return nil
}

func (m *memoryStore) GetOrCreateEndpoint(ctx context.Context, path, moduleCode string, submoduleCode *string) (*models.ApiEndpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ep := range m.endpoints {
		if ep.Path == path {
			cp := *ep
			return &cp, false, nil
		}
	}
	ep := &models.ApiEndpoint{
		ID:            uuid.NewString(),
		Path:          path,
		ModuleCode:    moduleCode,
		SubModuleCode: submoduleCode,
	}
	m.endpoints[ep.ID] = ep
	cp := *ep
	return &cp, true, nil
}

func (m *memoryStore) UpdateEndpointOwnership(ctx context.Context, endpointID, moduleCode string, submoduleCode *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep, ok := m.endpoints[endpointID]
	if !ok {
		return ErrNotFound
	}
	ep.ModuleCode = moduleCode
	ep.SubModuleCode = submoduleCode
	return nil
}

func (m *memoryStore) GetOrCreateOperation(ctx context.Context, endpointID, httpMethod, actionCode string) (*models.ApiOperation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range m.operations {
		if op.EndpointID == endpointID && op.HTTPMethod == httpMethod {
			cp := *op
			return &cp, false, nil
		}
	}
	op := &models.ApiOperation{
		ID:         uuid.NewString(),
		EndpointID: endpointID,
		HTTPMethod: httpMethod,
		ActionCode: actionCode,
		IsEnabled:  true,
	}
	m.operations[op.ID] = op
	cp := *op
	return &cp, true, nil
}
