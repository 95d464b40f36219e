package policy

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/authware/rbac-core/internal/config"
	"github.com/authware/rbac-core/internal/models"
)

// sqlStore implements Store on database/sql with the MySQL driver. The
// schema is bootstrapped on connect; unique keys enforce every policy
// uniqueness invariant so concurrent administrative writes cannot create
// duplicates.
type sqlStore struct {
	db *sql.DB
}

func dsnFrom(cfg config.DatabaseConfig) string {
	user := cfg.User
	if user == "" {
		user = "root"
	}
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	dbName := cfg.Name
	if dbName == "" {
		dbName = "rbac"
	}

	params := url.Values{}
	params.Set("parseTime", "true")
	if cfg.TLS {
		params.Set("tls", "preferred")
	}
	for k, v := range cfg.Params {
		params.Set(k, v)
	}
	auth := user
	if cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s", user, cfg.Password)
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?%s", auth, host, port, dbName, params.Encode())
}

// Connect opens the policy database, verifies connectivity, and ensures
// the schema plus the base action vocabulary exist.
func Connect(cfg config.DatabaseConfig) (Store, error) {
	db, err := sql.Open("mysql", dsnFrom(cfg))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &sqlStore{db: db}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLStore wraps an existing database handle. Used by tests with sqlmock.
func NewSQLStore(db *sql.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tenant (
			id VARCHAR(36) NOT NULL,
			name VARCHAR(255) NOT NULL,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_tenant_name (name)
		)`,
		`CREATE TABLE IF NOT EXISTS app_module (
			code VARCHAR(50) NOT NULL,
			name VARCHAR(100) NOT NULL,
			PRIMARY KEY (code)
		)`,
		`CREATE TABLE IF NOT EXISTS app_submodule (
			code VARCHAR(50) NOT NULL,
			name VARCHAR(100) NOT NULL,
			PRIMARY KEY (code)
		)`,
		`CREATE TABLE IF NOT EXISTS module_submodule_map (
			module_code VARCHAR(50) NOT NULL,
			submodule_code VARCHAR(50) NOT NULL,
			PRIMARY KEY (module_code, submodule_code)
		)`,
		`CREATE TABLE IF NOT EXISTS action (
			code VARCHAR(20) NOT NULL,
			PRIMARY KEY (code)
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_module (
			id VARCHAR(36) NOT NULL,
			tenant_id VARCHAR(36) NOT NULL,
			module_code VARCHAR(50) NOT NULL,
			submodule_code VARCHAR(50),
			is_enabled TINYINT(1) NOT NULL DEFAULT 1,
			expiration_date DATE,
			PRIMARY KEY (id),
			UNIQUE KEY uq_tenant_module (tenant_id, module_code, submodule_code)
		)`,
		`CREATE TABLE IF NOT EXISTS permission (
			id VARCHAR(36) NOT NULL,
			tenant_id VARCHAR(36) NOT NULL,
			tenant_module_id VARCHAR(36) NOT NULL,
			action_code VARCHAR(20) NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_permission (tenant_id, tenant_module_id, action_code)
		)`,
		`CREATE TABLE IF NOT EXISTS app_role (
			id VARCHAR(36) NOT NULL,
			tenant_id VARCHAR(36) NOT NULL,
			name VARCHAR(100) NOT NULL,
			is_deleted TINYINT(1) NOT NULL DEFAULT 0,
			deleted_at TIMESTAMP NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_role_name (tenant_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS role_permission (
			id VARCHAR(36) NOT NULL,
			role_id VARCHAR(36) NOT NULL,
			permission_id VARCHAR(36) NOT NULL,
			allowed TINYINT(1) NOT NULL DEFAULT 1,
			PRIMARY KEY (id),
			UNIQUE KEY uq_role_permission (role_id, permission_id)
		)`,
		`CREATE TABLE IF NOT EXISTS app_user (
			id VARCHAR(36) NOT NULL,
			username VARCHAR(150) NOT NULL,
			email VARCHAR(255),
			tenant_id VARCHAR(36),
			is_superuser TINYINT(1) NOT NULL DEFAULT 0,
			is_active TINYINT(1) NOT NULL DEFAULT 1,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			PRIMARY KEY (id),
			UNIQUE KEY uq_username (username)
		)`,
		`CREATE TABLE IF NOT EXISTS user_role (
			id VARCHAR(36) NOT NULL,
			user_id VARCHAR(36) NOT NULL,
			role_id VARCHAR(36) NOT NULL,
			PRIMARY KEY (id),
			UNIQUE KEY uq_user_role (user_id, role_id)
		)`,
		`CREATE TABLE IF NOT EXISTS api_endpoint (
			id VARCHAR(36) NOT NULL,
			path VARCHAR(200) NOT NULL,
			module_code VARCHAR(50) NOT NULL,
			submodule_code VARCHAR(50),
			PRIMARY KEY (id),
			UNIQUE KEY uq_endpoint_path (path)
		)`,
		`CREATE TABLE IF NOT EXISTS api_operation (
			id VARCHAR(36) NOT NULL,
			endpoint_id VARCHAR(36) NOT NULL,
			http_method VARCHAR(10) NOT NULL,
			action_code VARCHAR(20),
			is_enabled TINYINT(1) NOT NULL DEFAULT 1,
			PRIMARY KEY (id),
			UNIQUE KEY uq_operation (endpoint_id, http_method)
		)`,
		`CREATE TABLE IF NOT EXISTS tenant_api_override (
			id VARCHAR(36) NOT NULL,
			tenant_id VARCHAR(36) NOT NULL,
			api_operation_id VARCHAR(36) NOT NULL,
			is_enabled TINYINT(1) NOT NULL DEFAULT 1,
			PRIMARY KEY (id),
			UNIQUE KEY uq_tenant_override (tenant_id, api_operation_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_api_block (
			id VARCHAR(36) NOT NULL,
			tenant_id VARCHAR(36) NOT NULL,
			user_id VARCHAR(36) NOT NULL,
			api_operation_id VARCHAR(36) NOT NULL,
			reason TEXT,
			PRIMARY KEY (id),
			UNIQUE KEY uq_user_block (tenant_id, user_id, api_operation_id)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	// Base action vocabulary.
	for _, code := range []string{"view", "create", "update", "delete", "approve"} {
		if _, err := s.db.Exec(`INSERT IGNORE INTO action (code) VALUES (?)`, code); err != nil {
			return fmt.Errorf("seed actions: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) Close() error { return s.db.Close() }

// ─── Endpoint catalog reads ──────────────────────────────────────────────

func (s *sqlStore) ResolveEndpoint(ctx context.Context, path string) (*models.ApiEndpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, path, module_code, submodule_code FROM api_endpoint WHERE path = ?`, path)
	return scanEndpoint(row)
}

func (s *sqlStore) ListEndpoints(ctx context.Context) ([]*models.ApiEndpoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, module_code, submodule_code FROM api_endpoint ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.ApiEndpoint
	for rows.Next() {
		var ep models.ApiEndpoint
		var sub sql.NullString
		if err := rows.Scan(&ep.ID, &ep.Path, &ep.ModuleCode, &sub); err != nil {
			return nil, err
		}
		if sub.Valid {
			ep.SubModuleCode = &sub.String
		}
		out = append(out, &ep)
	}
	return out, rows.Err()
}

func (s *sqlStore) FindOperation(ctx context.Context, endpointID, httpMethod string) (*models.ApiOperation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, endpoint_id, http_method, action_code, is_enabled
		 FROM api_operation WHERE endpoint_id = ? AND http_method = ?`, endpointID, httpMethod)
	return scanOperation(row)
}

// ─── Policy reads ────────────────────────────────────────────────────────

func (s *sqlStore) TenantModule(ctx context.Context, tenantID, moduleCode string, submoduleCode *string) (*models.TenantModule, error) {
	if tenantID == "" {
		return nil, ErrNotFound
	}
	var row *sql.Row
	if submoduleCode == nil {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, tenant_id, module_code, submodule_code, is_enabled, expiration_date
			 FROM tenant_module WHERE tenant_id = ? AND module_code = ? AND submodule_code IS NULL`,
			tenantID, moduleCode)
	} else {
		row = s.db.QueryRowContext(ctx,
			`SELECT id, tenant_id, module_code, submodule_code, is_enabled, expiration_date
			 FROM tenant_module WHERE tenant_id = ? AND module_code = ? AND submodule_code = ?`,
			tenantID, moduleCode, *submoduleCode)
	}

	var tm models.TenantModule
	var sub sql.NullString
	var exp sql.NullTime
	err := row.Scan(&tm.ID, &tm.TenantID, &tm.ModuleCode, &sub, &tm.IsEnabled, &exp)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sub.Valid {
		tm.SubModuleCode = &sub.String
	}
	if exp.Valid {
		tm.ExpirationDate = &exp.Time
	}
	return &tm, nil
}

func (s *sqlStore) TenantOverrideDisabled(ctx context.Context, tenantID, operationID string) (bool, error) {
	if tenantID == "" {
		return false, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM tenant_api_override
		 WHERE tenant_id = ? AND api_operation_id = ? AND is_enabled = 0`,
		tenantID, operationID).Scan(&n)
	return n > 0, err
}

func (s *sqlStore) UserBlocked(ctx context.Context, tenantID, userID, operationID string) (bool, error) {
	if tenantID == "" {
		return false, nil
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM user_api_block
		 WHERE tenant_id = ? AND user_id = ? AND api_operation_id = ?`,
		tenantID, userID, operationID).Scan(&n)
	return n > 0, err
}

func (s *sqlStore) UserPermissionTuples(ctx context.Context, tenantID, userID string) (models.TupleSet, error) {
	set := make(models.TupleSet)
	if tenantID == "" {
		return set, nil
	}

	// User → user_role → app_role (non-deleted, same tenant) →
	// role_permission (allowed) → permission → tenant_module.
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT tm.module_code, COALESCE(tm.submodule_code, ''), p.action_code
		 FROM user_role ur
		 JOIN app_role r ON r.id = ur.role_id AND r.is_deleted = 0 AND r.tenant_id = ?
		 JOIN role_permission rp ON rp.role_id = r.id AND rp.allowed = 1
		 JOIN permission p ON p.id = rp.permission_id AND p.tenant_id = ?
		 JOIN tenant_module tm ON tm.id = p.tenant_module_id
		 WHERE ur.user_id = ?`,
		tenantID, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var t models.PermissionTuple
		if err := rows.Scan(&t.Module, &t.SubModule, &t.Action); err != nil {
			return nil, err
		}
		set[t] = struct{}{}
	}
	return set, rows.Err()
}

// ─── Tenant and user administration ──────────────────────────────────────

func (s *sqlStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant (id, name, is_active) VALUES (?, ?, ?)`,
		tenant.ID, tenant.Name, tenant.IsActive)
	if err != nil {
		return fmt.Errorf("create tenant %s: %w", tenant.Name, err)
	}
	return nil
}

func (s *sqlStore) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	var t models.Tenant
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, is_active, created_at, updated_at FROM tenant WHERE id = ?`,
		tenantID).Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *sqlStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.TenantID == "" && !user.IsSuperuser {
		return fmt.Errorf("user %s must belong to a tenant", user.Username)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	var tenant interface{}
	if user.TenantID != "" {
		tenant = user.TenantID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_user (id, username, email, tenant_id, is_superuser, is_active)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, tenant, user.IsSuperuser, user.IsActive)
	if err != nil {
		return fmt.Errorf("create user %s: %w", user.Username, err)
	}
	return nil
}

func (s *sqlStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	var tenant sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, email, tenant_id, is_superuser, is_active, created_at, updated_at
		 FROM app_user WHERE id = ?`, userID).
		Scan(&u.ID, &u.Username, &u.Email, &tenant, &u.IsSuperuser, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if tenant.Valid {
		u.TenantID = tenant.String
	}
	return &u, nil
}

// ─── Role and grant administration ───────────────────────────────────────

func (s *sqlStore) CreateRole(ctx context.Context, role *models.Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO app_role (id, tenant_id, name) VALUES (?, ?, ?)`,
		role.ID, role.TenantID, role.Name)
	if err != nil {
		return fmt.Errorf("create role %s: %w", role.Name, err)
	}
	return nil
}

func (s *sqlStore) GetRole(ctx context.Context, tenantID, name string) (*models.Role, error) {
	var r models.Role
	var deletedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, is_deleted, deleted_at, created_at, updated_at
		 FROM app_role WHERE tenant_id = ? AND name = ? AND is_deleted = 0`,
		tenantID, name).
		Scan(&r.ID, &r.TenantID, &r.Name, &r.IsDeleted, &deletedAt, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		r.DeletedAt = &deletedAt.Time
	}
	return &r, nil
}

func (s *sqlStore) ListRoles(ctx context.Context, tenantID string) ([]*models.Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, is_deleted, deleted_at, created_at, updated_at
		 FROM app_role WHERE tenant_id = ? AND is_deleted = 0 ORDER BY name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Role
	for rows.Next() {
		var r models.Role
		var deletedAt sql.NullTime
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &r.IsDeleted, &deletedAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if deletedAt.Valid {
			r.DeletedAt = &deletedAt.Time
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *sqlStore) SoftDeleteRole(ctx context.Context, tenantID, roleID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE app_role SET is_deleted = 1, deleted_at = NOW()
		 WHERE id = ? AND tenant_id = ? AND is_deleted = 0`, roleID, tenantID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) GetOrCreatePermission(ctx context.Context, tenantID, tenantModuleID, actionCode string) (*models.Permission, error) {
	p := &models.Permission{
		TenantID:       tenantID,
		TenantModuleID: tenantModuleID,
		ActionCode:     actionCode,
	}
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM permission WHERE tenant_id = ? AND tenant_module_id = ? AND action_code = ?`,
		tenantID, tenantModuleID, actionCode).Scan(&p.ID)
	if err == nil {
		return p, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}
	p.ID = uuid.NewString()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO permission (id, tenant_id, tenant_module_id, action_code) VALUES (?, ?, ?, ?)`,
		p.ID, tenantID, tenantModuleID, actionCode); err != nil {
		return nil, fmt.Errorf("create permission: %w", err)
	}
	return p, nil
}

func (s *sqlStore) GrantRolePermission(ctx context.Context, roleID, permissionID string, allowed bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO role_permission (id, role_id, permission_id, allowed) VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE allowed = VALUES(allowed)`,
		uuid.NewString(), roleID, permissionID, allowed)
	return err
}

func (s *sqlStore) AssignUserRole(ctx context.Context, userID, roleID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO user_role (id, user_id, role_id) VALUES (?, ?, ?)`,
		uuid.NewString(), userID, roleID)
	return err
}

// ─── Subscription, override and block administration ─────────────────────

func (s *sqlStore) UpsertTenantModule(ctx context.Context, tm *models.TenantModule) error {
	if tm.ID == "" {
		tm.ID = uuid.NewString()
	}
	var sub interface{}
	if tm.SubModuleCode != nil {
		sub = *tm.SubModuleCode
	}
	var exp interface{}
	if tm.ExpirationDate != nil {
		exp = tm.ExpirationDate.Format("2006-01-02")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_module (id, tenant_id, module_code, submodule_code, is_enabled, expiration_date)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE is_enabled = VALUES(is_enabled), expiration_date = VALUES(expiration_date)`,
		tm.ID, tm.TenantID, tm.ModuleCode, sub, tm.IsEnabled, exp)
	return err
}

func (s *sqlStore) SetTenantOverride(ctx context.Context, tenantID, operationID string, enabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tenant_api_override (id, tenant_id, api_operation_id, is_enabled)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE is_enabled = VALUES(is_enabled)`,
		uuid.NewString(), tenantID, operationID, enabled)
	return err
}

func (s *sqlStore) CreateUserBlock(ctx context.Context, block *models.UserApiBlock) error {
	if block.ID == "" {
		block.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO user_api_block (id, tenant_id, user_id, api_operation_id, reason)
		 VALUES (?, ?, ?, ?, ?)`,
		block.ID, block.TenantID, block.UserID, block.ApiOperationID, block.Reason)
	return err
}

func (s *sqlStore) DeleteUserBlock(ctx context.Context, tenantID, userID, operationID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM user_api_block WHERE tenant_id = ? AND user_id = ? AND api_operation_id = ?`,
		tenantID, userID, operationID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Catalog reconciliation ──────────────────────────────────────────────

func (s *sqlStore) GetOrCreateModule(ctx context.Context, code, name string) (*models.Module, bool, error) {
	var m models.Module
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name FROM app_module WHERE code = ?`, code).Scan(&m.Code, &m.Name)
	if err == nil {
		return &m, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO app_module (code, name) VALUES (?, ?)`, code, name); err != nil {
		return nil, false, fmt.Errorf("create module %s: %w", code, err)
	}
	return &models.Module{Code: code, Name: name}, true, nil
}

func (s *sqlStore) GetOrCreateSubModule(ctx context.Context, code, name string) (*models.SubModule, bool, error) {
	var sm models.SubModule
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name FROM app_submodule WHERE code = ?`, code).Scan(&sm.Code, &sm.Name)
	if err == nil {
		return &sm, false, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO app_submodule (code, name) VALUES (?, ?)`, code, name); err != nil {
		return nil, false, fmt.Errorf("create submodule %s: %w", code, err)
	}
	return &models.SubModule{Code: code, Name: name}, true, nil
}

func (s *sqlStore) EnsureModuleMapping(ctx context.Context, moduleCode, submoduleCode string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT IGNORE INTO module_submodule_map (module_code, submodule_code) VALUES (?, ?)`,
		moduleCode, submoduleCode)
	return err
}

func (s *sqlStore) GetOrCreateEndpoint(ctx context.Context, path, moduleCode string, submoduleCode *string) (*models.ApiEndpoint, bool, error) {
	ep, err := s.ResolveEndpoint(ctx, path)
	if err == nil {
		return ep, false, nil
	}
	if err != ErrNotFound {
		return nil, false, err
	}
	ep = &models.ApiEndpoint{
		ID:            uuid.NewString(),
		Path:          path,
		ModuleCode:    moduleCode,
		SubModuleCode: submoduleCode,
	}
	var sub interface{}
	if submoduleCode != nil {
		sub = *submoduleCode
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO api_endpoint (id, path, module_code, submodule_code) VALUES (?, ?, ?, ?)`,
		ep.ID, path, moduleCode, sub); err != nil {
		return nil, false, fmt.Errorf("create endpoint %s: %w", path, err)
	}
	return ep, true, nil
}

func (s *sqlStore) UpdateEndpointOwnership(ctx context.Context, endpointID, moduleCode string, submoduleCode *string) error {
	var sub interface{}
	if submoduleCode != nil {
		sub = *submoduleCode
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE api_endpoint SET module_code = ?, submodule_code = ? WHERE id = ?`,
		moduleCode, sub, endpointID)
	return err
}

func (s *sqlStore) GetOrCreateOperation(ctx context.Context, endpointID, httpMethod, actionCode string) (*models.ApiOperation, bool, error) {
	op, err := s.FindOperation(ctx, endpointID, httpMethod)
	if err == nil {
		return op, false, nil
	}
	if err != ErrNotFound {
		return nil, false, err
	}
	op = &models.ApiOperation{
		ID:         uuid.NewString(),
		EndpointID: endpointID,
		HTTPMethod: httpMethod,
		ActionCode: actionCode,
		IsEnabled:  true,
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO api_operation (id, endpoint_id, http_method, action_code, is_enabled)
		 VALUES (?, ?, ?, ?, 1)`,
		op.ID, endpointID, httpMethod, actionCode); err != nil {
		return nil, false, fmt.Errorf("create operation %s %s: %w", httpMethod, endpointID, err)
	}
	return op, true, nil
}

// ─── Row scanning helpers ────────────────────────────────────────────────

func scanEndpoint(row *sql.Row) (*models.ApiEndpoint, error) {
	var ep models.ApiEndpoint
	var sub sql.NullString
	err := row.Scan(&ep.ID, &ep.Path, &ep.ModuleCode, &sub)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if sub.Valid {
		ep.SubModuleCode = &sub.String
	}
	return &ep, nil
}

func scanOperation(row *sql.Row) (*models.ApiOperation, error) {
	var op models.ApiOperation
	var action sql.NullString
	err := row.Scan(&op.ID, &op.EndpointID, &op.HTTPMethod, &action, &op.IsEnabled)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if action.Valid {
		op.ActionCode = action.String
	}
	return &op, nil
}
