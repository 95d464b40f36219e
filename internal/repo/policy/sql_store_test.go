package policy

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authware/rbac-core/internal/config"
	"github.com/authware/rbac-core/internal/models"
)

func newMockStore(t *testing.T) (Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db), mock
}

func TestDSNFrom(t *testing.T) {
	dsn := dsnFrom(config.DatabaseConfig{
		Host:     "db.internal",
		Port:     3307,
		User:     "rbac",
		Password: "secret",
		Name:     "policy",
		TLS:      true,
	})
	assert.Contains(t, dsn, "rbac:secret@tcp(db.internal:3307)/policy")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "tls=preferred")
}

func TestDSNFromDefaults(t *testing.T) {
	dsn := dsnFrom(config.DatabaseConfig{})
	assert.Contains(t, dsn, "root@tcp(127.0.0.1:3306)/rbac")
}

func TestSQLResolveEndpoint(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, path, module_code, submodule_code FROM api_endpoint`).
		WithArgs("/api/enquiries").
		WillReturnRows(sqlmock.NewRows([]string{"id", "path", "module_code", "submodule_code"}).
			AddRow("ep-1", "/api/enquiries", "CRM", "LEADS"))

	ep, err := s.ResolveEndpoint(context.Background(), "/api/enquiries")
	require.NoError(t, err)
	assert.Equal(t, "ep-1", ep.ID)
	require.NotNil(t, ep.SubModuleCode)
	assert.Equal(t, "LEADS", *ep.SubModuleCode)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLResolveEndpointNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, path, module_code, submodule_code FROM api_endpoint`).
		WithArgs("/api/missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.ResolveEndpoint(context.Background(), "/api/missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLFindOperationNullAction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id, endpoint_id, http_method, action_code, is_enabled`).
		WithArgs("ep-1", "GET").
		WillReturnRows(sqlmock.NewRows([]string{"id", "endpoint_id", "http_method", "action_code", "is_enabled"}).
			AddRow("op-1", "ep-1", "GET", nil, true))

	op, err := s.FindOperation(context.Background(), "ep-1", "GET")
	require.NoError(t, err)
	assert.Empty(t, op.ActionCode)
	assert.True(t, op.IsEnabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTenantModuleNullSubmodule(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`FROM tenant_module WHERE tenant_id = \? AND module_code = \? AND submodule_code IS NULL`).
		WithArgs("t1", "CRM").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "module_code", "submodule_code", "is_enabled", "expiration_date"}).
			AddRow("tm-1", "t1", "CRM", nil, true, nil))

	tm, err := s.TenantModule(context.Background(), "t1", "CRM", nil)
	require.NoError(t, err)
	assert.Nil(t, tm.SubModuleCode)
	assert.Nil(t, tm.ExpirationDate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTenantModuleWithExpiration(t *testing.T) {
	s, mock := newMockStore(t)
	exp := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM tenant_module WHERE tenant_id = \? AND module_code = \? AND submodule_code = \?`).
		WithArgs("t1", "CRM", "LEADS").
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "module_code", "submodule_code", "is_enabled", "expiration_date"}).
			AddRow("tm-1", "t1", "CRM", "LEADS", true, exp))

	tm, err := s.TenantModule(context.Background(), "t1", "CRM", strPtr("LEADS"))
	require.NoError(t, err)
	require.NotNil(t, tm.ExpirationDate)
	assert.True(t, exp.Equal(*tm.ExpirationDate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTenantModuleEmptyTenantShortCircuits(t *testing.T) {
	s, mock := newMockStore(t)

	// No query expectation: the empty tenant never hits the database.
	_, err := s.TenantModule(context.Background(), "", "CRM", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLUserPermissionTuples(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT DISTINCT tm.module_code`).
		WithArgs("t1", "t1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"module_code", "submodule_code", "action_code"}).
			AddRow("CRM", "LEADS", "view").
			AddRow("CRM", "", "create"))

	tuples, err := s.UserPermissionTuples(context.Background(), "t1", "u1")
	require.NoError(t, err)
	assert.True(t, tuples.Has("CRM", "LEADS", "view"))
	assert.True(t, tuples.Covers("CRM", "LEADS", "create"), "module-wide row covers submodules")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLTenantOverrideDisabled(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM tenant_api_override`).
		WithArgs("t1", "op-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	disabled, err := s.TenantOverrideDisabled(context.Background(), "t1", "op-1")
	require.NoError(t, err)
	assert.True(t, disabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLSoftDeleteRoleNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE app_role SET is_deleted = 1`).
		WithArgs("r1", "t1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.SoftDeleteRole(context.Background(), "t1", "r1"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLGetOrCreatePermissionCreates(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT id FROM permission`).
		WithArgs("t1", "tm-1", "view").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`INSERT INTO permission`).
		WithArgs(sqlmock.AnyArg(), "t1", "tm-1", "view").
		WillReturnResult(sqlmock.NewResult(1, 1))

	p, err := s.GetOrCreatePermission(context.Background(), "t1", "tm-1", "view")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLUpsertTenantModuleFormatsDate(t *testing.T) {
	s, mock := newMockStore(t)
	exp := time.Date(2026, time.December, 31, 15, 4, 5, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO tenant_module`).
		WithArgs("tm-1", "t1", "CRM", "LEADS", true, "2026-12-31").
		WillReturnResult(sqlmock.NewResult(1, 1))

	tm := &models.TenantModule{
		ID:             "tm-1",
		TenantID:       "t1",
		ModuleCode:     "CRM",
		SubModuleCode:  strPtr("LEADS"),
		IsEnabled:      true,
		ExpirationDate: &exp,
	}
	require.NoError(t, s.UpsertTenantModule(context.Background(), tm))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLDeleteUserBlockNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM user_api_block`).
		WithArgs("t1", "u1", "op-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.DeleteUserBlock(context.Background(), "t1", "u1", "op-1"), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
