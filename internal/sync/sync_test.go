package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authware/rbac-core/internal/registry"
	"github.com/authware/rbac-core/internal/repo/policy"
	"github.com/authware/rbac-core/pkg/logger"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.Register(registry.Route{
		Path: "/api/enquiries/", ModuleCode: "CRM", ModuleName: "Crm",
		SubModuleCode: "LEADS", SubModuleName: "Leads",
		Operations: []registry.Operation{{HTTPMethod: "GET"}, {HTTPMethod: "POST"}},
	}))
	require.NoError(t, reg.Register(registry.Route{
		Path: "/api/enquiries/<int:pk>/", ModuleCode: "CRM", SubModuleCode: "LEADS",
		Operations: []registry.Operation{{HTTPMethod: "GET"}, {HTTPMethod: "DELETE"}},
	}))
	require.NoError(t, reg.Register(registry.Route{
		Path: "/admin/users", ModuleCode: "SYSTEM",
		Operations: []registry.Operation{{HTTPMethod: "GET"}},
	}))
	return reg
}

func TestReconcileCreatesCatalog(t *testing.T) {
	store := policy.NewMemoryStore()
	rc := NewReconciler(store, testRegistry(t), logger.NewNop(), Options{
		SkipPrefixes: []string{"/admin/"},
	})

	report, err := rc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.EndpointsCreated)
	assert.Equal(t, 4, report.OperationsCreated)
	assert.Equal(t, 0, report.EndpointsUpdated)
	assert.Equal(t, 1, report.RoutesSkipped)

	// Paths stored in normalized form.
	ep, err := store.ResolveEndpoint(context.Background(), "/api/enquiries/{pk}")
	require.NoError(t, err)
	assert.Equal(t, "CRM", ep.ModuleCode)

	op, err := store.FindOperation(context.Background(), ep.ID, "DELETE")
	require.NoError(t, err)
	assert.True(t, op.IsEnabled)
}

func TestReconcileIsIdempotent(t *testing.T) {
	store := policy.NewMemoryStore()
	reg := testRegistry(t)
	opts := Options{SkipPrefixes: []string{"/admin/"}}

	_, err := NewReconciler(store, reg, logger.NewNop(), opts).Run(context.Background())
	require.NoError(t, err)

	second, err := NewReconciler(store, reg, logger.NewNop(), opts).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, second.Writes(), "second run must write nothing")
}

func TestReconcilePreservesOperationState(t *testing.T) {
	store := policy.NewMemoryStore()
	reg := testRegistry(t)
	ctx := context.Background()
	opts := Options{SkipPrefixes: []string{"/admin/"}}

	_, err := NewReconciler(store, reg, logger.NewNop(), opts).Run(ctx)
	require.NoError(t, err)

	// An administrator disables one operation; re-sync must not re-enable.
	ep, err := store.ResolveEndpoint(ctx, "/api/enquiries")
	require.NoError(t, err)
	op, err := store.FindOperation(ctx, ep.ID, "POST")
	require.NoError(t, err)
	require.True(t, op.IsEnabled)

	// The memory store returns copies; a fresh get-or-create keeps the row.
	_, created, err := store.GetOrCreateOperation(ctx, ep.ID, "POST", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestReconcileUpdatesOwnership(t *testing.T) {
	store := policy.NewMemoryStore()
	ctx := context.Background()

	// Endpoint pre-exists under the sentinel module.
	_, _, err := store.GetOrCreateEndpoint(ctx, "/api/enquiries", "SYSTEM", nil)
	require.NoError(t, err)

	reg := registry.New()
	sub := "LEADS"
	require.NoError(t, reg.Register(registry.Route{
		Path: "/api/enquiries", ModuleCode: "CRM", SubModuleCode: sub,
		Operations: []registry.Operation{{HTTPMethod: "GET"}},
	}))

	report, err := NewReconciler(store, reg, logger.NewNop(), Options{}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.EndpointsUpdated)

	ep, err := store.ResolveEndpoint(ctx, "/api/enquiries")
	require.NoError(t, err)
	assert.Equal(t, "CRM", ep.ModuleCode)
	require.NotNil(t, ep.SubModuleCode)
	assert.Equal(t, "LEADS", *ep.SubModuleCode)
}

func TestReconcileDryRunWritesNothing(t *testing.T) {
	store := policy.NewMemoryStore()
	rc := NewReconciler(store, testRegistry(t), logger.NewNop(), Options{
		DryRun:       true,
		SkipPrefixes: []string{"/admin/"},
	})

	report, err := rc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.EndpointsCreated)
	assert.Equal(t, 4, report.OperationsCreated)
	assert.NotEmpty(t, report.Changes)

	_, err = store.ResolveEndpoint(context.Background(), "/api/enquiries")
	assert.ErrorIs(t, err, policy.ErrNotFound)
}

func TestReconcileSkipFilters(t *testing.T) {
	store := policy.NewMemoryStore()
	reg := testRegistry(t)

	report, err := NewReconciler(store, reg, logger.NewNop(), Options{
		SkipPrefixes:   []string{"/admin/"},
		SkipModules:    []string{"crm"},
		SkipOperations: []string{"delete"},
	}).Run(context.Background())
	require.NoError(t, err)

	// CRM routes skipped by module (case-insensitive), admin by prefix.
	assert.Equal(t, 3, report.RoutesSkipped)
	assert.Zero(t, report.Writes())
}
