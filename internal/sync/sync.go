// Package sync reconciles the declared route registry with the persisted
// endpoint catalog. It runs out of band, never on the request hot path.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/authware/rbac-core/internal/authz"
	"github.com/authware/rbac-core/internal/monitoring"
	"github.com/authware/rbac-core/internal/registry"
	"github.com/authware/rbac-core/internal/repo/policy"
	"github.com/authware/rbac-core/pkg/logger"
)

// Options controls one reconciliation run.
type Options struct {
	// DryRun reports intended changes without persisting anything.
	DryRun bool

	// SkipPrefixes excludes routes whose normalized path starts with any
	// of these prefixes. Admin, docs, and static asset routes are the
	// usual candidates.
	SkipPrefixes []string

	// SkipModules excludes routes owned by these module codes.
	SkipModules []string

	// SkipOperations excludes these HTTP methods entirely.
	SkipOperations []string
}

// Report summarizes what a run did (or, under DryRun, would have done).
type Report struct {
	EndpointsCreated  int
	EndpointsUpdated  int
	OperationsCreated int
	RoutesSkipped     int
	Changes           []string
}

func (r *Report) record(format string, args ...interface{}) {
	r.Changes = append(r.Changes, fmt.Sprintf(format, args...))
}

// Writes reports whether the run produced (or would produce) any catalog
// change.
func (r *Report) Writes() int {
	return r.EndpointsCreated + r.EndpointsUpdated + r.OperationsCreated
}

// Reconciler applies the route registry to the policy store.
type Reconciler struct {
	store  policy.Store
	reg    *registry.Registry
	logger logger.Logger
	opts   Options
}

func NewReconciler(store policy.Store, reg *registry.Registry, log logger.Logger, opts Options) *Reconciler {
	return &Reconciler{store: store, reg: reg, logger: log, opts: opts}
}

// Run walks every declared route, normalizes its path, and get-or-creates
// the endpoint and operation rows. Existing enabled flags and action codes
// are left untouched. Safe to re-run: a second run over an unchanged
// registry writes nothing.
func (rc *Reconciler) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{}

	for _, route := range rc.reg.Routes() {
		path := NormalizePath(route.Path)
		if rc.skip(path, route.ModuleCode) {
			report.RoutesSkipped++
			continue
		}

		if err := rc.reconcileRoute(ctx, path, route, report); err != nil {
			monitoring.RecordSyncRun(report.EndpointsCreated+report.OperationsCreated,
				report.EndpointsUpdated, time.Since(start), false)
			return report, fmt.Errorf("sync %s: %w", path, err)
		}
	}

	monitoring.RecordSyncRun(report.EndpointsCreated+report.OperationsCreated,
		report.EndpointsUpdated, time.Since(start), true)
	rc.logger.Info("Catalog sync complete",
		"endpoints_created", report.EndpointsCreated,
		"endpoints_updated", report.EndpointsUpdated,
		"operations_created", report.OperationsCreated,
		"routes_skipped", report.RoutesSkipped,
		"dry_run", rc.opts.DryRun,
		"duration", time.Since(start).String())
	return report, nil
}

func (rc *Reconciler) reconcileRoute(ctx context.Context, path string, route registry.Route, report *Report) error {
	moduleCode := route.ModuleCode
	if moduleCode == "" {
		moduleCode = "SYSTEM"
	}

	var subCode *string
	if route.SubModuleCode != "" {
		sc := route.SubModuleCode
		subCode = &sc
	}

	if rc.opts.DryRun {
		return rc.planRoute(ctx, path, route, moduleCode, subCode, report)
	}

	if _, _, err := rc.store.GetOrCreateModule(ctx, moduleCode, moduleName(route)); err != nil {
		return err
	}
	if subCode != nil {
		if _, _, err := rc.store.GetOrCreateSubModule(ctx, *subCode, submoduleName(route)); err != nil {
			return err
		}
		if err := rc.store.EnsureModuleMapping(ctx, moduleCode, *subCode); err != nil {
			return err
		}
	}

	ep, created, err := rc.store.GetOrCreateEndpoint(ctx, path, moduleCode, subCode)
	if err != nil {
		return err
	}
	if created {
		report.EndpointsCreated++
		report.record("create endpoint %s (%s/%s)", path, moduleCode, deref(subCode))
	} else if ep.ModuleCode != moduleCode || deref(ep.SubModuleCode) != deref(subCode) {
		if err := rc.store.UpdateEndpointOwnership(ctx, ep.ID, moduleCode, subCode); err != nil {
			return err
		}
		report.EndpointsUpdated++
		report.record("update endpoint %s ownership %s/%s -> %s/%s",
			path, ep.ModuleCode, deref(ep.SubModuleCode), moduleCode, deref(subCode))
	}

	for _, op := range route.Operations {
		method := strings.ToUpper(op.HTTPMethod)
		if rc.skipMethod(method) {
			continue
		}
		_, created, err := rc.store.GetOrCreateOperation(ctx, ep.ID, method, op.ActionCode)
		if err != nil {
			return err
		}
		if created {
			report.OperationsCreated++
			report.record("create operation %s %s action=%s", method, path, actionOrDefault(method, op.ActionCode))
		}
	}
	return nil
}

// planRoute computes the same report a real run would produce without
// touching the store.
func (rc *Reconciler) planRoute(ctx context.Context, path string, route registry.Route, moduleCode string, subCode *string, report *Report) error {
	ep, err := rc.store.ResolveEndpoint(ctx, path)
	if err == policy.ErrNotFound {
		report.EndpointsCreated++
		report.record("create endpoint %s (%s/%s)", path, moduleCode, deref(subCode))
		for _, op := range route.Operations {
			method := strings.ToUpper(op.HTTPMethod)
			if rc.skipMethod(method) {
				continue
			}
			report.OperationsCreated++
			report.record("create operation %s %s action=%s", method, path, actionOrDefault(method, op.ActionCode))
		}
		return nil
	}
	if err != nil {
		return err
	}

	if ep.ModuleCode != moduleCode || deref(ep.SubModuleCode) != deref(subCode) {
		report.EndpointsUpdated++
		report.record("update endpoint %s ownership %s/%s -> %s/%s",
			path, ep.ModuleCode, deref(ep.SubModuleCode), moduleCode, deref(subCode))
	}
	for _, op := range route.Operations {
		method := strings.ToUpper(op.HTTPMethod)
		if rc.skipMethod(method) {
			continue
		}
		if _, err := rc.store.FindOperation(ctx, ep.ID, method); err == policy.ErrNotFound {
			report.OperationsCreated++
			report.record("create operation %s %s action=%s", method, path, actionOrDefault(method, op.ActionCode))
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (rc *Reconciler) skip(path, moduleCode string) bool {
	for _, prefix := range rc.opts.SkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	for _, m := range rc.opts.SkipModules {
		if strings.EqualFold(m, moduleCode) {
			return true
		}
	}
	return false
}

func (rc *Reconciler) skipMethod(method string) bool {
	for _, m := range rc.opts.SkipOperations {
		if strings.EqualFold(m, method) {
			return true
		}
	}
	return false
}

func moduleName(route registry.Route) string {
	if route.ModuleName != "" {
		return route.ModuleName
	}
	return route.ModuleCode
}

func submoduleName(route registry.Route) string {
	if route.SubModuleName != "" {
		return route.SubModuleName
	}
	return route.SubModuleCode
}

func actionOrDefault(method, action string) string {
	if action != "" {
		return action
	}
	if def, ok := authz.HTTPMethodActionDefaults[method]; ok {
		return def
	}
	return "?"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
