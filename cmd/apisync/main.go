// Command apisync reconciles the declared route registry with the
// endpoint catalog in the policy database. Run it after deploying a
// build whose route table changed.
//
//	apisync --dry-run
//	apisync --skip-paths=/internal/,/debug/ --skip-operations=OPTIONS
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/authware/rbac-core/internal/api"
	"github.com/authware/rbac-core/internal/config"
	"github.com/authware/rbac-core/internal/registry"
	"github.com/authware/rbac-core/internal/repo/policy"
	catalogsync "github.com/authware/rbac-core/internal/sync"
	"github.com/authware/rbac-core/pkg/cache"
	"github.com/authware/rbac-core/pkg/logger"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "report intended changes without persisting")
	skipPaths := flag.String("skip-paths", "", "comma-separated path prefixes to skip")
	skipModules := flag.String("skip-modules", "", "comma-separated module codes to skip")
	skipOperations := flag.String("skip-operations", "", "comma-separated HTTP methods to skip")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger := logger.New(cfg.LogLevel)

	store, err := policy.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to policy database", "error", err)
	}

	// Building the server populates the route registry the same way the
	// running service does, so the catalog always mirrors real routes.
	if _, err := api.NewServer(cfg, logger, cache.NewNoop(logger), store, registry.Default); err != nil {
		logger.Fatal("Failed to assemble route registry", "error", err)
	}

	opts := catalogsync.Options{
		DryRun:         *dryRun,
		SkipPrefixes:   splitList(*skipPaths),
		SkipModules:    splitList(*skipModules),
		SkipOperations: splitList(*skipOperations),
	}
	if len(opts.SkipPrefixes) == 0 {
		opts.SkipPrefixes = config.DefaultBypassPrefixes
	}

	report, err := catalogsync.NewReconciler(store, registry.Default, logger, opts).Run(context.Background())
	if err != nil {
		logger.Error("Catalog sync failed", "error", err)
		os.Exit(1)
	}

	for _, change := range report.Changes {
		fmt.Println(change)
	}
	verb := "applied"
	if *dryRun {
		verb = "planned"
	}
	fmt.Printf("%s: %d endpoints created, %d endpoints updated, %d operations created, %d routes skipped\n",
		verb, report.EndpointsCreated, report.EndpointsUpdated, report.OperationsCreated, report.RoutesSkipped)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
