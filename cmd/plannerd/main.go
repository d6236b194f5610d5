// Package main provides the plan daemon: it watches the plan directory and keeps
// the configured plan store in sync with the valid plan documents found there.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/raidplan/internal/config"
	"github.com/cory-johannsen/raidplan/internal/game/encounter"
	"github.com/cory-johannsen/raidplan/internal/game/strategy"
	"github.com/cory-johannsen/raidplan/internal/observability"
	"github.com/cory-johannsen/raidplan/internal/persist"
	"github.com/cory-johannsen/raidplan/internal/planwatch"
	"github.com/cory-johannsen/raidplan/internal/scripting"
	"github.com/cory-johannsen/raidplan/internal/server"
	"github.com/cory-johannsen/raidplan/internal/storage/backend"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	debounce := flag.Duration("debounce", planwatch.DefaultDebounce, "quiet period before a changed plan file is reloaded")
	grace := flag.Duration("grace", 10*time.Second, "shutdown grace period per service")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging, "plannerd")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting plan daemon",
		zap.String("plans_dir", cfg.Plans.Dir),
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("watch", cfg.Plans.Watch),
	)

	catalogs, err := strategy.LoadCatalogs(cfg.Engine.CatalogDir)
	if err != nil {
		logger.Fatal("loading catalogs", zap.Error(err))
	}
	modules, err := persist.CatalogRegistry(catalogs...)
	if err != nil {
		logger.Fatal("registering catalogs", zap.Error(err))
	}

	// Encounter files are loaded for their object-id names; predicates are compiled
	// but never evaluated here.
	scripts := scripting.NewManager(cfg.Scripting.InstructionLimit, observability.Component(logger, "scripting"))
	defer scripts.Close()
	registry, err := encounter.LoadDir(cfg.Engine.EncounterDir, scripts)
	if err != nil {
		logger.Fatal("loading encounters", zap.Error(err))
	}
	var oidTables []*persist.EnumTable
	for _, oid := range registry.OIDs() {
		def, _ := registry.ForOID(oid)
		if t := registry.Tables(def.Module); t != nil {
			oidTables = append(oidTables, t.OIDs)
		}
	}
	oids, err := persist.MergeEnumTables("OID", oidTables...)
	if err != nil {
		logger.Fatal("merging object id tables", zap.Error(err))
	}
	codec := persist.NewCodec(modules, oids, observability.Component(logger, "persist"))

	dbStart := time.Now()
	store, err := backend.Open(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal("opening plan store", zap.Error(err))
	}
	opts := []planwatch.Option{
		planwatch.WithLint(cfg.Plans.Lint),
		planwatch.WithLogger(observability.Component(logger, "plans")),
	}
	if store != nil {
		opts = append(opts, planwatch.WithStore(store))
		logger.Info("plan store opened",
			zap.String("driver", cfg.Storage.Driver),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
	}
	lib := planwatch.NewLibrary(codec, opts...)

	if !cfg.Plans.Watch {
		n, err := lib.LoadDir(ctx, cfg.Plans.Dir)
		if store != nil {
			_ = store.Close()
		}
		if err != nil {
			logger.Fatal("loading plans", zap.Error(err))
		}
		logger.Info("plans synced", zap.Int("count", n), zap.Duration("elapsed", time.Since(start)))
		return
	}

	lc := server.NewLifecycle(logger, *grace)
	if store != nil {
		lc.Add("store", server.Closer(store.Close))
	}
	watcher := planwatch.NewWatcher(lib, cfg.Plans.Dir, *debounce, observability.Component(logger, "planwatch"))
	lc.Add("planwatch", watcher)

	logger.Info("plan daemon ready", zap.Duration("startup", time.Since(start)))
	if err := lc.Run(ctx); err != nil {
		logger.Fatal("plan daemon failed", zap.Error(err))
	}
}
