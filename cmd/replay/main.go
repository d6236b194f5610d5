// Package main replays a recorded session against the encounter definitions, a
// strategy catalog and a saved plan, printing phases and recommendations per frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raidplan/internal/autorotation"
	"github.com/cory-johannsen/raidplan/internal/config"
	"github.com/cory-johannsen/raidplan/internal/game/encounter"
	"github.com/cory-johannsen/raidplan/internal/game/strategy"
	"github.com/cory-johannsen/raidplan/internal/game/target"
	"github.com/cory-johannsen/raidplan/internal/game/world"
	"github.com/cory-johannsen/raidplan/internal/observability"
	"github.com/cory-johannsen/raidplan/internal/persist"
	"github.com/cory-johannsen/raidplan/internal/planwatch"
	"github.com/cory-johannsen/raidplan/internal/scripting"
	"github.com/cory-johannsen/raidplan/internal/storage/backend"
)

// storedPlans serves plan documents fetched from the plan store.
type storedPlans map[string]*persist.Document

func (s storedPlans) Lookup(encounter string) (*persist.Document, bool) {
	d, ok := s[encounter]
	return d, ok
}

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	recordingPath := flag.String("recording", "", "path to a recorded session YAML file (required)")
	module := flag.String("module", "", "rotation module tag; may be omitted when only one catalog is loaded")
	planPath := flag.String("plan", "", "plan document to apply; empty loads plans.dir")
	planID := flag.String("plan-id", "", "plan id to fetch from the configured store instead of files")
	flag.Parse()

	if *recordingPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logging, "replay")
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	catalogs, err := strategy.LoadCatalogs(cfg.Engine.CatalogDir)
	if err != nil {
		logger.Fatal("loading catalogs", zap.Error(err))
	}
	catalog, err := pickCatalog(catalogs, *module)
	if err != nil {
		logger.Fatal("selecting catalog", zap.Error(err))
	}

	scripts := scripting.NewManager(cfg.Scripting.InstructionLimit, observability.Component(logger, "scripting"))
	defer scripts.Close()
	if cfg.Scripting.ScriptDir != "" {
		if err := scripts.LoadGlobal(cfg.Scripting.ScriptDir); err != nil {
			logger.Fatal("loading global scripts", zap.Error(err))
		}
	}
	registry, err := encounter.LoadDir(cfg.Engine.EncounterDir, scripts)
	if err != nil {
		logger.Fatal("loading encounters", zap.Error(err))
	}
	logger.Info("content loaded",
		zap.Int("catalogs", len(catalogs)),
		zap.Int("encounters", registry.Len()),
		zap.String("module", catalog.Module()),
	)

	codec, err := newCodec(catalogs, registry, logger)
	if err != nil {
		logger.Fatal("building plan codec", zap.Error(err))
	}
	plans, err := loadPlans(ctx, cfg, codec, *planPath, *planID, logger)
	if err != nil {
		logger.Fatal("loading plans", zap.Error(err))
	}

	rec, err := world.LoadRecording(*recordingPath)
	if err != nil {
		logger.Fatal("loading recording", zap.Error(err))
	}

	mgr := autorotation.NewManager(autorotation.ManagerConfig{
		Registry: registry,
		Module: autorotation.Module{
			Catalog:   catalog,
			Decisions: autorotation.DefaultDecisions(catalog, cfg.Engine.DefaultPriority),
		},
		Resolver: target.NewResolver(nil, nil),
		Plans:    plans,
		Scripts:  scripts,
		Level:    cfg.Engine.PlayerLevel,
		Budget:   cfg.Engine.TickBudget,
		Logger:   observability.Component(logger, "autorotation"),
	})
	if err := mgr.Replay(rec, func(r autorotation.FrameResult) { printFrame(os.Stdout, catalog, r) }); err != nil {
		logger.Fatal("replaying", zap.Error(err))
	}
	fmt.Printf("replayed %d frames in %s\n", len(rec.Frames), time.Since(start).Round(time.Millisecond))
}

func pickCatalog(catalogs []*strategy.Catalog, module string) (*strategy.Catalog, error) {
	if module == "" {
		if len(catalogs) != 1 {
			return nil, fmt.Errorf("%d catalogs loaded; choose one with -module", len(catalogs))
		}
		return catalogs[0], nil
	}
	var tags []string
	for _, c := range catalogs {
		if c.Module() == module {
			return c, nil
		}
		tags = append(tags, c.Module())
	}
	if hint := persist.Suggest(module, tags); hint != "" {
		return nil, fmt.Errorf("unknown module %q, did you mean %q?", module, hint)
	}
	return nil, fmt.Errorf("unknown module %q", module)
}

func newCodec(catalogs []*strategy.Catalog, registry *encounter.Registry, logger *zap.Logger) (*persist.Codec, error) {
	modules, err := persist.CatalogRegistry(catalogs...)
	if err != nil {
		return nil, err
	}
	var tables []*persist.EnumTable
	for _, oid := range registry.OIDs() {
		def, _ := registry.ForOID(oid)
		if t := registry.Tables(def.Module); t != nil {
			tables = append(tables, t.OIDs)
		}
	}
	oids, err := persist.MergeEnumTables("OID", tables...)
	if err != nil {
		return nil, err
	}
	return persist.NewCodec(modules, oids, observability.Component(logger, "persist")), nil
}

func loadPlans(ctx context.Context, cfg config.Config, codec *persist.Codec, path, id string, logger *zap.Logger) (autorotation.Plans, error) {
	if id != "" {
		planID, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parsing -plan-id: %w", err)
		}
		store, err := backend.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
		if store == nil {
			return nil, fmt.Errorf("-plan-id needs a storage.driver other than none")
		}
		defer store.Close()
		stored, err := store.Get(ctx, planID)
		if err != nil {
			return nil, err
		}
		doc, _, err := codec.Decode(stored.Document)
		if err != nil {
			return nil, err
		}
		return storedPlans{doc.Encounter: doc}, nil
	}

	lib := planwatch.NewLibrary(codec,
		planwatch.WithLint(cfg.Plans.Lint),
		planwatch.WithLogger(observability.Component(logger, "plans")),
	)
	if path != "" {
		if _, err := lib.LoadFile(ctx, path); err != nil {
			return nil, err
		}
		return lib, nil
	}
	if cfg.Plans.Dir != "" {
		if _, err := os.Stat(cfg.Plans.Dir); err == nil {
			if _, err := lib.LoadDir(ctx, cfg.Plans.Dir); err != nil {
				return nil, err
			}
		}
	}
	return lib, nil
}

func printFrame(w io.Writer, catalog *strategy.Catalog, r autorotation.FrameResult) {
	var phases []string
	for _, in := range r.Instances {
		s := fmt.Sprintf("%s:%s@%.1fs", in.Encounter, in.Phase, in.Elapsed.Seconds())
		if in.HasTimer {
			s += fmt.Sprintf(" (next in %.1fs)", in.Remaining.Seconds())
		}
		phases = append(phases, s)
	}
	fmt.Fprintf(w, "t=%8.3fs  %s\n", r.Time.Seconds(), strings.Join(phases, ", "))
	for _, rec := range r.Recommendations {
		name := rec.Model
		if m, ok := catalog.Model(rec.Model); ok {
			name = m.UIName()
		}
		tgt := rec.Target.Name
		if tgt == "" {
			tgt = fmt.Sprintf("#%d", rec.Target.ID)
		}
		line := fmt.Sprintf("    %-20s %-14s -> %-16s prio=%6.2f  [%s]", name, rec.Option.UIName(), tgt, rec.Priority, rec.Source)
		if rec.Value.Comment != "" {
			line += "  " + rec.Value.Comment
		}
		fmt.Fprintln(w, line)
	}
}
