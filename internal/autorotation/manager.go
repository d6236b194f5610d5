package autorotation

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raidplan/internal/game/encounter"
	"github.com/cory-johannsen/raidplan/internal/game/strategy"
	"github.com/cory-johannsen/raidplan/internal/game/target"
	"github.com/cory-johannsen/raidplan/internal/game/timeline"
	"github.com/cory-johannsen/raidplan/internal/game/world"
	"github.com/cory-johannsen/raidplan/internal/persist"
)

// Plans supplies the saved plan document for an encounter module.
type Plans interface {
	Lookup(encounter string) (*persist.Document, bool)
}

// Module is a rotation module: a catalog and the decision points evaluated from it.
type Module struct {
	Catalog   *strategy.Catalog
	Decisions []Decision
}

// ManagerConfig wires a Manager.
type ManagerConfig struct {
	Registry *encounter.Registry
	Module   Module
	Resolver *target.Resolver
	// Plans may be nil; instances then start with manual overrides only.
	Plans   Plans
	Scripts encounter.Scripts
	Level   int
	Budget  time.Duration
	Logger  *zap.Logger
}

// Manager starts an encounter instance when a registered encounter subject appears
// in the snapshot and disposes it once its machine ends. Each instance owns its
// own machine and strategy values. A subject whose encounter ended while it was
// still alive is not restarted until it dies or leaves the snapshot.
type Manager struct {
	cfg    ManagerConfig
	logger *zap.Logger

	mu        sync.Mutex
	instances map[uuid.UUID]*Evaluator
	bySubject map[world.ActorID]uuid.UUID
	finished  map[world.ActorID]struct{}
}

// NewManager returns a Manager with no active instances.
//
// Precondition: cfg.Registry, cfg.Module.Catalog and cfg.Resolver must not be nil.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Registry == nil || cfg.Module.Catalog == nil || cfg.Resolver == nil {
		panic("autorotation.NewManager: registry, catalog and resolver must not be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		instances: make(map[uuid.UUID]*Evaluator),
		bySubject: make(map[world.ActorID]uuid.UUID),
		finished:  make(map[world.ActorID]struct{}),
	}
}

// Tick starts instances for newly seen encounter subjects, ticks every active
// instance and disposes the ones that ended. Recommendations of all instances are
// merged by priority.
func (m *Manager) Tick(snap world.Snapshot, self *world.Actor) []Recommendation {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id := range m.finished {
		if a, ok := snap.Actor(id); !ok || !a.Alive() {
			delete(m.finished, id)
		}
	}
	for _, a := range world.Hostiles(snap) {
		if _, tracked := m.bySubject[a.ID]; tracked {
			continue
		}
		if _, done := m.finished[a.ID]; done {
			continue
		}
		def, ok := m.cfg.Registry.ForOID(a.OID)
		if !ok {
			continue
		}
		if err := m.start(def, a, snap.Now()); err != nil {
			m.logger.Error("starting encounter", zap.String("encounter", def.Module), zap.Error(err))
		}
	}

	var out []Recommendation
	for _, id := range m.sortedIDs() {
		e := m.instances[id]
		out = append(out, e.Tick(snap, self)...)
		if e.Machine().Ended() {
			m.logger.Info("encounter ended",
				zap.String("encounter", e.Machine().Definition().Module),
				zap.String("instance", id.String()),
				zap.Duration("elapsed", e.Machine().Elapsed(snap.Now())),
			)
			subject := e.Machine().Subject()
			if a, ok := snap.Actor(subject); ok && a.Alive() {
				m.finished[subject] = struct{}{}
			}
			delete(m.bySubject, subject)
			delete(m.instances, id)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out
}

func (m *Manager) start(def *encounter.Definition, subject *world.Actor, now time.Duration) error {
	machine := encounter.NewMachine(def, subject.ID, now,
		encounter.WithScripts(m.cfg.Scripts),
		encounter.WithLogger(m.logger),
	)
	holder := timeline.NewHolder(m.cfg.Module.Catalog)
	if m.cfg.Plans != nil {
		if doc, ok := m.cfg.Plans.Lookup(def.Module); ok {
			doc.Apply(holder)
		}
	}
	e, err := NewEvaluator(holder, m.cfg.Resolver, m.cfg.Module.Decisions,
		WithMachine(machine),
		WithLevel(m.cfg.Level),
		WithBudget(m.cfg.Budget),
		WithLogger(m.logger),
	)
	if err != nil {
		return err
	}
	m.instances[e.ID()] = e
	m.bySubject[subject.ID] = e.ID()
	m.logger.Info("encounter started",
		zap.String("encounter", def.Module),
		zap.String("instance", e.ID().String()),
		zap.Uint64("subject", uint64(subject.ID)),
	)
	return nil
}

func (m *Manager) sortedIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return m.instances[ids[i]].Machine().Subject() < m.instances[ids[j]].Machine().Subject()
	})
	return ids
}

// Active returns the ids of running instances.
func (m *Manager) Active() []uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedIDs()
}

// Instance returns the running instance with id.
func (m *Manager) Instance(id uuid.UUID) (*Evaluator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.instances[id]
	return e, ok
}
