package autorotation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/raidplan/internal/autorotation"
	"github.com/cory-johannsen/raidplan/internal/game/encounter"
	"github.com/cory-johannsen/raidplan/internal/game/strategy"
	"github.com/cory-johannsen/raidplan/internal/game/target"
	"github.com/cory-johannsen/raidplan/internal/game/timeline"
	"github.com/cory-johannsen/raidplan/internal/game/world"
	"github.com/cory-johannsen/raidplan/internal/persist"
)

type planMap map[string]*persist.Document

func (p planMap) Lookup(encounter string) (*persist.Document, bool) {
	d, ok := p[encounter]
	return d, ok
}

func newTestManager(t *testing.T, plans autorotation.Plans) (*autorotation.Manager, *observer.ObservedLogs) {
	t.Helper()
	registry := encounter.NewRegistry()
	require.NoError(t, registry.Register(burnDefinition(t), nil))
	core, logs := observer.New(zap.InfoLevel)
	m := autorotation.NewManager(autorotation.ManagerConfig{
		Registry: registry,
		Module:   autorotation.Module{Catalog: testCatalog(), Decisions: testDecisions()},
		Resolver: target.NewResolver(nil, nil),
		Plans:    plans,
		Level:    90,
		Logger:   zap.New(core),
	})
	return m, logs
}

func TestManager_NoEncounterNoRecommendations(t *testing.T) {
	m, _ := newTestManager(t, nil)
	self := testSelf()
	assert.Empty(t, m.Tick(world.NewFrame(sec(1), self), self))
	assert.Empty(t, m.Active())
}

func TestManager_Lifecycle(t *testing.T) {
	m, logs := newTestManager(t, nil)
	self := testSelf()

	recs := m.Tick(testFrame(sec(10), self), self)
	require.Len(t, m.Active(), 1)
	assert.Len(t, recs, 2)
	assert.Equal(t, 1, logs.FilterMessage("encounter started").Len())

	id := m.Active()[0]
	m.Tick(testFrame(sec(11), self), self)
	assert.Equal(t, []string{id.String()}, []string{m.Active()[0].String()}, "same subject keeps its instance")

	e, ok := m.Instance(id)
	require.True(t, ok)
	assert.Equal(t, "Open", e.Machine().Phase())

	m.Tick(world.NewFrame(sec(12), self), self)
	assert.Empty(t, m.Active())
	assert.Equal(t, 1, logs.FilterMessage("encounter ended").Len())
	_, ok = m.Instance(id)
	assert.False(t, ok)
}

func TestManager_UnregisteredHostileIgnored(t *testing.T) {
	m, _ := newTestManager(t, nil)
	self := testSelf()
	trash := &world.Actor{ID: 300, OID: 0x1, Kind: world.KindHostile, HP: 1, MaxHP: 1}
	m.Tick(world.NewFrame(sec(1), self, trash), self)
	assert.Empty(t, m.Active())
}

func TestManager_AppliesSavedPlan(t *testing.T) {
	plan := timeline.NewPlan("prog", "Test", "pld")
	require.NoError(t, plan.Track("Burst").Insert(timeline.Entry{Start: 0, Duration: sec(30), Value: strategy.Value{Option: 1}}))
	doc := &persist.Document{
		ID:        plan.ID,
		Name:      "prog",
		Encounter: "Test",
		Plans:     []*timeline.Plan{plan},
		Overrides: map[string]map[string]strategy.Value{"pld": {"Heal": {Option: 1}}},
	}
	m, _ := newTestManager(t, planMap{"Test": doc})
	self := testSelf()

	recs := m.Tick(testFrame(sec(50), self), self)
	require.Len(t, recs, 2)
	assert.Equal(t, "Force", recs[0].Option.InternalName)
	assert.Equal(t, timeline.SourceTimeline, recs[0].Source)
	assert.Equal(t, "Cure", recs[1].Option.InternalName)
}

func TestManager_InstancesOwnTheirOverrides(t *testing.T) {
	registry := encounter.NewRegistry()
	require.NoError(t, registry.Register(burnDefinition(t), nil))
	m := autorotation.NewManager(autorotation.ManagerConfig{
		Registry: registry,
		Module:   autorotation.Module{Catalog: testCatalog(), Decisions: testDecisions()},
		Resolver: target.NewResolver(nil, nil),
	})
	self := testSelf()
	second := &world.Actor{ID: 101, OID: bossOID, Kind: world.KindHostile, HP: 10, MaxHP: 10}
	m.Tick(testFrame(sec(1), self, second), self)
	ids := m.Active()
	require.Len(t, ids, 2)

	a, _ := m.Instance(ids[0])
	b, _ := m.Instance(ids[1])
	a.Holder().Manual("Burst").Option = 1
	assert.Equal(t, 0, b.Holder().Manual("Burst").Option)
}

func TestManager_TerminalStateDoesNotRestartLivingSubject(t *testing.T) {
	b := encounter.NewBuilder("Test", bossOID)
	b.Phase("Open")
	b.State("Open", sec(5)).Next("Done")
	b.State("Done", 0).Terminal()
	def, err := b.Build()
	require.NoError(t, err)
	registry := encounter.NewRegistry()
	require.NoError(t, registry.Register(def, nil))

	core, logs := observer.New(zap.InfoLevel)
	m := autorotation.NewManager(autorotation.ManagerConfig{
		Registry: registry,
		Module:   autorotation.Module{Catalog: testCatalog(), Decisions: testDecisions()},
		Resolver: target.NewResolver(nil, nil),
		Logger:   zap.New(core),
	})
	self := testSelf()

	for s := 0; s <= 8; s++ {
		recs := m.Tick(testFrame(sec(float64(s)), self), self)
		if s < 5 {
			assert.Len(t, m.Active(), 1, "t=%ds", s)
			continue
		}
		assert.Empty(t, m.Active(), "t=%ds", s)
		assert.Empty(t, recs, "t=%ds", s)
	}
	assert.Equal(t, 1, logs.FilterMessage("encounter started").Len())
	assert.Equal(t, 1, logs.FilterMessage("encounter ended").Len())

	// Once the subject leaves, a later pull starts a fresh instance.
	m.Tick(world.NewFrame(sec(9), self), self)
	m.Tick(testFrame(sec(10), self), self)
	assert.Len(t, m.Active(), 1)
	assert.Equal(t, 2, logs.FilterMessage("encounter started").Len())
}
