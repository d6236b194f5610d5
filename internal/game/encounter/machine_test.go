package encounter_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/raidplan/internal/game/encounter"
	"github.com/cory-johannsen/raidplan/internal/game/world"
	"github.com/cory-johannsen/raidplan/internal/scripting"
)

const (
	bossID  world.ActorID = 100
	bossOID uint32        = 0x33EB
	addOID  uint32        = 0x233C
)

func sec(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// frame returns a snapshot holding the boss at hp percent plus any extra actors.
func frame(t time.Duration, hp int64, extra ...*world.Actor) *world.Frame {
	boss := &world.Actor{ID: bossID, OID: bossOID, Kind: world.KindHostile, HP: hp, MaxHP: 100}
	return world.NewFrame(t, append([]*world.Actor{boss}, extra...)...)
}

func twoPhase(t *testing.T) *encounter.Definition {
	t.Helper()
	b := encounter.NewBuilder("Test", bossOID)
	b.Phase("Opening")
	b.State("A", sec(5)).Next("B").When("skip", encounter.HPBelow(encounter.SubjectOID, 0.5), "C")
	b.State("B", 0)
	b.Phase("Burn")
	b.State("C", 0)
	def, err := b.Build()
	require.NoError(t, err)
	return def
}

func TestMachine_TimeoutFiresExactlyAtDeadline(t *testing.T) {
	m := encounter.NewMachine(twoPhase(t), bossID, 0)

	assert.False(t, m.Advance(frame(sec(4.999), 100)))
	assert.Equal(t, "A", m.Current().ID)

	assert.True(t, m.Advance(frame(sec(5), 100)))
	assert.Equal(t, "B", m.Current().ID)
	require.Len(t, m.History(), 1)
	assert.Equal(t, encounter.Step{From: "A", To: "B", At: sec(5), Cause: "timeout"}, m.History()[0])
}

func TestMachine_LateTickEntersAtScheduledInstant(t *testing.T) {
	m := encounter.NewMachine(twoPhase(t), bossID, 0)
	m.Advance(frame(sec(7), 100))
	assert.Equal(t, "B", m.Current().ID)
	assert.Equal(t, sec(2), m.TimeInState(sec(7)))
}

func TestMachine_ConditionPreemptsTimeout(t *testing.T) {
	m := encounter.NewMachine(twoPhase(t), bossID, 0)
	m.Advance(frame(sec(1), 80))
	assert.Equal(t, "A", m.Current().ID)

	assert.True(t, m.Advance(frame(sec(3), 40)))
	assert.Equal(t, "C", m.Current().ID)
	assert.Equal(t, "Burn", m.Phase())
	assert.Equal(t, encounter.Step{From: "A", To: "C", At: sec(3), Cause: "skip"}, m.History()[0])

	m.Advance(frame(sec(5), 40))
	assert.Equal(t, "C", m.Current().ID, "timeout of a left state never fires")
}

func TestMachine_ConditionalBeatsDueTimeoutOnSameTick(t *testing.T) {
	m := encounter.NewMachine(twoPhase(t), bossID, 0)
	m.Advance(frame(sec(6), 40))
	assert.Equal(t, "C", m.Current().ID)
}

func TestMachine_FirstDeclaredTransitionWins(t *testing.T) {
	b := encounter.NewBuilder("Order", bossOID)
	b.State("A", 0).
		When("first", encounter.After(sec(1)), "B").
		When("second", encounter.After(0), "C")
	b.State("B", 0)
	b.State("C", 0)
	def, err := b.Build()
	require.NoError(t, err)

	m := encounter.NewMachine(def, bossID, 0)
	m.Advance(frame(sec(2), 100))
	assert.Equal(t, "B", m.Current().ID)
}

func TestMachine_ChainedTimeouts(t *testing.T) {
	b := encounter.NewBuilder("Chain", bossOID)
	b.State("A", sec(5)).Next("B")
	b.State("B", sec(3)).Next("C")
	b.State("C", sec(10)).Next("A")
	def, err := b.Build()
	require.NoError(t, err)

	m := encounter.NewMachine(def, bossID, 0)
	m.Advance(frame(sec(9), 100))
	assert.Equal(t, "C", m.Current().ID)
	assert.Equal(t, sec(1), m.TimeInState(sec(9)))
	left, ok := m.TimeToTransition(sec(9))
	require.True(t, ok)
	assert.Equal(t, sec(9), left)
	assert.Len(t, m.History(), 2)
}

func TestMachine_InstantCycleIsBounded(t *testing.T) {
	always := encounter.All()
	b := encounter.NewBuilder("Cycle", bossOID)
	b.State("A", 0).When("go", always, "B")
	b.State("B", 0).When("back", always, "A")
	def, err := b.Build()
	require.NoError(t, err)

	m := encounter.NewMachine(def, bossID, 0)
	assert.True(t, m.Advance(frame(sec(1), 100)))
	assert.LessOrEqual(t, len(m.History()), def.NumStates()+1)
}

func TestMachine_HoldsWithoutTimeout(t *testing.T) {
	b := encounter.NewBuilder("Wait", bossOID)
	b.State("Wait", 0).When("add", encounter.ActorPresent(addOID), "Adds")
	b.State("Adds", 0)
	def, err := b.Build()
	require.NoError(t, err)

	m := encounter.NewMachine(def, bossID, 0)
	for s := 0; s < 100; s += 10 {
		assert.False(t, m.Advance(frame(sec(float64(s)), 100)))
	}
	_, ok := m.TimeToTransition(sec(50))
	assert.False(t, ok)

	add := &world.Actor{ID: 200, OID: addOID, Kind: world.KindHostile, HP: 10, MaxHP: 10}
	assert.True(t, m.Advance(frame(sec(101), 100, add)))
	assert.Equal(t, "Adds", m.Current().ID)
}

func TestMachine_SubjectGoneEnds(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := encounter.NewMachine(twoPhase(t), bossID, 0, encounter.WithLogger(zap.New(core)))

	assert.True(t, m.Advance(world.NewFrame(sec(2))))
	assert.True(t, m.Ended())
	assert.Equal(t, encounter.Ended, m.Current().ID)
	assert.Equal(t, "subject gone", m.History()[0].Cause)
	assert.Equal(t, 1, logs.FilterMessage("encounter transition").Len())

	assert.False(t, m.Advance(frame(sec(3), 100)), "ended is final")
}

func TestMachine_SubjectDeadEnds(t *testing.T) {
	m := encounter.NewMachine(twoPhase(t), bossID, 0)
	f := frame(sec(2), 0)
	f.ActorList[0].Dead = true
	m.Advance(f)
	assert.True(t, m.Ended())
}

func TestMachine_DeclaredTerminalState(t *testing.T) {
	b := encounter.NewBuilder("Enrage", bossOID)
	b.State("Fight", sec(600)).Next("Enrage")
	b.State("Enrage", 0).Terminal()
	def, err := b.Build()
	require.NoError(t, err)

	m := encounter.NewMachine(def, bossID, 0)
	m.Advance(frame(sec(600), 100))
	assert.True(t, m.Ended())
	assert.Equal(t, "Enrage", m.Current().ID)
}

func TestMachine_ElapsedFromStart(t *testing.T) {
	m := encounter.NewMachine(twoPhase(t), bossID, sec(10))
	assert.Equal(t, sec(4), m.Elapsed(sec(14)))
	assert.Equal(t, time.Duration(0), m.Elapsed(sec(3)))
	m.Advance(frame(sec(15), 100))
	assert.Equal(t, "B", m.Current().ID)
}

func TestMachine_TimeoutWithoutNextIsHint(t *testing.T) {
	b := encounter.NewBuilder("Hint", bossOID)
	b.State("Only", sec(30))
	def, err := b.Build()
	require.NoError(t, err)

	m := encounter.NewMachine(def, bossID, 0)
	assert.False(t, m.Advance(frame(sec(45), 100)))
	left, ok := m.TimeToTransition(sec(10))
	assert.True(t, ok)
	assert.Equal(t, sec(20), left)
	left, _ = m.TimeToTransition(sec(45))
	assert.Equal(t, time.Duration(0), left)
}

type fakeScripts struct {
	calls []scripting.Input
	ret   bool
}

func (f *fakeScripts) CallPredicate(encounter, hook string, in scripting.Input) bool {
	f.calls = append(f.calls, in)
	return f.ret && encounter == "Scripted" && hook == "ready"
}

func TestMachine_ScriptCondition(t *testing.T) {
	b := encounter.NewBuilder("Scripted", bossOID)
	b.Phase("P1")
	b.State("A", 0).When("ready", encounter.Script("ready"), "B")
	b.State("B", 0)
	def, err := b.Build()
	require.NoError(t, err)

	scripts := &fakeScripts{}
	m := encounter.NewMachine(def, bossID, sec(1), encounter.WithScripts(scripts))
	m.Advance(frame(sec(3), 100))
	assert.Equal(t, "A", m.Current().ID)
	require.Len(t, scripts.calls, 1)
	assert.Equal(t, "P1", scripts.calls[0].Phase)
	assert.Equal(t, bossID, scripts.calls[0].Subject.ID)
	assert.Equal(t, sec(2), scripts.calls[0].TimeInState)
	assert.Equal(t, sec(2), scripts.calls[0].Elapsed)

	scripts.ret = true
	m.Advance(frame(sec(4), 100))
	assert.Equal(t, "B", m.Current().ID)
}

func TestMachine_ScriptWithoutHostNeverHolds(t *testing.T) {
	b := encounter.NewBuilder("Scripted", bossOID)
	b.State("A", 0).When("ready", encounter.Script("ready"), "B")
	b.State("B", 0)
	def, err := b.Build()
	require.NoError(t, err)
	m := encounter.NewMachine(def, bossID, 0)
	assert.False(t, m.Advance(frame(sec(1), 100)))
}

func TestPropertyTrivialMachineNeverAdvances(t *testing.T) {
	def, err := encounter.NewBuilder("D033Svarbhanu", bossOID).Build()
	if err != nil {
		t.Fatalf("trivial build: %v", err)
	}
	rapid.Check(t, func(t *rapid.T) {
		m := encounter.NewMachine(def, bossID, 0)
		ticks := rapid.IntRange(1, 200).Draw(t, "ticks")
		now := time.Duration(0)
		for i := 0; i < ticks; i++ {
			now += time.Duration(rapid.Int64Range(0, int64(10*time.Second)).Draw(t, "dt"))
			hp := rapid.Int64Range(1, 100).Draw(t, "hp")
			if m.Advance(frame(now, hp)) {
				t.Fatalf("trivial machine advanced at %s", now)
			}
			if m.Current().ID != encounter.TrivialState || m.Ended() {
				t.Fatalf("trivial machine left its state: %s", m.Current().ID)
			}
		}
	})
}

func TestPropertyTimedStateNeverFiresEarly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		timeout := time.Duration(rapid.Int64Range(1, int64(time.Minute)).Draw(t, "timeout"))
		b := encounter.NewBuilder("Timed", bossOID)
		b.State("A", timeout).Next("B")
		b.State("B", 0)
		def, err := b.Build()
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		m := encounter.NewMachine(def, bossID, 0)
		at := time.Duration(rapid.Int64Range(0, int64(2*time.Minute)).Draw(t, "at"))
		m.Advance(frame(at, 100))
		want := "A"
		if at >= timeout {
			want = "B"
		}
		if m.Current().ID != want {
			t.Fatalf("timeout %s, advanced at %s: in %s, want %s", timeout, at, m.Current().ID, want)
		}
	})
}
