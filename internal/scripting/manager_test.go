package scripting_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/raidplan/internal/game/world"
	"github.com/cory-johannsen/raidplan/internal/scripting"
)

const bossOID = 0x33EB

func newTestManager(t testing.TB) (*scripting.Manager, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	m := scripting.NewManager(0, zap.New(core))
	t.Cleanup(m.Close)
	return m, logs
}

func writeTempLua(t testing.TB, filename, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(src), 0644))
	return dir
}

func bossInput(hp int64) scripting.Input {
	boss := &world.Actor{ID: 10, OID: bossOID, Kind: world.KindHostile, HP: hp, MaxHP: 100,
		Statuses: []world.Status{{ID: 2765, Extra: 2}}}
	add := &world.Actor{ID: 11, OID: 0x233C, Kind: world.KindHostile, HP: 1, MaxHP: 1}
	snap := world.NewFrame(42*time.Second, boss, add)
	return scripting.Input{Snap: snap, Subject: boss, Phase: "P1", TimeInState: 7 * time.Second, Elapsed: 30 * time.Second}
}

func TestManager_LoadEncounter_CallsPredicate(t *testing.T) {
	m, _ := newTestManager(t)
	dir := writeTempLua(t, "svarbhanu.lua", `
		function below_half(ctx)
			return ctx.subject.hp_fraction < 0.5
		end
	`)
	require.NoError(t, m.LoadEncounter("D033Svarbhanu", dir))
	assert.True(t, m.CallPredicate("D033Svarbhanu", "below_half", bossInput(40)))
	assert.False(t, m.CallPredicate("D033Svarbhanu", "below_half", bossInput(60)))
}

func TestManager_ContextFields(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.LoadSource("enc", "inline", `
		function check(ctx)
			return ctx.now == 30 and ctx.phase == "P1" and ctx.time_in_state == 7 and #ctx.actors == 2
		end
	`))
	assert.True(t, m.CallPredicate("enc", "check", bossInput(100)))
}

func TestManager_RaidHelpers(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.LoadSource("enc", "inline", `
		function helper_up(ctx)
			return raid.count(ctx, 0x233C) == 1 and raid.find(ctx, 0x233C).id == 11
		end
		function boss_marked(ctx)
			return raid.has_status(ctx.subject, 2765) and not raid.has_status(ctx.subject, 1)
		end
		function nothing(ctx)
			return raid.find(ctx, 1) == nil
		end
	`))
	in := bossInput(100)
	assert.True(t, m.CallPredicate("enc", "helper_up", in))
	assert.True(t, m.CallPredicate("enc", "boss_marked", in))
	assert.True(t, m.CallPredicate("enc", "nothing", in))
}

func TestManager_GlobalFallback(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.LoadGlobal(writeTempLua(t, "shared.lua", `function always(ctx) return true end`)))
	require.NoError(t, m.LoadSource("enc", "inline", `function local_only(ctx) return false end`))
	assert.True(t, m.CallPredicate("enc", "always", bossInput(100)))
	assert.True(t, m.CallPredicate("other", "always", bossInput(100)))
	assert.True(t, m.Has("enc", "local_only"))
	assert.False(t, m.Has("other", "local_only"))
}

func TestManager_MissingHook_FalseAndWarn(t *testing.T) {
	m, logs := newTestManager(t)
	assert.False(t, m.CallPredicate("enc", "nope", bossInput(100)))
	assert.Equal(t, 1, logs.FilterLevelExact(zap.WarnLevel).Len())
}

func TestManager_RuntimeError_FalseAndWarn(t *testing.T) {
	m, logs := newTestManager(t)
	require.NoError(t, m.LoadSource("enc", "inline", `function broken(ctx) return ctx.missing.field end`))
	assert.False(t, m.CallPredicate("enc", "broken", bossInput(100)))
	assert.Equal(t, 1, logs.FilterMessage("scripting: Lua runtime error").Len())
}

func TestManager_RunawayPredicateIsCut(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.LoadSource("enc", "inline", `
		function spin(ctx) while true do end end
		function fine(ctx) return true end
	`))
	assert.False(t, m.CallPredicate("enc", "spin", bossInput(100)))
	assert.True(t, m.CallPredicate("enc", "fine", bossInput(100)), "VM stays usable after a cut")
}

func TestManager_LoadEncounter_SyntaxErrorKeepsOldVM(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.LoadEncounter("enc", writeTempLua(t, "a.lua", `function ok(ctx) return true end`)))
	assert.Error(t, m.LoadEncounter("enc", writeTempLua(t, "b.lua", `function (`)))
	assert.True(t, m.CallPredicate("enc", "ok", bossInput(100)))
}

func TestManager_LoadEncounter_MissingDir(t *testing.T) {
	m, _ := newTestManager(t)
	assert.Error(t, m.LoadEncounter("enc", filepath.Join(t.TempDir(), "absent")))
	assert.Error(t, m.LoadEncounter("", t.TempDir()))
}

func TestManager_ConcurrentCalls(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.LoadSource("enc", "inline", `function below_half(ctx) return ctx.subject.hp_fraction < 0.5 end`))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(hp int64) {
			defer wg.Done()
			assert.Equal(t, hp < 50, m.CallPredicate("enc", "below_half", bossInput(hp)))
		}(int64(i * 7))
	}
	wg.Wait()
}

func TestSnapshotTable_StatusesStayOutOfArrayPart(t *testing.T) {
	L := scripting.NewSandboxedState()
	defer L.Close()
	scripting.RegisterModules(L)

	boss := &world.Actor{ID: 10, OID: bossOID, Kind: world.KindHostile, HP: 1, MaxHP: 1,
		Statuses: []world.Status{{ID: 3077}, {ID: 1 << 26, Extra: 4}}}
	ctx := scripting.SnapshotTable(L, scripting.Input{Snap: world.NewFrame(0, boss), Subject: boss})

	subject, ok := ctx.RawGetString("subject").(*lua.LTable)
	require.True(t, ok)
	statuses, ok := subject.RawGetString("statuses").(*lua.LTable)
	require.True(t, ok)
	assert.Equal(t, 0, statuses.Len())
	assert.Equal(t, lua.LNumber(4), statuses.RawGetH(lua.LNumber(1<<26)))

	L.SetGlobal("ctx", ctx)
	require.NoError(t, L.DoString(`ok = raid.has_status(ctx.subject, 3077) and raid.has_status(ctx.subject, 67108864) and not raid.has_status(ctx.subject, 1)`))
	assert.Equal(t, lua.LTrue, L.GetGlobal("ok"))
}
