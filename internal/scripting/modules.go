package scripting

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/raidplan/internal/game/world"
)

// RegisterModules installs the raid helper table into L.
//
//	raid.find(ctx, oid)         first living actor with oid, or nil
//	raid.count(ctx, oid)        number of living actors with oid
//	raid.has_status(actor, id)  whether actor carries status id
//
// actor.statuses is keyed by status id in the hash part; read it through
// raid.has_status rather than by index.
//
// Precondition: L must be from NewSandboxedState.
func RegisterModules(L *lua.LState) {
	raid := L.NewTable()
	L.SetFuncs(raid, map[string]lua.LGFunction{
		"find":       luaFind,
		"count":      luaCount,
		"has_status": luaHasStatus,
	})
	L.SetGlobal("raid", raid)
}

func luaFind(L *lua.LState) int {
	var found lua.LValue = lua.LNil
	eachLiving(L.CheckTable(1), uint32(L.CheckInt(2)), func(a *lua.LTable) bool {
		found = a
		return false
	})
	L.Push(found)
	return 1
}

func luaCount(L *lua.LState) int {
	n := 0
	eachLiving(L.CheckTable(1), uint32(L.CheckInt(2)), func(*lua.LTable) bool {
		n++
		return true
	})
	L.Push(lua.LNumber(n))
	return 1
}

func luaHasStatus(L *lua.LState) int {
	actor := L.CheckTable(1)
	id := L.CheckNumber(2)
	statuses, ok := actor.RawGetString("statuses").(*lua.LTable)
	L.Push(lua.LBool(ok && statuses.RawGetH(id) != lua.LNil))
	return 1
}

func eachLiving(ctx *lua.LTable, oid uint32, visit func(*lua.LTable) bool) {
	actors, ok := ctx.RawGetString("actors").(*lua.LTable)
	if !ok {
		return
	}
	for i := 1; i <= actors.Len(); i++ {
		a, ok := actors.RawGetInt(i).(*lua.LTable)
		if !ok {
			continue
		}
		if lua.LVAsNumber(a.RawGetString("oid")) != lua.LNumber(oid) || lua.LVAsBool(a.RawGetString("dead")) {
			continue
		}
		if !visit(a) {
			return
		}
	}
}

// SnapshotTable converts snap into the ctx table passed to predicates:
//
//	ctx.now      seconds since encounter start
//	ctx.subject  the encounter subject, or nil
//	ctx.actors   array of actor tables
//	ctx.phase    current phase name
//	ctx.time_in_state  seconds in the current state
func SnapshotTable(L *lua.LState, in Input) *lua.LTable {
	ctx := L.NewTable()
	ctx.RawSetString("now", lua.LNumber(in.Elapsed.Seconds()))
	ctx.RawSetString("phase", lua.LString(in.Phase))
	ctx.RawSetString("time_in_state", lua.LNumber(in.TimeInState.Seconds()))
	if in.Subject != nil {
		ctx.RawSetString("subject", actorTable(L, in.Snap, in.Subject))
	}
	actors := L.NewTable()
	for _, a := range in.Snap.Actors() {
		actors.Append(actorTable(L, in.Snap, a))
	}
	ctx.RawSetString("actors", actors)
	return ctx
}

func actorTable(L *lua.LState, snap world.Snapshot, a *world.Actor) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("id", lua.LNumber(a.ID))
	t.RawSetString("oid", lua.LNumber(a.OID))
	t.RawSetString("name", lua.LString(a.Name))
	t.RawSetString("kind", lua.LString(a.Kind.String()))
	t.RawSetString("hp", lua.LNumber(a.HP))
	t.RawSetString("max_hp", lua.LNumber(a.MaxHP))
	t.RawSetString("hp_fraction", lua.LNumber(a.HPFraction()))
	t.RawSetString("dead", lua.LBool(a.Dead))
	t.RawSetString("priority", lua.LNumber(a.Priority))
	t.RawSetString("x", lua.LNumber(a.Position.X))
	t.RawSetString("z", lua.LNumber(a.Position.Z))
	statuses := L.NewTable()
	for _, s := range a.Statuses {
		statuses.RawSetH(lua.LNumber(s.ID), lua.LNumber(s.Extra))
	}
	t.RawSetString("statuses", statuses)
	if a.Cast != nil {
		c := L.NewTable()
		c.RawSetString("action", lua.LNumber(a.Cast.Action))
		c.RawSetString("remaining", lua.LNumber(a.Cast.Remaining(snap.Now()).Seconds()))
		t.RawSetString("cast", c)
	}
	return t
}
