package encounter

import (
	"time"

	"github.com/cory-johannsen/raidplan/internal/game/world"
	"github.com/cory-johannsen/raidplan/internal/scripting"
)

// Condition is a predicate over one advance's Context. Conditions must be pure.
type Condition func(ctx Context) bool

// SubjectOID selects the encounter subject in conditions that take an object id.
const SubjectOID uint32 = 0

func living(ctx Context, oid uint32) []*world.Actor {
	if oid == SubjectOID {
		if ctx.Subject != nil && ctx.Subject.Alive() {
			return []*world.Actor{ctx.Subject}
		}
		return nil
	}
	var out []*world.Actor
	for _, a := range world.FindByOID(ctx.Snap, oid) {
		if a.Alive() {
			out = append(out, a)
		}
	}
	return out
}

// HPBelow holds when a living actor of oid is strictly below fraction of its max HP.
// Actors with no max HP never match.
func HPBelow(oid uint32, fraction float64) Condition {
	return func(ctx Context) bool {
		for _, a := range living(ctx, oid) {
			if a.MaxHP > 0 && a.HPFraction() < fraction {
				return true
			}
		}
		return false
	}
}

// CastStarted holds while a living actor of oid is casting action.
func CastStarted(oid, action uint32) Condition {
	return func(ctx Context) bool {
		for _, a := range living(ctx, oid) {
			if a.CastingAction(action) {
				return true
			}
		}
		return false
	}
}

// StatusPresent holds when any living actor carries status.
func StatusPresent(status uint32) Condition {
	return func(ctx Context) bool {
		for _, a := range ctx.Snap.Actors() {
			if a.Alive() {
				if _, ok := a.FindStatus(status); ok {
					return true
				}
			}
		}
		return false
	}
}

// ActorPresent holds when a living actor of oid is in the snapshot.
func ActorPresent(oid uint32) Condition {
	return func(ctx Context) bool {
		return len(living(ctx, oid)) > 0
	}
}

// After holds once the machine has been in the current state for at least d.
func After(d time.Duration) Condition {
	return func(ctx Context) bool {
		return ctx.TimeInState >= d
	}
}

// All holds when every condition holds. All() holds.
func All(conds ...Condition) Condition {
	return func(ctx Context) bool {
		for _, c := range conds {
			if !c(ctx) {
				return false
			}
		}
		return true
	}
}

// Any holds when at least one condition holds. Any() does not.
func Any(conds ...Condition) Condition {
	return func(ctx Context) bool {
		for _, c := range conds {
			if c(ctx) {
				return true
			}
		}
		return false
	}
}

// Not negates c.
func Not(c Condition) Condition {
	return func(ctx Context) bool {
		return !c(ctx)
	}
}

// Script calls the Lua predicate hook of the encounter. Without a script host it
// never holds.
func Script(hook string) Condition {
	return func(ctx Context) bool {
		if ctx.Scripts == nil {
			return false
		}
		return ctx.Scripts.CallPredicate(ctx.Encounter, hook, scripting.Input{
			Snap:        ctx.Snap,
			Subject:     ctx.Subject,
			Phase:       ctx.State.PhaseName(),
			TimeInState: ctx.TimeInState,
			Elapsed:     ctx.Elapsed,
		})
	}
}
