// Package target turns a strategy target-selection mode into a concrete actor.
//
// Resolution is a pure function of (mode, param, snapshot, self): the Resolver holds
// no per-call state, so repeated calls with identical inputs return identical output.
package target

import (
	"github.com/cory-johannsen/raidplan/internal/game/strategy"
	"github.com/cory-johannsen/raidplan/internal/game/world"
)

// Rule picks the target for the Automatic mode.
type Rule func(snap world.Snapshot, self *world.Actor) (*world.Actor, bool)

// Assignments maps party assignment slots to actors. Implementations are external
// configuration (party role setup).
type Assignments interface {
	// ActorFor returns the actor bound to slot, or false if the slot is unbound.
	ActorFor(slot int) (world.ActorID, bool)
}

// StaticAssignments is an Assignments backed by a fixed map.
type StaticAssignments map[int]world.ActorID

// ActorFor implements Assignments.
func (s StaticAssignments) ActorFor(slot int) (world.ActorID, bool) {
	id, ok := s[slot]
	return id, ok
}

// Resolver resolves target-selection modes against a snapshot.
type Resolver struct {
	assignments Assignments
	automatic   Rule
}

// NewResolver returns a Resolver.
//
// assignments may be nil, in which case PartyByAssignment never resolves.
// automatic may be nil, in which case PrimaryTarget is used.
func NewResolver(assignments Assignments, automatic Rule) *Resolver {
	if automatic == nil {
		automatic = PrimaryTarget
	}
	return &Resolver{assignments: assignments, automatic: automatic}
}

// Resolve returns the actor selected by mode and param, or false if no valid target
// currently exists. A miss is not an error: callers skip the action this tick.
//
// Precondition: snap and self must not be nil.
func (r *Resolver) Resolve(mode strategy.Target, param int, snap world.Snapshot, self *world.Actor) (*world.Actor, bool) {
	return r.ResolveWith(mode, param, snap, self, r.automatic)
}

// ResolveWith is Resolve with a per-decision Automatic rule; nil falls back to the
// resolver's own rule.
func (r *Resolver) ResolveWith(mode strategy.Target, param int, snap world.Snapshot, self *world.Actor, automatic Rule) (*world.Actor, bool) {
	switch mode {
	case strategy.TargetAutomatic:
		if automatic == nil {
			automatic = r.automatic
		}
		return automatic(snap, self)
	case strategy.TargetSelf:
		return self, true
	case strategy.TargetPartyByAssignment:
		return r.byAssignment(param, snap)
	case strategy.TargetPartyWithLowestHP:
		return lowestHP(snap, self, param == 1)
	case strategy.TargetEnemyWithHighestPriority:
		return highestPriority(snap, self)
	case strategy.TargetEnemyByOID:
		return byOID(snap, self, uint32(param))
	default:
		return nil, false
	}
}

// PrimaryTarget is the default Automatic rule: self's current target when it is a
// living hostile.
func PrimaryTarget(snap world.Snapshot, self *world.Actor) (*world.Actor, bool) {
	if self.TargetID == 0 {
		return nil, false
	}
	a, ok := snap.Actor(self.TargetID)
	if !ok || a.Kind != world.KindHostile || !a.Alive() {
		return nil, false
	}
	return a, true
}

// SelfRule is an Automatic rule for beneficial actions that default to the caster.
func SelfRule(_ world.Snapshot, self *world.Actor) (*world.Actor, bool) {
	return self, true
}

func (r *Resolver) byAssignment(slot int, snap world.Snapshot) (*world.Actor, bool) {
	if r.assignments == nil {
		return nil, false
	}
	id, ok := r.assignments.ActorFor(slot)
	if !ok {
		return nil, false
	}
	a, ok := snap.Actor(id)
	if !ok || a.Kind != world.KindParty || !a.Alive() {
		return nil, false
	}
	return a, true
}

func lowestHP(snap world.Snapshot, self *world.Actor, allowSelf bool) (*world.Actor, bool) {
	var best *world.Actor
	for _, a := range world.Party(snap) {
		if a.MaxHP <= 0 {
			continue
		}
		if a.ID == self.ID && !allowSelf {
			continue
		}
		if best == nil {
			best = a
			continue
		}
		fa, fb := a.HPFraction(), best.HPFraction()
		if fa < fb || (fa == fb && closer(self, a, best)) {
			best = a
		}
	}
	return best, best != nil
}

func highestPriority(snap world.Snapshot, self *world.Actor) (*world.Actor, bool) {
	var best *world.Actor
	for _, a := range world.Hostiles(snap) {
		if a.Priority <= 0 {
			continue
		}
		if best == nil || a.Priority > best.Priority || (a.Priority == best.Priority && closer(self, a, best)) {
			best = a
		}
	}
	return best, best != nil
}

func byOID(snap world.Snapshot, self *world.Actor, oid uint32) (*world.Actor, bool) {
	var best *world.Actor
	for _, a := range world.Hostiles(snap) {
		if a.OID != oid {
			continue
		}
		if best == nil || closer(self, a, best) {
			best = a
		}
	}
	return best, best != nil
}

// closer reports whether a strictly beats b on the tie-break order: distance to self,
// then lower actor id.
func closer(self, a, b *world.Actor) bool {
	da, db := self.DistanceTo(a), self.DistanceTo(b)
	if da != db {
		return da < db
	}
	return a.ID < b.ID
}
