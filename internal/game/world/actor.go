// Package world defines the read-only world state consumed by the planner core.
//
// The host refreshes a Snapshot once per tick; nothing in the core mutates it.
package world

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ActorID is the host's unique instance identifier for an actor.
type ActorID uint64

// Kind classifies an actor relative to the acting player.
type Kind int

const (
	KindNeutral Kind = iota
	KindParty        // member of the player's party, including the player
	KindAlly         // friendly but outside the party
	KindHostile
)

var kindNames = map[Kind]string{
	KindNeutral: "neutral",
	KindParty:   "party",
	KindAlly:    "ally",
	KindHostile: "hostile",
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind maps a kind name to a Kind.
func ParseKind(s string) (Kind, error) {
	for k, n := range kindNames {
		if strings.EqualFold(n, s) {
			return k, nil
		}
	}
	return KindNeutral, fmt.Errorf("world.ParseKind: unknown kind %q", s)
}

// UnmarshalYAML decodes a kind name.
func (k *Kind) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseKind(node.Value)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// MarshalYAML encodes the kind name.
func (k Kind) MarshalYAML() (any, error) {
	return k.String(), nil
}

// Vec2 is a position on the arena floor.
type Vec2 struct {
	X float64 `yaml:"x"`
	Z float64 `yaml:"z"`
}

// Distance returns the euclidean distance between v and o.
func (v Vec2) Distance(o Vec2) float64 {
	return math.Hypot(v.X-o.X, v.Z-o.Z)
}

// Status is one status effect applied to an actor.
type Status struct {
	ID       uint32        `yaml:"id"`
	Extra    uint16        `yaml:"extra"`
	ExpireAt time.Duration `yaml:"expire_at"` // 0 = no expiry
}

// Cast is an in-progress cast.
type Cast struct {
	Action  uint32        `yaml:"action"`
	Target  ActorID       `yaml:"target"`
	Started time.Duration `yaml:"started"`
	Total   time.Duration `yaml:"total"`
}

// Remaining returns the cast time left at now, never negative.
func (c *Cast) Remaining(now time.Duration) time.Duration {
	left := c.Started + c.Total - now
	if left < 0 {
		return 0
	}
	return left
}

// Actor captures one actor's state at snapshot time.
type Actor struct {
	ID       ActorID  `yaml:"id"`
	OID      uint32   `yaml:"oid"`
	Name     string   `yaml:"name"`
	Kind     Kind     `yaml:"kind"`
	Level    int      `yaml:"level"`
	Position Vec2     `yaml:"position"`
	HP       int64    `yaml:"hp"`
	MaxHP    int64    `yaml:"max_hp"`
	Dead     bool     `yaml:"dead"`
	Priority int      `yaml:"priority"` // hostile target priority tag; <= 0 = not a priority target
	TargetID ActorID  `yaml:"target"`
	Statuses []Status `yaml:"statuses"`
	Cast     *Cast    `yaml:"cast"`
}

// HPFraction returns current HP as a fraction of MaxHP; 0 if MaxHP <= 0.
func (a *Actor) HPFraction() float64 {
	if a.MaxHP <= 0 {
		return 0
	}
	return float64(a.HP) / float64(a.MaxHP)
}

// Alive reports whether the actor is not dead.
func (a *Actor) Alive() bool {
	return !a.Dead
}

// DistanceTo returns the distance between a and o.
func (a *Actor) DistanceTo(o *Actor) float64 {
	return a.Position.Distance(o.Position)
}

// FindStatus returns the first status with the given id.
func (a *Actor) FindStatus(id uint32) (Status, bool) {
	for _, s := range a.Statuses {
		if s.ID == id {
			return s, true
		}
	}
	return Status{}, false
}

// CastingAction reports whether the actor is currently casting action.
func (a *Actor) CastingAction(action uint32) bool {
	return a.Cast != nil && a.Cast.Action == action
}
