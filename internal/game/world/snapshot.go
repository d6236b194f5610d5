package world

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is the read-only view of the world for one tick.
//
// Invariant: Actors returns the same order for the same snapshot.
type Snapshot interface {
	// Now returns the monotonic clock at snapshot time.
	Now() time.Duration
	// Actors returns every known actor in a stable order.
	Actors() []*Actor
	// Actor returns the actor with id, or false if it does not exist.
	Actor(id ActorID) (*Actor, bool)
}

// Party returns living party members in snapshot order.
func Party(s Snapshot) []*Actor {
	return filter(s, func(a *Actor) bool { return a.Kind == KindParty && a.Alive() })
}

// Hostiles returns living hostile actors in snapshot order.
func Hostiles(s Snapshot) []*Actor {
	return filter(s, func(a *Actor) bool { return a.Kind == KindHostile && a.Alive() })
}

// FindByOID returns every actor of the given object type, dead or alive.
func FindByOID(s Snapshot, oid uint32) []*Actor {
	return filter(s, func(a *Actor) bool { return a.OID == oid })
}

func filter(s Snapshot, keep func(*Actor) bool) []*Actor {
	var out []*Actor
	for _, a := range s.Actors() {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// Frame is the concrete Snapshot used by recordings and tests.
type Frame struct {
	Time      time.Duration `yaml:"time"`
	ActorList []*Actor      `yaml:"actors"`
}

// NewFrame returns a Frame at t holding actors in the given order.
func NewFrame(t time.Duration, actors ...*Actor) *Frame {
	return &Frame{Time: t, ActorList: actors}
}

// Now implements Snapshot.
func (f *Frame) Now() time.Duration { return f.Time }

// Actors implements Snapshot.
func (f *Frame) Actors() []*Actor { return f.ActorList }

// Actor implements Snapshot.
func (f *Frame) Actor(id ActorID) (*Actor, bool) {
	for _, a := range f.ActorList {
		if a.ID == id {
			return a, true
		}
	}
	return nil, false
}

// Recording is a sequence of frames captured from a live session.
type Recording struct {
	Self   ActorID  `yaml:"self"`
	Frames []*Frame `yaml:"frames"`
}

// Validate checks that frame times never go backwards and that self exists in every frame.
func (r *Recording) Validate() error {
	if r.Self == 0 {
		return fmt.Errorf("world.Recording: self must be set")
	}
	var last time.Duration
	for i, f := range r.Frames {
		if f.Time < last {
			return fmt.Errorf("world.Recording: frame %d time %s precedes %s", i, f.Time, last)
		}
		last = f.Time
		if _, ok := f.Actor(r.Self); !ok {
			return fmt.Errorf("world.Recording: frame %d has no self actor %d", i, r.Self)
		}
	}
	return nil
}

// LoadRecording reads a YAML recording from path.
//
// Precondition: path must be a readable file with a top-level 'recording' key.
// Postcondition: returns a validated Recording or an error.
func LoadRecording(path string) (*Recording, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("world.LoadRecording: reading %q: %w", path, err)
	}
	var f struct {
		Recording *Recording `yaml:"recording"`
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("world.LoadRecording: parsing %q: %w", path, err)
	}
	if f.Recording == nil {
		return nil, fmt.Errorf("world.LoadRecording: %s missing top-level 'recording' key", path)
	}
	if err := f.Recording.Validate(); err != nil {
		return nil, err
	}
	return f.Recording, nil
}
