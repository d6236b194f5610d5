package encounter

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Definition is the immutable state graph of one encounter module.
type Definition struct {
	Module string
	Name   string
	// OID is the object type of the encounter subject; it keys the Registry.
	OID     uint32
	Initial string
	states  map[string]*State
	order   []string
}

// State returns the state with id. The built-in Ended state is always present.
func (d *Definition) State(id string) (*State, bool) {
	if id == Ended {
		return endedState, true
	}
	s, ok := d.states[id]
	return s, ok
}

// States returns the declared states in declaration order.
func (d *Definition) States() []*State {
	out := make([]*State, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.states[id])
	}
	return out
}

// NumStates returns the number of declared states.
func (d *Definition) NumStates() int { return len(d.order) }

// Trivial reports whether the definition is a single state with no way out.
func (d *Definition) Trivial() bool {
	if len(d.order) != 1 {
		return false
	}
	s := d.states[d.order[0]]
	return !s.Timed() && len(s.Transitions) == 0
}

// Builder assembles a Definition. Definition errors are collected and returned
// together by Build.
type Builder struct {
	def   *Definition
	phase string
	errs  []string
}

// StateBuilder configures one declared state.
type StateBuilder struct {
	b     *Builder
	state *State
}

// NewBuilder starts a definition for module, keyed by the subject's object type.
func NewBuilder(module string, oid uint32) *Builder {
	return &Builder{def: &Definition{Module: module, Name: module, OID: oid, states: make(map[string]*State)}}
}

// Name sets the display name; it defaults to the module tag.
func (b *Builder) Name(name string) *Builder {
	b.def.Name = name
	return b
}

// Phase sets the phase of every state declared after it.
func (b *Builder) Phase(name string) *Builder {
	b.phase = name
	return b
}

// Initial selects the initial state; it defaults to the first declared state.
func (b *Builder) Initial(id string) *Builder {
	b.def.Initial = id
	return b
}

// State declares a state with an optional timeout.
func (b *Builder) State(id string, timeout time.Duration) *StateBuilder {
	s := &State{ID: id, Phase: b.phase, Timeout: timeout}
	switch {
	case id == "":
		b.errs = append(b.errs, "state id must not be empty")
	case id == Ended:
		b.errs = append(b.errs, fmt.Sprintf("state id %q is reserved", Ended))
	case b.def.states[id] != nil:
		b.errs = append(b.errs, fmt.Sprintf("duplicate state %q", id))
	default:
		b.def.states[id] = s
		b.def.order = append(b.def.order, id)
	}
	if timeout < 0 {
		b.errs = append(b.errs, fmt.Sprintf("state %q: negative timeout", id))
	}
	return &StateBuilder{b: b, state: s}
}

// TrivialPhase declares the single untimed state of an encounter whose timing is
// not modeled.
func (b *Builder) TrivialPhase() *Builder {
	b.State(TrivialState, 0)
	return b
}

// Next sets the state entered when the timeout elapses.
func (sb *StateBuilder) Next(id string) *StateBuilder {
	sb.state.Next = id
	return sb
}

// When appends a conditional transition. Transitions are tried in declaration order.
func (sb *StateBuilder) When(name string, cond Condition, to string) *StateBuilder {
	if cond == nil {
		sb.b.errs = append(sb.b.errs, fmt.Sprintf("state %q: transition %q has no condition", sb.state.ID, name))
	}
	sb.state.Transitions = append(sb.state.Transitions, Transition{Name: name, To: to, When: cond})
	return sb
}

// Terminal marks the state as an end of the encounter.
func (sb *StateBuilder) Terminal() *StateBuilder {
	sb.state.Terminal = true
	return sb
}

// Comment attaches a free-form note.
func (sb *StateBuilder) Comment(text string) *StateBuilder {
	sb.state.Comment = text
	return sb
}

// Build validates and returns the definition. A builder with no states yields a
// trivial definition.
//
// Postcondition: every Next, transition target and Initial names a declared state
// or Ended; terminal states have no way out; a Next has a timeout.
func (b *Builder) Build() (*Definition, error) {
	if len(b.def.order) == 0 && len(b.errs) == 0 {
		b.TrivialPhase()
	}
	d := b.def
	errs := append([]string(nil), b.errs...)
	if d.Module == "" {
		errs = append(errs, "module must not be empty")
	}
	if d.Initial == "" && len(d.order) > 0 {
		d.Initial = d.order[0]
	}
	if _, ok := d.states[d.Initial]; !ok && d.Initial != "" {
		errs = append(errs, fmt.Sprintf("initial state %q is not declared", d.Initial))
	}
	for _, id := range d.order {
		s := d.states[id]
		if s.Terminal && (s.Next != "" || len(s.Transitions) > 0) {
			errs = append(errs, fmt.Sprintf("state %q: terminal state has transitions", id))
		}
		if s.Next != "" {
			if s.Timeout == 0 {
				errs = append(errs, fmt.Sprintf("state %q: next %q without timeout", id, s.Next))
			}
			if _, ok := d.State(s.Next); !ok {
				errs = append(errs, fmt.Sprintf("state %q: next %q is not declared", id, s.Next))
			}
		}
		for _, t := range s.Transitions {
			if _, ok := d.State(t.To); !ok {
				errs = append(errs, fmt.Sprintf("state %q: transition %q targets undeclared state %q", id, t.Name, t.To))
			}
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("encounter.Build %q: %w", d.Module, errors.New(strings.Join(errs, "; ")))
	}
	return d, nil
}

// MustBuild is Build for encounter modules defined in code.
func (b *Builder) MustBuild() *Definition {
	d, err := b.Build()
	if err != nil {
		panic(err.Error())
	}
	return d
}
