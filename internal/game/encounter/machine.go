package encounter

import (
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/raidplan/internal/game/world"
)

// Machine walks one Definition for one live encounter. It is not safe for
// concurrent use; the owning encounter instance advances it once per tick.
type Machine struct {
	def     *Definition
	subject world.ActorID
	scripts Scripts
	logger  *zap.Logger

	current *State
	started time.Duration
	entered time.Duration
	history []Step
}

// Option configures a Machine.
type Option func(*Machine)

// WithScripts sets the host for Script conditions.
func WithScripts(s Scripts) Option {
	return func(m *Machine) { m.scripts = s }
}

// WithLogger sets the logger for transitions.
func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMachine starts def in its initial state at start. subject is the actor whose
// presence keeps the encounter alive.
//
// Precondition: def comes from Builder.Build.
func NewMachine(def *Definition, subject world.ActorID, start time.Duration, opts ...Option) *Machine {
	m := &Machine{def: def, subject: subject, logger: zap.NewNop(), started: start, entered: start}
	for _, o := range opts {
		o(m)
	}
	m.current, _ = def.State(def.Initial)
	return m
}

// Definition returns the graph the machine walks.
func (m *Machine) Definition() *Definition { return m.def }

// Subject returns the encounter subject's actor id.
func (m *Machine) Subject() world.ActorID { return m.subject }

// Current returns the current state.
func (m *Machine) Current() *State { return m.current }

// Phase returns the phase name of the current state.
func (m *Machine) Phase() string { return m.current.PhaseName() }

// Ended reports whether the current state is terminal.
func (m *Machine) Ended() bool { return m.current.Terminal }

// Elapsed returns the time since the encounter started.
func (m *Machine) Elapsed(now time.Duration) time.Duration {
	return nonNegative(now - m.started)
}

// TimeInState returns the time since the current state was entered.
func (m *Machine) TimeInState(now time.Duration) time.Duration {
	return nonNegative(now - m.entered)
}

// TimeToTransition returns the time left until the current state's timeout. It is
// false for open-ended and terminal states. For a state with a timeout but no Next
// the value is an estimate; nothing fires when it reaches zero.
func (m *Machine) TimeToTransition(now time.Duration) (time.Duration, bool) {
	if m.current.Terminal || m.current.Timeout <= 0 {
		return 0, false
	}
	return nonNegative(m.entered + m.current.Timeout - now), true
}

// History returns the transitions taken so far, oldest first.
func (m *Machine) History() []Step {
	out := make([]Step, len(m.history))
	copy(out, m.history)
	return out
}

// Advance moves the machine as far as snap allows and reports whether the state
// changed.
//
// A missing or dead subject ends the encounter before anything else is checked.
// Otherwise conditional transitions are tried in declaration order and the first
// that holds is taken at snap.Now(); failing that, an elapsed timeout enters Next
// at the instant it was due. Transitions chain within one call, bounded by the
// number of states so a cycle of instant transitions cannot spin.
func (m *Machine) Advance(snap world.Snapshot) bool {
	if m.current.Terminal {
		return false
	}
	now := snap.Now()
	subject, ok := snap.Actor(m.subject)
	if !ok || subject.Dead {
		m.enter(endedState, now, "subject gone")
		return true
	}

	changed := false
	for step := 0; step <= m.def.NumStates() && !m.current.Terminal; step++ {
		ctx := Context{
			Snap:        snap,
			Subject:     subject,
			Encounter:   m.def.Module,
			State:       m.current,
			TimeInState: m.TimeInState(now),
			Elapsed:     m.Elapsed(now),
			Scripts:     m.scripts,
		}
		if t, ok := m.firstTransition(ctx); ok {
			to, _ := m.def.State(t.To)
			m.enter(to, now, t.Name)
			changed = true
			continue
		}
		if m.current.Timed() && now-m.entered >= m.current.Timeout {
			to, _ := m.def.State(m.current.Next)
			m.enter(to, m.entered+m.current.Timeout, "timeout")
			changed = true
			continue
		}
		break
	}
	return changed
}

func (m *Machine) firstTransition(ctx Context) (Transition, bool) {
	for _, t := range m.current.Transitions {
		if t.When(ctx) {
			return t, true
		}
	}
	return Transition{}, false
}

func (m *Machine) enter(to *State, at time.Duration, cause string) {
	from := m.current
	m.history = append(m.history, Step{From: from.ID, To: to.ID, At: at, Cause: cause})
	m.current = to
	m.entered = at
	m.logger.Info("encounter transition",
		zap.String("encounter", m.def.Module),
		zap.String("from", from.ID),
		zap.String("to", to.ID),
		zap.String("phase", to.PhaseName()),
		zap.Duration("at", at),
		zap.String("cause", cause),
	)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
