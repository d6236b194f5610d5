// Package autorotation turns strategy values, encounter phase and world state into
// a ranked list of targeted recommendations once per tick.
package autorotation

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raidplan/internal/game/encounter"
	"github.com/cory-johannsen/raidplan/internal/game/strategy"
	"github.com/cory-johannsen/raidplan/internal/game/target"
	"github.com/cory-johannsen/raidplan/internal/game/timeline"
	"github.com/cory-johannsen/raidplan/internal/game/world"
)

// Decision is one configured decision point of a rotation module.
type Decision struct {
	// Model is the internal name of the strategy model in the module's catalog.
	Model string
	// DefaultPriority is used when the effective value sets no override.
	DefaultPriority float64
	// PhasePriority replaces DefaultPriority while the encounter is in a named phase.
	PhasePriority map[string]float64
	// Automatic picks the target for TargetAutomatic; nil uses the resolver's rule.
	Automatic target.Rule
}

func (d Decision) defaultPriority(phase string) float64 {
	if p, ok := d.PhasePriority[phase]; ok {
		return p
	}
	return d.DefaultPriority
}

// Recommendation is the effective value, resolved target and resolved priority of
// one decision point for one tick.
type Recommendation struct {
	Model    string
	Option   strategy.Option
	Value    strategy.Value
	Source   timeline.Source
	Target   *world.Actor
	Priority float64
}

// Evaluator computes recommendations for one encounter instance. It is not safe
// for concurrent use.
type Evaluator struct {
	id        uuid.UUID
	holder    *timeline.Holder
	machine   *encounter.Machine
	resolver  *target.Resolver
	decisions []Decision
	level     int
	budget    time.Duration
	logger    *zap.Logger
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithMachine attaches the encounter machine advanced at the start of every tick.
// Timeline windows are then measured from the encounter start.
func WithMachine(m *encounter.Machine) EvaluatorOption {
	return func(e *Evaluator) { e.machine = m }
}

// WithLevel sets the player level used when self carries none.
func WithLevel(level int) EvaluatorOption {
	return func(e *Evaluator) { e.level = level }
}

// WithBudget sets the evaluation time above which a tick is logged as slow; 0 disables.
func WithBudget(d time.Duration) EvaluatorOption {
	return func(e *Evaluator) { e.budget = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewEvaluator returns an Evaluator over holder's catalog.
//
// Precondition: holder and resolver must not be nil.
// Postcondition: returns error when a decision names a model missing from the catalog.
func NewEvaluator(holder *timeline.Holder, resolver *target.Resolver, decisions []Decision, opts ...EvaluatorOption) (*Evaluator, error) {
	if holder == nil || resolver == nil {
		panic("autorotation.NewEvaluator: holder and resolver must not be nil")
	}
	for _, d := range decisions {
		if _, ok := holder.Catalog().Model(d.Model); !ok {
			return nil, fmt.Errorf("autorotation.NewEvaluator: module %q has no model %q", holder.Catalog().Module(), d.Model)
		}
	}
	e := &Evaluator{
		id:        uuid.New(),
		holder:    holder,
		resolver:  resolver,
		decisions: append([]Decision(nil), decisions...),
		level:     1,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	e.logger = e.logger.With(zap.String("instance", e.id.String()))
	return e, nil
}

// ID returns the evaluator's instance id.
func (e *Evaluator) ID() uuid.UUID { return e.id }

// Holder returns the strategy values owned by this instance.
func (e *Evaluator) Holder() *timeline.Holder { return e.holder }

// Machine returns the attached encounter machine, or nil.
func (e *Evaluator) Machine() *encounter.Machine { return e.machine }

// Tick advances the encounter machine, then evaluates every decision against snap.
// Decisions whose target does not resolve are skipped for this tick. The result is
// ordered by priority, highest first; equal priorities keep declaration order. An
// ended encounter yields nothing.
//
// Precondition: self must not be nil.
func (e *Evaluator) Tick(snap world.Snapshot, self *world.Actor) []Recommendation {
	started := time.Now()
	now := snap.Now()
	phase := ""
	if e.machine != nil {
		e.machine.Advance(snap)
		if e.machine.Ended() {
			return nil
		}
		phase = e.machine.Phase()
		now = e.machine.Elapsed(now)
	}
	level := self.Level
	if level <= 0 {
		level = e.level
	}

	catalog := e.holder.Catalog()
	out := make([]Recommendation, 0, len(e.decisions))
	for _, d := range e.decisions {
		m, _ := catalog.Model(d.Model)
		v, src := e.holder.Effective(d.Model, now)
		opt, ok := m.Option(v.Option)
		if !ok || !opt.AvailableAt(level) {
			e.logger.Debug("option unavailable, using automatic",
				zap.String("model", d.Model),
				zap.Int("option", v.Option),
				zap.Int("level", level),
			)
			v = strategy.Value{PriorityOverride: v.PriorityOverride, Comment: v.Comment}
			opt, _ = m.Option(0)
		}
		tgt, ok := e.resolver.ResolveWith(v.Target, v.TargetParam, snap, self, d.Automatic)
		if !ok {
			e.logger.Debug("no target",
				zap.String("model", d.Model),
				zap.Stringer("mode", v.Target),
				zap.Int("param", v.TargetParam),
			)
			continue
		}
		out = append(out, Recommendation{
			Model:    d.Model,
			Option:   opt,
			Value:    v,
			Source:   src,
			Target:   tgt,
			Priority: v.Priority(d.defaultPriority(phase)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })

	if elapsed := time.Since(started); e.budget > 0 && elapsed > e.budget {
		e.logger.Warn("slow tick", zap.Duration("elapsed", elapsed), zap.Duration("budget", e.budget))
	}
	return out
}
