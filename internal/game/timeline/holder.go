package timeline

import (
	"time"

	"github.com/cory-johannsen/raidplan/internal/game/strategy"
)

// Source identifies where an effective value came from.
type Source int

const (
	SourceManual Source = iota
	SourceTimeline
)

// String returns "manual" or "timeline".
func (s Source) String() string {
	if s == SourceTimeline {
		return "timeline"
	}
	return "manual"
}

// Holder owns the strategy values of one encounter instance: the active plan's
// tracks and one manual override per model. It is not safe for concurrent use and
// must not be shared across encounter instances.
type Holder struct {
	catalog *strategy.Catalog
	plan    *Plan
	manual  map[string]*strategy.Value
}

// NewHolder returns a Holder for catalog with no active plan.
//
// Precondition: catalog must not be nil.
func NewHolder(catalog *strategy.Catalog) *Holder {
	if catalog == nil {
		panic("timeline.NewHolder: catalog must not be nil")
	}
	return &Holder{catalog: catalog, manual: make(map[string]*strategy.Value)}
}

// Catalog returns the catalog the holder resolves names against.
func (h *Holder) Catalog() *strategy.Catalog { return h.catalog }

// SetPlan activates p; nil clears the plan so only manual overrides apply.
func (h *Holder) SetPlan(p *Plan) { h.plan = p }

// Plan returns the active plan, or nil.
func (h *Holder) Plan() *Plan { return h.plan }

// Manual returns the manual override of model, creating the default value on first use.
// The returned pointer stays valid for the holder's lifetime.
func (h *Holder) Manual(model string) *strategy.Value {
	v, ok := h.manual[model]
	if !ok {
		v = &strategy.Value{}
		h.manual[model] = v
	}
	return v
}

// AddOverride selects the model's default override option (index 1 when present).
//
// Postcondition: returns false if model is not in the catalog.
func (h *Holder) AddOverride(model string) (*strategy.Value, bool) {
	m, ok := h.catalog.Model(model)
	if !ok {
		return nil, false
	}
	v := h.Manual(model)
	*v = strategy.Value{Option: m.DefaultOverride()}
	return v, true
}

// ClearOverride resets the model's manual override to automatic.
func (h *Holder) ClearOverride(model string) {
	if v, ok := h.manual[model]; ok {
		*v = strategy.Value{}
	}
}

// Effective returns the value in force for model at now: the plan window containing
// now if any, else the manual override.
func (h *Holder) Effective(model string, now time.Duration) (strategy.Value, Source) {
	if h.plan != nil {
		if t, ok := h.plan.Lookup(model); ok {
			if v, ok := t.At(now); ok {
				return v, SourceTimeline
			}
		}
	}
	if v, ok := h.manual[model]; ok {
		return *v, SourceManual
	}
	return strategy.Value{}, SourceManual
}
