package timeline

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/cory-johannsen/raidplan/internal/game/strategy"
)

// Plan is a pre-authored set of tracks for one rotation module and one encounter.
type Plan struct {
	ID        uuid.UUID
	Name      string
	Encounter string // encounter module tag
	Module    string // rotation module tag; keys the catalog
	tracks    map[string]*Track
}

// NewPlan returns an empty Plan with a fresh id.
func NewPlan(name, encounter, module string) *Plan {
	return &Plan{ID: uuid.New(), Name: name, Encounter: encounter, Module: module, tracks: make(map[string]*Track)}
}

// Track returns the track for model, creating it if absent.
func (p *Plan) Track(model string) *Track {
	t, ok := p.tracks[model]
	if !ok {
		t = NewTrack(model)
		p.tracks[model] = t
	}
	return t
}

// Lookup returns the track for model without creating it.
func (p *Plan) Lookup(model string) (*Track, bool) {
	t, ok := p.tracks[model]
	return t, ok
}

// Models returns the model names that have tracks, sorted.
func (p *Plan) Models() []string {
	out := make([]string, 0, len(p.tracks))
	for n := range p.tracks {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Validate checks every entry against catalog.
//
// Postcondition: nil means each track names a defined model and every value is valid for it.
func (p *Plan) Validate(catalog *strategy.Catalog) error {
	for _, name := range p.Models() {
		m, ok := catalog.Model(name)
		if !ok {
			return fmt.Errorf("timeline.Plan %q: unknown model %q in module %q", p.Name, name, catalog.Module())
		}
		for _, e := range p.tracks[name].entries {
			if err := e.Value.Validate(m); err != nil {
				return fmt.Errorf("timeline.Plan %q: window at %s: %w", p.Name, e.Start, err)
			}
		}
	}
	return nil
}
