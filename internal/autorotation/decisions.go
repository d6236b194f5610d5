package autorotation

import "github.com/cory-johannsen/raidplan/internal/game/strategy"

// DefaultDecisions returns one decision per model of catalog, in definition order,
// each with priority def and the resolver's automatic rule.
func DefaultDecisions(catalog *strategy.Catalog, def float64) []Decision {
	models := catalog.Models()
	out := make([]Decision, len(models))
	for i, m := range models {
		out[i] = Decision{Model: m.InternalName(), DefaultPriority: def}
	}
	return out
}
