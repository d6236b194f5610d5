// Package strategy models the tunable decision points of a rotation module.
//
// A Model declares the options of one decision point and is immutable once its
// defining module has finished loading. A Value selects among those options for a
// point in time, either from a planner timeline or from the manual override.
package strategy

import (
	"fmt"
	"sort"
)

// Model is the immutable declaration of one decision point.
//
// Invariant: option 0 is the automatic behavior; option 1, when present, is the
// override selected by default when a user adds a manual override.
// Invariant: options are append-only and index-addressed.
type Model struct {
	internalName string
	displayName  string
	uiPriority   float64
	options      []Option
}

// NewModel creates a Model with no options.
//
// Precondition: internalName must be non-empty.
func NewModel(internalName, displayName string, uiPriority float64) *Model {
	if internalName == "" {
		panic("strategy.NewModel: internal name must not be empty")
	}
	return &Model{internalName: internalName, displayName: displayName, uiPriority: uiPriority}
}

// InternalName returns the stable identity key used for persistence.
func (m *Model) InternalName() string { return m.internalName }

// DisplayName returns the optional UI alias.
func (m *Model) DisplayName() string { return m.displayName }

// UIPriority returns the UI sort key.
func (m *Model) UIPriority() float64 { return m.uiPriority }

// UIName returns the display name when set, else the internal name.
func (m *Model) UIName() string {
	if m.displayName != "" {
		return m.displayName
	}
	return m.internalName
}

// Hidden reports whether the model is hidden by default (negative UI priority).
func (m *Model) Hidden() bool { return m.uiPriority < 0 }

// AddOption appends o, asserting that it lands at index expected.
// A mismatch is a defect in the defining module and panics.
//
// Precondition: expected == NumOptions().
// Postcondition: Option(expected) returns o with level defaults applied.
func (m *Model) AddOption(expected int, o Option) Option {
	if err := m.TryAddOption(expected, o); err != nil {
		panic(err.Error())
	}
	return m.options[expected]
}

// TryAddOption is AddOption for loaders that report definition errors instead of panicking.
func (m *Model) TryAddOption(expected int, o Option) error {
	if expected != len(m.options) {
		return fmt.Errorf("strategy.Model %q: unexpected index for option %q: expected %d, got %d",
			m.internalName, o.InternalName, expected, len(m.options))
	}
	norm, err := o.normalized()
	if err != nil {
		return fmt.Errorf("strategy.Model %q: %w", m.internalName, err)
	}
	if _, dup := m.OptionIndex(norm.InternalName); dup {
		return fmt.Errorf("strategy.Model %q: duplicate option %q", m.internalName, norm.InternalName)
	}
	m.options = append(m.options, norm)
	return nil
}

// NumOptions returns the number of declared options.
func (m *Model) NumOptions() int { return len(m.options) }

// Option returns the option at index i.
func (m *Model) Option(i int) (Option, bool) {
	if i < 0 || i >= len(m.options) {
		return Option{}, false
	}
	return m.options[i], true
}

// Options returns a copy of all options in index order.
func (m *Model) Options() []Option {
	out := make([]Option, len(m.options))
	copy(out, m.options)
	return out
}

// OptionIndex returns the index of the option with the given internal name.
func (m *Model) OptionIndex(name string) (int, bool) {
	for i, o := range m.options {
		if o.InternalName == name {
			return i, true
		}
	}
	return 0, false
}

// OptionNames returns the internal names of all options in index order.
func (m *Model) OptionNames() []string {
	out := make([]string, len(m.options))
	for i, o := range m.options {
		out[i] = o.InternalName
	}
	return out
}

// Available returns the indices of options usable at level. Gated options stay in
// the list; only this view filters them.
func (m *Model) Available(level int) []int {
	var out []int
	for i, o := range m.options {
		if o.AvailableAt(level) {
			out = append(out, i)
		}
	}
	return out
}

// DefaultOverride returns the option index selected when a manual override is added.
func (m *Model) DefaultOverride() int {
	if len(m.options) > 1 {
		return 1
	}
	return 0
}

// SortByUIPriority orders models by descending UI priority, then internal name.
func SortByUIPriority(models []*Model) {
	sort.SliceStable(models, func(i, j int) bool {
		if models[i].uiPriority != models[j].uiPriority {
			return models[i].uiPriority > models[j].uiPriority
		}
		return models[i].internalName < models[j].internalName
	})
}
