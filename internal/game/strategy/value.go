package strategy

import "fmt"

// Priority is an optional priority override.
type Priority struct {
	value float64
	set   bool
}

// PriorityOf returns a set Priority holding v.
func PriorityOf(v float64) Priority {
	return Priority{value: v, set: true}
}

// Get returns the override and whether it is set.
func (p Priority) Get() (float64, bool) {
	return p.value, p.set
}

// IsSet reports whether an override is present.
func (p Priority) IsSet() bool { return p.set }

// Or returns the override when set, else def.
func (p Priority) Or(def float64) float64 {
	if p.set {
		return p.value
	}
	return def
}

// String renders the override or "unset".
func (p Priority) String() string {
	if !p.set {
		return "unset"
	}
	return fmt.Sprintf("%g", p.value)
}

// Value is the selected option of a Model at a point in time.
//
// The zero Value selects option 0 with automatic targeting and no priority override.
type Value struct {
	Option           int
	PriorityOverride Priority
	Target           Target
	TargetParam      int
	Comment          string
}

// Priority returns the override when set, else def.
func (v Value) Priority(def float64) float64 {
	return v.PriorityOverride.Or(def)
}

// Validate checks v against the model that owns it.
//
// Postcondition: nil means Option indexes into m and Target is allowed by that option.
func (v Value) Validate(m *Model) error {
	opt, ok := m.Option(v.Option)
	if !ok {
		return fmt.Errorf("strategy.Value: option %d out of range for %q (%d options)", v.Option, m.InternalName(), m.NumOptions())
	}
	if !v.Target.Valid() {
		return fmt.Errorf("strategy.Value: invalid target %d", int(v.Target))
	}
	if !opt.AllowsTarget(v.Target) {
		return fmt.Errorf("strategy.Value: target %s not supported by option %q of %q", v.Target, opt.InternalName, m.InternalName())
	}
	return nil
}

// OptionName returns the internal name of the selected option, or "" if out of range.
func (v Value) OptionName(m *Model) string {
	if o, ok := m.Option(v.Option); ok {
		return o.InternalName
	}
	return ""
}
