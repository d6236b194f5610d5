package strategy

import (
	"errors"
	"fmt"
	"math"
)

// MaxLevelUnbounded is the MaxLevel assigned to options that declare no upper bound.
const MaxLevelUnbounded = math.MaxInt32

// Option describes one selectable choice of a Model. Options carry no behavior.
type Option struct {
	// Color is a presentation hint only.
	Color            uint32
	SupportedTargets Targets
	// InternalName is persisted; it must never change once users have saved data.
	InternalName string
	DisplayName  string
	// Cooldown is shaded after a planner window ends; seconds, 0 = n/a.
	Cooldown float64
	// Effect is shaded after a planner window starts; seconds, 0 = n/a.
	Effect   float64
	MinLevel int
	MaxLevel int
}

// UIName returns DisplayName when set, else InternalName.
func (o Option) UIName() string {
	if o.DisplayName != "" {
		return o.DisplayName
	}
	return o.InternalName
}

// AvailableAt reports whether level is inside [MinLevel, MaxLevel].
func (o Option) AvailableAt(level int) bool {
	return level >= o.MinLevel && level <= o.MaxLevel
}

// AllowsTarget reports whether mode may be offered for this option.
// Automatic is always allowed.
func (o Option) AllowsTarget(mode Target) bool {
	return o.SupportedTargets.Has(requiredTargets(mode))
}

// AllowedTargets returns the modes AllowsTarget accepts, in declaration order.
func (o Option) AllowedTargets() []Target {
	var out []Target
	for _, t := range AllTargets() {
		if o.AllowsTarget(t) {
			out = append(out, t)
		}
	}
	return out
}

// normalized fills level defaults and checks the option's own invariants.
func (o Option) normalized() (Option, error) {
	if o.InternalName == "" {
		return o, errors.New("option internal name must not be empty")
	}
	if o.MinLevel == 0 {
		o.MinLevel = 1
	}
	if o.MaxLevel == 0 {
		o.MaxLevel = MaxLevelUnbounded
	}
	if o.MinLevel > o.MaxLevel {
		return o, fmt.Errorf("option %q: min level %d exceeds max level %d", o.InternalName, o.MinLevel, o.MaxLevel)
	}
	if o.Cooldown < 0 || o.Effect < 0 {
		return o, fmt.Errorf("option %q: cooldown and effect hints must not be negative", o.InternalName)
	}
	return o, nil
}
