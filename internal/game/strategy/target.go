package strategy

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Target is a target-selection mode. TargetParam on a Value carries the mode-specific argument.
type Target int

const (
	TargetAutomatic                Target = iota // caller-supplied default, usually the current primary hostile
	TargetSelf                                   // the acting player
	TargetPartyByAssignment                      // param is the assignment slot
	TargetPartyWithLowestHP                      // param 1 allows self, 0 excludes it
	TargetEnemyWithHighestPriority               // nearest wins ties
	TargetEnemyByOID                             // param is the object type id; nearest wins ties

	targetCount
)

var targetNames = [targetCount]string{
	"Automatic",
	"Self",
	"PartyByAssignment",
	"PartyWithLowestHP",
	"EnemyWithHighestPriority",
	"EnemyByOID",
}

// String returns the stable persisted name of the mode.
func (t Target) String() string {
	if t >= 0 && t < targetCount {
		return targetNames[t]
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// Valid reports whether t is a declared mode.
func (t Target) Valid() bool {
	return t >= 0 && t < targetCount
}

// AllTargets returns every declared mode in declaration order.
func AllTargets() []Target {
	out := make([]Target, 0, targetCount)
	for t := Target(0); t < targetCount; t++ {
		out = append(out, t)
	}
	return out
}

// TargetNames returns the persisted names of every mode.
func TargetNames() []string {
	return targetNames[:]
}

// ParseTarget maps a persisted name to its mode.
func ParseTarget(name string) (Target, error) {
	for i, n := range targetNames {
		if n == name {
			return Target(i), nil
		}
	}
	return TargetAutomatic, fmt.Errorf("strategy.ParseTarget: unknown target %q", name)
}

// Targets is the set of action target kinds an option supports.
type Targets uint32

const (
	TargetsSelf Targets = 1 << iota
	TargetsParty
	TargetsAlliance
	TargetsHostile
	TargetsFriendly
	TargetsArea

	TargetsNone Targets = 0
)

var targetsNames = []struct {
	flag Targets
	name string
}{
	{TargetsSelf, "self"},
	{TargetsParty, "party"},
	{TargetsAlliance, "alliance"},
	{TargetsHostile, "hostile"},
	{TargetsFriendly, "friendly"},
	{TargetsArea, "area"},
}

// Has reports whether every flag in f is present in t.
func (t Targets) Has(f Targets) bool {
	return t&f == f
}

// String returns the flags joined with '|'.
func (t Targets) String() string {
	if t == TargetsNone {
		return "none"
	}
	var parts []string
	for _, n := range targetsNames {
		if t.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseTargets maps flag names to a Targets set.
func ParseTargets(names []string) (Targets, error) {
	var out Targets
	for _, name := range names {
		found := false
		for _, n := range targetsNames {
			if strings.EqualFold(n.name, name) {
				out |= n.flag
				found = true
				break
			}
		}
		if !found {
			return TargetsNone, fmt.Errorf("strategy.ParseTargets: unknown target kind %q", name)
		}
	}
	return out, nil
}

// UnmarshalYAML decodes a list of flag names.
func (t *Targets) UnmarshalYAML(node *yaml.Node) error {
	var names []string
	if err := node.Decode(&names); err != nil {
		return err
	}
	parsed, err := ParseTargets(names)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// requiredTargets returns the flag an option must support for mode to be offered.
func requiredTargets(mode Target) Targets {
	switch mode {
	case TargetSelf:
		return TargetsSelf
	case TargetPartyByAssignment, TargetPartyWithLowestHP:
		return TargetsParty
	case TargetEnemyWithHighestPriority, TargetEnemyByOID:
		return TargetsHostile
	default:
		return TargetsNone
	}
}
