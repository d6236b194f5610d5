package persist

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/cory-johannsen/raidplan/internal/game/strategy"
)

// ValueSchema returns the persisted schema of a strategy.Value owned by m.
//
// The option is written by internal name and re-resolved by name on read, so saved
// values survive options being appended to m. A bare integer option is accepted
// from older data. When the target mode is EnemyByOID the parameter is written as an
// identifier: symbolically when oids names it, else as 0x hex.
func ValueSchema(m *strategy.Model, oids *EnumTable) *Schema[strategy.Value] {
	s := NewSchema[strategy.Value]("strategy.Value/" + m.InternalName())
	s.Field("Option",
		func(v *strategy.Value) (any, bool) {
			if o, ok := m.Option(v.Option); ok {
				return o.InternalName, true
			}
			return v.Option, true
		},
		func(v *strategy.Value, raw json.RawMessage) error {
			var name string
			if err := json.Unmarshal(raw, &name); err == nil {
				idx, ok := m.OptionIndex(name)
				if !ok {
					if hint := Suggest(name, m.OptionNames()); hint != "" {
						return fmt.Errorf("%w %q for %q (did you mean %q?)", ErrUnknownName, name, m.InternalName(), hint)
					}
					return fmt.Errorf("%w %q for %q", ErrUnknownName, name, m.InternalName())
				}
				v.Option = idx
				return nil
			}
			var idx int
			if err := json.Unmarshal(raw, &idx); err != nil {
				return fmt.Errorf("option must be a name or index: %w", err)
			}
			if _, ok := m.Option(idx); !ok {
				return fmt.Errorf("option index %d out of range for %q", idx, m.InternalName())
			}
			v.Option = idx
			return nil
		})
	s.Field("PriorityOverride",
		func(v *strategy.Value) (any, bool) {
			p, ok := v.PriorityOverride.Get()
			return p, ok
		},
		func(v *strategy.Value, raw json.RawMessage) error {
			var text string
			if err := json.Unmarshal(raw, &text); err == nil {
				if text == "NaN" {
					v.PriorityOverride = strategy.Priority{}
					return nil
				}
				return fmt.Errorf("priority override must be a number, got %q", text)
			}
			var p float64
			if err := json.Unmarshal(raw, &p); err != nil {
				return err
			}
			if math.IsNaN(p) {
				v.PriorityOverride = strategy.Priority{}
				return nil
			}
			v.PriorityOverride = strategy.PriorityOf(p)
			return nil
		})
	s.Field("Target",
		func(v *strategy.Value) (any, bool) { return v.Target.String(), true },
		func(v *strategy.Value, raw json.RawMessage) error {
			var name string
			if err := json.Unmarshal(raw, &name); err != nil {
				return err
			}
			t, err := strategy.ParseTarget(name)
			if err != nil {
				if hint := Suggest(name, strategy.TargetNames()); hint != "" {
					return fmt.Errorf("%w (did you mean %q?)", err, hint)
				}
				return err
			}
			v.Target = t
			return nil
		})
	s.Field("TargetParam",
		func(v *strategy.Value) (any, bool) {
			if v.Target == strategy.TargetEnemyByOID && v.TargetParam >= 0 {
				return FormatIdentifier(RawID(uint32(v.TargetParam)), oids), true
			}
			return v.TargetParam, true
		},
		func(v *strategy.Value, raw json.RawMessage) error {
			var n int
			if err := json.Unmarshal(raw, &n); err == nil {
				v.TargetParam = n
				return nil
			}
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return fmt.Errorf("target param must be an integer or identifier: %w", err)
			}
			id, err := ParseIdentifier(text, oids)
			if err != nil {
				return err
			}
			v.TargetParam = int(id.Value)
			return nil
		})
	s.Field("Comment",
		func(v *strategy.Value) (any, bool) { return v.Comment, v.Comment != "" },
		func(v *strategy.Value, raw json.RawMessage) error {
			var c string
			if err := json.Unmarshal(raw, &c); err != nil {
				return err
			}
			v.Comment = c
			return nil
		})
	return s
}

// EncodeValue writes v using m's schema.
func EncodeValue(m *strategy.Model, oids *EnumTable, v strategy.Value) (json.RawMessage, error) {
	return ValueSchema(m, oids).Encode(&v)
}

// DecodeValue reads a value owned by m. Field errors leave the field at its default.
func DecodeValue(m *strategy.Model, oids *EnumTable, data json.RawMessage, path string) (strategy.Value, []*FieldError, error) {
	var v strategy.Value
	errs, err := ValueSchema(m, oids).Decode(data, &v, path)
	return v, errs, err
}
