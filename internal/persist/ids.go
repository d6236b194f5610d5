// Package persist implements the persisted-configuration contract: tagged game
// identifiers, explicit per-type field schemas, a tag-to-constructor type registry
// and the plan document format.
//
// Decoding is forgiving at field granularity: a bad field is reported as a
// FieldError and left at its default while the rest of the document still loads.
package persist

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrUnknownName is returned when a symbolic name is not in the enum table.
var ErrUnknownName = errors.New("unknown symbolic name")

// ErrMalformedHex is returned when a 0x literal cannot be parsed.
var ErrMalformedHex = errors.New("malformed hex literal")

// EnumTable maps symbolic names of game identifiers (ability, status, object ids)
// to their raw values.
//
// Invariant: names and values are both unique.
type EnumTable struct {
	name    string
	byName  map[string]uint32
	byValue map[uint32]string
	names   []string
}

// NewEnumTable builds a table from name/value pairs.
//
// Postcondition: returns error on empty names or duplicate values.
func NewEnumTable(name string, entries map[string]uint32) (*EnumTable, error) {
	t := &EnumTable{
		name:    name,
		byName:  make(map[string]uint32, len(entries)),
		byValue: make(map[uint32]string, len(entries)),
	}
	for n := range entries {
		t.names = append(t.names, n)
	}
	sort.Strings(t.names)
	for _, n := range t.names {
		v := entries[n]
		if n == "" {
			return nil, fmt.Errorf("persist.NewEnumTable %q: empty name for value 0x%X", name, v)
		}
		if prev, dup := t.byValue[v]; dup {
			return nil, fmt.Errorf("persist.NewEnumTable %q: value 0x%X named both %q and %q", name, v, prev, n)
		}
		t.byName[n] = v
		t.byValue[v] = n
	}
	return t, nil
}

// MustEnumTable is NewEnumTable for static data, where an error is a programming defect.
func MustEnumTable(name string, entries map[string]uint32) *EnumTable {
	t, err := NewEnumTable(name, entries)
	if err != nil {
		panic(err.Error())
	}
	return t
}

// TableName returns the enum's name, e.g. "AID".
func (t *EnumTable) TableName() string { return t.name }

// Value returns the raw value of name.
func (t *EnumTable) Value(name string) (uint32, bool) {
	if t == nil {
		return 0, false
	}
	v, ok := t.byName[name]
	return v, ok
}

// Name returns the symbolic name of v.
func (t *EnumTable) Name(v uint32) (string, bool) {
	if t == nil {
		return "", false
	}
	n, ok := t.byValue[v]
	return n, ok
}

// Names returns all symbolic names, sorted.
func (t *EnumTable) Names() []string {
	if t == nil {
		return nil
	}
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// IDForm tags which representation an Identifier carries.
type IDForm int

const (
	FormRaw IDForm = iota
	FormSymbolic
)

// Identifier is a game identifier held either symbolically or as a raw value.
type Identifier struct {
	Form  IDForm
	Name  string // set when Form == FormSymbolic
	Value uint32
}

// RawID returns a raw Identifier.
func RawID(v uint32) Identifier {
	return Identifier{Form: FormRaw, Value: v}
}

// SymbolicID returns a symbolic Identifier.
func SymbolicID(name string, v uint32) Identifier {
	return Identifier{Form: FormSymbolic, Name: name, Value: v}
}

// Normalize returns the symbolic form when t names the value, else the raw form.
func (id Identifier) Normalize(t *EnumTable) Identifier {
	if n, ok := t.Name(id.Value); ok {
		return SymbolicID(n, id.Value)
	}
	return RawID(id.Value)
}

// ParseIdentifier decodes a symbolic name or a 0x-prefixed hex literal, normalized
// against t.
//
// Postcondition: returns ErrUnknownName or ErrMalformedHex (wrapped) on failure.
func ParseIdentifier(text string, t *EnumTable) (Identifier, error) {
	if strings.HasPrefix(text, "0x") || strings.HasPrefix(text, "0X") {
		v, err := strconv.ParseUint(text[2:], 16, 32)
		if err != nil {
			return Identifier{}, fmt.Errorf("%w %q", ErrMalformedHex, text)
		}
		return RawID(uint32(v)).Normalize(t), nil
	}
	if v, ok := t.Value(text); ok {
		return SymbolicID(text, v), nil
	}
	err := fmt.Errorf("%w %q", ErrUnknownName, text)
	if t != nil {
		if s := Suggest(text, t.names); s != "" {
			err = fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownName, text, s)
		}
	}
	return Identifier{}, err
}

// FormatIdentifier encodes id, preferring the symbolic name whenever t knows the value.
func FormatIdentifier(id Identifier, t *EnumTable) string {
	if n, ok := t.Name(id.Value); ok {
		return n
	}
	return fmt.Sprintf("0x%X", id.Value)
}

// String renders the identifier in its own form.
func (id Identifier) String() string {
	if id.Form == FormSymbolic {
		return id.Name
	}
	return fmt.Sprintf("0x%X", id.Value)
}

// MergeEnumTables combines tables into one named name. A name or value that two
// tables define differently is an error; identical entries are merged.
func MergeEnumTables(name string, tables ...*EnumTable) (*EnumTable, error) {
	entries := make(map[string]uint32)
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, n := range t.names {
			v := t.byName[n]
			if prev, ok := entries[n]; ok && prev != v {
				return nil, fmt.Errorf("persist.MergeEnumTables %q: %q is 0x%X in one table and 0x%X in %q", name, n, prev, v, t.name)
			}
			entries[n] = v
		}
	}
	return NewEnumTable(name, entries)
}
