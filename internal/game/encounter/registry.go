package encounter

import (
	"fmt"
	"sort"
)

// Registry maps encounter subjects' object types to their definitions. It is
// populated at startup and read-only afterwards.
type Registry struct {
	byOID    map[uint32]*Definition
	byModule map[string]*Definition
	tables   map[string]*Tables
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byOID:    make(map[uint32]*Definition),
		byModule: make(map[string]*Definition),
		tables:   make(map[string]*Tables),
	}
}

// Register adds def. tables may be nil for definitions built in code.
//
// Postcondition: returns error when the OID or module tag is already registered.
func (r *Registry) Register(def *Definition, tables *Tables) error {
	if prev, dup := r.byOID[def.OID]; dup {
		return fmt.Errorf("encounter.Registry: oid 0x%X already registered by %q", def.OID, prev.Module)
	}
	if _, dup := r.byModule[def.Module]; dup {
		return fmt.Errorf("encounter.Registry: module %q already registered", def.Module)
	}
	r.byOID[def.OID] = def
	r.byModule[def.Module] = def
	if tables != nil {
		r.tables[def.Module] = tables
	}
	return nil
}

// ForOID returns the definition whose subject has object type oid.
func (r *Registry) ForOID(oid uint32) (*Definition, bool) {
	d, ok := r.byOID[oid]
	return d, ok
}

// Module returns the definition registered under module.
func (r *Registry) Module(module string) (*Definition, bool) {
	d, ok := r.byModule[module]
	return d, ok
}

// Tables returns the identifier tables loaded with module, or nil.
func (r *Registry) Tables(module string) *Tables {
	return r.tables[module]
}

// OIDs returns every registered subject object type, ascending.
func (r *Registry) OIDs() []uint32 {
	out := make([]uint32, 0, len(r.byOID))
	for oid := range r.byOID {
		out = append(out, oid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of registered definitions.
func (r *Registry) Len() int { return len(r.byOID) }
