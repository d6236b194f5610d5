package persist

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cory-johannsen/raidplan/internal/game/strategy"
)

// ErrUnknownType is returned when a persisted type tag has no registered constructor.
var ErrUnknownType = errors.New("unknown type tag")

// TypeRegistry maps stable string tags to constructors. It is populated at startup
// and read-only afterwards.
type TypeRegistry[T any] struct {
	ctors map[string]func() T
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry[T any]() *TypeRegistry[T] {
	return &TypeRegistry[T]{ctors: make(map[string]func() T)}
}

// Register binds tag to ctor.
//
// Postcondition: returns error on empty or duplicate tag.
func (r *TypeRegistry[T]) Register(tag string, ctor func() T) error {
	if tag == "" {
		return errors.New("persist.TypeRegistry: tag must not be empty")
	}
	if _, dup := r.ctors[tag]; dup {
		return fmt.Errorf("persist.TypeRegistry: tag %q already registered", tag)
	}
	r.ctors[tag] = ctor
	return nil
}

// Resolve constructs the value registered under tag.
func (r *TypeRegistry[T]) Resolve(tag string) (T, error) {
	ctor, ok := r.ctors[tag]
	if !ok {
		var zero T
		if s := Suggest(tag, r.Tags()); s != "" {
			return zero, fmt.Errorf("%w %q (did you mean %q?)", ErrUnknownType, tag, s)
		}
		return zero, fmt.Errorf("%w %q", ErrUnknownType, tag)
	}
	return ctor(), nil
}

// Tags returns all registered tags, sorted.
func (r *TypeRegistry[T]) Tags() []string {
	out := make([]string, 0, len(r.ctors))
	for t := range r.ctors {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// CatalogRegistry registers each catalog under its module tag.
//
// Postcondition: returns error when two catalogs share a module tag.
func CatalogRegistry(catalogs ...*strategy.Catalog) (*TypeRegistry[*strategy.Catalog], error) {
	r := NewTypeRegistry[*strategy.Catalog]()
	for _, c := range catalogs {
		if err := r.Register(c.Module(), func() *strategy.Catalog { return c }); err != nil {
			return nil, err
		}
	}
	return r, nil
}
