package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raidplan/internal/game/strategy"
	"github.com/cory-johannsen/raidplan/internal/game/timeline"
)

// Document is one saved plan file: timelines and manual overrides for any number of
// rotation modules, authored for one encounter.
type Document struct {
	ID        uuid.UUID
	Name      string
	Encounter string
	Plans     []*timeline.Plan
	// Overrides holds saved manual overrides keyed by module tag, then model name.
	Overrides map[string]map[string]strategy.Value
}

// Plan returns the plan for module, or nil.
func (d *Document) Plan(module string) *timeline.Plan {
	for _, p := range d.Plans {
		if p.Module == module {
			return p
		}
	}
	return nil
}

// Apply installs the document's plan and overrides for the holder's module.
func (d *Document) Apply(h *timeline.Holder) {
	module := h.Catalog().Module()
	h.SetPlan(d.Plan(module))
	for model, v := range d.Overrides[module] {
		*h.Manual(model) = v
	}
}

type header struct {
	ID        uuid.UUID
	Name      string
	Encounter string
}

var headerSchema = func() *Schema[header] {
	s := NewSchema[header]("plan.Header")
	s.Field("id",
		func(h *header) (any, bool) { return h.ID.String(), true },
		func(h *header, raw json.RawMessage) error {
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return err
			}
			id, err := uuid.Parse(text)
			if err != nil {
				return err
			}
			h.ID = id
			return nil
		})
	Simple(s, "name", func(h *header) string { return h.Name }, func(h *header, v string) { h.Name = v })
	Simple(s, "encounter", func(h *header) string { return h.Encounter }, func(h *header, v string) { h.Encounter = v })
	return s
}()

type wireEntry struct {
	Start    *float64        `json:"start"`
	Duration *float64        `json:"duration"`
	Value    json.RawMessage `json:"value"`
}

// Codec encodes and decodes plan documents against the registered rotation modules.
type Codec struct {
	modules *TypeRegistry[*strategy.Catalog]
	oids    *EnumTable
	logger  *zap.Logger
}

// NewCodec returns a Codec.
//
// Precondition: modules must not be nil. oids may be nil.
func NewCodec(modules *TypeRegistry[*strategy.Catalog], oids *EnumTable, logger *zap.Logger) *Codec {
	if modules == nil {
		panic("persist.NewCodec: modules must not be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Codec{modules: modules, oids: oids, logger: logger}
}

// Encode writes doc as indented JSON. Map keys are sorted so output is stable.
func (c *Codec) Encode(doc *Document) ([]byte, error) {
	h := header{ID: doc.ID, Name: doc.Name, Encounter: doc.Encounter}
	head, err := headerSchema.Encode(&h)
	if err != nil {
		return nil, err
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal(head, &out); err != nil {
		return nil, fmt.Errorf("persist.Codec.Encode: %w", err)
	}

	modules := make(map[string]map[string][]json.RawMessage)
	for _, p := range doc.Plans {
		catalog, err := c.modules.Resolve(p.Module)
		if err != nil {
			return nil, fmt.Errorf("persist.Codec.Encode: plan %q: %w", p.Name, err)
		}
		tracks := make(map[string][]json.RawMessage)
		for _, name := range p.Models() {
			m, ok := catalog.Model(name)
			if !ok {
				return nil, fmt.Errorf("persist.Codec.Encode: module %q has no model %q", p.Module, name)
			}
			track, _ := p.Lookup(name)
			for _, e := range track.Entries() {
				val, err := EncodeValue(m, c.oids, e.Value)
				if err != nil {
					return nil, err
				}
				start, dur := seconds(e.Start), seconds(e.Duration)
				entry, err := json.Marshal(wireEntry{Start: &start, Duration: &dur, Value: val})
				if err != nil {
					return nil, fmt.Errorf("persist.Codec.Encode: %w", err)
				}
				tracks[name] = append(tracks[name], entry)
			}
		}
		modules[p.Module] = tracks
	}
	if out["modules"], err = json.Marshal(modules); err != nil {
		return nil, fmt.Errorf("persist.Codec.Encode: %w", err)
	}

	if len(doc.Overrides) > 0 {
		overrides := make(map[string]map[string]json.RawMessage)
		for module, values := range doc.Overrides {
			catalog, err := c.modules.Resolve(module)
			if err != nil {
				return nil, fmt.Errorf("persist.Codec.Encode: overrides: %w", err)
			}
			encoded := make(map[string]json.RawMessage)
			for name, v := range values {
				m, ok := catalog.Model(name)
				if !ok {
					return nil, fmt.Errorf("persist.Codec.Encode: module %q has no model %q", module, name)
				}
				if encoded[name], err = EncodeValue(m, c.oids, v); err != nil {
					return nil, err
				}
			}
			overrides[module] = encoded
		}
		if out["overrides"], err = json.Marshal(overrides); err != nil {
			return nil, fmt.Errorf("persist.Codec.Encode: %w", err)
		}
	}
	return json.MarshalIndent(out, "", "  ")
}

// Decode reads a plan document. Only a non-object top level is fatal; every other
// problem is returned as a FieldError and the affected field, entry, model or module
// is skipped while the rest loads.
//
// Postcondition: a document without a valid id is assigned a fresh one.
func (c *Codec) Decode(data []byte) (*Document, []*FieldError, error) {
	var h header
	errs, err := headerSchema.Decode(data, &h, "$")
	if err != nil {
		return nil, nil, fmt.Errorf("persist.Codec.Decode: %w", err)
	}
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	doc := &Document{ID: h.ID, Name: h.Name, Encounter: h.Encounter, Overrides: make(map[string]map[string]strategy.Value)}

	var top map[string]json.RawMessage
	_ = json.Unmarshal(data, &top) // already known to be an object

	if raw, ok := top["modules"]; ok {
		var modules map[string]map[string]json.RawMessage
		if err := json.Unmarshal(raw, &modules); err != nil {
			errs = append(errs, &FieldError{Path: "$.modules", Err: err})
		}
		for _, tag := range sortedKeys(modules) {
			path := "$.modules." + tag
			catalog, err := c.modules.Resolve(tag)
			if err != nil {
				errs = append(errs, &FieldError{Path: path, Err: err})
				continue
			}
			plan := timeline.NewPlan(doc.Name, doc.Encounter, tag)
			plan.ID = doc.ID
			for _, name := range sortedKeys(modules[tag]) {
				errs = append(errs, c.decodeTrack(catalog, plan, name, modules[tag][name], path+"."+name)...)
			}
			doc.Plans = append(doc.Plans, plan)
		}
	}

	if raw, ok := top["overrides"]; ok {
		var overrides map[string]map[string]json.RawMessage
		if err := json.Unmarshal(raw, &overrides); err != nil {
			errs = append(errs, &FieldError{Path: "$.overrides", Err: err})
		}
		for _, tag := range sortedKeys(overrides) {
			path := "$.overrides." + tag
			catalog, err := c.modules.Resolve(tag)
			if err != nil {
				errs = append(errs, &FieldError{Path: path, Err: err})
				continue
			}
			values := make(map[string]strategy.Value)
			for _, name := range sortedKeys(overrides[tag]) {
				m, ok := catalog.Model(name)
				if !ok {
					errs = append(errs, &FieldError{Path: path + "." + name, Err: fmt.Errorf("%w model %q", ErrUnknownName, name)})
					continue
				}
				v, verrs := c.decodeValue(m, overrides[tag][name], path+"."+name)
				errs = append(errs, verrs...)
				values[name] = v
			}
			doc.Overrides[tag] = values
		}
	}

	for _, e := range errs {
		c.logger.Warn("plan field skipped",
			zap.String("plan", doc.Name),
			zap.String("path", e.Path),
			zap.Error(e.Err),
		)
	}
	return doc, errs, nil
}

func (c *Codec) decodeTrack(catalog *strategy.Catalog, plan *timeline.Plan, name string, raw json.RawMessage, path string) []*FieldError {
	m, ok := catalog.Model(name)
	if !ok {
		err := fmt.Errorf("%w model %q", ErrUnknownName, name)
		if hint := Suggest(name, catalog.Names()); hint != "" {
			err = fmt.Errorf("%w model %q (did you mean %q?)", ErrUnknownName, name, hint)
		}
		return []*FieldError{{Path: path, Err: err}}
	}
	var entries []wireEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return []*FieldError{{Path: path, Err: err}}
	}
	var errs []*FieldError
	track := plan.Track(name)
	for i, we := range entries {
		epath := fmt.Sprintf("%s[%d]", path, i)
		if we.Start == nil || we.Duration == nil {
			errs = append(errs, &FieldError{Path: epath, Err: errors.New("entry requires start and duration")})
			continue
		}
		var v strategy.Value
		if we.Value != nil {
			var verrs []*FieldError
			v, verrs = c.decodeValue(m, we.Value, epath+".value")
			errs = append(errs, verrs...)
		}
		entry := timeline.Entry{Start: fromSeconds(*we.Start), Duration: fromSeconds(*we.Duration), Value: v}
		if err := track.Insert(entry); err != nil {
			errs = append(errs, &FieldError{Path: epath, Err: err})
		}
	}
	return errs
}

// decodeValue decodes one value and resets a target mode the selected option does
// not support.
func (c *Codec) decodeValue(m *strategy.Model, raw json.RawMessage, path string) (strategy.Value, []*FieldError) {
	v, errs, err := DecodeValue(m, c.oids, raw, path)
	if err != nil {
		return strategy.Value{}, []*FieldError{{Path: path, Err: err}}
	}
	if err := v.Validate(m); err != nil {
		errs = append(errs, &FieldError{Path: path + ".Target", Err: err})
		v.Target = strategy.TargetAutomatic
		v.TargetParam = 0
	}
	return v, errs
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func seconds(d time.Duration) float64 {
	return d.Seconds()
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
