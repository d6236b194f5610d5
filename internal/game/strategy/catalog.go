package strategy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Catalog holds the Models of one rotation module, keyed by internal name.
//
// Invariant: each internal name is defined at most once.
type Catalog struct {
	module      string
	description string
	models      map[string]*Model
	order       []string
}

// NewCatalog returns an empty Catalog for module.
//
// Precondition: module must be non-empty.
func NewCatalog(module, description string) *Catalog {
	if module == "" {
		panic("strategy.NewCatalog: module must not be empty")
	}
	return &Catalog{module: module, description: description, models: make(map[string]*Model)}
}

// Module returns the stable module tag used to key persisted plans.
func (c *Catalog) Module() string { return c.module }

// Description returns the free-form module description.
func (c *Catalog) Description() string { return c.description }

// Define adds m to the catalog.
//
// Postcondition: returns error on internal name collision.
func (c *Catalog) Define(m *Model) error {
	if _, exists := c.models[m.InternalName()]; exists {
		return fmt.Errorf("strategy.Catalog %q: model %q already defined", c.module, m.InternalName())
	}
	c.models[m.InternalName()] = m
	c.order = append(c.order, m.InternalName())
	return nil
}

// MustDefine is Define for module code, where a collision is a programming error.
func (c *Catalog) MustDefine(m *Model) *Model {
	if err := c.Define(m); err != nil {
		panic(err.Error())
	}
	return m
}

// Model returns the model with the given internal name.
func (c *Catalog) Model(name string) (*Model, bool) {
	m, ok := c.models[name]
	return m, ok
}

// Models returns all models in definition order.
func (c *Catalog) Models() []*Model {
	out := make([]*Model, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.models[n])
	}
	return out
}

// Names returns all internal names in definition order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Sorted returns models ordered for display; hidden models are omitted unless showHidden.
func (c *Catalog) Sorted(showHidden bool) []*Model {
	var out []*Model
	for _, m := range c.Models() {
		if showHidden || !m.Hidden() {
			out = append(out, m)
		}
	}
	SortByUIPriority(out)
	return out
}

type yamlOption struct {
	Index    *int    `yaml:"index"`
	Name     string  `yaml:"name"`
	Display  string  `yaml:"display"`
	Color    uint32  `yaml:"color"`
	Targets  Targets `yaml:"targets"`
	Cooldown float64 `yaml:"cooldown"`
	Effect   float64 `yaml:"effect"`
	MinLevel int     `yaml:"min_level"`
	MaxLevel int     `yaml:"max_level"`
}

type yamlModel struct {
	Name       string       `yaml:"name"`
	Display    string       `yaml:"display"`
	UIPriority float64      `yaml:"ui_priority"`
	Options    []yamlOption `yaml:"options"`
}

type yamlCatalog struct {
	Module      string      `yaml:"module"`
	Description string      `yaml:"description"`
	Models      []yamlModel `yaml:"models"`
}

type yamlCatalogFile struct {
	Catalog *yamlCatalog `yaml:"catalog"`
}

// ParseCatalog decodes one YAML catalog document.
//
// Postcondition: every model has at least one option; explicit option indices match
// their position.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f yamlCatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("strategy.ParseCatalog: %w", err)
	}
	if f.Catalog == nil {
		return nil, errors.New("strategy.ParseCatalog: missing top-level 'catalog' key")
	}
	if f.Catalog.Module == "" {
		return nil, errors.New("strategy.ParseCatalog: module must not be empty")
	}
	c := NewCatalog(f.Catalog.Module, f.Catalog.Description)
	for _, ym := range f.Catalog.Models {
		if ym.Name == "" {
			return nil, fmt.Errorf("strategy.ParseCatalog %q: model has empty name", c.module)
		}
		if len(ym.Options) == 0 {
			return nil, fmt.Errorf("strategy.ParseCatalog %q: model %q must declare at least the automatic option", c.module, ym.Name)
		}
		m := NewModel(ym.Name, ym.Display, ym.UIPriority)
		for i, yo := range ym.Options {
			expected := i
			if yo.Index != nil {
				expected = *yo.Index
			}
			err := m.TryAddOption(expected, Option{
				Color:            yo.Color,
				SupportedTargets: yo.Targets,
				InternalName:     yo.Name,
				DisplayName:      yo.Display,
				Cooldown:         yo.Cooldown,
				Effect:           yo.Effect,
				MinLevel:         yo.MinLevel,
				MaxLevel:         yo.MaxLevel,
			})
			if err != nil {
				return nil, fmt.Errorf("strategy.ParseCatalog %q: %w", c.module, err)
			}
		}
		if err := c.Define(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadCatalogs reads all *.yaml files from dir and returns parsed Catalogs.
//
// Precondition: dir must be a readable directory.
// Postcondition: returns error if any file fails to parse or two files share a module tag.
func LoadCatalogs(dir string) ([]*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("strategy.LoadCatalogs: reading %q: %w", dir, err)
	}
	seen := make(map[string]string)
	var out []*Catalog
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("strategy.LoadCatalogs: reading %s: %w", e.Name(), err)
		}
		c, err := ParseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if prev, dup := seen[c.module]; dup {
			return nil, fmt.Errorf("strategy.LoadCatalogs: module %q defined in both %s and %s", c.module, prev, e.Name())
		}
		seen[c.module] = e.Name()
		out = append(out, c)
	}
	return out, nil
}
