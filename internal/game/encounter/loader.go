package encounter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/raidplan/internal/persist"
)

// ScriptLoader compiles inline predicate source for an encounter.
type ScriptLoader interface {
	LoadSource(encounter, chunk, src string) error
}

// Tables holds the symbolic game identifiers an encounter file declares.
type Tables struct {
	OIDs     *persist.EnumTable
	Actions  *persist.EnumTable
	Statuses *persist.EnumTable
}

type yamlFile struct {
	Encounter yamlEncounter `yaml:"encounter"`
}

type yamlEncounter struct {
	Module  string     `yaml:"module"`
	Name    string     `yaml:"name"`
	OID     string     `yaml:"oid"`
	IDs     yamlIDs    `yaml:"ids"`
	Scripts string     `yaml:"scripts"`
	Initial string     `yaml:"initial"`
	States  []yamlState `yaml:"states"`
}

type yamlIDs struct {
	OID    map[string]uint32 `yaml:"oid"`
	Action map[string]uint32 `yaml:"action"`
	Status map[string]uint32 `yaml:"status"`
}

type yamlState struct {
	ID          string           `yaml:"id"`
	Phase       string           `yaml:"phase"`
	Timeout     time.Duration    `yaml:"timeout"`
	Next        string           `yaml:"next"`
	Terminal    bool             `yaml:"terminal"`
	Comment     string           `yaml:"comment"`
	Transitions []yamlTransition `yaml:"transitions"`
}

type yamlTransition struct {
	Name string        `yaml:"name"`
	To   string        `yaml:"to"`
	When yamlCondition `yaml:"when"`
}

type yamlCondition struct {
	HPBelow      *yamlHPBelow     `yaml:"hp_below"`
	CastStarted  *yamlCastStarted `yaml:"cast_started"`
	Status       string           `yaml:"status"`
	ActorPresent string           `yaml:"actor_present"`
	After        time.Duration    `yaml:"after"`
	Script       string           `yaml:"script"`
	All          []yamlCondition  `yaml:"all"`
	Any          []yamlCondition  `yaml:"any"`
	Not          *yamlCondition   `yaml:"not"`
}

type yamlHPBelow struct {
	OID      string  `yaml:"oid"`
	Fraction float64 `yaml:"fraction"`
}

type yamlCastStarted struct {
	OID    string `yaml:"oid"`
	Action string `yaml:"action"`
}

// Parse builds a Definition from YAML. Inline scripts are handed to scripts,
// which may be nil only when the file has none.
func Parse(data []byte, scripts ScriptLoader) (*Definition, *Tables, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("encounter.Parse: %w", err)
	}
	ye := f.Encounter
	if ye.Module == "" {
		return nil, nil, errors.New("encounter.Parse: encounter.module must not be empty")
	}

	tables, err := buildTables(ye.Module, ye.IDs)
	if err != nil {
		return nil, nil, fmt.Errorf("encounter.Parse %q: %w", ye.Module, err)
	}
	oid, err := resolveID(ye.OID, tables.OIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("encounter.Parse %q: oid: %w", ye.Module, err)
	}

	b := NewBuilder(ye.Module, oid)
	if ye.Name != "" {
		b.Name(ye.Name)
	}
	if ye.Initial != "" {
		b.Initial(ye.Initial)
	}
	for _, ys := range ye.States {
		b.Phase(ys.Phase)
		sb := b.State(ys.ID, ys.Timeout).Next(ys.Next).Comment(ys.Comment)
		if ys.Terminal {
			sb.Terminal()
		}
		for i, yt := range ys.Transitions {
			name := yt.Name
			if name == "" {
				name = fmt.Sprintf("%s#%d", ys.ID, i)
			}
			cond, err := yt.When.compile(tables)
			if err != nil {
				return nil, nil, fmt.Errorf("encounter.Parse %q: state %q: transition %q: %w", ye.Module, ys.ID, name, err)
			}
			sb.When(name, cond, yt.To)
		}
	}
	def, err := b.Build()
	if err != nil {
		return nil, nil, err
	}

	if strings.TrimSpace(ye.Scripts) != "" {
		if scripts == nil {
			return nil, nil, fmt.Errorf("encounter.Parse %q: inline scripts need a script host", ye.Module)
		}
		if err := scripts.LoadSource(ye.Module, "inline", ye.Scripts); err != nil {
			return nil, nil, fmt.Errorf("encounter.Parse %q: %w", ye.Module, err)
		}
	}
	return def, tables, nil
}

func buildTables(module string, ids yamlIDs) (*Tables, error) {
	oids, err := persist.NewEnumTable(module+".OID", ids.OID)
	if err != nil {
		return nil, err
	}
	actions, err := persist.NewEnumTable(module+".AID", ids.Action)
	if err != nil {
		return nil, err
	}
	statuses, err := persist.NewEnumTable(module+".SID", ids.Status)
	if err != nil {
		return nil, err
	}
	return &Tables{OIDs: oids, Actions: actions, Statuses: statuses}, nil
}

// resolveID accepts a decimal number, a 0x literal or a symbolic name from t.
func resolveID(text string, t *persist.EnumTable) (uint32, error) {
	if text == "" {
		return 0, errors.New("identifier must not be empty")
	}
	if v, err := strconv.ParseUint(text, 10, 32); err == nil {
		return uint32(v), nil
	}
	id, err := persist.ParseIdentifier(text, t)
	if err != nil {
		return 0, err
	}
	return id.Value, nil
}

// resolveOID is resolveID where an empty id means the encounter subject.
func resolveOID(text string, t *persist.EnumTable) (uint32, error) {
	if text == "" || text == "subject" {
		return SubjectOID, nil
	}
	return resolveID(text, t)
}

func (yc yamlCondition) compile(t *Tables) (Condition, error) {
	var conds []Condition
	if yc.HPBelow != nil {
		oid, err := resolveOID(yc.HPBelow.OID, t.OIDs)
		if err != nil {
			return nil, fmt.Errorf("hp_below: %w", err)
		}
		if yc.HPBelow.Fraction <= 0 || yc.HPBelow.Fraction > 1 {
			return nil, fmt.Errorf("hp_below: fraction must be in (0, 1], got %g", yc.HPBelow.Fraction)
		}
		conds = append(conds, HPBelow(oid, yc.HPBelow.Fraction))
	}
	if yc.CastStarted != nil {
		oid, err := resolveOID(yc.CastStarted.OID, t.OIDs)
		if err != nil {
			return nil, fmt.Errorf("cast_started: %w", err)
		}
		action, err := resolveID(yc.CastStarted.Action, t.Actions)
		if err != nil {
			return nil, fmt.Errorf("cast_started: action: %w", err)
		}
		conds = append(conds, CastStarted(oid, action))
	}
	if yc.Status != "" {
		status, err := resolveID(yc.Status, t.Statuses)
		if err != nil {
			return nil, fmt.Errorf("status: %w", err)
		}
		conds = append(conds, StatusPresent(status))
	}
	if yc.ActorPresent != "" {
		oid, err := resolveOID(yc.ActorPresent, t.OIDs)
		if err != nil {
			return nil, fmt.Errorf("actor_present: %w", err)
		}
		conds = append(conds, ActorPresent(oid))
	}
	if yc.After > 0 {
		conds = append(conds, After(yc.After))
	}
	if yc.Script != "" {
		conds = append(conds, Script(yc.Script))
	}
	if yc.All != nil {
		c, err := compileAll(yc.All, t)
		if err != nil {
			return nil, fmt.Errorf("all: %w", err)
		}
		conds = append(conds, All(c...))
	}
	if yc.Any != nil {
		c, err := compileAll(yc.Any, t)
		if err != nil {
			return nil, fmt.Errorf("any: %w", err)
		}
		conds = append(conds, Any(c...))
	}
	if yc.Not != nil {
		c, err := yc.Not.compile(t)
		if err != nil {
			return nil, fmt.Errorf("not: %w", err)
		}
		conds = append(conds, Not(c))
	}
	if len(conds) != 1 {
		return nil, fmt.Errorf("condition must set exactly one kind, got %d", len(conds))
	}
	return conds[0], nil
}

func compileAll(ycs []yamlCondition, t *Tables) ([]Condition, error) {
	out := make([]Condition, 0, len(ycs))
	for i, yc := range ycs {
		c, err := yc.compile(t)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// LoadFile parses one encounter file.
func LoadFile(path string, scripts ScriptLoader) (*Definition, *Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("encounter.LoadFile: %w", err)
	}
	def, tables, err := Parse(data, scripts)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return def, tables, nil
}

// LoadDir parses every *.yaml and *.yml file in dir into a new Registry.
func LoadDir(dir string, scripts ScriptLoader) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("encounter.LoadDir: %w", err)
	}
	var files []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	r := NewRegistry()
	for _, path := range files {
		def, tables, err := LoadFile(path, scripts)
		if err != nil {
			return nil, err
		}
		if err := r.Register(def, tables); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return r, nil
}
