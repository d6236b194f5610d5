package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raidplan/internal/game/world"
)

// globalKey is the reserved key of the VM loaded via LoadGlobal. CallPredicate
// falls back to it when an encounter has no VM of its own or does not define the hook.
const globalKey = "__global__"

// Input is the world view handed to a predicate.
type Input struct {
	Snap        world.Snapshot
	Subject     *world.Actor
	Phase       string
	TimeInState time.Duration
	// Elapsed is the time since the encounter started.
	Elapsed     time.Duration
}

type vm struct {
	mu sync.Mutex
	L  *lua.LState
}

// Manager owns one sandboxed VM per encounter module and dispatches predicate calls.
//
// Manager is safe for concurrent use. Each VM is single-threaded; its own mutex
// serializes calls into it.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	limit  int
	logger *zap.Logger
}

// NewManager creates a Manager whose calls each run under instLimit opcodes.
//
// Precondition: instLimit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: Returns a non-nil Manager with no VMs.
func NewManager(instLimit int, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{vms: make(map[string]*vm), limit: instLimit, logger: logger}
}

// LoadEncounter replaces the VM of encounter with a fresh one running every *.lua
// file in scriptDir in lexicographic order.
//
// Precondition: encounter must be non-empty; scriptDir must be a readable directory.
// Postcondition: on error the previous VM, if any, is left in place.
func (m *Manager) LoadEncounter(encounter, scriptDir string) error {
	if encounter == "" {
		return fmt.Errorf("scripting.LoadEncounter: encounter must not be empty")
	}
	return m.loadDir(encounter, scriptDir)
}

// LoadGlobal replaces the shared fallback VM with the scripts in scriptDir.
func (m *Manager) LoadGlobal(scriptDir string) error {
	return m.loadDir(globalKey, scriptDir)
}

// LoadSource runs src in encounter's VM, creating the VM on first use. Encounter
// definitions use it for inline predicates.
func (m *Manager) LoadSource(encounter, chunk, src string) error {
	m.mu.Lock()
	v, ok := m.vms[encounter]
	if !ok {
		v = m.newVM()
		m.vms[encounter] = v
	}
	m.mu.Unlock()

	v.mu.Lock()
	defer v.mu.Unlock()
	fn, err := v.L.LoadString(src)
	if err != nil {
		return fmt.Errorf("scripting.LoadSource: %s/%s: %w", encounter, chunk, err)
	}
	err = Budgeted(v.L, m.limit, func() error {
		v.L.Push(fn)
		return v.L.PCall(0, 0, nil)
	})
	if err != nil {
		return fmt.Errorf("scripting.LoadSource: %s/%s: %w", encounter, chunk, err)
	}
	return nil
}

func (m *Manager) newVM() *vm {
	L := NewSandboxedState()
	RegisterModules(L)
	return &vm{L: L}
}

func (m *Manager) loadDir(key, scriptDir string) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			files = append(files, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(files)

	v := m.newVM()
	for _, path := range files {
		if err := Budgeted(v.L, m.limit, func() error { return v.L.DoFile(path) }); err != nil {
			v.L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	old := m.vms[key]
	m.vms[key] = v
	m.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Debug("scripts loaded", zap.String("vm", key), zap.Int("files", len(files)))
	return nil
}

// Has reports whether hook is defined for encounter, including the global fallback.
func (m *Manager) Has(encounter, hook string) bool {
	v, _ := m.lookup(encounter, hook)
	return v != nil
}

func (m *Manager) lookup(encounter, hook string) (*vm, lua.LValue) {
	m.mu.RLock()
	candidates := []*vm{m.vms[encounter], m.vms[globalKey]}
	m.mu.RUnlock()
	for _, v := range candidates {
		if v == nil {
			continue
		}
		v.mu.Lock()
		fn := v.L.GetGlobal(hook)
		v.mu.Unlock()
		if fn.Type() == lua.LTFunction {
			return v, fn
		}
	}
	return nil, lua.LNil
}

// CallPredicate calls hook(ctx) and reports the truthiness of its first result.
// A missing hook, a runtime error or an exhausted instruction budget all count
// as false; errors are logged at Warn and never propagated.
func (m *Manager) CallPredicate(encounter, hook string, in Input) bool {
	v, fn := m.lookup(encounter, hook)
	if v == nil {
		m.logger.Warn("scripting: predicate not defined",
			zap.String("encounter", encounter),
			zap.String("hook", hook),
		)
		return false
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	L := v.L
	err := Budgeted(L, m.limit, func() error {
		return L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, SnapshotTable(L, in))
	})
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("encounter", encounter),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return false
	}
	ret := L.Get(-1)
	L.Pop(1)
	return lua.LVAsBool(ret)
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, v := range m.vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
		delete(m.vms, key)
	}
}
