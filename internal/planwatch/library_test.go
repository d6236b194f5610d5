package planwatch_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/raidplan/internal/game/strategy"
	"github.com/cory-johannsen/raidplan/internal/persist"
	"github.com/cory-johannsen/raidplan/internal/planwatch"
	"github.com/cory-johannsen/raidplan/internal/storage"
	"github.com/cory-johannsen/raidplan/internal/storage/sqlite"
)

func newCodec(t *testing.T) *persist.Codec {
	t.Helper()
	catalog := strategy.NewCatalog("pld", "Paladin")
	burst := strategy.NewModel("Burst", "", 10)
	burst.AddOption(0, strategy.Option{InternalName: "Automatic"})
	burst.AddOption(1, strategy.Option{InternalName: "Force"})
	catalog.MustDefine(burst)
	modules := persist.NewTypeRegistry[*strategy.Catalog]()
	require.NoError(t, modules.Register("pld", func() *strategy.Catalog { return catalog }))
	return persist.NewCodec(modules, nil, nil)
}

func planJSON(id uuid.UUID, name, encounter string) string {
	return `{
  "id": "` + id.String() + `",
  "name": "` + name + `",
  "encounter": "` + encounter + `",
  "modules": {"pld": {"Burst": [{"start": 0, "duration": 5, "value": {"Option": "Force"}}]}}
}`
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func openStore(t *testing.T) storage.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLibrary_LoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.json"), planJSON(uuid.New(), "a", "D033Svarbhanu"))
	writeFile(t, filepath.Join(dir, "b.json"), planJSON(uuid.New(), "b", "Other"))
	writeFile(t, filepath.Join(dir, "broken.json"), `[1, 2]`)
	writeFile(t, filepath.Join(dir, "notes.txt"), `ignored`)

	lib := planwatch.NewLibrary(newCodec(t))
	n, err := lib.LoadDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, lib.Len())

	doc, ok := lib.Lookup("D033Svarbhanu")
	require.True(t, ok)
	assert.Equal(t, "a", doc.Name)
	require.NotNil(t, doc.Plan("pld"))

	_, ok = lib.Lookup("Nobody")
	assert.False(t, ok)
}

func TestLibrary_LoadDir_MissingDir(t *testing.T) {
	lib := planwatch.NewLibrary(newCodec(t))
	_, err := lib.LoadDir(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLibrary_NewestLoadWins(t *testing.T) {
	dir := t.TempDir()
	lib := planwatch.NewLibrary(newCodec(t))
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")
	writeFile(t, first, planJSON(uuid.New(), "first", "E"))
	writeFile(t, second, planJSON(uuid.New(), "second", "E"))

	_, err := lib.LoadFile(context.Background(), second)
	require.NoError(t, err)
	_, err = lib.LoadFile(context.Background(), first)
	require.NoError(t, err)

	doc, ok := lib.Lookup("E")
	require.True(t, ok)
	assert.Equal(t, "first", doc.Name)
}

func TestLibrary_FieldErrorsStillLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	writeFile(t, path, `{"id":"`+uuid.NewString()+`","name":"p","encounter":"E","modules":{"pld":{"Burst":[{"start":0,"duration":5,"value":{"Option":"Nope"}}]},"war":{}}}`)

	lib := planwatch.NewLibrary(newCodec(t))
	errs, err := lib.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.NotEmpty(t, errs)
	_, ok := lib.Lookup("E")
	assert.True(t, ok)
}

func TestLibrary_LintRejects(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.json")
	writeFile(t, path, `{"name":"p","encounter":"E","modules":{}}`)

	lib := planwatch.NewLibrary(newCodec(t), planwatch.WithLint(true))
	_, err := lib.LoadFile(context.Background(), path)
	assert.Error(t, err)
	assert.Equal(t, 0, lib.Len())

	lenient := planwatch.NewLibrary(newCodec(t))
	_, err = lenient.LoadFile(context.Background(), path)
	assert.NoError(t, err)
}

func TestLibrary_SyncsStore(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	lib := planwatch.NewLibrary(newCodec(t), planwatch.WithStore(store))

	id := uuid.New()
	path := filepath.Join(t.TempDir(), "p.json")
	writeFile(t, path, planJSON(id, "synced", "E"))
	_, err := lib.LoadFile(ctx, path)
	require.NoError(t, err)

	stored, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "synced", stored.Name)
	assert.Contains(t, string(stored.Document), `"Force"`)

	lib.Remove(ctx, path)
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, storage.ErrPlanNotFound)
	assert.Equal(t, 0, lib.Len())
}

func TestLibrary_ReloadWithNewIDReplacesStoredRow(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	lib := planwatch.NewLibrary(newCodec(t), planwatch.WithStore(store))
	path := filepath.Join(t.TempDir(), "p.json")

	writeFile(t, path, planJSON(uuid.New(), "v1", "E"))
	_, err := lib.LoadFile(ctx, path)
	require.NoError(t, err)
	writeFile(t, path, planJSON(uuid.New(), "v2", "E"))
	_, err = lib.LoadFile(ctx, path)
	require.NoError(t, err)

	plans, err := store.ByEncounter(ctx, "E")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "v2", plans[0].Name)
}

func TestWatcher_Reloads(t *testing.T) {
	dir := t.TempDir()
	lib := planwatch.NewLibrary(newCodec(t))
	w := planwatch.NewWatcher(lib, dir, 20*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		require.NoError(t, <-done)
	}()

	path := filepath.Join(dir, "live.json")
	require.Eventually(t, func() bool {
		// Rewrite until the watcher is attached and picks it up.
		_ = os.WriteFile(path, []byte(planJSON(uuid.New(), "live", "E")), 0o644)
		_, ok := lib.Lookup("E")
		return ok
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		_, ok := lib.Lookup("E")
		return !ok
	}, 5*time.Second, 20*time.Millisecond)
}

func TestWatcher_MissingDir(t *testing.T) {
	lib := planwatch.NewLibrary(newCodec(t))
	w := planwatch.NewWatcher(lib, filepath.Join(t.TempDir(), "missing"), 0, nil)
	assert.Error(t, w.Run(context.Background()))
}
