package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/raidplan/internal/storage"
	"github.com/cory-johannsen/raidplan/internal/storage/sqlite"
	"github.com/cory-johannsen/raidplan/internal/storage/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) storage.Store {
		s, err := sqlite.Open(filepath.Join(t.TempDir(), "plans.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestOpen_EmptyPath(t *testing.T) {
	_, err := sqlite.Open("")
	assert.Error(t, err)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(context.Background(), storage.Plan{ID: uuid.New(), Name: "mem", Encounter: "E", Document: []byte(`{}`)})
	require.NoError(t, err)
	plans, err := s.ByEncounter(context.Background(), "E")
	require.NoError(t, err)
	assert.Len(t, plans, 1)
}

func TestStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "plans.db")
	s, err := sqlite.Open(path)
	require.NoError(t, err)
	id := uuid.New()
	_, err = s.Save(context.Background(), storage.Plan{ID: id, Name: "kept", Encounter: "E", Document: []byte(`{"a":1}`)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = sqlite.Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Name)
	assert.JSONEq(t, `{"a":1}`, string(got.Document))
}
