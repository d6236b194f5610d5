// Package storetest holds the behavior every storage.Store must share.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/raidplan/internal/storage"
)

// Run exercises a fresh store returned by open for every subtest.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	ctx := context.Background()

	t.Run("SaveGetRoundTrip", func(t *testing.T) {
		s := open(t)
		p := storage.Plan{ID: uuid.New(), Name: "prog", Encounter: "D033Svarbhanu", Document: []byte(`{"name":"prog","modules":{}}`)}
		saved, err := s.Save(ctx, p)
		require.NoError(t, err)
		assert.False(t, saved.UpdatedAt.IsZero())

		got, err := s.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, "prog", got.Name)
		assert.Equal(t, "D033Svarbhanu", got.Encounter)
		assert.JSONEq(t, string(p.Document), string(got.Document))
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		s := open(t)
		id := uuid.New()
		_, err := s.Save(ctx, storage.Plan{ID: id, Name: "v1", Encounter: "E", Document: []byte(`{"v":1}`)})
		require.NoError(t, err)
		_, err = s.Save(ctx, storage.Plan{ID: id, Name: "v2", Encounter: "E", Document: []byte(`{"v":2}`)})
		require.NoError(t, err)

		plans, err := s.ByEncounter(ctx, "E")
		require.NoError(t, err)
		require.Len(t, plans, 1)
		assert.Equal(t, "v2", plans[0].Name)
		assert.JSONEq(t, `{"v":2}`, string(plans[0].Document))
	})

	t.Run("SaveRequiresID", func(t *testing.T) {
		s := open(t)
		_, err := s.Save(ctx, storage.Plan{Name: "x", Encounter: "E", Document: []byte(`{}`)})
		assert.Error(t, err)
	})

	t.Run("ByEncounterNewestFirst", func(t *testing.T) {
		s := open(t)
		older := storage.Plan{ID: uuid.New(), Name: "older", Encounter: "E", Document: []byte(`{}`)}
		newer := storage.Plan{ID: uuid.New(), Name: "newer", Encounter: "E", Document: []byte(`{}`)}
		other := storage.Plan{ID: uuid.New(), Name: "other", Encounter: "F", Document: []byte(`{}`)}
		for _, p := range []storage.Plan{older, other} {
			_, err := s.Save(ctx, p)
			require.NoError(t, err)
		}
		time.Sleep(5 * time.Millisecond)
		_, err := s.Save(ctx, newer)
		require.NoError(t, err)

		plans, err := s.ByEncounter(ctx, "E")
		require.NoError(t, err)
		require.Len(t, plans, 2)
		assert.Equal(t, "newer", plans[0].Name)
		assert.Equal(t, "older", plans[1].Name)

		none, err := s.ByEncounter(ctx, "Nobody")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("NotFound", func(t *testing.T) {
		s := open(t)
		_, err := s.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, storage.ErrPlanNotFound)
		assert.ErrorIs(t, s.Delete(ctx, uuid.New()), storage.ErrPlanNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		s := open(t)
		p := storage.Plan{ID: uuid.New(), Name: "gone", Encounter: "E", Document: []byte(`{}`)}
		_, err := s.Save(ctx, p)
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, p.ID))
		_, err = s.Get(ctx, p.ID)
		assert.ErrorIs(t, err, storage.ErrPlanNotFound)
	})
}
