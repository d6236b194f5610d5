// Package storage defines the plan library contract shared by the storage backends.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrPlanNotFound is returned when a plan lookup yields no results.
var ErrPlanNotFound = errors.New("plan not found")

// Plan is one stored plan document. Document holds the persisted JSON form
// produced by persist.Codec; stores never interpret it.
type Plan struct {
	ID        uuid.UUID
	Name      string
	Encounter string
	Document  []byte
	UpdatedAt time.Time
}

// Store is a plan library.
type Store interface {
	// Save inserts or replaces the plan with p.ID and returns it with UpdatedAt set.
	Save(ctx context.Context, p Plan) (Plan, error)
	// Get returns the plan with id or ErrPlanNotFound.
	Get(ctx context.Context, id uuid.UUID) (Plan, error)
	// ByEncounter returns the plans authored for encounter, most recently updated first.
	ByEncounter(ctx context.Context, encounter string) ([]Plan, error)
	// Delete removes the plan with id or returns ErrPlanNotFound.
	Delete(ctx context.Context, id uuid.UUID) error
	Close() error
}
