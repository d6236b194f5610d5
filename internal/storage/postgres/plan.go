package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/raidplan/internal/config"
	"github.com/cory-johannsen/raidplan/internal/storage"
)

// PlanRepository is a storage.Store on PostgreSQL. Documents are stored as JSONB.
type PlanRepository struct {
	db    *pgxpool.Pool
	owned *Pool
}

// NewPlanRepository creates a PlanRepository backed by db.
//
// Precondition: db must be a valid, open connection pool with migrations applied.
func NewPlanRepository(db *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{db: db}
}

// Save inserts or replaces p.
//
// Precondition: p.ID must not be uuid.Nil; p.Document must be valid JSON.
func (r *PlanRepository) Save(ctx context.Context, p storage.Plan) (storage.Plan, error) {
	if p.ID == uuid.Nil {
		return storage.Plan{}, errors.New("postgres.PlanRepository.Save: plan id must be set")
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO plans (id, name, encounter, document, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, encounter = EXCLUDED.encounter,
		    document = EXCLUDED.document, updated_at = NOW()
		RETURNING updated_at`,
		p.ID.String(), p.Name, p.Encounter, p.Document,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return storage.Plan{}, fmt.Errorf("saving plan: %w", err)
	}
	return p, nil
}

// Get retrieves a plan by id.
//
// Postcondition: Returns the plan or storage.ErrPlanNotFound.
func (r *PlanRepository) Get(ctx context.Context, id uuid.UUID) (storage.Plan, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id::text, name, encounter, document, updated_at
		FROM plans WHERE id = $1`,
		id.String(),
	)
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Plan{}, storage.ErrPlanNotFound
		}
		return storage.Plan{}, fmt.Errorf("querying plan: %w", err)
	}
	return p, nil
}

// ByEncounter returns every plan for encounter, most recently updated first.
func (r *PlanRepository) ByEncounter(ctx context.Context, encounter string) ([]storage.Plan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, name, encounter, document, updated_at
		FROM plans WHERE encounter = $1
		ORDER BY updated_at DESC, id`,
		encounter,
	)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var plans []storage.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning plan row: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// Delete removes a plan.
//
// Postcondition: Returns nil on success, storage.ErrPlanNotFound if no row was deleted.
func (r *PlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id.String())
	if err != nil {
		return fmt.Errorf("deleting plan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrPlanNotFound
	}
	return nil
}

// OpenPlanRepository connects with cfg and returns a repository that owns the pool.
//
// Postcondition: Close releases the pool.
func OpenPlanRepository(ctx context.Context, cfg config.DatabaseConfig) (*PlanRepository, error) {
	pool, err := NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PlanRepository{db: pool.DB(), owned: pool}, nil
}

// Close releases the pool when the repository owns it; otherwise it is a no-op.
func (r *PlanRepository) Close() error {
	if r.owned != nil {
		r.owned.Close()
	}
	return nil
}

func scanPlan(row pgx.Row) (storage.Plan, error) {
	var (
		p  storage.Plan
		id string
	)
	if err := row.Scan(&id, &p.Name, &p.Encounter, &p.Document, &p.UpdatedAt); err != nil {
		return storage.Plan{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return storage.Plan{}, fmt.Errorf("parsing plan id %q: %w", id, err)
	}
	p.ID = parsed
	return p, nil
}
