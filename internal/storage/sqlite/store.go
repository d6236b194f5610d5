// Package sqlite provides the client-local plan cache on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/cory-johannsen/raidplan/internal/storage"
)

// Store is a storage.Store on a single SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema exists.
//
// Precondition: path must be non-empty; ":memory:" opens a private in-memory database.
// Postcondition: Returns an open Store or a non-nil error.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite.Open: empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.Open: creating directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: pragmas: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			encounter TEXT NOT NULL,
			document TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS plans_encounter_idx ON plans (encounter, updated_at DESC);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save inserts or replaces p. UpdatedAt is stored with nanosecond precision.
//
// Precondition: p.ID must not be uuid.Nil.
func (s *Store) Save(ctx context.Context, p storage.Plan) (storage.Plan, error) {
	if p.ID == uuid.Nil {
		return storage.Plan{}, errors.New("sqlite.Store.Save: plan id must be set")
	}
	p.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO plans (id, name, encounter, document, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			encounter = excluded.encounter,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		p.ID.String(), p.Name, p.Encounter, string(p.Document), p.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return storage.Plan{}, fmt.Errorf("sqlite.Store.Save: %w", err)
	}
	return p, nil
}

// Get retrieves a plan by id or returns storage.ErrPlanNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (storage.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, encounter, document, updated_at
		FROM plans WHERE id = ?`, id.String())
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Plan{}, storage.ErrPlanNotFound
		}
		return storage.Plan{}, fmt.Errorf("sqlite.Store.Get: %w", err)
	}
	return p, nil
}

// ByEncounter returns every plan for encounter, most recently updated first.
func (s *Store) ByEncounter(ctx context.Context, encounter string) ([]storage.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, encounter, document, updated_at
		FROM plans WHERE encounter = ?
		ORDER BY updated_at DESC, id`, encounter)
	if err != nil {
		return nil, fmt.Errorf("sqlite.Store.ByEncounter: %w", err)
	}
	defer rows.Close()

	var plans []storage.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite.Store.ByEncounter: scanning row: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// Delete removes a plan or returns storage.ErrPlanNotFound.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("sqlite.Store.Delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite.Store.Delete: %w", err)
	}
	if n == 0 {
		return storage.ErrPlanNotFound
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (storage.Plan, error) {
	var (
		p       storage.Plan
		id, doc string
		nanos   int64
	)
	if err := row.Scan(&id, &p.Name, &p.Encounter, &doc, &nanos); err != nil {
		return storage.Plan{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return storage.Plan{}, fmt.Errorf("parsing plan id %q: %w", id, err)
	}
	p.ID = parsed
	p.Document = []byte(doc)
	p.UpdatedAt = time.Unix(0, nanos).UTC()
	return p, nil
}
