// Package testutil starts throwaway PostgreSQL databases for plan store tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/raidplan/internal/config"
	"github.com/cory-johannsen/raidplan/internal/storage/postgres"
)

const (
	pgImage = "postgres:16-alpine"
	pgUser  = "raidplan"
	pgName  = "raidplan_test"
)

// PlanDatabase is a migrated plan library schema in a disposable container.
type PlanDatabase struct {
	Pool   *pgxpool.Pool
	Config config.DatabaseConfig
}

// StartPlanDatabase runs PostgreSQL in a container, applies the embedded up
// migrations and registers cleanup with t. It skips under -short.
//
// Precondition: Docker must be available.
func StartPlanDatabase(t *testing.T) *PlanDatabase {
	t.Helper()
	if testing.Short() {
		t.Skip("postgres container tests skipped in -short mode")
	}
	ctx := context.Background()
	began := time.Now()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        pgImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     pgUser,
				"POSTGRES_PASSWORD": pgUser,
				"POSTGRES_DB":       pgName,
			},
			// The server logs readiness once for the init run and again after restart.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(45 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("testutil: starting %s: %v", pgImage, err)
	}
	t.Cleanup(func() { _ = ctr.Terminate(context.Background()) })

	host, err := ctr.Host(ctx)
	if err != nil {
		t.Fatalf("testutil: container host: %v", err)
	}
	port, err := ctr.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("testutil: container port: %v", err)
	}

	cfg := config.DatabaseConfig{
		Host:            host,
		Port:            port.Int(),
		User:            pgUser,
		Password:        pgUser,
		Name:            pgName,
		SSLMode:         "disable",
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 5 * time.Minute,
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		t.Fatalf("testutil: connecting: %v", err)
	}
	t.Cleanup(pool.Close)

	scripts, err := postgres.UpScripts()
	if err != nil {
		t.Fatalf("testutil: reading migrations: %v", err)
	}
	for i, script := range scripts {
		if _, err := pool.DB().Exec(ctx, script); err != nil {
			t.Fatalf("testutil: migration %d: %v", i+1, err)
		}
	}
	t.Logf("plan database ready with %d migrations [%s]", len(scripts), time.Since(began))
	return &PlanDatabase{Pool: pool.DB(), Config: cfg}
}

// Reset empties every plan table.
func (d *PlanDatabase) Reset(t *testing.T) {
	t.Helper()
	if _, err := d.Pool.Exec(context.Background(), `TRUNCATE plans`); err != nil {
		t.Fatalf("testutil: truncating plans: %v", err)
	}
}
