// Package backend opens the plan store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/cory-johannsen/raidplan/internal/config"
	"github.com/cory-johannsen/raidplan/internal/storage"
	"github.com/cory-johannsen/raidplan/internal/storage/postgres"
	"github.com/cory-johannsen/raidplan/internal/storage/sqlite"
)

// Open returns the store for cfg.Driver, or nil for "none".
//
// Precondition: cfg has passed config validation.
func Open(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case "none", "":
		return nil, nil
	case "sqlite":
		s, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "postgres":
		r, err := postgres.OpenPlanRepository(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("backend.Open: unknown storage driver %q", cfg.Driver)
	}
}
