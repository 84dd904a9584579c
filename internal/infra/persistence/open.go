// Package persistence selects the plan store backend from configuration.
package persistence

import (
	"context"
	"fmt"

	"poolcore/internal/config"
	"poolcore/internal/infra/persistence/memory"
	"poolcore/internal/infra/persistence/postgres"
	"poolcore/internal/infra/persistence/sqlite"
	"poolcore/pkg/domain"
)

// Store is a plan store with a release hook.
type Store interface {
	domain.PlanStore
	GetByLabel(ctx context.Context, label string) (domain.PlanRecord, error)
	Close() error
}

type memoryStore struct{ *memory.Store }

func (memoryStore) Close() error { return nil }

// Open builds the store named by cfg.Driver (memory when empty).
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", config.StoreMemory:
		return memoryStore{memory.NewStore()}, nil
	case config.StoreSQLite:
		s, err := sqlite.NewStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.StorePostgres:
		s, err := postgres.NewStore(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown persistence driver %q", cfg.Driver)
	}
}
