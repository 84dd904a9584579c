// Package postgres persists plan records to Postgres while serving reads
// from the in-memory store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"poolcore/internal/infra/persistence/memory"
	"poolcore/pkg/domain"
)

var _ domain.PlanStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/poolcore?sslmode=disable"

	uniqueViolation = "23505"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store writes every saved plan as one row of the plans table.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore connects using dsn (defaultDSN when empty), ensures the schema and
// hydrates the working set.
func NewStore(ctx context.Context, dsn string, opts ...memory.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensurePlansTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	records, err := loadRecords(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore(opts...)
	if err := mem.Import(records); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: mem, db: db}, nil
}

func ensurePlansTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL,
		payload JSONB NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure plans table: %w", err)
	}
	return nil
}

func loadRecords(ctx context.Context, db *sql.DB) ([]domain.PlanRecord, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, label, created_at, payload FROM plans ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("select plans: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var records []domain.PlanRecord
	for rows.Next() {
		var (
			rec     domain.PlanRecord
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Label, &rec.CreatedAt, &payload); err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		rec.Plan = &domain.Plan{}
		if err := json.Unmarshal(payload, rec.Plan); err != nil {
			return nil, fmt.Errorf("decode plan %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return records, nil
}

// Save inserts the row before admitting the record to the working set.
func (s *Store) Save(ctx context.Context, plan *domain.Plan) (domain.PlanRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.Prepare(plan)
	if err != nil {
		return domain.PlanRecord{}, err
	}
	payload, err := json.Marshal(rec.Plan)
	if err != nil {
		return domain.PlanRecord{}, fmt.Errorf("encode plan: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO plans (id, label, created_at, payload) VALUES ($1, $2, $3, $4)`,
		rec.ID, rec.Label, rec.CreatedAt, string(payload))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.PlanRecord{}, fmt.Errorf("%w: %s", domain.ErrDuplicateLabel, rec.Label)
		}
		return domain.PlanRecord{}, fmt.Errorf("insert plan: %w", err)
	}
	if err := s.Insert(rec); err != nil {
		return domain.PlanRecord{}, err
	}
	return rec, nil
}

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }
