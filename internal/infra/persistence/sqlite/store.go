// Package sqlite persists plan records to a SQLite database while serving
// reads from the in-memory store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"poolcore/internal/infra/persistence/memory"
	"poolcore/pkg/domain"
)

var _ domain.PlanStore = (*Store)(nil)

// Store writes every saved plan as one row and hydrates the working set on
// open.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the database at path.
func NewStore(path string, opts ...memory.Option) (*Store, error) {
	if path == "" {
		path = "poolcore.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		payload BLOB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create plans table: %w", err)
	}
	s := &Store{Store: memory.NewStore(opts...), db: db, path: path}
	if err := s.load(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, label, created_at, payload FROM plans`)
	if err != nil {
		return fmt.Errorf("select plans: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var records []domain.PlanRecord
	for rows.Next() {
		var (
			rec     domain.PlanRecord
			created string
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Label, &created, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return fmt.Errorf("plan %s created_at: %w", rec.ID, err)
		}
		rec.Plan = &domain.Plan{}
		if err := json.Unmarshal(payload, rec.Plan); err != nil {
			return fmt.Errorf("decode plan %s: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate plans: %w", err)
	}
	return s.Import(records)
}

// Save writes the row first so the working set never holds unpersisted plans.
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
	_, err = s.db.ExecContext(ctx, `INSERT INTO plans (id, label, created_at, payload) VALUES (?, ?, ?, ?)`,
		rec.ID, rec.Label, rec.CreatedAt.UTC().Format(time.RFC3339Nano), payload)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: plans.label") {
			return domain.PlanRecord{}, fmt.Errorf("%w: %s", domain.ErrDuplicateLabel, rec.Label)
		}
		return domain.PlanRecord{}, fmt.Errorf("insert plan: %w", err)
	}
	if err := s.Insert(rec); err != nil {
		return domain.PlanRecord{}, err
	}
	return rec, nil
}

// Path returns the database path.
func (s *Store) Path() string { return s.path }

// DB exposes the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }
