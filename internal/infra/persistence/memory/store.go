// Package memory provides the in-process PlanStore used directly in tests and
// as the working set of the SQL-backed stores.
package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"poolcore/pkg/domain"
)

var _ domain.PlanStore = (*Store)(nil)

// Store keeps plan records in memory. Plans are immutable, so records share
// the plan pointer.
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.PlanRecord
	labels  map[string]string
	now     func() time.Time
	newID   func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides record id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		records: make(map[string]domain.PlanRecord),
		labels:  make(map[string]string),
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prepare builds the record Save would insert without storing it.
func (s *Store) Prepare(plan *domain.Plan) (domain.PlanRecord, error) {
	if plan == nil {
		return domain.PlanRecord{}, errors.New("nil plan")
	}
	label := plan.Label()
	if strings.TrimSpace(label) == "" {
		return domain.PlanRecord{}, errors.New("plan label required")
	}
	s.mu.RLock()
	_, taken := s.labels[label]
	s.mu.RUnlock()
	if taken {
		return domain.PlanRecord{}, fmt.Errorf("%w: %s", domain.ErrDuplicateLabel, label)
	}
	return domain.PlanRecord{ID: s.newID(), Label: label, CreatedAt: s.now(), Plan: plan}, nil
}

// Insert stores a prepared record.
func (s *Store) Insert(rec domain.PlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.labels[rec.Label]; taken {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateLabel, rec.Label)
	}
	if _, exists := s.records[rec.ID]; exists {
		return fmt.Errorf("plan id %s already stored", rec.ID)
	}
	s.records[rec.ID] = rec
	s.labels[rec.Label] = rec.ID
	return nil
}

// Save implements domain.PlanStore.
func (s *Store) Save(_ context.Context, plan *domain.Plan) (domain.PlanRecord, error) {
	rec, err := s.Prepare(plan)
	if err != nil {
		return domain.PlanRecord{}, err
	}
	if err := s.Insert(rec); err != nil {
		return domain.PlanRecord{}, err
	}
	return rec, nil
}

// Get implements domain.PlanStore.
func (s *Store) Get(_ context.Context, id string) (domain.PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return domain.PlanRecord{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	return rec, nil
}

// GetByLabel returns the record stored under label.
func (s *Store) GetByLabel(ctx context.Context, label string) (domain.PlanRecord, error) {
	s.mu.RLock()
	id, ok := s.labels[label]
	s.mu.RUnlock()
	if !ok {
		return domain.PlanRecord{}, fmt.Errorf("%w: label %s", domain.ErrNotFound, label)
	}
	return s.Get(ctx, id)
}

// List implements domain.PlanStore, ordering by creation time then label.
func (s *Store) List(_ context.Context) ([]domain.PlanRecord, error) {
	s.mu.RLock()
	out := make([]domain.PlanRecord, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b domain.PlanRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.Label, b.Label)
	})
	return out, nil
}

// Import replaces the contents with records loaded from a backing database.
func (s *Store) Import(records []domain.PlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.PlanRecord, len(records))
	s.labels = make(map[string]string, len(records))
	for _, rec := range records {
		if rec.Plan == nil {
			return fmt.Errorf("record %s has no plan", rec.ID)
		}
		if _, dup := s.labels[rec.Label]; dup {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateLabel, rec.Label)
		}
		s.records[rec.ID] = rec
		s.labels[rec.Label] = rec.ID
	}
	return nil
}
