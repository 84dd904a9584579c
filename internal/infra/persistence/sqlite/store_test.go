package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"poolcore/pkg/domain"
)

func testPlan(label string) *domain.Plan {
	series := domain.NewWorklistSeries()
	_ = series.Add(domain.Worklist{Label: label + "_stock_buffer", Entries: []domain.BufferTransferEntry{
		{Target: domain.Position{Row: 1, Column: 2}, Volume: 7e-5, Diluent: domain.DiluentAnnealingBuffer},
	}})
	return domain.NewPlan(domain.PlanParams{
		Label:               label,
		Requester:           domain.Principal{Username: "alice"},
		Owner:               domain.Principal{Username: "stockmanagement"},
		PlateCount:          1,
		AliquotCount:        1,
		Worklists:           series,
		Pools:               domain.PoolSet{{ID: "p1", MoleculeDesignIDs: []string{"1", "2", "3"}, MoleculeType: domain.MoleculeTypeSiRNA}},
		MoleculeType:        domain.MoleculeTypeSiRNA,
		DesignsPerPool:      3,
		FinalVolume:         1e-4,
		FinalConcentration:  1.5e-5,
		StockTransferVolume: 1e-5,
		BufferVolume:        7e-5,
		Layout:              domain.BaseLayout{Shape: domain.Shape96, Positions: []domain.Position{{Row: 1, Column: 2}}},
	})
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "plans.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec, err := store.Save(ctx, testPlan("lib-A"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Save(ctx, testPlan("lib-A")); !errors.Is(err, domain.ErrDuplicateLabel) {
		t.Fatalf("expected duplicate label, got %v", err)
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %s", store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := reopened.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.CreatedAt.Equal(rec.CreatedAt) || got.Label != "lib-A" {
		t.Fatalf("unexpected record %+v", got)
	}
	plan := got.Plan
	if plan.BufferVolume() != 7e-5 || plan.DesignsPerPool() != 3 || plan.Layout().Positions[0].Label() != "B3" {
		t.Fatalf("plan did not round trip: %+v", plan)
	}
	wl, ok := plan.Worklists().Get(0)
	if !ok || wl.Entries[0].Volume != 7e-5 {
		t.Fatalf("worklist did not round trip: %+v", wl)
	}
	if _, err := reopened.Save(ctx, testPlan("lib-A")); !errors.Is(err, domain.ErrDuplicateLabel) {
		t.Fatalf("reloaded labels must stay reserved, got %v", err)
	}
	list, _ := reopened.List(ctx)
	if len(list) != 1 {
		t.Fatalf("expected one record, got %d", len(list))
	}
}

func TestStoreRowConflict(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(filepath.Join(t.TempDir(), "plans.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.DB().ExecContext(ctx, `INSERT INTO plans (id, label, created_at, payload) VALUES ('x', 'taken', '2026-01-01T00:00:00Z', '{}')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := store.Save(ctx, testPlan("taken")); !errors.Is(err, domain.ErrDuplicateLabel) {
		t.Fatalf("expected duplicate label from database, got %v", err)
	}
	if _, err := store.GetByLabel(ctx, "taken"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("failed insert must not reach the working set")
	}
}

func TestStoreRejectsCorruptRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "plans.db")
	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `INSERT INTO plans (id, label, created_at, payload) VALUES ('x', 'bad', '2026-01-01T00:00:00Z', 'not json')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(path); err == nil {
		t.Fatalf("expected decode error on reopen")
	}
}
