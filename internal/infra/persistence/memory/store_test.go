package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"poolcore/pkg/domain"
)

func testPlan(label string) *domain.Plan {
	series := domain.NewWorklistSeries()
	_ = series.Add(domain.Worklist{Label: label + "_stock_buffer", Entries: []domain.BufferTransferEntry{
		{Target: domain.Position{Row: 0, Column: 0}, Volume: 7e-5, Diluent: domain.DiluentAnnealingBuffer},
	}})
	return domain.NewPlan(domain.PlanParams{
		Label:     label,
		Requester: domain.Principal{Username: "alice"},
		Owner:     domain.Principal{Username: "stockmanagement"},
		Worklists: series,
		Pools:     domain.PoolSet{{ID: "p1", MoleculeDesignIDs: []string{"1", "2", "3"}, MoleculeType: domain.MoleculeTypeSiRNA}},
	})
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestSaveGetList(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	s := NewStore(WithIDGenerator(sequentialIDs()), WithClock(func() time.Time {
		tick++
		return base.Add(time.Duration(-tick) * time.Minute)
	}))

	first, err := s.Save(ctx, testPlan("lib-A"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if first.ID != "id-1" || first.Label != "lib-A" {
		t.Fatalf("unexpected record %+v", first)
	}
	second, err := s.Save(ctx, testPlan("lib-B"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.Get(ctx, first.ID)
	if err != nil || got.Plan.Label() != "lib-A" {
		t.Fatalf("get: %+v %v", got, err)
	}
	byLabel, err := s.GetByLabel(ctx, "lib-B")
	if err != nil || byLabel.ID != second.ID {
		t.Fatalf("get by label: %+v %v", byLabel, err)
	}

	list, _ := s.List(ctx)
	if len(list) != 2 || list[0].Label != "lib-B" || list[1].Label != "lib-A" {
		t.Fatalf("expected creation order, got %+v", list)
	}
}

func TestSaveRejects(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	if _, err := s.Save(ctx, testPlan("lib")); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := s.Save(ctx, testPlan("lib")); !errors.Is(err, domain.ErrDuplicateLabel) {
		t.Fatalf("expected duplicate label error, got %v", err)
	}
	if _, err := s.Save(ctx, nil); err == nil {
		t.Fatalf("expected nil plan error")
	}
	if _, err := s.Save(ctx, testPlan(" ")); err == nil {
		t.Fatalf("expected blank label error")
	}
	if _, err := s.Get(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.GetByLabel(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInsertRejectsDuplicateID(t *testing.T) {
	s := NewStore(WithIDGenerator(func() string { return "same" }))
	rec, err := s.Prepare(testPlan("a"))
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := s.Insert(rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	rec2, _ := s.Prepare(testPlan("b"))
	if err := s.Insert(rec2); err == nil {
		t.Fatalf("expected duplicate id error")
	}
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	recs := []domain.PlanRecord{
		{ID: "1", Label: "a", Plan: testPlan("a")},
		{ID: "2", Label: "b", Plan: testPlan("b")},
	}
	if err := s.Import(recs); err != nil {
		t.Fatalf("import: %v", err)
	}
	if _, err := s.Save(ctx, testPlan("a")); !errors.Is(err, domain.ErrDuplicateLabel) {
		t.Fatalf("imported labels must be reserved, got %v", err)
	}
	if err := s.Import([]domain.PlanRecord{{ID: "x", Label: "x"}}); err == nil {
		t.Fatalf("expected error for record without plan")
	}
	if err := s.Import([]domain.PlanRecord{recs[0], {ID: "3", Label: "a", Plan: testPlan("a")}}); !errors.Is(err, domain.ErrDuplicateLabel) {
		t.Fatalf("expected duplicate label on import, got %v", err)
	}
}
