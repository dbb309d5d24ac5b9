package memory

import (
	"context"
	"errors"
	"testing"

	"crnumbers/internal/core"
)

func TestStagingUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()
	day := core.NewDate(2025, 2, 19)

	if _, err := s.Put(ctx, core.StagingEntry{Date: day, FieldName: core.Teens, Value: 1}, false); err != nil {
		t.Fatalf("first put: %v", err)
	}
	if _, err := s.Put(ctx, core.StagingEntry{Date: day, FieldName: core.Teens, Value: 2}, false); !errors.Is(err, core.ErrDuplicateKey) {
		t.Fatalf("expected duplicate key, got %v", err)
	}
	if _, err := s.Put(ctx, core.StagingEntry{Date: day, FieldName: core.Teens, Value: 3}, true); err != nil {
		t.Fatalf("replace: %v", err)
	}

	entries, err := s.ListByDate(ctx, day)
	if err != nil || len(entries) != 1 || entries[0].Value != 3 {
		t.Fatalf("unexpected entries: %+v err=%v", entries, err)
	}

	if _, err := s.ListByDate(ctx, core.NewDate(2025, 2, 20)); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	n, _ := s.DeleteByDate(ctx, day)
	if n != 1 {
		t.Fatalf("expected 1 deleted, got %d", n)
	}
	if dates, _ := s.Dates(ctx); len(dates) != 0 {
		t.Fatalf("expected no dates, got %v", dates)
	}
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	s := New()

	for _, d := range []core.Date{core.NewDate(2024, 5, 3), core.NewDate(2025, 1, 3), core.NewDate(2024, 12, 6)} {
		if _, err := s.Create(ctx, core.Report{Date: d, Values: map[core.Metric]float64{core.Teens: 1}}); err != nil {
			t.Fatalf("create %s: %v", d, err)
		}
	}
	if _, err := s.Create(ctx, core.Report{Date: core.NewDate(2025, 1, 3)}); !errors.Is(err, core.ErrDuplicateKey) {
		t.Fatalf("expected duplicate key, got %v", err)
	}

	page, _ := s.List(ctx, 1, 5)
	if len(page) != 2 || page[0].Date.String() != "2024-12-06" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page, _ := s.List(ctx, 10, 5); len(page) != 0 {
		t.Fatalf("expected empty page, got %d", len(page))
	}
	if _, err := s.List(ctx, -1, 5); err == nil {
		t.Fatal("expected error for negative offset")
	}

	got, err := s.Get(ctx, core.NewDate(2025, 1, 3))
	if err != nil || got.SubmittedBy != core.DefaultSubmitter || len(got.Values) != len(core.Metrics) {
		t.Fatalf("unexpected report: %+v err=%v", got, err)
	}

	// Callers mutating a returned report must not change the stored copy.
	got.Values[core.Teens] = 99
	again, _ := s.Get(ctx, core.NewDate(2025, 1, 3))
	if again.Values[core.Teens] != 1 {
		t.Fatalf("stored report was mutated: %v", again.Values[core.Teens])
	}

	if err := s.UpdateTotals(ctx, core.NewDate(2025, 1, 3), core.Totals{Funds: 5}); err != nil {
		t.Fatalf("update totals: %v", err)
	}
	again, _ = s.Get(ctx, core.NewDate(2025, 1, 3))
	if again.TotalFunds != 5 {
		t.Fatalf("expected total funds 5, got %v", again.TotalFunds)
	}
	if err := s.UpdateTotals(ctx, core.NewDate(2000, 1, 1), core.Totals{}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
