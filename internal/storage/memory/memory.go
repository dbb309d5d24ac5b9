// Package memory is an in-process store with the same uniqueness rules as the SQLite adapter.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"crnumbers/internal/core"
	"crnumbers/internal/storage"
)

type stagingKey struct {
	date  string
	field core.Metric
}

type Store struct {
	mu      sync.Mutex
	staging map[stagingKey]core.StagingEntry
	reports map[string]core.Report
	now     func() time.Time
}

var (
	_ storage.StagingStore = (*Store)(nil)
	_ storage.ReportStore  = (*Store)(nil)
	_ storage.Pinger       = (*Store)(nil)
)

func New() *Store {
	return &Store{
		staging: make(map[stagingKey]core.StagingEntry),
		reports: make(map[string]core.Report),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// Put stores the entry under its (date, field) key.
func (s *Store) Put(_ context.Context, e core.StagingEntry, replace bool) (core.StagingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := stagingKey{date: e.Date.String(), field: e.FieldName}
	if _, exists := s.staging[key]; exists && !replace {
		return core.StagingEntry{}, fmt.Errorf("staging entry %s/%s: %w", e.Date, e.FieldName, core.ErrDuplicateKey)
	}
	e.ID = uuid.NewString()
	e.CreatedAt = s.now()
	s.staging[key] = e
	return e, nil
}

func (s *Store) ListByDate(_ context.Context, date core.Date) ([]core.StagingEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []core.StagingEntry
	for k, e := range s.staging {
		if k.date == date.String() {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return nil, core.ErrNotFound
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].FieldName < out[j].FieldName
	})
	return out, nil
}

func (s *Store) DeleteByDate(_ context.Context, date core.Date) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for k := range s.staging {
		if k.date == date.String() {
			delete(s.staging, k)
			n++
		}
	}
	return n, nil
}

func (s *Store) Dates(_ context.Context) ([]core.Date, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[string]core.Date{}
	for _, e := range s.staging {
		seen[e.Date.String()] = e.Date
	}
	out := make([]core.Date, 0, len(seen))
	for _, d := range seen {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j].Time) })
	return out, nil
}

func (s *Store) Get(_ context.Context, date core.Date) (core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[date.String()]
	if !ok {
		return core.Report{}, core.ErrNotFound
	}
	return clone(r), nil
}

func (s *Store) Create(_ context.Context, r core.Report) (core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.reports[r.Date.String()]; exists {
		return core.Report{}, fmt.Errorf("report %s: %w", r.Date, core.ErrDuplicateKey)
	}
	r = clone(r)
	r.ID = uuid.NewString()
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt
	if r.SubmittedBy == "" {
		r.SubmittedBy = core.DefaultSubmitter
	}
	for _, m := range core.Metrics {
		if _, ok := r.Values[m]; !ok {
			r.Values[m] = 0
		}
	}
	s.reports[r.Date.String()] = r
	return clone(r), nil
}

func (s *Store) List(ctx context.Context, offset, limit int) ([]core.Report, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}
	all, _ := s.All(ctx)
	if offset >= len(all) {
		return []core.Report{}, nil
	}
	end := offset + limit
	if limit < 0 || end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// All returns every report, newest date first.
func (s *Store) All(_ context.Context) ([]core.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]core.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, clone(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date.Time) })
	return out, nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports), nil
}

func (s *Store) UpdateTotals(_ context.Context, date core.Date, t core.Totals) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[date.String()]
	if !ok {
		return core.ErrNotFound
	}
	r.ApplyTotals(t)
	r.UpdatedAt = s.now()
	s.reports[date.String()] = r
	return nil
}

func clone(r core.Report) core.Report {
	values := make(map[core.Metric]float64, len(r.Values))
	for k, v := range r.Values {
		values[k] = v
	}
	r.Values = values
	return r
}
