package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"crnumbers/internal/core"
	applog "crnumbers/internal/log"
	"crnumbers/internal/storage"
)

// sectionWriteLimit bounds concurrent writes for one section submission.
const sectionWriteLimit = 4

// DuplicateSubmissionError lists the fields of a date that already had a staging entry.
type DuplicateSubmissionError struct {
	Date   core.Date
	Fields []core.Metric
}

func (e *DuplicateSubmissionError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s on %s: %s", core.ErrDuplicateSubmission, e.Date, strings.Join(names, ", "))
}

func (e *DuplicateSubmissionError) Unwrap() error { return core.ErrDuplicateSubmission }

// StagingService accepts per-field submissions ahead of finalization.
type StagingService struct {
	store  storage.StagingStore
	logger *applog.Logger
}

func NewStagingService(store storage.StagingStore, logger *applog.Logger) *StagingService {
	return &StagingService{store: store, logger: logger.WithComponent(applog.ComponentStaging)}
}

// Submit stores one entry. A second entry for the same date and field fails with
// ErrDuplicateSubmission unless replace is set.
func (s *StagingService) Submit(ctx context.Context, e core.StagingEntry, replace bool) (core.StagingEntry, error) {
	if e.SectionGroup == "" {
		e.SectionGroup = core.GroupOf(e.FieldName)
	}
	saved, err := s.store.Put(ctx, e, replace)
	if errors.Is(err, core.ErrDuplicateKey) {
		s.logger.WarnContext(ctx, "Duplicate staging submission",
			applog.FieldDate, e.Date.String(),
			applog.FieldMetric, e.FieldName)
		return core.StagingEntry{}, &DuplicateSubmissionError{Date: e.Date, Fields: []core.Metric{e.FieldName}}
	}
	if err != nil {
		return core.StagingEntry{}, fmt.Errorf("save staging entry: %w", err)
	}

	s.logger.InfoContext(ctx, "Staging entry saved",
		applog.FieldDate, saved.Date.String(),
		applog.FieldMetric, saved.FieldName,
		applog.FieldSection, saved.SectionGroup,
		"replace", replace)
	return saved, nil
}

// SubmitSection writes one entry per field concurrently and waits for all of them.
// Entries that were written are returned even when others failed. A non-duplicate failure
// takes precedence over duplicates in the returned error.
func (s *StagingService) SubmitSection(ctx context.Context, sub core.SectionSubmission) ([]core.StagingEntry, error) {
	entries := sub.Entries()
	if sub.SectionGroup == "" {
		for i := range entries {
			entries[i].SectionGroup = core.GroupOf(entries[i].FieldName)
		}
	}

	results := make([]core.StagingEntry, len(entries))
	errs := make([]error, len(entries))

	var g errgroup.Group
	g.SetLimit(sectionWriteLimit)
	for i, e := range entries {
		g.Go(func() error {
			results[i], errs[i] = s.store.Put(ctx, e, sub.Replace)
			return nil
		})
	}
	_ = g.Wait()

	var (
		saved  []core.StagingEntry
		dups   []core.Metric
		failed []error
	)
	for i, err := range errs {
		switch {
		case err == nil:
			saved = append(saved, results[i])
		case errors.Is(err, core.ErrDuplicateKey):
			dups = append(dups, entries[i].FieldName)
		default:
			failed = append(failed, fmt.Errorf("%s: %w", entries[i].FieldName, err))
		}
	}

	s.logger.InfoContext(ctx, "Section submission processed",
		applog.FieldDate, sub.Date.String(),
		applog.FieldSection, sub.SectionGroup,
		"saved", len(saved),
		"duplicates", len(dups),
		"failed", len(failed))

	if len(failed) > 0 {
		return saved, fmt.Errorf("save section entries: %w", errors.Join(failed...))
	}
	if len(dups) > 0 {
		return saved, &DuplicateSubmissionError{Date: sub.Date, Fields: dups}
	}
	return saved, nil
}

// ListByDate returns core.ErrNotFound when nothing is staged for the date.
func (s *StagingService) ListByDate(ctx context.Context, date core.Date) ([]core.StagingEntry, error) {
	entries, err := s.store.ListByDate(ctx, date)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("list staging entries: %w", err)
	}
	return entries, nil
}
