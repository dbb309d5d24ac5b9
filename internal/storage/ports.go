package storage

import (
	"context"

	"crnumbers/internal/core"
)

// Ports for the persistence adapters.
type (
	// StagingStore holds per-field entries until a date is finalized.
	StagingStore interface {
		// Put inserts the entry and returns it with its ID and creation time set.
		// With replace, any entry for the same (date, field) is removed in the same transaction.
		// A second entry for the same (date, field) fails with core.ErrDuplicateKey.
		Put(ctx context.Context, e core.StagingEntry, replace bool) (core.StagingEntry, error)
		// ListByDate returns core.ErrNotFound when the date has no entries.
		ListByDate(ctx context.Context, date core.Date) ([]core.StagingEntry, error)
		DeleteByDate(ctx context.Context, date core.Date) (int64, error)
		// Dates lists every date that has at least one staging entry.
		Dates(ctx context.Context) ([]core.Date, error)
	}

	// ReportStore holds one finalized report per date.
	ReportStore interface {
		Get(ctx context.Context, date core.Date) (core.Report, error)
		// Create fails with core.ErrDuplicateKey when the date already has a report.
		Create(ctx context.Context, r core.Report) (core.Report, error)
		// List returns reports newest date first.
		List(ctx context.Context, offset, limit int) ([]core.Report, error)
		Count(ctx context.Context) (int, error)
		All(ctx context.Context) ([]core.Report, error)
		UpdateTotals(ctx context.Context, date core.Date, t core.Totals) error
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)
