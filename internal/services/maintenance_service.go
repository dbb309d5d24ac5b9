package services

import (
	"context"
	"errors"
	"fmt"

	"crnumbers/internal/core"
	applog "crnumbers/internal/log"
	"crnumbers/internal/storage"
)

// MaintenanceService runs out-of-band repairs on stored data.
type MaintenanceService struct {
	reports storage.ReportStore
	staging storage.StagingStore
	stats   StatsInvalidator
	logger  *applog.Logger
}

func NewMaintenanceService(reports storage.ReportStore, staging storage.StagingStore, stats StatsInvalidator, logger *applog.Logger) *MaintenanceService {
	return &MaintenanceService{reports: reports, staging: staging, stats: stats, logger: logger}
}

type BackfillResult struct {
	Scanned int
	Updated []core.Date
}

// BackfillTotals recomputes derived totals. With onlyZero, only reports whose total funds are
// zero are considered; reports whose stored totals already match are left alone.
func (m *MaintenanceService) BackfillTotals(ctx context.Context, onlyZero bool) (BackfillResult, error) {
	all, err := m.reports.All(ctx)
	if err != nil {
		return BackfillResult{}, fmt.Errorf("load reports: %w", err)
	}

	var res BackfillResult
	for _, r := range all {
		if onlyZero && r.TotalFunds != 0 {
			continue
		}
		res.Scanned++
		want := core.ComputeTotals(r.Values)
		if want == r.Totals() {
			continue
		}
		if err := m.reports.UpdateTotals(ctx, r.Date, want); err != nil {
			return res, fmt.Errorf("update totals for %s: %w", r.Date, err)
		}
		res.Updated = append(res.Updated, r.Date)
		m.logger.InfoContext(ctx, "Report totals updated",
			applog.FieldOperation, applog.OpBackfill,
			applog.FieldDate, r.Date.String(),
			"total_funds", want.Funds,
			"total_attendance", want.Attendance,
			"total_small_group", want.SmallGroup)
	}

	if len(res.Updated) > 0 && m.stats != nil {
		m.stats.Invalidate()
	}
	return res, nil
}

type SweepResult struct {
	Dates   []core.Date
	Deleted int64
}

// SweepOrphanedStaging removes staging entries for dates that already have a report.
func (m *MaintenanceService) SweepOrphanedStaging(ctx context.Context) (SweepResult, error) {
	dates, err := m.staging.Dates(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list staging dates: %w", err)
	}

	var res SweepResult
	for _, d := range dates {
		finalized, err := m.isFinalized(ctx, d)
		if err != nil {
			return res, err
		}
		if !finalized {
			continue
		}
		n, err := m.staging.DeleteByDate(ctx, d)
		if err != nil {
			return res, fmt.Errorf("delete staging for %s: %w", d, err)
		}
		res.Dates = append(res.Dates, d)
		res.Deleted += n
		m.logger.InfoContext(ctx, "Orphaned staging entries removed",
			applog.FieldOperation, applog.OpSweep,
			applog.FieldDate, d.String(),
			applog.FieldCount, n)
	}
	return res, nil
}

// CleanupDate removes staging entries for date if it has been finalized. It reports whether
// the date was finalized.
func (m *MaintenanceService) CleanupDate(ctx context.Context, date core.Date) (bool, int64, error) {
	finalized, err := m.isFinalized(ctx, date)
	if err != nil || !finalized {
		return false, 0, err
	}
	n, err := m.staging.DeleteByDate(ctx, date)
	if err != nil {
		return true, 0, fmt.Errorf("delete staging for %s: %w", date, err)
	}
	return true, n, nil
}

func (m *MaintenanceService) isFinalized(ctx context.Context, date core.Date) (bool, error) {
	_, err := m.reports.Get(ctx, date)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrNotFound):
		return false, nil
	}
	return false, fmt.Errorf("get report %s: %w", date, err)
}
