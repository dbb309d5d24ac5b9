package services

import (
	"context"
	"errors"
	"fmt"

	"crnumbers/internal/core"
	applog "crnumbers/internal/log"
	"crnumbers/internal/notify"
	"crnumbers/internal/storage"
)

// CleanupScheduler queues a later retry of staging cleanup for a finalized date.
type CleanupScheduler interface {
	ScheduleCleanup(ctx context.Context, date core.Date, attempt int) error
}

// StatsInvalidator is told when finalized data changes.
type StatsInvalidator interface {
	Invalidate()
}

// Outcome describes a successful finalize. The report is durable; CleanupErr and NotifyErr
// record best-effort steps that failed afterwards.
type Outcome struct {
	Report     core.Report
	CleanupErr error
	NotifyErr  error
}

// ReconciliationService turns a date's submissions into its single finalized report.
type ReconciliationService struct {
	reports   storage.ReportStore
	staging   storage.StagingStore
	notifier  notify.Notifier
	scheduler CleanupScheduler
	stats     StatsInvalidator
	logger    *applog.Logger
}

type ReconciliationOption func(*ReconciliationService)

// WithCleanupScheduler sets where failed staging cleanups are queued.
func WithCleanupScheduler(s CleanupScheduler) ReconciliationOption {
	return func(r *ReconciliationService) { r.scheduler = s }
}

func WithStatsInvalidator(i StatsInvalidator) ReconciliationOption {
	return func(r *ReconciliationService) { r.stats = i }
}

func NewReconciliationService(reports storage.ReportStore, staging storage.StagingStore, notifier notify.Notifier, logger *applog.Logger, opts ...ReconciliationOption) *ReconciliationService {
	r := &ReconciliationService{
		reports:  reports,
		staging:  staging,
		notifier: notifier,
		logger:   logger.WithComponent(applog.ComponentReports),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Finalize saves the report for req.Date. It fails with core.ErrAlreadyFinalized when the date
// already has one, leaving the stored report untouched. Once saved, the report is never rolled
// back: staging cleanup and notification failures are reported in the Outcome.
func (s *ReconciliationService) Finalize(ctx context.Context, req core.FinalizeRequest) (Outcome, error) {
	date := req.Date

	if _, err := s.reports.Get(ctx, date); err == nil {
		return Outcome{}, core.ErrAlreadyFinalized
	} else if !errors.Is(err, core.ErrNotFound) {
		return Outcome{}, fmt.Errorf("check existing report: %w", err)
	}

	rep := BuildReport(req)
	saved, err := s.reports.Create(ctx, rep)
	if errors.Is(err, core.ErrDuplicateKey) {
		return Outcome{}, core.ErrAlreadyFinalized
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("save report: %w", err)
	}

	s.logger.InfoContext(ctx, "Report finalized",
		applog.FieldDate, date.String(),
		applog.FieldReportID, saved.ID,
		"total_funds", saved.TotalFunds,
		"total_attendance", saved.TotalAttendance,
		"total_small_group", saved.TotalSmallGroup)

	if s.stats != nil {
		s.stats.Invalidate()
	}

	// The report is committed; later steps must not be cut short by the caller going away.
	ctx = context.WithoutCancel(ctx)
	out := Outcome{Report: saved}
	out.CleanupErr = s.cleanup(ctx, date)

	if err := s.notifier.NotifyFinalized(ctx, saved); err != nil {
		s.logger.ErrorContext(ctx, "Report saved but notification failed",
			applog.FieldDate, date.String(),
			applog.FieldError, err)
		if !errors.Is(err, core.ErrEmailFailed) {
			err = fmt.Errorf("%w: %v", core.ErrEmailFailed, err)
		}
		out.NotifyErr = err
	}

	return out, nil
}

func (s *ReconciliationService) cleanup(ctx context.Context, date core.Date) error {
	n, err := s.staging.DeleteByDate(ctx, date)
	if err == nil {
		s.logger.DebugContext(ctx, "Staging entries removed",
			applog.FieldDate, date.String(),
			applog.FieldCount, n)
		return nil
	}

	s.logger.ErrorContext(ctx, "Failed to clear staging entries",
		applog.FieldDate, date.String(),
		applog.FieldError, err)
	if s.scheduler == nil {
		s.logger.WarnContext(ctx, "No cleanup queue configured, the periodic sweep will retry",
			applog.FieldDate, date.String())
		return err
	}
	if serr := s.scheduler.ScheduleCleanup(ctx, date, 1); serr != nil {
		s.logger.ErrorContext(ctx, "Failed to schedule staging cleanup",
			applog.FieldDate, date.String(),
			applog.FieldError, serr)
		return errors.Join(err, serr)
	}
	return err
}

// BuildReport computes the report to store for req. Derived totals are always recomputed and
// the approval flag always starts false.
func BuildReport(req core.FinalizeRequest) core.Report {
	values := make(map[core.Metric]float64, len(core.Metrics))
	for _, m := range core.Metrics {
		values[m] = req.Values[m]
	}

	var salesFromBooks *float64
	if v, ok := req.Values[core.SalesFromBooks]; ok {
		salesFromBooks = &v
	}
	canonical, legacy := core.ResolveBookSales(salesFromBooks, req.BookSales)
	values[core.SalesFromBooks] = canonical

	submittedBy := req.SubmittedBy
	if submittedBy == "" {
		submittedBy = core.DefaultSubmitter
	}

	rep := core.Report{
		Date:        req.Date,
		Values:      values,
		BookSales:   legacy,
		Comment:     req.Comment,
		SubmittedBy: submittedBy,
		Approved:    false,
	}
	rep.ApplyTotals(core.ComputeTotals(values))
	return rep
}
