package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"
	"time"

	"crnumbers/internal/cache"
	"crnumbers/internal/core"
	applog "crnumbers/internal/log"
	"crnumbers/internal/storage"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 200

	// maxPage keeps (page-1)*MaxPageSize within int.
	maxPage = math.MaxInt / MaxPageSize
)

// Page is one slice of the report history, newest first.
type Page struct {
	Reports []core.Report
	Total   int
	Page    int
	Limit   int
}

// ReportService reads finalized reports and their rollups.
type ReportService struct {
	reports storage.ReportStore
	stats   cache.Cache[core.Stats]
	gen     atomic.Uint64
	logger  *applog.Logger
	now     func() time.Time
}

// NewReportService caches stats in statsCache; nil disables caching.
func NewReportService(reports storage.ReportStore, statsCache cache.Cache[core.Stats], logger *applog.Logger) *ReportService {
	return &ReportService{
		reports: reports,
		stats:   statsCache,
		logger:  logger.WithComponent(applog.ComponentReports),
		now:     time.Now,
	}
}

// NormalizePage clamps paging parameters: page defaults to 1, limit to DefaultPageSize and
// is capped at MaxPageSize. Pages past the int range are pinned so the offset never wraps.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func (s *ReportService) List(ctx context.Context, page, limit int) (Page, error) {
	page, limit = NormalizePage(page, limit)

	total, err := s.reports.Count(ctx)
	if err != nil {
		return Page{}, fmt.Errorf("count reports: %w", err)
	}
	reports, err := s.reports.List(ctx, (page-1)*limit, limit)
	if err != nil {
		return Page{}, fmt.Errorf("list reports: %w", err)
	}
	return Page{Reports: reports, Total: total, Page: page, Limit: limit}, nil
}

// Stats returns dashboard rollups for year; zero means the current year.
func (s *ReportService) Stats(ctx context.Context, year int) (core.Stats, error) {
	if year == 0 {
		year = s.now().Year()
	}
	key := strconv.Itoa(year)
	if s.stats != nil {
		if st, ok := s.stats.Get(key); ok {
			return st, nil
		}
	}
	gen := s.gen.Load()

	all, err := s.reports.All(ctx)
	if err != nil {
		return core.Stats{}, fmt.Errorf("load reports: %w", err)
	}
	st := core.BuildStats(all, year)

	// A finalize that lands while All runs bumps gen; its rollup must not be cached.
	if s.stats != nil && s.gen.Load() == gen {
		s.stats.Set(key, st)
	}
	s.logger.DebugContext(ctx, "Stats computed", "year", year, "reports", len(all))
	return st, nil
}

// Invalidate drops cached stats.
func (s *ReportService) Invalidate() {
	s.gen.Add(1)
	if s.stats != nil {
		s.stats.Purge()
	}
}
