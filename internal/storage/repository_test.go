package storage

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crnumbers/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func entry(date core.Date, m core.Metric, v float64) core.StagingEntry {
	return core.StagingEntry{Date: date, FieldName: m, Value: v, SectionGroup: core.GroupOf(m)}
}

func TestSQLiteStagingPutAndList(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	day := core.NewDate(2025, 2, 19)

	saved, err := repo.Put(ctx, entry(day, core.LargeGroupChurch, 50), false)
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.False(t, saved.CreatedAt.IsZero())

	_, err = repo.Put(ctx, entry(day, core.Children, 10), false)
	require.NoError(t, err)

	entries, err := repo.ListByDate(ctx, day)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, day, entries[0].Date)

	_, err = repo.ListByDate(ctx, core.NewDate(2025, 2, 20))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLiteStagingDuplicateAndReplace(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	day := core.NewDate(2025, 2, 19)

	_, err := repo.Put(ctx, entry(day, core.Donations, 50), false)
	require.NoError(t, err)

	_, err = repo.Put(ctx, entry(day, core.Donations, 60), false)
	assert.ErrorIs(t, err, core.ErrDuplicateKey)

	_, err = repo.Put(ctx, entry(day, core.Donations, 70), true)
	require.NoError(t, err)

	entries, err := repo.ListByDate(ctx, day)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 70.0, entries[0].Value)
}

func TestSQLiteStagingConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	day := core.NewDate(2025, 2, 19)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		ok   int
		dups int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v float64) {
			defer wg.Done()
			_, err := repo.Put(ctx, entry(day, core.Teens, v), false)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if assert.ErrorIs(t, err, core.ErrDuplicateKey) {
				dups++
			}
		}(float64(i))
	}
	wg.Wait()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, dups)
}

func TestSQLiteStagingDeleteAndDates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	feb19, feb20 := core.NewDate(2025, 2, 19), core.NewDate(2025, 2, 20)

	for _, e := range []core.StagingEntry{
		entry(feb20, core.Teens, 1),
		entry(feb19, core.Teens, 2),
		entry(feb19, core.Baptisms, 3),
	} {
		_, err := repo.Put(ctx, e, false)
		require.NoError(t, err)
	}

	dates, err := repo.Dates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.Date{feb19, feb20}, dates)

	n, err := repo.DeleteByDate(ctx, feb19)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.DeleteByDate(ctx, feb19)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)
}

func TestSQLiteReportRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	day := core.NewDate(2025, 2, 19)

	in := core.Report{
		Date: day,
		Values: map[core.Metric]float64{
			core.Donations: 100.5, core.SalesFromBooks: 50, core.LargeGroupChurch: 40,
		},
		BookSales:  50,
		Comment:    "Good night",
		TotalFunds: 150.5,
	}
	created, err := repo.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, core.DefaultSubmitter, created.SubmittedBy)

	got, err := repo.Get(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 100.5, got.Value(core.Donations))
	assert.Equal(t, 0.0, got.Value(core.Teens))
	assert.Len(t, got.Values, len(core.Metrics))
	assert.Equal(t, 50.0, got.BookSales)
	assert.Equal(t, "Good night", got.Comment)
	assert.False(t, got.Approved)
	assert.Equal(t, 150.5, got.TotalFunds)

	_, err = repo.Create(ctx, core.Report{Date: day, Comment: "second"})
	assert.ErrorIs(t, err, core.ErrDuplicateKey)

	_, err = repo.Get(ctx, core.NewDate(2024, 1, 1))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSQLiteReportListCountAndTotals(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, d := range []core.Date{core.NewDate(2024, 12, 6), core.NewDate(2025, 2, 7), core.NewDate(2025, 1, 3)} {
		_, err := repo.Create(ctx, core.Report{Date: d, Values: map[core.Metric]float64{core.Donations: 10}})
		require.NoError(t, err)
	}

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	page, err := repo.List(ctx, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "2025-02-07", page[0].Date.String())
	assert.Equal(t, "2025-01-03", page[1].Date.String())

	page, err = repo.List(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "2024-12-06", page[0].Date.String())

	page, err = repo.List(ctx, math.MaxInt/200*199, 200)
	require.NoError(t, err)
	assert.Empty(t, page)

	_, err = repo.List(ctx, -1, 2)
	assert.Error(t, err)

	day := core.NewDate(2025, 1, 3)
	require.NoError(t, repo.UpdateTotals(ctx, day, core.Totals{Funds: 10, Attendance: 2, SmallGroup: 1}))
	got, err := repo.Get(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, core.Totals{Funds: 10, Attendance: 2, SmallGroup: 1}, got.Totals())

	assert.ErrorIs(t, repo.UpdateTotals(ctx, core.NewDate(2000, 1, 1), core.Totals{}), core.ErrNotFound)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	require.NoError(t, RunMigrations(path))
	require.NoError(t, RunMigrations(path))

	v, dirty, err := MigrationVersion(path)
	require.NoError(t, err)
	assert.EqualValues(t, 1, v)
	assert.False(t, dirty)
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "large_group_church", snakeCase("largeGroupChurch"))
	assert.Equal(t, "teens", snakeCase("teens"))
	assert.Equal(t, "step_study_graduates", snakeCase("stepStudyGraduates"))
}
