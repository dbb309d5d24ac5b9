package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"crnumbers/internal/core"
)

type SQLiteRepository struct {
	db *sql.DB
}

var (
	_ StagingStore = (*SQLiteRepository)(nil)
	_ ReportStore  = (*SQLiteRepository)(nil)
	_ Pinger       = (*SQLiteRepository)(nil)
)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Writes are serialized on a single connection; SQLite allows one writer anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

// Put implements StagingStore.
func (r *SQLiteRepository) Put(ctx context.Context, e core.StagingEntry, replace bool) (core.StagingEntry, error) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.StagingEntry{}, fmt.Errorf("begin staging tx: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM staging_entries WHERE date = ? AND field_name = ?`,
			e.Date.String(), string(e.FieldName)); err != nil {
			return core.StagingEntry{}, fmt.Errorf("replace staging entry: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO staging_entries (id, date, field_name, value, comment, section_group, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date.String(), string(e.FieldName), e.Value, e.Comment, e.SectionGroup,
		e.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return core.StagingEntry{}, fmt.Errorf("insert staging entry %s/%s: %w", e.Date, e.FieldName, core.ErrDuplicateKey)
		}
		return core.StagingEntry{}, fmt.Errorf("insert staging entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.StagingEntry{}, fmt.Errorf("commit staging entry: %w", err)
	}

	slog.DebugContext(ctx, "Staging entry saved",
		"id", e.ID,
		"date", e.Date.String(),
		"field", e.FieldName,
		"replace", replace)

	return e, nil
}

// ListByDate implements StagingStore.
func (r *SQLiteRepository) ListByDate(ctx context.Context, date core.Date) ([]core.StagingEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, field_name, value, comment, section_group, created_at
		 FROM staging_entries WHERE date = ? ORDER BY created_at, field_name`,
		date.String())
	if err != nil {
		return nil, fmt.Errorf("query staging entries: %w", err)
	}
	defer rows.Close()

	var out []core.StagingEntry
	for rows.Next() {
		var (
			e                 core.StagingEntry
			day, field, added string
		)
		if err := rows.Scan(&e.ID, &day, &field, &e.Value, &e.Comment, &e.SectionGroup, &added); err != nil {
			return nil, fmt.Errorf("scan staging entry: %w", err)
		}
		if e.Date, err = core.ParseDate(day); err != nil {
			return nil, fmt.Errorf("staging entry %s: %w", e.ID, err)
		}
		e.FieldName = core.Metric(field)
		e.CreatedAt = parseTimestamp(added)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate staging entries: %w", err)
	}
	if len(out) == 0 {
		return nil, core.ErrNotFound
	}
	return out, nil
}

// DeleteByDate implements StagingStore.
func (r *SQLiteRepository) DeleteByDate(ctx context.Context, date core.Date) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM staging_entries WHERE date = ?`, date.String())
	if err != nil {
		return 0, fmt.Errorf("delete staging entries: %w", err)
	}
	return res.RowsAffected()
}

// Dates implements StagingStore.
func (r *SQLiteRepository) Dates(ctx context.Context) ([]core.Date, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT date FROM staging_entries ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("query staging dates: %w", err)
	}
	defer rows.Close()

	var out []core.Date
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan staging date: %w", err)
		}
		d, err := core.ParseDate(day)
		if err != nil {
			return nil, fmt.Errorf("staging date %q: %w", day, err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// metricColumns maps each metric to its reports column, in core.Metrics order.
var metricColumns = func() []string {
	cols := make([]string, len(core.Metrics))
	for i, m := range core.Metrics {
		cols[i] = snakeCase(string(m))
	}
	return cols
}()

var reportColumns = strings.Join(append([]string{"id", "date"}, append(metricColumns,
	"book_sales", "comment", "submitted_by", "approved",
	"total_funds", "total_attendance", "total_small_group", "created_at", "updated_at")...), ", ")

func snakeCase(s string) string {
	var b strings.Builder
	for i, c := range s {
		if unicode.IsUpper(c) {
			if i > 0 {
				b.WriteByte('_')
			}
			c = unicode.ToLower(c)
		}
		b.WriteRune(c)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(s rowScanner) (core.Report, error) {
	var (
		rep              core.Report
		day              string
		approved         int
		created, updated string
	)
	metrics := make([]float64, len(core.Metrics))
	dest := []any{&rep.ID, &day}
	for i := range metrics {
		dest = append(dest, &metrics[i])
	}
	dest = append(dest, &rep.BookSales, &rep.Comment, &rep.SubmittedBy, &approved,
		&rep.TotalFunds, &rep.TotalAttendance, &rep.TotalSmallGroup, &created, &updated)

	if err := s.Scan(dest...); err != nil {
		return core.Report{}, err
	}

	d, err := core.ParseDate(day)
	if err != nil {
		return core.Report{}, fmt.Errorf("report %s: %w", rep.ID, err)
	}
	rep.Date = d
	rep.Approved = approved != 0
	rep.Values = make(map[core.Metric]float64, len(core.Metrics))
	for i, m := range core.Metrics {
		rep.Values[m] = metrics[i]
	}
	rep.CreatedAt = parseTimestamp(created)
	rep.UpdatedAt = parseTimestamp(updated)
	return rep, nil
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Get implements ReportStore.
func (r *SQLiteRepository) Get(ctx context.Context, date core.Date) (core.Report, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE date = ?`, date.String())
	rep, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Report{}, core.ErrNotFound
	}
	if err != nil {
		return core.Report{}, fmt.Errorf("get report %s: %w", date, err)
	}
	return rep, nil
}

// Create implements ReportStore.
func (r *SQLiteRepository) Create(ctx context.Context, rep core.Report) (core.Report, error) {
	now := time.Now().UTC()
	rep.ID = uuid.NewString()
	rep.CreatedAt = now
	rep.UpdatedAt = now
	if rep.SubmittedBy == "" {
		rep.SubmittedBy = core.DefaultSubmitter
	}

	args := []any{rep.ID, rep.Date.String()}
	for _, m := range core.Metrics {
		args = append(args, rep.Value(m))
	}
	approved := 0
	if rep.Approved {
		approved = 1
	}
	args = append(args, rep.BookSales, rep.Comment, rep.SubmittedBy, approved,
		rep.TotalFunds, rep.TotalAttendance, rep.TotalSmallGroup,
		now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reports (`+reportColumns+`) VALUES (`+placeholders+`)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return core.Report{}, fmt.Errorf("insert report %s: %w", rep.Date, core.ErrDuplicateKey)
		}
		return core.Report{}, fmt.Errorf("insert report: %w", err)
	}

	slog.InfoContext(ctx, "Report saved to SQLite",
		"id", rep.ID,
		"date", rep.Date.String(),
		"total_funds", rep.TotalFunds,
		"total_attendance", rep.TotalAttendance)

	return rep, nil
}

// List implements ReportStore.
func (r *SQLiteRepository) List(ctx context.Context, offset, limit int) ([]core.Report, error) {
	if offset < 0 {
		return nil, fmt.Errorf("negative offset %d", offset)
	}
	return r.query(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY date DESC LIMIT ? OFFSET ?`, limit, offset)
}

// All implements ReportStore.
func (r *SQLiteRepository) All(ctx context.Context) ([]core.Report, error) {
	return r.query(ctx, `SELECT `+reportColumns+` FROM reports ORDER BY date DESC`)
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]core.Report, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	out := []core.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

// Count implements ReportStore.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count reports: %w", err)
	}
	return n, nil
}

// UpdateTotals implements ReportStore.
func (r *SQLiteRepository) UpdateTotals(ctx context.Context, date core.Date, t core.Totals) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reports SET total_funds = ?, total_attendance = ?, total_small_group = ?, updated_at = ?
		 WHERE date = ?`,
		t.Funds, t.Attendance, t.SmallGroup, time.Now().UTC().Format(time.RFC3339Nano), date.String())
	if err != nil {
		return fmt.Errorf("update report totals: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update report totals: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}
