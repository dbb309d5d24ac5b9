package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crnumbers/internal/config"
	"crnumbers/internal/core"
	applog "crnumbers/internal/log"
	"crnumbers/internal/notify"
	"crnumbers/internal/storage"
)

var feb19 = core.NewDate(2025, 2, 19)

func seedDB(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cli.db")
	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	_, err = repo.Create(ctx, core.Report{
		Date:   feb19,
		Values: map[core.Metric]float64{core.Donations: 100, core.FoodDonation: 25, core.Teens: 4},
	})
	require.NoError(t, err)
	_, err = repo.Put(ctx, core.StagingEntry{Date: feb19, FieldName: core.Teens, Value: 4}, false)
	require.NoError(t, err)
	_, err = repo.Put(ctx, core.StagingEntry{Date: core.NewDate(2025, 2, 26), FieldName: core.Teens, Value: 2}, false)
	require.NoError(t, err)
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func decodeData(t *testing.T, out string) map[string]any {
	t.Helper()
	var resp struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	assert.Equal(t, "ok", resp.Status)
	return resp.Data
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"migrate", "backfill-totals", "clean-pending", "stats"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "migrate", "--db", filepath.Join(t.TempDir(), "x.db"), "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestMigrate(t *testing.T) {
	out, err := run(t, "migrate", "--db", filepath.Join(t.TempDir(), "m.db"), "--format", "json")
	require.NoError(t, err)
	data := decodeData(t, out)
	assert.Equal(t, 1.0, data["version"])
	assert.Equal(t, false, data["dirty"])
}

func TestBackfillTotals(t *testing.T) {
	path := seedDB(t)

	out, err := run(t, "backfill-totals", "--db", path, "--format", "json")
	require.NoError(t, err)
	data := decodeData(t, out)
	assert.Equal(t, 1.0, data["scanned"])
	assert.Equal(t, []any{"2025-02-19"}, data["updated"])

	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()
	r, err := repo.Get(context.Background(), feb19)
	require.NoError(t, err)
	assert.Equal(t, 125.0, r.TotalFunds)
	assert.Equal(t, 4.0, r.TotalSmallGroup)

	out, err = run(t, "backfill-totals", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 0 reports, updated 0")

	out, err = run(t, "backfill-totals", "--db", path, "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 1 reports, updated 0")
}

func TestCleanPending(t *testing.T) {
	path := seedDB(t)

	out, err := run(t, "clean-pending", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 1 staging entries across 1 dates")

	repo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	defer repo.Close()
	_, err = repo.ListByDate(context.Background(), feb19)
	assert.ErrorIs(t, err, core.ErrNotFound)
	entries, err := repo.ListByDate(context.Background(), core.NewDate(2025, 2, 26))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStats(t *testing.T) {
	path := seedDB(t)

	out, err := run(t, "stats", "--db", path, "--year", "2025")
	require.NoError(t, err)
	assert.Contains(t, out, "Year 2025: 1 reports")
	assert.Contains(t, out, "Years on record: 2025")

	out, err = run(t, "stats", "--db", path, "--year", "2024", "--format", "json")
	require.NoError(t, err)
	data := decodeData(t, out)
	assert.Equal(t, 2024.0, data["year"])
}

func testLogger() *applog.Logger {
	return applog.New(applog.Config{Output: &strings.Builder{}})
}

func TestInitStores(t *testing.T) {
	stores, err := InitStores(&config.Config{DataBackend: "memory"}, testLogger())
	require.NoError(t, err)
	require.NoError(t, stores.DB.Ping(context.Background()))
	require.NoError(t, stores.Close())

	stores, err = InitStores(&config.Config{DataBackend: "sqlite", DatabasePath: filepath.Join(t.TempDir(), "s.db")}, testLogger())
	require.NoError(t, err)
	require.NoError(t, stores.DB.Ping(context.Background()))
	require.NoError(t, stores.Close())

	_, err = InitStores(&config.Config{DataBackend: "mongo"}, testLogger())
	assert.Error(t, err)
}

func TestNewNotifier(t *testing.T) {
	n, err := NewNotifier(&config.Config{}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, notify.Disabled{}, n)

	n, err = NewNotifier(&config.Config{
		SMTPHost:      "smtp.example.org",
		SMTPPort:      587,
		EmailUsername: "numbers@example.org",
		EmailAPIKey:   "secret",
		EmailFrom:     "numbers@example.org",
		EmailTo:       []string{"leader@example.org"},
	}, testLogger())
	require.NoError(t, err)
	assert.IsType(t, &notify.EmailNotifier{}, n)
}

func TestNewAMQPClientDisabled(t *testing.T) {
	client, err := NewAMQPClient(&config.Config{}, testLogger())
	require.NoError(t, err)
	assert.Nil(t, client)
}
