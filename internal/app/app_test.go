package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/automatistasidl/id-coletivo/internal/attendance"
	"github.com/automatistasidl/id-coletivo/internal/config"
	"github.com/automatistasidl/id-coletivo/internal/platform/logging"
)

func testConfig(store config.DataStore, dir string) config.Config {
	return config.Config{
		Port:      "8080",
		LogLevel:  "info",
		DataStore: store,
		Timezone:  "UTC",
		Location:  time.UTC,
		Badge:     config.BadgeConfig{MinLength: 4, MaxLength: 10},
		Catalog: config.CatalogConfig{
			RecordsTable: "Registros",
			SectorsTable: "Setores",
			Sectors:      attendance.DefaultSectors,
			Tiers:        attendance.DefaultTiers,
		},
		Cache:   config.CacheConfig{RecordsTTL: time.Minute, CatalogTTL: time.Minute},
		CSV:     config.CSVConfig{Dir: dir},
		Session: config.SessionConfig{Secret: "test", TTL: time.Hour},
	}
}

func TestNewMemoryApp(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(config.DataStoreMemory, ""), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.EnsureSchema(ctx))
	require.Nil(t, a.Exporter)
	require.NotNil(t, a.Sessions)

	result, err := a.Service.Submit(ctx, nil, attendance.SubmitInput{
		LeaderName: "Ana", BadgeID: "4821", Sector: "Cabide", Tier: "Menor que 120%",
	})
	require.NoError(t, err)

	records, err := a.Service.Records(ctx)
	require.NoError(t, err)
	require.Equal(t, []attendance.Record{result.Record}, records)
}

func TestNewCSVAppWithWatcher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := filepath.Join(t.TempDir(), "data")
	cfg := testConfig(config.DataStoreCSV, dir)
	cfg.CSV.Watch = true

	// The watcher needs the directory, so provision first with a plain store.
	require.NoError(t, attendance.NewCSVStore(dir, cfg.Layout(), nil).EnsureSchema(ctx))

	a, err := New(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer a.Close()
	require.NotNil(t, a.watcher)
	a.StartWatcher(ctx)

	sectors, degraded := a.Service.Sectors(ctx)
	require.False(t, degraded)
	require.Equal(t, attendance.DefaultSectors, sectors)
}

func TestEnsureSchemaAddsHint(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	a, err := New(context.Background(), testConfig(config.DataStoreCSV, filepath.Join(blocker, "data")), logging.Discard())
	require.NoError(t, err)
	defer a.Close()

	err = a.EnsureSchema(context.Background())
	require.ErrorIs(t, err, attendance.ErrStoreConnection)
	require.Contains(t, err.Error(), "to fix: check that")
}

func TestNewRejectsSheetsWithoutKey(t *testing.T) {
	cfg := testConfig(config.DataStoreSheets, "")
	cfg.Sheets.SpreadsheetID = "sheet-123"

	_, err := New(context.Background(), cfg, logging.Discard())
	require.ErrorIs(t, err, attendance.ErrStoreConnection)
}
