package attendance

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCSVStore(t *testing.T) *CSVStore {
	t.Helper()
	store := NewCSVStore(filepath.Join(t.TempDir(), "data"), DefaultLayout(), newStepClock())
	require.NoError(t, store.EnsureSchema(context.Background()))
	return store
}

func TestCSVStoreEnsureSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestCSVStore(t)

	_, err := store.AppendSector(ctx, "Expedição")
	require.NoError(t, err)
	require.NoError(t, store.EnsureSchema(ctx))

	sectors, err := store.Sectors(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Cabide", "Runner", "Descargar de caminhão", "Expedição"}, sectors)

	recordsPath, _ := store.Paths()
	raw, err := os.ReadFile(recordsPath)
	require.NoError(t, err)
	require.Equal(t, "Matricula,Setor,Atingimento,DataHora,Lider\n", string(raw))
}

func TestCSVStoreEnsureSchemaFillsEmptyFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewCSVStore(dir, DefaultLayout(), newStepClock())
	recordsPath, sectorsPath := store.Paths()
	require.NoError(t, os.WriteFile(recordsPath, nil, 0o644))
	require.NoError(t, os.WriteFile(sectorsPath, nil, 0o644))

	require.NoError(t, store.EnsureSchema(ctx))

	sectors, err := store.Sectors(ctx)
	require.NoError(t, err)
	require.Equal(t, DefaultSectors, sectors)

	stored, err := store.Append(ctx, Record{BadgeID: "4821", Sector: "Cabide", Tier: "Menor que 120%", LeaderName: "Ana"})
	require.NoError(t, err)
	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []Record{stored}, records)

	raw, err := os.ReadFile(recordsPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(raw), "Matricula,Setor,Atingimento,DataHora,Lider\n"))
}

func TestCSVStoreEnsureSchemaKeepsExistingRows(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewCSVStore(dir, DefaultLayout(), newStepClock())
	_, sectorsPath := store.Paths()
	require.NoError(t, os.WriteFile(sectorsPath, []byte("Setor\nExpedição\n"), 0o644))

	require.NoError(t, store.EnsureSchema(ctx))

	sectors, err := store.Sectors(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Expedição"}, sectors)
}

func TestCSVStoreTrimsHandEditedSectors(t *testing.T) {
	ctx := context.Background()
	store := NewCSVStore(t.TempDir(), DefaultLayout(), newStepClock())
	_, sectorsPath := store.Paths()
	require.NoError(t, os.WriteFile(sectorsPath, []byte("Setor\n Runner \n"), 0o644))
	require.NoError(t, store.EnsureSchema(ctx))

	sectors, err := store.Sectors(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Runner"}, sectors)

	outcome, err := store.AppendSector(ctx, "Runner")
	require.NoError(t, err)
	require.Equal(t, SectorExists, outcome)
}

func TestCSVStoreAppendThenLoad(t *testing.T) {
	ctx := context.Background()
	store := newTestCSVStore(t)

	first, err := store.Append(ctx, Record{BadgeID: "4821", Sector: "Cabide", Tier: "Menor que 120%", LeaderName: "Ana"})
	require.NoError(t, err)
	require.Equal(t, "2025-06-02 07:30:00", first.Timestamp)

	second, err := store.Append(ctx, Record{BadgeID: "77310", Sector: "Descargar de caminhão, doca 2", Tier: "Maior que 140%", LeaderName: "Bruno"})
	require.NoError(t, err)

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []Record{first, second}, records)
	require.Greater(t, second.Timestamp, first.Timestamp)
}

func TestCSVStoreAppendSectorReportsExisting(t *testing.T) {
	ctx := context.Background()
	store := newTestCSVStore(t)

	outcome, err := store.AppendSector(ctx, " Runner ")
	require.NoError(t, err)
	require.Equal(t, SectorExists, outcome)

	outcome, err = store.AppendSector(ctx, "runner")
	require.NoError(t, err)
	require.Equal(t, SectorAdded, outcome, "names are case-sensitive")

	_, err = store.AppendSector(ctx, "  ")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCSVStoreLoadSkipsBlankRowsAndShortRows(t *testing.T) {
	ctx := context.Background()
	store := newTestCSVStore(t)
	recordsPath, _ := store.Paths()

	f, err := os.OpenFile(recordsPath, os.O_WRONLY|os.O_APPEND, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(",,,,\n1234,Runner\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []Record{{BadgeID: "1234", Sector: "Runner"}}, records)
}

func TestCSVStoreMissingFilesAreReadErrors(t *testing.T) {
	store := NewCSVStore(filepath.Join(t.TempDir(), "missing"), DefaultLayout(), newStepClock())

	_, err := store.LoadAll(context.Background())
	require.ErrorIs(t, err, ErrStoreRead)

	_, err = store.Append(context.Background(), Record{BadgeID: "4821"})
	require.ErrorIs(t, err, ErrStoreWrite)
}

func TestCSVStoreEnsureSchemaReportsUnwritableDir(t *testing.T) {
	parent := t.TempDir()
	blocker := filepath.Join(parent, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	store := NewCSVStore(filepath.Join(blocker, "data"), DefaultLayout(), nil)
	err := store.EnsureSchema(context.Background())
	require.ErrorIs(t, err, ErrStoreConnection)
	require.True(t, strings.Contains(Hint(err), blocker))
}
