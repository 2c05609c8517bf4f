package attendance

import (
	"context"
	"os"
	"sync"
	"testing"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// newEmulatorFirestoreStore runs against the Firestore emulator and is skipped when it is
// not available. Each test gets its own collections.
func newEmulatorFirestoreStore(t *testing.T) *FirestoreStore {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()
	client, err := firestore.NewClient(ctx, "id-coletivo-test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	suffix := uuid.NewString()
	layout := Layout{
		RecordsTable:   "Registros-" + suffix,
		SectorsTable:   "Setores-" + suffix,
		DefaultSectors: DefaultSectors,
	}
	store := NewFirestoreStore(client, layout, newStepClock())
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestFirestoreStoreSeedsAndAppendsSectors(t *testing.T) {
	ctx := context.Background()
	store := newEmulatorFirestoreStore(t)

	require.NoError(t, store.EnsureSchema(ctx))
	sectors, err := store.Sectors(ctx)
	require.NoError(t, err)
	require.Equal(t, DefaultSectors, sectors)

	outcome, err := store.AppendSector(ctx, "Expedição")
	require.NoError(t, err)
	require.Equal(t, SectorAdded, outcome)

	outcome, err = store.AppendSector(ctx, "Expedição")
	require.NoError(t, err)
	require.Equal(t, SectorExists, outcome)

	sectors, err = store.Sectors(ctx)
	require.NoError(t, err)
	require.Equal(t, append(append([]string(nil), DefaultSectors...), "Expedição"), sectors)
}

func TestFirestoreStoreConcurrentAppendSectorAddsOnce(t *testing.T) {
	ctx := context.Background()
	store := newEmulatorFirestoreStore(t)

	const callers = 8
	outcomes := make([]AppendOutcome, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = store.AppendSector(ctx, "Doca")
		}(i)
	}
	wg.Wait()

	added := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		if outcomes[i] == SectorAdded {
			added++
		}
	}
	require.Equal(t, 1, added)

	sectors, err := store.Sectors(ctx)
	require.NoError(t, err)
	require.Len(t, sectors, len(DefaultSectors)+1)
}

func TestFirestoreStoreAppendAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newEmulatorFirestoreStore(t)

	first, err := store.Append(ctx, Record{BadgeID: "4821", Sector: "Cabide", Tier: "Menor que 120%", LeaderName: "Ana"})
	require.NoError(t, err)
	second, err := store.Append(ctx, Record{BadgeID: "5100", Sector: "Runner", Tier: "Menor que 120%", LeaderName: "Bia"})
	require.NoError(t, err)

	records, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, []Record{first, second}, records)
}
