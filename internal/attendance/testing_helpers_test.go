package attendance

import (
	"context"
	"errors"
	"sync"
	"time"
)

type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newStepClock() *stepClock {
	return &stepClock{
		now:  time.Date(2025, time.June, 2, 7, 30, 0, 0, time.UTC),
		step: time.Second,
	}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now
	c.now = c.now.Add(c.step)
	return now
}

// fakeStore wraps a memory store and lets tests inject failures per operation.
type fakeStore struct {
	Store
	ensureErr       error
	appendErr       error
	loadErr         error
	sectorsErr      error
	appendSectorErr error
	forceExists     bool

	appendCalls       int
	appendSectorCalls int
	loadCalls         int
}

func newFakeStore() *fakeStore {
	store := NewMemoryStore(DefaultLayout(), newStepClock())
	_ = store.EnsureSchema(context.Background())
	return &fakeStore{Store: store}
}

func (f *fakeStore) EnsureSchema(ctx context.Context) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	return f.Store.EnsureSchema(ctx)
}

func (f *fakeStore) Append(ctx context.Context, r Record) (Record, error) {
	f.appendCalls++
	if f.appendErr != nil {
		return Record{}, f.appendErr
	}
	return f.Store.Append(ctx, r)
}

func (f *fakeStore) LoadAll(ctx context.Context) ([]Record, error) {
	f.loadCalls++
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.Store.LoadAll(ctx)
}

func (f *fakeStore) Sectors(ctx context.Context) ([]string, error) {
	if f.sectorsErr != nil {
		return nil, f.sectorsErr
	}
	return f.Store.Sectors(ctx)
}

func (f *fakeStore) AppendSector(ctx context.Context, name string) (AppendOutcome, error) {
	f.appendSectorCalls++
	if f.appendSectorErr != nil {
		return 0, f.appendSectorErr
	}
	if f.forceExists {
		return SectorExists, nil
	}
	return f.Store.AppendSector(ctx, name)
}

var errBoom = errors.New("boom")
