package attendance

import (
	"context"
	"time"

	"github.com/automatistasidl/id-coletivo/internal/cache"
)

// CachedStore memoizes LoadAll and Sectors for a fixed TTL each. Successful writes drop
// the affected cache so the next read reflects them.
type CachedStore struct {
	Store
	records *cache.Memo[[]Record]
	sectors *cache.Memo[[]string]
}

// NewCachedStore wraps store. A TTL <= 0 disables caching for that query.
func NewCachedStore(store Store, recordsTTL, sectorsTTL time.Duration, opts ...cache.Option) *CachedStore {
	return &CachedStore{
		Store:   store,
		records: cache.NewMemo[[]Record]("records", recordsTTL, opts...),
		sectors: cache.NewMemo[[]string]("sectors", sectorsTTL, opts...),
	}
}

// LoadAll returns a copy of the cached record list.
func (c *CachedStore) LoadAll(ctx context.Context) ([]Record, error) {
	records, err := c.records.Get(ctx, c.Store.LoadAll)
	if err != nil {
		return nil, err
	}
	return append([]Record(nil), records...), nil
}

// Sectors returns a copy of the cached catalog.
func (c *CachedStore) Sectors(ctx context.Context) ([]string, error) {
	sectors, err := c.sectors.Get(ctx, c.Store.Sectors)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), sectors...), nil
}

// Append writes through and invalidates the record cache.
func (c *CachedStore) Append(ctx context.Context, record Record) (Record, error) {
	stored, err := c.Store.Append(ctx, record)
	if err != nil {
		return Record{}, err
	}
	c.records.Invalidate()
	return stored, nil
}

// AppendSector writes through the backend's own uncached membership check.
func (c *CachedStore) AppendSector(ctx context.Context, name string) (AppendOutcome, error) {
	outcome, err := c.Store.AppendSector(ctx, name)
	if err != nil {
		return 0, err
	}
	c.sectors.Invalidate()
	return outcome, nil
}

// Invalidate drops both caches.
func (c *CachedStore) Invalidate() {
	c.records.Invalidate()
	c.sectors.Invalidate()
}
