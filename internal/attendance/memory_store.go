package attendance

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu      sync.RWMutex
	layout  Layout
	clock   Clock
	ready   bool
	records []Record
	sectors []string
}

// NewMemoryStore returns an in-memory store intended for local development and tests.
func NewMemoryStore(layout Layout, clock Clock) Store {
	if clock == nil {
		clock = NewSystemClock(nil)
	}
	return &memoryStore{layout: layout, clock: clock}
}

func (s *memoryStore) EnsureSchema(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	s.sectors = append([]string(nil), s.layout.DefaultSectors...)
	s.ready = true
	return nil
}

func (s *memoryStore) Append(_ context.Context, record Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.Timestamp = FormatTimestamp(s.clock.Now())
	s.records = append(s.records, record)
	return record, nil
}

func (s *memoryStore) LoadAll(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.records...), nil
}

func (s *memoryStore) Sectors(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.sectors...), nil
}

func (s *memoryStore) AppendSector(_ context.Context, name string) (AppendOutcome, error) {
	name, err := normalizeSectorName(name)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if containsExact(s.sectors, name) {
		return SectorExists, nil
	}
	s.sectors = append(s.sectors, name)
	return SectorAdded, nil
}
