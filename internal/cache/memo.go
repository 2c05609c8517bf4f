// Package cache memoizes read queries for a fixed time-to-live.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/automatistasidl/id-coletivo/internal/observability"
)

// Memo caches the result of one query. Concurrent misses share a single load, and
// Invalidate guarantees the next Get goes to the loader.
type Memo[T any] struct {
	name  string
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.Mutex
	value   T
	valid   bool
	expires time.Time
	gen     uint64
}

// Option configures a Memo.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewMemo returns a memo named for metrics. A ttl <= 0 disables caching.
func NewMemo[T any](name string, ttl time.Duration, opts ...Option) *Memo[T] {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return &Memo[T]{name: name, ttl: ttl, now: o.now}
}

// Get returns the cached value or calls load. Errors are never cached.
func (m *Memo[T]) Get(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	if m.ttl <= 0 {
		observability.RecordCacheLookup(m.name, false)
		return load(ctx)
	}

	m.mu.Lock()
	if m.valid && m.now().Before(m.expires) {
		value := m.value
		m.mu.Unlock()
		observability.RecordCacheLookup(m.name, true)
		return value, nil
	}
	gen := m.gen
	m.mu.Unlock()
	observability.RecordCacheLookup(m.name, false)

	// Keyed by generation so callers arriving after Invalidate never join a stale load.
	// The shared load is detached from the caller that started it; each caller only
	// stops waiting when its own context ends.
	ch := m.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		value, err := load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		if m.gen == gen {
			m.value = value
			m.valid = true
			m.expires = m.now().Add(m.ttl)
		}
		m.mu.Unlock()
		return value, nil
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// Invalidate drops the cached value.
func (m *Memo[T]) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	var zero T
	m.value = zero
	m.valid = false
	m.gen++
}
