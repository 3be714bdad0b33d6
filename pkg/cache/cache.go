// Package cache provides generic, thread-safe caches used for catalog lookups,
// gateway handles and remote graph fragments.
//
// Two policies are available:
//   - simple: no eviction, entries live until deleted
//   - lru: bounded by MaxSize, with optional per-entry TTL
//
// Every cache keeps Statistics; Prometheus export is opt-in via WithMetrics.
package cache

import (
	"time"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/metric"
)

// Cache is a string-keyed cache of V values.
type Cache[V any] interface {
	// Get returns the value and true on a hit.
	Get(key string) (V, bool)

	// Set stores value, returning true when a new entry was created.
	Set(key string, value V) (bool, error)

	// Delete removes key, returning true when it existed.
	Delete(key string) (bool, error)

	// Clear removes every entry.
	Clear() error

	// Size returns the number of live entries.
	Size() int

	// Keys returns the live keys in no particular order.
	Keys() []string

	// Stats returns the cache statistics.
	Stats() *Statistics

	// Close releases background resources.
	Close() error
}

// EvictCallback is called with every entry removed by eviction, expiry or Delete.
type EvictCallback[V any] func(key string, value V)

// Option configures a cache.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	metricsReg    *metric.MetricsRegistry
	metricsPrefix string
	evictCallback EvictCallback[V]
	now           func() time.Time
}

// WithMetrics exports the cache statistics to registry under the given
// component label. A nil registry or empty prefix disables export.
func WithMetrics[V any](registry *metric.MetricsRegistry, prefix string) Option[V] {
	return func(opts *cacheOptions[V]) {
		if registry != nil && prefix != "" {
			opts.metricsReg = registry
			opts.metricsPrefix = prefix
		}
	}
}

// WithEvictionCallback sets the eviction callback.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

// WithClock replaces time.Now for TTL bookkeeping.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(opts *cacheOptions[V]) {
		if now != nil {
			opts.now = now
		}
	}
}

func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{now: time.Now}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}

// instruments bundles the statistics and optional metrics shared by all policies.
type instruments struct {
	stats   *Statistics
	metrics *cacheMetrics
}

func newInstruments[V any](opts *cacheOptions[V], operation string) (instruments, error) {
	in := instruments{stats: NewStatistics()}
	if opts.metricsReg != nil {
		m, err := newCacheMetrics(opts.metricsReg, opts.metricsPrefix)
		if err != nil {
			return in, errors.WrapTransient(err, "cache", operation, "metrics registration")
		}
		in.metrics = m
	}
	return in, nil
}

func (in instruments) hit() {
	in.stats.Hit()
	if in.metrics != nil {
		in.metrics.hits.Inc()
	}
}

func (in instruments) miss() {
	in.stats.Miss()
	if in.metrics != nil {
		in.metrics.misses.Inc()
	}
}

func (in instruments) set(size int) {
	in.stats.Set()
	in.stats.UpdateSize(int64(size))
	if in.metrics != nil {
		in.metrics.sets.Inc()
		in.metrics.size.Set(float64(size))
	}
}

func (in instruments) deleted(size int) {
	in.stats.Delete()
	in.stats.UpdateSize(int64(size))
	if in.metrics != nil {
		in.metrics.deletes.Inc()
		in.metrics.size.Set(float64(size))
	}
}

func (in instruments) evicted(size int) {
	in.stats.Eviction()
	in.stats.UpdateSize(int64(size))
	if in.metrics != nil {
		in.metrics.evictions.Inc()
		in.metrics.size.Set(float64(size))
	}
}

func (in instruments) resized(size int) {
	in.stats.UpdateSize(int64(size))
	if in.metrics != nil {
		in.metrics.size.Set(float64(size))
	}
}
