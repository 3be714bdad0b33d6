package cache

import (
	"fmt"
	"time"

	"github.com/c360/semql/errors"
)

// Strategy selects the eviction policy.
type Strategy string

const (
	// StrategySimple never evicts.
	StrategySimple Strategy = "simple"
	// StrategyLRU evicts by recency and, with a TTL, by age.
	StrategyLRU Strategy = "lru"
)

// Config describes a cache in configuration files.
type Config struct {
	Enabled  bool          `json:"enabled" yaml:"enabled"`
	Strategy Strategy      `json:"strategy" yaml:"strategy"`
	MaxSize  int           `json:"max_size" yaml:"max_size"`
	TTL      time.Duration `json:"ttl" yaml:"ttl"`
}

// DefaultConfig returns an enabled LRU cache of 1000 entries with a 5 minute TTL.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Strategy: StrategyLRU,
		MaxSize:  1000,
		TTL:      5 * time.Minute,
	}
}

// Validate checks the configuration, filling the strategy default.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Strategy == "" {
		c.Strategy = StrategyLRU
	}

	switch c.Strategy {
	case StrategySimple:
	case StrategyLRU:
		if c.MaxSize <= 0 {
			return invalidConfig("Validate", fmt.Sprintf("max_size must be positive for LRU cache, got %d", c.MaxSize))
		}
	default:
		return invalidConfig("Validate", fmt.Sprintf("unknown cache strategy: %s", c.Strategy))
	}

	if c.TTL < 0 {
		return invalidConfig("Validate", fmt.Sprintf("ttl must not be negative, got %v", c.TTL))
	}
	return nil
}

// NewFromConfig builds the cache described by config. A disabled config yields
// a cache that stores nothing.
func NewFromConfig[V any](config Config, options ...Option[V]) (Cache[V], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if !config.Enabled {
		return NewNoop[V](), nil
	}

	switch config.Strategy {
	case StrategySimple:
		return NewSimple[V](options...)
	default:
		return NewLRU[V](config.MaxSize, config.TTL, options...)
	}
}

func invalidConfig(operation, msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg), "cache", operation, "validate config")
}

// NewNoop returns a cache that never stores anything.
func NewNoop[V any]() Cache[V] {
	return &noopCache[V]{stats: NewStatistics()}
}

type noopCache[V any] struct {
	stats *Statistics
}

func (c *noopCache[V]) Get(string) (V, bool) {
	c.stats.Miss()
	var zero V
	return zero, false
}

func (c *noopCache[V]) Set(string, V) (bool, error) { return false, nil }
func (c *noopCache[V]) Delete(string) (bool, error) { return false, nil }
func (c *noopCache[V]) Clear() error                { return nil }
func (c *noopCache[V]) Size() int                   { return 0 }
func (c *noopCache[V]) Keys() []string              { return nil }
func (c *noopCache[V]) Stats() *Statistics          { return c.stats }
func (c *noopCache[V]) Close() error                { return nil }
