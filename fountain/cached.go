package fountain

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/c360/semql/pkg/cache"
	"github.com/c360/semql/vocabulary"
)

// Cached memoizes a Catalog. Lookups of the same identifier are coalesced and
// answered from memory afterwards; errors are not cached.
type Cached struct {
	inner      Catalog
	types      cache.Cache[Type]
	properties cache.Cache[Property]
	group      singleflight.Group
	logger     *slog.Logger

	mu       sync.Mutex
	typeList []string
	prefixes vocabulary.Prefixes
}

// NewCached wraps inner, storing types and properties in caches built from cfg.
func NewCached(inner Catalog, logger *slog.Logger, cfg cache.Config) (*Cached, error) {
	if logger == nil {
		logger = slog.Default()
	}

	types, err := cache.NewFromConfig[Type](cfg)
	if err != nil {
		return nil, err
	}
	properties, err := cache.NewFromConfig[Property](cfg)
	if err != nil {
		return nil, err
	}

	return &Cached{
		inner:      inner,
		types:      types,
		properties: properties,
		logger:     logger.With("component", "catalog-cache"),
	}, nil
}

// Types implements Catalog.
func (c *Cached) Types(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	cached := c.typeList
	c.mu.Unlock()
	if cached != nil {
		return slices.Clone(cached), nil
	}

	v, err, _ := c.group.Do("types", func() (any, error) {
		return c.inner.Types(ctx)
	})
	if err != nil {
		return nil, err
	}
	list := v.([]string)

	c.mu.Lock()
	c.typeList = slices.Clone(list)
	c.mu.Unlock()
	return slices.Clone(list), nil
}

// Type implements Catalog.
func (c *Cached) Type(ctx context.Context, id string) (Type, error) {
	if t, ok := c.types.Get(id); ok {
		return cloneType(t), nil
	}

	v, err, _ := c.group.Do("type:"+id, func() (any, error) {
		t, err := c.inner.Type(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := c.types.Set(id, t); err != nil {
			c.logger.Debug("Type not cached", "type", id, "error", err)
		}
		return t, nil
	})
	if err != nil {
		return Type{}, err
	}
	return cloneType(v.(Type)), nil
}

// Property implements Catalog.
func (c *Cached) Property(ctx context.Context, id string) (Property, error) {
	if p, ok := c.properties.Get(id); ok {
		return cloneProperty(p), nil
	}

	v, err, _ := c.group.Do("property:"+id, func() (any, error) {
		p, err := c.inner.Property(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, err := c.properties.Set(id, p); err != nil {
			c.logger.Debug("Property not cached", "property", id, "error", err)
		}
		return p, nil
	})
	if err != nil {
		return Property{}, err
	}
	return cloneProperty(v.(Property)), nil
}

// Prefixes implements Catalog.
func (c *Cached) Prefixes(ctx context.Context) (vocabulary.Prefixes, error) {
	c.mu.Lock()
	cached := c.prefixes
	c.mu.Unlock()
	if cached != nil {
		return maps.Clone(cached), nil
	}

	p, err := c.inner.Prefixes(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.prefixes = maps.Clone(p)
	c.mu.Unlock()
	return p, nil
}

// Invalidate drops everything cached.
func (c *Cached) Invalidate() {
	_ = c.types.Clear()
	_ = c.properties.Clear()

	c.mu.Lock()
	c.typeList = nil
	c.prefixes = nil
	c.mu.Unlock()
}

// Stats returns the hit statistics of the type and property caches.
func (c *Cached) Stats() (types, properties *cache.Statistics) {
	return c.types.Stats(), c.properties.Stats()
}
