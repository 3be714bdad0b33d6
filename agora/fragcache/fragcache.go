// Package fragcache keeps dereferenced entity fragments across executions. The
// cache is keyed by entity identifier alone, so fragments loaded through one
// gateway serve every later execution that reaches the same entity. Concurrent
// loads of one identifier are coalesced.
package fragcache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/metric"
	"github.com/c360/semql/pkg/cache"
	"github.com/c360/semql/rdf"
)

type entry struct {
	graph *rdf.Graph
	meta  agora.Metadata
}

// Cache stores entity fragments.
type Cache struct {
	entries cache.Cache[entry]
	group   singleflight.Group
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics exports the cache statistics to registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// New creates a cache from cfg. A disabled cfg stores nothing but still
// coalesces concurrent loads and rejects empty identifiers.
func New(cfg cache.Config, opts ...Option) (*Cache, error) {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	entries, err := cache.NewFromConfig(cfg, cache.WithMetrics[entry](o.registry, "fragcache"))
	if err != nil {
		return nil, errors.Wrap(err, "fragcache", "New", "create cache")
	}
	return &Cache{
		entries: entries,
		logger:  o.logger.With("component", "fragcache"),
		tracer:  otel.Tracer("github.com/c360/semql/agora/fragcache"),
	}, nil
}

// Wrap returns a loader that answers from the cache and falls back to inner.
// A nil inner stays nil so callers still see that no loader is installed.
func (c *Cache) Wrap(inner agora.Loader) agora.Loader {
	if inner == nil {
		return nil
	}
	return agora.LoaderFunc(func(ctx context.Context, id string) (*rdf.Graph, agora.Metadata, error) {
		return c.Load(ctx, inner, id)
	})
}

// Load returns the fragment of id, loading it through inner on a miss. Callers
// receive private copies.
func (c *Cache) Load(ctx context.Context, inner agora.Loader, id string) (*rdf.Graph, agora.Metadata, error) {
	if strings.TrimSpace(id) == "" {
		c.logger.Warn("Refusing to load an empty entity identifier")
		return nil, nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty identifier", errors.ErrEntityNotFound), "fragcache", "Load", "validate identifier")
	}

	if e, ok := c.entries.Get(id); ok {
		return copyOut(e)
	}

	ctx, span := c.tracer.Start(ctx, "fragcache.load", trace.WithAttributes(attribute.String("entity", id)))
	defer span.End()

	v, err, shared := c.group.Do(id, func() (any, error) {
		if e, ok := c.entries.Get(id); ok {
			return e, nil
		}
		g, meta, err := inner.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		if g == nil {
			g = rdf.NewGraph()
		}
		e := entry{graph: g, meta: maps.Clone(meta)}
		if _, err := c.entries.Set(id, e); err != nil {
			c.logger.Debug("Fragment not cached", "entity", id, "error", err)
		}
		return e, nil
	})
	span.SetAttributes(attribute.Bool("shared", shared))
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	return copyOut(v.(entry))
}

func copyOut(e entry) (*rdf.Graph, agora.Metadata, error) {
	g := rdf.NewGraph()
	g.Merge(e.graph)
	return g, maps.Clone(e.meta), nil
}

// Invalidate drops the fragment of id.
func (c *Cache) Invalidate(id string) {
	_, _ = c.entries.Delete(id)
}

// Len returns the number of cached fragments.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Stats returns the cache statistics.
func (c *Cache) Stats() *cache.Statistics {
	return c.entries.Stats()
}

// Close releases the cache.
func (c *Cache) Close() error {
	return c.entries.Close()
}
