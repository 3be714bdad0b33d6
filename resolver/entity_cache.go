package resolver

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/metric"
	"github.com/c360/semql/rdf"
)

// EntityCache holds the graph fragments materialized during one query
// execution, one per entity, plus a memo of the values already resolved per
// predicate. An entity is loaded at most once per cache no matter how many
// fields of it resolve concurrently.
type EntityCache struct {
	locks   LockTable
	entries sync.Map // entity id -> *entityEntry

	logger  *slog.Logger
	metrics *metric.Metrics
	tracer  trace.Tracer
}

type entityEntry struct {
	// fragment is written once, under the entity lock.
	fragment atomic.Pointer[rdf.Graph]
	memo     sync.Map // predicate -> []rdf.Term
}

// NewEntityCache creates an empty cache. logger and metrics may be nil.
func NewEntityCache(logger *slog.Logger, metrics *metric.Metrics) *EntityCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityCache{
		logger:  logger,
		metrics: metrics,
		tracer:  tracer(),
	}
}

func (c *EntityCache) entry(id string) *entityEntry {
	v, _ := c.entries.LoadOrStore(id, &entityEntry{})
	return v.(*entityEntry)
}

// Objects returns a private copy of the values of predicate on entity id.
//
// On first access the entity's fragment is materialized: the triples about id
// found in ambient, plus, for dereferenceable identifiers, the fragment
// returned by loader. A failing or missing loader is logged and treated as an
// empty fragment.
func (c *EntityCache) Objects(ctx context.Context, loader agora.Loader, id string, ambient *rdf.Graph, predicate string) []rdf.Term {
	if v, ok := c.entries.Load(id); ok {
		if values, ok := v.(*entityEntry).memo.Load(predicate); ok {
			c.metrics.RecordCacheLookup(true)
			return slices.Clone(values.([]rdf.Term))
		}
	}
	c.metrics.RecordCacheLookup(false)

	unlock := c.locks.Lock(id)
	defer unlock()

	e := c.entry(id)
	fragment := e.fragment.Load()
	if fragment == nil {
		fragment = c.materialize(ctx, loader, id, ambient)
		e.fragment.Store(fragment)
	}

	if values, ok := e.memo.Load(predicate); ok {
		return slices.Clone(values.([]rdf.Term))
	}
	values := fragment.Objects(rdf.NodeFromID(id), predicate)
	e.memo.Store(predicate, values)
	return slices.Clone(values)
}

// Fragment returns the materialized fragment of id, or nil when the entity has
// not been accessed yet. The graph is shared; callers must not modify it.
func (c *EntityCache) Fragment(id string) *rdf.Graph {
	v, ok := c.entries.Load(id)
	if !ok {
		return nil
	}
	return v.(*entityEntry).fragment.Load()
}

// Len returns the number of entities accessed so far.
func (c *EntityCache) Len() int {
	return c.locks.Len()
}

func (c *EntityCache) materialize(ctx context.Context, loader agora.Loader, id string, ambient *rdf.Graph) *rdf.Graph {
	node := rdf.NodeFromID(id)
	fragment := rdf.NewGraph()
	if ambient != nil {
		fragment.Merge(ambient.Describe(node))
	}

	if !rdf.IsDereferenceable(id) {
		c.metrics.RecordLoaderFetch("skipped")
		return fragment
	}

	ctx, span := c.tracer.Start(ctx, "EntityCache.load", trace.WithAttributes(attribute.String("entity", id)))
	defer span.End()

	loaded, err := c.load(ctx, loader, id)
	if err != nil {
		c.logger.Warn("Entity load failed, continuing with empty fragment", "entity", id, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		c.metrics.RecordLoaderFetch("error")
		return fragment
	}

	c.metrics.RecordLoaderFetch("ok")
	span.SetAttributes(attribute.Int("triples", loaded.Len()))
	fragment.Merge(loaded)
	return fragment
}

func (c *EntityCache) load(ctx context.Context, loader agora.Loader, id string) (g *rdf.Graph, err error) {
	if loader == nil {
		return nil, errors.WrapTransient(errors.ErrNoLoader, "EntityCache", "load", "load entity "+id)
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapTransient(errors.New("loader panicked"), "EntityCache", "load", "load entity "+id)
			c.logger.Error("Loader panicked", "entity", id, "panic", r)
		}
	}()

	g, _, err = loader.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		g = rdf.NewGraph()
	}
	return g, nil
}
