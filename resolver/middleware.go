// Package resolver resolves the fields of a synthesized schema against graph
// fragments fetched on demand.
//
// Root list fields are answered by a DataGraph: the planner turns the query
// into a fragment request whose subjects become the root entities. Every
// nested field reads one property of its parent entity through the execution's
// EntityCache, which loads each entity at most once and memoizes property
// values per predicate.
//
// Entities travel through the executor as *Node values carrying the loader and
// cache of the execution they belong to.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/printer"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/match"
	"github.com/c360/semql/metric"
	"github.com/c360/semql/rdf"
	"github.com/c360/semql/schema"
)

// Node is an entity in the result tree.
type Node struct {
	ID string

	loader   agora.Loader
	entities *EntityCache
	ambient  *rdf.Graph
}

// Middleware binds schema fields to graph resolution.
type Middleware struct {
	catalog fountain.Catalog
	gateway agora.Gateway
	names   *schema.Names

	logger  *slog.Logger
	metrics *metric.Metrics
	tracer  trace.Tracer

	eagerRoots bool
	wrapLoader func(agora.Loader) agora.Loader
	sem        *semaphore.Weighted

	// properties caches property lookups by parent type and field.
	properties sync.Map
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithNames resolves fields through the name map of a synthesized schema
// before falling back to name matching.
func WithNames(names *schema.Names) Option {
	return func(m *Middleware) {
		m.names = names
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Middleware) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics records resolution metrics.
func WithMetrics(metrics *metric.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = metrics
	}
}

// WithEagerRoots evaluates root fragments completely before building the root
// list instead of consuming the root stream.
func WithEagerRoots(eager bool) Option {
	return func(m *Middleware) {
		m.eagerRoots = eager
	}
}

// WithLoaderWrapper decorates every gateway loader, for instance with a
// fragment cache.
func WithLoaderWrapper(wrap func(agora.Loader) agora.Loader) Option {
	return func(m *Middleware) {
		m.wrapLoader = wrap
	}
}

// WithConcurrency resolves fields in background goroutines, at most max at a
// time. max <= 0 disables concurrent resolution.
func WithConcurrency(max int64) Option {
	return func(m *Middleware) {
		if max <= 0 {
			m.sem = nil
			return
		}
		m.sem = semaphore.NewWeighted(max)
	}
}

// New creates a middleware resolving against catalog and gateway.
func New(catalog fountain.Catalog, gateway agora.Gateway, opts ...Option) *Middleware {
	m := &Middleware{
		catalog: catalog,
		gateway: gateway,
		logger:  slog.Default(),
		tracer:  tracer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "resolver")
	return m
}

// NewExecution creates the execution state for one query.
func (m *Middleware) NewExecution(query string) *Execution {
	return &Execution{
		ID:       newExecutionID(),
		Query:    query,
		Entities: NewEntityCache(m.logger, m.metrics),
	}
}

// Bind returns the resolver of the field described by spec. It matches the
// schema.Binder signature.
func (m *Middleware) Bind(spec schema.FieldSpec) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (any, error) {
		exec := ExecutionFrom(p.Context)
		if exec != nil && exec.Introspection {
			return graphql.DefaultResolveFn(p)
		}

		if spec.Root || p.Source == nil {
			return m.run(p, spec, func() (any, error) {
				return m.resolveRoot(p, spec, exec)
			})
		}

		node, ok := p.Source.(*Node)
		if !ok {
			return graphql.DefaultResolveFn(p)
		}
		if spec.Name == schema.IdentityField {
			return node.ID, nil
		}
		return m.run(p, spec, func() (any, error) {
			return m.resolveField(p, spec, node)
		})
	}
}

type outcome struct {
	value any
	err   error
}

// run resolves inline, or in a goroutine returning a thunk when concurrency is
// enabled.
func (m *Middleware) run(p graphql.ResolveParams, spec schema.FieldSpec, fn func() (any, error)) (any, error) {
	if m.sem == nil {
		return m.guard(p, spec, fn)
	}

	done := make(chan outcome, 1)
	go func() {
		if err := m.sem.Acquire(p.Context, 1); err != nil {
			done <- outcome{err: err}
			return
		}
		defer m.sem.Release(1)
		v, err := m.guard(p, spec, fn)
		done <- outcome{value: v, err: err}
	}()

	return func() (any, error) {
		r := <-done
		return r.value, r.err
	}, nil
}

// guard times the resolution and turns panics into field errors.
func (m *Middleware) guard(p graphql.ResolveParams, spec schema.FieldSpec, fn func() (any, error)) (value any, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Field resolution panicked",
				"field", spec.Name,
				"parent_type", spec.Parent,
				"path", pathOf(p.Info),
				"panic", r)
			value = nil
			err = errors.WrapFatal(fmt.Errorf("internal error resolving %s.%s", spec.Parent, spec.Name),
				"Middleware", "resolve", "resolve field")
		}
		m.metrics.RecordFieldResolve(spec.Shape.String(), time.Since(start))
	}()

	value, err = fn()
	switch {
	case err == nil || spec.Root:
	case errors.Is(err, errors.ErrRequiredFieldMissing):
		m.logger.Debug("Required field has no value",
			"field", spec.Name, "parent_type", spec.Parent, "path", pathOf(p.Info))
	default:
		m.logger.Error("Field resolution failed",
			"field", spec.Name,
			"parent_type", spec.Parent,
			"path", pathOf(p.Info),
			"error", err)
	}
	return value, err
}

func (m *Middleware) resolveRoot(p graphql.ResolveParams, spec schema.FieldSpec, exec *Execution) (any, error) {
	key := responseKey(p.Info)
	ctx, span := m.tracer.Start(p.Context, "resolver.root", trace.WithAttributes(
		attribute.String("field", key),
		attribute.String("type", spec.RootType),
	))
	defer span.End()

	var (
		query    string
		handles  *GatewayCache
		entities *EntityCache
	)
	if exec != nil {
		query = exec.Query
		handles = exec.Gateways
		entities = exec.Entities
	}
	if query == "" {
		query = printOperation(p.Info)
	}
	if entities == nil {
		entities = NewEntityCache(m.logger, m.metrics)
	}

	dg, err := NewDataGraph(ctx, m.gateway, agora.PlanRequest{
		Query: query,
		Field: key,
		Type:  spec.RootType,
	}, p.Args, handles)
	if err != nil {
		m.logger.Error("Root resolution failed", "field", key, "path", pathOf(p.Info), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "planning failed")
		m.metrics.RecordRootResolution("error")
		return nil, err
	}

	result := "ok"
	if dg.Shared() {
		result = "shared"
	}

	loader := dg.Loader()
	if m.wrapLoader != nil {
		loader = m.wrapLoader(loader)
	}

	var nodes []any
	collect := func(id string) {
		nodes = append(nodes, &Node{ID: id, loader: loader, entities: entities, ambient: dg.Fragment()})
	}
	if m.eagerRoots {
		ids, err := dg.Roots(ctx)
		if err != nil {
			return nil, m.rootStreamFailed(span, key, err)
		}
		for _, id := range ids {
			collect(id)
		}
	} else {
		for id, err := range dg.Stream(ctx) {
			if err != nil {
				return nil, m.rootStreamFailed(span, key, err)
			}
			collect(id)
		}
	}

	m.metrics.RecordRootResolution(result)
	span.SetAttributes(attribute.Int("roots", len(nodes)))

	switch spec.Shape {
	case schema.ShapeList:
		if nodes == nil {
			return []any{}, nil
		}
		return nodes, nil
	default:
		if len(nodes) == 0 {
			return m.absent(spec)
		}
		if spec.Shape == schema.ShapeScalar {
			return nodes[0].(*Node).ID, nil
		}
		return nodes[0], nil
	}
}

func (m *Middleware) rootStreamFailed(span trace.Span, field string, err error) error {
	m.logger.Error("Root fragment evaluation failed", "field", field, "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, "fragment failed")
	m.metrics.RecordRootResolution("error")
	return errors.Wrap(err, "Middleware", "resolveRoot", "evaluate root fragment")
}

func (m *Middleware) resolveField(p graphql.ResolveParams, spec schema.FieldSpec, node *Node) (any, error) {
	ctx := p.Context

	property, ok, err := m.property(ctx, spec, p.Info)
	if err != nil {
		return nil, err
	}
	if !ok {
		m.logger.Debug("Field matches no property", "field", spec.Name, "parent_type", spec.Parent)
		return m.absent(spec)
	}

	predicate, err := fountain.ExtendURI(ctx, m.catalog, property)
	if err != nil {
		return nil, errors.Wrap(err, "Middleware", "resolveField", "expand property")
	}

	values := node.entities.Objects(ctx, node.loader, node.ID, node.ambient, predicate)
	if len(values) == 0 {
		return m.absent(spec)
	}

	switch spec.Shape {
	case schema.ShapeScalar:
		return values[len(values)-1].Native(), nil
	case schema.ShapeObject:
		last := values[len(values)-1]
		if !last.IsNode() {
			return m.absent(spec)
		}
		return m.child(node, last), nil
	default:
		out := make([]any, 0, len(values))
		for _, v := range values {
			if spec.Elem == schema.ShapeObject {
				if v.IsNode() {
					out = append(out, m.child(node, v))
				}
				continue
			}
			out = append(out, v.Native())
		}
		return out, nil
	}
}

// child builds the node of a value of parent. The parent's fragment is the
// ambient fragment of the child so blank nodes resolve locally.
func (m *Middleware) child(parent *Node, v rdf.Term) *Node {
	return &Node{
		ID:       v.Value,
		loader:   parent.loader,
		entities: parent.entities,
		ambient:  parent.entities.Fragment(parent.ID),
	}
}

// absent is the value of a field without values.
func (m *Middleware) absent(spec schema.FieldSpec) (any, error) {
	if spec.Shape == schema.ShapeList {
		return []any{}, nil
	}
	if spec.NonNull {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s.%s", errors.ErrRequiredFieldMissing, spec.Parent, spec.Name),
			"Middleware", "resolveField", "resolve required field")
	}
	return nil, nil
}

// property finds the catalog property behind a nested field: the synthesized
// name map first, then the properties of every catalog type matching the
// parent type name, first match wins.
func (m *Middleware) property(ctx context.Context, spec schema.FieldSpec, info graphql.ResolveInfo) (string, bool, error) {
	if spec.Property != "" {
		return spec.Property, true, nil
	}

	alias := responseKey(info)
	cacheKey := spec.Parent + "\x00" + spec.Name + "\x00" + alias
	if v, ok := m.properties.Load(cacheKey); ok {
		p := v.(string)
		return p, p != "", nil
	}

	var candidates []string
	if id, ok := m.names.CatalogType(spec.Parent); ok {
		candidates = []string{id}
	} else {
		types, err := m.catalog.Types(ctx)
		if err != nil {
			return "", false, errors.Wrap(err, "Middleware", "property", "list catalog types")
		}
		candidates = match.Match(match.Name(spec.Parent), types)
	}

	ids := []match.Identifier{match.Field(alias, spec.Name)}
	if ids[0].Alias != "" {
		ids = append(ids, match.Name(spec.Name))
	}

	found := ""
	for _, c := range candidates {
		t, err := m.catalog.Type(ctx, c)
		if err != nil {
			return "", false, errors.Wrap(err, "Middleware", "property", "lookup type "+c)
		}
		for _, id := range ids {
			if p, ok := match.Pick(id, t.Properties); ok {
				found = p
				break
			}
		}
		if found != "" {
			break
		}
	}

	m.properties.Store(cacheKey, found)
	return found, found != "", nil
}

func responseKey(info graphql.ResolveInfo) string {
	if len(info.FieldASTs) > 0 {
		f := info.FieldASTs[0]
		if f.Alias != nil && f.Alias.Value != "" {
			return f.Alias.Value
		}
		if f.Name != nil {
			return f.Name.Value
		}
	}
	return info.FieldName
}

func pathOf(info graphql.ResolveInfo) string {
	if info.Path == nil {
		return ""
	}
	parts := info.Path.AsArray()
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = fmt.Sprint(p)
	}
	return strings.Join(out, ".")
}

// printOperation renders the executing operation and its fragments, for
// callers that execute without an Execution.
func printOperation(info graphql.ResolveInfo) string {
	var b strings.Builder
	if info.Operation != nil {
		if s, ok := printer.Print(info.Operation).(string); ok {
			b.WriteString(s)
		}
	}
	for _, frag := range info.Fragments {
		if s, ok := printer.Print(frag).(string); ok {
			b.WriteString("\n")
			b.WriteString(s)
		}
	}
	return b.String()
}
