// Package processor is the query boundary: it owns the executable schema and
// turns query text plus variables into a result or a list of errors.
//
// A Processor synthesizes its schema from the catalog at construction, or
// takes a hand-written schema document. Each Query call parses and validates
// the text before executing it with a fresh resolver.Execution, so entity
// caches never outlive one query.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/gqlerrors"
	"github.com/graphql-go/graphql/language/parser"
	"github.com/graphql-go/graphql/language/source"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/metric"
	"github.com/c360/semql/resolver"
	"github.com/c360/semql/schema"
)

// SourceName names query documents in parse errors.
const SourceName = "GraphQL request"

// Result is the outcome of one query.
type Result struct {
	Data   any                        `json:"data,omitempty"`
	Errors []gqlerrors.FormattedError `json:"errors,omitempty"`
	// Invalid is set when the query failed to parse or validate and was not
	// executed.
	Invalid bool `json:"-"`
}

// HasErrors reports whether the result carries errors.
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// Processor executes queries against a graph-backed schema.
type Processor struct {
	schema     graphql.Schema
	sdl        string
	names      *schema.Names
	middleware *resolver.Middleware
	gateways   *resolver.GatewayCache

	logger   *slog.Logger
	metrics  *metric.Metrics
	tracer   trace.Tracer
	timeout  time.Duration
	maxDepth int
}

type options struct {
	sdl             string
	identityField   bool
	shareGateways   bool
	timeout         time.Duration
	maxDepth        int
	logger          *slog.Logger
	metrics         *metric.Metrics
	resolverOptions []resolver.Option
}

// Option configures a Processor.
type Option func(*options)

// WithSchema uses a hand-written schema document instead of synthesizing one.
// Its fields are matched to catalog properties by name.
func WithSchema(sdl string) Option {
	return func(o *options) {
		o.sdl = sdl
	}
}

// WithIdentityField adds the entity identifier field to synthesized types.
func WithIdentityField(enabled bool) Option {
	return func(o *options) {
		o.identityField = enabled
	}
}

// WithSharedGateways reuses gateway handles across queries with identical
// text and root field.
func WithSharedGateways(enabled bool) Option {
	return func(o *options) {
		o.shareGateways = enabled
	}
}

// WithTimeout bounds the execution of each query. Zero means no bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithMaxDepth rejects queries nesting fields deeper than n. Meta fields do
// not count. Zero means no limit.
func WithMaxDepth(n int) Option {
	return func(o *options) {
		o.maxDepth = n
	}
}

// WithLogger sets the logger of the processor and its resolver.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics records query, schema and resolver metrics.
func WithMetrics(metrics *metric.Metrics) Option {
	return func(o *options) {
		o.metrics = metrics
	}
}

// WithResolverOptions passes options to the field resolution middleware.
func WithResolverOptions(opts ...resolver.Option) Option {
	return func(o *options) {
		o.resolverOptions = append(o.resolverOptions, opts...)
	}
}

// New builds the schema and the resolver of a processor.
func New(ctx context.Context, catalog fountain.Catalog, gateway agora.Gateway, opts ...Option) (*Processor, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if catalog == nil || gateway == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Processor", "New", "catalog and gateway are required")
	}

	p := &Processor{
		logger:   o.logger.With("component", "processor"),
		metrics:  o.metrics,
		tracer:   otel.Tracer("github.com/c360/semql/processor"),
		timeout:  o.timeout,
		maxDepth: o.maxDepth,
	}

	p.sdl = o.sdl
	if p.sdl == "" {
		res, err := schema.NewSynthesizer(catalog,
			schema.WithDiscoverer(gateway),
			schema.WithIdentityField(o.identityField),
			schema.WithLogger(o.logger),
		).Synthesize(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "Processor", "New", "synthesize schema")
		}
		p.sdl, p.names = res.SDL, res.Names
		p.metrics.RecordSchemaTypes(res.Types)
	} else {
		p.logger.Info("Using schema document from configuration")
	}

	if o.shareGateways {
		gateways, err := resolver.NewGatewayCache()
		if err != nil {
			return nil, errors.Wrap(err, "Processor", "New", "create gateway cache")
		}
		p.gateways = gateways
	}

	resolverOpts := append([]resolver.Option{
		resolver.WithNames(p.names),
		resolver.WithLogger(o.logger),
		resolver.WithMetrics(o.metrics),
	}, o.resolverOptions...)
	p.middleware = resolver.New(catalog, gateway, resolverOpts...)

	s, err := schema.Build(p.sdl, p.names, p.middleware.Bind)
	if err != nil {
		return nil, errors.Wrap(err, "Processor", "New", "build executable schema")
	}
	p.schema = s
	return p, nil
}

// SDL returns the schema document the processor executes against.
func (p *Processor) SDL() string {
	return p.sdl
}

// Schema returns the executable schema.
func (p *Processor) Schema() graphql.Schema {
	return p.schema
}

// Names returns the name map of a synthesized schema, or nil for a
// hand-written one.
func (p *Processor) Names() *schema.Names {
	return p.names
}

// Query parses, validates and executes text. Parse and validation failures
// return an Invalid result without executing anything; execution errors are
// returned alongside the partial data.
func (p *Processor) Query(ctx context.Context, text string, variables map[string]any, operationName string) *Result {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "processor.query", trace.WithAttributes(
		attribute.String("operation", operationName),
	))
	defer span.End()

	doc, err := parser.Parse(parser.ParseParams{
		Source: source.NewSource(&source.Source{Body: []byte(text), Name: SourceName}),
	})
	if err != nil {
		p.logger.Debug("Query failed to parse", "error", err)
		span.SetStatus(codes.Error, "parse failed")
		p.metrics.RecordQuery("invalid", time.Since(start))
		return &Result{Errors: []gqlerrors.FormattedError{gqlerrors.FormatError(err)}, Invalid: true}
	}

	validation := graphql.ValidateDocument(&p.schema, doc, nil)
	if !validation.IsValid {
		p.logger.Debug("Query failed validation", "errors", len(validation.Errors))
		span.SetStatus(codes.Error, "validation failed")
		p.metrics.RecordQuery("invalid", time.Since(start))
		return &Result{Errors: validation.Errors, Invalid: true}
	}

	if p.maxDepth > 0 {
		if d := QueryDepth(doc, operationName); d > p.maxDepth {
			p.logger.Debug("Query exceeds depth limit", "depth", d, "limit", p.maxDepth)
			span.SetStatus(codes.Error, "depth limit exceeded")
			p.metrics.RecordQuery("invalid", time.Since(start))
			err := gqlerrors.NewFormattedError(fmt.Sprintf("query depth %d exceeds the limit of %d", d, p.maxDepth))
			return &Result{Errors: []gqlerrors.FormattedError{err}, Invalid: true}
		}
	}

	exec := p.middleware.NewExecution(text)
	exec.Introspection = IsIntrospection(doc, operationName)
	exec.Gateways = p.gateways
	span.SetAttributes(
		attribute.String("execution.id", exec.ID),
		attribute.Bool("introspection", exec.Introspection),
	)

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res := graphql.Execute(graphql.ExecuteParams{
		Schema:        p.schema,
		AST:           doc,
		OperationName: operationName,
		Args:          variables,
		Context:       resolver.WithExecution(ctx, exec),
	})

	outcome := "ok"
	if len(res.Errors) > 0 {
		outcome = "error"
		span.SetStatus(codes.Error, "execution errors")
		p.logger.Debug("Query executed with errors",
			"execution_id", exec.ID,
			"errors", len(res.Errors),
			"entities", exec.Entities.Len())
	}
	p.metrics.RecordQuery(outcome, time.Since(start))

	return &Result{Data: res.Data, Errors: res.Errors}
}
