// Package memory is an in-process agora gateway over an rdf.Graph dataset. It
// plans root fields by matching them against catalog types, evaluates fragments
// by type and argument equality, and dereferences entities with Describe.
package memory

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/match"
	"github.com/c360/semql/rdf"
	"github.com/c360/semql/vocabulary"
)

// FragmentContext is the graph name of the quads emitted by Fragment.
const FragmentContext = "urn:semql:fragment"

// Gateway implements agora.Gateway over an in-memory graph.
type Gateway struct {
	catalog      fountain.Catalog
	graph        *rdf.Graph
	descriptions []agora.Description
	logger       *slog.Logger
}

// New creates a gateway. The graph is shared, not copied.
func New(catalog fountain.Catalog, graph *rdf.Graph, descriptions []agora.Description, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		catalog:      catalog,
		graph:        graph,
		descriptions: slices.Clone(descriptions),
		logger:       logger.With("component", "memory-gateway"),
	}
}

// FromDataset builds a gateway from a dataset document.
func FromDataset(ctx context.Context, catalog fountain.Catalog, ds *Dataset, logger *slog.Logger) (*Gateway, error) {
	prefixes, err := catalog.Prefixes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "memory", "FromDataset", "read catalog prefixes")
	}
	g, err := ds.Graph(prefixes)
	if err != nil {
		return nil, err
	}
	return New(catalog, g, ds.Descriptions, logger), nil
}

// Graph returns the dataset graph.
func (gw *Gateway) Graph() *rdf.Graph {
	return gw.graph
}

// Plan implements agora.Planner.
func (gw *Gateway) Plan(ctx context.Context, req agora.PlanRequest) (agora.FragmentRequest, error) {
	doc, gqlErr := parser.ParseQuery(&ast.Source{Name: "GraphQL request", Input: req.Query})
	if gqlErr != nil {
		return agora.FragmentRequest{}, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrPlanningFailed, gqlErr), "memory", "Plan", "parse query")
	}

	field := findRootField(doc, req.Field)
	if field == nil {
		return agora.FragmentRequest{}, errors.WrapInvalid(
			fmt.Errorf("%w: no root field %q", errors.ErrPlanningFailed, req.Field), "memory", "Plan", "locate root field")
	}

	typeID := req.Type
	if typeID == "" {
		types, err := gw.catalog.Types(ctx)
		if err != nil {
			return agora.FragmentRequest{}, errors.Wrap(err, "memory", "Plan", "list catalog types")
		}
		picked, ok := match.Pick(match.Name(field.Name), types)
		if !ok {
			return agora.FragmentRequest{}, errors.WrapInvalid(
				fmt.Errorf("%w: %w: %s", errors.ErrPlanningFailed, errors.ErrUnknownType, field.Name),
				"memory", "Plan", "match root type")
		}
		typeID = picked
	}

	t, err := gw.catalog.Type(ctx, typeID)
	if err != nil {
		return agora.FragmentRequest{}, errors.Wrap(err, "memory", "Plan", "lookup root type")
	}
	prefixes, err := gw.catalog.Prefixes(ctx)
	if err != nil {
		return agora.FragmentRequest{}, errors.Wrap(err, "memory", "Plan", "read prefixes")
	}

	out := agora.FragmentRequest{RootMode: req.RootMode}
	for _, id := range append([]string{t.ID}, t.Sub...) {
		out.Types = append(out.Types, prefixes.ExtendURI(id))
	}
	for _, arg := range field.Arguments {
		prop, ok := match.Pick(match.Name(arg.Name), t.Properties)
		if !ok {
			gw.logger.Debug("Argument matches no property", "field", req.Field, "argument", arg.Name)
			continue
		}
		out.Constraints = append(out.Constraints, agora.Constraint{
			Param:     arg.Name,
			Predicate: prefixes.ExtendURI(prop),
		})
	}
	return out, nil
}

// findRootField returns the top-level field with the given response key in the
// first operation that has one.
func findRootField(doc *ast.QueryDocument, key string) *ast.Field {
	var walk func(set ast.SelectionSet, seen map[string]bool) *ast.Field
	walk = func(set ast.SelectionSet, seen map[string]bool) *ast.Field {
		for _, sel := range set {
			switch s := sel.(type) {
			case *ast.Field:
				if s.Alias == key || (s.Alias == "" && s.Name == key) {
					return s
				}
			case *ast.InlineFragment:
				if f := walk(s.SelectionSet, seen); f != nil {
					return f
				}
			case *ast.FragmentSpread:
				if seen[s.Name] {
					continue
				}
				seen[s.Name] = true
				if def := doc.Fragments.ForName(s.Name); def != nil {
					if f := walk(def.SelectionSet, seen); f != nil {
						return f
					}
				}
			}
		}
		return nil
	}

	for _, op := range doc.Operations {
		if f := walk(op.SelectionSet, map[string]bool{}); f != nil {
			return f
		}
	}
	return nil
}

// Data implements agora.Gateway.
func (gw *Gateway) Data(_ context.Context, req agora.FragmentRequest, opts agora.DataOptions) (agora.DataGateway, error) {
	if len(req.Types) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: fragment request without types", errors.ErrPlanningFailed), "memory", "Data", "validate request")
	}
	if !opts.Serverless {
		gw.logger.Debug("Serving fragment in-process regardless of serverless flag")
	}
	return &dataGateway{gw: gw, req: req}, nil
}

// Load dereferences one entity.
func (gw *Gateway) Load(ctx context.Context, id string) (*rdf.Graph, agora.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	node := rdf.NodeFromID(id)
	if !gw.graph.HasSubject(node) {
		return nil, nil, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrEntityNotFound, id),
			"memory", "Load", "describe entity")
	}
	return gw.graph.Describe(node), agora.Metadata{"Content-Type": "application/n-triples", "Source": "memory"}, nil
}

// Discover implements agora.Discoverer.
func (gw *Gateway) Discover(ctx context.Context, typeIRI string, opts agora.DiscoverOptions) (agora.Ecosystem, error) {
	prefixes, err := gw.catalog.Prefixes(ctx)
	if err != nil {
		return agora.Ecosystem{}, errors.Wrap(err, "memory", "Discover", "read prefixes")
	}

	wanted := map[string]bool{typeIRI: true}
	if !opts.Strict {
		if t, err := gw.catalog.Type(ctx, prefixes.CompactURI(typeIRI)); err == nil {
			for _, sub := range t.Sub {
				wanted[prefixes.ExtendURI(sub)] = true
			}
		}
	}

	var eco agora.Ecosystem
	for _, d := range gw.descriptions {
		if wanted[prefixes.ExtendURI(d.Type)] {
			d.Vars = slices.Clone(d.Vars)
			eco.Roots = append(eco.Roots, d)
		}
	}
	return eco, nil
}

type dataGateway struct {
	gw  *Gateway
	req agora.FragmentRequest
}

func (dg *dataGateway) Loader() agora.Loader {
	return agora.LoaderFunc(dg.gw.Load)
}

func (dg *dataGateway) Fragment(ctx context.Context, params map[string]any) iter.Seq2[rdf.Quad, error] {
	graphName := rdf.NewIRI(FragmentContext)
	descriptions := rdf.NewIRI(agora.DescriptionContext)

	return func(yield func(rdf.Quad, error) bool) {
		seen := map[string]bool{}
		for _, typeIRI := range dg.req.Types {
			for _, s := range dg.gw.graph.Subjects(rdf.RDFType, rdf.NewIRI(typeIRI)) {
				if err := ctx.Err(); err != nil {
					yield(rdf.Quad{}, err)
					return
				}
				if seen[s.Key()] || !dg.satisfies(s, params) {
					continue
				}
				seen[s.Key()] = true

				if dg.req.RootMode {
					q := rdf.Quad{Context: graphName, Triple: rdf.Triple{Subject: s, Predicate: rdf.RDFType, Object: rdf.NewIRI(typeIRI)}}
					if !yield(q, nil) {
						return
					}
					if !s.IsBlank() {
						continue
					}
					for _, tr := range dg.gw.graph.Describe(s).Triples() {
						if !yield(rdf.Quad{Context: descriptions, Triple: tr}, nil) {
							return
						}
					}
					continue
				}
				for _, tr := range dg.gw.graph.Describe(s).Triples() {
					if !yield(rdf.Quad{Context: graphName, Triple: tr}, nil) {
						return
					}
				}
			}
		}
	}
}

// satisfies reports whether s has, for every constraint with a supplied
// parameter, an object whose lexical form equals the parameter.
func (dg *dataGateway) satisfies(s rdf.Term, params map[string]any) bool {
	for _, c := range dg.req.Constraints {
		want, ok := params[c.Param]
		if !ok || want == nil {
			continue
		}
		lexical := fmt.Sprint(want)
		if !slices.ContainsFunc(dg.gw.graph.Objects(s, c.Predicate), func(o rdf.Term) bool {
			return o.Value == lexical
		}) {
			return false
		}
	}
	return true
}

// Compile-time interface checks.
var (
	_ agora.Gateway = (*Gateway)(nil)
	_ agora.Loader  = agora.LoaderFunc(nil)
)

// Prefixes returns the catalog prefixes, for callers composing IRIs.
func (gw *Gateway) Prefixes(ctx context.Context) (vocabulary.Prefixes, error) {
	return gw.catalog.Prefixes(ctx)
}
