package resolver

import (
	"context"
	"iter"
	"sync/atomic"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/rdf"
)

// ErrRootsConsumed is returned when a root stream is iterated a second time.
var ErrRootsConsumed = errors.New("root stream already consumed")

// DataGraph yields the root entities of one root field. It plans the field in
// root mode, obtains a gateway handle for the plan and evaluates it with the
// field's arguments.
type DataGraph struct {
	gateway  agora.DataGateway
	params   map[string]any
	shared   bool
	consumed atomic.Bool
	fragment *rdf.Graph
}

// NewDataGraph plans req through gw. When handles is not nil, a handle built
// earlier for the same query text and field is reused. Planning errors are
// returned unchanged.
func NewDataGraph(ctx context.Context, gw agora.Gateway, req agora.PlanRequest, params map[string]any, handles *GatewayCache) (*DataGraph, error) {
	req.RootMode = true

	build := func(ctx context.Context) (agora.DataGateway, error) {
		plan, err := gw.Plan(ctx, req)
		if err != nil {
			return nil, err
		}
		return gw.Data(ctx, plan, agora.DataOptions{Serverless: true})
	}

	var (
		dg     agora.DataGateway
		shared bool
		err    error
	)
	if handles != nil {
		dg, shared, err = handles.Get(ctx, GatewayKey(req.Query, req.Field), build)
	} else {
		dg, err = build(ctx)
	}
	if err != nil {
		return nil, err
	}

	return &DataGraph{
		gateway:  dg,
		params:   params,
		shared:   shared,
		fragment: rdf.NewGraph(),
	}, nil
}

// Shared reports whether the gateway handle came from the handle cache.
func (d *DataGraph) Shared() bool {
	return d.shared
}

// Loader returns the gateway's entity loader.
func (d *DataGraph) Loader() agora.Loader {
	return d.gateway.Loader()
}

// Fragment returns the quads streamed so far as a graph. Root entities that are
// blank nodes resolve their fields from it.
func (d *DataGraph) Fragment() *rdf.Graph {
	return d.fragment
}

// Stream returns the root identifiers as a single-pass sequence, each one the
// subject of a fragment quad outside agora.DescriptionContext, without
// duplicates. Iterating it a second time
// yields ErrRootsConsumed.
func (d *DataGraph) Stream(ctx context.Context) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if !d.consumed.CompareAndSwap(false, true) {
			yield("", ErrRootsConsumed)
			return
		}

		seen := make(map[string]bool)
		for q, err := range d.gateway.Fragment(ctx, d.params) {
			if err != nil {
				yield("", err)
				return
			}
			d.fragment.Add(q.Triple)
			id := q.Subject.Value
			if seen[id] || q.Context.Value == agora.DescriptionContext {
				continue
			}
			seen[id] = true
			if !yield(id, nil) {
				return
			}
		}
	}
}

// Roots evaluates the fragment now and returns every root identifier.
func (d *DataGraph) Roots(ctx context.Context) ([]string, error) {
	var ids []string
	for id, err := range d.Stream(ctx) {
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
