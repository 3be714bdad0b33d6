package resolver

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/agora/memory"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/rdf"
)

const peopleCatalog = `
prefixes:
  ex: http://example.org/
types:
  ex:Person:
    properties: [ex:name, ex:knows, ex:nickname]
properties:
  ex:name: {kind: data, range: [xsd:string]}
  ex:nickname: {kind: data, range: [xsd:string]}
  ex:knows: {kind: object, range: [ex:Person]}
`

func peopleGraph() *rdf.Graph {
	return rdf.NewGraph(
		triple(ex+"A", rdf.RDFType, rdf.NewIRI(ex+"Person")),
		triple(ex+"A", ex+"name", literal("A")),
		triple(ex+"A", ex+"knows", rdf.NewIRI(ex+"B")),
		triple(ex+"B", ex+"name", literal("B")),
	)
}

func newPeople(t *testing.T) (fountain.Catalog, *memory.Gateway) {
	t.Helper()
	catalog, err := fountain.Parse([]byte(peopleCatalog))
	require.NoError(t, err)
	return catalog, memory.New(catalog, peopleGraph(), nil, nil)
}

// planCounter counts Plan calls of the wrapped gateway.
type planCounter struct {
	agora.Gateway
	plans atomic.Int32
}

func (p *planCounter) Plan(ctx context.Context, req agora.PlanRequest) (agora.FragmentRequest, error) {
	p.plans.Add(1)
	return p.Gateway.Plan(ctx, req)
}

func TestDataGraphStream(t *testing.T) {
	_, gw := newPeople(t)
	dg, err := NewDataGraph(context.Background(), gw, agora.PlanRequest{
		Query: `{ Person { name } }`,
		Field: "Person",
		Type:  "ex:Person",
	}, nil, nil)
	require.NoError(t, err)
	assert.False(t, dg.Shared())

	var ids []string
	for id, err := range dg.Stream(context.Background()) {
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []string{ex + "A"}, ids)
	assert.Equal(t, 1, dg.Fragment().Len())

	for _, err := range dg.Stream(context.Background()) {
		assert.ErrorIs(t, err, ErrRootsConsumed)
	}
}

func TestDataGraphRootsAndLoader(t *testing.T) {
	_, gw := newPeople(t)
	dg, err := NewDataGraph(context.Background(), gw, agora.PlanRequest{
		Query: `{ Person { name } }`,
		Field: "Person",
	}, nil, nil)
	require.NoError(t, err)

	ids, err := dg.Roots(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{ex + "A"}, ids)

	g, _, err := dg.Loader().Load(context.Background(), ex+"B")
	require.NoError(t, err)
	assert.Equal(t, 1, g.Len())
}

func TestDataGraphPlanningErrorPropagates(t *testing.T) {
	_, gw := newPeople(t)
	_, err := NewDataGraph(context.Background(), gw, agora.PlanRequest{
		Query: `{ Nothing { name } }`,
		Field: "Nothing",
	}, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPlanningFailed))
}

func TestDataGraphSharesGatewayHandles(t *testing.T) {
	_, gw := newPeople(t)
	counter := &planCounter{Gateway: gw}
	handles, err := NewGatewayCache()
	require.NoError(t, err)

	req := agora.PlanRequest{Query: `{ Person { name } }`, Field: "Person", Type: "ex:Person"}

	var wg sync.WaitGroup
	var shared atomic.Int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dg, err := NewDataGraph(context.Background(), counter, req, nil, handles)
			if !assert.NoError(t, err) {
				return
			}
			if dg.Shared() {
				shared.Add(1)
			}
			ids, err := dg.Roots(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, []string{ex + "A"}, ids)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), counter.plans.Load())
	assert.Equal(t, int32(9), shared.Load())
	assert.Equal(t, 1, handles.Len())

	other := req
	other.Field = "people"
	other.Query = `{ people: Person { name } }`
	_, err = NewDataGraph(context.Background(), counter, other, nil, handles)
	require.NoError(t, err)
	assert.Equal(t, int32(2), counter.plans.Load())
}

func TestGatewayCacheDoesNotStoreFailures(t *testing.T) {
	handles, err := NewGatewayCache()
	require.NoError(t, err)

	calls := 0
	build := func(context.Context) (agora.DataGateway, error) {
		calls++
		return nil, fmt.Errorf("planner down")
	}
	for i := 0; i < 2; i++ {
		_, _, err := handles.Get(context.Background(), GatewayKey("q", "f"), build)
		require.Error(t, err)
	}
	assert.Equal(t, 2, calls)
	assert.Zero(t, handles.Len())
}
