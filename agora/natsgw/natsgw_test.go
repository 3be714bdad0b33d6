package natsgw

import (
	"context"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/natsclient"
	"github.com/c360/semql/rdf"
	"github.com/c360/semql/testutil"
)

const ex = "http://example.org/"

// evaluationCounter counts the data gateways handed out by the wrapped gateway.
type evaluationCounter struct {
	agora.Gateway
	data atomic.Int32
}

func (e *evaluationCounter) Data(ctx context.Context, req agora.FragmentRequest, opts agora.DataOptions) (agora.DataGateway, error) {
	e.data.Add(1)
	return e.Gateway.Data(ctx, req, opts)
}

func setupCounting(t *testing.T, opts ...ClientOption) (*Client, *testutil.MockNATSClient, *evaluationCounter) {
	t.Helper()
	catalogYAML, err := os.ReadFile("../memory/testdata/catalog.yaml")
	require.NoError(t, err)
	datasetYAML, err := os.ReadFile("../memory/testdata/people.yaml")
	require.NoError(t, err)
	catalog, gw := testutil.Gateway(t, catalogYAML, datasetYAML)

	counted := &evaluationCounter{Gateway: gw}
	bus := testutil.NewMockNATSClient()
	require.NoError(t, NewResponder(bus, counted, catalog).Start(context.Background()))
	return NewClient(bus, opts...), bus, counted
}

func setup(t *testing.T, opts ...ClientOption) (*Client, *testutil.MockNATSClient) {
	t.Helper()
	client, bus, _ := setupCounting(t, opts...)
	return client, bus
}

func TestClientCatalog(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()

	types, err := client.Types(ctx)
	require.NoError(t, err)
	assert.Contains(t, types, "ex:Person")

	person, err := client.Type(ctx, "ex:Person")
	require.NoError(t, err)
	assert.Equal(t, []string{"ex:Student"}, person.Sub)

	prop, err := client.Property(ctx, "ex:knows")
	require.NoError(t, err)
	assert.Equal(t, fountain.KindObject, prop.Kind)

	prefixes, err := client.Prefixes(ctx)
	require.NoError(t, err)
	assert.Equal(t, ex+"Person", prefixes.ExtendURI("ex:Person"))
}

func TestClientRestoresRemoteErrors(t *testing.T) {
	client, _ := setup(t)

	_, err := client.Type(context.Background(), "ex:Nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownType)
	assert.True(t, errors.IsInvalid(err))

	_, err = client.Plan(context.Background(), agora.PlanRequest{Query: "{ Person { name } }", Field: "missing"})
	assert.ErrorIs(t, err, errors.ErrPlanningFailed)
}

func TestClientPlanAndFragmentPaging(t *testing.T) {
	client, bus := setup(t, WithPageSize(1))
	ctx := context.Background()

	req, err := client.Plan(ctx, agora.PlanRequest{Query: "{ Person { name } }", Field: "Person", RootMode: true})
	require.NoError(t, err)
	assert.Equal(t, []string{ex + "Person", ex + "Student"}, req.Types)

	dg, err := client.Data(ctx, req, agora.DataOptions{Serverless: true})
	require.NoError(t, err)

	var roots []string
	for q, err := range dg.Fragment(ctx, nil) {
		require.NoError(t, err)
		roots = append(roots, q.Subject.Value)
	}
	assert.Equal(t, []string{ex + "A", ex + "B", ex + "S"}, roots)
	assert.Equal(t, 3, bus.Requests(DefaultPrefix+".fragment"))
}

func TestFragmentPagesEvaluateOnce(t *testing.T) {
	client, bus, counted := setupCounting(t, WithPageSize(1))
	ctx := context.Background()

	req, err := client.Plan(ctx, agora.PlanRequest{Query: "{ Person { name } }", Field: "Person", RootMode: true})
	require.NoError(t, err)
	dg, err := client.Data(ctx, req, agora.DataOptions{Serverless: true})
	require.NoError(t, err)
	before := counted.data.Load()

	var roots []string
	for q, err := range dg.Fragment(ctx, nil) {
		require.NoError(t, err)
		roots = append(roots, q.Subject.Value)
	}
	assert.Equal(t, []string{ex + "A", ex + "B", ex + "S"}, roots)
	assert.Equal(t, 3, bus.Requests(DefaultPrefix+".fragment"))
	assert.Equal(t, int32(1), counted.data.Load()-before, "later pages come from the first evaluation")
}

func TestFragmentUnknownCursorEvaluatesAgain(t *testing.T) {
	catalogYAML, err := os.ReadFile("../memory/testdata/catalog.yaml")
	require.NoError(t, err)
	datasetYAML, err := os.ReadFile("../memory/testdata/people.yaml")
	require.NoError(t, err)
	catalog, gw := testutil.Gateway(t, catalogYAML, datasetYAML)
	r := NewResponder(testutil.NewMockNATSClient(), gw, catalog)
	ctx := context.Background()

	req := agora.FragmentRequest{Types: []string{ex + "Person", ex + "Student"}, RootMode: true}
	first, err := r.fragment(ctx, fragmentMsg{Request: req, Limit: 1})
	require.NoError(t, err)
	require.True(t, first.More)
	require.NotEmpty(t, first.Cursor)

	second, err := r.fragment(ctx, fragmentMsg{Request: req, Offset: 1, Limit: 1, Cursor: "gone"})
	require.NoError(t, err)
	require.Len(t, second.Quads, 1)
	assert.Equal(t, ex+"B", second.Quads[0].Subject.Value)
	assert.True(t, second.More)

	last, err := r.fragment(ctx, fragmentMsg{Request: req, Offset: 2, Limit: 1, Cursor: first.Cursor})
	require.NoError(t, err)
	require.Len(t, last.Quads, 1)
	assert.Equal(t, ex+"S", last.Quads[0].Subject.Value)
	assert.False(t, last.More)
	assert.Empty(t, last.Cursor)
	_, kept := r.pages.Get(first.Cursor)
	assert.False(t, kept, "the last page releases its cursor")
}

func TestClientFragmentParams(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()

	req, err := client.Plan(ctx, agora.PlanRequest{Query: `{ Person(name: "B") { name } }`, Field: "Person", RootMode: true})
	require.NoError(t, err)
	dg, err := client.Data(ctx, req, agora.DataOptions{Serverless: true})
	require.NoError(t, err)

	var roots []string
	for q, err := range dg.Fragment(ctx, map[string]any{"name": "B"}) {
		require.NoError(t, err)
		roots = append(roots, q.Subject.Value)
	}
	assert.Equal(t, []string{ex + "B"}, roots)
}

func TestClientLoader(t *testing.T) {
	client, _ := setup(t)
	ctx := context.Background()

	dg, err := client.Data(ctx, agora.FragmentRequest{Types: []string{ex + "Person"}}, agora.DataOptions{})
	require.NoError(t, err)

	g, meta, err := dg.Loader().Load(ctx, ex+"A")
	require.NoError(t, err)
	assert.Equal(t, "memory", meta["Source"])
	assert.Equal(t, []rdf.Term{rdf.NewLiteral("A", "")}, g.Objects(rdf.NewIRI(ex+"A"), ex+"name"))
	assert.Equal(t, []rdf.Term{rdf.NewLiteral("Main Street", "")}, g.Objects(rdf.NewBlank("_:addr"), ex+"street"))

	_, _, err = dg.Loader().Load(ctx, ex+"Nobody")
	assert.ErrorIs(t, err, errors.ErrEntityNotFound)
}

func TestClientDataRejectsEmptyRequest(t *testing.T) {
	client, _ := setup(t)

	_, err := client.Data(context.Background(), agora.FragmentRequest{}, agora.DataOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestClientDiscover(t *testing.T) {
	client, _ := setup(t)

	eco, err := client.Discover(context.Background(), ex+"Person", agora.DiscoverOptions{Strict: true})
	require.NoError(t, err)
	var ids []string
	for _, d := range eco.Roots {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"ex:people", "ex:seed"}, ids)
}

func TestTransportErrorsAreTransient(t *testing.T) {
	client := NewClient(testutil.NewMockNATSClient())

	_, err := client.Types(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestResponderNeedsSomethingToServe(t *testing.T) {
	err := NewResponder(testutil.NewMockNATSClient(), nil, nil).Start(context.Background())
	assert.True(t, errors.IsFatal(err))
}

func TestClientAfterBusClosed(t *testing.T) {
	client, bus := setup(t)
	bus.Close()

	_, err := client.Types(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
	assert.ErrorIs(t, err, natsclient.ErrNotConnected)
}
