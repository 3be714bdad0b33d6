package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/rdf"
	"github.com/c360/semql/vocabulary"
)

const ex = "http://example.org/"

func newGateway(t *testing.T) *Gateway {
	t.Helper()
	catalog, err := fountain.LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)
	ds, err := LoadDataset("testdata/people.yaml")
	require.NoError(t, err)
	gw, err := FromDataset(context.Background(), catalog, ds, nil)
	require.NoError(t, err)
	return gw
}

func roots(t *testing.T, dg agora.DataGateway, params map[string]any) []string {
	t.Helper()
	var out []string
	for q, err := range dg.Fragment(context.Background(), params) {
		require.NoError(t, err)
		out = append(out, q.Subject.Value)
	}
	return out
}

func TestDatasetLiteralTyping(t *testing.T) {
	gw := newGateway(t)
	a := rdf.NewIRI(ex + "A")

	assert.Equal(t, []rdf.Term{rdf.NewLiteral("41", vocabulary.XSD+"integer")}, gw.Graph().Objects(a, ex+"age"))
	assert.Equal(t, []rdf.Term{rdf.NewBlank("_:addr")}, gw.Graph().Objects(a, ex+"address"))
}

func TestPlanRootField(t *testing.T) {
	gw := newGateway(t)

	req, err := gw.Plan(context.Background(), agora.PlanRequest{
		Query:    `query Q($n: String) { people: Person(name: $n) { name } }`,
		Field:    "people",
		RootMode: true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{ex + "Person", ex + "Student"}, req.Types)
	assert.Equal(t, []agora.Constraint{{Param: "name", Predicate: ex + "name"}}, req.Constraints)
	assert.True(t, req.RootMode)
}

func TestPlanUsesGivenType(t *testing.T) {
	gw := newGateway(t)

	req, err := gw.Plan(context.Background(), agora.PlanRequest{
		Query: `{ Whatever { name } }`,
		Field: "Whatever",
		Type:  "ex:Student",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ex + "Student"}, req.Types)
}

func TestPlanFindsFieldsInFragments(t *testing.T) {
	gw := newGateway(t)

	req, err := gw.Plan(context.Background(), agora.PlanRequest{
		Query: `query { ...roots } fragment roots on Query { Person { name } }`,
		Field: "Person",
	})
	require.NoError(t, err)
	assert.Contains(t, req.Types, ex+"Person")
}

func TestPlanErrors(t *testing.T) {
	gw := newGateway(t)

	tests := []struct {
		name string
		req  agora.PlanRequest
	}{
		{"syntax", agora.PlanRequest{Query: `{ Person {`, Field: "Person"}},
		{"missing field", agora.PlanRequest{Query: `{ Person { name } }`, Field: "Org"}},
		{"unknown type", agora.PlanRequest{Query: `{ Org { name } }`, Field: "Org"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gw.Plan(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrPlanningFailed))
		})
	}
}

func TestFragmentRootMode(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()

	req, err := gw.Plan(ctx, agora.PlanRequest{Query: `{ Person(name: "B") { name } }`, Field: "Person", RootMode: true})
	require.NoError(t, err)
	dg, err := gw.Data(ctx, req, agora.DataOptions{Serverless: true})
	require.NoError(t, err)

	assert.Equal(t, []string{ex + "A", ex + "B", ex + "S"}, roots(t, dg, nil))
	assert.Equal(t, []string{ex + "B"}, roots(t, dg, map[string]any{"name": "B"}))
	assert.Empty(t, roots(t, dg, map[string]any{"name": "Z"}))
}

func TestFragmentRootModeDescribesBlankRoots(t *testing.T) {
	catalog, err := fountain.LoadFile("testdata/catalog.yaml")
	require.NoError(t, err)
	p1, addr := rdf.NewBlank("p1"), rdf.NewBlank("addr")
	g := rdf.NewGraph(
		rdf.Triple{Subject: p1, Predicate: rdf.RDFType, Object: rdf.NewIRI(ex + "Person")},
		rdf.Triple{Subject: p1, Predicate: ex + "name", Object: rdf.NewLiteral("Blank", "")},
		rdf.Triple{Subject: p1, Predicate: ex + "address", Object: addr},
		rdf.Triple{Subject: addr, Predicate: ex + "street", Object: rdf.NewLiteral("Main Street", "")},
		rdf.Triple{Subject: rdf.NewIRI(ex + "B"), Predicate: rdf.RDFType, Object: rdf.NewIRI(ex + "Person")},
		rdf.Triple{Subject: rdf.NewIRI(ex + "B"), Predicate: ex + "name", Object: rdf.NewLiteral("B", "")},
	)
	gw := New(catalog, g, nil, nil)
	ctx := context.Background()

	dg, err := gw.Data(ctx, agora.FragmentRequest{Types: []string{ex + "Person"}, RootMode: true}, agora.DataOptions{})
	require.NoError(t, err)

	var bound []string
	described := rdf.NewGraph()
	for q, err := range dg.Fragment(ctx, nil) {
		require.NoError(t, err)
		if q.Context.Value == agora.DescriptionContext {
			described.Add(q.Triple)
			continue
		}
		bound = append(bound, q.Subject.Value)
	}

	assert.ElementsMatch(t, []string{"_:p1", ex + "B"}, bound)
	assert.Equal(t, []rdf.Term{rdf.NewLiteral("Blank", "")}, described.Objects(p1, ex+"name"))
	assert.Equal(t, []rdf.Term{rdf.NewLiteral("Main Street", "")}, described.Objects(addr, ex+"street"))
	assert.Empty(t, described.Objects(rdf.NewIRI(ex+"B"), ex+"name"), "dereferenceable roots are loaded later")
}

func TestFragmentFullMode(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()

	dg, err := gw.Data(ctx, agora.FragmentRequest{Types: []string{ex + "Person"}}, agora.DataOptions{})
	require.NoError(t, err)

	var triples int
	for q, err := range dg.Fragment(ctx, nil) {
		require.NoError(t, err)
		assert.Equal(t, FragmentContext, q.Context.Value)
		triples++
	}
	// A: type, name, knows, address, age + blank street; B: type, name
	assert.Equal(t, 8, triples)
}

func TestFragmentStopsOnCancel(t *testing.T) {
	gw := newGateway(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dg, err := gw.Data(context.Background(), agora.FragmentRequest{Types: []string{ex + "Person"}, RootMode: true}, agora.DataOptions{})
	require.NoError(t, err)

	for _, err := range dg.Fragment(ctx, nil) {
		assert.ErrorIs(t, err, context.Canceled)
	}
}

func TestDataRejectsEmptyRequest(t *testing.T) {
	gw := newGateway(t)
	_, err := gw.Data(context.Background(), agora.FragmentRequest{}, agora.DataOptions{})
	assert.True(t, errors.IsInvalid(err))
}

func TestLoader(t *testing.T) {
	gw := newGateway(t)
	dg, err := gw.Data(context.Background(), agora.FragmentRequest{Types: []string{ex + "Person"}}, agora.DataOptions{})
	require.NoError(t, err)
	loader := dg.Loader()

	g, meta, err := loader.Load(context.Background(), ex+"A")
	require.NoError(t, err)
	assert.Equal(t, "memory", meta["Source"])
	assert.Equal(t, 6, g.Len())
	assert.True(t, g.HasSubject(rdf.NewBlank("_:addr")))

	_, _, err = loader.Load(context.Background(), ex+"Nobody")
	assert.True(t, errors.Is(err, errors.ErrEntityNotFound))
}

func TestDiscover(t *testing.T) {
	gw := newGateway(t)
	ctx := context.Background()

	strict, err := gw.Discover(ctx, ex+"Person", agora.DiscoverOptions{Strict: true})
	require.NoError(t, err)
	require.Len(t, strict.Roots, 2)
	assert.Equal(t, []string{"$name", "$item"}, strict.Roots[0].Vars)
	assert.Equal(t, agora.KindResource, strict.Roots[1].Kind)

	loose, err := gw.Discover(ctx, ex+"Person", agora.DiscoverOptions{})
	require.NoError(t, err)
	assert.Len(t, loose.Roots, 3)
}
