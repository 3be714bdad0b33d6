package processor

import (
	"context"
	"testing"

	"github.com/graphql-go/graphql/language/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/metric"
	"github.com/c360/semql/resolver"
	"github.com/c360/semql/testutil"
)

func newProcessor(t *testing.T, opts ...Option) *Processor {
	t.Helper()
	catalog, gw := testutil.People(t)
	p, err := New(context.Background(), catalog, gw, opts...)
	require.NoError(t, err)
	return p
}

func TestQueryNested(t *testing.T) {
	p := newProcessor(t)

	res := p.Query(context.Background(), `{ Person { name age knows { name } address { street } } }`, nil, "")
	require.Empty(t, res.Errors)
	assert.False(t, res.Invalid)
	assert.Equal(t, map[string]any{
		"Person": []any{
			map[string]any{
				"name":    "A",
				"age":     41,
				"knows":   []any{map[string]any{"name": "B"}},
				"address": []any{map[string]any{"street": "Main Street"}},
			},
			map[string]any{
				"name":    "B",
				"age":     nil,
				"knows":   []any{},
				"address": []any{},
			},
		},
	}, res.Data)
}

func TestQueryArguments(t *testing.T) {
	p := newProcessor(t, WithResolverOptions(resolver.WithConcurrency(8)))
	assert.Contains(t, p.SDL(), "Person(name: String): [Person]")

	res := p.Query(context.Background(),
		`query ByName($name: String) { Person(name: $name) { name } }`,
		map[string]any{"name": "B"}, "ByName")
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"Person": []any{map[string]any{"name": "B"}}}, res.Data)
}

func TestQueryInvalid(t *testing.T) {
	p := newProcessor(t)

	tests := []struct {
		name  string
		query string
	}{
		{"syntax error", `{ Person { name `},
		{"unknown field", `{ Person { salary } }`},
		{"unknown root", `{ Company { name } }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.Query(context.Background(), tt.query, nil, "")
			assert.True(t, res.Invalid)
			assert.True(t, res.HasErrors())
			assert.Nil(t, res.Data)
		})
	}
}

func TestQueryIntrospection(t *testing.T) {
	p := newProcessor(t)

	res := p.Query(context.Background(), `query IntrospectionQuery { __schema { queryType { name } } }`, nil, "")
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{
		"__schema": map[string]any{"queryType": map[string]any{"name": "Query"}},
	}, res.Data)
}

func TestQueryFromSchemaFile(t *testing.T) {
	p := newProcessor(t, WithSchema(testutil.SchemaSDL))
	assert.Nil(t, p.Names())

	res := p.Query(context.Background(), `{ Person(name: "A") { name knows { name } } }`, nil, "")
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{
		"Person": []any{map[string]any{
			"name":  "A",
			"knows": []any{map[string]any{"name": "B"}},
		}},
	}, res.Data)
}

func TestQuerySharedGateways(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	p := newProcessor(t, WithSharedGateways(true), WithMetrics(registry.CoreMetrics()), WithIdentityField(true))

	for i := 0; i < 3; i++ {
		res := p.Query(context.Background(), `{ Person { _uri name } }`, nil, "")
		require.Empty(t, res.Errors)
		assert.Equal(t, map[string]any{"Person": []any{
			map[string]any{"_uri": "http://example.org/A", "name": "A"},
			map[string]any{"_uri": "http://example.org/B", "name": "B"},
		}}, res.Data)
	}
	assert.Equal(t, 1, p.gateways.Len())
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestIsIntrospection(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		operation string
		want      bool
	}{
		{"named introspection", `query IntrospectionQuery { Person { name } }`, "", true},
		{"schema field", `{ __schema { types { name } } }`, "", true},
		{"type field in fragment", `{ ...meta } fragment meta on Query { __type(name: "Person") { name } }`, "", true},
		{"typename only", `{ __typename }`, "", true},
		{"data query", `{ Person { name } }`, "", false},
		{"mixed", `{ __typename Person { name } }`, "", false},
		{"selected data operation", `query A { __schema { types { name } } } query B { Person { name } }`, "B", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := parser.Parse(parser.ParseParams{Source: tt.query})
			require.NoError(t, err)
			assert.Equal(t, tt.want, IsIntrospection(doc, tt.operation))
		})
	}
}

func TestQueryDepthLimit(t *testing.T) {
	p := newProcessor(t, WithMaxDepth(2))

	res := p.Query(context.Background(), `{ Person { name knows { name } } }`, nil, "")
	require.Empty(t, res.Errors)

	res = p.Query(context.Background(), `{ Person { knows { knows { name } } } }`, nil, "")
	assert.True(t, res.Invalid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Message, "depth 3")
	assert.Nil(t, res.Data)
}

func TestQueryDepth(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{`{ Person { name } }`, 2},
		{`{ __schema { types { name } } }`, 0},
		{`{ Person { ...F } } fragment F on Person { knows { name } }`, 3},
		{`{ Person { ... on Person { address { street } } } }`, 3},
		{`{ Person { ...F } } fragment F on Person { knows { ...F } }`, 2},
	}
	for _, tt := range tests {
		doc, err := parser.Parse(parser.ParseParams{Source: tt.query})
		require.NoError(t, err)
		assert.Equal(t, tt.want, QueryDepth(doc, ""), tt.query)
	}
}
