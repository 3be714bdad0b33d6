package schema

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	gqlast "github.com/graphql-go/graphql/language/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/c360/semql/errors"
)

type recorder struct {
	mu    sync.Mutex
	specs map[string]FieldSpec
}

func (r *recorder) bind(data map[string]any) Binder {
	r.specs = make(map[string]FieldSpec)
	return func(spec FieldSpec) graphql.FieldResolveFn {
		r.mu.Lock()
		r.specs[spec.Parent+"."+spec.Name] = spec
		r.mu.Unlock()
		return func(p graphql.ResolveParams) (any, error) {
			if spec.Root {
				return data[spec.Name], nil
			}
			src, _ := p.Source.(map[string]any)
			return src[spec.Name], nil
		}
	}
}

func TestBuildSynthesizedSchema(t *testing.T) {
	res, err := NewSynthesizer(catalog(t, personCatalog)).Synthesize(context.Background())
	require.NoError(t, err)

	rec := &recorder{}
	s, err := Build(res.SDL, res.Names, rec.bind(map[string]any{
		"Person": []any{
			map[string]any{"name": "A", "knows": []any{map[string]any{"name": "B"}}},
		},
	}))
	require.NoError(t, err)

	result := graphql.Do(graphql.Params{
		Schema:        s,
		RequestString: `{ Person { name knows { name } } }`,
	})
	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]any{
		"Person": []any{
			map[string]any{"name": "A", "knows": []any{map[string]any{"name": "B"}}},
		},
	}, result.Data)

	root := rec.specs["Query.Person"]
	assert.True(t, root.Root)
	assert.Equal(t, ShapeList, root.Shape)
	assert.Equal(t, ShapeObject, root.Elem)
	assert.Equal(t, "ex:Person", root.RootType)

	knows := rec.specs["Person.knows"]
	assert.False(t, knows.Root)
	assert.Equal(t, ShapeList, knows.Shape)
	assert.Equal(t, ShapeObject, knows.Elem)
	assert.Equal(t, "ex:knows", knows.Property)
	assert.Equal(t, "Person", knows.TypeName)

	name := rec.specs["Person.name"]
	assert.Equal(t, ShapeScalar, name.Shape)
	assert.Equal(t, "ex:name", name.Property)
}

func TestBuildHandWrittenSchema(t *testing.T) {
	sdl := `
scalar DateTime
enum Status { ACTIVE RETIRED }
type Employee {
	name: String!
	status: Status
	employer: Company
	hired: DateTime
}
type Company {
	label: String
}
type Query {
	employees(name: String, status: Status): [Employee!]
}
`
	hired := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := &recorder{}
	s, err := Build(sdl, nil, rec.bind(map[string]any{
		"employees": []any{
			map[string]any{
				"name":     "Ada",
				"status":   "ACTIVE",
				"employer": map[string]any{"label": "Acme"},
				"hired":    hired,
			},
		},
	}))
	require.NoError(t, err)

	result := graphql.Do(graphql.Params{
		Schema:        s,
		RequestString: `{ employees(status: ACTIVE) { name status employer { label } hired } }`,
	})
	require.Empty(t, result.Errors)
	assert.Equal(t, map[string]any{
		"employees": []any{
			map[string]any{
				"name":     "Ada",
				"status":   "ACTIVE",
				"employer": map[string]any{"label": "Acme"},
				"hired":    "2024-03-01T09:30:00Z",
			},
		},
	}, result.Data)

	name := rec.specs["Employee.name"]
	assert.True(t, name.NonNull)
	assert.Empty(t, name.Property)

	assert.Equal(t, ShapeObject, rec.specs["Employee.employer"].Shape)
	assert.Equal(t, []string{"name", "status"}, rec.specs["Query.employees"].Args)
}

func TestBuildRejectsUnsupportedConstructs(t *testing.T) {
	tests := []struct {
		name string
		sdl  string
	}{
		{"interface", `interface Named { name: String } type Person implements Named { name: String } type Query { people: [Person] }`},
		{"union", `type A { x: String } type B { y: String } union AB = A | B type Query { all: [AB] }`},
		{"input argument", `input Filter { name: String } type Query { people(filter: Filter): [String] }`},
		{"mutation", `type Query { a: String } type Mutation { b: String }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.sdl, nil, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrUnsupportedSchema), "got %v", err)
		})
	}
}

func TestBuildInvalidDocument(t *testing.T) {
	_, err := Build(`type Query {`, nil, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.True(t, errors.Is(err, errors.ErrParsingFailed))
}

func TestTimeScalars(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	date := newScalar(&ast.Definition{Name: "Date"})
	assert.Equal(t, "2024-03-01", date.Serialize(ts))
	assert.Equal(t, "2024-03-01", date.ParseValue("2024-03-01"))
	assert.Nil(t, date.ParseValue("March"))
	assert.Nil(t, date.ParseLiteral(&gqlast.StringValue{Value: "March"}))

	clock := newScalar(&ast.Definition{Name: "Time"})
	assert.Equal(t, "09:30:00", clock.Serialize(&ts))

	other := newScalar(&ast.Definition{Name: "Json"})
	assert.Equal(t, "March", other.ParseValue("March"))
	assert.Equal(t, "2024-03-01T09:30:00Z", other.Serialize(ts))
}
