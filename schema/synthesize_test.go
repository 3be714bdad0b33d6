package schema

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/agora/memory"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/rdf"
)

func catalog(t *testing.T, doc string) *fountain.Memory {
	t.Helper()
	c, err := fountain.Parse([]byte(doc))
	require.NoError(t, err)
	return c
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

const personCatalog = `
prefixes:
  ex: http://example.org/
types:
  ex:Person:
    properties: [ex:name, ex:knows]
properties:
  ex:name: {kind: data, range: [xsd:string]}
  ex:knows: {kind: object, range: [ex:Person]}
`

func TestSynthesizePerson(t *testing.T) {
	res, err := NewSynthesizer(catalog(t, personCatalog)).Synthesize(context.Background())
	require.NoError(t, err)

	want := `type Person {
	name: String
	knows: [Person]
}
type Query {
	Person: [Person]
}
schema {
	query: Query
}
`
	assert.Equal(t, normalize(want), normalize(res.SDL))
	assert.Equal(t, 1, res.Types)

	p, ok := res.Names.Property("Person", "knows")
	require.True(t, ok)
	assert.Equal(t, "ex:knows", p)

	root, ok := res.Names.RootType("Person")
	require.True(t, ok)
	assert.Equal(t, "ex:Person", root)
}

func TestSynthesizeDeterministic(t *testing.T) {
	doc := `
prefixes:
  ex: http://example.org/
  org: http://example.org/org#
types:
  ex:Person:
    properties: [ex:name, ex:knows, ex:born]
  org:Person:
    properties: [org:name]
  ex:Company:
    properties: [ex:label, ex:employs]
properties:
  ex:name: {kind: data, range: [xsd:string]}
  ex:label: {kind: data, range: [xsd:string]}
  ex:born: {kind: data, range: [xsd:date]}
  ex:knows: {kind: object, range: [ex:Person]}
  ex:employs: {kind: object, range: [ex:Person, org:Person]}
  org:name: {kind: data, range: [xsd:string]}
`
	var first *Result
	for i := 0; i < 5; i++ {
		res, err := NewSynthesizer(catalog(t, doc)).Synthesize(context.Background())
		require.NoError(t, err)
		if first == nil {
			first = res
			continue
		}
		if diff := cmp.Diff(first.SDL, res.SDL); diff != "" {
			t.Fatalf("schema changed between runs (-first +now):\n%s", diff)
		}
		if diff := cmp.Diff(first.Names.typeNames(), res.Names.typeNames()); diff != "" {
			t.Fatalf("type names changed between runs (-first +now):\n%s", diff)
		}
	}
	assert.Contains(t, first.SDL, "scalar Date\n")
	assert.Contains(t, first.SDL, "born: Date")
}

func TestSynthesizeNameCollision(t *testing.T) {
	doc := `
prefixes:
  ex: http://example.org/
  org: http://example.org/org#
types:
  ex:Person:
    properties: [ex:name]
  org:Person:
    properties: [org:name]
properties:
  ex:name: {kind: data, range: [xsd:string]}
  org:name: {kind: data, range: [xsd:string]}
`
	res, err := NewSynthesizer(catalog(t, doc)).Synthesize(context.Background())
	require.NoError(t, err)

	name, ok := res.Names.TypeName("ex:Person")
	require.True(t, ok)
	assert.Equal(t, "Person", name)

	name, ok = res.Names.TypeName("org:Person")
	require.True(t, ok)
	assert.Equal(t, "OrgPerson", name)

	assert.Contains(t, res.SDL, "type OrgPerson {")
	assert.Contains(t, res.SDL, "OrgPerson: [OrgPerson]")
}

func TestSynthesizeDuplicateLocalFieldNames(t *testing.T) {
	doc := `
prefixes:
  ex: http://example.org/
types:
  ex:Person:
    properties: [ex:name, foaf:name]
properties:
  ex:name: {kind: data, range: [xsd:string]}
  foaf:name: {kind: data, range: [xsd:string]}
`
	res, err := NewSynthesizer(catalog(t, doc)).Synthesize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"name": "ex:name", "foafName": "foaf:name"}, res.Names.fieldMap("Person"))
}

func TestSynthesizeDropsUnreachableTypes(t *testing.T) {
	doc := `
prefixes:
  ex: http://example.org/
types:
  ex:A:
    properties: [ex:toB]
  ex:B:
    properties: [ex:toC]
  ex:C: {}
  ex:D:
    properties: [ex:label, ex:toA]
properties:
  ex:toB: {kind: object, range: [ex:B]}
  ex:toC: {kind: object, range: [ex:C]}
  ex:toA: {kind: object, range: [ex:A]}
  ex:label: {kind: data, range: [xsd:string]}
`
	res, err := NewSynthesizer(catalog(t, doc)).Synthesize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"D"}, res.Names.typeNames())
	assert.NotContains(t, res.SDL, "toA")
	assert.Contains(t, res.SDL, "label: String")
}

func TestSynthesizeEmptyCatalog(t *testing.T) {
	_, err := NewSynthesizer(catalog(t, "prefixes: {ex: http://example.org/}\n")).Synthesize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedSchema))
	assert.True(t, errors.IsFatal(err))
}

func TestSynthesizeObjectRangeNarrowest(t *testing.T) {
	doc := `
prefixes:
  ex: http://example.org/
types:
  ex:Agent:
    sub: [ex:Person]
    properties: [ex:label]
  ex:Person:
    properties: [ex:label]
  ex:Doc:
    properties: [ex:author]
properties:
  ex:label: {kind: data, range: [xsd:string]}
  ex:author: {kind: object, range: [ex:Agent, ex:Person]}
`
	res, err := NewSynthesizer(catalog(t, doc)).Synthesize(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.SDL, "author: [Person]")
}

func TestSynthesizeQueryArguments(t *testing.T) {
	c := catalog(t, `
prefixes:
  ex: http://example.org/
types:
  ex:Person:
    properties: [ex:name]
  ex:Student:
    super: [ex:Person]
    properties: [ex:name]
properties:
  ex:name: {kind: data, range: [xsd:string]}
`)
	gw := memory.New(c, rdf.NewGraph(), []agora.Description{
		{ID: "ex:people", Kind: agora.KindTD, Type: "ex:Person", Vars: []string{"$name", "$item", "$parent", "$city"}},
		{ID: "ex:students", Kind: agora.KindTD, Type: "ex:Student", Vars: []string{"$school"}},
		{ID: "ex:seed", Kind: agora.KindResource, Type: "ex:Person", Vars: []string{"$ignored"}},
	}, nil)

	res, err := NewSynthesizer(c, WithDiscoverer(gw)).Synthesize(context.Background())
	require.NoError(t, err)

	assert.Contains(t, res.SDL, "\tPerson(city: String, name: String): [Person]\n")
	assert.Contains(t, res.SDL, "\tStudent(school: String): [Student]\n")
	assert.NotContains(t, res.SDL, "ignored")
}

func TestSynthesizeIdentityField(t *testing.T) {
	res, err := NewSynthesizer(catalog(t, personCatalog), WithIdentityField(true)).Synthesize(context.Background())
	require.NoError(t, err)

	assert.Contains(t, res.SDL, "type Person {\n\t_uri: String\n\tname: String\n")
	_, ok := res.Names.Property("Person", IdentityField)
	assert.False(t, ok)
}

func TestTitle(t *testing.T) {
	tests := []struct {
		id   string
		want string
	}{
		{"ex:Person", "Person"},
		{"ex:postal_address", "PostalAddress"},
		{"ex:PostalAddress", "PostalAddress"},
		{"http://example.org/ns#Thing", "Thing"},
		{"ex:3d", "T3D"},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, Title(tt.id))
		})
	}
	assert.Equal(t, "OrgPerson", QualifiedTitle("org:Person"))
}

func TestFieldName(t *testing.T) {
	assert.Equal(t, "worksAt", FieldName("ex:worksAt"))
	assert.Equal(t, "birth_date", FieldName("ex:birth-date"))
	assert.Equal(t, "_3d", FieldName("ex:3d"))
	assert.Equal(t, "foafName", qualifiedFieldName("foaf:name"))
}
