package rdf

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ex = "http://example.org/"

func TestNodeFromID(t *testing.T) {
	tests := []struct {
		id    string
		kind  TermKind
		value string
		deref bool
	}{
		{ex + "A", KindIRI, ex + "A", true},
		{"_:b0", KindBlank, "_:b0", false},
		{"_b1", KindBlank, "_:b1", false},
		{"", KindIRI, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			term := NodeFromID(tt.id)
			assert.Equal(t, tt.kind, term.Kind)
			assert.Equal(t, tt.value, term.Value)
			assert.Equal(t, tt.deref, IsDereferenceable(tt.id))
		})
	}
}

func TestTermNative(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		term     Term
		expected any
	}{
		{"iri", NewIRI(ex + "A"), ex + "A"},
		{"string", NewLiteral("Alice", ""), "Alice"},
		{"boolean", NewLiteral("true", XSDBoolean), true},
		{"integer", NewLiteral(" 42", XSDInteger), 42},
		{"double", NewLiteral("1.5", XSDDouble), 1.5},
		{"dateTime", NewLiteral("2024-05-01T12:00:00Z", XSDDateTime), ts},
		{"dateTime without zone", NewLiteral("2024-05-01T12:00:00", XSDDateTime), ts},
		{"date", NewLiteral("2024-05-01", XSDDate), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"bad date keeps lexical form", NewLiteral("May 1st", XSDDate), "May 1st"},
		{"bad integer keeps lexical form", NewLiteral("many", XSDInt), "many"},
		{"lang string", NewLangLiteral("hallo", "de"), "hallo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.term.Native())
		})
	}
}

func TestGraphAddDeduplicates(t *testing.T) {
	a := NewIRI(ex + "A")
	g := NewGraph()

	added := g.Add(
		Triple{a, ex + "name", NewLiteral("A", "")},
		Triple{a, ex + "name", NewLiteral("A", "")},
		Triple{a, ex + "name", NewLiteral("Alpha", "")},
	)

	assert.Equal(t, 2, added)
	assert.Equal(t, 2, g.Len())
	assert.Equal(t, []Term{NewLiteral("A", ""), NewLiteral("Alpha", "")}, g.Objects(a, ex+"name"))
}

func TestGraphObjectsReturnsCopy(t *testing.T) {
	a := NewIRI(ex + "A")
	g := NewGraph(Triple{a, ex + "knows", NewIRI(ex + "B")})

	first := g.Objects(a, ex+"knows")
	first[0] = NewIRI(ex + "Z")

	assert.Equal(t, []Term{NewIRI(ex + "B")}, g.Objects(a, ex+"knows"))
	assert.Nil(t, g.Objects(a, ex+"missing"))
	assert.Nil(t, g.Objects(NewIRI(ex+"nobody"), ex+"knows"))
}

func TestGraphDescribeFollowsBlankNodes(t *testing.T) {
	a := NewIRI(ex + "A")
	addr := NewBlank("_:addr")
	geo := NewBlank("_:geo")

	g := NewGraph(
		Triple{a, ex + "name", NewLiteral("A", "")},
		Triple{a, ex + "address", addr},
		Triple{a, ex + "knows", NewIRI(ex + "B")},
		Triple{addr, ex + "street", NewLiteral("Main", "")},
		Triple{addr, ex + "geo", geo},
		Triple{geo, ex + "lat", NewLiteral("1.0", XSDDouble)},
		Triple{NewIRI(ex + "B"), ex + "name", NewLiteral("B", "")},
	)

	d := g.Describe(a)
	assert.Equal(t, 6, d.Len())
	assert.True(t, d.HasSubject(addr))
	assert.True(t, d.HasSubject(geo))
	assert.False(t, d.HasSubject(NewIRI(ex+"B")))
}

func TestGraphSubjects(t *testing.T) {
	person := NewIRI(ex + "Person")
	g := NewGraph(
		Triple{NewIRI(ex + "A"), RDFType, person},
		Triple{NewIRI(ex + "B"), RDFType, person},
		Triple{NewIRI(ex + "C"), RDFType, NewIRI(ex + "Org")},
	)

	assert.Equal(t, []Term{NewIRI(ex + "A"), NewIRI(ex + "B")}, g.Subjects(RDFType, person))
}

func TestGraphMerge(t *testing.T) {
	a := NewIRI(ex + "A")
	g := NewGraph(Triple{a, ex + "name", NewLiteral("A", "")})
	other := NewGraph(
		Triple{a, ex + "name", NewLiteral("A", "")},
		Triple{a, ex + "age", NewLiteral("3", XSDInteger)},
	)

	assert.Equal(t, 1, g.Merge(other))
	assert.Equal(t, 0, g.Merge(nil))
	assert.Equal(t, 0, g.Merge(g))
	assert.Equal(t, 2, g.Len())
}

func TestGraphConcurrentAccess(t *testing.T) {
	g := NewGraph()
	a := NewIRI(ex + "A")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g.Add(Triple{a, ex + "n", NewLiteral(string(rune('a'+i%26)), "")})
			_ = g.Objects(a, ex+"n")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 26, g.Len())
}

func TestJSONRoundTrip(t *testing.T) {
	a := NewIRI(ex + "A")
	g := NewGraph(
		Triple{a, ex + "name", NewLangLiteral("Anna", "en")},
		Triple{a, ex + "age", NewLiteral("30", XSDInteger)},
		Triple{a, ex + "address", NewBlank("_:b0")},
		Triple{NewBlank("_:b0"), ex + "street", NewLiteral("Main", "")},
	)

	data, err := json.Marshal(g)
	require.NoError(t, err)

	decoded := NewGraph()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, g.Triples(), decoded.Triples())
}

func TestTermJSONEncoding(t *testing.T) {
	data, err := json.Marshal(NewLiteral("x", ""))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"literal","value":"x"}`, string(data))

	var term Term
	require.NoError(t, json.Unmarshal([]byte(`{"type":"typed-literal","value":"1","datatype":"`+XSDInt+`"}`), &term))
	assert.Equal(t, NewLiteral("1", XSDInt), term)

	assert.Error(t, json.Unmarshal([]byte(`{"type":"other","value":"1"}`), &term))
}

func TestQuadJSON(t *testing.T) {
	q := Quad{
		Context: NewIRI(ex + "g"),
		Triple:  Triple{NewIRI(ex + "A"), RDFType, NewIRI(ex + "Person")},
	}

	data, err := json.Marshal(q)
	require.NoError(t, err)

	var decoded Quad
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, q, decoded)
}
