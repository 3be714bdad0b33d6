package vocabulary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtendURI(t *testing.T) {
	p := StandardPrefixes().Merge(Prefixes{"ex": "http://example.org/"})

	tests := []struct {
		in       string
		expected string
	}{
		{"ex:Person", "http://example.org/Person"},
		{"xsd:string", XSD + "string"},
		{"unknown:Thing", "unknown:Thing"},
		{"http://example.org/Person", "http://example.org/Person"},
		{"Person", "Person"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.ExtendURI(tt.in))
		})
	}
}

func TestCompactURIPicksLongestNamespace(t *testing.T) {
	p := Prefixes{
		"ex":  "http://example.org/",
		"exv": "http://example.org/vocab#",
	}

	assert.Equal(t, "exv:name", p.CompactURI("http://example.org/vocab#name"))
	assert.Equal(t, "ex:Person", p.CompactURI("http://example.org/Person"))
	assert.Equal(t, "http://other.org/x", p.CompactURI("http://other.org/x"))
}

func TestLocalName(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"ex:worksAt", "worksAt"},
		{"http://example.org/vocab#name", "name"},
		{"http://example.org/Person", "Person"},
		{"urn:isbn:123", "123"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, LocalName(tt.in))
		})
	}
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, "ex", Namespace("ex:Person"))
	assert.Equal(t, "", Namespace("http://example.org/Person"))
	assert.Equal(t, "", Namespace("Person"))
}

func TestScalarFor(t *testing.T) {
	tests := []struct {
		datatype   string
		expected   Scalar
		recognized bool
	}{
		{XSD + "string", ScalarString, true},
		{XSD + "boolean", ScalarBoolean, true},
		{XSD + "nonNegativeInteger", ScalarInt, true},
		{XSD + "decimal", ScalarFloat, true},
		{XSD + "dateTime", ScalarDateTime, true},
		{XSD + "date", ScalarDate, true},
		{XSD + "time", ScalarTime, true},
		{XSD + "gYear", ScalarString, false},
		{"http://example.org/Person", ScalarString, false},
	}

	for _, tt := range tests {
		t.Run(tt.datatype, func(t *testing.T) {
			scalar, ok := ScalarFor(tt.datatype)
			assert.Equal(t, tt.expected, scalar)
			assert.Equal(t, tt.recognized, ok)
		})
	}
}

func TestRegisterDatatype(t *testing.T) {
	iri := "http://example.org/celsius"
	RegisterDatatype(iri, WithScalar(ScalarFloat), WithDescription("degrees"))

	meta := GetDatatypeMetadata(iri)
	if assert.NotNil(t, meta) {
		assert.Equal(t, ScalarFloat, meta.Scalar)
		assert.Equal(t, "degrees", meta.Description)
	}
	assert.Contains(t, ListDatatypes(), iri)
}

func TestScalarIsBuiltin(t *testing.T) {
	assert.True(t, ScalarInt.IsBuiltin())
	assert.False(t, ScalarDateTime.IsBuiltin())
}
