package vocabulary

import (
	"maps"
	"slices"
	"sync"
)

// Scalar names a query-language scalar type.
type Scalar string

const (
	ScalarString   Scalar = "String"
	ScalarBoolean  Scalar = "Boolean"
	ScalarInt      Scalar = "Int"
	ScalarFloat    Scalar = "Float"
	ScalarDateTime Scalar = "DateTime"
	ScalarDate     Scalar = "Date"
	ScalarTime     Scalar = "Time"
)

// IsBuiltin reports whether s is predefined by the query language and needs no
// scalar declaration in a schema document.
func (s Scalar) IsBuiltin() bool {
	switch s {
	case ScalarString, ScalarBoolean, ScalarInt, ScalarFloat:
		return true
	default:
		return false
	}
}

// String returns the scalar name.
func (s Scalar) String() string {
	return string(s)
}

// DatatypeMetadata describes how a literal datatype is exposed.
type DatatypeMetadata struct {
	// IRI is the full datatype IRI.
	IRI string

	// Scalar is the query-language scalar values of this datatype resolve to.
	Scalar Scalar

	// Description is optional documentation.
	Description string
}

// Option is a functional option for datatype registration.
type Option func(*DatatypeMetadata)

// WithScalar sets the scalar a datatype maps to.
func WithScalar(s Scalar) Option {
	return func(m *DatatypeMetadata) {
		m.Scalar = s
	}
}

// WithDescription sets the datatype description.
func WithDescription(desc string) Option {
	return func(m *DatatypeMetadata) {
		m.Description = desc
	}
}

var (
	registryMu        sync.RWMutex
	datatypeRegistry  = make(map[string]DatatypeMetadata)
	builtinsInstalled sync.Once
)

func installBuiltins() {
	builtinsInstalled.Do(func() {
		table := map[Scalar][]string{
			ScalarString: {
				"string", "normalizedString", "token", "language", "anyURI",
				"Name", "NCName", "NMTOKEN", "QName",
			},
			ScalarBoolean: {"boolean"},
			ScalarInt: {
				"integer", "int", "long", "short", "byte",
				"nonNegativeInteger", "positiveInteger", "negativeInteger", "nonPositiveInteger",
				"unsignedInt", "unsignedLong", "unsignedShort", "unsignedByte",
			},
			ScalarFloat:    {"float", "double", "decimal"},
			ScalarDateTime: {"dateTime", "dateTimeStamp"},
			ScalarDate:     {"date"},
			ScalarTime:     {"time"},
		}

		registryMu.Lock()
		defer registryMu.Unlock()
		for scalar, locals := range table {
			for _, local := range locals {
				iri := XSD + local
				datatypeRegistry[iri] = DatatypeMetadata{IRI: iri, Scalar: scalar}
			}
		}
	})
}

// RegisterDatatype adds or replaces a datatype mapping. The default scalar is
// ScalarString.
func RegisterDatatype(iri string, opts ...Option) {
	installBuiltins()

	meta := DatatypeMetadata{IRI: iri, Scalar: ScalarString}
	for _, opt := range opts {
		opt(&meta)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	datatypeRegistry[iri] = meta
}

// GetDatatypeMetadata returns the registered metadata for iri, or nil.
func GetDatatypeMetadata(iri string) *DatatypeMetadata {
	installBuiltins()

	registryMu.RLock()
	defer registryMu.RUnlock()
	meta, ok := datatypeRegistry[iri]
	if !ok {
		return nil
	}
	return &meta
}

// ScalarFor returns the scalar for a full datatype IRI, or ScalarString when the
// datatype is not recognized. The second result reports recognition.
func ScalarFor(iri string) (Scalar, bool) {
	if meta := GetDatatypeMetadata(iri); meta != nil {
		return meta.Scalar, true
	}
	return ScalarString, false
}

// ListDatatypes returns every registered datatype IRI in sorted order.
func ListDatatypes() []string {
	installBuiltins()

	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(datatypeRegistry))
}
