// Package rdf holds the graph representation shared by loaders, gateways and the
// resolver: terms, triples, quads and an indexed, thread-safe Graph.
//
// Identifiers follow the usual split between dereferenceable IRIs and local blank
// nodes. A blank node identifier starts with "_" (typically "_:b0") and is never
// fetched remotely.
package rdf

import (
	"strconv"
	"strings"

	"github.com/c360/semql/pkg/timestamp"
)

// TermKind tells the three kinds of RDF terms apart.
type TermKind uint8

const (
	// KindIRI is a dereferenceable resource identifier.
	KindIRI TermKind = iota
	// KindBlank is a local, non-dereferenceable node.
	KindBlank
	// KindLiteral is a typed or language-tagged value.
	KindLiteral
)

// String returns the SPARQL JSON results name of the kind.
func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "uri"
	case KindBlank:
		return "bnode"
	case KindLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

// Term is a node or a value in a graph.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

// NewIRI creates an IRI term.
func NewIRI(iri string) Term {
	return Term{Kind: KindIRI, Value: iri}
}

// NewBlank creates a blank node term. A missing "_:" prefix is added.
func NewBlank(id string) Term {
	if !strings.HasPrefix(id, "_:") {
		id = "_:" + strings.TrimPrefix(id, "_")
	}
	return Term{Kind: KindBlank, Value: id}
}

// NewLiteral creates a literal. An empty datatype means xsd:string.
func NewLiteral(value, datatype string) Term {
	if datatype == "" {
		datatype = XSDString
	}
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// NewLangLiteral creates a language-tagged string literal.
func NewLangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Datatype: RDFLangString, Lang: lang}
}

// NodeFromID maps an entity identifier to a node term. Identifiers starting
// with "_" are blank nodes; everything else is an IRI.
func NodeFromID(id string) Term {
	if IsBlankID(id) {
		return NewBlank(id)
	}
	return NewIRI(id)
}

// IsBlankID reports whether id names a local blank node.
func IsBlankID(id string) bool {
	return strings.HasPrefix(id, "_")
}

// IsDereferenceable reports whether id can be fetched from a remote source.
func IsDereferenceable(id string) bool {
	return id != "" && !IsBlankID(id)
}

// IsIRI reports whether t is an IRI.
func (t Term) IsIRI() bool { return t.Kind == KindIRI }

// IsBlank reports whether t is a blank node.
func (t Term) IsBlank() bool { return t.Kind == KindBlank }

// IsLiteral reports whether t is a literal.
func (t Term) IsLiteral() bool { return t.Kind == KindLiteral }

// IsNode reports whether t can be the subject of a triple.
func (t Term) IsNode() bool { return t.Kind == KindIRI || t.Kind == KindBlank }

// IsZero reports whether t is the zero term.
func (t Term) IsZero() bool { return t == Term{} }

// Key is a map key unique per term.
func (t Term) Key() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return t.Value
	default:
		if t.Lang != "" {
			return strconv.Quote(t.Value) + "@" + t.Lang
		}
		return strconv.Quote(t.Value) + "^^<" + t.Datatype + ">"
	}
}

// String renders t in N-Triples notation.
func (t Term) String() string {
	return t.Key()
}

// Native converts t into the Go value handed to the query executor.
// IRIs and blank nodes become their identifier; literals are converted
// according to their datatype and fall back to the lexical form.
func (t Term) Native() any {
	if t.Kind != KindLiteral {
		return t.Value
	}

	switch t.Datatype {
	case XSDBoolean:
		if b, err := strconv.ParseBool(strings.TrimSpace(t.Value)); err == nil {
			return b
		}
	case XSDInteger, XSDInt, XSDLong, XSDShort, XSDByte,
		XSDNonNegativeInteger, XSDPositiveInteger, XSDNegativeInteger, XSDNonPositiveInteger,
		XSDUnsignedInt, XSDUnsignedLong, XSDUnsignedShort, XSDUnsignedByte:
		if i, err := strconv.ParseInt(strings.TrimSpace(t.Value), 10, 64); err == nil {
			return int(i)
		}
	case XSDFloat, XSDDouble, XSDDecimal:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t.Value), 64); err == nil {
			return f
		}
	case XSDDateTime:
		if ts, err := timestamp.Parse(timestamp.DateTime, t.Value); err == nil {
			return ts
		}
	case XSDDate:
		if ts, err := timestamp.Parse(timestamp.Date, t.Value); err == nil {
			return ts
		}
	case XSDTime:
		if ts, err := timestamp.Parse(timestamp.Time, t.Value); err == nil {
			return ts
		}
	}
	return t.Value
}
