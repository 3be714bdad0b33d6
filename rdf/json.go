package rdf

import (
	"encoding/json"
	"fmt"
)

// jsonTerm is the SPARQL 1.1 JSON results encoding of a term.
type jsonTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

// MarshalJSON encodes t as a SPARQL JSON term.
func (t Term) MarshalJSON() ([]byte, error) {
	jt := jsonTerm{Type: t.Kind.String(), Value: t.Value}
	if t.Kind == KindLiteral {
		if t.Lang != "" {
			jt.Lang = t.Lang
		} else if t.Datatype != XSDString {
			jt.Datatype = t.Datatype
		}
	}
	return json.Marshal(jt)
}

// UnmarshalJSON decodes a SPARQL JSON term.
func (t *Term) UnmarshalJSON(data []byte) error {
	var jt jsonTerm
	if err := json.Unmarshal(data, &jt); err != nil {
		return err
	}

	switch jt.Type {
	case "uri":
		*t = NewIRI(jt.Value)
	case "bnode":
		*t = NewBlank(jt.Value)
	case "literal", "typed-literal":
		if jt.Lang != "" {
			*t = NewLangLiteral(jt.Value, jt.Lang)
		} else {
			*t = NewLiteral(jt.Value, jt.Datatype)
		}
	default:
		return fmt.Errorf("unknown term type %q", jt.Type)
	}
	return nil
}

type jsonTriple struct {
	Subject   Term   `json:"s"`
	Predicate string `json:"p"`
	Object    Term   `json:"o"`
}

type jsonQuad struct {
	Context Term `json:"g"`
	jsonTriple
}

// MarshalJSON encodes the triple as {"s","p","o"}.
func (tr Triple) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonTriple{Subject: tr.Subject, Predicate: tr.Predicate, Object: tr.Object})
}

// UnmarshalJSON decodes {"s","p","o"}.
func (tr *Triple) UnmarshalJSON(data []byte) error {
	var jt jsonTriple
	if err := json.Unmarshal(data, &jt); err != nil {
		return err
	}
	*tr = Triple{Subject: jt.Subject, Predicate: jt.Predicate, Object: jt.Object}
	return nil
}

// MarshalJSON encodes the quad as {"g","s","p","o"}.
func (q Quad) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonQuad{
		Context:    q.Context,
		jsonTriple: jsonTriple{Subject: q.Subject, Predicate: q.Predicate, Object: q.Object},
	})
}

// UnmarshalJSON decodes {"g","s","p","o"}.
func (q *Quad) UnmarshalJSON(data []byte) error {
	var jq jsonQuad
	if err := json.Unmarshal(data, &jq); err != nil {
		return err
	}
	*q = Quad{
		Context: jq.Context,
		Triple:  Triple{Subject: jq.Subject, Predicate: jq.Predicate, Object: jq.Object},
	}
	return nil
}

// MarshalJSON encodes the graph as an array of triples.
func (g *Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Triples())
}

// UnmarshalJSON replaces the graph contents with the decoded triples.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var triples []Triple
	if err := json.Unmarshal(data, &triples); err != nil {
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.spo = make(map[string]*subjectIndex)
	g.order = nil
	g.size = 0
	for _, t := range triples {
		g.addLocked(t)
	}
	return nil
}
