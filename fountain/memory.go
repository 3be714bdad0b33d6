package fountain

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/vocabulary"
)

// Document is the file form of a catalog.
//
//	prefixes:
//	  ex: http://example.org/
//	types:
//	  ex:Person:
//	    properties: [ex:name, ex:knows]
//	  ex:Student:
//	    super: [ex:Person]
//	properties:
//	  ex:name: {kind: data, range: [xsd:string]}
//	  ex:knows: {kind: object, range: [ex:Person]}
type Document struct {
	Prefixes   map[string]string       `yaml:"prefixes" json:"prefixes"`
	Types      map[string]TypeSpec     `yaml:"types" json:"types"`
	Properties map[string]PropertySpec `yaml:"properties" json:"properties"`
}

// TypeSpec declares one type. Sub and Super may be given partially; the
// catalog computes their transitive closure.
type TypeSpec struct {
	Properties []string `yaml:"properties" json:"properties"`
	Sub        []string `yaml:"sub" json:"sub"`
	Super      []string `yaml:"super" json:"super"`
}

// PropertySpec declares one property.
type PropertySpec struct {
	Kind  PropertyKind `yaml:"kind" json:"kind"`
	Range []string     `yaml:"range" json:"range"`
}

// Memory is an in-memory Catalog.
type Memory struct {
	prefixes   vocabulary.Prefixes
	types      map[string]Type
	properties map[string]Property
	order      []string
}

// LoadFile reads a YAML (or JSON) catalog document.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "fountain", "LoadFile", "read catalog file")
	}
	return Parse(data)
}

// Parse decodes a YAML (or JSON) catalog document.
func Parse(data []byte) (*Memory, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"fountain", "Parse", "decode catalog document")
	}
	return NewMemory(doc)
}

// NewMemory builds a catalog from a document. Property domains are derived from
// the type declarations.
func NewMemory(doc Document) (*Memory, error) {
	m := &Memory{
		prefixes:   vocabulary.StandardPrefixes().Merge(doc.Prefixes),
		types:      make(map[string]Type, len(doc.Types)),
		properties: make(map[string]Property, len(doc.Properties)),
	}

	for id, spec := range doc.Properties {
		if !spec.Kind.Valid() {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: property %s has kind %q", errors.ErrInvalidData, id, spec.Kind),
				"fountain", "NewMemory", "validate property")
		}
		if len(spec.Range) == 0 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: property %s has an empty range", errors.ErrInvalidData, id),
				"fountain", "NewMemory", "validate property")
		}
		m.properties[id] = Property{ID: id, Kind: spec.Kind, Range: slices.Clone(spec.Range)}
	}

	sub := map[string]map[string]bool{}
	link := func(broad, narrow string) {
		if sub[broad] == nil {
			sub[broad] = map[string]bool{}
		}
		sub[broad][narrow] = true
	}
	for id, spec := range doc.Types {
		for _, s := range spec.Sub {
			link(id, s)
		}
		for _, s := range spec.Super {
			link(s, id)
		}
	}

	for id, spec := range doc.Types {
		for _, p := range spec.Properties {
			prop, ok := m.properties[p]
			if !ok {
				return nil, errors.WrapInvalid(
					fmt.Errorf("%w: type %s references undeclared property %s", errors.ErrInvalidData, id, p),
					"fountain", "NewMemory", "validate type")
			}
			prop.Domain = append(prop.Domain, id)
			m.properties[p] = prop
		}
		m.types[id] = Type{
			ID:         id,
			Properties: slices.Clone(spec.Properties),
			Sub:        closure(id, sub),
		}
	}

	for id := range m.types {
		for _, narrow := range m.types[id].Sub {
			if t, ok := m.types[narrow]; ok {
				t.Super = append(t.Super, id)
				m.types[narrow] = t
			}
		}
	}
	for id, t := range m.types {
		slices.Sort(t.Super)
		m.types[id] = t
	}
	for id, p := range m.properties {
		slices.Sort(p.Domain)
		m.properties[id] = p
	}

	m.order = slices.Sorted(maps.Keys(m.types))
	return m, nil
}

// closure returns every type reachable from id through sub edges, sorted.
func closure(id string, sub map[string]map[string]bool) []string {
	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for narrow := range sub[cur] {
			if !seen[narrow] {
				seen[narrow] = true
				out = append(out, narrow)
				queue = append(queue, narrow)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Types implements Catalog.
func (m *Memory) Types(context.Context) ([]string, error) {
	return slices.Clone(m.order), nil
}

// Type implements Catalog.
func (m *Memory) Type(_ context.Context, id string) (Type, error) {
	t, ok := m.types[id]
	if !ok {
		return Type{}, errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrUnknownType, id),
			"fountain", "Type", "lookup type")
	}
	return cloneType(t), nil
}

// Property implements Catalog.
func (m *Memory) Property(_ context.Context, id string) (Property, error) {
	p, ok := m.properties[id]
	if !ok {
		return Property{}, errors.WrapInvalid(fmt.Errorf("%w: property %s", errors.ErrUnknownType, id),
			"fountain", "Property", "lookup property")
	}
	return cloneProperty(p), nil
}

// Prefixes implements Catalog.
func (m *Memory) Prefixes(context.Context) (vocabulary.Prefixes, error) {
	return maps.Clone(m.prefixes), nil
}

// Document returns the catalog in file form.
func (m *Memory) Document() Document {
	doc := Document{
		Prefixes:   maps.Clone(map[string]string(m.prefixes)),
		Types:      make(map[string]TypeSpec, len(m.types)),
		Properties: make(map[string]PropertySpec, len(m.properties)),
	}
	for id, t := range m.types {
		doc.Types[id] = TypeSpec{Properties: slices.Clone(t.Properties), Sub: slices.Clone(t.Sub)}
	}
	for id, p := range m.properties {
		doc.Properties[id] = PropertySpec{Kind: p.Kind, Range: slices.Clone(p.Range)}
	}
	return doc
}

func cloneType(t Type) Type {
	t.Properties = slices.Clone(t.Properties)
	t.Sub = slices.Clone(t.Sub)
	t.Super = slices.Clone(t.Super)
	return t
}

func cloneProperty(p Property) Property {
	p.Range = slices.Clone(p.Range)
	p.Domain = slices.Clone(p.Domain)
	return p
}
