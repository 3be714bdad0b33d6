package memory

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/rdf"
	"github.com/c360/semql/vocabulary"
)

// Dataset is the file form of an in-memory gateway's data.
//
//	prefixes:
//	  ex: http://example.org/
//	descriptions:
//	  - {id: ex:people, kind: td, type: ex:Person, vars: [$name, $item]}
//	entities:
//	  - id: ex:A
//	    types: [ex:Person]
//	    properties:
//	      ex:name: [A]
//	      ex:knows: [{id: ex:B}]
//	      ex:age: [{value: "30", datatype: xsd:integer}]
//
// Plain YAML scalars become literals typed by their YAML tag; {id: ...} values
// are nodes ("_:"-prefixed ids are blank nodes).
type Dataset struct {
	Prefixes     map[string]string   `yaml:"prefixes"`
	Descriptions []agora.Description `yaml:"descriptions"`
	Entities     []Entity            `yaml:"entities"`
}

// Entity is one subject of a dataset.
type Entity struct {
	ID         string             `yaml:"id"`
	Types      []string           `yaml:"types"`
	Properties map[string][]Value `yaml:"properties"`
}

// Value is a node reference or a literal.
type Value struct {
	ID       string `yaml:"id"`
	Value    string `yaml:"value"`
	Datatype string `yaml:"datatype"`
	Lang     string `yaml:"lang"`
}

// UnmarshalYAML accepts a plain scalar or a mapping.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		type plain Value
		return node.Decode((*plain)(v))
	}

	v.Value = node.Value
	switch node.ShortTag() {
	case "!!int":
		v.Datatype = "xsd:integer"
	case "!!float":
		v.Datatype = "xsd:double"
	case "!!bool":
		v.Datatype = "xsd:boolean"
		if b, err := strconv.ParseBool(node.Value); err == nil {
			v.Value = strconv.FormatBool(b)
		}
	default:
		v.Datatype = "xsd:string"
	}
	return nil
}

// LoadDataset reads a YAML dataset file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "memory", "LoadDataset", "read dataset file")
	}
	return ParseDataset(data)
}

// ParseDataset decodes a YAML dataset.
func ParseDataset(data []byte) (*Dataset, error) {
	var ds Dataset
	if err := yaml.Unmarshal(data, &ds); err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"memory", "ParseDataset", "decode dataset")
	}
	return &ds, nil
}

// Graph expands the dataset into triples, using prefixes merged over the
// dataset's own table.
func (ds *Dataset) Graph(prefixes vocabulary.Prefixes) (*rdf.Graph, error) {
	p := vocabulary.StandardPrefixes().Merge(prefixes).Merge(ds.Prefixes)
	g := rdf.NewGraph()

	for _, e := range ds.Entities {
		if e.ID == "" {
			return nil, errors.WrapInvalid(errors.ErrInvalidData, "memory", "Graph", "entity without id")
		}
		subject := rdf.NodeFromID(p.ExtendURI(e.ID))

		for _, t := range e.Types {
			g.Add(rdf.Triple{Subject: subject, Predicate: rdf.RDFType, Object: rdf.NewIRI(p.ExtendURI(t))})
		}
		for pred, values := range e.Properties {
			predicate := p.ExtendURI(pred)
			for _, v := range values {
				g.Add(rdf.Triple{Subject: subject, Predicate: predicate, Object: v.term(p)})
			}
		}
	}
	return g, nil
}

func (v Value) term(p vocabulary.Prefixes) rdf.Term {
	switch {
	case v.ID != "":
		return rdf.NodeFromID(p.ExtendURI(v.ID))
	case v.Lang != "":
		return rdf.NewLangLiteral(v.Value, v.Lang)
	default:
		return rdf.NewLiteral(v.Value, p.ExtendURI(v.Datatype))
	}
}
