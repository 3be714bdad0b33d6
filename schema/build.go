package schema

import (
	"fmt"
	"slices"
	"time"

	"github.com/graphql-go/graphql"
	gqlast "github.com/graphql-go/graphql/language/ast"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/c360/semql/errors"
	"github.com/c360/semql/pkg/timestamp"
	"github.com/c360/semql/vocabulary"
)

// Shape is the runtime category of a field's declared type.
type Shape int

const (
	// ShapeScalar fields hold one literal value.
	ShapeScalar Shape = iota
	// ShapeObject fields hold one entity.
	ShapeObject
	// ShapeList fields hold a list of literals or entities; see FieldSpec.Elem.
	ShapeList
)

// String returns the metric label of the shape.
func (s Shape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeObject:
		return "object"
	case ShapeList:
		return "list"
	default:
		return "unknown"
	}
}

// FieldSpec describes one field of an executable schema as seen by its resolver.
type FieldSpec struct {
	// Parent is the schema name of the type declaring the field.
	Parent string
	Name   string
	Shape  Shape
	// Elem is the shape of list elements; only set for ShapeList.
	Elem Shape
	// NonNull reports a required value.
	NonNull bool
	// TypeName is the innermost named type.
	TypeName string
	// Root marks fields of the query type.
	Root bool
	// Property is the catalog property behind the field when known.
	Property string
	// RootType is the catalog type listed by a root field when known.
	RootType string
	// Args lists the declared argument names.
	Args []string
}

// Binder returns the resolver of a field.
type Binder func(FieldSpec) graphql.FieldResolveFn

// Build parses sdl and returns an executable schema whose fields resolve through
// bind. names may be nil for hand-written schemas; fields are then matched to
// catalog properties by their resolver. Only object, scalar and enum types and a
// query root are supported.
func Build(sdl string, names *Names, bind Binder) (graphql.Schema, error) {
	doc, gqlErr := gqlparser.LoadSchema(&ast.Source{Name: "schema", Input: sdl})
	if gqlErr != nil {
		return graphql.Schema{}, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrParsingFailed, gqlErr),
			"schema", "Build", "parse schema document")
	}
	if doc.Query == nil {
		return graphql.Schema{}, unsupported("schema has no query type")
	}
	if doc.Mutation != nil || doc.Subscription != nil {
		return graphql.Schema{}, unsupported("only query operations are supported")
	}

	b := &builder{
		doc:     doc,
		names:   names,
		bind:    bind,
		objects: make(map[string]*graphql.Object),
		leaves:  make(map[string]graphql.Type),
	}

	typeNames := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		typeNames = append(typeNames, name)
	}
	slices.Sort(typeNames)

	for _, name := range typeNames {
		def := doc.Types[name]
		if def.BuiltIn {
			continue
		}
		switch def.Kind {
		case ast.Object:
			b.objects[name] = b.object(def)
		case ast.Scalar:
			b.leaves[name] = newScalar(def)
		case ast.Enum:
			b.leaves[name] = newEnum(def)
		default:
			return graphql.Schema{}, unsupported(fmt.Sprintf("%s %s", def.Kind, name))
		}
	}

	// Reject unsupported constructs before the thunks run inside NewSchema.
	for _, name := range typeNames {
		def := doc.Types[name]
		if def.BuiltIn || def.Kind != ast.Object {
			continue
		}
		for _, f := range def.Fields {
			if f.Name == "__typename" || f.Name == "__schema" || f.Name == "__type" {
				continue
			}
			if _, err := b.outputType(f.Type); err != nil {
				return graphql.Schema{}, err
			}
			for _, a := range f.Arguments {
				if _, err := b.inputType(a.Type); err != nil {
					return graphql.Schema{}, err
				}
			}
		}
	}

	query, ok := b.objects[doc.Query.Name]
	if !ok {
		return graphql.Schema{}, unsupported("query type is not an object")
	}

	var extra []graphql.Type
	for _, name := range typeNames {
		if obj, ok := b.objects[name]; ok && name != doc.Query.Name {
			extra = append(extra, obj)
		} else if leaf, ok := b.leaves[name]; ok {
			extra = append(extra, leaf)
		}
	}

	s, err := graphql.NewSchema(graphql.SchemaConfig{Query: query, Types: extra})
	if err != nil {
		return graphql.Schema{}, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrUnsupportedSchema, err),
			"schema", "Build", "assemble executable schema")
	}
	return s, nil
}

func unsupported(what string) error {
	return errors.WrapFatal(fmt.Errorf("%w: %s", errors.ErrUnsupportedSchema, what), "schema", "Build", "check schema")
}

type builder struct {
	doc     *ast.Schema
	names   *Names
	bind    Binder
	objects map[string]*graphql.Object
	leaves  map[string]graphql.Type
}

func (b *builder) object(def *ast.Definition) *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name:        def.Name,
		Description: def.Description,
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			fields := graphql.Fields{}
			for _, f := range def.Fields {
				if f.Name == "__typename" || f.Name == "__schema" || f.Name == "__type" {
					continue
				}
				out, _ := b.outputType(f.Type)
				args := graphql.FieldConfigArgument{}
				for _, a := range f.Arguments {
					in, _ := b.inputType(a.Type)
					args[a.Name] = &graphql.ArgumentConfig{Type: in, Description: a.Description}
				}
				field := &graphql.Field{
					Name:        f.Name,
					Type:        out,
					Args:        args,
					Description: f.Description,
				}
				if b.bind != nil {
					field.Resolve = b.bind(b.spec(def, f))
				}
				fields[f.Name] = field
			}
			return fields
		}),
	})
}

func (b *builder) spec(parent *ast.Definition, f *ast.FieldDefinition) FieldSpec {
	spec := FieldSpec{
		Parent:   parent.Name,
		Name:     f.Name,
		NonNull:  f.Type.NonNull,
		TypeName: f.Type.Name(),
		Root:     parent.Name == b.doc.Query.Name,
	}

	named := b.shapeOf(f.Type.Name())
	if f.Type.Elem != nil {
		spec.Shape = ShapeList
		spec.Elem = named
	} else {
		spec.Shape = named
	}

	for _, a := range f.Arguments {
		spec.Args = append(spec.Args, a.Name)
	}

	if spec.Root {
		spec.RootType, _ = b.names.RootType(f.Name)
	} else {
		spec.Property, _ = b.names.Property(parent.Name, f.Name)
	}
	return spec
}

func (b *builder) shapeOf(name string) Shape {
	if def, ok := b.doc.Types[name]; ok && def.Kind == ast.Object {
		return ShapeObject
	}
	return ShapeScalar
}

func (b *builder) outputType(t *ast.Type) (graphql.Output, error) {
	var out graphql.Output
	if t.Elem != nil {
		elem, err := b.outputType(t.Elem)
		if err != nil {
			return nil, err
		}
		out = graphql.NewList(elem)
	} else {
		named, err := b.named(t.NamedType)
		if err != nil {
			return nil, err
		}
		out = named
	}
	if t.NonNull {
		out = graphql.NewNonNull(out)
	}
	return out, nil
}

func (b *builder) inputType(t *ast.Type) (graphql.Input, error) {
	var in graphql.Input
	if t.Elem != nil {
		elem, err := b.inputType(t.Elem)
		if err != nil {
			return nil, err
		}
		in = graphql.NewList(elem)
	} else {
		named, err := b.named(t.NamedType)
		if err != nil {
			return nil, err
		}
		leaf, ok := named.(graphql.Input)
		if !ok || b.objects[t.NamedType] != nil {
			return nil, unsupported("argument of object type " + t.NamedType)
		}
		in = leaf
	}
	if t.NonNull {
		in = graphql.NewNonNull(in)
	}
	return in, nil
}

func (b *builder) named(name string) (graphql.Output, error) {
	switch name {
	case "String":
		return graphql.String, nil
	case "Int":
		return graphql.Int, nil
	case "Float":
		return graphql.Float, nil
	case "Boolean":
		return graphql.Boolean, nil
	case "ID":
		return graphql.ID, nil
	}
	if obj, ok := b.objects[name]; ok {
		return obj, nil
	}
	if leaf, ok := b.leaves[name]; ok {
		if out, ok := leaf.(graphql.Output); ok {
			return out, nil
		}
	}
	return nil, unsupported("type " + name)
}

var timeScalars = map[string]timestamp.Kind{
	string(vocabulary.ScalarDateTime): timestamp.DateTime,
	string(vocabulary.ScalarDate):     timestamp.Date,
	string(vocabulary.ScalarTime):     timestamp.Time,
}

// newScalar declares a custom scalar. Values pass through as strings. The
// known date and time scalars format time values in their canonical layout
// and reject inputs outside their lexical space.
func newScalar(def *ast.Definition) *graphql.Scalar {
	kind, isTime := timeScalars[def.Name]
	format := func(t time.Time) string {
		if isTime {
			return timestamp.Format(kind, t)
		}
		return t.Format(time.RFC3339Nano)
	}
	parse := func(s string) any {
		if isTime && !timestamp.Valid(kind, s) {
			return nil
		}
		return s
	}

	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        def.Name,
		Description: def.Description,
		Serialize: func(value any) any {
			switch v := value.(type) {
			case nil:
				return nil
			case string:
				return v
			case time.Time:
				return format(v)
			case *time.Time:
				if v == nil {
					return nil
				}
				return format(*v)
			case fmt.Stringer:
				return v.String()
			default:
				return fmt.Sprint(v)
			}
		},
		ParseValue: func(value any) any {
			if s, ok := value.(string); ok {
				return parse(s)
			}
			return nil
		},
		ParseLiteral: func(value gqlast.Value) any {
			if s, ok := value.(*gqlast.StringValue); ok {
				return parse(s.Value)
			}
			return nil
		},
	})
}

func newEnum(def *ast.Definition) *graphql.Enum {
	values := graphql.EnumValueConfigMap{}
	for _, v := range def.EnumValues {
		values[v.Name] = &graphql.EnumValueConfig{Value: v.Name, Description: v.Description}
	}
	return graphql.NewEnum(graphql.EnumConfig{
		Name:        def.Name,
		Description: def.Description,
		Values:      values,
	})
}
