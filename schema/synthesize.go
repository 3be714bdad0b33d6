// Package schema turns an ontology catalog into a query-language schema and
// builds the executable form of a schema document.
//
// Synthesize emits one object type per catalog type with properties, one root
// query field per type, and a trailing schema declaration:
//
//	type Person {
//		name: String
//		knows: [Person]
//	}
//	type Query {
//		Person(name: String): [Person]
//	}
//	schema {
//		query: Query
//	}
//
// Build parses a schema document and binds every field to a resolver, passing
// the field's shape so resolution can dispatch without inspecting types at
// runtime.
package schema

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/c360/semql/agora"
	"github.com/c360/semql/errors"
	"github.com/c360/semql/fountain"
	"github.com/c360/semql/vocabulary"
)

// IdentityField is the optional field answering the entity identifier.
const IdentityField = "_uri"

// Result is a synthesized schema.
type Result struct {
	SDL   string
	Names *Names
	// Types is the number of emitted object types.
	Types int
}

// Synthesizer builds schema documents from a catalog.
type Synthesizer struct {
	catalog    fountain.Catalog
	discoverer agora.Discoverer
	logger     *slog.Logger
	identity   bool
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithDiscoverer derives root field parameters from the access descriptions
// found for each type.
func WithDiscoverer(d agora.Discoverer) Option {
	return func(s *Synthesizer) {
		s.discoverer = d
	}
}

// WithIdentityField adds an identifier field named IdentityField to every type.
func WithIdentityField(enabled bool) Option {
	return func(s *Synthesizer) {
		s.identity = enabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Synthesizer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSynthesizer creates a synthesizer over catalog.
func NewSynthesizer(catalog fountain.Catalog, opts ...Option) *Synthesizer {
	s := &Synthesizer{catalog: catalog, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "schema-synthesizer")
	return s
}

type fieldDecl struct {
	name     string
	typ      string
	property string
}

type typeDecl struct {
	id     string
	name   string
	fields []fieldDecl
	params []string
}

// Synthesize builds the schema document for the catalog. The output is
// deterministic for a fixed catalog and discovery result.
func (s *Synthesizer) Synthesize(ctx context.Context) (*Result, error) {
	s.logger.Info("Building schema from catalog")

	ids, err := s.catalog.Types(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Synthesizer", "Synthesize", "list catalog types")
	}
	slices.Sort(ids)

	prefixes, err := s.catalog.Prefixes(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "Synthesizer", "Synthesize", "read prefixes")
	}

	types := make(map[string]fountain.Type)
	var selected []string
	for _, id := range ids {
		t, err := s.catalog.Type(ctx, id)
		if err != nil {
			return nil, errors.Wrap(err, "Synthesizer", "Synthesize", "lookup type "+id)
		}
		types[id] = t
		if len(t.Properties) > 0 {
			selected = append(selected, id)
		}
	}

	names := newNames()
	taken := make(map[string]bool)
	for _, id := range selected {
		name := Title(id)
		if taken[name] || reservedTypeNames[name] {
			name = QualifiedTitle(id)
			for base, i := name, 2; taken[name] || reservedTypeNames[name]; i++ {
				name = fmt.Sprintf("%s%d", base, i)
			}
		}
		taken[name] = true
		names.bindType(id, name)
	}

	properties := make(map[string]fountain.Property)
	for _, id := range selected {
		for _, p := range types[id].Properties {
			if _, ok := properties[p]; ok {
				continue
			}
			prop, err := s.catalog.Property(ctx, p)
			if err != nil {
				return nil, errors.Wrap(err, "Synthesizer", "Synthesize", "lookup property "+p)
			}
			properties[p] = prop
		}
	}

	alive := make(map[string]bool, len(selected))
	for _, id := range selected {
		alive[id] = true
	}

	// Dropping a type with no emittable fields can empty the types that
	// reference it, so iterate until nothing changes.
	var decls []typeDecl
	scalars := make(map[vocabulary.Scalar]bool)
	for {
		decls = decls[:0]
		clear(scalars)
		changed := false
		for _, id := range selected {
			if !alive[id] {
				continue
			}
			decl := s.declareType(id, types, properties, prefixes, names, alive, scalars)
			if len(decl.fields) == 0 {
				s.logger.Debug("Dropping type without fields", "type", id)
				alive[id] = false
				changed = true
				continue
			}
			decls = append(decls, decl)
		}
		if !changed {
			break
		}
	}

	if len(decls) == 0 {
		return nil, errors.WrapFatal(fmt.Errorf("%w: catalog has no type with emittable fields", errors.ErrUnsupportedSchema),
			"Synthesizer", "Synthesize", "collect types")
	}

	for i := range decls {
		params, err := s.queryParams(ctx, prefixes.ExtendURI(decls[i].id))
		if err != nil {
			return nil, err
		}
		decls[i].params = params
	}

	final := newNames()
	for _, d := range decls {
		final.bindType(d.id, d.name)
		final.roots[d.name] = d.id
		for _, f := range d.fields {
			if f.property != "" {
				final.bindField(d.name, f.name, f.property)
			}
		}
	}

	sdl := render(decls, scalars)
	if _, gqlErr := gqlparser.LoadSchema(&ast.Source{Name: "synthesized", Input: sdl}); gqlErr != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrUnsupportedSchema, gqlErr),
			"Synthesizer", "Synthesize", "validate synthesized schema")
	}

	s.logger.Info("Schema built", "types", len(decls))
	return &Result{SDL: sdl, Names: final, Types: len(decls)}, nil
}

func (s *Synthesizer) declareType(
	id string,
	types map[string]fountain.Type,
	properties map[string]fountain.Property,
	prefixes vocabulary.Prefixes,
	names *Names,
	alive map[string]bool,
	scalars map[vocabulary.Scalar]bool,
) typeDecl {
	name, _ := names.TypeName(id)
	decl := typeDecl{id: id, name: name}

	used := make(map[string]bool)
	if s.identity {
		decl.fields = append(decl.fields, fieldDecl{name: IdentityField, typ: "String"})
		used[IdentityField] = true
	}

	for _, p := range types[id].Properties {
		typ, scalar, ok := s.fieldType(properties[p], types, prefixes, names, alive)
		if !ok {
			s.logger.Debug("Omitting property without resolvable range", "type", id, "property", p)
			continue
		}

		field := FieldName(p)
		if used[field] {
			field = qualifiedFieldName(p)
			for base, i := field, 2; used[field]; i++ {
				field = fmt.Sprintf("%s%d", base, i)
			}
		}
		used[field] = true

		if scalar != "" && !scalar.IsBuiltin() {
			scalars[scalar] = true
		}
		decl.fields = append(decl.fields, fieldDecl{name: field, typ: typ, property: p})
	}

	if s.identity && len(decl.fields) == 1 {
		decl.fields = nil
	}
	return decl
}

// fieldType returns the type expression of a property: a scalar for data
// properties, a list of the first range type not covered by a narrower range
// type for object properties.
func (s *Synthesizer) fieldType(
	p fountain.Property,
	types map[string]fountain.Type,
	prefixes vocabulary.Prefixes,
	names *Names,
	alive map[string]bool,
) (string, vocabulary.Scalar, bool) {
	if len(p.Range) == 0 {
		return "", "", false
	}

	if p.Kind == fountain.KindData {
		scalar, _ := vocabulary.ScalarFor(prefixes.ExtendURI(p.Range[0]))
		return scalar.String(), scalar, true
	}

	inRange := make(map[string]bool, len(p.Range))
	for _, r := range p.Range {
		inRange[r] = true
	}
	for _, r := range p.Range {
		t, known := types[r]
		if !known {
			continue
		}
		if slices.ContainsFunc(t.Sub, func(sub string) bool { return inRange[sub] }) {
			continue
		}
		if !alive[r] {
			continue
		}
		name, ok := names.TypeName(r)
		if !ok {
			continue
		}
		return "[" + name + "]", "", true
	}
	return "", "", false
}

// queryParams collects the template variables of every thing description
// discovered for typeIRI, without the reserved item and parent markers.
func (s *Synthesizer) queryParams(ctx context.Context, typeIRI string) ([]string, error) {
	if s.discoverer == nil {
		return nil, nil
	}

	eco, err := s.discoverer.Discover(ctx, typeIRI, agora.DiscoverOptions{Strict: true, Lazy: false})
	if err != nil {
		return nil, errors.Wrap(err, "Synthesizer", "queryParams", "discover "+typeIRI)
	}

	params := make(map[string]bool)
	for _, root := range eco.Roots {
		if root.Kind != agora.KindTD {
			continue
		}
		for _, v := range root.Vars {
			if v == agora.VarItem || v == agora.VarParent {
				continue
			}
			if name := FieldName(strings.TrimLeft(v, "$")); name != "" {
				params[name] = true
			}
		}
	}
	return slices.Sorted(maps.Keys(params)), nil
}

func render(decls []typeDecl, scalars map[vocabulary.Scalar]bool) string {
	var b strings.Builder

	for _, sc := range slices.Sorted(maps.Keys(scalars)) {
		fmt.Fprintf(&b, "scalar %s\n", sc)
	}

	for _, d := range decls {
		fmt.Fprintf(&b, "type %s {\n", d.name)
		for _, f := range d.fields {
			fmt.Fprintf(&b, "\t%s: %s\n", f.name, f.typ)
		}
		b.WriteString("}\n")
	}

	b.WriteString("type Query {\n")
	for _, d := range decls {
		args := ""
		if len(d.params) > 0 {
			parts := make([]string, len(d.params))
			for i, p := range d.params {
				parts[i] = p + ": String"
			}
			args = "(" + strings.Join(parts, ", ") + ")"
		}
		fmt.Fprintf(&b, "\t%s%s: [%s]\n", d.name, args, d.name)
	}
	b.WriteString("}\n")
	b.WriteString("schema {\n\tquery: Query\n}\n")
	return b.String()
}
