package schema

import (
	"maps"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"github.com/c360/semql/vocabulary"
)

// Names is the bidirectional mapping between catalog identifiers and the
// names of one synthesized schema.
type Names struct {
	typeByName map[string]string
	nameByType map[string]string
	fields     map[string]map[string]string
	roots      map[string]string
}

func newNames() *Names {
	return &Names{
		typeByName: make(map[string]string),
		nameByType: make(map[string]string),
		fields:     make(map[string]map[string]string),
		roots:      make(map[string]string),
	}
}

func (n *Names) bindType(catalogID, name string) {
	n.typeByName[name] = catalogID
	n.nameByType[catalogID] = name
}

func (n *Names) bindField(typeName, field, property string) {
	if n.fields[typeName] == nil {
		n.fields[typeName] = make(map[string]string)
	}
	n.fields[typeName][field] = property
}

// TypeName returns the schema type name of a catalog type.
func (n *Names) TypeName(catalogID string) (string, bool) {
	if n == nil {
		return "", false
	}
	name, ok := n.nameByType[catalogID]
	return name, ok
}

// CatalogType returns the catalog type behind a schema type name.
func (n *Names) CatalogType(typeName string) (string, bool) {
	if n == nil {
		return "", false
	}
	id, ok := n.typeByName[typeName]
	return id, ok
}

// Property returns the catalog property behind a field of a schema type.
func (n *Names) Property(typeName, field string) (string, bool) {
	if n == nil {
		return "", false
	}
	p, ok := n.fields[typeName][field]
	return p, ok
}

// RootType returns the catalog type listed by a root query field.
func (n *Names) RootType(field string) (string, bool) {
	if n == nil {
		return "", false
	}
	id, ok := n.roots[field]
	return id, ok
}

// typeNames returns every schema type name in sorted order.
func (n *Names) typeNames() []string {
	if n == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(n.typeByName))
}

// fieldMap returns the field to property mapping of a schema type.
func (n *Names) fieldMap(typeName string) map[string]string {
	if n == nil {
		return nil
	}
	return maps.Clone(n.fields[typeName])
}

// reservedTypeNames cannot be taken by catalog types.
var reservedTypeNames = map[string]bool{
	"Query": true, "Mutation": true, "Subscription": true,
	"String": true, "Int": true, "Float": true, "Boolean": true, "ID": true,
	string(vocabulary.ScalarDateTime): true,
	string(vocabulary.ScalarDate):     true,
	string(vocabulary.ScalarTime):     true,
}

var wordBoundary = regexp.MustCompile(`(.)([A-Z][a-z]+)`)

// Title derives the default schema type name of a catalog identifier: the local
// name split at word boundaries and word-capitalized ("ex:postal_address" and
// "ex:PostalAddress" both give "PostalAddress").
func Title(id string) string {
	return convert(vocabulary.LocalName(id))
}

// QualifiedTitle is the collision fallback: every ':'-separated part titled and
// concatenated ("org:Person" gives "OrgPerson").
func QualifiedTitle(id string) string {
	var b strings.Builder
	for _, part := range strings.Split(id, ":") {
		b.WriteString(convert(part))
	}
	return b.String()
}

func convert(s string) string {
	s = wordBoundary.ReplaceAllString(s, "${1}_${2}")
	var b strings.Builder
	for _, part := range strings.Split(s, "_") {
		b.WriteString(wordTitle(part))
	}
	return sanitizeTypeName(b.String())
}

// wordTitle upper-cases letters that follow a non-letter and lower-cases the rest.
func wordTitle(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) && prevLetter:
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r):
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(r)
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

func isNameRune(r rune, first bool) bool {
	switch {
	case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return !first
	default:
		return false
	}
}

func sanitizeTypeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isNameRune(r, false) {
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), "_")
	if out == "" {
		return "Type"
	}
	if !isNameRune(rune(out[0]), true) {
		out = "T" + out
	}
	return out
}

// FieldName derives a field name from a catalog property identifier: its local
// name with characters illegal in names replaced by '_'.
func FieldName(id string) string {
	local := vocabulary.LocalName(id)
	var b strings.Builder
	for i, r := range local {
		if isNameRune(r, i == 0) {
			b.WriteRune(r)
		} else if r >= '0' && r <= '9' {
			b.WriteString("_")
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	out := b.String()
	if out == "" {
		return "_field"
	}
	if strings.HasPrefix(out, "__") {
		out = "f" + out
	}
	return out
}

// qualifiedFieldName is used when two properties of a type share a local name:
// namespace prefix followed by the titled local name ("foafName").
func qualifiedFieldName(id string) string {
	ns := vocabulary.Namespace(id)
	if ns == "" {
		return FieldName(id)
	}
	prefix := strings.ToLower(sanitizeTypeName(ns))
	return prefix + convert(vocabulary.LocalName(id))
}
