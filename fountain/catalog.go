// Package fountain describes the ontology catalog consumed by the schema
// synthesizer and the resolver: the types of a dataset, the properties each type
// carries, and the namespace prefixes used to write them.
//
// Catalog identifiers are prefixed names ("ex:Person"); Prefixes expands them.
// Implementations are read-only and queried frequently, so remote catalogs should
// be wrapped with NewCached.
package fountain

import (
	"context"

	"github.com/c360/semql/vocabulary"
)

// PropertyKind separates literal-valued properties from entity-valued ones.
type PropertyKind string

const (
	// KindData properties have literal values; Range[0] is their datatype.
	KindData PropertyKind = "data"
	// KindObject properties link to other entities; Range lists candidate types.
	KindObject PropertyKind = "object"
)

// Valid reports whether k is a known kind.
func (k PropertyKind) Valid() bool {
	return k == KindData || k == KindObject
}

// Type is a catalog type.
type Type struct {
	ID         string   `json:"id" yaml:"id"`
	Properties []string `json:"properties" yaml:"properties"`
	// Sub lists every narrower type, transitively.
	Sub []string `json:"sub" yaml:"sub"`
	// Super lists every broader type, transitively.
	Super []string `json:"super" yaml:"super"`
}

// Property is a catalog property.
type Property struct {
	ID     string       `json:"id" yaml:"id"`
	Kind   PropertyKind `json:"kind" yaml:"kind"`
	Range  []string     `json:"range" yaml:"range"`
	Domain []string     `json:"domain" yaml:"domain"`
}

// Catalog is the read-only ontology metadata store.
type Catalog interface {
	// Types returns every type identifier in sorted order.
	Types(ctx context.Context) ([]string, error)

	// Type returns the type with the given identifier, or an error wrapping
	// errors.ErrUnknownType.
	Type(ctx context.Context, id string) (Type, error)

	// Property returns the property with the given identifier, or an error
	// wrapping errors.ErrUnknownType.
	Property(ctx context.Context, id string) (Property, error)

	// Prefixes returns the namespace table used by the identifiers.
	Prefixes(ctx context.Context) (vocabulary.Prefixes, error)
}

// ExtendURI expands a catalog identifier with the catalog's prefixes.
func ExtendURI(ctx context.Context, c Catalog, id string) (string, error) {
	prefixes, err := c.Prefixes(ctx)
	if err != nil {
		return "", err
	}
	return prefixes.ExtendURI(id), nil
}
