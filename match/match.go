// Package match maps identifiers written in a query to catalog identifiers.
//
// A query identifier matches every candidate whose lower-cased form ends with
// the identifier's key. Suffix matching can return several candidates ("name"
// matches both "ex:name" and "ex:surname"); Pick settles on one of them.
package match

import (
	"iter"
	"slices"
	"strings"

	"github.com/c360/semql/vocabulary"
)

// Identifier is a field or type name as written in a query.
type Identifier struct {
	Alias string
	Name  string
}

// Field builds an Identifier from a selection's alias and name. An alias equal
// to the name is ignored.
func Field(alias, name string) Identifier {
	if alias == name {
		alias = ""
	}
	return Identifier{Alias: alias, Name: name}
}

// Name builds an Identifier without alias.
func Name(name string) Identifier {
	return Identifier{Name: name}
}

// Key returns the lower-cased suffix candidates are compared against: the alias
// followed by ":" when an alias is present, the name otherwise.
func (id Identifier) Key() string {
	if id.Alias != "" {
		return strings.ToLower(id.Alias) + ":"
	}
	return strings.ToLower(id.Name)
}

// String returns "alias:name" or "name".
func (id Identifier) String() string {
	if id.Alias != "" {
		return id.Alias + ":" + id.Name
	}
	return id.Name
}

// Match returns every candidate matching id, in candidate order.
func Match(id Identifier, candidates []string) []string {
	return slices.Collect(matches(id, slices.Values(candidates)))
}

func matches(id Identifier, candidates iter.Seq[string]) iter.Seq[string] {
	key := id.Key()
	return func(yield func(string) bool) {
		if key == "" {
			return
		}
		for c := range candidates {
			if strings.HasSuffix(strings.ToLower(c), key) && !yield(c) {
				return
			}
		}
	}
}

// Pick chooses one candidate for id. A candidate whose local name equals the
// key wins (the first one in candidate order); otherwise the last suffix match
// is taken. ok is false when nothing matches.
func Pick(id Identifier, candidates []string) (string, bool) {
	matches := Match(id, candidates)
	if len(matches) == 0 {
		return "", false
	}

	key := id.Key()
	for _, m := range matches {
		if strings.ToLower(vocabulary.LocalName(m)) == key {
			return m, true
		}
	}
	return matches[len(matches)-1], true
}
