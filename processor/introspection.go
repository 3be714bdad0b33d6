package processor

import (
	"strings"

	"github.com/graphql-go/graphql/language/ast"
)

// IntrospectionOperation is the operation name used by schema explorers.
const IntrospectionOperation = "IntrospectionQuery"

// IsIntrospection reports whether the operation selected by operationName
// only asks about the schema: it is named IntrospectionQuery, or every root
// selection is a meta field such as __schema or __type.
func IsIntrospection(doc *ast.Document, operationName string) bool {
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		name := ""
		if op.Name != nil {
			name = op.Name.Value
		}
		if operationName != "" && name != operationName {
			continue
		}
		if strings.HasPrefix(name, IntrospectionOperation) {
			return true
		}
		return metaOnly(doc, op.SelectionSet, map[string]bool{})
	}
	return false
}

func metaOnly(doc *ast.Document, set *ast.SelectionSet, seen map[string]bool) bool {
	if set == nil || len(set.Selections) == 0 {
		return false
	}
	for _, sel := range set.Selections {
		switch s := sel.(type) {
		case *ast.Field:
			if s.Name == nil || !strings.HasPrefix(s.Name.Value, "__") {
				return false
			}
		case *ast.InlineFragment:
			if !metaOnly(doc, s.SelectionSet, seen) {
				return false
			}
		case *ast.FragmentSpread:
			if s.Name == nil || seen[s.Name.Value] {
				continue
			}
			seen[s.Name.Value] = true
			frag := fragment(doc, s.Name.Value)
			if frag == nil || !metaOnly(doc, frag.SelectionSet, seen) {
				return false
			}
		}
	}
	return true
}

func fragment(doc *ast.Document, name string) *ast.FragmentDefinition {
	for _, def := range doc.Definitions {
		if f, ok := def.(*ast.FragmentDefinition); ok && f.Name != nil && f.Name.Value == name {
			return f
		}
	}
	return nil
}
