package processor

import (
	"github.com/graphql-go/graphql/language/ast"
)

// QueryDepth returns the deepest field nesting of the operation selected by
// operationName. Fragment spreads count toward the depth of the field that
// contains them; a spread cycle stops at its first repetition.
func QueryDepth(doc *ast.Document, operationName string) int {
	for _, def := range doc.Definitions {
		op, ok := def.(*ast.OperationDefinition)
		if !ok {
			continue
		}
		if operationName != "" && (op.Name == nil || op.Name.Value != operationName) {
			continue
		}
		return depth(doc, op.SelectionSet, map[string]bool{})
	}
	return 0
}

func depth(doc *ast.Document, set *ast.SelectionSet, active map[string]bool) int {
	if set == nil {
		return 0
	}
	deepest := 0
	for _, sel := range set.Selections {
		d := 0
		switch s := sel.(type) {
		case *ast.Field:
			if s.Name != nil && len(s.Name.Value) > 1 && s.Name.Value[:2] == "__" {
				continue
			}
			d = 1 + depth(doc, s.SelectionSet, active)
		case *ast.InlineFragment:
			d = depth(doc, s.SelectionSet, active)
		case *ast.FragmentSpread:
			if s.Name == nil || active[s.Name.Value] {
				continue
			}
			frag := fragment(doc, s.Name.Value)
			if frag == nil {
				continue
			}
			active[s.Name.Value] = true
			d = depth(doc, frag.SelectionSet, active)
			delete(active, s.Name.Value)
		}
		deepest = max(deepest, d)
	}
	return deepest
}
