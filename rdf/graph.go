package rdf

import (
	"sync"
)

// Triple is a subject-predicate-object statement. Predicates are always IRIs
// and stored by value.
type Triple struct {
	Subject   Term
	Predicate string
	Object    Term
}

// Quad is a triple within a named graph context.
type Quad struct {
	Context Term
	Triple
}

// Graph is an indexed set of triples safe for concurrent use.
// Insertion order is kept per subject and predicate so Objects returns values
// in the order they were added.
type Graph struct {
	mu    sync.RWMutex
	spo   map[string]*subjectIndex
	order []string
	size  int
}

type subjectIndex struct {
	subject    Term
	predicates map[string][]Term
	predOrder  []string
}

// NewGraph creates an empty graph.
func NewGraph(triples ...Triple) *Graph {
	g := &Graph{spo: make(map[string]*subjectIndex)}
	g.Add(triples...)
	return g
}

// Add inserts triples, skipping duplicates. It returns the number of new triples.
func (g *Graph) Add(triples ...Triple) int {
	if len(triples) == 0 {
		return 0
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	added := 0
	for _, t := range triples {
		if g.addLocked(t) {
			added++
		}
	}
	return added
}

func (g *Graph) addLocked(t Triple) bool {
	key := t.Subject.Key()
	idx, ok := g.spo[key]
	if !ok {
		idx = &subjectIndex{subject: t.Subject, predicates: make(map[string][]Term)}
		g.spo[key] = idx
		g.order = append(g.order, key)
	}

	objects, seen := idx.predicates[t.Predicate]
	if !seen {
		idx.predOrder = append(idx.predOrder, t.Predicate)
	}
	for _, o := range objects {
		if o == t.Object {
			return false
		}
	}
	idx.predicates[t.Predicate] = append(objects, t.Object)
	g.size++
	return true
}

// Merge adds every triple of other into g.
func (g *Graph) Merge(other *Graph) int {
	if other == nil || other == g {
		return 0
	}
	return g.Add(other.Triples()...)
}

// Len returns the number of triples.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.size
}

// Objects returns a private copy of the objects of (subject, predicate).
func (g *Graph) Objects(subject Term, predicate string) []Term {
	g.mu.RLock()
	defer g.mu.RUnlock()

	idx, ok := g.spo[subject.Key()]
	if !ok {
		return nil
	}
	objects := idx.predicates[predicate]
	if len(objects) == 0 {
		return nil
	}
	out := make([]Term, len(objects))
	copy(out, objects)
	return out
}

// Subjects returns every subject having predicate with the given object.
func (g *Graph) Subjects(predicate string, object Term) []Term {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []Term
	for _, key := range g.order {
		idx := g.spo[key]
		for _, o := range idx.predicates[predicate] {
			if o == object {
				out = append(out, idx.subject)
				break
			}
		}
	}
	return out
}

// HasSubject reports whether any triple has subject s.
func (g *Graph) HasSubject(s Term) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.spo[s.Key()]
	return ok
}

// Triples returns every triple in insertion order.
func (g *Graph) Triples() []Triple {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]Triple, 0, g.size)
	for _, key := range g.order {
		idx := g.spo[key]
		for _, p := range idx.predOrder {
			for _, o := range idx.predicates[p] {
				out = append(out, Triple{Subject: idx.subject, Predicate: p, Object: o})
			}
		}
	}
	return out
}

// Describe returns the triples about subject plus, recursively, the triples
// about blank nodes reachable from it.
func (g *Graph) Describe(subject Term) *Graph {
	out := NewGraph()

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[string]bool{}
	queue := []Term{subject}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if visited[s.Key()] {
			continue
		}
		visited[s.Key()] = true

		idx, ok := g.spo[s.Key()]
		if !ok {
			continue
		}
		for _, p := range idx.predOrder {
			for _, o := range idx.predicates[p] {
				out.addLocked(Triple{Subject: s, Predicate: p, Object: o})
				if o.IsBlank() {
					queue = append(queue, o)
				}
			}
		}
	}
	return out
}
