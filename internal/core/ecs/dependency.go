package ecs

import (
	"iter"
	"slices"
)

// DependencyGraph tracks many-to-many usage edges: a parent is a resource
// used by its children. Both directions are kept in insertion order.
// It is not safe for concurrent use; the Registry guards it with its entity lock.
type DependencyGraph struct {
	users     map[Entity][]Entity // parent -> children
	resources map[Entity][]Entity // child -> parents
}

func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		users:     make(map[Entity][]Entity),
		resources: make(map[Entity][]Entity),
	}
}

// Add inserts the edge in both directions. It reports false if the edge
// already existed.
func (g *DependencyGraph) Add(parent, child Entity) bool {
	if slices.Contains(g.users[parent], child) {
		return false
	}
	g.users[parent] = append(g.users[parent], child)
	g.resources[child] = append(g.resources[child], parent)
	return true
}

// Remove erases exactly the (parent, child) edge.
func (g *DependencyGraph) Remove(parent, child Entity) bool {
	if !removeEdge(g.users, parent, child) {
		return false
	}
	removeEdge(g.resources, child, parent)
	return true
}

// HasDependencies reports whether any child uses parent.
func (g *DependencyGraph) HasDependencies(parent Entity) bool {
	return len(g.users[parent]) > 0
}

// Resources yields the parents child currently uses. The sequence reads the
// graph when iterated, so it reflects edges added after it was created.
func (g *DependencyGraph) Resources(child Entity) iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for _, p := range g.resources[child] {
			if !yield(p) {
				return
			}
		}
	}
}

// Users yields the children that use parent.
func (g *DependencyGraph) Users(parent Entity) iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for _, c := range g.users[parent] {
			if !yield(c) {
				return
			}
		}
	}
}

// RemoveEntity drops every edge touching e, in either direction.
func (g *DependencyGraph) RemoveEntity(e Entity) {
	for _, c := range g.users[e] {
		removeEdge(g.resources, c, e)
	}
	delete(g.users, e)
	for _, p := range g.resources[e] {
		removeEdge(g.users, p, e)
	}
	delete(g.resources, e)
}

// Edges returns every (parent, child) edge.
func (g *DependencyGraph) Edges() [][2]Entity {
	var out [][2]Entity
	for p, cs := range g.users {
		for _, c := range cs {
			out = append(out, [2]Entity{p, c})
		}
	}
	return out
}

func (g *DependencyGraph) Clear() {
	clear(g.users)
	clear(g.resources)
}

func removeEdge(m map[Entity][]Entity, from, to Entity) bool {
	list := m[from]
	i := slices.Index(list, to)
	if i < 0 {
		return false
	}
	list = slices.Delete(list, i, i+1)
	if len(list) == 0 {
		delete(m, from)
	} else {
		m[from] = list
	}
	return true
}
