package ecs

import "slices"

// ParentGraph is a single-parent tree over entities. It is not safe for
// concurrent use; the Registry guards it with its entity lock.
type ParentGraph struct {
	parents  map[Entity]Entity
	children map[Entity][]Entity
}

func NewParentGraph() *ParentGraph {
	return &ParentGraph{
		parents:  make(map[Entity]Entity),
		children: make(map[Entity][]Entity),
	}
}

// SetParent links child under parent. It fails if child already has a
// different parent; setting the same parent again succeeds without change.
func (g *ParentGraph) SetParent(child, parent Entity) bool {
	if cur, ok := g.parents[child]; ok {
		return cur == parent
	}
	g.parents[child] = parent
	g.children[parent] = append(g.children[parent], child)
	return true
}

// Parent returns child's parent, or InvalidEntity.
func (g *ParentGraph) Parent(child Entity) Entity {
	if p, ok := g.parents[child]; ok {
		return p
	}
	return InvalidEntity
}

// Children returns parent's children. The slice is owned by the graph.
func (g *ParentGraph) Children(parent Entity) []Entity {
	return g.children[parent]
}

// UnParent detaches child and returns its former parent. It is a no-op
// returning InvalidEntity when child has no parent.
func (g *ParentGraph) UnParent(child Entity) Entity {
	p, ok := g.parents[child]
	if !ok {
		return InvalidEntity
	}
	delete(g.parents, child)
	removeEdge(g.children, p, child)
	return p
}

// IsAncestor reports whether a is e or one of e's ancestors. The walk is
// bounded by the number of parent edges so it terminates on a corrupted graph.
func (g *ParentGraph) IsAncestor(a, e Entity) bool {
	for range len(g.parents) + 1 {
		if e == a {
			return true
		}
		p, ok := g.parents[e]
		if !ok {
			return false
		}
		e = p
	}
	return false
}

// RemoveEntity detaches e from its parent and drops its child list. The
// children keep no parent entry.
func (g *ParentGraph) RemoveEntity(e Entity) {
	g.UnParent(e)
	for _, c := range g.children[e] {
		delete(g.parents, c)
	}
	delete(g.children, e)
}

// Len returns the number of parent edges.
func (g *ParentGraph) Len() int { return len(g.parents) }

func (g *ParentGraph) Clear() {
	clear(g.parents)
	clear(g.children)
}

func (g *ParentGraph) childrenCopy(parent Entity) []Entity {
	return slices.Clone(g.children[parent])
}
