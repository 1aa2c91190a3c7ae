package ecs

import (
	"cmp"
	"iter"
	"slices"

	"go.uber.org/zap"
)

// AddDependency records that child uses parent. Destroying either side drops
// the edge; it never cascades. Adding an existing edge succeeds without change.
func (r *Registry) AddDependency(parent, child Entity) bool {
	tx := WriteEntities(r)
	defer tx.Unlock()
	return r.AddDependencyTx(tx, parent, child)
}

func (r *Registry) AddDependencyTx(tx *Transaction, parent, child Entity) bool {
	tx.requireEntity(EntityWrite)
	if !r.exists(parent) || !r.exists(child) {
		r.log.Debug("dependency on unknown entity", zap.Stringer("parent", parent), zap.Stringer("child", child))
		return false
	}
	if parent == child {
		return false
	}
	if r.deps.Add(parent, child) {
		r.emit(DependencyAdded{Parent: parent, Child: child})
	}
	return true
}

// RemoveDependency removes the (parent, child) edge. If parent was marked with
// DestroyWhenUnused and this was its last dependent, parent is destroyed.
func (r *Registry) RemoveDependency(parent, child Entity) bool {
	tx := WriteEntities(r)
	defer tx.Unlock()
	return r.RemoveDependencyTx(tx, parent, child)
}

func (r *Registry) RemoveDependencyTx(tx *Transaction, parent, child Entity) bool {
	tx.requireEntity(EntityWrite)
	if !r.deps.Remove(parent, child) {
		return false
	}
	r.emit(DependencyRemoved{Parent: parent, Child: child})
	if r.exists(parent) && r.slots[parent.Index()].releaseWhenUnused && !r.deps.HasDependencies(parent) {
		tx.ensure()
		r.destroy(tx, []Entity{parent})
	}
	return true
}

// HasDependencies reports whether any entity currently uses parent.
func (r *Registry) HasDependencies(parent Entity) bool {
	tx := ReadEntities(r)
	defer tx.Unlock()
	return r.HasDependenciesTx(tx, parent)
}

func (r *Registry) HasDependenciesTx(tx *Transaction, parent Entity) bool {
	tx.requireEntity(EntityRead)
	return r.deps.HasDependencies(parent)
}

// Resources yields the entities child uses. Each iteration reads the graph
// under a fresh entity read lock, so the sequence is restartable and reflects
// the edges present when iteration starts.
func (r *Registry) Resources(child Entity) iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		tx := ReadEntities(r)
		res := slices.Collect(r.deps.Resources(child))
		tx.Unlock()
		for _, p := range res {
			if !yield(p) {
				return
			}
		}
	}
}

// ResourcesTx yields the entities child uses straight from the graph. The
// graph must not be changed during iteration.
func (r *Registry) ResourcesTx(tx *Transaction, child Entity) iter.Seq[Entity] {
	tx.requireEntity(EntityRead)
	return r.deps.Resources(child)
}

// DependencyEdgesTx returns every (parent, child) edge ordered by parent then
// child index.
func (r *Registry) DependencyEdgesTx(tx *Transaction) [][2]Entity {
	tx.requireEntity(EntityRead)
	edges := r.deps.Edges()
	slices.SortFunc(edges, func(a, b [2]Entity) int {
		if c := cmp.Compare(a[0].Index(), b[0].Index()); c != 0 {
			return c
		}
		return cmp.Compare(a[1].Index(), b[1].Index())
	})
	return edges
}
