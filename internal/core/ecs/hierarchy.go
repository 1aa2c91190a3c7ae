package ecs

import (
	"iter"
	"slices"

	"go.uber.org/zap"
)

// SetParent makes parent the parent of child. It fails if either entity is not
// live, if child already has a different parent (UnParent first), or if the
// link would form a cycle. Setting the current parent again succeeds.
func (r *Registry) SetParent(child, parent Entity) bool {
	tx := WriteEntities(r)
	defer tx.Unlock()
	return r.SetParentTx(tx, child, parent)
}

func (r *Registry) SetParentTx(tx *Transaction, child, parent Entity) bool {
	tx.requireEntity(EntityWrite)
	if !r.exists(child) || !r.exists(parent) {
		r.log.Debug("set parent on unknown entity", zap.Stringer("child", child), zap.Stringer("parent", parent))
		return false
	}
	if child == parent {
		r.log.Warn("entity cannot parent itself", zap.Stringer("entity", child))
		return false
	}
	if cur := r.parents.Parent(child); cur != InvalidEntity {
		if cur == parent {
			return true
		}
		r.log.Warn("entity already has a parent",
			zap.Stringer("child", child), zap.Stringer("parent", cur), zap.Stringer("requested", parent))
		return false
	}
	if len(r.parents.Children(child)) > 0 && r.parents.IsAncestor(child, parent) {
		r.log.Warn("parent link would form a cycle", zap.Stringer("child", child), zap.Stringer("parent", parent))
		return false
	}
	r.parents.SetParent(child, parent)
	r.refreshLinks(tx, child, parent)
	r.emit(ParentSet{Parent: parent, Child: child})
	return true
}

// UnParent detaches child from its parent. It reports whether a link was removed.
func (r *Registry) UnParent(child Entity) bool {
	tx := WriteEntities(r)
	defer tx.Unlock()
	return r.UnParentTx(tx, child)
}

func (r *Registry) UnParentTx(tx *Transaction, child Entity) bool {
	tx.requireEntity(EntityWrite)
	if !r.exists(child) {
		return false
	}
	return r.unparent(tx, child)
}

func (r *Registry) unparent(tx *Transaction, child Entity) bool {
	p := r.parents.UnParent(child)
	if p == InvalidEntity {
		return false
	}
	r.refreshLinks(tx, child, p)
	r.emit(ParentRemoved{Parent: p, Child: child})
	return true
}

// Parent returns child's parent, or InvalidEntity.
func (r *Registry) Parent(child Entity) Entity {
	tx := ReadEntities(r)
	defer tx.Unlock()
	return r.ParentTx(tx, child)
}

func (r *Registry) ParentTx(tx *Transaction, child Entity) Entity {
	tx.requireEntity(EntityRead)
	return r.parents.Parent(child)
}

// Children yields parent's children. Each iteration reads the graph under a
// fresh entity read lock and releases it before yielding.
func (r *Registry) Children(parent Entity) iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		tx := ReadEntities(r)
		kids := r.parents.childrenCopy(parent)
		tx.Unlock()
		for _, c := range kids {
			if !yield(c) {
				return
			}
		}
	}
}

// ChildrenTx yields parent's children as of the start of each iteration.
func (r *Registry) ChildrenTx(tx *Transaction, parent Entity) iter.Seq[Entity] {
	tx.requireEntity(EntityRead)
	return func(yield func(Entity) bool) {
		for _, c := range r.parents.childrenCopy(parent) {
			if !yield(c) {
				return
			}
		}
	}
}

// SetParentDestructionBehavior selects what happens to child when its parent
// is destroyed.
func (r *Registry) SetParentDestructionBehavior(child Entity, b ParentDestructionBehavior) bool {
	tx := WriteEntities(r)
	defer tx.Unlock()
	return r.SetParentDestructionBehaviorTx(tx, child, b)
}

func (r *Registry) SetParentDestructionBehaviorTx(tx *Transaction, child Entity, b ParentDestructionBehavior) bool {
	tx.requireEntity(EntityWrite)
	if !r.exists(child) {
		return false
	}
	r.slots[child.Index()].behavior = b
	return true
}

func (r *Registry) ParentDestructionBehaviorOf(child Entity) (ParentDestructionBehavior, bool) {
	tx := ReadEntities(r)
	defer tx.Unlock()
	return r.ParentDestructionBehaviorTx(tx, child)
}

func (r *Registry) ParentDestructionBehaviorTx(tx *Transaction, child Entity) (ParentDestructionBehavior, bool) {
	tx.requireEntity(EntityRead)
	if !r.exists(child) {
		return DestroyedWithParent, false
	}
	return r.slots[child.Index()].behavior, true
}

// resolveParent returns e's parent, skipping dummy ancestors when ignore is set.
func (r *Registry) resolveParent(e Entity, ignore bool) Entity {
	p := r.parents.Parent(e)
	if !ignore {
		return p
	}
	for range r.parents.Len() + 1 {
		if p == InvalidEntity || !p.HasFlag(FlagDummy) {
			return p
		}
		p = r.parents.Parent(p)
	}
	return InvalidEntity
}

// resolveChildren returns e's children in order, replacing dummy children by
// their own resolved children when ignore is set.
func (r *Registry) resolveChildren(e Entity, ignore bool) []Entity {
	if !ignore {
		return r.parents.childrenCopy(e)
	}
	var out []Entity
	stack := slices.Clone(r.parents.Children(e))
	slices.Reverse(stack)
	for steps := 0; len(stack) > 0 && steps <= r.parents.Len(); steps++ {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !c.HasFlag(FlagDummy) {
			out = append(out, c)
			continue
		}
		kids := r.parents.Children(c)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

// dummyDescendants returns e and, when e is a dummy, every entity reachable
// from it through dummy children.
func (r *Registry) dummyDescendants(e Entity) []Entity {
	out := []Entity{e}
	if !e.HasFlag(FlagDummy) {
		return out
	}
	stack := slices.Clone(r.parents.Children(e))
	for steps := 0; len(stack) > 0 && steps <= r.parents.Len(); steps++ {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, c)
		if c.HasFlag(FlagDummy) {
			stack = append(stack, r.parents.Children(c)...)
		}
	}
	return out
}

// dummyAncestors returns e and, when e is a dummy, its ancestors up to and
// including the first non-dummy.
func (r *Registry) dummyAncestors(e Entity) []Entity {
	out := []Entity{e}
	for range r.parents.Len() + 1 {
		if !e.HasFlag(FlagDummy) {
			break
		}
		e = r.parents.Parent(e)
		if e == InvalidEntity {
			break
		}
		out = append(out, e)
	}
	return out
}

// refreshLinks recomputes ParentLink and ChildLinks components affected by a
// change of child's parent edge to or from parent.
func (r *Registry) refreshLinks(tx *Transaction, child, parent Entity) {
	var linked []poolBase
	for _, p := range r.allPools() {
		if p.traits()&(traitParent|traitChildren) != 0 {
			linked = append(linked, p)
		}
	}
	if len(linked) == 0 {
		return
	}
	tx.ensure()

	for _, p := range linked {
		ignore := p.traits()&traitIgnoreDummies != 0
		if p.traits()&traitParent != 0 {
			targets := []Entity{child}
			if ignore {
				targets = r.dummyDescendants(child)
			}
			for _, e := range targets {
				if p.has(e) {
					p.linkParent(e, r.resolveParent(e, ignore))
				}
			}
		}
		if p.traits()&traitChildren != 0 {
			owners := []Entity{parent}
			if ignore {
				owners = r.dummyAncestors(parent)
			}
			for _, e := range owners {
				if p.has(e) {
					p.linkChildren(e, r.resolveChildren(e, ignore))
				}
			}
		}
	}
}
