package ecs

import (
	"fmt"

	"go.uber.org/zap"
)

// AddComponent attaches v to e and returns a pointer to the stored copy. It
// returns nil if e is not live or already has a T.
func AddComponent[T any](r *Registry, e Entity, v T) *T {
	tx := Begin(r, EntityRead, Writes[T]())
	defer tx.Unlock()
	return AddComponentTx(tx, e, v)
}

// AddComponentTx needs at least an entity read lock and write access to T.
func AddComponentTx[T any](tx *Transaction, e Entity, v T) *T {
	c, err := TryAddComponentTx(tx, e, v)
	if err != nil {
		tx.reg.log.Debug("add component rejected", zap.Stringer("entity", e), zap.Error(err))
		return nil
	}
	return c
}

// TryAddComponentTx is AddComponentTx reporting why the add failed.
func TryAddComponentTx[T any](tx *Transaction, e Entity, v T) (*T, error) {
	tx.requireEntity(EntityRead)
	r := tx.reg
	p := PoolOf[T](r)
	tx.requirePool(p, true)
	if !r.exists(e) {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, e)
	}
	c := p.add(e, v)
	if c == nil {
		return nil, fmt.Errorf("%w: %s on %s", ErrComponentExists, p.name, e)
	}
	ignore := p.traitSet&traitIgnoreDummies != 0
	if p.traitSet&traitParent != 0 {
		p.linkParent(e, r.resolveParent(e, ignore))
	}
	if p.traitSet&traitChildren != 0 {
		p.linkChildren(e, r.resolveChildren(e, ignore))
	}
	r.emit(ComponentAdded{Entity: e, Component: p.name})
	return c, nil
}

// GetComponent returns a copy of e's T.
func GetComponent[T any](r *Registry, e Entity) (T, bool) {
	tx := ReadComponents[T](r)
	defer tx.Unlock()
	if c := GetComponentTx[T](tx, e); c != nil {
		return *c, true
	}
	var zero T
	return zero, false
}

// GetComponentTx returns e's T or nil. The pointer is valid until a component
// of T is removed or the transaction ends.
func GetComponentTx[T any](tx *Transaction, e Entity) *T {
	p := PoolOf[T](tx.reg)
	tx.requirePool(p, false)
	return p.get(e)
}

func HasComponent[T any](r *Registry, e Entity) bool {
	tx := ReadComponents[T](r)
	defer tx.Unlock()
	return HasComponentTx[T](tx, e)
}

func HasComponentTx[T any](tx *Transaction, e Entity) bool {
	p := PoolOf[T](tx.reg)
	tx.requirePool(p, false)
	return p.has(e)
}

// UpdateComponent calls fn on e's T under a write lock and reports whether e
// had one.
func UpdateComponent[T any](r *Registry, e Entity, fn func(*T)) bool {
	tx := WriteComponents[T](r)
	defer tx.Unlock()
	p := PoolOf[T](r)
	c := p.get(e)
	if c == nil {
		return false
	}
	fn(c)
	return true
}

// RemoveComponent detaches e's T. It reports false if there was none.
func RemoveComponent[T any](r *Registry, e Entity) bool {
	tx := Begin(r, EntityRead, Writes[T]())
	defer tx.Unlock()
	return RemoveComponentTx[T](tx, e)
}

func RemoveComponentTx[T any](tx *Transaction, e Entity) bool {
	tx.requireEntity(EntityRead)
	p := PoolOf[T](tx.reg)
	tx.requirePool(p, true)
	if !p.remove(e) {
		return false
	}
	tx.reg.emit(ComponentRemoved{Entity: e, Component: p.name})
	return true
}
