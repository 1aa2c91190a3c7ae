package ecs

import (
	"reflect"
	"sync"
)

const (
	poolPageBits = 8
	poolPageSize = 1 << poolPageBits
	poolPageMask = poolPageSize - 1
)

// poolBase is the type-erased view of a ComponentPool the registry uses for
// destroy, locking and link maintenance.
type poolBase interface {
	poolIndex() int
	componentName() string
	traits() traitFlags
	lock(write bool)
	unlock(write bool)
	has(e Entity) bool
	remove(e Entity) bool
	size() int
	members() []Entity
	clear()
	linkParent(e, parent Entity)
	linkChildren(e Entity, children []Entity)
}

// ComponentPool stores the T components of every entity that has one. Storage
// is dense and paged: a pointer returned by Get stays valid while the pool
// grows, and is invalidated when that component or any other component of
// the pool is removed (removal swaps the last element into the hole).
//
// All methods require a Transaction holding the pool's lock.
type ComponentPool[T any] struct {
	mu       sync.RWMutex
	index    int
	name     string
	traitSet traitFlags

	pages    [][]T
	entities []Entity
	// sparse maps Entity.Index() to dense position + 1, 0 meaning absent.
	sparse []int32
}

func newComponentPool[T any](index int) *ComponentPool[T] {
	return &ComponentPool[T]{
		index:    index,
		name:     reflect.TypeOf((*T)(nil)).Elem().String(),
		traitSet: traitsOf[T](),
	}
}

// Name is the component type name used in events and logs.
func (p *ComponentPool[T]) Name() string { return p.name }

// Len returns the number of stored components.
func (p *ComponentPool[T]) Len(tx *Transaction) int {
	tx.requirePool(p, false)
	return len(p.entities)
}

// Get returns e's component or nil.
func (p *ComponentPool[T]) Get(tx *Transaction, e Entity) *T {
	tx.requirePool(p, false)
	return p.get(e)
}

func (p *ComponentPool[T]) Has(tx *Transaction, e Entity) bool {
	tx.requirePool(p, false)
	return p.has(e)
}

// ForEach calls fn for every stored component in dense order. fn must not
// modify the component; use ForEachWithWrites for that. Several goroutines
// may run ForEach on the same pool concurrently under read transactions.
func (p *ComponentPool[T]) ForEach(tx *Transaction, fn func(Entity, *T)) {
	tx.requirePool(p, false)
	p.each(fn)
}

// ForEachWithWrites is ForEach for callbacks that mutate components in place.
// Neither form may add or remove components of this pool from fn.
func (p *ComponentPool[T]) ForEachWithWrites(tx *Transaction, fn func(Entity, *T)) {
	tx.requirePool(p, true)
	p.each(fn)
}

// Entities returns a copy of the entities that have a component.
func (p *ComponentPool[T]) Entities(tx *Transaction) []Entity {
	tx.requirePool(p, false)
	out := make([]Entity, len(p.entities))
	copy(out, p.entities)
	return out
}

func (p *ComponentPool[T]) each(fn func(Entity, *T)) {
	for i, e := range p.entities {
		fn(e, p.at(i))
	}
}

func (p *ComponentPool[T]) at(pos int) *T {
	return &p.pages[pos>>poolPageBits][pos&poolPageMask]
}

func (p *ComponentPool[T]) position(e Entity) int {
	idx := e.Index()
	if int(idx) >= len(p.sparse) {
		return -1
	}
	pos := int(p.sparse[idx]) - 1
	if pos < 0 || p.entities[pos] != e {
		return -1
	}
	return pos
}

func (p *ComponentPool[T]) get(e Entity) *T {
	if pos := p.position(e); pos >= 0 {
		return p.at(pos)
	}
	return nil
}

// add stores v for e. It returns nil when the slot index already holds a
// component.
func (p *ComponentPool[T]) add(e Entity, v T) *T {
	idx := int(e.Index())
	if idx < len(p.sparse) && p.sparse[idx] != 0 {
		return nil
	}
	pos := len(p.entities)
	if pos>>poolPageBits >= len(p.pages) {
		p.pages = append(p.pages, make([]T, poolPageSize))
	}
	slot := p.at(pos)
	*slot = v
	p.entities = append(p.entities, e)
	if idx >= len(p.sparse) {
		n := max(idx+1, 2*len(p.sparse))
		grown := make([]int32, n)
		copy(grown, p.sparse)
		p.sparse = grown
	}
	p.sparse[idx] = int32(pos + 1)
	return slot
}

func (p *ComponentPool[T]) remove(e Entity) bool {
	pos := p.position(e)
	if pos < 0 {
		return false
	}
	last := len(p.entities) - 1
	if pos != last {
		moved := p.entities[last]
		*p.at(pos) = *p.at(last)
		p.entities[pos] = moved
		p.sparse[moved.Index()] = int32(pos + 1)
	}
	var zero T
	*p.at(last) = zero
	p.entities = p.entities[:last]
	p.sparse[e.Index()] = 0
	return true
}

func (p *ComponentPool[T]) clear() {
	var zero T
	for i := range p.entities {
		*p.at(i) = zero
	}
	p.entities = p.entities[:0]
	clear(p.sparse)
}

func (p *ComponentPool[T]) poolIndex() int        { return p.index }
func (p *ComponentPool[T]) componentName() string { return p.name }
func (p *ComponentPool[T]) traits() traitFlags    { return p.traitSet }
func (p *ComponentPool[T]) has(e Entity) bool     { return p.position(e) >= 0 }
func (p *ComponentPool[T]) size() int             { return len(p.entities) }

// members is the live dense entity slice; callers must not keep or modify it.
func (p *ComponentPool[T]) members() []Entity { return p.entities }

func (p *ComponentPool[T]) lock(write bool) {
	if write {
		p.mu.Lock()
	} else {
		p.mu.RLock()
	}
}

func (p *ComponentPool[T]) unlock(write bool) {
	if write {
		p.mu.Unlock()
	} else {
		p.mu.RUnlock()
	}
}

func (p *ComponentPool[T]) linkParent(e, parent Entity) {
	if c := p.get(e); c != nil {
		if l, ok := any(c).(parentLinker); ok {
			l.setParentEntity(parent)
		}
	}
}

func (p *ComponentPool[T]) linkChildren(e Entity, children []Entity) {
	if c := p.get(e); c != nil {
		if l, ok := any(c).(childLinker); ok {
			l.setChildEntities(children)
		}
	}
}
