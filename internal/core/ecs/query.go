package ecs

// Filter narrows a query to entities that also have, or lack, a component
// whose value the callback does not need.
type Filter struct {
	access  Access
	exclude bool
}

// Require keeps only entities that have a T.
func Require[T any]() Filter { return Filter{access: Reads[T]()} }

// Exclude drops entities that have a T.
func Exclude[T any]() Filter { return Filter{access: Reads[T](), exclude: true} }

// Access returns the lock the filter needs, for passing to Begin.
func (f Filter) Access() Access { return f.access }

type filterSet struct {
	require []poolBase
	exclude []poolBase
}

func resolveFilters(tx *Transaction, filters []Filter) filterSet {
	var fs filterSet
	for _, f := range filters {
		p := f.access.pool(tx.reg)
		tx.requirePool(p, false)
		if f.exclude {
			fs.exclude = append(fs.exclude, p)
		} else {
			fs.require = append(fs.require, p)
		}
	}
	return fs
}

func (fs filterSet) match(e Entity) bool {
	for _, p := range fs.require {
		if !p.has(e) {
			return false
		}
	}
	for _, p := range fs.exclude {
		if p.has(e) {
			return false
		}
	}
	return true
}

// candidates returns the members of the smallest pool. Every entity a
// query can visit is in it.
func candidates(pools ...poolBase) []Entity {
	best := pools[0]
	for _, p := range pools[1:] {
		if p.size() < best.size() {
			best = p
		}
	}
	return best.members()
}

// Each calls fn for every entity that has an A and passes every filter. tx
// must hold at least read access to A and to each filtered pool.
func Each[A any](tx *Transaction, fn func(Entity, *A), filters ...Filter) {
	pa := PoolOf[A](tx.reg)
	tx.requirePool(pa, false)
	fs := resolveFilters(tx, filters)

	for _, e := range candidates(append([]poolBase{pa}, fs.require...)...) {
		if !fs.match(e) {
			continue
		}
		if a := pa.get(e); a != nil {
			fn(e, a)
		}
	}
}

// EachOptional is Each with a second component that may be missing; fn then
// gets a nil O.
func EachOptional[A, O any](tx *Transaction, fn func(Entity, *A, *O), filters ...Filter) {
	po := PoolOf[O](tx.reg)
	tx.requirePool(po, false)
	Each(tx, func(e Entity, a *A) {
		fn(e, a, po.get(e))
	}, filters...)
}

// Each2 calls fn for every entity that has both an A and a B. It walks the
// smaller pool and checks the other. tx must hold at least read access to
// both pools; fn must not add or remove components of either.
func Each2[A, B any](tx *Transaction, fn func(Entity, *A, *B), filters ...Filter) {
	pa, pb := PoolOf[A](tx.reg), PoolOf[B](tx.reg)
	tx.requirePool(pa, false)
	tx.requirePool(pb, false)
	fs := resolveFilters(tx, filters)

	for _, e := range candidates(append([]poolBase{pa, pb}, fs.require...)...) {
		if !fs.match(e) {
			continue
		}
		a := pa.get(e)
		b := pb.get(e)
		if a != nil && b != nil {
			fn(e, a, b)
		}
	}
}

// Each3 calls fn for every entity that has an A, a B and a C.
func Each3[A, B, C any](tx *Transaction, fn func(Entity, *A, *B, *C), filters ...Filter) {
	pa, pb, pc := PoolOf[A](tx.reg), PoolOf[B](tx.reg), PoolOf[C](tx.reg)
	tx.requirePool(pa, false)
	tx.requirePool(pb, false)
	tx.requirePool(pc, false)
	fs := resolveFilters(tx, filters)

	for _, e := range candidates(append([]poolBase{pa, pb, pc}, fs.require...)...) {
		if !fs.match(e) {
			continue
		}
		a, b, c := pa.get(e), pb.get(e), pc.get(e)
		if a != nil && b != nil && c != nil {
			fn(e, a, b, c)
		}
	}
}

// Set2 holds one entity's A and B. A missing component is nil.
type Set2[A, B any] struct {
	Entity Entity
	A      *A
	B      *B
}

// Complete reports whether both components were found.
func (s Set2[A, B]) Complete() bool { return s.A != nil && s.B != nil }

// GetSet2 fetches e's A and B in one go. The pointers follow the same
// validity rules as ComponentPool.Get.
func GetSet2[A, B any](tx *Transaction, e Entity) Set2[A, B] {
	return Set2[A, B]{Entity: e, A: GetComponentTx[A](tx, e), B: GetComponentTx[B](tx, e)}
}

// Set3 is Set2 with a third component.
type Set3[A, B, C any] struct {
	Entity Entity
	A      *A
	B      *B
	C      *C
}

// Complete reports whether all three components were found.
func (s Set3[A, B, C]) Complete() bool { return s.A != nil && s.B != nil && s.C != nil }

// GetSet3 fetches e's A, B and C.
func GetSet3[A, B, C any](tx *Transaction, e Entity) Set3[A, B, C] {
	return Set3[A, B, C]{
		Entity: e,
		A:      GetComponentTx[A](tx, e),
		B:      GetComponentTx[B](tx, e),
		C:      GetComponentTx[C](tx, e),
	}
}
