package ecs

import (
	"fmt"
	"reflect"
	"slices"
)

// EntityMode is the level of the registry-wide entity lock a transaction holds.
type EntityMode uint8

const (
	// EntityUnlocked leaves the entity lock alone; only pool locks are taken.
	EntityUnlocked EntityMode = iota
	// EntityRead permits existence checks, graph reads and component add/remove.
	EntityRead
	// EntityWrite permits entity creation and destruction and graph changes.
	EntityWrite
)

func (m EntityMode) String() string {
	switch m {
	case EntityUnlocked:
		return "unlocked"
	case EntityRead:
		return "read"
	case EntityWrite:
		return "write"
	}
	return fmt.Sprintf("EntityMode(%d)", int(m))
}

// Access names a component pool and whether a transaction writes it.
type Access struct {
	typ   reflect.Type
	write bool
	pool  func(*Registry) poolBase
}

// Reads requests a read lock on the pool of T.
func Reads[T any]() Access {
	return Access{typ: typeOf[T](), pool: func(r *Registry) poolBase { return PoolOf[T](r) }}
}

// Writes requests a write lock on the pool of T.
func Writes[T any]() Access {
	return Access{typ: typeOf[T](), write: true, pool: func(r *Registry) poolBase { return PoolOf[T](r) }}
}

type heldPool struct {
	pool  poolBase
	write bool
}

// Transaction is a set of locks held against a Registry. The entity lock is
// always taken before any pool lock and pool locks in ascending pool index,
// so transactions cannot deadlock against each other. Release with Unlock,
// normally deferred right after Begin.
//
// A transaction never releases a lock before Unlock. With EntityWrite it
// holds every registered pool for writing from Begin on, since destruction
// and parent changes may touch any pool; pools registered later are locked
// on first use.
//
// A Transaction belongs to one goroutine. Do not call the non-Tx Registry
// helpers while holding one: they open their own transaction.
type Transaction struct {
	reg    *Registry
	entity EntityMode
	pools  []heldPool
	locked bool
}

// Begin acquires the entity lock at mode and then every requested pool lock.
// Requesting the same pool twice merges the requests, write winning. With
// EntityWrite every registered pool is write-locked whatever was requested.
func Begin(r *Registry, mode EntityMode, access ...Access) *Transaction {
	tx := &Transaction{reg: r, entity: mode}
	for _, a := range access {
		tx.pools = mergeHeld(tx.pools, heldPool{pool: a.pool(r), write: a.write})
	}
	if mode == EntityWrite {
		for _, p := range r.allPools() {
			tx.pools = mergeHeld(tx.pools, heldPool{pool: p, write: true})
		}
	}
	sortHeld(tx.pools)

	switch mode {
	case EntityRead:
		r.entityMu.RLock()
	case EntityWrite:
		r.entityMu.Lock()
	}
	for _, h := range tx.pools {
		h.pool.lock(h.write)
	}
	tx.locked = true
	return tx
}

// ReadEntities opens a transaction holding the entity lock for reading.
func ReadEntities(r *Registry) *Transaction { return Begin(r, EntityRead) }

// WriteEntities opens a transaction holding the entity lock for writing.
func WriteEntities(r *Registry) *Transaction { return Begin(r, EntityWrite) }

// ReadComponents opens a transaction holding only the read lock of T's pool.
func ReadComponents[T any](r *Registry) *Transaction {
	return Begin(r, EntityUnlocked, Reads[T]())
}

// WriteComponents opens a transaction holding only the write lock of T's pool.
func WriteComponents[T any](r *Registry) *Transaction {
	return Begin(r, EntityUnlocked, Writes[T]())
}

// Run executes fn inside a transaction and releases it when fn returns or panics.
func Run(r *Registry, fn func(tx *Transaction) error, mode EntityMode, access ...Access) error {
	tx := Begin(r, mode, access...)
	defer tx.Unlock()
	return fn(tx)
}

// Unlock releases every lock in reverse acquisition order. Calling it again
// is a no-op.
func (tx *Transaction) Unlock() {
	if !tx.locked {
		return
	}
	tx.locked = false
	for i := len(tx.pools) - 1; i >= 0; i-- {
		tx.pools[i].pool.unlock(tx.pools[i].write)
	}
	switch tx.entity {
	case EntityRead:
		tx.reg.entityMu.RUnlock()
	case EntityWrite:
		tx.reg.entityMu.Unlock()
	}
}

// Locked reports whether the transaction still holds its locks.
func (tx *Transaction) Locked() bool { return tx.locked }

// Mode returns the entity lock level.
func (tx *Transaction) Mode() EntityMode { return tx.entity }

// Registry returns the registry the transaction was opened on.
func (tx *Transaction) Registry() *Registry { return tx.reg }

func (tx *Transaction) requireEntity(mode EntityMode) {
	if !tx.locked {
		panic("ecs: use of released transaction")
	}
	if tx.entity < mode {
		panic(fmt.Sprintf("ecs: operation needs entity %s lock, transaction holds %s", mode, tx.entity))
	}
}

// requirePool panics unless the transaction holds p at the needed level. An
// entity write transaction already holds every pool that existed at Begin and
// locks newer ones on demand instead.
func (tx *Transaction) requirePool(p poolBase, write bool) {
	if !tx.locked {
		panic("ecs: use of released transaction")
	}
	for _, h := range tx.pools {
		if h.pool == p {
			if write && !h.write {
				break
			}
			return
		}
	}
	if tx.entity == EntityWrite {
		tx.ensure()
		return
	}
	mode := "read"
	if write {
		mode = "write"
	}
	panic(fmt.Sprintf("ecs: transaction does not hold %s access to pool %s", mode, p.componentName()))
}

// ensure write-locks every pool registered after an entity write transaction
// began. Those pools have higher indices than every held one, so acquisition
// stays ascending and nothing held is released.
func (tx *Transaction) ensure() {
	if tx.entity != EntityWrite {
		panic("ecs: pool locks can only be added under an entity write lock")
	}
	all := tx.reg.allPools()
	if len(all) == len(tx.pools) {
		return
	}
	want := slices.Clone(tx.pools)
	for _, p := range all {
		want = mergeHeld(want, heldPool{pool: p, write: true})
	}
	sortHeld(want)
	if !appendsOnly(tx.pools, want) {
		panic("ecs: pool lock would be acquired out of order")
	}
	for _, h := range want[len(tx.pools):] {
		h.pool.lock(h.write)
	}
	tx.pools = want
}

func mergeHeld(list []heldPool, h heldPool) []heldPool {
	for i := range list {
		if list[i].pool == h.pool {
			list[i].write = list[i].write || h.write
			return list
		}
	}
	return append(list, h)
}

func sortHeld(list []heldPool) {
	slices.SortFunc(list, func(a, b heldPool) int {
		return a.pool.poolIndex() - b.pool.poolIndex()
	})
}

// appendsOnly reports whether want is held plus higher-indexed pools.
func appendsOnly(held, want []heldPool) bool {
	if len(want) < len(held) {
		return false
	}
	for i := range held {
		if want[i] != held[i] {
			return false
		}
	}
	return true
}
