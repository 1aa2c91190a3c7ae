package ecs

import (
	"fmt"
	"iter"
	"math/rand/v2"
	"reflect"
	"slices"
	"sync"

	"go.uber.org/zap"
)

const (
	// DefaultMaxEntities bounds the number of simultaneously live entities.
	DefaultMaxEntities = 1 << 20
	defaultCapacity    = 256
)

type RegistryOptions struct {
	// InitialCapacity preallocates entity slots.
	InitialCapacity int
	// MaxEntities caps live entities; 0 means DefaultMaxEntities.
	MaxEntities uint32
	IDMode      IDMode
	// Rand feeds IDRandom. A fixed seed is used when nil.
	Rand   *rand.Rand
	Logger *zap.Logger
	// OnEvent receives lifecycle events (EntityCreated, ParentSet, ...).
	OnEvent func(any)
}

type entitySlot struct {
	entity            Entity // InvalidEntity while the slot is free
	version           uint16
	behavior          ParentDestructionBehavior
	releaseWhenUnused bool
}

// Registry owns entities, component pools and the parent and dependency
// graphs. Entity state and both graphs are guarded by the entity lock; each
// pool has its own lock. See Transaction for the locking rules.
type Registry struct {
	log         *zap.Logger
	onEvent     func(any)
	maxEntities uint32

	entityMu sync.RWMutex
	ids      idAllocator
	slots    []entitySlot
	parents  *ParentGraph
	deps     *DependencyGraph

	poolsMu     sync.RWMutex
	poolsByType map[reflect.Type]poolBase
	pools       []poolBase

	queueMu      sync.Mutex
	destroyQueue []Entity
}

func NewRegistry(opts RegistryOptions) *Registry {
	if opts.InitialCapacity <= 0 {
		opts.InitialCapacity = defaultCapacity
	}
	if opts.MaxEntities == 0 {
		opts.MaxEntities = DefaultMaxEntities
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Registry{
		log:          opts.Logger,
		onEvent:      opts.OnEvent,
		maxEntities:  opts.MaxEntities,
		ids:          newIDAllocator(opts.IDMode, opts.InitialCapacity, opts.MaxEntities, opts.Rand),
		slots:        make([]entitySlot, 0, opts.InitialCapacity),
		parents:      NewParentGraph(),
		deps:         NewDependencyGraph(),
		poolsByType:  make(map[reflect.Type]poolBase, 16),
		pools:        make([]poolBase, 0, 16),
		destroyQueue: make([]Entity, 0, 64),
	}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// PoolOf returns the pool for T, registering it on first use.
func PoolOf[T any](r *Registry) *ComponentPool[T] {
	t := typeOf[T]()
	r.poolsMu.RLock()
	p, ok := r.poolsByType[t]
	r.poolsMu.RUnlock()
	if ok {
		return p.(*ComponentPool[T])
	}

	r.poolsMu.Lock()
	defer r.poolsMu.Unlock()
	if p, ok := r.poolsByType[t]; ok {
		return p.(*ComponentPool[T])
	}
	np := newComponentPool[T](len(r.pools))
	r.poolsByType[t] = np
	r.pools = append(r.pools, np)
	r.log.Debug("component pool registered", zap.String("component", np.name), zap.Int("index", np.index))
	return np
}

func (r *Registry) allPools() []poolBase {
	r.poolsMu.RLock()
	defer r.poolsMu.RUnlock()
	return slices.Clone(r.pools)
}

func (r *Registry) emit(ev any) {
	if r.onEvent != nil {
		r.onEvent(ev)
	}
}

func (r *Registry) exists(e Entity) bool {
	if e == InvalidEntity {
		return false
	}
	idx := int(e.Index())
	return idx < len(r.slots) && r.slots[idx].entity == e
}

// CreateEntity allocates a new entity tagged with world and flags.
func (r *Registry) CreateEntity(world uint8, flags Flags) (Entity, error) {
	tx := WriteEntities(r)
	defer tx.Unlock()
	return r.CreateEntityTx(tx, world, flags)
}

func (r *Registry) CreateEntityTx(tx *Transaction, world uint8, flags Flags) (Entity, error) {
	tx.requireEntity(EntityWrite)
	if world > MaxWorldIndex {
		return InvalidEntity, fmt.Errorf("%w: %d", ErrInvalidWorld, world)
	}
	idx, ok := r.ids.allocate()
	if !ok {
		r.log.Error("entity limit reached", zap.Uint32("max_entities", r.maxEntities))
		return InvalidEntity, ErrEntityLimit
	}
	for int(idx) >= len(r.slots) {
		r.slots = append(r.slots, entitySlot{entity: InvalidEntity, version: 1})
	}
	s := &r.slots[idx]
	e := NewEntity(idx, s.version, flags, world)
	s.entity = e
	s.behavior = DestroyedWithParent
	s.releaseWhenUnused = false
	r.emit(EntityCreated{Entity: e})
	return e, nil
}

// EntityExists reports whether e is live: its version matches its slot.
func (r *Registry) EntityExists(e Entity) bool {
	tx := ReadEntities(r)
	defer tx.Unlock()
	return r.exists(e)
}

func (r *Registry) EntityExistsTx(tx *Transaction, e Entity) bool {
	tx.requireEntity(EntityRead)
	return r.exists(e)
}

// Count returns the number of live entities.
func (r *Registry) Count() int {
	tx := ReadEntities(r)
	defer tx.Unlock()
	return r.ids.count()
}

// Entities returns a copy of every live entity in slot order.
func (r *Registry) Entities() []Entity {
	tx := ReadEntities(r)
	defer tx.Unlock()
	return slices.Collect(r.EntitiesTx(tx))
}

// EntitiesTx yields every live entity in slot order. The registry must not be
// structurally changed during iteration.
func (r *Registry) EntitiesTx(tx *Transaction) iter.Seq[Entity] {
	tx.requireEntity(EntityRead)
	return func(yield func(Entity) bool) {
		for i := range r.slots {
			if e := r.slots[i].entity; e != InvalidEntity {
				if !yield(e) {
					return
				}
			}
		}
	}
}

// DestroyEntity destroys e together with its components, cascading to
// children according to their ParentDestructionBehavior. Dependencies never
// block destruction: all edges touching e are dropped. It reports false when
// e is not live.
func (r *Registry) DestroyEntity(e Entity) bool {
	tx := WriteEntities(r)
	defer tx.Unlock()
	return r.DestroyEntityTx(tx, e)
}

func (r *Registry) DestroyEntityTx(tx *Transaction, e Entity) bool {
	tx.requireEntity(EntityWrite)
	if !r.exists(e) {
		r.log.Debug("destroy of unknown entity", zap.Stringer("entity", e))
		return false
	}
	tx.ensure()
	r.destroy(tx, []Entity{e})
	return true
}

// QueueDestroy defers destruction of e until the next FlushDestroyQueue. It
// takes no registry lock and may be called while holding a transaction.
func (r *Registry) QueueDestroy(e Entity) {
	r.queueMu.Lock()
	r.destroyQueue = append(r.destroyQueue, e)
	r.queueMu.Unlock()
}

// FlushDestroyQueue destroys every queued entity in queue order and returns
// how many entities were destroyed, cascades included.
func (r *Registry) FlushDestroyQueue() int {
	r.queueMu.Lock()
	queued := r.destroyQueue
	r.destroyQueue = make([]Entity, 0, cap(queued))
	r.queueMu.Unlock()
	if len(queued) == 0 {
		return 0
	}

	tx := WriteEntities(r)
	defer tx.Unlock()
	tx.ensure()
	slices.Reverse(queued)
	return r.destroy(tx, queued)
}

// DestroyWhenUnused destroys resource now if nothing depends on it and reports
// true. Otherwise it marks resource so that it is destroyed once its last
// dependency edge goes away, and reports false.
func (r *Registry) DestroyWhenUnused(resource Entity) bool {
	tx := WriteEntities(r)
	defer tx.Unlock()
	return r.DestroyWhenUnusedTx(tx, resource)
}

func (r *Registry) DestroyWhenUnusedTx(tx *Transaction, resource Entity) bool {
	tx.requireEntity(EntityWrite)
	if !r.exists(resource) {
		return false
	}
	if r.deps.HasDependencies(resource) {
		r.slots[resource.Index()].releaseWhenUnused = true
		return false
	}
	tx.ensure()
	r.destroy(tx, []Entity{resource})
	return true
}

// DestroyAllEntitiesWithFlags destroys every entity created with any of flags.
func (r *Registry) DestroyAllEntitiesWithFlags(flags Flags) int {
	return r.destroyMatching(func(e Entity) bool { return e.HasFlag(flags) })
}

// DestroyEntitiesInWorld destroys every entity tagged with world.
func (r *Registry) DestroyEntitiesInWorld(world uint8) int {
	return r.destroyMatching(func(e Entity) bool { return e.World() == world })
}

// DestroyAllWorldEntities destroys every entity flagged FlagWorldObject.
func (r *Registry) DestroyAllWorldEntities() int {
	return r.DestroyAllEntitiesWithFlags(FlagWorldObject)
}

func (r *Registry) destroyMatching(match func(Entity) bool) int {
	tx := WriteEntities(r)
	defer tx.Unlock()
	var work []Entity
	for e := range r.EntitiesTx(tx) {
		if match(e) {
			work = append(work, e)
		}
	}
	if len(work) == 0 {
		return 0
	}
	tx.ensure()
	slices.Reverse(work)
	return r.destroy(tx, work)
}

// DestroyAllEntities resets the registry: every entity, component, edge and
// queued destruction is dropped. Pools stay registered and outstanding
// Entity values remain invalid.
func (r *Registry) DestroyAllEntities() {
	tx := WriteEntities(r)
	defer tx.Unlock()
	r.DestroyAllEntitiesTx(tx)
}

func (r *Registry) DestroyAllEntitiesTx(tx *Transaction) {
	tx.requireEntity(EntityWrite)
	tx.ensure()
	n := 0
	for i := range r.slots {
		s := &r.slots[i]
		if s.entity == InvalidEntity {
			continue
		}
		r.emit(EntityDestroyed{Entity: s.entity})
		s.entity = InvalidEntity
		s.version = nextVersion(s.version)
		s.behavior = DestroyedWithParent
		s.releaseWhenUnused = false
		n++
	}
	for _, h := range tx.pools {
		h.pool.clear()
	}
	r.parents.Clear()
	r.deps.Clear()
	r.ids.releaseAll()

	r.queueMu.Lock()
	r.destroyQueue = r.destroyQueue[:0]
	r.queueMu.Unlock()
	r.log.Debug("registry cleared", zap.Int("entities", n))
}

// destroy processes a worklist of entities to destroy. It is iterative so deep
// hierarchies cannot exhaust the stack, and every entity is checked for
// liveness when popped so each is destroyed at most once, even if the parent
// graph were to contain a cycle. The caller holds write locks on all pools.
func (r *Registry) destroy(tx *Transaction, work []Entity) int {
	n := 0
	for len(work) > 0 {
		v := work[len(work)-1]
		work = work[:len(work)-1]
		if !r.exists(v) {
			continue
		}

		for _, c := range r.parents.childrenCopy(v) {
			if !r.exists(c) {
				continue
			}
			if r.slots[c.Index()].behavior == OrphanedByParent {
				r.unparent(tx, c)
			} else {
				work = append(work, c)
			}
		}

		for _, res := range slices.Collect(r.deps.Resources(v)) {
			r.deps.Remove(res, v)
			r.emit(DependencyRemoved{Parent: res, Child: v})
			if r.exists(res) && r.slots[res.Index()].releaseWhenUnused && !r.deps.HasDependencies(res) {
				work = append(work, res)
			}
		}
		for _, user := range slices.Collect(r.deps.Users(v)) {
			r.emit(DependencyRemoved{Parent: v, Child: user})
		}
		r.deps.RemoveEntity(v)

		r.unparent(tx, v)
		for _, h := range tx.pools {
			if h.pool.remove(v) {
				r.emit(ComponentRemoved{Entity: v, Component: h.pool.componentName()})
			}
		}
		r.parents.RemoveEntity(v)

		s := &r.slots[v.Index()]
		s.entity = InvalidEntity
		s.version = nextVersion(s.version)
		s.behavior = DestroyedWithParent
		s.releaseWhenUnused = false
		r.ids.release(v.Index())
		r.emit(EntityDestroyed{Entity: v})
		n++
	}
	return n
}
