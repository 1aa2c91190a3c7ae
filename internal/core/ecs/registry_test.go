package ecs

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	events []any
}

func (l *eventLog) record(ev any) { l.events = append(l.events, ev) }

func TestGenerationUniqueness(t *testing.T) {
	for _, mode := range []IDMode{IDSequential, IDRandom} {
		t.Run(mode.String(), func(t *testing.T) {
			r := NewRegistry(RegistryOptions{IDMode: mode, Rand: rand.New(rand.NewPCG(1, 2))})
			rng := rand.New(rand.NewPCG(3, 4))
			live := make(map[Entity]bool)
			var dead []Entity

			for range 2000 {
				if len(live) > 0 && rng.IntN(3) == 0 {
					for e := range live {
						require.True(t, r.DestroyEntity(e))
						delete(live, e)
						dead = append(dead, e)
						break
					}
					continue
				}
				e, err := r.CreateEntity(0, FlagNone)
				require.NoError(t, err)
				require.False(t, live[e], "live entity %s handed out twice", e)
				live[e] = true
			}

			assert.Equal(t, len(live), r.Count())
			for e := range live {
				assert.True(t, r.EntityExists(e))
			}
			for _, e := range dead {
				assert.False(t, r.EntityExists(e))
			}
		})
	}
}

func TestStaleEntityAfterRecreate(t *testing.T) {
	r := newTestRegistry(t)
	e := mustCreate(t, r)
	require.True(t, r.DestroyEntity(e))
	again := mustCreate(t, r)

	assert.Equal(t, e.Index(), again.Index())
	assert.False(t, r.EntityExists(e))
	assert.True(t, r.EntityExists(again))
	assert.False(t, r.DestroyEntity(e))
}

func TestCreateEntityCarriesFlagsAndWorld(t *testing.T) {
	r := newTestRegistry(t)
	e, err := r.CreateEntity(5, FlagWorldObject)
	require.NoError(t, err)
	assert.Equal(t, uint8(5), e.World())
	assert.True(t, e.HasFlag(FlagWorldObject))
	assert.Equal(t, uint16(1), e.Version())

	_, err = r.CreateEntity(MaxWorldIndex+1, FlagNone)
	assert.ErrorIs(t, err, ErrInvalidWorld)
}

func TestEntityLimit(t *testing.T) {
	r := NewRegistry(RegistryOptions{MaxEntities: 2})
	mustCreate(t, r)
	second := mustCreate(t, r)

	_, err := r.CreateEntity(0, FlagNone)
	assert.ErrorIs(t, err, ErrEntityLimit)

	r.DestroyEntity(second)
	_, err = r.CreateEntity(0, FlagNone)
	assert.NoError(t, err)
}

func TestDependencyDoesNotCascade(t *testing.T) {
	r := newTestRegistry(t)
	e1 := mustCreate(t, r)
	require.NotNil(t, AddComponent(r, e1, position{X: 0, Y: 0}))
	e2 := mustCreate(t, r)
	require.NotNil(t, AddComponent(r, e2, position{X: 5, Y: 5}))

	require.True(t, r.AddDependency(e1, e2))
	assert.True(t, r.HasDependencies(e1))

	require.True(t, r.DestroyEntity(e1))
	assert.False(t, r.HasDependencies(e1))
	assert.True(t, r.EntityExists(e2))
	assert.Empty(t, collect(r.Resources(e2)))

	got, ok := GetComponent[position](r, e2)
	require.True(t, ok)
	assert.Equal(t, position{X: 5, Y: 5}, got)
}

func TestDestroyRemovesAllComponents(t *testing.T) {
	r := newTestRegistry(t)
	e := mustCreate(t, r)
	AddComponent(r, e, position{})
	AddComponent(r, e, velocity{})
	AddComponent(r, e, health{})

	require.True(t, r.DestroyEntity(e))

	tx := Begin(r, EntityUnlocked, Reads[position](), Reads[velocity](), Reads[health]())
	defer tx.Unlock()
	assert.Zero(t, PoolOf[position](r).Len(tx))
	assert.Zero(t, PoolOf[velocity](r).Len(tx))
	assert.Zero(t, PoolOf[health](r).Len(tx))
}

func TestDestroyByFlagsAndWorld(t *testing.T) {
	r := newTestRegistry(t)
	plain := mustCreate(t, r)
	obj1, _ := r.CreateEntity(1, FlagWorldObject)
	obj2, _ := r.CreateEntity(2, FlagWorldObject)
	dummy, _ := r.CreateEntity(2, FlagDummy)
	inWorld2, _ := r.CreateEntity(2, FlagNone)

	assert.Equal(t, 1, r.DestroyAllEntitiesWithFlags(FlagDummy))
	assert.False(t, r.EntityExists(dummy))

	assert.Equal(t, 2, r.DestroyEntitiesInWorld(2))
	assert.False(t, r.EntityExists(obj2))
	assert.False(t, r.EntityExists(inWorld2))

	assert.Equal(t, 1, r.DestroyAllWorldEntities())
	assert.False(t, r.EntityExists(obj1))
	assert.True(t, r.EntityExists(plain))
	assert.Equal(t, 0, r.DestroyAllWorldEntities())
}

func TestDestroyAllEntitiesResets(t *testing.T) {
	r := newTestRegistry(t)
	a := mustCreate(t, r)
	b := mustCreate(t, r)
	AddComponent(r, a, position{})
	r.SetParent(b, a)
	r.AddDependency(a, b)
	r.QueueDestroy(a)

	r.DestroyAllEntities()

	assert.Zero(t, r.Count())
	assert.False(t, r.EntityExists(a))
	assert.False(t, r.EntityExists(b))
	assert.False(t, r.HasDependencies(a))
	assert.Zero(t, r.FlushDestroyQueue())

	fresh := mustCreate(t, r)
	assert.Equal(t, a.Index(), fresh.Index())
	assert.NotEqual(t, a, fresh)
	assert.False(t, HasComponent[position](r, fresh))
	assert.Equal(t, InvalidEntity, r.Parent(fresh))
}

func TestDestroyQueue(t *testing.T) {
	r := newTestRegistry(t)
	a := mustCreate(t, r)
	b := mustCreate(t, r)
	child := mustCreate(t, r)
	require.True(t, r.SetParent(child, b))

	r.QueueDestroy(a)
	r.QueueDestroy(b)
	r.QueueDestroy(a)
	assert.True(t, r.EntityExists(a))

	assert.Equal(t, 3, r.FlushDestroyQueue())
	assert.Zero(t, r.Count())
	assert.Zero(t, r.FlushDestroyQueue())
}

func TestEntitiesListsLive(t *testing.T) {
	r := newTestRegistry(t)
	a := mustCreate(t, r)
	b := mustCreate(t, r)
	c := mustCreate(t, r)
	r.DestroyEntity(b)

	assert.Equal(t, []Entity{a, c}, r.Entities())
}

func TestLifecycleEvents(t *testing.T) {
	var log eventLog
	r := NewRegistry(RegistryOptions{OnEvent: log.record})

	e := mustCreate(t, r)
	AddComponent(r, e, position{})
	RemoveComponent[position](r, e)
	AddComponent(r, e, velocity{})
	r.DestroyEntity(e)

	assert.Equal(t, []any{
		EntityCreated{Entity: e},
		ComponentAdded{Entity: e, Component: "ecs.position"},
		ComponentRemoved{Entity: e, Component: "ecs.position"},
		ComponentAdded{Entity: e, Component: "ecs.velocity"},
		ComponentRemoved{Entity: e, Component: "ecs.velocity"},
		EntityDestroyed{Entity: e},
	}, log.events)
}

func TestGraphEvents(t *testing.T) {
	var log eventLog
	r := NewRegistry(RegistryOptions{OnEvent: log.record})
	p := mustCreate(t, r)
	c := mustCreate(t, r)
	log.events = nil

	r.SetParent(c, p)
	r.AddDependency(p, c)
	r.UnParent(c)
	r.RemoveDependency(p, c)

	assert.Equal(t, []any{
		ParentSet{Parent: p, Child: c},
		DependencyAdded{Parent: p, Child: c},
		ParentRemoved{Parent: p, Child: c},
		DependencyRemoved{Parent: p, Child: c},
	}, log.events)
}

func collect(seq func(func(Entity) bool)) []Entity {
	var out []Entity
	for e := range seq {
		out = append(out, e)
	}
	return out
}
