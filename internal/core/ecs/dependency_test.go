package ecs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDependencyGraphSymmetry(t *testing.T) {
	g := NewDependencyGraph()
	p1, p2 := NewEntity(1, 1, 0, 0), NewEntity(2, 1, 0, 0)
	c1, c2 := NewEntity(3, 1, 0, 0), NewEntity(4, 1, 0, 0)

	assert.True(t, g.Add(p1, c1))
	assert.True(t, g.Add(p1, c2))
	assert.True(t, g.Add(p2, c1))
	assert.False(t, g.Add(p1, c1))

	assert.True(t, g.HasDependencies(p1))
	assert.Equal(t, []Entity{p1, p2}, collect(g.Resources(c1)))
	assert.Equal(t, []Entity{c1, c2}, collect(g.Users(p1)))

	g.RemoveEntity(p1)
	assert.False(t, g.HasDependencies(p1))
	assert.Equal(t, []Entity{p2}, collect(g.Resources(c1)))
	assert.Empty(t, collect(g.Resources(c2)))

	g.RemoveEntity(c1)
	assert.False(t, g.HasDependencies(p2))
	assert.Empty(t, g.Edges())
	assert.Empty(t, g.users)
	assert.Empty(t, g.resources)
}

func TestDependencyGraphRemoveEdge(t *testing.T) {
	g := NewDependencyGraph()
	p, c := NewEntity(1, 1, 0, 0), NewEntity(2, 1, 0, 0)
	g.Add(p, c)

	assert.False(t, g.Remove(c, p))
	assert.True(t, g.Remove(p, c))
	assert.False(t, g.HasDependencies(p))
	assert.Empty(t, collect(g.Resources(c)))
	assert.False(t, g.Remove(p, c))
}

func TestDependencyResourcesIsLive(t *testing.T) {
	g := NewDependencyGraph()
	p1, p2, c := NewEntity(1, 1, 0, 0), NewEntity(2, 1, 0, 0), NewEntity(3, 1, 0, 0)
	seq := g.Resources(c)
	g.Add(p1, c)
	assert.Equal(t, []Entity{p1}, collect(seq))
	g.Add(p2, c)
	assert.Equal(t, []Entity{p1, p2}, collect(seq))
	g.Clear()
	assert.Empty(t, collect(seq))
}

func TestRegistryDependencies(t *testing.T) {
	r := newTestRegistry(t)
	skeleton := mustCreate(t, r)
	mesh := mustCreate(t, r)

	assert.False(t, r.AddDependency(skeleton, skeleton))
	assert.False(t, r.AddDependency(skeleton, NewEntity(99, 1, 0, 0)))
	require.True(t, r.AddDependency(skeleton, mesh))
	assert.True(t, r.AddDependency(skeleton, mesh))

	assert.True(t, r.HasDependencies(skeleton))
	assert.Equal(t, []Entity{skeleton}, collect(r.Resources(mesh)))

	require.True(t, r.DestroyEntity(mesh))
	assert.False(t, r.HasDependencies(skeleton))
	assert.True(t, r.EntityExists(skeleton))
}

func TestDestroyWhenUnused(t *testing.T) {
	r := newTestRegistry(t)
	res := mustCreate(t, r)
	u1 := mustCreate(t, r)
	u2 := mustCreate(t, r)
	r.AddDependency(res, u1)
	r.AddDependency(res, u2)

	assert.False(t, r.DestroyWhenUnused(res))
	assert.True(t, r.EntityExists(res))

	r.DestroyEntity(u1)
	assert.True(t, r.EntityExists(res))

	require.True(t, r.RemoveDependency(res, u2))
	assert.False(t, r.EntityExists(res))
	assert.True(t, r.EntityExists(u2))
}

func TestDestroyWhenUnusedViaDependentDestroy(t *testing.T) {
	r := newTestRegistry(t)
	res := mustCreate(t, r)
	user := mustCreate(t, r)
	r.AddDependency(res, user)
	r.DestroyWhenUnused(res)

	r.DestroyEntity(user)
	assert.False(t, r.EntityExists(res))
	assert.Zero(t, r.Count())
}

func TestDestroyWhenUnusedWithoutUsers(t *testing.T) {
	r := newTestRegistry(t)
	res := mustCreate(t, r)
	assert.True(t, r.DestroyWhenUnused(res))
	assert.False(t, r.EntityExists(res))
	assert.False(t, r.DestroyWhenUnused(res))
}

func TestDependencyEdgesSorted(t *testing.T) {
	r := newTestRegistry(t)
	a := mustCreate(t, r)
	b := mustCreate(t, r)
	c := mustCreate(t, r)
	r.AddDependency(b, c)
	r.AddDependency(a, c)
	r.AddDependency(a, b)

	tx := ReadEntities(r)
	defer tx.Unlock()
	assert.Equal(t, [][2]Entity{{a, b}, {a, c}, {b, c}}, r.DependencyEdgesTx(tx))
}
