package ecs

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionUnlockIdempotent(t *testing.T) {
	r := newTestRegistry(t)
	tx := Begin(r, EntityWrite, Writes[position](), Reads[velocity]())
	assert.True(t, tx.Locked())
	assert.Equal(t, EntityWrite, tx.Mode())
	tx.Unlock()
	tx.Unlock()
	assert.False(t, tx.Locked())

	// Both locks must be free again.
	tx = Begin(r, EntityWrite, Writes[position](), Writes[velocity]())
	tx.Unlock()
}

func TestTransactionMisusePanics(t *testing.T) {
	r := newTestRegistry(t)
	e := mustCreate(t, r)

	tx := ReadEntities(r)
	assert.Panics(t, func() { _, _ = r.CreateEntityTx(tx, 0, FlagNone) })
	assert.Panics(t, func() { r.DestroyEntityTx(tx, e) })
	assert.Panics(t, func() { GetComponentTx[position](tx, e) })
	assert.Panics(t, func() { AddComponentTx(tx, e, position{}) })
	tx.Unlock()
	assert.Panics(t, func() { r.EntityExistsTx(tx, e) })

	tx = ReadComponents[position](r)
	assert.Panics(t, func() { r.EntityExistsTx(tx, e) })
	assert.Panics(t, func() { RemoveComponentTx[position](tx, e) })
	tx.Unlock()
}

func TestRunReleasesOnPanic(t *testing.T) {
	r := newTestRegistry(t)
	assert.Panics(t, func() {
		_ = Run(r, func(*Transaction) error { panic("boom") }, EntityWrite, Writes[position]())
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		tx := Begin(r, EntityWrite, Writes[position]())
		tx.Unlock()
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("locks leaked after panic")
	}
}

func TestRunReturnsError(t *testing.T) {
	r := newTestRegistry(t)
	want := errors.New("nope")
	err := Run(r, func(tx *Transaction) error {
		_, err := r.CreateEntityTx(tx, 0, FlagNone)
		require.NoError(t, err)
		return want
	}, EntityWrite)
	assert.ErrorIs(t, err, want)
	assert.Equal(t, 1, r.Count())
}

func TestEntityWriteAcquiresPoolsOnDemand(t *testing.T) {
	r := newTestRegistry(t)
	PoolOf[position](r)
	PoolOf[velocity](r)

	tx := Begin(r, EntityWrite, Reads[velocity]())
	e, err := r.CreateEntityTx(tx, 0, FlagNone)
	require.NoError(t, err)
	require.NotNil(t, AddComponentTx(tx, e, position{X: 1}))
	require.NotNil(t, AddComponentTx(tx, e, velocity{DX: 2}))
	assert.True(t, r.DestroyEntityTx(tx, e))
	tx.Unlock()

	assert.False(t, r.EntityExists(e))
	assert.False(t, HasComponent[velocity](r, e))
}

func TestEntityWriteKeepsPoolLocksUntilUnlock(t *testing.T) {
	r := newTestRegistry(t)
	PoolOf[node](r)
	PoolOf[velocity](r)
	a, b := mustCreate(t, r), mustCreate(t, r)
	AddComponent(r, a, velocity{DX: 1})

	tx := Begin(r, EntityWrite, Reads[velocity]())
	before := GetComponentTx[velocity](tx, a).DX

	done := make(chan struct{})
	go func() {
		defer close(done)
		UpdateComponent(r, a, func(v *velocity) { v.DX = 99 })
	}()
	time.Sleep(20 * time.Millisecond)

	// Linking touches the node pool, which sorts before velocity.
	require.True(t, r.SetParentTx(tx, a, b))
	assert.Equal(t, before, GetComponentTx[velocity](tx, a).DX, "queued writer ran inside the transaction")
	tx.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("writer never ran")
	}
	v, ok := GetComponent[velocity](r, a)
	require.True(t, ok)
	assert.Equal(t, float32(99), v.DX)
}

func TestEntityWriteLocksLatePoolsInOrder(t *testing.T) {
	r := newTestRegistry(t)
	PoolOf[position](r)
	e := mustCreate(t, r)

	tx := Begin(r, EntityWrite)
	// Both pools register after Begin and are used highest index first.
	PoolOf[velocity](r)
	PoolOf[health](r)
	assert.NotPanics(t, func() {
		require.NotNil(t, AddComponentTx(tx, e, health{HP: 3}))
		require.NotNil(t, AddComponentTx(tx, e, velocity{DX: 1}))
	})
	tx.Unlock()

	assert.True(t, HasComponent[health](r, e))
	assert.True(t, HasComponent[velocity](r, e))
}

func TestConcurrentWritersOnSeparatePools(t *testing.T) {
	r := newTestRegistry(t)
	var es []Entity
	for range 200 {
		e := mustCreate(t, r)
		AddComponent(r, e, position{})
		AddComponent(r, e, velocity{DX: 1, DY: 2})
		es = append(es, e)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 50 {
			_ = Run(r, func(tx *Transaction) error {
				PoolOf[position](r).ForEachWithWrites(tx, func(_ Entity, p *position) { p.X++ })
				return nil
			}, EntityUnlocked, Writes[position]())
		}
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			_ = Run(r, func(tx *Transaction) error {
				PoolOf[velocity](r).ForEach(tx, func(_ Entity, v *velocity) { _ = v.DX + v.DY })
				return nil
			}, EntityUnlocked, Reads[velocity]())
		}
	}()
	wg.Wait()

	for _, e := range es {
		p, ok := GetComponent[position](r, e)
		require.True(t, ok)
		assert.Equal(t, float32(50), p.X)
	}
}

func TestConcurrentCreateAndDestroy(t *testing.T) {
	r := newTestRegistry(t)
	const workers = 4
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				e, err := r.CreateEntity(0, FlagNone)
				if !assert.NoError(t, err) {
					return
				}
				AddComponent(r, e, health{HP: i})
				if i%2 == 1 {
					r.DestroyEntity(e)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, workers*50, r.Count())
	tx := ReadComponents[health](r)
	defer tx.Unlock()
	assert.Equal(t, workers*50, PoolOf[health](r).Len(tx))
}

func TestOppositeAccessOrderDoesNotDeadlock(t *testing.T) {
	r := newTestRegistry(t)
	e := mustCreate(t, r)
	AddComponent(r, e, position{})
	AddComponent(r, e, velocity{})

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for range 500 {
			tx := Begin(r, EntityUnlocked, Writes[position](), Writes[velocity]())
			tx.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		for range 500 {
			tx := Begin(r, EntityUnlocked, Writes[velocity](), Writes[position]())
			tx.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			tx := Begin(r, EntityWrite, Reads[velocity]())
			GetComponentTx[position](tx, e)
			RemoveComponentTx[health](tx, e)
			tx.Unlock()
		}
	}()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("deadlock")
	}
}
