package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/blengine/engine/internal/core/ecs"
)

func TestBusDeliversNextFrame(t *testing.T) {
	b := NewBus()
	var got []string
	Subscribe(b, func(ev ScriptFailed) { got = append(got, ev.Hook) })

	Emit(b, ScriptFailed{Hook: "on_frame"})
	b.DispatchAll()
	assert.Empty(t, got)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Equal(t, []string{"on_frame"}, got)

	b.SwapBuffers()
	b.DispatchAll()
	assert.Len(t, got, 1)
}

func TestBusPublishUsesDynamicType(t *testing.T) {
	b := NewBus()
	var created []ecs.Entity
	var destroyed int
	Subscribe(b, func(ev ecs.EntityCreated) { created = append(created, ev.Entity) })
	Subscribe(b, func(ecs.EntityDestroyed) { destroyed++ })

	e := ecs.NewEntity(3, 1, ecs.FlagNone, 0)
	b.Publish(ecs.EntityCreated{Entity: e})
	b.Publish(ecs.EntityDestroyed{Entity: e})
	b.Publish(nil)
	assert.Equal(t, 2, b.Pending())

	b.SwapBuffers()
	assert.Zero(t, b.Pending())
	b.DispatchAll()
	assert.Equal(t, []ecs.Entity{e}, created)
	assert.Equal(t, 1, destroyed)
}

func TestBusDispatchOrderFollowsFirstPublish(t *testing.T) {
	b := NewBus()
	var seq []string
	Subscribe(b, func(SnapshotSaved) { seq = append(seq, "saved") })
	Subscribe(b, func(ScriptFailed) { seq = append(seq, "script") })

	Emit(b, ScriptFailed{})
	Emit(b, SnapshotSaved{})
	Emit(b, ScriptFailed{})
	b.SwapBuffers()
	b.DispatchAll()

	assert.Equal(t, []string{"script", "script", "saved"}, seq)
}

func TestBusConcurrentEmit(t *testing.T) {
	b := NewBus()
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				b.Publish(ecs.EntityCreated{})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, b.Pending())
}
