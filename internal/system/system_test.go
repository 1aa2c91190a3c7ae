package system

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/blengine/engine/internal/component"
	"github.com/blengine/engine/internal/core/ecs"
	"github.com/blengine/engine/internal/core/event"
	coresys "github.com/blengine/engine/internal/core/system"
	"github.com/blengine/engine/internal/snapshot"
)

func newTestRegistry(t *testing.T) *ecs.Registry {
	t.Helper()
	return ecs.NewRegistry(ecs.RegistryOptions{Logger: zaptest.NewLogger(t)})
}

func spawn(t *testing.T, reg *ecs.Registry, flags ecs.Flags, parent ecs.Entity) ecs.Entity {
	t.Helper()
	e, err := reg.CreateEntity(0, flags)
	require.NoError(t, err)
	if parent.IsValid() {
		require.True(t, reg.SetParent(e, parent))
	}
	return e
}

func TestMotionIntegratesVelocity(t *testing.T) {
	reg := newTestRegistry(t)
	moving := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	still := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	ecs.AddComponent(reg, moving, component.NewTransform2D(1, 1, 0))
	ecs.AddComponent(reg, moving, component.Velocity{Linear: mgl32.Vec2{2, -4}, Angular: 1})
	ecs.AddComponent(reg, still, component.NewTransform2D(5, 5, 0))

	s := NewMotionSystem(reg)
	assert.Equal(t, coresys.PhaseUpdate, s.Phase())
	s.Update(500 * time.Millisecond)
	s.Update(0)

	tr, _ := ecs.GetComponent[component.Transform2D](reg, moving)
	assert.InDelta(t, 2, tr.Position.X(), 1e-5)
	assert.InDelta(t, -1, tr.Position.Y(), 1e-5)
	assert.InDelta(t, 0.5, tr.Rotation, 1e-5)

	tr, _ = ecs.GetComponent[component.Transform2D](reg, still)
	assert.Equal(t, mgl32.Vec2{5, 5}, tr.Position)
}

func TestHierarchyPropagatesThroughDummies(t *testing.T) {
	reg := newTestRegistry(t)
	root := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	mount := spawn(t, reg, ecs.FlagDummy, root)
	turret := spawn(t, reg, ecs.FlagNone, mount)
	barrel := spawn(t, reg, ecs.FlagNone, turret)

	ecs.AddComponent(reg, root, component.NewTransform2D(10, 0, math.Pi/2))
	ecs.AddComponent(reg, turret, component.NewTransform2D(1, 0, 0))
	ecs.AddComponent(reg, barrel, component.NewTransform2D(0, 2, 0))

	s := NewHierarchySystem(reg)
	assert.Equal(t, coresys.PhasePostUpdate, s.Phase())
	s.Update(0)

	tr, _ := ecs.GetComponent[component.Transform2D](reg, turret)
	assert.Equal(t, root, tr.ParentEntity())
	assert.InDelta(t, 10, tr.Global.X(), 1e-5)
	assert.InDelta(t, 1, tr.Global.Y(), 1e-5)
	assert.InDelta(t, math.Pi/2, tr.GlobalRotation, 1e-5)

	tr, _ = ecs.GetComponent[component.Transform2D](reg, barrel)
	assert.InDelta(t, 8, tr.Global.X(), 1e-5)
	assert.InDelta(t, 1, tr.Global.Y(), 1e-5)
}

func TestHierarchyTreatsUntransformedParentAsRoot(t *testing.T) {
	reg := newTestRegistry(t)
	group := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	child := spawn(t, reg, ecs.FlagNone, group)
	ecs.AddComponent(reg, child, component.NewTransform2D(3, 4, 0.25))

	NewHierarchySystem(reg).Update(0)

	tr, _ := ecs.GetComponent[component.Transform2D](reg, child)
	assert.Equal(t, mgl32.Vec2{3, 4}, tr.Global)
	assert.InDelta(t, 0.25, tr.GlobalRotation, 1e-6)
}

type captureRenderer struct {
	frames []uint64
	items  []DrawItem
}

func (r *captureRenderer) Draw(frame uint64, items []DrawItem) {
	r.frames = append(r.frames, frame)
	r.items = append(r.items[:0], items...)
}

func TestRenderSyncSortsByLayer(t *testing.T) {
	reg := newTestRegistry(t)
	a := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	b := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	c := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	noTransform := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	hidden := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)

	for _, e := range []ecs.Entity{a, b, c, hidden} {
		ecs.AddComponent(reg, e, component.NewTransform2D(float32(e.Index()), 0, 0))
	}
	ecs.AddComponent(reg, a, component.Sprite{Texture: "a", Layer: 2})
	ecs.AddComponent(reg, b, component.Sprite{Texture: "b", Layer: 1})
	ecs.AddComponent(reg, c, component.Sprite{Texture: "c", Layer: 2})
	ecs.AddComponent(reg, noTransform, component.Sprite{Texture: "no-transform"})
	ecs.AddComponent(reg, hidden, component.Sprite{Texture: "hidden"})
	ecs.AddComponent(reg, hidden, component.Hidden{})

	r := &captureRenderer{}
	s := NewRenderSyncSystem(reg, r)
	assert.Equal(t, coresys.PhaseOutput, s.Phase())
	s.Update(0)
	s.Update(0)

	assert.Equal(t, []uint64{1, 2}, r.frames)
	require.Len(t, r.items, 3)
	var textures []string
	for _, it := range r.items {
		textures = append(textures, it.Texture)
	}
	assert.Equal(t, []string{"b", "a", "c"}, textures)
	assert.Equal(t, float32(c.Index()), r.items[2].Position.X())
}

func TestLogRendererAcceptsEmptyFrame(t *testing.T) {
	r := NewLogRenderer(zaptest.NewLogger(t))
	r.Draw(1, nil)
	r.Draw(2, []DrawItem{{Layer: 0}, {Layer: 1}})
}

func TestCleanupFlushesQueue(t *testing.T) {
	reg := newTestRegistry(t)
	p := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	spawn(t, reg, ecs.FlagNone, p)
	keep := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)

	reg.QueueDestroy(p)
	assert.Equal(t, 3, reg.Count())

	s := NewCleanupSystem(reg, zaptest.NewLogger(t))
	assert.Equal(t, coresys.PhaseCleanup, s.Phase())
	s.Update(0)
	assert.Equal(t, 1, reg.Count())
	assert.True(t, reg.EntityExists(keep))
}

func TestEventDispatchDeliversPreviousFrame(t *testing.T) {
	bus := event.NewBus()
	var got []string
	event.Subscribe(bus, func(ev event.ScriptFailed) { got = append(got, ev.Hook) })

	s := NewEventDispatchSystem(bus)
	assert.Equal(t, coresys.PhaseInput, s.Phase())

	event.Emit(bus, event.ScriptFailed{Hook: "a"})
	s.Update(0)
	assert.Equal(t, []string{"a"}, got)
	s.Update(0)
	assert.Equal(t, []string{"a"}, got)
}

type fakeHooks struct {
	calls []float64
	err   error
}

func (f *fakeHooks) CallHook(name string, args ...float64) error {
	if name == FrameHook {
		f.calls = append(f.calls, args...)
	}
	return f.err
}

func TestScriptSystemCallsFrameHook(t *testing.T) {
	bus := event.NewBus()
	hooks := &fakeHooks{}
	s := NewScriptSystem(hooks, bus)
	assert.Equal(t, coresys.PhasePreUpdate, s.Phase())

	s.Update(250 * time.Millisecond)
	assert.Equal(t, []float64{0.25}, hooks.calls)
	assert.Zero(t, bus.Pending())

	hooks.err = errors.New("boom")
	s.Update(time.Second)
	bus.SwapBuffers()
	var failed []event.ScriptFailed
	event.Subscribe(bus, func(ev event.ScriptFailed) { failed = append(failed, ev) })
	bus.DispatchAll()
	require.Len(t, failed, 1)
	assert.Equal(t, FrameHook, failed[0].Hook)
	assert.Equal(t, "boom", failed[0].Err)
}

type memStore struct {
	saved map[string]*snapshot.Snapshot
	err   error
}

func (m *memStore) Save(_ context.Context, name string, s *snapshot.Snapshot) error {
	if m.err != nil {
		return m.err
	}
	m.saved[name] = s
	return nil
}

func TestPersistenceSavesEveryInterval(t *testing.T) {
	reg := newTestRegistry(t)
	spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	store := &memStore{saved: map[string]*snapshot.Snapshot{}}
	bus := event.NewBus()
	var saved []event.SnapshotSaved
	event.Subscribe(bus, func(ev event.SnapshotSaved) { saved = append(saved, ev) })

	s := NewPersistenceSystem(reg, store, bus, "auto", 3, zaptest.NewLogger(t))
	assert.Equal(t, coresys.PhasePersist, s.Phase())
	s.Update(0)
	s.Update(0)
	assert.Empty(t, store.saved)
	s.Update(0)
	require.Contains(t, store.saved, "auto")
	assert.Len(t, store.saved["auto"].Entities, 1)
	require.NoError(t, store.saved["auto"].Verify())

	bus.SwapBuffers()
	bus.DispatchAll()
	require.Len(t, saved, 1)
	assert.Equal(t, store.saved["auto"].Checksum, saved[0].Checksum)
}

func TestPersistenceReportsStoreErrors(t *testing.T) {
	reg := newTestRegistry(t)
	store := &memStore{err: errors.New("disk full")}
	s := NewPersistenceSystem(reg, store, nil, "auto", 1, zaptest.NewLogger(t))
	assert.EqualError(t, s.SaveNow(context.Background()), "disk full")
	s.Update(0)
}

func TestDefaultSystemsRunInPhaseOrder(t *testing.T) {
	reg := newTestRegistry(t)
	e := spawn(t, reg, ecs.FlagNone, ecs.InvalidEntity)
	child := spawn(t, reg, ecs.FlagNone, e)
	ecs.AddComponent(reg, e, component.NewTransform2D(0, 0, 0))
	ecs.AddComponent(reg, e, component.Velocity{Linear: mgl32.Vec2{10, 0}})
	ecs.AddComponent(reg, child, component.NewTransform2D(0, 1, 0))
	ecs.AddComponent(reg, child, component.Sprite{Texture: "x"})

	r := &captureRenderer{}
	runner := coresys.NewRunner(4, zaptest.NewLogger(t))
	runner.Register(NewCleanupSystem(reg, zaptest.NewLogger(t)))
	runner.Register(NewRenderSyncSystem(reg, r))
	runner.Register(NewHierarchySystem(reg))
	runner.Register(NewMotionSystem(reg))

	require.NoError(t, runner.Tick(100*time.Millisecond))
	require.Len(t, r.items, 1)
	assert.InDelta(t, 1, r.items[0].Position.X(), 1e-5)
	assert.InDelta(t, 1, r.items[0].Position.Y(), 1e-5)
}
