package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/blengine/engine/internal/config"
	"github.com/blengine/engine/internal/core/ecs"
	"github.com/blengine/engine/internal/core/event"
	coresys "github.com/blengine/engine/internal/core/system"
	"github.com/blengine/engine/internal/prefab"
	"github.com/blengine/engine/internal/scripting"
	"github.com/blengine/engine/internal/snapshot"
	"github.com/blengine/engine/internal/system"
)

// ErrClosed is returned by operations on a closed Engine.
var ErrClosed = errors.New("engine closed")

// Engine owns everything one running world needs. Engines share no state,
// so several may live in one process.
type Engine struct {
	cfg    *config.Config
	log    *zap.Logger
	seed   uint64
	rng    *rand.Rand
	reg    *ecs.Registry
	bus    *event.Bus
	runner *coresys.Runner

	prefabs *prefab.Library
	scripts *scripting.Engine
	persist *system.PersistenceSystem

	mu     sync.Mutex // guards frames and closed
	frames uint64
	closed bool
}

// New builds an Engine from cfg. The registry's lifecycle events are
// published on the engine bus.
func New(cfg *config.Config, log *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}

	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	// the registry draws under its own lock, so it gets a private source
	regRand := rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))

	bus := event.NewBus()
	reg := ecs.NewRegistry(ecs.RegistryOptions{
		InitialCapacity: cfg.ECS.InitialCapacity,
		MaxEntities:     cfg.ECS.MaxEntities,
		IDMode:          cfg.IDMode(),
		Rand:            regRand,
		Logger:          log.Named("ecs"),
		OnEvent:         bus.Publish,
	})

	log.Info("engine created",
		zap.String("name", cfg.Engine.Name),
		zap.Uint64("seed", seed),
		zap.Stringer("id_mode", cfg.IDMode()),
		zap.Duration("frame_rate", cfg.Engine.FrameRate))

	return &Engine{
		cfg:    cfg,
		log:    log,
		seed:   seed,
		rng:    rng,
		reg:    reg,
		bus:    bus,
		runner: coresys.NewRunner(cfg.Engine.Workers, log.Named("runner")),
	}, nil
}

func (e *Engine) Config() *config.Config     { return e.cfg }
func (e *Engine) Registry() *ecs.Registry    { return e.reg }
func (e *Engine) Bus() *event.Bus            { return e.bus }
func (e *Engine) Runner() *coresys.Runner    { return e.runner }
func (e *Engine) Prefabs() *prefab.Library   { return e.prefabs }
func (e *Engine) Scripts() *scripting.Engine { return e.scripts }
func (e *Engine) Seed() uint64               { return e.seed }

// Rand is the engine's seeded random source. It is not safe for concurrent
// use; call it from the frame loop only.
func (e *Engine) Rand() *rand.Rand { return e.rng }

// Frames returns how many frames have been stepped.
func (e *Engine) Frames() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frames
}

// AddSystem registers a system with the runner.
func (e *Engine) AddSystem(s coresys.System) { e.runner.Register(s) }

// RegisterDefaultSystems installs the built-in systems. renderer may be nil,
// in which case draw lists are logged at debug level.
func (e *Engine) RegisterDefaultSystems(renderer system.Renderer) {
	if renderer == nil {
		renderer = system.NewLogRenderer(e.log.Named("render"))
	}
	e.runner.Register(system.NewEventDispatchSystem(e.bus))
	if e.scripts != nil {
		e.runner.Register(system.NewScriptSystem(e.scripts, e.bus))
	}
	e.runner.Register(system.NewMotionSystem(e.reg))
	e.runner.Register(system.NewHierarchySystem(e.reg))
	e.runner.Register(system.NewRenderSyncSystem(e.reg, renderer))
	e.runner.Register(system.NewCleanupSystem(e.reg, e.log.Named("cleanup")))
}

// EnablePersistence saves a snapshot to store every database.snapshot_every
// frames. With snapshot_every 0 only SaveSnapshot writes.
func (e *Engine) EnablePersistence(store system.SnapshotStore) {
	db := e.cfg.Database
	e.persist = system.NewPersistenceSystem(e.reg, store, e.bus, db.SnapshotName, db.SnapshotEvery, e.log.Named("persist"))
	if db.SnapshotEvery > 0 {
		e.runner.Register(e.persist)
	}
}

// SaveSnapshot writes a snapshot immediately through the store given to
// EnablePersistence.
func (e *Engine) SaveSnapshot(ctx context.Context) error {
	if e.persist == nil {
		return errors.New("persistence not enabled")
	}
	return e.persist.SaveNow(ctx)
}

// RestoreSnapshot replaces every entity with the contents of s.
func (e *Engine) RestoreSnapshot(name string, s *snapshot.Snapshot) error {
	e.reg.DestroyAllEntities()
	ids, err := snapshot.Restore(e.reg, s)
	if err != nil {
		return fmt.Errorf("restore snapshot %q: %w", name, err)
	}
	event.Emit(e.bus, event.SnapshotRestored{Name: name, Entities: len(ids)})
	e.log.Info("snapshot restored", zap.String("name", name), zap.Int("entities", len(ids)))
	return nil
}

// LoadPrefabs reads the prefab library and makes it available to scripts.
func (e *Engine) LoadPrefabs(path string) error {
	lib, err := prefab.LoadLibrary(path)
	if err != nil {
		return err
	}
	e.prefabs = lib
	if e.scripts != nil {
		e.scripts.SetPrefabs(lib)
	}
	e.log.Info("prefabs loaded", zap.String("path", path), zap.Int("count", lib.Count()))
	return nil
}

// LoadScene spawns every entry of a scene file and returns how many
// entities were created.
func (e *Engine) LoadScene(path string) (int, error) {
	if e.prefabs == nil {
		return 0, errors.New("load scene: no prefab library loaded")
	}
	entries, err := prefab.LoadScene(path)
	if err != nil {
		return 0, err
	}
	roots, n, err := e.prefabs.SpawnScene(e.reg, entries)
	if err != nil {
		return 0, err
	}
	e.log.Info("scene loaded", zap.String("path", path), zap.Int("roots", len(roots)), zap.Int("entities", n))
	return n, nil
}

// SpawnPrefab creates the named prefab at the given offset.
func (e *Engine) SpawnPrefab(name string, at mgl32.Vec2) (ecs.Entity, error) {
	if e.prefabs == nil {
		return ecs.InvalidEntity, errors.New("spawn: no prefab library loaded")
	}
	root, created, err := e.prefabs.Spawn(e.reg, name, at)
	if err != nil {
		return ecs.InvalidEntity, err
	}
	event.Emit(e.bus, event.PrefabSpawned{Prefab: name, Root: root, Count: len(created)})
	return root, nil
}

// LoadScripts starts the Lua engine on dir. Call before
// RegisterDefaultSystems so the frame hook is scheduled.
func (e *Engine) LoadScripts(dir string) error {
	if e.scripts != nil {
		return errors.New("scripts already loaded")
	}
	s, err := scripting.NewEngine(dir, e.reg, e.log.Named("lua"))
	if err != nil {
		return err
	}
	if e.prefabs != nil {
		s.SetPrefabs(e.prefabs)
	}
	e.scripts = s
	return nil
}

// Step runs one frame.
func (e *Engine) Step(dt time.Duration) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.frames++
	e.mu.Unlock()
	return e.runner.Tick(dt)
}

// Run steps a frame every engine.frame_rate until ctx is done. Frame errors
// are logged and do not stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	rate := e.cfg.Engine.FrameRate
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := e.Step(rate); err != nil {
				if errors.Is(err, ErrClosed) {
					return err
				}
				e.log.Error("frame failed", zap.Uint64("frame", e.Frames()), zap.Error(err))
			}
		case <-ctx.Done():
			e.log.Info("frame loop stopped", zap.Uint64("frames", e.Frames()))
			return nil
		}
	}
}

// Close stops scripting and destroys every entity. It is safe to call twice.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	if e.scripts != nil {
		e.scripts.Close()
	}
	e.reg.DestroyAllEntities()
}
