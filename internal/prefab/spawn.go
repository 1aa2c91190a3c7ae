package prefab

import (
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"gopkg.in/yaml.v3"

	"github.com/blengine/engine/internal/component"
	"github.com/blengine/engine/internal/core/ecs"
)

// Spawn creates the named prefab and its children, offsetting the root by
// at. It returns the root and every entity created. Either the whole tree is
// created or nothing is.
func (l *Library) Spawn(reg *ecs.Registry, name string, at mgl32.Vec2) (ecs.Entity, []ecs.Entity, error) {
	tx := ecs.WriteEntities(reg)
	defer tx.Unlock()
	return l.SpawnTx(tx, name, at)
}

func (l *Library) SpawnTx(tx *ecs.Transaction, name string, at mgl32.Vec2) (ecs.Entity, []ecs.Entity, error) {
	t := l.Get(name)
	if t == nil {
		return ecs.InvalidEntity, nil, fmt.Errorf("unknown prefab %q", name)
	}
	var b builder
	defer b.rollback(tx)
	root, err := b.spawn(tx, t, ecs.InvalidEntity, at)
	if err != nil {
		return ecs.InvalidEntity, nil, err
	}
	return root, b.commit(), nil
}

// builder tracks the entities of one spawn so a failure can destroy them all.
type builder struct {
	cleaners []*ecs.Cleaner
}

func (b *builder) spawn(tx *ecs.Transaction, t *Template, parent ecs.Entity, offset mgl32.Vec2) (ecs.Entity, error) {
	reg := tx.Registry()
	e, err := reg.CreateEntityTx(tx, t.World, t.flags)
	if err != nil {
		return ecs.InvalidEntity, fmt.Errorf("spawn %q: %w", t.Name, err)
	}
	b.cleaners = append(b.cleaners, ecs.NewCleaner(reg, e))

	if t.Name != "" {
		if _, err := ecs.TryAddComponentTx(tx, e, component.Name{Value: t.Name}); err != nil {
			return ecs.InvalidEntity, fmt.Errorf("spawn %q: %w", t.Name, err)
		}
	}
	if tr := t.Transform; tr != nil || offset != (mgl32.Vec2{}) {
		var local Transform
		if tr != nil {
			local = *tr
		}
		c := component.NewTransform2D(local.X+offset.X(), local.Y+offset.Y(), local.Rotation)
		if _, err := ecs.TryAddComponentTx(tx, e, c); err != nil {
			return ecs.InvalidEntity, fmt.Errorf("spawn %q: %w", t.Name, err)
		}
	}
	if v := t.Velocity; v != nil {
		c := component.Velocity{Linear: mgl32.Vec2{v.X, v.Y}, Angular: v.Angular}
		if _, err := ecs.TryAddComponentTx(tx, e, c); err != nil {
			return ecs.InvalidEntity, fmt.Errorf("spawn %q: %w", t.Name, err)
		}
	}
	if s := t.Sprite; s != nil {
		c := component.Sprite{Texture: s.Texture, Layer: s.Layer, Tint: mgl32.Vec4{1, 1, 1, 1}}
		if len(s.Tint) == 4 {
			c.Tint = mgl32.Vec4{s.Tint[0], s.Tint[1], s.Tint[2], s.Tint[3]}
		}
		if _, err := ecs.TryAddComponentTx(tx, e, c); err != nil {
			return ecs.InvalidEntity, fmt.Errorf("spawn %q: %w", t.Name, err)
		}
	}

	if t.Hidden {
		if _, err := ecs.TryAddComponentTx(tx, e, component.Hidden{}); err != nil {
			return ecs.InvalidEntity, fmt.Errorf("spawn %q: %w", t.Name, err)
		}
	}

	reg.SetParentDestructionBehaviorTx(tx, e, t.behavior)
	if parent != ecs.InvalidEntity && !reg.SetParentTx(tx, e, parent) {
		return ecs.InvalidEntity, fmt.Errorf("spawn %q: cannot attach to parent %s", t.Name, parent)
	}
	for i := range t.Children {
		if _, err := b.spawn(tx, &t.Children[i], e, mgl32.Vec2{}); err != nil {
			return ecs.InvalidEntity, err
		}
	}
	return e, nil
}

// commit disarms every cleaner and returns the created entities.
func (b *builder) commit() []ecs.Entity {
	out := make([]ecs.Entity, len(b.cleaners))
	for i, c := range b.cleaners {
		c.Disarm()
		out[i] = c.Entity()
	}
	return out
}

func (b *builder) rollback(tx *ecs.Transaction) {
	for _, c := range b.cleaners {
		c.CleanTx(tx)
	}
}

// SceneEntry places one prefab instance. Uses lists instance names of
// earlier entries this instance depends on.
type SceneEntry struct {
	Prefab            string   `yaml:"prefab"`
	Name              string   `yaml:"name"`
	X                 float32  `yaml:"x"`
	Y                 float32  `yaml:"y"`
	Uses              []string `yaml:"uses"`
	ReleaseWhenUnused bool     `yaml:"release_when_unused"`
}

// LoadScene loads a scene YAML file: a list of entries.
func LoadScene(path string) ([]SceneEntry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return ParseScene(raw)
}

func ParseScene(raw []byte) ([]SceneEntry, error) {
	var entries []SceneEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	return entries, nil
}

// SpawnScene spawns every entry and wires its dependencies. It returns the
// named instances and the total number of entities created. A failing entry
// rolls back the whole scene.
func (l *Library) SpawnScene(reg *ecs.Registry, entries []SceneEntry) (map[string]ecs.Entity, int, error) {
	tx := ecs.WriteEntities(reg)
	defer tx.Unlock()

	var b builder
	defer b.rollback(tx)
	named := make(map[string]ecs.Entity)
	var release []ecs.Entity

	for i, entry := range entries {
		t := l.Get(entry.Prefab)
		if t == nil {
			return nil, 0, fmt.Errorf("scene entry %d: unknown prefab %q", i, entry.Prefab)
		}
		root, err := b.spawn(tx, t, ecs.InvalidEntity, mgl32.Vec2{entry.X, entry.Y})
		if err != nil {
			return nil, 0, fmt.Errorf("scene entry %d: %w", i, err)
		}
		for _, used := range entry.Uses {
			res, ok := named[used]
			if !ok {
				return nil, 0, fmt.Errorf("scene entry %d: unknown instance %q", i, used)
			}
			reg.AddDependencyTx(tx, res, root)
		}
		if entry.Name != "" {
			if _, dup := named[entry.Name]; dup {
				return nil, 0, fmt.Errorf("scene entry %d: duplicate instance %q", i, entry.Name)
			}
			named[entry.Name] = root
		}
		if entry.ReleaseWhenUnused {
			release = append(release, root)
		}
	}

	created := b.commit()
	for _, e := range release {
		reg.DestroyWhenUnusedTx(tx, e)
	}
	return named, len(created), nil
}
