package snapshot

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/blengine/engine/internal/component"
	"github.com/blengine/engine/internal/core/ecs"
)

// Restore verifies s and recreates its entities in reg under one entity write
// transaction. It returns the mapping from snapshot ids to new entities. On
// any failure every entity it created is destroyed again.
func Restore(reg *ecs.Registry, s *Snapshot) (map[uint64]ecs.Entity, error) {
	if err := s.Verify(); err != nil {
		return nil, err
	}

	tx := ecs.WriteEntities(reg)
	defer tx.Unlock()

	ids := make(map[uint64]ecs.Entity, len(s.Entities))
	cleaners := make([]*ecs.Cleaner, 0, len(s.Entities))
	defer func() {
		for _, c := range cleaners {
			c.CleanTx(tx)
		}
	}()

	for _, st := range s.Entities {
		if _, dup := ids[st.ID]; dup {
			return nil, fmt.Errorf("restore: duplicate entity id %d", st.ID)
		}
		e, err := reg.CreateEntityTx(tx, st.World, ecs.Flags(st.Flags))
		if err != nil {
			return nil, fmt.Errorf("restore entity %d: %w", st.ID, err)
		}
		cleaners = append(cleaners, ecs.NewCleaner(reg, e))
		ids[st.ID] = e

		if err := restoreComponents(tx, e, st); err != nil {
			return nil, fmt.Errorf("restore entity %d: %w", st.ID, err)
		}
		if st.Behavior != "" {
			b, ok := ecs.ParseParentDestructionBehavior(st.Behavior)
			if !ok {
				return nil, fmt.Errorf("restore entity %d: unknown behavior %q", st.ID, st.Behavior)
			}
			reg.SetParentDestructionBehaviorTx(tx, e, b)
		}
	}

	for _, st := range s.Entities {
		if st.Parent == 0 {
			continue
		}
		parent, ok := ids[st.Parent]
		if !ok {
			return nil, fmt.Errorf("restore entity %d: unknown parent %d", st.ID, st.Parent)
		}
		if !reg.SetParentTx(tx, ids[st.ID], parent) {
			return nil, fmt.Errorf("restore entity %d: cannot set parent %d", st.ID, st.Parent)
		}
	}

	for _, d := range s.Dependencies {
		parent, okP := ids[d.Parent]
		child, okC := ids[d.Child]
		if !okP || !okC || !reg.AddDependencyTx(tx, parent, child) {
			return nil, fmt.Errorf("restore dependency %d -> %d: unknown endpoint", d.Parent, d.Child)
		}
	}

	for _, c := range cleaners {
		c.Disarm()
	}
	return ids, nil
}

func restoreComponents(tx *ecs.Transaction, e ecs.Entity, st EntityState) error {
	if st.Name != "" {
		if _, err := ecs.TryAddComponentTx(tx, e, component.Name{Value: st.Name}); err != nil {
			return err
		}
	}
	if t := st.Transform; t != nil {
		if _, err := ecs.TryAddComponentTx(tx, e, component.NewTransform2D(t.X, t.Y, t.Rotation)); err != nil {
			return err
		}
	}
	if v := st.Velocity; v != nil {
		vel := component.Velocity{Linear: mgl32.Vec2{v.X, v.Y}, Angular: v.Angular}
		if _, err := ecs.TryAddComponentTx(tx, e, vel); err != nil {
			return err
		}
	}
	if s := st.Sprite; s != nil {
		if _, err := ecs.TryAddComponentTx(tx, e, component.Sprite{Texture: s.Texture, Layer: s.Layer, Tint: s.Tint}); err != nil {
			return err
		}
	}
	if st.Hidden {
		if _, err := ecs.TryAddComponentTx(tx, e, component.Hidden{}); err != nil {
			return err
		}
	}
	return nil
}
