package system

import (
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/blengine/engine/internal/component"
	"github.com/blengine/engine/internal/core/ecs"
	coresys "github.com/blengine/engine/internal/core/system"
)

// HierarchySystem derives Global and GlobalRotation of every Transform2D from
// its nearest transformed ancestor. Dummy entities in between are skipped
// by the transform's links. Phase 3 (PostUpdate).
type HierarchySystem struct {
	reg *ecs.Registry
}

type hierarchyFrame struct {
	entity ecs.Entity
	pos    mgl32.Vec2
	rot    float32
}

func NewHierarchySystem(reg *ecs.Registry) *HierarchySystem {
	return &HierarchySystem{reg: reg}
}

func (s *HierarchySystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *HierarchySystem) Update(_ time.Duration) {
	tx := ecs.Begin(s.reg, ecs.EntityUnlocked, ecs.Writes[component.Transform2D]())
	defer tx.Unlock()
	Propagate(tx)
}

// Propagate recomputes global placements. tx must hold write access to
// Transform2D.
func Propagate(tx *ecs.Transaction) {
	pool := ecs.PoolOf[component.Transform2D](tx.Registry())
	var stack []hierarchyFrame
	pool.ForEachWithWrites(tx, func(e ecs.Entity, t *component.Transform2D) {
		if parent := t.ParentEntity(); parent.IsValid() && pool.Has(tx, parent) {
			return
		}
		t.Global = t.Position
		t.GlobalRotation = t.Rotation
		stack = pushChildren(stack, t)
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			c := pool.Get(tx, f.entity)
			if c == nil {
				continue
			}
			c.Global = f.pos.Add(mgl32.Rotate2D(f.rot).Mul2x1(c.Position))
			c.GlobalRotation = f.rot + c.Rotation
			stack = pushChildren(stack, c)
		}
	})
}

func pushChildren(stack []hierarchyFrame, t *component.Transform2D) []hierarchyFrame {
	for _, child := range t.ChildEntities() {
		stack = append(stack, hierarchyFrame{entity: child, pos: t.Global, rot: t.GlobalRotation})
	}
	return stack
}
