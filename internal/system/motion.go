package system

import (
	"time"

	"github.com/blengine/engine/internal/component"
	"github.com/blengine/engine/internal/core/ecs"
	coresys "github.com/blengine/engine/internal/core/system"
)

// MotionSystem integrates Velocity into the local Transform2D.
// Phase 2 (Update).
type MotionSystem struct {
	reg *ecs.Registry
}

func NewMotionSystem(reg *ecs.Registry) *MotionSystem {
	return &MotionSystem{reg: reg}
}

func (s *MotionSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *MotionSystem) Update(dt time.Duration) {
	secs := float32(dt.Seconds())
	if secs == 0 {
		return
	}
	tx := ecs.Begin(s.reg, ecs.EntityUnlocked,
		ecs.Reads[component.Velocity](),
		ecs.Writes[component.Transform2D]())
	defer tx.Unlock()

	ecs.Each2(tx, func(_ ecs.Entity, v *component.Velocity, t *component.Transform2D) {
		t.Position = t.Position.Add(v.Linear.Mul(secs))
		t.Rotation += v.Angular * secs
	})
}
