package system

import (
	"cmp"
	"slices"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/blengine/engine/internal/component"
	"github.com/blengine/engine/internal/core/ecs"
	coresys "github.com/blengine/engine/internal/core/system"
)

// DrawItem is one sprite placed in world space.
type DrawItem struct {
	Entity   ecs.Entity
	Texture  string
	Layer    int
	Position mgl32.Vec2
	Rotation float32
	Tint     mgl32.Vec4
}

// Renderer receives the frame's draw list, sorted back to front. The slice
// is reused next frame.
type Renderer interface {
	Draw(frame uint64, items []DrawItem)
}

// RenderSyncSystem collects every entity with a Sprite and a Transform2D
// into a draw list. Phase 4 (Output).
type RenderSyncSystem struct {
	reg      *ecs.Registry
	renderer Renderer
	frame    uint64
	items    []DrawItem
}

func NewRenderSyncSystem(reg *ecs.Registry, renderer Renderer) *RenderSyncSystem {
	return &RenderSyncSystem{reg: reg, renderer: renderer}
}

func (s *RenderSyncSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *RenderSyncSystem) Update(_ time.Duration) {
	s.frame++
	s.items = s.items[:0]

	tx := ecs.Begin(s.reg, ecs.EntityUnlocked,
		ecs.Reads[component.Transform2D](),
		ecs.Reads[component.Sprite](),
		ecs.Exclude[component.Hidden]().Access())
	ecs.Each2(tx, func(e ecs.Entity, sp *component.Sprite, t *component.Transform2D) {
		s.items = append(s.items, DrawItem{
			Entity:   e,
			Texture:  sp.Texture,
			Layer:    sp.Layer,
			Position: t.Global,
			Rotation: t.GlobalRotation,
			Tint:     sp.Tint,
		})
	}, ecs.Exclude[component.Hidden]())
	tx.Unlock()

	slices.SortFunc(s.items, func(a, b DrawItem) int {
		if c := cmp.Compare(a.Layer, b.Layer); c != 0 {
			return c
		}
		return cmp.Compare(a.Entity.Index(), b.Entity.Index())
	})
	s.renderer.Draw(s.frame, s.items)
}

// LogRenderer is the headless renderer: it logs a summary of each frame's
// draw list at debug level.
type LogRenderer struct {
	log *zap.Logger
}

func NewLogRenderer(log *zap.Logger) *LogRenderer {
	return &LogRenderer{log: log}
}

func (r *LogRenderer) Draw(frame uint64, items []DrawItem) {
	if ce := r.log.Check(zap.DebugLevel, "render frame"); ce != nil {
		layers := 0
		for i := range items {
			if i == 0 || items[i].Layer != items[i-1].Layer {
				layers++
			}
		}
		ce.Write(zap.Uint64("frame", frame), zap.Int("sprites", len(items)), zap.Int("layers", layers))
	}
}
