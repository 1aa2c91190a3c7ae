package component

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/blengine/engine/internal/core/ecs"
)

// Transform2D is an entity's local placement relative to its parent. Global
// and GlobalRotation are derived each frame by the hierarchy system.
// The embedded links are maintained by the registry and skip dummy entities.
type Transform2D struct {
	ecs.ParentLink
	ecs.ChildLinks
	ecs.IgnoreDummies

	Position mgl32.Vec2
	Rotation float32 // radians

	Global         mgl32.Vec2
	GlobalRotation float32
}

// NewTransform2D returns a transform whose global placement equals its local one.
func NewTransform2D(x, y, rotation float32) Transform2D {
	pos := mgl32.Vec2{x, y}
	return Transform2D{
		Position:       pos,
		Rotation:       rotation,
		Global:         pos,
		GlobalRotation: rotation,
	}
}

// Velocity is linear units/second and angular radians/second.
type Velocity struct {
	Linear  mgl32.Vec2
	Angular float32
}

// Sprite is the render-side description of an entity.
type Sprite struct {
	Texture string
	Layer   int
	Tint    mgl32.Vec4
}

// Hidden keeps an entity's sprite out of the draw list.
type Hidden struct{}

// Name is a human-readable label, used by prefabs and scripts.
type Name struct {
	Value string
}
