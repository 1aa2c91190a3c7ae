package event

import "github.com/blengine/engine/internal/core/ecs"

// Engine-level events. Registry lifecycle events (ecs.EntityCreated and
// friends) are published on the same bus.

type ScriptFailed struct {
	Hook string
	Err  string
}

type PrefabSpawned struct {
	Prefab string
	Root   ecs.Entity
	Count  int
}

type SnapshotSaved struct {
	Name     string
	Entities int
	Checksum string
}

type SnapshotRestored struct {
	Name     string
	Entities int
}
