package ecs

import (
	"math"
	"strconv"
)

// Entity encodes a 32-bit slot index in the lower bits, a 3-bit world index at
// bit 32, 8 bits of creation flags at bit 40 and a 16-bit version in the upper
// bits. The version changes whenever a slot is recycled to invalidate stale refs.
type Entity uint64

const (
	indexMask   uint64 = 0x00000000FFFFFFFF
	worldMask   uint64 = 0x0000000700000000
	flagMask    uint64 = 0x0000FF0000000000
	versionMask uint64 = 0xFFFF000000000000

	worldShift   = 32
	flagShift    = 40
	versionShift = 48

	// MaxWorldIndex is the largest world index an entity may be tagged with.
	MaxWorldIndex = 7
)

// InvalidEntity never refers to a live entity.
const InvalidEntity Entity = math.MaxUint64

// Flags are fixed at creation time and travel inside the Entity value.
type Flags uint8

const FlagNone Flags = 0

const (
	// FlagDummy marks placeholder entities used only for structural nesting.
	FlagDummy Flags = 1 << iota
	// FlagWorldObject marks entities owned by a loaded world/scene.
	FlagWorldObject
)

func NewEntity(index uint32, version uint16, flags Flags, world uint8) Entity {
	return Entity(uint64(version)<<versionShift |
		uint64(flags)<<flagShift |
		(uint64(world)<<worldShift)&worldMask |
		uint64(index))
}

func (e Entity) Index() uint32   { return uint32(uint64(e) & indexMask) }
func (e Entity) Version() uint16 { return uint16((uint64(e) & versionMask) >> versionShift) }
func (e Entity) Flags() Flags    { return Flags((uint64(e) & flagMask) >> flagShift) }
func (e Entity) World() uint8    { return uint8((uint64(e) & worldMask) >> worldShift) }

// HasFlag reports whether any of the given flags were set at creation.
func (e Entity) HasFlag(f Flags) bool { return e.Flags()&f != 0 }

// IsValid reports whether e is not InvalidEntity. It says nothing about liveness;
// use Registry.EntityExists for that.
func (e Entity) IsValid() bool { return e != InvalidEntity }

func (e Entity) String() string {
	if e == InvalidEntity {
		return "<invalid>"
	}
	return strconv.FormatUint(uint64(e.Index()), 10) + "-v" + strconv.FormatUint(uint64(e.Version()), 10)
}

// ParseFlag maps a configuration name to its flag.
func ParseFlag(name string) (Flags, bool) {
	switch name {
	case "none", "":
		return FlagNone, true
	case "dummy":
		return FlagDummy, true
	case "world_object":
		return FlagWorldObject, true
	}
	return FlagNone, false
}

// ParentDestructionBehavior decides what happens to a child when its parent is destroyed.
type ParentDestructionBehavior uint8

const (
	DestroyedWithParent ParentDestructionBehavior = iota
	OrphanedByParent
)

func (b ParentDestructionBehavior) String() string {
	switch b {
	case DestroyedWithParent:
		return "destroyed_with_parent"
	case OrphanedByParent:
		return "orphaned_by_parent"
	}
	return "unknown(" + strconv.Itoa(int(b)) + ")"
}

// ParseParentDestructionBehavior accepts the names produced by String.
func ParseParentDestructionBehavior(s string) (ParentDestructionBehavior, bool) {
	switch s {
	case "", "destroyed_with_parent":
		return DestroyedWithParent, true
	case "orphaned_by_parent":
		return OrphanedByParent, true
	}
	return DestroyedWithParent, false
}

// nextVersion skips 0 so a zero-valued Entity never matches a live slot.
func nextVersion(v uint16) uint16 {
	v++
	if v == 0 {
		v = 1
	}
	return v
}
