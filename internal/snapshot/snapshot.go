// Package snapshot captures registry state into a portable, checksummed form
// and restores it into a registry.
package snapshot

import (
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"

	"github.com/blengine/engine/internal/component"
	"github.com/blengine/engine/internal/core/ecs"
)

// FormatVersion is bumped whenever the encoded layout changes.
const FormatVersion = 1

var (
	ErrChecksum = errors.New("snapshot: checksum mismatch")
	ErrVersion  = errors.New("snapshot: unsupported format version")
)

type Snapshot struct {
	Version      int           `yaml:"version"`
	Entities     []EntityState `yaml:"entities"`
	Dependencies []Edge        `yaml:"dependencies,omitempty"`
	Checksum     string        `yaml:"checksum,omitempty"`
}

// EntityState is one entity. ID and Parent are entity values from the
// capturing registry and only meaningful inside this snapshot.
type EntityState struct {
	ID        uint64          `yaml:"id"`
	World     uint8           `yaml:"world,omitempty"`
	Flags     uint8           `yaml:"flags,omitempty"`
	Behavior  string          `yaml:"behavior,omitempty"`
	Parent    uint64          `yaml:"parent,omitempty"`
	Name      string          `yaml:"name,omitempty"`
	Transform *TransformState `yaml:"transform,omitempty"`
	Velocity  *VelocityState  `yaml:"velocity,omitempty"`
	Sprite    *SpriteState    `yaml:"sprite,omitempty"`
	Hidden    bool            `yaml:"hidden,omitempty"`
}

type TransformState struct {
	X        float32 `yaml:"x"`
	Y        float32 `yaml:"y"`
	Rotation float32 `yaml:"rotation,omitempty"`
}

type VelocityState struct {
	X       float32 `yaml:"x"`
	Y       float32 `yaml:"y"`
	Angular float32 `yaml:"angular,omitempty"`
}

type SpriteState struct {
	Texture string     `yaml:"texture"`
	Layer   int        `yaml:"layer,omitempty"`
	Tint    [4]float32 `yaml:"tint,flow"`
}

// Edge is a dependency: Child uses Parent.
type Edge struct {
	Parent uint64 `yaml:"parent"`
	Child  uint64 `yaml:"child"`
}

// Capture records every live entity with its hierarchy, dependencies and
// engine components under one read transaction.
func Capture(reg *ecs.Registry) (*Snapshot, error) {
	tx := ecs.Begin(reg, ecs.EntityRead,
		ecs.Reads[component.Transform2D](),
		ecs.Reads[component.Velocity](),
		ecs.Reads[component.Sprite](),
		ecs.Reads[component.Name](),
		ecs.Reads[component.Hidden](),
	)
	defer tx.Unlock()

	snap := &Snapshot{Version: FormatVersion}
	for e := range reg.EntitiesTx(tx) {
		st := EntityState{
			ID:    uint64(e),
			World: e.World(),
			Flags: uint8(e.Flags()),
		}
		if b, _ := reg.ParentDestructionBehaviorTx(tx, e); b != ecs.DestroyedWithParent {
			st.Behavior = b.String()
		}
		if p := reg.ParentTx(tx, e); p != ecs.InvalidEntity {
			st.Parent = uint64(p)
		}
		if n := ecs.GetComponentTx[component.Name](tx, e); n != nil {
			st.Name = n.Value
		}
		if t := ecs.GetComponentTx[component.Transform2D](tx, e); t != nil {
			st.Transform = &TransformState{X: t.Position.X(), Y: t.Position.Y(), Rotation: t.Rotation}
		}
		if v := ecs.GetComponentTx[component.Velocity](tx, e); v != nil {
			st.Velocity = &VelocityState{X: v.Linear.X(), Y: v.Linear.Y(), Angular: v.Angular}
		}
		if s := ecs.GetComponentTx[component.Sprite](tx, e); s != nil {
			st.Sprite = &SpriteState{Texture: s.Texture, Layer: s.Layer, Tint: s.Tint}
		}
		st.Hidden = ecs.HasComponentTx[component.Hidden](tx, e)
		snap.Entities = append(snap.Entities, st)
	}
	for _, edge := range reg.DependencyEdgesTx(tx) {
		snap.Dependencies = append(snap.Dependencies, Edge{Parent: uint64(edge[0]), Child: uint64(edge[1])})
	}

	sum, err := snap.computeChecksum()
	if err != nil {
		return nil, err
	}
	snap.Checksum = sum
	return snap, nil
}

// Verify checks the format version and checksum.
func (s *Snapshot) Verify() error {
	if s.Version != FormatVersion {
		return fmt.Errorf("%w: %d", ErrVersion, s.Version)
	}
	sum, err := s.computeChecksum()
	if err != nil {
		return err
	}
	if sum != s.Checksum {
		return ErrChecksum
	}
	return nil
}

// computeChecksum is the blake2b-256 of the YAML encoding with the checksum
// field cleared.
func (s *Snapshot) computeChecksum() (string, error) {
	body := *s
	body.Checksum = ""
	data, err := yaml.Marshal(&body)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Encode renders the snapshot as YAML.
func Encode(s *Snapshot) ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Decode parses YAML and verifies it.
func Decode(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if err := s.Verify(); err != nil {
		return nil, err
	}
	return &s, nil
}
