package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/blengine/engine/internal/core/ecs"
	"github.com/blengine/engine/internal/core/event"
	coresys "github.com/blengine/engine/internal/core/system"
	"github.com/blengine/engine/internal/snapshot"
)

// SnapshotStore persists a named snapshot.
type SnapshotStore interface {
	Save(ctx context.Context, name string, s *snapshot.Snapshot) error
}

// PersistenceSystem periodically captures the registry and saves it under a
// fixed name. Phase 5 (Persist).
type PersistenceSystem struct {
	reg       *ecs.Registry
	store     SnapshotStore
	bus       *event.Bus
	log       *zap.Logger
	name      string
	tickCount int
	interval  int // save every N ticks
}

func NewPersistenceSystem(reg *ecs.Registry, store SnapshotStore, bus *event.Bus, name string, intervalTicks int, log *zap.Logger) *PersistenceSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &PersistenceSystem{
		reg:      reg,
		store:    store,
		bus:      bus,
		log:      log,
		name:     name,
		interval: intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.SaveNow(ctx); err != nil {
		s.log.Error("auto-save snapshot", zap.String("name", s.name), zap.Error(err))
	}
}

// SaveNow captures and saves immediately. Called for graceful shutdown.
func (s *PersistenceSystem) SaveNow(ctx context.Context) error {
	snap, err := snapshot.Capture(s.reg)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, s.name, snap); err != nil {
		return err
	}
	s.log.Info("snapshot saved",
		zap.String("name", s.name),
		zap.Int("entities", len(snap.Entities)),
		zap.String("checksum", snap.Checksum))
	if s.bus != nil {
		event.Emit(s.bus, event.SnapshotSaved{Name: s.name, Entities: len(snap.Entities), Checksum: snap.Checksum})
	}
	return nil
}
