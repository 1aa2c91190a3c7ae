package system

import (
	"time"

	"go.uber.org/zap"

	"github.com/blengine/engine/internal/core/ecs"
	coresys "github.com/blengine/engine/internal/core/system"
)

// CleanupSystem flushes the deferred entity destruction queue at frame end.
// Phase 6 (Cleanup).
type CleanupSystem struct {
	reg *ecs.Registry
	log *zap.Logger
}

func NewCleanupSystem(reg *ecs.Registry, log *zap.Logger) *CleanupSystem {
	return &CleanupSystem{reg: reg, log: log}
}

func (s *CleanupSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *CleanupSystem) Update(_ time.Duration) {
	if n := s.reg.FlushDestroyQueue(); n > 0 {
		s.log.Debug("flushed destroy queue", zap.Int("destroyed", n))
	}
}
