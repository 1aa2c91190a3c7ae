package system

import (
	"time"

	"github.com/blengine/engine/internal/core/event"
	coresys "github.com/blengine/engine/internal/core/system"
)

// HookCaller is the part of the scripting engine the frame loop needs.
type HookCaller interface {
	CallHook(name string, args ...float64) error
}

// FrameHook is the global Lua function called once per frame with the frame
// delta in seconds.
const FrameHook = "on_frame"

// ScriptSystem runs the per-frame script hook. Failures are published as
// event.ScriptFailed; the hook runs again next frame. Phase 1 (PreUpdate).
type ScriptSystem struct {
	scripts HookCaller
	bus     *event.Bus
}

func NewScriptSystem(scripts HookCaller, bus *event.Bus) *ScriptSystem {
	return &ScriptSystem{scripts: scripts, bus: bus}
}

func (s *ScriptSystem) Phase() coresys.Phase { return coresys.PhasePreUpdate }

func (s *ScriptSystem) Update(dt time.Duration) {
	if err := s.scripts.CallHook(FrameHook, dt.Seconds()); err != nil && s.bus != nil {
		event.Emit(s.bus, event.ScriptFailed{Hook: FrameHook, Err: err.Error()})
	}
}
