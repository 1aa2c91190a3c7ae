package system

import "time"

// Phase defines execution ordering within a single frame. Phases run one
// after another; systems sharing a phase run in parallel.
type Phase int

const (
	PhaseInput      Phase = iota // 0: swap and dispatch the event bus
	PhasePreUpdate               // 1: script hooks
	PhaseUpdate                  // 2: motion / physics glue
	PhasePostUpdate              // 3: hierarchy propagation
	PhaseOutput                  // 4: render sync
	PhasePersist                 // 5: periodic snapshots
	PhaseCleanup                 // 6: destroy queued entities
)

func (p Phase) String() string {
	switch p {
	case PhaseInput:
		return "input"
	case PhasePreUpdate:
		return "pre_update"
	case PhaseUpdate:
		return "update"
	case PhasePostUpdate:
		return "post_update"
	case PhaseOutput:
		return "output"
	case PhasePersist:
		return "persist"
	case PhaseCleanup:
		return "cleanup"
	}
	return "unknown"
}

// System is the interface every engine system implements. Systems of the
// same phase may run concurrently and must take registry transactions for
// everything they touch.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}
