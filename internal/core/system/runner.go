package system

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Runner executes systems in phase order each frame. Systems of one phase
// are spread over at most workers goroutines.
type Runner struct {
	log     *zap.Logger
	workers int
	systems []System
	sorted  bool
}

func NewRunner(workers int, log *zap.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		log:     log,
		workers: workers,
		systems: make([]System, 0, 16),
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Len returns the number of registered systems.
func (r *Runner) Len() int { return len(r.systems) }

// Tick runs every phase once. A panicking system does not stop the frame;
// the panic is logged and returned joined with any others.
func (r *Runner) Tick(dt time.Duration) error {
	r.ensureSorted()
	var errs []error
	for start := 0; start < len(r.systems); {
		phase := r.systems[start].Phase()
		end := start + 1
		for end < len(r.systems) && r.systems[end].Phase() == phase {
			end++
		}
		if err := r.runGroup(r.systems[start:end], dt); err != nil {
			errs = append(errs, err)
		}
		start = end
	}
	return errors.Join(errs...)
}

// TickPhase runs only the systems of one phase.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) error {
	r.ensureSorted()
	var group []System
	for _, s := range r.systems {
		if s.Phase() == phase {
			group = append(group, s)
		}
	}
	return r.runGroup(group, dt)
}

func (r *Runner) runGroup(group []System, dt time.Duration) error {
	switch len(group) {
	case 0:
		return nil
	case 1:
		return r.run(group[0], dt)
	}
	var g errgroup.Group
	g.SetLimit(r.workers)
	errs := make([]error, len(group))
	for i, s := range group {
		g.Go(func() error {
			errs[i] = r.run(s, dt)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func (r *Runner) run(s System, dt time.Duration) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("system %T panicked: %v", s, p)
			r.log.Error("system panic",
				zap.String("system", fmt.Sprintf("%T", s)),
				zap.Stringer("phase", s.Phase()),
				zap.Any("panic", p),
				zap.Stack("stack"))
		}
	}()
	s.Update(dt)
	return nil
}

func (r *Runner) ensureSorted() {
	if !r.sorted {
		slices.SortStableFunc(r.systems, func(a, b System) int {
			return int(a.Phase()) - int(b.Phase())
		})
		r.sorted = true
	}
}
