package ecs

import (
	"fmt"
	"math/rand/v2"
)

// IDMode selects how entity slot indices are handed out.
type IDMode int

const (
	// IDSequential hands out monotonically increasing indices and reuses
	// released ones most-recent-first. Deterministic, suited to tests and replay.
	IDSequential IDMode = iota
	// IDRandom draws indices uniformly from the free set.
	IDRandom
)

func (m IDMode) String() string {
	switch m {
	case IDSequential:
		return "sequential"
	case IDRandom:
		return "random"
	}
	return fmt.Sprintf("IDMode(%d)", int(m))
}

// ParseIDMode accepts "sequential" or "random".
func ParseIDMode(s string) (IDMode, error) {
	switch s {
	case "", "sequential":
		return IDSequential, nil
	case "random":
		return IDRandom, nil
	}
	return IDSequential, fmt.Errorf("unknown id mode %q", s)
}

// idAllocator manages slot indices. Callers hold the registry entity lock.
type idAllocator interface {
	allocate() (uint32, bool)
	release(index uint32)
	allocated(index uint32) bool
	// end is one past the highest index that may currently be allocated.
	end() uint32
	count() int
	releaseAll()
}

func newIDAllocator(mode IDMode, capacity int, limit uint32, rng *rand.Rand) idAllocator {
	if mode == IDRandom {
		if rng == nil {
			rng = rand.New(rand.NewPCG(1, 1))
		}
		return &randomAllocator{
			used:  make([]bool, 0, capacity),
			free:  make([]uint32, 0, capacity),
			limit: limit,
			rng:   rng,
		}
	}
	return &sequentialAllocator{
		used:  make([]bool, 0, capacity),
		free:  make([]uint32, 0, 64),
		limit: limit,
	}
}

// sequentialAllocator is a free list over a monotonically growing index range.
type sequentialAllocator struct {
	used  []bool
	free  []uint32
	next  uint32
	limit uint32
	live  int
}

func (a *sequentialAllocator) allocate() (uint32, bool) {
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.used[idx] = true
		a.live++
		return idx, true
	}
	if a.next >= a.limit {
		return 0, false
	}
	idx := a.next
	a.next++
	if int(idx) >= len(a.used) {
		a.used = append(a.used, false)
	}
	a.used[idx] = true
	a.live++
	return idx, true
}

func (a *sequentialAllocator) release(idx uint32) {
	if idx >= a.next || !a.used[idx] {
		return
	}
	a.used[idx] = false
	a.free = append(a.free, idx)
	a.live--
}

func (a *sequentialAllocator) allocated(idx uint32) bool {
	return idx < a.next && a.used[idx]
}

func (a *sequentialAllocator) end() uint32 { return a.next }
func (a *sequentialAllocator) count() int  { return a.live }

func (a *sequentialAllocator) releaseAll() {
	clear(a.used)
	a.free = a.free[:0]
	a.next = 0
	a.live = 0
}

// randomAllocator picks a uniformly random free index, growing the index
// range in chunks when the free set runs dry.
type randomAllocator struct {
	used  []bool
	free  []uint32
	limit uint32
	rng   *rand.Rand
	live  int
}

const randomGrowChunk = 64

func (a *randomAllocator) grow() bool {
	cur := uint32(len(a.used))
	if cur >= a.limit {
		return false
	}
	next := cur * 2
	if next < cur+randomGrowChunk {
		next = cur + randomGrowChunk
	}
	if next > a.limit {
		next = a.limit
	}
	for i := cur; i < next; i++ {
		a.free = append(a.free, i)
	}
	a.used = append(a.used, make([]bool, next-cur)...)
	return true
}

func (a *randomAllocator) allocate() (uint32, bool) {
	if len(a.free) == 0 && !a.grow() {
		return 0, false
	}
	j := a.rng.IntN(len(a.free))
	last := len(a.free) - 1
	idx := a.free[j]
	a.free[j] = a.free[last]
	a.free = a.free[:last]
	a.used[idx] = true
	a.live++
	return idx, true
}

func (a *randomAllocator) release(idx uint32) {
	if int(idx) >= len(a.used) || !a.used[idx] {
		return
	}
	a.used[idx] = false
	a.free = append(a.free, idx)
	a.live--
}

func (a *randomAllocator) allocated(idx uint32) bool {
	return int(idx) < len(a.used) && a.used[idx]
}

func (a *randomAllocator) end() uint32 { return uint32(len(a.used)) }
func (a *randomAllocator) count() int  { return a.live }

func (a *randomAllocator) releaseAll() {
	clear(a.used)
	a.free = a.free[:0]
	for i := range a.used {
		a.free = append(a.free, uint32(i))
	}
	a.live = 0
}
