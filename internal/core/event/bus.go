package event

import (
	"reflect"
	"sync"
)

// Bus is a double-buffered event bus. Events emitted in frame N are readable
// in frame N+1. SwapBuffers() is called at frame start by EventDispatchSystem.
// Emit and Publish may be called from any goroutine; SwapBuffers and
// DispatchAll run on the frame loop.
type Bus struct {
	mu       sync.Mutex // protects back and handler registration
	front    map[reflect.Type][]any
	back     map[reflect.Type][]any
	order    []reflect.Type
	handlers map[reflect.Type][]func(any)
}

func NewBus() *Bus {
	return &Bus{
		front:    make(map[reflect.Type][]any),
		back:     make(map[reflect.Type][]any),
		handlers: make(map[reflect.Type][]func(any)),
	}
}

// Emit queues an event into the back buffer (will be readable next frame).
func Emit[T any](b *Bus, event T) {
	b.publish(reflect.TypeOf((*T)(nil)).Elem(), event)
}

// Publish is Emit for callers holding an untyped event, such as the registry
// lifecycle hook. The event is keyed by its dynamic type.
func (b *Bus) Publish(event any) {
	if event == nil {
		return
	}
	b.publish(reflect.TypeOf(event), event)
}

func (b *Bus) publish(t reflect.Type, event any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, seen := b.back[t]; !seen {
		if _, seen := b.front[t]; !seen {
			b.order = append(b.order, t)
		}
	}
	b.back[t] = append(b.back[t], event)
}

// Subscribe registers a typed handler for events of type T.
func Subscribe[T any](b *Bus, fn func(T)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.handlers[t] = append(b.handlers[t], func(ev any) { fn(ev.(T)) })
}

// SwapBuffers rotates back→front and clears the new back buffer.
// Called once at frame start.
func (b *Bus) SwapBuffers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.front, b.back = b.back, b.front
	for k := range b.back {
		b.back[k] = b.back[k][:0]
	}
}

// DispatchAll delivers all front-buffer events to their subscribed handlers,
// grouped by type in the order types were first published.
func (b *Bus) DispatchAll() {
	b.mu.Lock()
	order := b.order
	handlers := make(map[reflect.Type][]func(any), len(b.handlers))
	for t, hs := range b.handlers {
		handlers[t] = hs
	}
	b.mu.Unlock()

	for _, t := range order {
		for _, ev := range b.front[t] {
			for _, h := range handlers[t] {
				h(ev)
			}
		}
	}
}

// Pending returns the number of events waiting in the back buffer.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, evs := range b.back {
		n += len(evs)
	}
	return n
}
