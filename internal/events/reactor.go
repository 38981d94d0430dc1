package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	// ErrCallbackCycle is returned when ordering constraints form a cycle.
	ErrCallbackCycle = errors.New("callback ordering has a cycle")
	// ErrDuplicateCallback is returned when a callback id is reused for the
	// same event type.
	ErrDuplicateCallback = errors.New("callback id already registered")
)

// CallbackFunc handles one event synchronously.
type CallbackFunc func(ctx context.Context, event *Event) Flow

// Callback is a Reactor registration. ID is optional; it only matters when
// other callbacks order themselves relative to this one. Before and After
// name callbacks that must run after or before this one respectively.
// Unknown ids are ignored.
type Callback struct {
	ID     string
	Before []string
	After  []string
	Fn     CallbackFunc
}

type callbackEntry struct {
	Callback
	seq int
}

// Reactor runs ordered callbacks synchronously on the dispatching goroutine.
// Connections use it for packet events so a callback can drop or modify a
// packet before the engine acts on it.
type Reactor struct {
	mu     sync.RWMutex
	chains map[EventType][]*callbackEntry
	seq    int
}

// NewReactor creates an empty Reactor.
func NewReactor() *Reactor {
	return &Reactor{chains: make(map[EventType][]*callbackEntry)}
}

// Register adds a callback and re-sorts the chain of its event type. The
// chain is left unchanged when an error is returned.
func (r *Reactor) Register(eventType EventType, cb Callback) error {
	if cb.Fn == nil {
		return fmt.Errorf("failed to register callback %q: nil function", cb.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	chain := r.chains[eventType]
	if cb.ID != "" {
		for _, e := range chain {
			if e.ID == cb.ID {
				return fmt.Errorf("failed to register callback %q for %s: %w", cb.ID, eventType, ErrDuplicateCallback)
			}
		}
	}

	r.seq++
	candidate := append(append([]*callbackEntry(nil), chain...), &callbackEntry{Callback: cb, seq: r.seq})
	sorted, err := sortCallbacks(candidate)
	if err != nil {
		return fmt.Errorf("failed to register callback %q for %s: %w", cb.ID, eventType, err)
	}
	r.chains[eventType] = sorted

	log.Debug().
		Str("event", string(eventType)).
		Str("callback", cb.ID).
		Int("chain", len(sorted)).
		Msg("registered callback")
	return nil
}

// sortCallbacks orders entries with Kahn's algorithm. Among callbacks that
// are ready at the same time the earliest registration goes first.
func sortCallbacks(entries []*callbackEntry) ([]*callbackEntry, error) {
	index := make(map[string]int, len(entries))
	for i, e := range entries {
		if e.ID != "" {
			index[e.ID] = i
		}
	}

	successors := make([][]int, len(entries))
	indegree := make([]int, len(entries))
	edge := func(from, to int) {
		successors[from] = append(successors[from], to)
		indegree[to]++
	}
	for i, e := range entries {
		for _, id := range e.Before {
			if j, ok := index[id]; ok && j != i {
				edge(i, j)
			}
		}
		for _, id := range e.After {
			if j, ok := index[id]; ok && j != i {
				edge(j, i)
			}
		}
	}

	done := make([]bool, len(entries))
	sorted := make([]*callbackEntry, 0, len(entries))
	for len(sorted) < len(entries) {
		next := -1
		for i, e := range entries {
			if done[i] || indegree[i] > 0 {
				continue
			}
			if next < 0 || e.seq < entries[next].seq {
				next = i
			}
		}
		if next < 0 {
			return nil, ErrCallbackCycle
		}
		done[next] = true
		sorted = append(sorted, entries[next])
		for _, j := range successors[next] {
			indegree[j]--
		}
	}
	return sorted, nil
}

// Dispatch runs the callbacks for the event in order. It returns Break as
// soon as a callback does. A panicking callback is logged and skipped.
func (r *Reactor) Dispatch(ctx context.Context, event *Event) Flow {
	r.mu.RLock()
	chain := r.chains[event.Type]
	r.mu.RUnlock()

	for _, e := range chain {
		if invokeCallback(ctx, e, event) == Break {
			return Break
		}
	}
	return Continue
}

func invokeCallback(ctx context.Context, e *callbackEntry, event *Event) (flow Flow) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Str("event", string(event.Type)).
				Str("callback", e.ID).
				Interface("panic", rec).
				Msg("callback panicked")
			flow = Continue
		}
	}()
	return e.Fn(ctx, event)
}

// Order returns the callback ids for an event type in execution order.
// Anonymous callbacks appear as empty strings.
func (r *Reactor) Order(eventType EventType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.chains[eventType]))
	for _, e := range r.chains[eventType] {
		ids = append(ids, e.ID)
	}
	return ids
}

// Count returns the number of callbacks registered for an event type.
func (r *Reactor) Count(eventType EventType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chains[eventType])
}

// Option adjusts a callback registered through On.
type Option func(*Callback)

// RunBefore makes the callback run before the named callbacks.
func RunBefore(ids ...string) Option {
	return func(cb *Callback) { cb.Before = append(cb.Before, ids...) }
}

// RunAfter makes the callback run after the named callbacks.
func RunAfter(ids ...string) Option {
	return func(cb *Callback) { cb.After = append(cb.After, ids...) }
}

// On registers a typed callback. It only sees events whose payload has type
// T; for any other payload the chain continues without calling fn.
func On[T any](r *Reactor, eventType EventType, id string, fn func(ctx context.Context, payload T) Flow, opts ...Option) error {
	cb := Callback{
		ID: id,
		Fn: func(ctx context.Context, event *Event) Flow {
			payload, ok := event.Payload.(T)
			if !ok {
				return Continue
			}
			return fn(ctx, payload)
		},
	}
	for _, opt := range opts {
		opt(&cb)
	}
	return r.Register(eventType, cb)
}
