// Package statemachine provides a small guarded finite state machine used to
// drive short-lived interaction flows.
package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// State is a state in the machine.
type State interface {
	Name() string
}

// Event triggers a state transition.
type Event interface {
	Name() string
}

// Guard decides at fire time whether a transition may proceed.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Action runs side effects during a transition. An error aborts the
// transition before the state changes.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// StateMachine is a thread-safe finite state machine.
type StateMachine interface {
	Current() State
	Fire(ctx context.Context, event Event, data any) error
	CanFire(ctx context.Context, event Event, data any) bool
	Reset() error
}

// StringState is a string-based State for simple flows.
type StringState string

func (s StringState) Name() string { return string(s) }

// StringEvent is a string-based Event for simple flows.
type StringEvent string

func (e StringEvent) Name() string { return string(e) }

type transition struct {
	from    State
	to      State
	event   Event
	guards  []Guard
	actions []Action
}

type machine struct {
	mu      sync.RWMutex
	initial State
	current State
	// transitions indexed [fromState][event]; multiple entries per key
	// support guard-based branching, first passing entry wins.
	transitions map[string]map[string][]transition
}

func newMachine(initial State) *machine {
	return &machine{
		initial:     initial,
		current:     initial,
		transitions: make(map[string]map[string][]transition),
	}
}

func (m *machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *machine) add(t transition) error {
	if t.from == nil || t.to == nil || t.event == nil {
		return ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := t.from.Name()
	if m.transitions[from] == nil {
		m.transitions[from] = make(map[string][]transition)
	}
	m.transitions[from][t.event.Name()] = append(m.transitions[from][t.event.Name()], t)
	return nil
}

func (m *machine) Fire(ctx context.Context, event Event, data any) error {
	if event == nil {
		return ErrInvalidEvent
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	candidates := m.transitions[m.current.Name()][event.Name()]
	if len(candidates) == 0 {
		return &NoTransitionError{State: m.current.Name(), Event: event.Name()}
	}

	idx := -1
	for i, t := range candidates {
		if guardsPass(ctx, t, m.current, event, data) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &RejectedError{State: m.current.Name(), Event: event.Name()}
	}

	chosen := candidates[idx]
	for _, action := range chosen.actions {
		if action == nil {
			continue
		}
		if err := action(ctx, m.current, chosen.to, event, data); err != nil {
			return fmt.Errorf("transition action: %w", err)
		}
	}

	m.current = chosen.to
	return nil
}

func (m *machine) CanFire(ctx context.Context, event Event, data any) bool {
	if event == nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, t := range m.transitions[m.current.Name()][event.Name()] {
		if guardsPass(ctx, t, m.current, event, data) {
			return true
		}
	}
	return false
}

func (m *machine) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
	return nil
}

func guardsPass(ctx context.Context, t transition, from State, event Event, data any) bool {
	for _, guard := range t.guards {
		if guard != nil && !guard(ctx, from, event, data) {
			return false
		}
	}
	return true
}
