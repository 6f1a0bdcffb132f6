package statemachine

import "fmt"

// Option configures a machine during construction.
type Option func(*machine) error

// TransitionOption attaches guards and actions to a single transition.
type TransitionOption func(*transition)

// New creates a state machine with the given initial state and transitions.
func New(initial State, opts ...Option) (StateMachine, error) {
	if initial == nil {
		return nil, fmt.Errorf("statemachine: initial state cannot be nil")
	}

	m := newMachine(initial)
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New panicking on error, for machines wired at startup where a
// bad definition should prevent boot.
func MustNew(initial State, opts ...Option) StateMachine {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return m
}

// WithTransition registers a transition. Registering several transitions for
// the same from/event pair enables guard-based branching; they are tried in
// registration order.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(m *machine) error {
		t := transition{from: from, to: to, event: event}
		for _, opt := range opts {
			opt(&t)
		}
		return m.add(t)
	}
}

// WithGuard adds a guard to the transition.
func WithGuard(guard Guard) TransitionOption {
	return func(t *transition) {
		if guard != nil {
			t.guards = append(t.guards, guard)
		}
	}
}

// WithAction adds an action to the transition.
func WithAction(action Action) TransitionOption {
	return func(t *transition) {
		if action != nil {
			t.actions = append(t.actions, action)
		}
	}
}
