package analytics

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryTracker records events in memory. Intended for tests and local
// development where no real sink is configured.
type MemoryTracker struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{}
}

func (t *MemoryTracker) Track(ctx context.Context, userID uuid.UUID, name EventName, props Properties) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, NewEvent(userID, name, props))
}

// Events returns a copy of all recorded events in order.
func (t *MemoryTracker) Events() []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.events)
}

// Named returns all recorded events with the given name.
func (t *MemoryTracker) Named(name EventName) []Event {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Event
	for _, e := range t.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset discards all recorded events.
func (t *MemoryTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
}
