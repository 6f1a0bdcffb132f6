package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventName identifies a product analytics event.
type EventName string

// Subscription lifecycle events emitted by the billing core.
const (
	EventTrialStarted           EventName = "trial_started"
	EventTrialExpiringSoon      EventName = "trial_expiring_soon"
	EventTrialExpired           EventName = "trial_expired"
	EventSubscriptionUpgraded   EventName = "subscription_upgraded"
	EventSubscriptionDowngraded EventName = "subscription_downgraded"
	EventPaymentFailed          EventName = "payment_failed"
	EventPaymentRecovered       EventName = "payment_recovered"
	EventCancellationInitiated  EventName = "cancellation_initiated"
	EventCancellationPrevented  EventName = "cancellation_prevented"
	EventCancellationCompleted  EventName = "cancellation_completed"
)

// Properties is the free-form property bag attached to an event.
type Properties map[string]any

// Event is a single tracked occurrence.
type Event struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id,omitzero"`
	Name       EventName  `json:"name"`
	Properties Properties `json:"properties,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Tracker delivers events to an analytics sink. Delivery is fire-and-forget:
// implementations must not fail the caller's operation, and the core never
// waits for acknowledgment.
type Tracker interface {
	Track(ctx context.Context, userID uuid.UUID, name EventName, props Properties)
}

// NewEvent stamps an event with an ID and the current time.
func NewEvent(userID uuid.UUID, name EventName, props Properties) Event {
	return Event{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       name,
		Properties: props,
		Timestamp:  time.Now().UTC(),
	}
}

// Noop is a Tracker that drops every event.
type Noop struct{}

func (Noop) Track(ctx context.Context, userID uuid.UUID, name EventName, props Properties) {}
