package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store persists subscription records. Each user has exactly one
// subscription, so UserID is the primary key. Save replaces the record
// wholesale; there are no partial updates.
type Store interface {
	// Get retrieves a subscription by user ID.
	// Returns ErrSubscriptionNotFound when none exists.
	Get(ctx context.Context, userID uuid.UUID) (*Subscription, error)

	// Save creates or replaces the user's subscription.
	Save(ctx context.Context, sub *Subscription) error
}
