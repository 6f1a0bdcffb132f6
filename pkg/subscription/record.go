package subscription

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// record is the flat persisted shape of a Subscription: a status
// discriminator plus per-status optional columns. It exists only at the
// storage boundary; everywhere else the tagged State type makes illegal
// field combinations unrepresentable.
type record struct {
	UserID            uuid.UUID  `json:"user_id"`
	PlanID            PlanID     `json:"plan_id"`
	Status            Status     `json:"status"`
	TrialEndsAt       *time.Time `json:"trial_ends_at,omitempty"`
	CurrentPeriodEnd  time.Time  `json:"current_period_end"`
	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	PaymentFailedAt   *time.Time `json:"payment_failed_at,omitempty"`
	PaymentRetryCount int        `json:"payment_retry_count,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func toRecord(s *Subscription) record {
	return record{
		UserID:            s.UserID,
		PlanID:            s.PlanID,
		Status:            s.Status(),
		TrialEndsAt:       s.TrialEndsAt(),
		CurrentPeriodEnd:  s.CurrentPeriodEnd,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd(),
		PaymentFailedAt:   s.PaymentFailedAt(),
		PaymentRetryCount: s.PaymentRetryCount(),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// toSubscription rebuilds the tagged representation, rejecting rows whose
// optional columns disagree with their status discriminator. A corrupt row
// must never silently enter the system as a default state.
func (r record) toSubscription() (*Subscription, error) {
	var state State

	switch r.Status {
	case StatusTrialing:
		if r.TrialEndsAt == nil {
			return nil, fmt.Errorf("%w: trialing without trial_ends_at", ErrCorruptRecord)
		}
		state = Trialing{EndsAt: r.TrialEndsAt.UTC()}
	case StatusActive:
		state = Active{}
	case StatusPastDue:
		if r.PaymentFailedAt == nil || r.PaymentRetryCount < 1 {
			return nil, fmt.Errorf("%w: past_due without failure bookkeeping", ErrCorruptRecord)
		}
		state = PastDue{FailedAt: r.PaymentFailedAt.UTC(), RetryCount: r.PaymentRetryCount}
	case StatusCanceling:
		state = Canceling{}
	case StatusCanceled:
		state = Canceled{}
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrCorruptRecord, r.Status)
	}

	// Columns that must not be set outside their status.
	if r.Status != StatusTrialing && r.TrialEndsAt != nil {
		return nil, fmt.Errorf("%w: trial_ends_at set on %s", ErrCorruptRecord, r.Status)
	}
	if r.Status != StatusPastDue && (r.PaymentFailedAt != nil || r.PaymentRetryCount != 0) {
		return nil, fmt.Errorf("%w: payment failure fields set on %s", ErrCorruptRecord, r.Status)
	}
	if r.CancelAtPeriodEnd != (r.Status == StatusCanceling) {
		return nil, fmt.Errorf("%w: cancel_at_period_end mismatch on %s", ErrCorruptRecord, r.Status)
	}

	return &Subscription{
		UserID:           r.UserID,
		PlanID:           r.PlanID,
		State:            state,
		CurrentPeriodEnd: r.CurrentPeriodEnd.UTC(),
		CreatedAt:        r.CreatedAt.UTC(),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}, nil
}
