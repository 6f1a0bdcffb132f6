package subscription

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	// TrialPeriod is the length of the free trial granted at signup.
	TrialPeriod = 14 * 24 * time.Hour
	// BillingPeriod is the length of one paid billing cycle.
	BillingPeriod = 30 * 24 * time.Hour
	// ExpiringSoonDays is the trial countdown threshold for the warning banner.
	ExpiringSoonDays = 3
	// MaxDisplayedRetries caps the retry attempt shown to the user ("attempt N/3").
	MaxDisplayedRetries = 3
)

// State is the per-status payload of a subscription. Only the five concrete
// types below implement it, so a field that is meaningless for the current
// status cannot exist at all.
type State interface {
	Status() Status
	sealed()
}

// Trialing is the state entered at signup. EndsAt marks the end of the trial.
type Trialing struct {
	EndsAt time.Time
}

// Active is the paid, healthy state.
type Active struct{}

// PastDue records a failed payment attempt pending retry.
type PastDue struct {
	FailedAt   time.Time
	RetryCount int
}

// Canceling means cancellation was requested; access runs until period end.
type Canceling struct{}

// Canceled is the terminal state.
type Canceled struct{}

func (Trialing) Status() Status  { return StatusTrialing }
func (Active) Status() Status    { return StatusActive }
func (PastDue) Status() Status   { return StatusPastDue }
func (Canceling) Status() Status { return StatusCanceling }
func (Canceled) Status() Status  { return StatusCanceled }

func (Trialing) sealed()  {}
func (Active) sealed()    {}
func (PastDue) sealed()   {}
func (Canceling) sealed() {}
func (Canceled) sealed()  {}

// Subscription is a user's subscription to a plan.
// Each user has exactly one subscription; UserID is the primary key.
// The record is replaced wholesale on every transition.
type Subscription struct {
	UserID           uuid.UUID
	PlanID           PlanID
	State            State
	CurrentPeriodEnd time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// New creates a trialing subscription starting at now.
// The trial end doubles as the current period end.
func New(userID uuid.UUID, planID PlanID, now time.Time) (*Subscription, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	if planID == "" {
		return nil, ErrMissingPlanID
	}

	trialEnd := now.Add(TrialPeriod).UTC()
	return &Subscription{
		UserID:           userID,
		PlanID:           planID,
		State:            Trialing{EndsAt: trialEnd},
		CurrentPeriodEnd: trialEnd,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}, nil
}

// Status returns the stored status. It does not account for lazy trial
// expiry; use EffectiveStateAt for the observed status.
func (s *Subscription) Status() Status {
	return s.State.Status()
}

// TrialEndsAt returns the trial end, or nil when not trialing.
func (s *Subscription) TrialEndsAt() *time.Time {
	if st, ok := s.State.(Trialing); ok {
		t := st.EndsAt
		return &t
	}
	return nil
}

// CancelAtPeriodEnd reports whether cancellation is scheduled for period end.
// True exactly when the status is canceling.
func (s *Subscription) CancelAtPeriodEnd() bool {
	_, ok := s.State.(Canceling)
	return ok
}

// PaymentFailedAt returns when the last payment failed, or nil when not past due.
func (s *Subscription) PaymentFailedAt() *time.Time {
	if st, ok := s.State.(PastDue); ok {
		t := st.FailedAt
		return &t
	}
	return nil
}

// PaymentRetryCount returns the number of recorded payment failures,
// or 0 when not past due.
func (s *Subscription) PaymentRetryCount() int {
	if st, ok := s.State.(PastDue); ok {
		return st.RetryCount
	}
	return 0
}

// EffectiveStateAt derives the observed state at a given time. A trial whose
// end has passed is observed as canceled even before the stored record is
// corrected. All other states are observed as stored.
func (s *Subscription) EffectiveStateAt(now time.Time) State {
	if st, ok := s.State.(Trialing); ok && !now.Before(st.EndsAt) {
		return Canceled{}
	}
	return s.State
}

// EffectiveStatusAt is a shorthand for EffectiveStateAt(now).Status().
func (s *Subscription) EffectiveStatusAt(now time.Time) Status {
	return s.EffectiveStateAt(now).Status()
}

// TrialDaysRemainingAt returns the whole days left in the trial at now,
// rounding partial days up. Returns 0 and false when not trialing.
// A non-positive day count means the trial has expired.
func (s *Subscription) TrialDaysRemainingAt(now time.Time) (int, bool) {
	st, ok := s.State.(Trialing)
	if !ok {
		return 0, false
	}
	days := int(math.Ceil(st.EndsAt.Sub(now).Hours() / 24))
	return days, true
}

// IsTrialExpiringSoonAt reports whether the trial ends within the
// expiring-soon threshold but has not expired yet.
func (s *Subscription) IsTrialExpiringSoonAt(now time.Time) bool {
	days, ok := s.TrialDaysRemainingAt(now)
	return ok && days > 0 && days <= ExpiringSoonDays
}
