package subscription

import "time"

// Lifecycle transitions. Every method validates its precondition before
// touching the record, so a failed transition leaves the subscription
// exactly as it was. Callers gate UI actions on the current status, but
// out-of-band callers (webhook handlers) hit the same checks.

// Upgrade switches the subscription to planID and forces it active.
// Paying settles any outstanding trial, past-due or canceling condition, so
// the transition is allowed from every state except already being active on
// the target plan. The billing period restarts from now.
func (s *Subscription) Upgrade(planID PlanID, now time.Time) error {
	if planID == "" {
		return ErrMissingPlanID
	}
	if s.PlanID == planID {
		if _, ok := s.State.(Active); ok {
			return ErrAlreadyOnPlan
		}
	}

	s.PlanID = planID
	s.State = Active{}
	s.CurrentPeriodEnd = now.Add(BillingPeriod).UTC()
	s.touch(now)
	return nil
}

// Cancel schedules cancellation at period end. Access is retained until
// CurrentPeriodEnd; this is a grace period, not immediate revocation.
func (s *Subscription) Cancel(now time.Time) error {
	switch s.State.(type) {
	case Trialing, Active, PastDue:
		s.State = Canceling{}
		s.touch(now)
		return nil
	default:
		return &InvalidTransitionError{From: s.Status(), Op: "cancel"}
	}
}

// Reactivate reverses a pending cancellation. It is only valid while
// canceling; from any other state it fails without mutating the record.
// Plan and period end are preserved.
func (s *Subscription) Reactivate(now time.Time) error {
	if _, ok := s.State.(Canceling); !ok {
		return &InvalidTransitionError{From: s.Status(), Op: "reactivate"}
	}
	s.State = Active{}
	s.touch(now)
	return nil
}

// MarkPaymentFailed records a failed payment attempt reported by the billing
// processor. The first failure moves an active subscription to past due;
// repeated failures increment the retry count instead of corrupting state.
// There is no automatic cancellation when retries are exhausted.
func (s *Subscription) MarkPaymentFailed(now time.Time) error {
	switch st := s.State.(type) {
	case Active:
		s.State = PastDue{FailedAt: now.UTC(), RetryCount: 1}
	case PastDue:
		s.State = PastDue{FailedAt: now.UTC(), RetryCount: st.RetryCount + 1}
	default:
		return &InvalidTransitionError{From: s.Status(), Op: "mark payment failed"}
	}
	s.touch(now)
	return nil
}

// RecoverPayment clears the past-due condition after a successful retry and
// starts a fresh billing period from now.
func (s *Subscription) RecoverPayment(now time.Time) error {
	if _, ok := s.State.(PastDue); !ok {
		return &InvalidTransitionError{From: s.Status(), Op: "recover payment"}
	}
	s.State = Active{}
	s.CurrentPeriodEnd = now.Add(BillingPeriod).UTC()
	s.touch(now)
	return nil
}

// ExpireTrial collapses an expired trial to canceled. It is the correcting
// write counterpart of EffectiveStateAt: the service read path calls it the
// first time expiry is observed, so stored and observed status never
// diverge. Returns true when the record changed.
func (s *Subscription) ExpireTrial(now time.Time) bool {
	st, ok := s.State.(Trialing)
	if !ok || now.Before(st.EndsAt) {
		return false
	}
	s.State = Canceled{}
	s.touch(now)
	return true
}

// ForceCancel terminates the subscription immediately. Used when the billing
// processor reports the subscription as deleted on its side.
func (s *Subscription) ForceCancel(now time.Time) {
	s.State = Canceled{}
	s.touch(now)
}

// Reconcile aligns local status and period end with what the billing
// processor reports on a subscription.updated event. Unknown statuses are
// rejected rather than guessed at.
func (s *Subscription) Reconcile(status Status, periodEnd time.Time, now time.Time) error {
	switch status {
	case StatusActive:
		s.State = Active{}
	case StatusPastDue:
		// Keep the local failure bookkeeping if present; start it otherwise.
		if _, ok := s.State.(PastDue); !ok {
			s.State = PastDue{FailedAt: now.UTC(), RetryCount: 1}
		}
	case StatusCanceling:
		s.State = Canceling{}
	case StatusCanceled:
		s.State = Canceled{}
	case StatusTrialing:
		if periodEnd.IsZero() {
			return ErrCorruptRecord
		}
		s.State = Trialing{EndsAt: periodEnd.UTC()}
	default:
		return ErrCorruptRecord
	}
	if !periodEnd.IsZero() {
		s.CurrentPeriodEnd = periodEnd.UTC()
	}
	s.touch(now)
	return nil
}

func (s *Subscription) touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}
