package subscription

import "errors"

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrAlreadyOnPlan            = errors.New("subscription already active on this plan")

	ErrLimitExceeded   = errors.New("subscription limit exceeded")
	ErrInvalidResource = errors.New("invalid subscription resource")

	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists")
	ErrCorruptRecord             = errors.New("subscription record is corrupt")

	ErrMissingUserID = errors.New("user ID is required")
	ErrMissingPlanID = errors.New("plan ID is required")
	ErrMissingEmail  = errors.New("billing email is required")

	ErrProviderError             = errors.New("billing provider error")
	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrNoCheckoutURL             = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL               = errors.New("no portal URL returned from provider")

	ErrFailedToLoadPlans = errors.New("failed to load subscription plans")
)

// InvalidTransitionError reports a lifecycle operation attempted from a state
// that does not permit it. The record is left untouched.
type InvalidTransitionError struct {
	From Status
	Op   string
}

func (e *InvalidTransitionError) Error() string {
	return "invalid subscription transition: cannot " + e.Op + " from " + string(e.From)
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var e *InvalidTransitionError
	return errors.As(err, &e)
}
