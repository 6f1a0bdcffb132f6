package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskflowhq/taskflow/pkg/analytics"
)

// Service orchestrates the subscription lifecycle: it loads records, applies
// transitions, persists the result wholesale and emits lifecycle analytics.
// All collaborators are injected; there is no ambient global state.
type Service struct {
	store    Store
	catalog  *Catalog
	provider BillingProvider
	tracker  analytics.Tracker
	log      *slog.Logger
	now      func() time.Time
}

// ServiceOption configures optional Service collaborators.
type ServiceOption func(*Service)

// WithProvider wires a billing provider for checkout/portal/webhook handling.
func WithProvider(p BillingProvider) ServiceOption {
	return func(s *Service) { s.provider = p }
}

// WithTracker wires the analytics sink.
func WithTracker(t analytics.Tracker) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracker = t
		}
	}
}

// WithLogger wires a structured logger.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source. Tests use this to pin time.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. Panics on nil store or catalog to fail fast
// during initialization.
func NewService(store Store, catalog *Catalog, opts ...ServiceOption) *Service {
	if store == nil {
		panic("subscription: Store is required")
	}
	if catalog == nil {
		panic("subscription: Catalog is required")
	}

	s := &Service{
		store:   store,
		catalog: catalog,
		tracker: analytics.Noop{},
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "subscription")
	return s
}

// Catalog exposes the read-only plan catalog.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Signup creates the user's trialing subscription and emits trial_started.
func (s *Service) Signup(ctx context.Context, userID uuid.UUID, planID PlanID) (*Subscription, error) {
	if _, err := s.catalog.Get(planID); err != nil {
		return nil, err
	}

	if _, err := s.store.Get(ctx, userID); err == nil {
		return nil, ErrSubscriptionAlreadyExists
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	sub, err := New(userID, planID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	s.tracker.Track(ctx, userID, analytics.EventTrialStarted, analytics.Properties{
		"planId":      string(planID),
		"trialEndsAt": sub.CurrentPeriodEnd,
	})
	return sub, nil
}

// Get loads the subscription, applying lazy trial expiry: the first read
// after the trial end collapses the stored record to canceled with a
// correcting write, so stored and observed status never diverge.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.store.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sub.ExpireTrial(s.now()) {
		if err := s.store.Save(ctx, sub); err != nil {
			return nil, fmt.Errorf("persist trial expiry: %w", err)
		}
		s.log.InfoContext(ctx, "trial expired",
			slog.String("user_id", userID.String()),
			slog.String("plan_id", string(sub.PlanID)))
	}
	return sub, nil
}

// Upgrade applies a plan change paid through the processor (or simulated).
func (s *Service) Upgrade(ctx context.Context, userID uuid.UUID, planID PlanID) (*Subscription, error) {
	return s.upgrade(ctx, userID, planID, false)
}

// FallbackUpgrade applies a local-only upgrade when the processor is
// unavailable. The emitted event is flagged fallback=true so downstream
// reporting can tell a degraded local transition from a confirmed payment.
func (s *Service) FallbackUpgrade(ctx context.Context, userID uuid.UUID, planID PlanID) (*Subscription, error) {
	return s.upgrade(ctx, userID, planID, true)
}

func (s *Service) upgrade(ctx context.Context, userID uuid.UUID, planID PlanID, fallback bool) (*Subscription, error) {
	if _, err := s.catalog.Get(planID); err != nil {
		return nil, err
	}

	sub, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	fromPlan := sub.PlanID
	if err := sub.Upgrade(planID, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	change, err := s.catalog.Classify(fromPlan, planID)
	if err != nil {
		return nil, err
	}
	name := analytics.EventSubscriptionUpgraded
	if change == PlanChangeDowngrade {
		name = analytics.EventSubscriptionDowngraded
	}

	props := analytics.Properties{
		"fromPlan": string(fromPlan),
		"toPlan":   string(planID),
	}
	if fallback {
		props["fallback"] = true
	}
	s.tracker.Track(ctx, userID, name, props)

	return sub, nil
}

// Cancel schedules cancellation at period end. Emission of the
// cancellation_completed event belongs to the retention flow that calls
// this; direct callers cancel silently.
func (s *Service) Cancel(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.transition(ctx, userID, func(sub *Subscription) error {
		return sub.Cancel(s.now())
	})
}

// Reactivate reverses a pending cancellation and records the save as a
// prevented cancellation.
func (s *Service) Reactivate(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.transition(ctx, userID, func(sub *Subscription) error {
		return sub.Reactivate(s.now())
	})
	if err != nil {
		return nil, err
	}

	s.tracker.Track(ctx, userID, analytics.EventCancellationPrevented, analytics.Properties{
		"action": "reactivated",
	})
	return sub, nil
}

// MarkPaymentFailed records a processor-reported payment failure.
func (s *Service) MarkPaymentFailed(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	return s.transition(ctx, userID, func(sub *Subscription) error {
		return sub.MarkPaymentFailed(s.now())
	})
}

// RecoverPayment clears a past-due condition and emits payment_recovered.
func (s *Service) RecoverPayment(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	sub, err := s.transition(ctx, userID, func(sub *Subscription) error {
		return sub.RecoverPayment(s.now())
	})
	if err != nil {
		return nil, err
	}

	s.tracker.Track(ctx, userID, analytics.EventPaymentRecovered, nil)
	return sub, nil
}

func (s *Service) transition(ctx context.Context, userID uuid.UUID, apply func(*Subscription) error) (*Subscription, error) {
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := apply(sub); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}
	return sub, nil
}

// CreateCheckoutLink validates the request and opens a hosted checkout.
// Missing fields are rejected before any processor call; the subscription is
// never promoted locally on a provider failure.
func (s *Service) CreateCheckoutLink(ctx context.Context, userID uuid.UUID, planID PlanID, opts CheckoutOptions) (*CheckoutLink, error) {
	if userID == uuid.Nil {
		return nil, ErrMissingUserID
	}
	if planID == "" {
		return nil, ErrMissingPlanID
	}
	if opts.Email == "" {
		return nil, ErrMissingEmail
	}
	if _, err := s.catalog.Get(planID); err != nil {
		return nil, err
	}
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrProviderError)
	}

	return s.provider.CreateCheckoutLink(ctx, CheckoutRequest{
		PlanID:     planID,
		UserID:     userID.String(),
		Email:      opts.Email,
		SuccessURL: opts.SuccessURL,
		CancelURL:  opts.CancelURL,
	})
}

// CustomerPortalLink returns a processor-hosted management portal URL.
// No local state changes until the resulting webhooks arrive.
func (s *Service) CustomerPortalLink(ctx context.Context, userID uuid.UUID) (*PortalLink, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: no provider configured", ErrProviderError)
	}

	sub, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.provider.GetCustomerPortalLink(ctx, sub)
}

// HandleWebhook verifies and applies a processor event. Verification happens
// inside the provider's ParseWebhook; an invalid signature means no
// transition is applied.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.provider == nil {
		return fmt.Errorf("%w: no provider configured", ErrProviderError)
	}

	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}

	userID, err := uuid.Parse(event.UserID)
	if err != nil {
		return fmt.Errorf("invalid user ID in webhook: %w", err)
	}

	log := s.log.With(
		slog.String("user_id", userID.String()),
		slog.String("provider_event", event.ProviderEvent))

	switch event.Type {
	case WebhookCheckoutCompleted:
		if _, err := s.upgrade(ctx, userID, event.PlanID, false); err != nil {
			// A paid checkout for the plan the user is already active on is
			// a processor retry; nothing to change.
			if errors.Is(err, ErrAlreadyOnPlan) {
				return nil
			}
			return err
		}
		log.InfoContext(ctx, "checkout completed")

	case WebhookSubscriptionUpdated:
		_, err := s.transition(ctx, userID, func(sub *Subscription) error {
			return sub.Reconcile(event.Status, periodEndOrZero(event), s.now())
		})
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "subscription reconciled", slog.String("status", string(event.Status)))

	case WebhookSubscriptionDeleted:
		_, err := s.transition(ctx, userID, func(sub *Subscription) error {
			sub.ForceCancel(s.now())
			return nil
		})
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "subscription deleted by processor")

	case WebhookPaymentFailed:
		if _, err := s.MarkPaymentFailed(ctx, userID); err != nil {
			return err
		}
		log.WarnContext(ctx, "payment failed")

	case WebhookPaymentSucceeded:
		if _, err := s.RecoverPayment(ctx, userID); err != nil {
			// A renewal charge on an already-active subscription is routine,
			// not a recovery.
			if IsInvalidTransition(err) {
				return nil
			}
			return err
		}
		log.InfoContext(ctx, "payment recovered")

	default:
		log.DebugContext(ctx, "ignoring unhandled webhook event")
	}

	return nil
}

// CancellationFlow builds a retention flow for the user's current plan.
func (s *Service) CancellationFlow(ctx context.Context, userID uuid.UUID) (*CancellationFlow, error) {
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	plan, err := s.catalog.Get(sub.PlanID)
	if err != nil {
		return nil, err
	}
	return NewCancellationFlow(s, s.tracker, userID, plan.Name), nil
}

// CanCreate is the plan-limit gate consumed by the project/team CRUD. The
// core only reads limits here; it never mutates CRUD storage.
func (s *Service) CanCreate(ctx context.Context, userID uuid.UUID, res Resource, used int64) error {
	sub, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	plan, err := s.catalog.Get(sub.PlanID)
	if err != nil {
		return err
	}

	limit, ok := plan.Limit(res)
	if !ok {
		return ErrInvalidResource
	}
	if limit == Unlimited {
		return nil
	}
	if used >= limit {
		return ErrLimitExceeded
	}
	return nil
}

func periodEndOrZero(event *WebhookEvent) time.Time {
	if event.PeriodEnd != nil {
		return *event.PeriodEnd
	}
	return time.Time{}
}
