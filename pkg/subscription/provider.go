package subscription

import (
	"context"
	"time"
)

// BillingProvider is the payment processor boundary. The core never talks
// HTTP to the processor itself; it hands off checkout/portal creation and
// consumes the normalized events the provider reports back.
//
// Implementations must verify webhook authenticity before returning an
// event: a request that fails the signature check yields an error and no
// event, so no transition can ever be applied from a spoofed payload.
type BillingProvider interface {
	// CreateCheckoutLink creates a hosted checkout session.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// GetCustomerPortalLink returns a temporary customer portal URL where
	// users manage payment methods and plan changes.
	GetCustomerPortalLink(ctx context.Context, sub *Subscription) (*PortalLink, error)

	// ParseWebhook verifies the payload signature and returns the
	// normalized event.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutRequest carries the data needed to open a checkout session.
type CheckoutRequest struct {
	PlanID     PlanID
	UserID     string // internal user ID, round-tripped via processor metadata
	Email      string
	SuccessURL string
	CancelURL  string
}

// CheckoutLink is a hosted checkout session.
type CheckoutLink struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// PortalLink is a pre-authenticated customer portal session.
type PortalLink struct {
	URL       string
	ExpiresAt time.Time
}

// WebhookEventType is the normalized processor event consumed by the core.
// Each provider maps its own event names onto these.
type WebhookEventType string

const (
	// WebhookCheckoutCompleted reports a settled checkout; consumed as an
	// upgrade transition.
	WebhookCheckoutCompleted WebhookEventType = "checkout_completed"
	// WebhookSubscriptionUpdated reconciles status and period fields.
	WebhookSubscriptionUpdated WebhookEventType = "subscription_updated"
	// WebhookSubscriptionDeleted forces the subscription to canceled.
	WebhookSubscriptionDeleted WebhookEventType = "subscription_deleted"
	// WebhookPaymentFailed is consumed as markPaymentFailed.
	WebhookPaymentFailed WebhookEventType = "payment_failed"
	// WebhookPaymentSucceeded is consumed as recoverPayment.
	WebhookPaymentSucceeded WebhookEventType = "payment_succeeded"
)

// WebhookEvent is a verified, normalized processor event.
type WebhookEvent struct {
	Type           WebhookEventType
	ProviderEvent  string // original provider event name
	SubscriptionID string // provider's subscription ID
	UserID         string // our user ID, from processor metadata
	PlanID         PlanID
	Status         Status     // provider-reported status, when present
	PeriodEnd      *time.Time // provider-reported period end, when present
	Raw            map[string]any
}
