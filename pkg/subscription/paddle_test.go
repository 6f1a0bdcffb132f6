package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapPaddleEventType(t *testing.T) {
	t.Parallel()

	cases := map[string]WebhookEventType{
		"transaction.completed":         WebhookCheckoutCompleted,
		"checkout.session.completed":    WebhookCheckoutCompleted,
		"subscription.created":          WebhookSubscriptionUpdated,
		"subscription.updated":          WebhookSubscriptionUpdated,
		"subscription.resumed":          WebhookSubscriptionUpdated,
		"subscription.canceled":         WebhookSubscriptionDeleted,
		"subscription.deleted":          WebhookSubscriptionDeleted,
		"transaction.payment_failed":    WebhookPaymentFailed,
		"invoice.payment_failed":        WebhookPaymentFailed,
		"transaction.payment_succeeded": WebhookPaymentSucceeded,
		"invoice.payment_succeeded":     WebhookPaymentSucceeded,
		// Unknown events pass through and are ignored by the handler.
		"adjustment.created": WebhookEventType("adjustment.created"),
	}
	for name, want := range cases {
		assert.Equal(t, want, mapPaddleEventType(name), name)
	}
}

func TestMapPaddleStatus(t *testing.T) {
	t.Parallel()

	cases := map[string]Status{
		"trialing":  StatusTrialing,
		"active":    StatusActive,
		"past_due":  StatusPastDue,
		"canceled":  StatusCanceled,
		"cancelled": StatusCanceled,
		"ACTIVE":    StatusActive,
		"paused":    Status("paused"),
	}
	for status, want := range cases {
		assert.Equal(t, want, mapPaddleStatus(status), status)
	}
}

func TestPaddlePriceIDMapping(t *testing.T) {
	t.Parallel()

	p := &PaddleProvider{priceIDs: map[string]string{
		"starter": "pri_starter_01",
		"pro":     "pri_pro_01",
	}}

	assert.Equal(t, "pri_pro_01", p.priceID(PlanPro))
	assert.Equal(t, PlanPro, p.planID("pri_pro_01"))

	// Unmapped plans fall through untouched so sandbox setups work without a
	// full price table.
	assert.Equal(t, "enterprise", p.priceID(PlanEnterprise))
	assert.Equal(t, PlanID("pri_unknown"), p.planID("pri_unknown"))
}

func TestPlanIDFromItems(t *testing.T) {
	t.Parallel()

	p := &PaddleProvider{priceIDs: map[string]string{"pro": "pri_pro_01"}}

	assert.Equal(t, PlanPro, p.planIDFromItems(map[string]any{
		"items": []any{map[string]any{"price_id": "pri_pro_01"}},
	}))
	assert.Equal(t, PlanPro, p.planIDFromItems(map[string]any{
		"items": []any{map[string]any{"price": map[string]any{"id": "pri_pro_01"}}},
	}))
	assert.Equal(t, PlanID(""), p.planIDFromItems(map[string]any{"items": []any{}}))
	assert.Equal(t, PlanID(""), p.planIDFromItems(map[string]any{}))
}
