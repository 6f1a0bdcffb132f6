package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	// PriceIDs maps catalog plan IDs to Paddle price IDs (pri_xxx).
	PriceIDs map[string]string `env:"PADDLE_PRICE_IDS"`
}

// PaddleProvider implements BillingProvider on top of the Paddle SDK.
// Webhook payloads are signature-verified with Paddle's webhook verifier
// before any event is surfaced to the core.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	priceIDs map[string]string
}

func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrProviderError)
	}
	if cfg.WebhookSecret == "" {
		return nil, fmt.Errorf("%w: missing webhook secret", ErrProviderError)
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: invalid environment %q", ErrProviderError, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderError, err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		priceIDs: cfg.PriceIDs,
	}, nil
}

func (p *PaddleProvider) priceID(planID PlanID) string {
	if id, ok := p.priceIDs[string(planID)]; ok {
		return id
	}
	return string(planID)
}

func (p *PaddleProvider) planID(priceID string) PlanID {
	for plan, price := range p.priceIDs {
		if price == priceID {
			return PlanID(plan)
		}
	}
	return PlanID(priceID)
}

// CreateCheckoutLink opens a hosted Paddle checkout for the plan. The user
// ID travels in custom data so webhooks can be routed back to the account.
func (p *PaddleProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.PlanID == "" {
		return nil, ErrMissingPlanID
	}
	if req.UserID == "" {
		return nil, ErrMissingUserID
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  p.priceID(req.PlanID),
		Quantity: 1,
	})

	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"user_id": req.UserID,
			"plan_id": string(req.PlanID),
		},
	}
	if req.Email != "" {
		txReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, fmt.Errorf("%w: create transaction: %w", ErrProviderError, err)
	}

	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *tx.Checkout.URL,
		SessionID: tx.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// GetCustomerPortalLink opens a Paddle customer portal session. No
// subscription state changes until the resulting webhooks arrive.
func (p *PaddleProvider) GetCustomerPortalLink(ctx context.Context, sub *Subscription) (*PortalLink, error) {
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}

	sessionReq := &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: sub.UserID.String(),
	}
	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, sessionReq)
	if err != nil {
		return nil, fmt.Errorf("%w: create portal session: %w", ErrProviderError, err)
	}

	if session.URLs.General.Overview == "" {
		return nil, ErrNoPortalURL
	}

	return &PortalLink{
		URL:       session.URLs.General.Overview,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// ParseWebhook verifies the Paddle signature and normalizes the event.
// A failed verification returns ErrWebhookVerificationFailed and no event.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderError, err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var envelope struct {
		EventID   string         `json:"event_id"`
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("%w: parse payload: %w", ErrProviderError, err)
	}

	event := &WebhookEvent{
		Type:          mapPaddleEventType(envelope.EventType),
		ProviderEvent: envelope.EventType,
		Raw:           envelope.Data,
	}

	if id, ok := envelope.Data["id"].(string); ok {
		event.SubscriptionID = id
	}
	if subID, ok := envelope.Data["subscription_id"].(string); ok {
		event.SubscriptionID = subID
	}
	if status, ok := envelope.Data["status"].(string); ok {
		event.Status = mapPaddleStatus(status)
	}
	if custom, ok := envelope.Data["custom_data"].(map[string]any); ok {
		if userID, ok := custom["user_id"].(string); ok {
			event.UserID = userID
		}
		if planID, ok := custom["plan_id"].(string); ok {
			event.PlanID = PlanID(planID)
		}
	}
	if event.PlanID == "" {
		event.PlanID = p.planIDFromItems(envelope.Data)
	}
	if raw, ok := envelope.Data["current_billing_period"].(map[string]any); ok {
		if ends, ok := raw["ends_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, ends); err == nil {
				event.PeriodEnd = &t
			}
		}
	}

	return event, nil
}

func (p *PaddleProvider) planIDFromItems(data map[string]any) PlanID {
	items, ok := data["items"].([]any)
	if !ok || len(items) == 0 {
		return ""
	}
	item, ok := items[0].(map[string]any)
	if !ok {
		return ""
	}
	if priceID, ok := item["price_id"].(string); ok {
		return p.planID(priceID)
	}
	if price, ok := item["price"].(map[string]any); ok {
		if priceID, ok := price["id"].(string); ok {
			return p.planID(priceID)
		}
	}
	return ""
}

func mapPaddleEventType(name string) WebhookEventType {
	switch name {
	case "transaction.completed", "checkout.session.completed":
		return WebhookCheckoutCompleted
	case "subscription.created", "subscription.updated", "subscription.resumed":
		return WebhookSubscriptionUpdated
	case "subscription.canceled", "subscription.deleted":
		return WebhookSubscriptionDeleted
	case "transaction.payment_failed", "invoice.payment_failed":
		return WebhookPaymentFailed
	case "transaction.payment_succeeded", "invoice.payment_succeeded":
		return WebhookPaymentSucceeded
	default:
		return WebhookEventType(name)
	}
}

func mapPaddleStatus(status string) Status {
	switch strings.ToLower(status) {
	case "trialing":
		return StatusTrialing
	case "active":
		return StatusActive
	case "past_due":
		return StatusPastDue
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return Status(status)
	}
}
