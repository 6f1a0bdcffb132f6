package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taskflowhq/taskflow/pkg/subscription"
)

type handlers struct {
	svc *subscription.Service
	log *slog.Logger
}

func newHandlers(svc *subscription.Service, log *slog.Logger) *handlers {
	if log == nil {
		log = slog.Default()
	}
	return &handlers{svc: svc, log: log.With("component", "billing-http")}
}

type checkoutRequest struct {
	PlanID string `json:"planId"`
	Email  string `json:"email"`
	UserID string `json:"userId"`
	// AllowFallback opts in to a local upgrade when the processor is
	// unavailable. The resulting analytics event carries fallback=true.
	AllowFallback bool   `json:"allowFallback,omitempty"`
	SuccessURL    string `json:"successUrl,omitempty"`
	CancelURL     string `json:"cancelUrl,omitempty"`
}

// createCheckout validates the request and opens a hosted checkout session.
// Malformed or incomplete requests are rejected before any processor call.
func (h *handlers) createCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.PlanID == "" || req.Email == "" || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	link, err := h.svc.CreateCheckoutLink(r.Context(), userID, subscription.PlanID(req.PlanID), subscription.CheckoutOptions{
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err == nil {
		respondJSON(w, http.StatusOK, map[string]any{
			"url":       link.URL,
			"sessionId": link.SessionID,
		})
		return
	}

	switch {
	case errors.Is(err, subscription.ErrPlanNotFound):
		respondError(w, http.StatusBadRequest, "invalid plan")
	case errors.Is(err, subscription.ErrProviderError) && req.AllowFallback:
		// Degraded mode: apply the local transition and say so explicitly.
		// The subscription is never silently promoted; the caller asked for
		// the fallback and the emitted event is flagged.
		sub, fbErr := h.svc.FallbackUpgrade(r.Context(), userID, subscription.PlanID(req.PlanID))
		if fbErr != nil {
			h.log.ErrorContext(r.Context(), "fallback upgrade failed", slog.String("error", fbErr.Error()))
			respondError(w, http.StatusBadGateway, "payment processor unavailable")
			return
		}
		h.log.WarnContext(r.Context(), "checkout degraded to local fallback upgrade",
			slog.String("user_id", req.UserID), slog.String("plan_id", req.PlanID))
		respondJSON(w, http.StatusOK, map[string]any{
			"fallback": true,
			"status":   sub.Status(),
		})
	case errors.Is(err, subscription.ErrProviderError):
		respondError(w, http.StatusBadGateway, "payment processor unavailable")
	default:
		h.log.ErrorContext(r.Context(), "checkout failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to create checkout session")
	}
}

type portalRequest struct {
	UserID string `json:"userId"`
}

func (h *handlers) createPortal(w http.ResponseWriter, r *http.Request) {
	var req portalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	link, err := h.svc.CustomerPortalLink(r.Context(), userID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, map[string]any{"url": link.URL})
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		respondError(w, http.StatusNotFound, "subscription not found")
	case errors.Is(err, subscription.ErrProviderError):
		respondError(w, http.StatusBadGateway, "payment processor unavailable")
	default:
		h.log.ErrorContext(r.Context(), "portal link failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to create portal session")
	}
}

// handleWebhook feeds a processor event into the lifecycle. The signature is
// verified inside the service's provider; a bad signature applies nothing.
func (h *handlers) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	signature := r.Header.Get("Paddle-Signature")
	if signature == "" {
		respondError(w, http.StatusBadRequest, "missing signature")
		return
	}

	if err := h.svc.HandleWebhook(r.Context(), payload, signature); err != nil {
		if errors.Is(err, subscription.ErrWebhookVerificationFailed) {
			respondError(w, http.StatusBadRequest, "invalid signature")
			return
		}
		h.log.ErrorContext(r.Context(), "webhook handling failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "webhook handler failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"received": true})
}

type subscriptionResponse struct {
	PlanID            string     `json:"planId"`
	Status            string     `json:"status"`
	TrialEndsAt       *time.Time `json:"trialEndsAt,omitempty"`
	CurrentPeriodEnd  time.Time  `json:"currentPeriodEnd"`
	CancelAtPeriodEnd bool       `json:"cancelAtPeriodEnd"`
	PaymentFailedAt   *time.Time `json:"paymentFailedAt,omitempty"`
	PaymentRetryCount int        `json:"paymentRetryCount,omitempty"`
}

// getSubscription returns the record after the lazy-expiry read path ran, so
// clients never observe a stale trialing status.
func (h *handlers) getSubscription(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user ID")
		return
	}

	sub, err := h.svc.Get(r.Context(), userID)
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, subscriptionResponse{
			PlanID:            string(sub.PlanID),
			Status:            string(sub.Status()),
			TrialEndsAt:       sub.TrialEndsAt(),
			CurrentPeriodEnd:  sub.CurrentPeriodEnd,
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd(),
			PaymentFailedAt:   sub.PaymentFailedAt(),
			PaymentRetryCount: sub.PaymentRetryCount(),
		})
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		respondError(w, http.StatusNotFound, "subscription not found")
	default:
		h.log.ErrorContext(r.Context(), "subscription read failed", slog.String("error", err.Error()))
		respondError(w, http.StatusInternalServerError, "failed to load subscription")
	}
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
