// Package billing exposes the subscription core over HTTP: checkout
// initiation, customer portal links, the processor webhook receiver and the
// subscription read endpoint. It is deliberately thin glue; all state rules
// live in pkg/subscription.
package billing

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/taskflowhq/taskflow/pkg/subscription"
)

// Router mounts the billing endpoints.
//
//	r := chi.NewRouter()
//	r.Mount("/billing", billing.Router(svc, log))
func Router(svc *subscription.Service, log *slog.Logger) chi.Router {
	h := newHandlers(svc, log)

	r := chi.NewRouter()
	r.Post("/checkout", h.createCheckout)
	r.Post("/portal", h.createPortal)
	r.Post("/webhooks/processor", h.handleWebhook)
	r.Get("/subscriptions/{userID}", h.getSubscription)
	return r
}
