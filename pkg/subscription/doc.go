// Package subscription implements TaskFlow's billing core: the subscription
// lifecycle state machine, the plan catalog, the trial/billing notification
// policy and the cancellation retention flow.
//
// A subscription moves among five states - trialing, active, past_due,
// canceling and canceled - through explicit transitions (Upgrade, Cancel,
// Reactivate, MarkPaymentFailed, RecoverPayment) plus a lazy trial-expiry
// derivation evaluated on every read. Per-state payloads are modeled as a
// sealed State sum so fields like the trial end or payment retry count
// cannot exist outside the status that owns them.
//
// The Service ties the state machine to a Store, a BillingProvider (Paddle
// implementation included) and the analytics sink. Processor webhooks are
// signature-verified by the provider and mapped onto the same transitions
// user actions use, so preconditions are enforced uniformly no matter who
// calls.
package subscription
