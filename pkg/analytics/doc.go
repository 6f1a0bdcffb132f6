// Package analytics delivers product lifecycle events to a pluggable sink.
//
// The billing core emits named events (trial_started, payment_failed, ...)
// with a property bag. Delivery is fire-and-forget: trackers never fail the
// caller's operation and no acknowledgment is awaited. Sinks include an
// in-memory tracker for tests, a slog-backed tracker, and a Kafka producer.
package analytics
