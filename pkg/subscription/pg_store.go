package subscription

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGSchema is the DDL for the subscriptions table. Applied by the embedding
// application's migration step.
const PGSchema = `
CREATE TABLE IF NOT EXISTS subscriptions (
    user_id              UUID PRIMARY KEY,
    plan_id              TEXT NOT NULL,
    status               TEXT NOT NULL,
    trial_ends_at        TIMESTAMPTZ,
    current_period_end   TIMESTAMPTZ NOT NULL,
    cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
    payment_failed_at    TIMESTAMPTZ,
    payment_retry_count  INTEGER NOT NULL DEFAULT 0,
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL
);`

// PGStore persists subscriptions in PostgreSQL via pgx.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	const query = `
		SELECT user_id, plan_id, status, trial_ends_at, current_period_end,
		       cancel_at_period_end, payment_failed_at, payment_retry_count,
		       created_at, updated_at
		FROM subscriptions WHERE user_id = $1`

	var r record
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&r.UserID, &r.PlanID, &r.Status, &r.TrialEndsAt, &r.CurrentPeriodEnd,
		&r.CancelAtPeriodEnd, &r.PaymentFailedAt, &r.PaymentRetryCount,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("query subscription: %w", err)
	}

	return r.toSubscription()
}

func (s *PGStore) Save(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.UserID == uuid.Nil {
		return ErrMissingUserID
	}

	const query = `
		INSERT INTO subscriptions (
			user_id, plan_id, status, trial_ends_at, current_period_end,
			cancel_at_period_end, payment_failed_at, payment_retry_count,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO UPDATE SET
			plan_id              = EXCLUDED.plan_id,
			status               = EXCLUDED.status,
			trial_ends_at        = EXCLUDED.trial_ends_at,
			current_period_end   = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			payment_failed_at    = EXCLUDED.payment_failed_at,
			payment_retry_count  = EXCLUDED.payment_retry_count,
			updated_at           = EXCLUDED.updated_at`

	r := toRecord(sub)
	_, err := s.pool.Exec(ctx, query,
		r.UserID, r.PlanID, r.Status, r.TrialEndsAt, r.CurrentPeriodEnd,
		r.CancelAtPeriodEnd, r.PaymentFailedAt, r.PaymentRetryCount,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}
