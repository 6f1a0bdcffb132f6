package subscription

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Internal tests: the flat record shape never leaves the package, but its
// validation is the last line of defense against corrupt rows.

func validRecord(status Status) record {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := record{
		UserID:           uuid.New(),
		PlanID:           PlanPro,
		Status:           status,
		CurrentPeriodEnd: now.AddDate(0, 1, 0),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	switch status {
	case StatusTrialing:
		end := now.AddDate(0, 0, 14)
		r.TrialEndsAt = &end
		r.CurrentPeriodEnd = end
	case StatusPastDue:
		failed := now.AddDate(0, 0, 30)
		r.PaymentFailedAt = &failed
		r.PaymentRetryCount = 1
	case StatusCanceling:
		r.CancelAtPeriodEnd = true
	}
	return r
}

func TestRecordRoundTrip(t *testing.T) {
	t.Parallel()

	for _, status := range []Status{StatusTrialing, StatusActive, StatusPastDue, StatusCanceling, StatusCanceled} {
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()

			r := validRecord(status)
			sub, err := r.toSubscription()
			require.NoError(t, err)
			assert.Equal(t, status, sub.Status())
			assert.Equal(t, r, toRecord(sub))
		})
	}
}

func TestRecordValidation(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*record)
	}{
		{"trialing without trial end", func(r *record) {
			*r = validRecord(StatusTrialing)
			r.TrialEndsAt = nil
		}},
		{"trial end on active", func(r *record) {
			*r = validRecord(StatusActive)
			end := r.CurrentPeriodEnd
			r.TrialEndsAt = &end
		}},
		{"past due without failure time", func(r *record) {
			*r = validRecord(StatusPastDue)
			r.PaymentFailedAt = nil
		}},
		{"past due with zero retries", func(r *record) {
			*r = validRecord(StatusPastDue)
			r.PaymentRetryCount = 0
		}},
		{"failure fields on active", func(r *record) {
			*r = validRecord(StatusActive)
			r.PaymentRetryCount = 2
		}},
		{"cancel flag without canceling status", func(r *record) {
			*r = validRecord(StatusActive)
			r.CancelAtPeriodEnd = true
		}},
		{"canceling without cancel flag", func(r *record) {
			*r = validRecord(StatusCanceling)
			r.CancelAtPeriodEnd = false
		}},
		{"unknown status", func(r *record) {
			*r = validRecord(StatusActive)
			r.Status = "paused"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var r record
			tc.mutate(&r)
			_, err := r.toSubscription()
			assert.ErrorIs(t, err, ErrCorruptRecord)
		})
	}
}
