package analytics_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskflowhq/taskflow/pkg/analytics"
)

func TestNewEvent(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	event := analytics.NewEvent(userID, analytics.EventTrialStarted, analytics.Properties{"planId": "pro"})

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, userID, event.UserID)
	assert.Equal(t, analytics.EventTrialStarted, event.Name)
	assert.Equal(t, "pro", event.Properties["planId"])
	assert.False(t, event.Timestamp.IsZero())
}

func TestMemoryTracker(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("records events in order", func(t *testing.T) {
		t.Parallel()
		tracker := analytics.NewMemoryTracker()
		userID := uuid.New()

		tracker.Track(ctx, userID, analytics.EventTrialStarted, nil)
		tracker.Track(ctx, userID, analytics.EventSubscriptionUpgraded, analytics.Properties{"toPlan": "pro"})

		events := tracker.Events()
		require.Len(t, events, 2)
		assert.Equal(t, analytics.EventTrialStarted, events[0].Name)
		assert.Equal(t, analytics.EventSubscriptionUpgraded, events[1].Name)
	})

	t.Run("filters by name", func(t *testing.T) {
		t.Parallel()
		tracker := analytics.NewMemoryTracker()
		userID := uuid.New()

		tracker.Track(ctx, userID, analytics.EventPaymentFailed, nil)
		tracker.Track(ctx, userID, analytics.EventPaymentRecovered, nil)
		tracker.Track(ctx, userID, analytics.EventPaymentFailed, nil)

		assert.Len(t, tracker.Named(analytics.EventPaymentFailed), 2)
		assert.Len(t, tracker.Named(analytics.EventPaymentRecovered), 1)
		assert.Empty(t, tracker.Named(analytics.EventTrialExpired))
	})

	t.Run("reset discards recorded events", func(t *testing.T) {
		t.Parallel()
		tracker := analytics.NewMemoryTracker()
		tracker.Track(ctx, uuid.New(), analytics.EventTrialStarted, nil)
		tracker.Reset()
		assert.Empty(t, tracker.Events())
	})

	t.Run("concurrent tracking is safe", func(t *testing.T) {
		t.Parallel()
		tracker := analytics.NewMemoryTracker()
		done := make(chan struct{})
		for range 10 {
			go func() {
				defer func() { done <- struct{}{} }()
				for range 100 {
					tracker.Track(ctx, uuid.New(), analytics.EventTrialStarted, nil)
				}
			}()
		}
		for range 10 {
			<-done
		}
		assert.Len(t, tracker.Events(), 1000)
	})
}
