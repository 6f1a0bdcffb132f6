package analytics

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// SlogTracker writes events to a structured logger. Useful as a default sink
// before a real pipeline is wired up.
type SlogTracker struct {
	log *slog.Logger
}

func NewSlogTracker(log *slog.Logger) *SlogTracker {
	if log == nil {
		log = slog.Default()
	}
	return &SlogTracker{log: log.With("component", "analytics")}
}

func (t *SlogTracker) Track(ctx context.Context, userID uuid.UUID, name EventName, props Properties) {
	t.log.InfoContext(ctx, "analytics event",
		slog.String("event", string(name)),
		slog.String("user_id", userID.String()),
		slog.Any("properties", props),
	)
}
