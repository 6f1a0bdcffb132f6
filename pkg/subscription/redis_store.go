package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "taskflow:subscription:"

// RedisStore persists subscriptions as JSON values in Redis. Suitable for
// deployments where billing state lives alongside session data.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	raw, err := s.client.Get(ctx, redisKeyPrefix+userID.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptRecord, err)
	}
	return r.toSubscription()
}

func (s *RedisStore) Save(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.UserID == uuid.Nil {
		return ErrMissingUserID
	}

	raw, err := json.Marshal(toRecord(sub))
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+sub.UserID.String(), raw, 0).Err(); err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}
