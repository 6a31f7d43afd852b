package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/redis/go-redis/v9"
)

// DefaultAttemptRetention bounds how long an idle failure counter survives.
// Counters outlive the lockout window so that a failure after the window
// re-locks the key immediately, like the in-memory store.
const DefaultAttemptRetention = 24 * time.Hour

// AttemptStore keeps login failure counters in redis so every replica sees
// the same lockout state.
type AttemptStore struct {
	client    *Client
	retention time.Duration
}

func NewAttemptStore(client *Client, retention time.Duration) *AttemptStore {
	if retention <= 0 {
		retention = DefaultAttemptRetention
	}
	return &AttemptStore{client: client, retention: retention}
}

func (s *AttemptStore) countKey(key string) string {
	return s.client.LoginAttemptKey(key, "count")
}

func (s *AttemptStore) timestampKey(key string) string {
	return s.client.LoginAttemptKey(key, "ts")
}

// Get returns the current counter; a missing key is a zero attempt.
func (s *AttemptStore) Get(ctx context.Context, key string) (models.LoginAttempt, error) {
	attempt := models.LoginAttempt{Key: key}
	count, err := s.client.Get(ctx, s.countKey(key))
	if errors.Is(err, redis.Nil) {
		return attempt, nil
	}
	if err != nil {
		return attempt, err
	}
	if attempt.Count, err = strconv.Atoi(count); err != nil {
		return attempt, err
	}
	ts, err := s.client.Get(ctx, s.timestampKey(key))
	if errors.Is(err, redis.Nil) {
		return attempt, nil
	}
	if err != nil {
		return attempt, err
	}
	attempt.Timestamp, err = strconv.ParseInt(ts, 10, 64)
	return attempt, err
}

// RecordFailure increments the counter and stamps the failure time. Both keys
// expire retention after the latest failure.
func (s *AttemptStore) RecordFailure(ctx context.Context, key string, at time.Time) (models.LoginAttempt, error) {
	count, err := s.client.IncrWithTTL(ctx, s.countKey(key), s.retention)
	if err != nil {
		return models.LoginAttempt{Key: key}, err
	}
	stamp := at.UnixMilli()
	if err := s.client.Set(ctx, s.timestampKey(key), stamp, s.retention); err != nil {
		return models.LoginAttempt{Key: key}, err
	}
	return models.LoginAttempt{Key: key, Count: int(count), Timestamp: stamp}, nil
}

// Reset drops the counter after a successful login.
func (s *AttemptStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.countKey(key), s.timestampKey(key))
}
