package users

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/models"
)

// DefaultClientKey is the attempt key used when no client identity is known.
// Every client shares it unless per-address keys are enabled.
const DefaultClientKey = "current-ip"

type clientKeyCtx struct{}

// WithClientKey scopes login attempt counting to key.
func WithClientKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, clientKeyCtx{}, key)
}

// ClientKey returns the attempt key for ctx.
func ClientKey(ctx context.Context) string {
	if ctx != nil {
		if key, ok := ctx.Value(clientKeyCtx{}).(string); ok && key != "" {
			return key
		}
	}
	return DefaultClientKey
}

// AttemptStore persists consecutive login failures per client key.
type AttemptStore interface {
	Get(ctx context.Context, key string) (models.LoginAttempt, error)
	RecordFailure(ctx context.Context, key string, at time.Time) (models.LoginAttempt, error)
	Reset(ctx context.Context, key string) error
}

// MemoryAttemptStore keeps counters in process memory.
type MemoryAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]models.LoginAttempt
}

func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{attempts: make(map[string]models.LoginAttempt)}
}

func (s *MemoryAttemptStore) Get(_ context.Context, key string) (models.LoginAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[key]
	if !ok {
		return models.LoginAttempt{Key: key}, nil
	}
	return attempt, nil
}

func (s *MemoryAttemptStore) RecordFailure(_ context.Context, key string, at time.Time) (models.LoginAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt := s.attempts[key]
	attempt.Key = key
	attempt.Count++
	attempt.Timestamp = at.UnixMilli()
	s.attempts[key] = attempt
	return attempt, nil
}

// Reset zeroes the counter; the last failure timestamp is kept.
func (s *MemoryAttemptStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if attempt, ok := s.attempts[key]; ok {
		attempt.Count = 0
		s.attempts[key] = attempt
	}
	return nil
}

// RateLimitPolicy is the lockout rule: MaxFailures failures lock the key for
// Lockout, measured from the most recent failure.
type RateLimitPolicy struct {
	MaxFailures int
	Lockout     time.Duration
}

// DefaultRateLimitPolicy is three strikes, five minutes.
func DefaultRateLimitPolicy() RateLimitPolicy {
	return RateLimitPolicy{MaxFailures: 3, Lockout: 5 * time.Minute}
}

// RateLimitStatus reports whether logins are currently refused.
type RateLimitStatus struct {
	Limited       bool          `json:"limited"`
	RemainingTime time.Duration `json:"-"`
	RemainingMS   int64         `json:"remainingTime"`
}

// Evaluate applies the policy to attempt at now.
func (p RateLimitPolicy) Evaluate(attempt models.LoginAttempt, now time.Time) RateLimitStatus {
	if attempt.Count < p.MaxFailures {
		return RateLimitStatus{}
	}
	elapsed := now.Sub(time.UnixMilli(attempt.Timestamp))
	if elapsed < p.Lockout {
		remaining := p.Lockout - elapsed
		return RateLimitStatus{Limited: true, RemainingTime: remaining, RemainingMS: remaining.Milliseconds()}
	}
	return RateLimitStatus{}
}
