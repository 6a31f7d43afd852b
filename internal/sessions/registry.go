// Package sessions keeps one storefront per browser session.
package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/bazarche-storefront/internal/storefront"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/metrics"
	"github.com/google/uuid"
)

// Factory builds the storefront of a new session.
type Factory func(ctx context.Context, id uuid.UUID) (*storefront.Storefront, error)

type Params struct {
	Logger  *logger.Logger
	Factory Factory
	// IdleTTL is how long an untouched session survives a sweep.
	IdleTTL time.Duration
	Metrics *metrics.StorefrontMetrics
	Now     func() time.Time
}

type entry struct {
	storefront *storefront.Storefront
	lastSeen   time.Time
}

// Registry maps session ids to their storefronts.
type Registry struct {
	logg    *logger.Logger
	factory Factory
	idleTTL time.Duration
	metrics *metrics.StorefrontMetrics
	now     func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*entry
	closed   bool
}

func NewRegistry(params Params) (*Registry, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Factory == nil {
		return nil, fmt.Errorf("storefront factory required")
	}
	if params.IdleTTL <= 0 {
		return nil, fmt.Errorf("session idle ttl must be positive")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Registry{
		logg:     params.Logger,
		factory:  params.Factory,
		idleTTL:  params.IdleTTL,
		metrics:  params.Metrics,
		now:      params.Now,
		sessions: make(map[uuid.UUID]*entry),
	}, nil
}

// Create starts a session with a fresh storefront.
func (r *Registry) Create(ctx context.Context) (uuid.UUID, *storefront.Storefront, error) {
	id := uuid.New()
	sf, err := r.factory(r.logg.WithSessionID(ctx, id.String()), id)
	if err != nil {
		return uuid.Nil, nil, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		sf.Close()
		return uuid.Nil, nil, fmt.Errorf("session registry closed")
	}
	r.sessions[id] = &entry{storefront: sf, lastSeen: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetSessions(n)
	r.logg.Info(r.logg.WithSessionID(ctx, id.String()), "storefront session created")
	return id, sf, nil
}

// Get returns the session's storefront and marks it as seen.
func (r *Registry) Get(id uuid.UUID) (*storefront.Storefront, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = r.now()
	return e.storefront, true
}

// Resolve returns the storefront for id, creating a new session when id is
// unknown or expired. created reports whether a new id was issued.
func (r *Registry) Resolve(ctx context.Context, id uuid.UUID) (uuid.UUID, *storefront.Storefront, bool, error) {
	if id != uuid.Nil {
		if sf, ok := r.Get(id); ok {
			return id, sf, false, nil
		}
	}
	newID, sf, err := r.Create(ctx)
	if err != nil {
		return uuid.Nil, nil, false, err
	}
	return newID, sf, true, nil
}

// Drop closes and forgets a session.
func (r *Registry) Drop(id uuid.UUID) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if ok {
		e.storefront.Close()
		r.metrics.SetSessions(n)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the ttl.
func (r *Registry) Sweep(ctx context.Context) error {
	cutoff := r.now().Add(-r.idleTTL)
	var expired []*storefront.Storefront

	r.mu.Lock()
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.storefront)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	for _, sf := range expired {
		sf.Close()
	}
	r.metrics.SetSessions(n)
	if len(expired) > 0 {
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"expired":   len(expired),
			"remaining": n,
		}), "idle storefront sessions swept")
	}
	return nil
}

// Close shuts down every session. Create fails afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	all := make([]*storefront.Storefront, 0, len(r.sessions))
	for _, e := range r.sessions {
		all = append(all, e.storefront)
	}
	r.sessions = make(map[uuid.UUID]*entry)
	r.mu.Unlock()

	for _, sf := range all {
		sf.Close()
	}
	r.metrics.SetSessions(0)
}
