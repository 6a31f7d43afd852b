package giftcodes

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type session struct {
	mu   sync.Mutex
	user *models.User
}

func (s *session) Current() (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return models.User{}, false
	}
	return *s.user, true
}

func (s *session) signIn(id string) {
	s.mu.Lock()
	s.user = &models.User{ID: id, Username: "u" + id}
	s.mu.Unlock()
}

type harness struct {
	c       *Container
	session *session
	applied []models.GiftCode
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{session: &session{}}
	c, err := New(Options{
		Session:  h.session,
		OnApply:  func(code models.GiftCode) { h.applied = append(h.applied, code) },
		Reporter: notify.Reporter{},
		Now:      func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) },
		Seed:     DefaultCodes(),
	})
	require.NoError(t, err)
	h.c = c
	return h
}

func TestNewRequiresDependencies(t *testing.T) {
	if _, err := New(Options{OnApply: func(models.GiftCode) {}}); err == nil {
		t.Fatalf("expected error for missing session")
	}
	if _, err := New(Options{Session: &session{}}); err == nil {
		t.Fatalf("expected error for missing apply callback")
	}
}

func TestValidateSpec(t *testing.T) {
	cases := []struct {
		name string
		spec Spec
		ok   bool
	}{
		{"valid percentage", Spec{Code: "OFF5", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(5)}, true},
		{"valid fixed", Spec{Code: "TOMAN", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(500_000)}, true},
		{"blank code", Spec{Code: " ", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(1)}, false},
		{"bad type", Spec{Code: "X", DiscountType: "bogus", DiscountValue: decimal.NewFromInt(1)}, false},
		{"zero value", Spec{Code: "X", DiscountType: models.DiscountFixed, DiscountValue: decimal.Zero}, false},
		{"over hundred percent", Spec{Code: "X", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(101)}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateSpec(tc.spec)
			if tc.ok && err != nil {
				t.Fatalf("expected valid spec, got %v", err)
			}
			if !tc.ok && !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestAddRejectsDuplicateCode(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.c.Add(ctx, Spec{Code: "WELCOME10", DiscountType: models.DiscountPercentage, DiscountValue: decimal.NewFromInt(5)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	// Matching is exact, so a different case is a different code.
	created, err := h.c.Add(ctx, Spec{Code: "welcome10", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), created.CreatedAt)
	assert.Len(t, h.c.List(), 3)
}

func TestSingleUseCodeIsConsumedOnApply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.c.Add(ctx, Spec{Code: "ONCE", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(100)})
	require.NoError(t, err)

	h.session.signIn("7")
	applied, err := h.c.FindAndApply(ctx, "ONCE")
	require.NoError(t, err)
	assert.Equal(t, "ONCE", applied.Code)
	require.Len(t, h.applied, 1)

	h.session.signIn("8")
	_, err = h.c.FindAndApply(ctx, "ONCE")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	_, err = h.c.Apply(ctx, applied)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Len(t, h.applied, 1)

	for _, g := range h.c.List() {
		if g.Code == "ONCE" {
			require.True(t, g.IsUsed)
			require.NotNil(t, g.UsedBy)
			assert.Equal(t, "7", *g.UsedBy)
		}
	}
}

func TestAnonymousApplyDoesNotConsume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.c.Add(ctx, Spec{Code: "ONCE", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(100)})
	require.NoError(t, err)

	_, err = h.c.FindAndApply(ctx, "ONCE")
	require.NoError(t, err)
	_, err = h.c.FindAndApply(ctx, "ONCE")
	require.NoError(t, err)
}

func TestGlobalCodeIsReusable(t *testing.T) {
	h := newHarness(t)
	h.session.signIn("1")
	for i := 0; i < 5; i++ {
		_, err := h.c.FindAndApply(context.Background(), "SUMMER20")
		require.NoError(t, err)
	}
	assert.Len(t, h.applied, 5)
	for _, g := range h.c.List() {
		assert.False(t, g.IsUsed)
	}
}

func TestConcurrentApplyConsumesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.c.Add(ctx, Spec{Code: "RACE", DiscountType: models.DiscountFixed, DiscountValue: decimal.NewFromInt(1)})
	require.NoError(t, err)
	h.session.signIn("1")

	var mu sync.Mutex
	h.c.onApply = func(code models.GiftCode) {
		mu.Lock()
		h.applied = append(h.applied, code)
		mu.Unlock()
	}

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.c.FindAndApply(ctx, "RACE"); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestRemove(t *testing.T) {
	h := newHarness(t)
	inbox := notify.NewInbox(0)
	h.c.reporter = notify.Reporter{Sink: inbox}

	h.c.Remove(context.Background(), "1")
	h.c.Remove(context.Background(), "missing")
	assert.Len(t, h.c.List(), 1)
	assert.Len(t, inbox.Drain(), 1)

	_, err := h.c.FindAndApply(context.Background(), "WELCOME10")
	assert.Error(t, err)
}
