package purchases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	inputs []backend.PurchaseInput
	list   []models.Purchase
	fail   error
}

func (f *fakeBackend) ListPurchases(context.Context) ([]models.Purchase, error) {
	return f.list, f.fail
}

func (f *fakeBackend) CreatePurchase(_ context.Context, input backend.PurchaseInput) (models.Purchase, error) {
	if f.fail != nil {
		return models.Purchase{}, f.fail
	}
	f.inputs = append(f.inputs, input)
	return models.Purchase{ID: "501", CreatedAt: time.Date(2024, 4, 4, 12, 0, 0, 0, time.UTC)}, nil
}

type session struct{ user *models.User }

func (s *session) Current() (models.User, bool) {
	if s.user == nil {
		return models.User{}, false
	}
	return s.user.Clone(), true
}

type addresses map[string]models.ShippingAddress

func (a addresses) Get(id string) (models.ShippingAddress, bool) {
	addr, ok := a[id]
	return addr, ok
}

func items() []models.CartItem {
	return []models.CartItem{
		{Product: models.Product{ID: "1", Name: "A", Price: 7_500_000, DiscountedPrice: 7_200_000}, Quantity: 1},
		{Product: models.Product{ID: "2", Name: "B", Price: 9_300_000, DiscountedPrice: 9_300_000}, Quantity: 2},
	}
}

func TestAddRecordsSnapshotAndRunsCallback(t *testing.T) {
	be := &fakeBackend{}
	completed := 0
	var settled []models.CartItem
	c, err := New(Options{
		Backend:  be,
		Session:  &session{user: &models.User{ID: "7", Username: "user1"}},
		Reporter: notify.Reporter{},
		OnComplete: func(purchased []models.CartItem) {
			completed++
			settled = purchased
		},
		Addresses: addresses{"9": {ID: "9", City: "تهران"}},
	})
	require.NoError(t, err)

	cart := items()
	purchase, err := c.Add(context.Background(), cart, decimal.NewFromInt(23_220_000), "9")
	require.NoError(t, err)
	assert.Equal(t, 1, completed)
	require.Len(t, settled, 2)
	assert.Equal(t, 2, settled[1].Quantity)
	assert.Equal(t, "501", purchase.ID)
	assert.Equal(t, "user1", purchase.Username)
	assert.True(t, purchase.Total.Equal(decimal.NewFromInt(23_220_000)))
	require.NotNil(t, purchase.ShippingAddress)
	assert.Equal(t, "تهران", purchase.ShippingAddress.City)

	require.Len(t, be.inputs, 1)
	input := be.inputs[0]
	require.Len(t, input.Items, 2)
	assert.Equal(t, "1", input.Items[0].Product)
	assert.True(t, input.Items[0].Price.Equal(decimal.NewFromInt(7_200_000)))
	require.NotNil(t, input.ShippingAddress)
	assert.Equal(t, "9", *input.ShippingAddress)

	// The record is a snapshot, not a view of the caller's slice.
	cart[0].Quantity = 99
	assert.Equal(t, 1, c.List()[0].Items[0].Quantity)
}

func TestAddIsNoOpForAnonymousOrEmptyCart(t *testing.T) {
	be := &fakeBackend{}
	sess := &session{}
	completed := 0
	c, err := New(Options{Backend: be, Session: sess, OnComplete: func([]models.CartItem) { completed++ }})
	require.NoError(t, err)

	_, err = c.Add(context.Background(), items(), decimal.NewFromInt(1), "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	sess.user = &models.User{ID: "7", Username: "user1"}
	_, err = c.Add(context.Background(), nil, decimal.Zero, "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	assert.Empty(t, be.inputs)
	assert.Empty(t, c.List())
	assert.Zero(t, completed)
}

func TestAddBackendFailureSkipsCallback(t *testing.T) {
	be := &fakeBackend{fail: errors.New("boom")}
	completed := 0
	inbox := notify.NewInbox(0)
	c, err := New(Options{
		Backend:    be,
		Session:    &session{user: &models.User{ID: "7"}},
		Reporter:   notify.Reporter{Sink: inbox},
		OnComplete: func([]models.CartItem) { completed++ },
	})
	require.NoError(t, err)

	_, err = c.Add(context.Background(), items(), decimal.NewFromInt(1), "")
	require.Error(t, err)
	assert.Zero(t, completed)
	assert.Empty(t, c.List())
	require.Len(t, inbox.Drain(), 1)
}

func TestLoadIsLimitedToAdmins(t *testing.T) {
	be := &fakeBackend{list: []models.Purchase{{ID: "1", Username: "user1", Total: decimal.NewFromInt(10)}}}
	sess := &session{user: &models.User{ID: "7", Username: "user1"}}
	c, err := New(Options{Backend: be, Session: sess})
	require.NoError(t, err)

	require.True(t, pkgerrors.IsCode(c.Load(context.Background()), pkgerrors.CodeForbidden))
	assert.Empty(t, c.List())

	perms := models.FullAdminPermissions()
	perms.ViewPurchases = false
	sess.user = &models.User{ID: "1", Username: "admin", IsAdmin: true, AdminPermissions: &perms}
	require.True(t, pkgerrors.IsCode(c.Load(context.Background()), pkgerrors.CodeForbidden))

	perms.ViewPurchases = true
	require.NoError(t, c.Load(context.Background()))
	require.Len(t, c.List(), 1)
	assert.Equal(t, "user1", c.List()[0].Username)
}
