package storefront

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	"github.com/angelmondragon/bazarche-storefront/pkg/backend/backendtest"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type fixture struct {
	srv      *backendtest.Server
	phones   int
	samsung  int
	iphone   int
	airpods  int
	buyerID  int
	category string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := backendtest.NewServer()
	t.Cleanup(srv.Close)

	f := &fixture{srv: srv, category: "گوشی هوشمند"}
	srv.AddUser("admin", "admin123", true)
	f.buyerID = srv.AddUser("user1", "password123", false)
	f.phones = srv.AddCategory(f.category)
	srv.AddCategory("لوازم جانبی")
	f.samsung = srv.AddProduct(backendtest.Product{
		Name: "گوشی هوشمند سامسونگ گلکسی A52", Price: decimal.NewFromInt(8500000),
		DiscountedPrice: decimal.NewFromInt(7200000), Category: f.category, CustomID: "samsung-a52",
	})
	f.iphone = srv.AddProduct(backendtest.Product{
		Name: "گوشی آیفون 13", Price: decimal.NewFromInt(40000000),
		DiscountedPrice: decimal.NewFromInt(38000000), Category: f.category,
	})
	f.airpods = srv.AddProduct(backendtest.Product{
		Name: "هدفون بی سیم اپل AirPods Pro", Price: decimal.NewFromInt(9800000),
		DiscountedPrice: decimal.NewFromInt(9300000), Category: "لوازم جانبی",
	})
	return f
}

func (f *fixture) storefront(t *testing.T, pollInterval time.Duration) *Storefront {
	t.Helper()
	client, err := backend.NewClient(f.srv.BaseURL())
	require.NoError(t, err)
	seed := DemoSeed()
	seed.Products = nil
	seed.Categories = nil
	sf, err := New(Params{
		Backend:      client,
		StoreName:    "بازارچه",
		Seed:         &seed,
		PollInterval: pollInterval,
	})
	require.NoError(t, err)
	t.Cleanup(sf.Close)
	require.NoError(t, sf.Load(context.Background()))
	return sf
}

func id(n int) string { return strconv.Itoa(n) }

func product(t *testing.T, sf *Storefront, n int) models.Product {
	t.Helper()
	p, ok := sf.Products.Get(id(n))
	require.True(t, ok, "product %d not loaded", n)
	return p
}

func TestNewRequiresBackend(t *testing.T) {
	if _, err := New(Params{}); err == nil {
		t.Fatalf("expected error for missing backend")
	}
}

func TestDemoSeedIsConsistent(t *testing.T) {
	seed := DemoSeed()
	names := map[string]bool{}
	for _, c := range seed.Categories {
		names[c.Name] = true
	}
	for _, p := range seed.Products {
		require.True(t, names[p.Category], "product %s has unknown category %q", p.ID, p.Category)
		require.LessOrEqual(t, p.DiscountedPrice, p.Price)
	}
	require.Len(t, seed.GiftCodes, 2)
}

func TestLoadPopulatesCatalog(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)

	require.Len(t, sf.Products.List(), 3)
	require.Len(t, sf.Categories.List(), 2)
	require.Equal(t, int64(7200000), product(t, sf, f.samsung).DiscountedPrice)
}

func TestLoadCombinesFailures(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)

	f.srv.Fail(http.MethodGet, "/api/products/", http.StatusInternalServerError, "down", 1)
	f.srv.Fail(http.MethodGet, "/api/categories/", http.StatusInternalServerError, "down", 1)
	err := sf.Load(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.Len(t, sf.Products.List(), 3, "failed load must keep the previous catalog")
}

func TestRemoveProductPurgesCartAndComments(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)
	ctx := context.Background()

	_, err := sf.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	require.NoError(t, sf.Cart.Add(ctx, product(t, sf, f.samsung)))
	require.NoError(t, sf.Cart.Add(ctx, product(t, sf, f.airpods)))
	_, err = sf.Comments.AddComment(ctx, id(f.samsung), "محصول خوبی است")
	require.NoError(t, err)

	require.NoError(t, sf.RemoveProduct(ctx, id(f.samsung)))

	_, ok := sf.Products.Get(id(f.samsung))
	require.False(t, ok)
	items := sf.Cart.Items()
	require.Len(t, items, 1)
	require.Equal(t, id(f.airpods), items[0].Product.ID)
	require.Empty(t, sf.Comments.Local(id(f.samsung)))
	require.Len(t, f.srv.Products(), 2)
}

func TestRemoveProductBackendFailureKeepsEverything(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)
	ctx := context.Background()

	require.NoError(t, sf.Cart.Add(ctx, product(t, sf, f.samsung)))
	path := fmt.Sprintf("/api/products/%d/", f.samsung)
	f.srv.Fail(http.MethodDelete, path, http.StatusInternalServerError, "boom", 1)

	err := sf.RemoveProduct(ctx, id(f.samsung))
	require.Error(t, err)
	_, ok := sf.Products.Get(id(f.samsung))
	require.True(t, ok)
	require.Len(t, sf.Cart.Items(), 1)
}

func TestRenameCategoryCascadesToProducts(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)
	ctx := context.Background()

	require.NoError(t, sf.RenameCategory(ctx, id(f.phones), "موبایل"))

	c, ok := sf.Categories.Get(id(f.phones))
	require.True(t, ok)
	require.Equal(t, "موبایل", c.Name)
	require.Equal(t, "موبایل", product(t, sf, f.samsung).Category)
	require.Equal(t, "موبایل", product(t, sf, f.iphone).Category)
	require.Equal(t, "لوازم جانبی", product(t, sf, f.airpods).Category)
	require.Empty(t, sf.Products.InCategory(f.category))

	last := sf.Inbox.Drain()
	require.NotEmpty(t, last)
	require.Equal(t, "ویرایش دسته‌بندی", last[len(last)-1].Title)
}

func TestRenameCategoryStopsAtFirstProductFailure(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)
	ctx := context.Background()

	f.srv.Fail(http.MethodPut, fmt.Sprintf("/api/products/%d/", f.iphone), http.StatusInternalServerError, "boom", 1)
	err := sf.RenameCategory(ctx, id(f.phones), "موبایل")
	require.Error(t, err)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency), "got %v", err)

	c, _ := sf.Categories.Get(id(f.phones))
	require.Equal(t, "موبایل", c.Name)
	require.Equal(t, "موبایل", product(t, sf, f.samsung).Category)
	require.Equal(t, f.category, product(t, sf, f.iphone).Category)
}

func TestRenameCategoryValidationLeavesProducts(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)

	err := sf.RenameCategory(context.Background(), id(f.phones), "لوازم جانبی")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, f.category, product(t, sf, f.samsung).Category)
}

func TestCheckoutRecordsPurchaseAndClearsCart(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)
	ctx := context.Background()

	_, err := sf.Login(ctx, "user1", "password123")
	require.NoError(t, err)
	require.NoError(t, sf.Cart.Add(ctx, product(t, sf, f.samsung)))
	require.NoError(t, sf.Cart.Add(ctx, product(t, sf, f.airpods)))
	require.NoError(t, sf.Cart.Add(ctx, product(t, sf, f.airpods)))
	_, err = sf.GiftCodes.FindAndApply(ctx, "WELCOME10")
	require.NoError(t, err)
	require.True(t, sf.Cart.Totals().Total.Equal(decimal.NewFromInt(23220000)))

	purchase, err := sf.Checkout(ctx, "")
	require.NoError(t, err)
	require.True(t, purchase.Total.Equal(decimal.NewFromInt(23220000)), "total %s", purchase.Total)
	require.Len(t, purchase.Items, 2)
	require.Empty(t, sf.Cart.Items())
	_, applied := sf.Cart.AppliedCode()
	require.False(t, applied)

	stored := f.srv.Purchases()
	require.Len(t, stored, 1)
	require.Equal(t, f.buyerID, stored[0].UserID)
}

func TestCheckoutFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)
	ctx := context.Background()

	_, err := sf.Login(ctx, "user1", "password123")
	require.NoError(t, err)
	require.NoError(t, sf.Cart.Add(ctx, product(t, sf, f.samsung)))
	f.srv.Fail(http.MethodPost, "/api/purchases/", http.StatusInternalServerError, "boom", 1)

	_, err = sf.Checkout(ctx, "")
	require.Error(t, err)
	require.Len(t, sf.Cart.Items(), 1)
}

func TestLogoutResetsSessionState(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)
	ctx := context.Background()

	_, err := sf.Login(ctx, "user1", "password123")
	require.NoError(t, err)
	require.NoError(t, sf.Cart.Add(ctx, product(t, sf, f.samsung)))

	require.NoError(t, sf.Logout(ctx))
	require.False(t, sf.Users.IsAuthenticated())
	require.Empty(t, sf.Cart.Items())
	require.Empty(t, sf.Shipping.List())
}

func TestUploadImageRequiresProductManager(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)
	ctx := context.Background()
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	_, err := sf.UploadImage(ctx, "a.png", bytes.NewReader(png))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = sf.Login(ctx, "user1", "password123")
	require.NoError(t, err)
	_, err = sf.UploadImage(ctx, "a.png", bytes.NewReader(png))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	require.Equal(t, 0, f.srv.Uploads())
}

func TestUploadImage(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 0)
	ctx := context.Background()

	_, err := sf.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	_, err = sf.UploadImage(ctx, "notes.txt", strings.NewReader("plain text"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)
	location, err := sf.UploadImage(ctx, "phone.png", bytes.NewReader(png))
	require.NoError(t, err)
	require.Contains(t, location, "/media/products/")
	require.Equal(t, 1, f.srv.Uploads())
}

func TestPollerRefreshesWatchedComments(t *testing.T) {
	f := newFixture(t)
	sf := f.storefront(t, 10*time.Millisecond)

	f.srv.AddComment(f.samsung, f.buyerID, "ارسال سریع بود")
	sf.Comments.Watch(id(f.samsung))

	require.Eventually(t, func() bool {
		return len(sf.Comments.Local(id(f.samsung))) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sf.Close()
	sf.Close()
}
