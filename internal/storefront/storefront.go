// Package storefront composes the per-domain containers of one browser
// session and runs the operations that span several of them.
package storefront

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/angelmondragon/bazarche-storefront/internal/cart"
	"github.com/angelmondragon/bazarche-storefront/internal/categories"
	"github.com/angelmondragon/bazarche-storefront/internal/comments"
	"github.com/angelmondragon/bazarche-storefront/internal/giftcodes"
	"github.com/angelmondragon/bazarche-storefront/internal/poller"
	"github.com/angelmondragon/bazarche-storefront/internal/products"
	"github.com/angelmondragon/bazarche-storefront/internal/purchases"
	"github.com/angelmondragon/bazarche-storefront/internal/shipping"
	"github.com/angelmondragon/bazarche-storefront/internal/storeinfo"
	"github.com/angelmondragon/bazarche-storefront/internal/users"
	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/logger"
	"github.com/angelmondragon/bazarche-storefront/pkg/metrics"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"go.uber.org/multierr"
)

const (
	commentRefreshJob = "comments.refresh"
	defaultInboxLimit = 50
)

// Backend is everything a session needs from the REST backend.
// *backend.Client satisfies it.
type Backend interface {
	users.Backend
	products.Backend
	categories.Backend
	comments.Backend
	purchases.Backend
	shipping.Backend
	UploadImage(ctx context.Context, filename string, data []byte) (string, error)
}

// Params wire a storefront.
type Params struct {
	Backend   Backend
	Logger    *logger.Logger
	StoreName string

	// Sink receives notices in addition to the storefront's own inbox.
	Sink       notify.Sink
	InboxLimit int

	Attempts   users.AttemptStore
	RateLimit  users.RateLimitPolicy
	Metrics    *metrics.StorefrontMetrics
	JobMetrics *metrics.JobMetrics

	// PollInterval drives the comment refresh poller. Zero disables it.
	PollInterval time.Duration
	Seed         *SeedData
	Now          func() time.Time
}

// Storefront is the aggregate of one session's containers.
type Storefront struct {
	Store      *storeinfo.Container
	Users      *users.Container
	Products   *products.Container
	Categories *categories.Container
	Cart       *cart.Container
	GiftCodes  *giftcodes.Container
	Comments   *comments.Container
	Shipping   *shipping.Container
	Purchases  *purchases.Container

	Inbox *notify.Inbox

	backend  Backend
	logg     *logger.Logger
	reporter notify.Reporter
	metrics  *metrics.StorefrontMetrics

	stopPoller context.CancelFunc
	pollerDone chan struct{}
	closeOnce  sync.Once
}

// New builds the containers in dependency order and starts the comment
// poller when an interval is configured.
func New(params Params) (*Storefront, error) {
	if params.Backend == nil {
		return nil, fmt.Errorf("storefront backend required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	limit := params.InboxLimit
	if limit <= 0 {
		limit = defaultInboxLimit
	}
	seed := SeedData{}
	if params.Seed != nil {
		seed = *params.Seed
	}

	inbox := notify.NewInbox(limit)
	reporter := notify.Reporter{
		Sink:   notify.Fanout{inbox, notify.LogSink{Logger: logg}, params.Sink},
		Logger: logg,
	}

	sf := &Storefront{
		Inbox:    inbox,
		backend:  params.Backend,
		logg:     logg,
		reporter: reporter,
		metrics:  params.Metrics,
	}
	sf.Store = storeinfo.New(params.StoreName, reporter)

	var err error
	sf.Users, err = users.New(users.Options{
		Backend:   params.Backend,
		Attempts:  params.Attempts,
		Policy:    params.RateLimit,
		Reporter:  reporter,
		Metrics:   params.Metrics,
		Directory: seed.Users,
		Now:       params.Now,
	})
	if err != nil {
		return nil, err
	}
	if sf.Products, err = products.New(params.Backend, reporter, seed.Products...); err != nil {
		return nil, err
	}
	if sf.Categories, err = categories.New(params.Backend, sf.Products, reporter, seed.Categories...); err != nil {
		return nil, err
	}
	sf.Cart = cart.New(reporter)
	sf.GiftCodes, err = giftcodes.New(giftcodes.Options{
		Session:  sf.Users,
		OnApply:  sf.Cart.ApplyGiftCode,
		Reporter: reporter,
		Now:      params.Now,
		Seed:     seed.GiftCodes,
	})
	if err != nil {
		return nil, err
	}
	sf.Comments, err = comments.New(comments.Options{
		Backend:  params.Backend,
		Session:  sf.Users,
		Reporter: reporter,
		Now:      params.Now,
	})
	if err != nil {
		return nil, err
	}
	if sf.Shipping, err = shipping.New(params.Backend, sf.Users, reporter); err != nil {
		return nil, err
	}
	sf.Purchases, err = purchases.New(purchases.Options{
		Backend:    params.Backend,
		Session:    sf.Users,
		Reporter:   reporter,
		OnComplete: sf.Cart.Settle,
		Addresses:  sf.Shipping,
		Now:        params.Now,
	})
	if err != nil {
		return nil, err
	}

	if params.PollInterval > 0 {
		svc, err := poller.NewService(poller.ServiceParams{
			Logger:   logg,
			Registry: poller.NewRegistry(poller.JobFunc{JobName: commentRefreshJob, Fn: sf.Comments.RefreshWatched}),
			Metrics:  params.JobMetrics,
			Interval: params.PollInterval,
		})
		if err != nil {
			sf.Comments.Close()
			return nil, err
		}
		ctx, cancel := context.WithCancel(context.Background())
		sf.stopPoller = cancel
		sf.pollerDone = make(chan struct{})
		go func() {
			defer close(sf.pollerDone)
			_ = svc.Run(ctx)
		}()
	}
	return sf, nil
}

// Load fetches the catalog and categories. Both are attempted; failures are
// combined.
func (s *Storefront) Load(ctx context.Context) error {
	return multierr.Combine(
		s.Products.Load(ctx),
		s.Categories.Load(ctx),
	)
}

// Login signs in and then loads the user's shipping addresses. An address
// failure is reported but does not undo the login.
func (s *Storefront) Login(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.Users.Login(ctx, username, password)
	if err != nil {
		return models.User{}, err
	}
	if err := s.Shipping.Load(ctx); err != nil {
		s.logg.Warn(s.logg.WithOperation(ctx, "storefront.login"), "shipping addresses not loaded")
	}
	return user, nil
}

// Logout ends the session and drops everything tied to the user.
func (s *Storefront) Logout(ctx context.Context) error {
	err := s.Users.Logout(ctx)
	s.Cart.Reset()
	s.Shipping.Clear()
	return err
}

// RemoveProduct deletes a product and purges it from the cart and the
// comment cache. Nothing is purged when the backend delete fails.
func (s *Storefront) RemoveProduct(ctx context.Context, id string) error {
	if err := s.Products.Remove(ctx, id); err != nil {
		return err
	}
	s.Cart.RemoveProduct(id)
	s.Comments.RemoveProduct(id)
	return nil
}

// RenameCategory renames a category and moves its products to the new name.
// The cascade is not atomic: the first product failure stops it and earlier
// products keep the new name.
func (s *Storefront) RenameCategory(ctx context.Context, id, name string) error {
	oldName, found, err := s.Categories.Edit(ctx, id, name)
	if err != nil || !found {
		return err
	}
	updated, _ := s.Categories.Get(id)
	if oldName != updated.Name {
		newName := updated.Name
		for _, productID := range s.Products.InCategory(oldName) {
			if _, _, err := s.Products.Edit(ctx, productID, models.ProductPatch{Category: &newName}); err != nil {
				return fmt.Errorf("moving product %s to category %q: %w", productID, newName, err)
			}
		}
	}
	s.reporter.Success(ctx, "ویرایش دسته‌بندی", "دسته‌بندی با موفقیت ویرایش شد")
	return nil
}

// Checkout records the cart as a purchase. Once the backend accepts it the
// purchased lines leave the cart. An empty address id falls
// back to the default shipping address.
func (s *Storefront) Checkout(ctx context.Context, shippingAddressID string) (models.Purchase, error) {
	if shippingAddressID == "" {
		if addr, ok := s.Shipping.Default(); ok {
			shippingAddressID = addr.ID
		}
	}
	items, totals := s.Cart.Snapshot()
	purchase, err := s.Purchases.Add(ctx, items, totals.Total, shippingAddressID)
	if err != nil {
		return models.Purchase{}, err
	}
	s.metrics.IncCheckout()
	return purchase, nil
}

// UploadImage sends a product image to the backend and returns its URL.
func (s *Storefront) UploadImage(ctx context.Context, filename string, r io.Reader) (string, error) {
	user, ok := s.Users.Current()
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "login required")
	}
	if !user.Can(func(p models.AdminPermissions) bool { return p.ManageProducts }) {
		s.reporter.Rejected(ctx, "شما دسترسی آپلود تصویر ندارید")
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "manage products permission required")
	}

	data, err := io.ReadAll(io.LimitReader(r, backend.MaxImageBytes+1))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read image")
	}
	if _, err := backend.DetectImage(data); err != nil {
		s.reporter.Rejected(ctx, "فایل انتخاب شده تصویر معتبر نیست")
		return "", err
	}
	location, err := s.backend.UploadImage(ctx, filename, data)
	if err != nil {
		s.reporter.Failure(ctx, "storefront.upload_image", err, backend.Detail(err, "خطا در آپلود تصویر"))
		return "", err
	}
	s.reporter.Success(ctx, "آپلود تصویر", "تصویر با موفقیت آپلود شد")
	return location, nil
}

// Close stops the poller and waits for in-flight comment refreshes.
func (s *Storefront) Close() {
	s.closeOnce.Do(func() {
		if s.stopPoller != nil {
			s.stopPoller()
			<-s.pollerDone
		}
		s.Comments.Close()
	})
}
