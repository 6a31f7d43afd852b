// Package comments holds product comments and replies. Reads return what is
// known locally and refresh from the backend in the background; server
// entries only ever add ids that are not already known.
package comments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

type Backend interface {
	ListComments(ctx context.Context, productID string) ([]models.Comment, error)
	CreateComment(ctx context.Context, productID, text string) (models.Comment, error)
}

// Session exposes the signed-in user.
type Session interface {
	Current() (models.User, bool)
}

type Options struct {
	Backend  Backend
	Session  Session
	Reporter notify.Reporter
	Now      func() time.Time
}

type Container struct {
	backend  Backend
	session  Session
	reporter notify.Reporter
	now      func() time.Time

	// lifetime bounds background refreshes; Close cancels it.
	lifetime context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	mu       sync.RWMutex
	comments []models.Comment
	watched  map[string]struct{}
	removed  map[string]struct{}
	closed   bool
}

func New(opts Options) (*Container, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("comments backend required")
	}
	if opts.Session == nil {
		return nil, fmt.Errorf("comments session required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	lifetime, cancel := context.WithCancel(context.Background())
	return &Container{
		backend:  opts.Backend,
		session:  opts.Session,
		reporter: opts.Reporter,
		now:      opts.Now,
		lifetime: lifetime,
		cancel:   cancel,
		watched:  make(map[string]struct{}),
		removed:  make(map[string]struct{}),
	}, nil
}

const maxTextLength = 2000

func (c *Container) author(ctx context.Context, text string) (models.User, string, error) {
	user, ok := c.session.Current()
	if !ok {
		return models.User{}, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to comment")
	}
	if user.IsBanned || !user.CanComment {
		c.reporter.Rejected(ctx, "شما اجازه ثبت نظر ندارید")
		return models.User{}, "", pkgerrors.New(pkgerrors.CodeForbidden, "user may not comment")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		c.reporter.Rejected(ctx, "متن نظر نمی‌تواند خالی باشد")
		return models.User{}, "", pkgerrors.New(pkgerrors.CodeValidation, "comment text is required")
	}
	if len([]rune(text)) > maxTextLength {
		c.reporter.Rejected(ctx, "متن نظر بیش از حد طولانی است")
		return models.User{}, "", pkgerrors.New(pkgerrors.CodeValidation, "comment text is too long")
	}
	return user, text, nil
}

// prefix snapshots the author's admin decoration at posting time.
func prefix(user models.User) (string, string) {
	if !user.IsAdmin || user.AdminPermissions == nil {
		return "", ""
	}
	return user.AdminPermissions.CustomPrefix, user.AdminPermissions.CustomPrefixColor
}

// AddComment posts to the backend and keeps the comment locally. Anonymous
// callers get CodeUnauthorized and nothing happens.
func (c *Container) AddComment(ctx context.Context, productID, text string) (models.Comment, error) {
	user, text, err := c.author(ctx, text)
	if err != nil {
		return models.Comment{}, err
	}
	created, err := c.backend.CreateComment(ctx, productID, text)
	if err != nil {
		c.reporter.Failure(ctx, "comments.add", err, backend.Detail(err, "خطا در ثبت نظر"))
		return models.Comment{}, err
	}

	p, color := prefix(user)
	comment := models.Comment{
		ID:               created.ID,
		ProductID:        productID,
		UserID:           user.ID,
		Username:         user.Username,
		IsAdmin:          user.IsAdmin,
		AdminPrefix:      p,
		AdminPrefixColor: color,
		Text:             text,
		CreatedAt:        created.CreatedAt,
		Replies:          []models.Reply{},
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = c.now().UTC()
	}

	c.mu.Lock()
	c.upsertLocked(comment)
	c.mu.Unlock()

	c.reporter.Success(ctx, "نظر جدید", "نظر شما با موفقیت ثبت شد")
	return comment.Clone(), nil
}

// upsertLocked stores comment unless its id is already known; callers hold c.mu.
func (c *Container) upsertLocked(comment models.Comment) bool {
	for _, existing := range c.comments {
		if existing.ID == comment.ID {
			return false
		}
	}
	c.comments = append(c.comments, comment)
	return true
}

// AddReply appends a locally generated reply. Replies are never sent to the
// backend. An unknown comment id is a silent no-op.
func (c *Container) AddReply(ctx context.Context, commentID, text string) (models.Reply, bool, error) {
	user, text, err := c.author(ctx, text)
	if err != nil {
		return models.Reply{}, false, err
	}
	p, color := prefix(user)
	reply := models.Reply{
		ID:               uuid.NewString(),
		CommentID:        commentID,
		UserID:           user.ID,
		Username:         user.Username,
		IsAdmin:          user.IsAdmin,
		AdminPrefix:      p,
		AdminPrefixColor: color,
		Text:             text,
		CreatedAt:        c.now().UTC(),
	}

	c.mu.Lock()
	found := false
	for i := range c.comments {
		if c.comments[i].ID == commentID {
			c.comments[i].Replies = append(c.comments[i].Replies, reply)
			found = true
			break
		}
	}
	c.mu.Unlock()
	if !found {
		return models.Reply{}, false, nil
	}
	c.reporter.Success(ctx, "پاسخ جدید", "پاسخ شما با موفقیت ثبت شد")
	return reply, true, nil
}

// ForProduct returns the locally known comments for productID and starts a
// background refresh whose results show up on a later call.
func (c *Container) ForProduct(productID string) []models.Comment {
	out := c.Local(productID)
	c.refreshAsync(productID)
	return out
}

// Local returns the locally known comments for productID without refreshing.
func (c *Container) Local(productID string) []models.Comment {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Comment, 0)
	for _, comment := range c.comments {
		if comment.ProductID == productID {
			out = append(out, comment.Clone())
		}
	}
	return out
}

func (c *Container) refreshAsync(productID string) {
	c.mu.RLock()
	closed := c.closed
	if !closed {
		c.inflight.Add(1)
	}
	c.mu.RUnlock()
	if closed {
		return
	}
	go func() {
		defer c.inflight.Done()
		_ = c.Refresh(c.lifetime, productID)
	}()
}

// Refresh fetches the server comments for productID and merges the ones with
// unseen ids. Backend failures are logged and reported.
func (c *Container) Refresh(ctx context.Context, productID string) error {
	fetched, err := c.backend.ListComments(ctx, productID)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		c.reporter.Failure(ctx, "comments.refresh", err, backend.Detail(err, "خطا در دریافت نظرات"))
		return err
	}
	sort.SliceStable(fetched, func(i, j int) bool { return fetched[i].CreatedAt.Before(fetched[j].CreatedAt) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, gone := c.removed[productID]; gone {
		return nil
	}
	for _, comment := range fetched {
		if comment.ProductID == "" {
			comment.ProductID = productID
		}
		if comment.Replies == nil {
			comment.Replies = []models.Reply{}
		}
		c.upsertLocked(comment)
	}
	return nil
}

// Watch registers productID for periodic refresh.
func (c *Container) Watch(productID string) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return
	}
	c.mu.Lock()
	c.watched[productID] = struct{}{}
	c.mu.Unlock()
}

func (c *Container) Unwatch(productID string) {
	c.mu.Lock()
	delete(c.watched, productID)
	c.mu.Unlock()
}

// Watched lists the products registered for periodic refresh.
func (c *Container) Watched() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.watched))
	for id := range c.watched {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// RefreshWatched refreshes every watched product.
func (c *Container) RefreshWatched(ctx context.Context) error {
	var errs []error
	for _, productID := range c.Watched() {
		if err := c.Refresh(ctx, productID); err != nil {
			errs = append(errs, fmt.Errorf("product %s: %w", productID, err))
		}
	}
	return multierr.Combine(errs...)
}

// RemoveProduct drops every local comment of a deleted product.
func (c *Container) RemoveProduct(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]models.Comment, 0, len(c.comments))
	for _, comment := range c.comments {
		if comment.ProductID != productID {
			kept = append(kept, comment)
		}
	}
	c.comments = kept
	delete(c.watched, productID)
	c.removed[productID] = struct{}{}
}

// Wait blocks until background refreshes have finished.
func (c *Container) Wait() {
	c.inflight.Wait()
}

// Close cancels background refreshes and waits for them to return.
func (c *Container) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.inflight.Wait()
}
