package comments

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu     sync.Mutex
	server map[string][]models.Comment
	nextID int
	fail   error
	lists  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{server: map[string][]models.Comment{}}
}

func (f *fakeBackend) ListComments(_ context.Context, productID string) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.fail != nil {
		return nil, f.fail
	}
	return append([]models.Comment(nil), f.server[productID]...), nil
}

func (f *fakeBackend) CreateComment(_ context.Context, productID, text string) (models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return models.Comment{}, f.fail
	}
	f.nextID++
	c := models.Comment{
		ID:        strconv.Itoa(f.nextID),
		ProductID: productID,
		UserID:    "server-user",
		Username:  "unknown",
		Text:      text,
		CreatedAt: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
	}
	f.server[productID] = append(f.server[productID], c)
	return c, nil
}

type session struct{ user *models.User }

func (s *session) Current() (models.User, bool) {
	if s.user == nil {
		return models.User{}, false
	}
	return s.user.Clone(), true
}

func newContainer(t *testing.T) (*Container, *fakeBackend, *session) {
	t.Helper()
	be := newFakeBackend()
	sess := &session{}
	c, err := New(Options{Backend: be, Session: sess, Reporter: notify.Reporter{}})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, be, sess
}

func admin() *models.User {
	perms := models.FullAdminPermissions()
	perms.CustomPrefix = "مدیر"
	perms.CustomPrefixColor = "#ff0000"
	return &models.User{ID: "1", Username: "admin", IsAdmin: true, AdminPermissions: &perms, CanComment: true}
}

func TestAddCommentRequiresSignedInUser(t *testing.T) {
	c, be, sess := newContainer(t)
	ctx := context.Background()

	_, err := c.AddComment(ctx, "p1", "سلام")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))
	assert.Zero(t, be.nextID)

	sess.user = &models.User{ID: "2", Username: "user1", CanComment: true, IsBanned: true}
	_, err = c.AddComment(ctx, "p1", "سلام")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	sess.user.IsBanned = false
	_, err = c.AddComment(ctx, "p1", "   ")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Empty(t, c.Local("p1"))
}

func TestAddCommentSnapshotsAdminPrefix(t *testing.T) {
	c, _, sess := newContainer(t)
	sess.user = admin()

	comment, err := c.AddComment(context.Background(), "p1", "محصول عالی")
	require.NoError(t, err)
	assert.Equal(t, "1", comment.ID)
	assert.True(t, comment.IsAdmin)
	assert.Equal(t, "مدیر", comment.AdminPrefix)

	sess.user.AdminPermissions.CustomPrefix = "مدیر ارشد"
	got := c.Local("p1")
	require.Len(t, got, 1)
	assert.Equal(t, "مدیر", got[0].AdminPrefix)
}

func TestForProductIsStaleWhileRevalidate(t *testing.T) {
	c, be, _ := newContainer(t)
	be.server["p1"] = []models.Comment{
		{ID: "10", ProductID: "p1", Username: "a", Text: "first"},
		{ID: "11", ProductID: "p1", Username: "b", Text: "second"},
	}

	first := c.ForProduct("p1")
	assert.Empty(t, first)
	c.Wait()

	second := c.ForProduct("p1")
	require.Len(t, second, 2)
	for _, comment := range second {
		assert.Empty(t, comment.Replies)
	}
	c.Wait()
	assert.Equal(t, 2, be.lists)
}

func TestMergeNeverDuplicatesOrOverwritesLocal(t *testing.T) {
	c, be, sess := newContainer(t)
	sess.user = &models.User{ID: "2", Username: "user1", CanComment: true}
	ctx := context.Background()

	local, err := c.AddComment(ctx, "p1", "local text")
	require.NoError(t, err)
	_, found, err := c.AddReply(ctx, local.ID, "reply")
	require.NoError(t, err)
	require.True(t, found)

	// The server now reports the same id with different content.
	be.server["p1"][0].Text = "server text"
	be.server["p1"] = append(be.server["p1"], models.Comment{ID: "99", ProductID: "p1", Text: "other"})

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Refresh(ctx, "p1"))
		c.ForProduct("p1")
		c.Wait()
	}

	got := c.Local("p1")
	require.Len(t, got, 2)
	seen := map[string]int{}
	for _, comment := range got {
		seen[comment.ID]++
	}
	assert.Equal(t, map[string]int{local.ID: 1, "99": 1}, seen)
	assert.Equal(t, "local text", got[0].Text)
	assert.Equal(t, "user1", got[0].Username)
	require.Len(t, got[0].Replies, 1)
}

func TestAddReplyUnknownCommentIsSilent(t *testing.T) {
	c, _, sess := newContainer(t)
	sess.user = &models.User{ID: "2", Username: "user1", CanComment: true}
	_, found, err := c.AddReply(context.Background(), "missing", "hi")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRemoveProductPurgesAndBlocksLateMerges(t *testing.T) {
	c, be, sess := newContainer(t)
	sess.user = &models.User{ID: "2", Username: "user1", CanComment: true}
	ctx := context.Background()

	_, err := c.AddComment(ctx, "p1", "hello")
	require.NoError(t, err)
	_, err = c.AddComment(ctx, "p2", "other product")
	require.NoError(t, err)
	c.Watch("p1")

	c.RemoveProduct("p1")
	assert.Empty(t, c.Local("p1"))
	assert.Len(t, c.Local("p2"), 1)
	assert.Empty(t, c.Watched())

	require.NoError(t, c.Refresh(ctx, "p1"))
	assert.Empty(t, c.Local("p1"))
	assert.NotEmpty(t, be.server["p1"])
}

func TestRefreshWatchedCombinesErrors(t *testing.T) {
	c, be, _ := newContainer(t)
	c.Watch("p1")
	c.Watch("p2")
	c.Watch(" ")
	assert.Equal(t, []string{"p1", "p2"}, c.Watched())

	be.fail = errors.New("backend down")
	err := c.RefreshWatched(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "product p1")
	assert.Contains(t, err.Error(), "product p2")

	be.fail = nil
	require.NoError(t, c.RefreshWatched(context.Background()))
	c.Unwatch("p2")
	assert.Equal(t, []string{"p1"}, c.Watched())
}

func TestCloseStopsBackgroundRefresh(t *testing.T) {
	c, be, _ := newContainer(t)
	c.Close()
	c.ForProduct("p1")
	c.Wait()
	assert.Zero(t, be.lists)
}
