package users

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct {
	passwords map[string]string
	nextID    int
	logouts   int
	logoutErr error
}

func (s *stubBackend) Login(_ context.Context, username, password string) (backend.AuthUser, error) {
	if want, ok := s.passwords[username]; ok && want == password {
		return backend.AuthUser{ID: "id-" + username, Username: username}, nil
	}
	return backend.AuthUser{}, pkgerrors.Wrap(pkgerrors.CodeValidation,
		&backend.APIError{Method: http.MethodPost, Path: "/api/auth/login/", Status: http.StatusBadRequest, Message: "Invalid credentials"},
		"backend rejected request")
}

func (s *stubBackend) Logout(context.Context) error {
	s.logouts++
	return s.logoutErr
}

func (s *stubBackend) Register(_ context.Context, username, password string) (backend.AuthUser, error) {
	s.nextID++
	s.passwords[username] = password
	return backend.AuthUser{ID: "new-" + username, Username: username}, nil
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func newTestContainer(t *testing.T, directory ...models.User) (*Container, *stubBackend, *clock, *notify.Inbox) {
	t.Helper()
	be := &stubBackend{passwords: map[string]string{"admin": "admin123", "user1": "password123"}}
	clk := &clock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	inbox := notify.NewInbox(0)
	c, err := New(Options{
		Backend:   be,
		Reporter:  notify.Reporter{Sink: inbox},
		Directory: directory,
		Now:       clk.Now,
	})
	require.NoError(t, err)
	return c, be, clk, inbox
}

func seedDirectory() []models.User {
	full := models.FullAdminPermissions()
	return []models.User{
		{
			ID: "1", Username: "admin", Password: "admin123", IsAdmin: true, AdminPermissions: &full,
			SecurityQuestion: &models.SecurityQuestion{Question: "نام اولین معلم شما چه بود؟", Answer: "محمدی"},
			CanComment:       true,
		},
		{
			ID: "2", Username: "user1", Password: "password123",
			SecurityQuestion: &models.SecurityQuestion{Question: "نام اولین حیوان خانگی شما چه بود؟", Answer: "گربه"},
			CanComment:       true,
		},
	}
}

func TestNewRequiresBackend(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error for missing backend")
	}
}

func TestLoginRateLimitLocksAfterThreeFailures(t *testing.T) {
	c, _, clk, inbox := newTestContainer(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Login(ctx, "user1", "wrong")
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized), "attempt %d: %v", i, err)
		clk.now = clk.now.Add(10 * time.Second)
	}

	status, err := c.CheckLoginRateLimit(ctx)
	require.NoError(t, err)
	require.True(t, status.Limited)
	assert.Equal(t, 4*time.Minute+50*time.Second, status.RemainingTime)
	assert.Equal(t, status.RemainingTime.Milliseconds(), status.RemainingMS)

	// Correct credentials are still refused while locked.
	_, err = c.Login(ctx, "user1", "password123")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRateLimit))
	assert.False(t, c.IsAuthenticated())

	clk.now = clk.now.Add(5 * time.Minute)
	status, err = c.CheckLoginRateLimit(ctx)
	require.NoError(t, err)
	require.False(t, status.Limited)

	user, err := c.Login(ctx, "user1", "password123")
	require.NoError(t, err)
	assert.Equal(t, "user1", user.Username)

	status, err = c.CheckLoginRateLimit(ctx)
	require.NoError(t, err)
	assert.False(t, status.Limited)

	notices := inbox.Drain()
	require.NotEmpty(t, notices)
	assert.Equal(t, notify.LevelInfo, notices[len(notices)-1].Level)
}

func TestLoginAttemptsArePerClientKey(t *testing.T) {
	c, _, _, _ := newTestContainer(t)
	a := WithClientKey(context.Background(), "10.0.0.1")
	b := WithClientKey(context.Background(), "10.0.0.2")

	for i := 0; i < 3; i++ {
		_, _ = c.Login(a, "user1", "wrong")
	}
	status, err := c.CheckLoginRateLimit(a)
	require.NoError(t, err)
	require.True(t, status.Limited)

	status, err = c.CheckLoginRateLimit(b)
	require.NoError(t, err)
	require.False(t, status.Limited)
	assert.Equal(t, DefaultClientKey, ClientKey(context.Background()))
}

func TestLoginBuildsSessionUserFromDirectory(t *testing.T) {
	c, _, _, _ := newTestContainer(t, seedDirectory()...)

	user, err := c.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
	require.NotNil(t, user.AdminPermissions)
	assert.True(t, user.AdminPermissions.ManageUsers)
	assert.True(t, user.CanComment)

	user, err = c.Login(context.Background(), "user1", "password123")
	require.NoError(t, err)
	assert.False(t, user.IsAdmin)
	assert.Nil(t, user.AdminPermissions)
}

func TestRegisterValidatesAndRejectsDuplicates(t *testing.T) {
	c, _, _, inbox := newTestContainer(t, seedDirectory()...)
	ctx := context.Background()
	sq := models.SecurityQuestion{Question: "رنگ مورد علاقه؟", Answer: "آبی"}

	_, err := c.Register(ctx, RegisterInput{Username: "ab", Password: "secret1", SecurityQuestion: sq})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = c.Register(ctx, RegisterInput{Username: "newbie", Password: "123", SecurityQuestion: sq})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = c.Register(ctx, RegisterInput{Username: "newbie", Password: "secret1"})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = c.Register(ctx, RegisterInput{Username: "user1", Password: "secret1", SecurityQuestion: sq})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Len(t, c.Users(), 2)

	user, err := c.Register(ctx, RegisterInput{Username: "newbie", Password: "secret1", SecurityQuestion: sq})
	require.NoError(t, err)
	assert.Equal(t, "new-newbie", user.ID)
	require.Len(t, c.Users(), 3)

	question, ok := c.SecurityQuestion("newbie")
	require.True(t, ok)
	assert.Equal(t, "رنگ مورد علاقه؟", question)

	notices := inbox.Drain()
	require.Len(t, notices, 5)
	assert.Equal(t, notify.LevelInfo, notices[4].Level)
}

func TestLogoutClearsSessionEvenOnBackendFailure(t *testing.T) {
	c, be, _, _ := newTestContainer(t)
	ctx := context.Background()
	_, err := c.Login(ctx, "user1", "password123")
	require.NoError(t, err)

	be.logoutErr = errors.New("connection reset")
	require.Error(t, c.Logout(ctx))
	assert.False(t, c.IsAuthenticated())
	assert.Equal(t, 1, be.logouts)
}

func TestChangePasswordUsesDirectoryEntry(t *testing.T) {
	c, _, _, _ := newTestContainer(t, seedDirectory()...)
	ctx := context.Background()

	require.True(t, pkgerrors.IsCode(c.ChangePassword(ctx, "password123", "newpass"), pkgerrors.CodeUnauthorized))

	_, err := c.Login(ctx, "user1", "password123")
	require.NoError(t, err)

	require.True(t, pkgerrors.IsCode(c.ChangePassword(ctx, "wrong", "newpass"), pkgerrors.CodeValidation))
	require.True(t, pkgerrors.IsCode(c.ChangePassword(ctx, "password123", "short"), pkgerrors.CodeValidation))
	require.NoError(t, c.ChangePassword(ctx, "password123", "newpass"))

	for _, u := range c.Users() {
		if u.Username == "user1" {
			assert.Equal(t, "newpass", u.Password)
		}
	}
	current, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, "newpass", current.Password)
}

func TestSecurityQuestionRecovery(t *testing.T) {
	c, _, _, _ := newTestContainer(t, seedDirectory()...)
	ctx := context.Background()

	question, ok := c.SecurityQuestion("admin")
	require.True(t, ok)
	assert.Equal(t, "نام اولین معلم شما چه بود؟", question)
	_, ok = c.SecurityQuestion("ghost")
	assert.False(t, ok)

	assert.True(t, c.VerifySecurityAnswer("admin", "محمدی"))
	assert.False(t, c.VerifySecurityAnswer("admin", "رضایی"))
	assert.False(t, c.VerifySecurityAnswer("ghost", "محمدی"))

	require.NoError(t, c.ResetPassword(ctx, "admin", "fresh-pass"))
	require.NoError(t, c.ResetPassword(ctx, "ghost", "fresh-pass"))
	for _, u := range c.Users() {
		if u.Username == "admin" {
			assert.Equal(t, "fresh-pass", u.Password)
		}
	}
}

func TestVerifySecurityAnswerIgnoresCase(t *testing.T) {
	c, _, _, _ := newTestContainer(t, models.User{
		ID: "9", Username: "latin",
		SecurityQuestion: &models.SecurityQuestion{Question: "pet?", Answer: "Felix"},
	})
	assert.True(t, c.VerifySecurityAnswer("latin", "fELIX"))
}

func TestDeleteUserRefusesSelf(t *testing.T) {
	directory := seedDirectory()
	directory[0].ID = "id-admin"
	c, _, _, inbox := newTestContainer(t, directory...)
	ctx := context.Background()

	_, err := c.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	inbox.Drain()

	err = c.DeleteUser(ctx, "id-admin")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	require.Len(t, c.Users(), 2)
	notices := inbox.Drain()
	require.Len(t, notices, 1)
	assert.Equal(t, notify.LevelError, notices[0].Level)

	require.NoError(t, c.DeleteUser(ctx, "2"))
	require.Len(t, c.Users(), 1)
	require.NoError(t, c.DeleteUser(ctx, "missing"))
	require.Len(t, c.Users(), 1)
}

func TestBanAndPermissionsMirrorIntoSession(t *testing.T) {
	directory := seedDirectory()
	directory[1].ID = "id-user1"
	c, _, _, _ := newTestContainer(t, directory...)
	ctx := context.Background()

	_, err := c.Login(ctx, "user1", "password123")
	require.NoError(t, err)

	require.NoError(t, c.BanUser(ctx, "id-user1"))
	current, _ := c.Current()
	assert.True(t, current.IsBanned)
	require.NoError(t, c.UnbanUser(ctx, "id-user1"))
	current, _ = c.Current()
	assert.False(t, current.IsBanned)

	require.NoError(t, c.AddAdmin(ctx, "id-user1"))
	current, _ = c.Current()
	require.True(t, current.IsAdmin)
	require.NotNil(t, current.AdminPermissions)
	assert.False(t, current.AdminPermissions.ManageUsers)
	assert.True(t, current.AdminPermissions.ManageProducts)

	off := false
	prefix := "مدیر"
	require.NoError(t, c.UpdateAdminPermissions(ctx, "id-user1", models.AdminPermissionsPatch{
		ManageProducts: &off,
		CustomPrefix:   &prefix,
	}))
	current, _ = c.Current()
	assert.False(t, current.AdminPermissions.ManageProducts)
	assert.Equal(t, "مدیر", current.AdminPermissions.CustomPrefix)

	// Non-admins are left untouched.
	require.NoError(t, c.UpdateAdminPermissions(ctx, "1", models.AdminPermissionsPatch{}))
}

func TestResetUserPasswordByID(t *testing.T) {
	c, _, _, _ := newTestContainer(t, seedDirectory()...)
	ctx := context.Background()
	require.NoError(t, c.ResetUserPassword(ctx, "2", "reset-me"))
	require.NoError(t, c.ResetUserPassword(ctx, "404", "reset-me"))
	require.True(t, pkgerrors.IsCode(c.ResetUserPassword(ctx, "2", "x"), pkgerrors.CodeValidation))
	for _, u := range c.Users() {
		if u.ID == "2" {
			assert.Equal(t, "reset-me", u.Password)
		}
	}
}
