// Package users holds the signed-in user, the user directory the admin panel
// manages and the login lockout counters.
package users

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/cases"

	"github.com/angelmondragon/bazarche-storefront/pkg/backend"
	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/metrics"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/angelmondragon/bazarche-storefront/pkg/validation"
)

// Backend is the authentication surface of the REST backend.
type Backend interface {
	Login(ctx context.Context, username, password string) (backend.AuthUser, error)
	Logout(ctx context.Context) error
	Register(ctx context.Context, username, password string) (backend.AuthUser, error)
}

type Options struct {
	Backend   Backend
	Attempts  AttemptStore
	Policy    RateLimitPolicy
	Reporter  notify.Reporter
	Metrics   *metrics.StorefrontMetrics
	Directory []models.User
	Now       func() time.Time
}

type Container struct {
	backend  Backend
	attempts AttemptStore
	policy   RateLimitPolicy
	reporter notify.Reporter
	metrics  *metrics.StorefrontMetrics
	now      func() time.Time

	mu        sync.RWMutex
	current   *models.User
	directory []models.User
}

func New(opts Options) (*Container, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("users backend required")
	}
	if opts.Attempts == nil {
		opts.Attempts = NewMemoryAttemptStore()
	}
	if opts.Policy.MaxFailures <= 0 || opts.Policy.Lockout <= 0 {
		opts.Policy = DefaultRateLimitPolicy()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	directory := make([]models.User, 0, len(opts.Directory))
	for _, u := range opts.Directory {
		directory = append(directory, u.Clone())
	}
	return &Container{
		backend:   opts.Backend,
		attempts:  opts.Attempts,
		policy:    opts.Policy,
		reporter:  opts.Reporter,
		metrics:   opts.Metrics,
		now:       opts.Now,
		directory: directory,
	}, nil
}

// Current returns the signed-in user.
func (c *Container) Current() (models.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return models.User{}, false
	}
	return c.current.Clone(), true
}

func (c *Container) IsAuthenticated() bool {
	_, ok := c.Current()
	return ok
}

// Users returns a copy of the directory.
func (c *Container) Users() []models.User {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.User, 0, len(c.directory))
	for _, u := range c.directory {
		out = append(out, u.Clone())
	}
	return out
}

// CheckLoginRateLimit reports the lockout state of the caller's client key.
func (c *Container) CheckLoginRateLimit(ctx context.Context) (RateLimitStatus, error) {
	attempt, err := c.attempts.Get(ctx, ClientKey(ctx))
	if err != nil {
		return RateLimitStatus{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load login attempts")
	}
	return c.policy.Evaluate(attempt, c.now()), nil
}

// Login authenticates against the backend. Failures count toward the lockout;
// a success clears it. The admin flag is a display hint derived from the
// username, never an authorization decision.
func (c *Container) Login(ctx context.Context, username, password string) (models.User, error) {
	status, err := c.CheckLoginRateLimit(ctx)
	if err != nil {
		c.reporter.Failure(ctx, "users.login", err, "")
		return models.User{}, err
	}
	if status.Limited {
		c.metrics.IncLoginBlocked()
		minutes := int(status.RemainingTime.Round(time.Minute) / time.Minute)
		if minutes < 1 {
			minutes = 1
		}
		c.reporter.Rejected(ctx, fmt.Sprintf("تعداد تلاش‌های ناموفق بیش از حد مجاز است. لطفاً %d دقیقه دیگر دوباره تلاش کنید", minutes))
		return models.User{}, pkgerrors.New(pkgerrors.CodeRateLimit, "too many failed login attempts").
			WithDetails(map[string]any{"remainingTime": status.RemainingMS})
	}

	authUser, err := c.backend.Login(ctx, username, password)
	if err != nil {
		if _, recErr := c.attempts.RecordFailure(ctx, ClientKey(ctx), c.now()); recErr != nil {
			c.reporter.Failure(ctx, "users.login.attempts", recErr, "")
		}
		c.metrics.IncLoginFailure()
		if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
			err = pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid username or password")
		}
		c.reporter.Failure(ctx, "users.login", err, backend.Detail(err, "نام کاربری یا رمز عبور اشتباه است"))
		return models.User{}, err
	}

	if err := c.attempts.Reset(ctx, ClientKey(ctx)); err != nil {
		c.reporter.Failure(ctx, "users.login.attempts", err, "")
	}

	user := models.User{
		ID:         authUser.ID,
		Username:   authUser.Username,
		IsAdmin:    authUser.Username == models.AdminUsername,
		CanComment: true,
	}

	c.mu.Lock()
	if entry := c.findLocked(func(u models.User) bool { return u.Username == user.Username }); entry != nil {
		user.IsBanned = entry.IsBanned
		user.SecurityQuestion = entry.Clone().SecurityQuestion
		if user.IsAdmin || entry.IsAdmin {
			user.IsAdmin = true
			user.AdminPermissions = entry.Clone().AdminPermissions
		}
	}
	if user.IsAdmin && user.AdminPermissions == nil {
		perms := models.FullAdminPermissions()
		user.AdminPermissions = &perms
	}
	current := user.Clone()
	c.current = &current
	c.mu.Unlock()

	c.reporter.Success(ctx, "ورود موفق", "خوش آمدید "+user.Username)
	return user.Clone(), nil
}

// RegisterInput carries a new account.
type RegisterInput struct {
	Username         string                  `json:"username" validate:"notblank,min=3,max=150"`
	Password         string                  `json:"password" validate:"required,min=6,max=128"`
	SecurityQuestion models.SecurityQuestion `json:"securityQuestion"`
}

type securityQuestionInput struct {
	Question string `json:"question" validate:"notblank,max=200"`
	Answer   string `json:"answer" validate:"notblank,max=200"`
}

// Register creates the account on the backend and adds it to the directory.
// The password is kept in the directory as entered.
func (c *Container) Register(ctx context.Context, input RegisterInput) (models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := validation.Struct(input); err != nil {
		c.reporter.Rejected(ctx, validation.FirstMessage(err))
		return models.User{}, err
	}
	if err := validation.Struct(securityQuestionInput(input.SecurityQuestion)); err != nil {
		c.reporter.Rejected(ctx, "سوال امنیتی و پاسخ آن الزامی است")
		return models.User{}, err
	}

	c.mu.RLock()
	taken := c.findLocked(func(u models.User) bool { return u.Username == input.Username }) != nil
	c.mu.RUnlock()
	if taken {
		c.reporter.Rejected(ctx, "این نام کاربری قبلاً ثبت شده است")
		return models.User{}, pkgerrors.New(pkgerrors.CodeConflict, "username already exists")
	}

	authUser, err := c.backend.Register(ctx, input.Username, input.Password)
	if err != nil {
		c.reporter.Failure(ctx, "users.register", err, backend.Detail(err, "ثبت نام با خطا مواجه شد"))
		return models.User{}, err
	}

	sq := input.SecurityQuestion
	user := models.User{
		ID:               authUser.ID,
		Username:         firstNonEmpty(authUser.Username, input.Username),
		Password:         input.Password,
		SecurityQuestion: &sq,
		CanComment:       true,
	}
	c.mu.Lock()
	c.directory = append(c.directory, user.Clone())
	c.mu.Unlock()

	c.reporter.Success(ctx, "ثبت نام موفق", "حساب کاربری با موفقیت ایجاد شد")
	return user.Clone(), nil
}

// Logout ends the backend session. The local session is cleared even when the
// backend call fails.
func (c *Container) Logout(ctx context.Context) error {
	err := c.backend.Logout(ctx)
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	if err != nil {
		c.reporter.Failure(ctx, "users.logout", err, "")
		return err
	}
	c.reporter.Success(ctx, "خروج", "با موفقیت از حساب خود خارج شدید")
	return nil
}

// ChangePassword replaces the signed-in user's password after comparing the
// current one. The directory entry is authoritative when one exists.
func (c *Container) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	if len(newPassword) < 6 {
		c.reporter.Rejected(ctx, "رمز عبور جدید باید حداقل ۶ کاراکتر باشد")
		return pkgerrors.New(pkgerrors.CodeValidation, "new password must be at least 6 characters")
	}

	c.mu.Lock()
	if c.current == nil {
		c.mu.Unlock()
		c.reporter.Rejected(ctx, "ابتدا وارد حساب کاربری شوید")
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "not signed in")
	}
	session := c.current
	entry := c.findLocked(func(u models.User) bool { return u.ID == session.ID || u.Username == session.Username })
	stored := session.Password
	if entry != nil {
		stored = entry.Password
	}
	if stored != currentPassword {
		c.mu.Unlock()
		c.reporter.Rejected(ctx, "رمز عبور فعلی اشتباه است")
		return pkgerrors.New(pkgerrors.CodeValidation, "current password does not match")
	}
	if entry != nil {
		entry.Password = newPassword
	}
	session.Password = newPassword
	c.mu.Unlock()

	c.reporter.Success(ctx, "تغییر رمز عبور", "رمز عبور با موفقیت تغییر کرد")
	return nil
}

// ResetPassword sets a new password for username. Unknown usernames are ignored.
func (c *Container) ResetPassword(ctx context.Context, username, newPassword string) error {
	if len(newPassword) < 6 {
		c.reporter.Rejected(ctx, "رمز عبور جدید باید حداقل ۶ کاراکتر باشد")
		return pkgerrors.New(pkgerrors.CodeValidation, "new password must be at least 6 characters")
	}
	c.mu.Lock()
	entry := c.findLocked(func(u models.User) bool { return u.Username == username })
	if entry == nil {
		c.mu.Unlock()
		return nil
	}
	entry.Password = newPassword
	c.mirrorLocked(entry)
	c.mu.Unlock()
	c.reporter.Success(ctx, "بازیابی رمز عبور", "رمز عبور با موفقیت تغییر کرد")
	return nil
}

// ResetUserPassword is the admin variant of ResetPassword, addressed by id.
func (c *Container) ResetUserPassword(ctx context.Context, userID, newPassword string) error {
	if len(newPassword) < 6 {
		c.reporter.Rejected(ctx, "رمز عبور جدید باید حداقل ۶ کاراکتر باشد")
		return pkgerrors.New(pkgerrors.CodeValidation, "new password must be at least 6 characters")
	}
	c.mu.Lock()
	entry := c.findLocked(func(u models.User) bool { return u.ID == userID })
	if entry == nil {
		c.mu.Unlock()
		return nil
	}
	entry.Password = newPassword
	c.mirrorLocked(entry)
	c.mu.Unlock()
	c.reporter.Success(ctx, "تغییر رمز عبور", "رمز عبور کاربر با موفقیت تغییر کرد")
	return nil
}

// SecurityQuestion returns the question registered for username.
func (c *Container) SecurityQuestion(username string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry := c.findLocked(func(u models.User) bool { return u.Username == username })
	if entry == nil || entry.SecurityQuestion == nil || entry.SecurityQuestion.Question == "" {
		return "", false
	}
	return entry.SecurityQuestion.Question, true
}

// VerifySecurityAnswer compares answers case-insensitively.
func (c *Container) VerifySecurityAnswer(username, answer string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry := c.findLocked(func(u models.User) bool { return u.Username == username })
	if entry == nil || entry.SecurityQuestion == nil {
		return false
	}
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(entry.SecurityQuestion.Answer)) == fold.String(strings.TrimSpace(answer))
}

// DeleteUser removes a directory entry. Deleting yourself is refused.
func (c *Container) DeleteUser(ctx context.Context, userID string) error {
	c.mu.Lock()
	if c.current != nil && c.current.ID == userID {
		c.mu.Unlock()
		c.reporter.Rejected(ctx, "نمی‌توانید حساب کاربری خود را حذف کنید")
		return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete the signed-in user")
	}
	kept := c.directory[:0:0]
	for _, u := range c.directory {
		if u.ID != userID {
			kept = append(kept, u)
		}
	}
	removed := len(kept) != len(c.directory)
	c.directory = kept
	c.mu.Unlock()

	if removed {
		c.reporter.Success(ctx, "حذف کاربر", "کاربر با موفقیت حذف شد")
	}
	return nil
}

func (c *Container) BanUser(ctx context.Context, userID string) error {
	if c.setBanned(userID, true) {
		c.reporter.Success(ctx, "مسدودسازی کاربر", "کاربر با موفقیت مسدود شد")
	}
	return nil
}

func (c *Container) UnbanUser(ctx context.Context, userID string) error {
	if c.setBanned(userID, false) {
		c.reporter.Success(ctx, "رفع مسدودیت", "مسدودیت کاربر با موفقیت رفع شد")
	}
	return nil
}

func (c *Container) setBanned(userID string, banned bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.findLocked(func(u models.User) bool { return u.ID == userID })
	if entry == nil {
		return false
	}
	entry.IsBanned = banned
	c.mirrorLocked(entry)
	return true
}

// AddAdmin promotes a user with every permission except user management.
func (c *Container) AddAdmin(ctx context.Context, userID string) error {
	c.mu.Lock()
	entry := c.findLocked(func(u models.User) bool { return u.ID == userID })
	if entry == nil {
		c.mu.Unlock()
		return nil
	}
	perms := models.PromotedAdminPermissions()
	entry.IsAdmin = true
	entry.AdminPermissions = &perms
	c.mirrorLocked(entry)
	c.mu.Unlock()
	c.reporter.Success(ctx, "ارتقای کاربر", "کاربر با موفقیت به مدیر ارتقا یافت")
	return nil
}

// UpdateAdminPermissions merges patch into an admin's permissions and mirrors
// the change into the live session when the admin is signed in.
func (c *Container) UpdateAdminPermissions(ctx context.Context, userID string, patch models.AdminPermissionsPatch) error {
	c.mu.Lock()
	entry := c.findLocked(func(u models.User) bool { return u.ID == userID })
	if entry == nil || !entry.IsAdmin || entry.AdminPermissions == nil {
		c.mu.Unlock()
		return nil
	}
	patch.Apply(entry.AdminPermissions)
	if c.current != nil && c.current.ID == userID && c.current.AdminPermissions != nil {
		patch.Apply(c.current.AdminPermissions)
	}
	c.mu.Unlock()
	c.reporter.Success(ctx, "بروزرسانی دسترسی‌ها", "دسترسی‌های مدیر با موفقیت بروزرسانی شد")
	return nil
}

// findLocked returns a pointer into the directory; callers hold c.mu.
func (c *Container) findLocked(match func(models.User) bool) *models.User {
	for i := range c.directory {
		if match(c.directory[i]) {
			return &c.directory[i]
		}
	}
	return nil
}

// mirrorLocked copies password and ban state of entry into the session user
// when they are the same account; callers hold c.mu.
func (c *Container) mirrorLocked(entry *models.User) {
	if c.current == nil || (c.current.ID != entry.ID && c.current.Username != entry.Username) {
		return
	}
	c.current.Password = entry.Password
	c.current.IsBanned = entry.IsBanned
	if entry.IsAdmin && entry.AdminPermissions != nil && !c.current.IsAdmin {
		c.current.IsAdmin = true
		perms := *entry.AdminPermissions
		c.current.AdminPermissions = &perms
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
