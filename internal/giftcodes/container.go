// Package giftcodes holds the gift code catalog. Non-global codes are
// consumed the moment a signed-in user applies them, not at checkout.
package giftcodes

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/bazarche-storefront/pkg/errors"
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/angelmondragon/bazarche-storefront/pkg/notify"
	"github.com/angelmondragon/bazarche-storefront/pkg/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session exposes the signed-in user.
type Session interface {
	Current() (models.User, bool)
}

// ApplyFunc receives a code once it has been applied.
type ApplyFunc func(code models.GiftCode)

type Container struct {
	session  Session
	onApply  ApplyFunc
	reporter notify.Reporter
	now      func() time.Time

	mu    sync.RWMutex
	codes []models.GiftCode
}

type Options struct {
	Session  Session
	OnApply  ApplyFunc
	Reporter notify.Reporter
	Now      func() time.Time
	Seed     []models.GiftCode
}

func New(opts Options) (*Container, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("gift codes session required")
	}
	if opts.OnApply == nil {
		return nil, fmt.Errorf("gift codes apply callback required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Container{session: opts.Session, onApply: opts.OnApply, reporter: opts.Reporter, now: opts.Now}
	for _, code := range opts.Seed {
		c.codes = append(c.codes, code.Clone())
	}
	return c, nil
}

// DefaultCodes are the global welcome codes every storefront starts with.
func DefaultCodes() []models.GiftCode {
	return []models.GiftCode{
		{
			ID: "1", Code: "WELCOME10", DiscountType: models.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10), IsGlobal: true,
			CreatedAt: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: "2", Code: "SUMMER20", DiscountType: models.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(20), IsGlobal: true,
			CreatedAt: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

// Spec describes a code to create.
type Spec struct {
	Code          string              `json:"code" validate:"notblank,max=50"`
	DiscountType  models.DiscountType `json:"discountType" validate:"oneof=percentage fixed"`
	DiscountValue decimal.Decimal     `json:"discountValue"`
	IsGlobal      bool                `json:"isGlobal"`
}

var hundred = decimal.NewFromInt(100)

// ValidateSpec checks the code text, type and value range.
func ValidateSpec(spec Spec) error {
	if err := validation.Struct(spec); err != nil {
		return err
	}
	if !spec.DiscountValue.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"discountValue": "must be greater than 0"})
	}
	if spec.DiscountType == models.DiscountPercentage && spec.DiscountValue.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"discountValue": "must be at most 100"})
	}
	return nil
}

// Add stores a new code. Codes are compared exactly as entered.
func (c *Container) Add(ctx context.Context, spec Spec) (models.GiftCode, error) {
	spec.Code = strings.TrimSpace(spec.Code)
	if err := ValidateSpec(spec); err != nil {
		c.reporter.Rejected(ctx, validation.FirstMessage(err))
		return models.GiftCode{}, err
	}

	c.mu.Lock()
	for _, existing := range c.codes {
		if existing.Code == spec.Code {
			c.mu.Unlock()
			c.reporter.Rejected(ctx, "این کد تخفیف قبلاً ایجاد شده است")
			return models.GiftCode{}, pkgerrors.New(pkgerrors.CodeConflict, "gift code already exists")
		}
	}
	code := models.GiftCode{
		ID:            uuid.NewString(),
		Code:          spec.Code,
		DiscountType:  spec.DiscountType,
		DiscountValue: spec.DiscountValue,
		IsGlobal:      spec.IsGlobal,
		CreatedAt:     c.now().UTC(),
	}
	c.codes = append(c.codes, code)
	c.mu.Unlock()

	c.reporter.Success(ctx, "کد تخفیف جدید", "کد تخفیف با موفقیت ایجاد شد")
	return code.Clone(), nil
}

// FindAndApply applies the usable code whose text equals code.
func (c *Container) FindAndApply(ctx context.Context, code string) (models.GiftCode, error) {
	return c.apply(ctx, func(g models.GiftCode) bool { return g.Code == code })
}

// Apply applies a known code by id.
func (c *Container) Apply(ctx context.Context, code models.GiftCode) (models.GiftCode, error) {
	return c.apply(ctx, func(g models.GiftCode) bool { return g.ID == code.ID })
}

// apply selects, consumes and hands off a code under one lock so a single-use
// code can only be applied once.
func (c *Container) apply(ctx context.Context, match func(models.GiftCode) bool) (models.GiftCode, error) {
	user, signedIn := c.session.Current()

	c.mu.Lock()
	idx := -1
	for i, g := range c.codes {
		if match(g) && g.Usable() {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		c.reporter.Rejected(ctx, "کد تخفیف نامعتبر است یا قبلاً استفاده شده است")
		return models.GiftCode{}, pkgerrors.New(pkgerrors.CodeNotFound, "gift code is invalid or already used")
	}
	applied := c.codes[idx].Clone()
	if !applied.IsGlobal && signedIn {
		usedBy := user.ID
		c.codes[idx].IsUsed = true
		c.codes[idx].UsedBy = &usedBy
	}
	c.mu.Unlock()

	c.onApply(applied)
	c.reporter.Success(ctx, "کد تخفیف", "کد تخفیف با موفقیت اعمال شد")
	return applied, nil
}

func (c *Container) List() []models.GiftCode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.GiftCode, 0, len(c.codes))
	for _, g := range c.codes {
		out = append(out, g.Clone())
	}
	return out
}

// Remove deletes the code with id; unknown ids are ignored.
func (c *Container) Remove(ctx context.Context, id string) {
	c.mu.Lock()
	kept := make([]models.GiftCode, 0, len(c.codes))
	for _, g := range c.codes {
		if g.ID != id {
			kept = append(kept, g)
		}
	}
	removed := len(kept) != len(c.codes)
	c.codes = kept
	c.mu.Unlock()
	if removed {
		c.reporter.Success(ctx, "حذف کد تخفیف", "کد تخفیف با موفقیت حذف شد")
	}
}
