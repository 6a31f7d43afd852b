// Package format renders storefront amounts for display.
package format

import (
	"github.com/angelmondragon/bazarche-storefront/pkg/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Currency is appended to every formatted price.
const Currency = "تومان"

// DefaultLanguage localizes digits and grouping the way the storefront shows them.
var DefaultLanguage = language.Persian

// Price formats a whole-unit amount with Persian digit grouping.
func Price(amount int64) string {
	return PriceIn(DefaultLanguage, amount)
}

// PriceIn formats amount using the number conventions of tag.
func PriceIn(tag language.Tag, amount int64) string {
	return message.NewPrinter(tag).Sprintf("%d %s", amount, Currency)
}

// DecimalPrice rounds d to whole units before formatting.
func DecimalPrice(d decimal.Decimal) string {
	return Price(d.Round(0).IntPart())
}

// DiscountIn describes a gift code's value: "10%" for percentages, a price otherwise.
func DiscountIn(tag language.Tag, code models.GiftCode) string {
	if code.DiscountType == models.DiscountPercentage {
		return message.NewPrinter(tag).Sprintf("%d%%", code.DiscountValue.Round(0).IntPart())
	}
	return PriceIn(tag, code.DiscountValue.Round(0).IntPart())
}

func Discount(code models.GiftCode) string {
	return DiscountIn(DefaultLanguage, code)
}
