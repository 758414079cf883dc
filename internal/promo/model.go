package promo

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/medistore/internal/pricing"
)

type Code struct {
	ID            string               `json:"id"`
	Code          string               `json:"code"`
	DiscountType  pricing.DiscountKind `json:"discount_type"`
	DiscountValue decimal.Decimal      `json:"discount_value"`
	ValidFrom     time.Time            `json:"valid_from"`
	ValidUntil    time.Time            `json:"valid_until"`
	MaxUses       int                  `json:"max_uses"`
	UsedCount     int                  `json:"used_count"`
	IsActive      bool                 `json:"is_active"`
}

// Terms returns the discount terms the pricing package applies.
func (c Code) Terms() pricing.Promo {
	return pricing.Promo{Code: c.Code, Kind: c.DiscountType, Value: c.DiscountValue}
}

// Normalize trims the code and upper-cases it; codes are stored that way.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
