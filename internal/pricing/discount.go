package pricing

import "github.com/shopspring/decimal"

// DiscountKind is how a promotion reduces the order total.
type DiscountKind string

const (
	DiscountPercentage   DiscountKind = "percentage"
	DiscountFixed        DiscountKind = "fixed"
	DiscountFreeDelivery DiscountKind = "free_delivery"
)

func (k DiscountKind) Valid() bool {
	switch k {
	case DiscountPercentage, DiscountFixed, DiscountFreeDelivery:
		return true
	}
	return false
}

// Promo is an accepted promotion, already validated against its store.
type Promo struct {
	Code  string
	Kind  DiscountKind
	Value decimal.Decimal
}

// Discount computes the reduction for the given subtotal and delivery fee.
// The result is rounded to cents and never exceeds what it offsets: the
// subtotal for percentage and fixed discounts, the fee for free delivery.
func (p Promo) Discount(subtotal, deliveryFee decimal.Decimal) decimal.Decimal {
	var d, limit decimal.Decimal
	switch p.Kind {
	case DiscountPercentage:
		d = subtotal.Mul(p.Value).Div(decimal.NewFromInt(100))
		limit = subtotal
	case DiscountFixed:
		d = p.Value
		limit = subtotal
	case DiscountFreeDelivery:
		d = deliveryFee
		limit = deliveryFee
	default:
		return decimal.Zero
	}
	d = d.Round(2)
	if d.IsNegative() {
		return decimal.Zero
	}
	if d.GreaterThan(limit) {
		return limit
	}
	return d
}
