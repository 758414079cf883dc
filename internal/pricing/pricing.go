// Package pricing computes order totals in fixed-point decimal arithmetic.
package pricing

import (
	"github.com/shopspring/decimal"
)

var (
	// CheckoutTaxRate applies to checkout quotes and committed orders.
	CheckoutTaxRate = decimal.RequireFromString("0.05")
	// CartPreviewTaxRate and CartPreviewDeliveryFee apply only to the cart
	// page estimate. They intentionally differ from the checkout values.
	CartPreviewTaxRate     = decimal.RequireFromString("0.10")
	CartPreviewDeliveryFee = decimal.RequireFromString("50.00")
)

// Line is one product/quantity/price tuple.
type Line struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineTotal is a priced line with its committed total, i.e. the line
// subtotal plus its proportional share of delivery, tax and discount.
type LineTotal struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Committed decimal.Decimal `json:"committed_total"`
}

// Quote is a full pricing breakdown.
type Quote struct {
	Lines       []LineTotal     `json:"lines"`
	Zone        Zone            `json:"zone,omitempty"`
	Delivery    DeliveryOption  `json:"delivery_option,omitempty"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Tax         decimal.Decimal `json:"tax"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// Input describes a checkout to price.
type Input struct {
	Lines    []Line
	Zone     Zone
	Delivery DeliveryOption
	Promo    *Promo
	TaxRate  decimal.Decimal
}

// Subtotal is the exact sum of unit price times quantity.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

// Compute prices a checkout. It is deterministic for identical input.
func Compute(in Input) Quote {
	opt, fee := ResolveDelivery(in.Zone, in.Delivery)
	q := Quote{
		Zone:        in.Zone,
		Delivery:    opt,
		Subtotal:    Subtotal(in.Lines),
		DeliveryFee: fee,
		TaxRate:     in.TaxRate,
		Discount:    decimal.Zero,
	}
	q.Tax = q.Subtotal.Mul(in.TaxRate).Round(2)
	if in.Promo != nil {
		q.Discount = in.Promo.Discount(q.Subtotal, q.DeliveryFee)
	}
	q.Total = q.Subtotal.Add(q.DeliveryFee).Add(q.Tax).Sub(q.Discount)
	q.Lines = allocate(in.Lines, q.Subtotal, q.DeliveryFee.Add(q.Tax).Sub(q.Discount))
	return q
}

// Preview prices the cart page estimate: flat delivery fee, no promotion.
func Preview(lines []Line, taxRate, deliveryFee decimal.Decimal) Quote {
	q := Quote{
		Subtotal:    Subtotal(lines),
		DeliveryFee: deliveryFee,
		TaxRate:     taxRate,
		Discount:    decimal.Zero,
	}
	q.Tax = q.Subtotal.Mul(taxRate).Round(2)
	q.Total = q.Subtotal.Add(q.DeliveryFee).Add(q.Tax)
	q.Lines = allocate(lines, q.Subtotal, q.DeliveryFee.Add(q.Tax))
	return q
}

// allocate spreads adjustment over the lines in proportion to each line
// subtotal. Shares are rounded to cents and the rounding remainder goes to
// the largest line, so committed totals sum to subtotal+adjustment exactly.
// A zero subtotal leaves every share at zero.
func allocate(lines []Line, subtotal, adjustment decimal.Decimal) []LineTotal {
	out := make([]LineTotal, len(lines))
	allocated := decimal.Zero
	largest := -1
	for i, l := range lines {
		sub := l.Subtotal()
		share := decimal.Zero
		if subtotal.IsPositive() {
			share = adjustment.Mul(sub).Div(subtotal).Round(2)
		}
		allocated = allocated.Add(share)
		if largest < 0 || sub.GreaterThan(out[largest].Subtotal) {
			largest = i
		}
		out[i] = LineTotal{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice,
			Quantity:  l.Quantity,
			Subtotal:  sub,
			Committed: sub.Add(share),
		}
	}
	if subtotal.IsPositive() && largest >= 0 {
		if rest := adjustment.Sub(allocated); !rest.IsZero() {
			out[largest].Committed = out[largest].Committed.Add(rest)
		}
	}
	return out
}
