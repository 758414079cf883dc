package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MikeMC777/medistore/internal/pricing"
	"github.com/MikeMC777/medistore/internal/product"
)

// Line is a cart row joined with the current catalog price and stock.
type Line struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Stock     int             `json:"stock_quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

func (l Line) Pricing() pricing.Line {
	return pricing.Line{ProductID: l.ProductID, Name: l.Name, UnitPrice: l.UnitPrice, Quantity: l.Quantity}
}

// PricingLines converts cart rows into pricing input, preserving order.
func PricingLines(lines []Line) []pricing.Line {
	out := make([]pricing.Line, len(lines))
	for i, l := range lines {
		out[i] = l.Pricing()
	}
	return out
}

type Action string

const (
	ActionIncrease Action = "increase"
	ActionDecrease Action = "decrease"
	ActionRemove   Action = "remove"
)

// Preview is the cart page: rows, the estimate and best sellers not yet in
// the cart.
type Preview struct {
	Items           []Line            `json:"items"`
	Pricing         pricing.Quote     `json:"pricing"`
	Recommendations []product.Product `json:"recommendations"`
}

// AddItemRequest payload for adding to the cart.
// swagger:model AddItemRequest
type AddItemRequest struct {
	ProductID string `json:"product_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity"   example:"1"`
}

// AdjustItemRequest payload for changing one cart row.
// swagger:model AdjustItemRequest
type AdjustItemRequest struct {
	Action string `json:"action" example:"increase"`
}
