package order

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusProcessing Status = "Processing"
	StatusShipped    Status = "Shipped"
	StatusDelivered  Status = "Delivered"
	StatusCancelled  Status = "Cancelled"
)

var statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus matches case-insensitively and accepts "canceled".
func ParseStatus(s string) (Status, bool) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "canceled") {
		return StatusCancelled, true
	}
	for _, st := range statuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Restockable reports whether cancelling from s returns units to stock.
// Once shipped the goods have left the shelf.
func (s Status) Restockable() bool {
	return s == StatusPending || s == StatusProcessing
}

// CanMoveTo reports whether an order in s may be set to next. Final
// statuses never change, and a shipped order only moves forward.
func (s Status) CanMoveTo(next Status) bool {
	switch {
	case s == next:
		return true
	case s.Terminal():
		return false
	case s == StatusShipped:
		return next == StatusDelivered || next == StatusCancelled
	default:
		return true
	}
}

// Order is one committed line of a checkout. Lines placed together share a
// CheckoutID.
type Order struct {
	ID                 string          `json:"id"`
	CheckoutID         string          `json:"checkout_id"`
	AccountID          string          `json:"account_id"`
	ProductID          string          `json:"product_id"`
	ProductName        string          `json:"product_name"`
	Quantity           int             `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Total              decimal.Decimal `json:"total"`
	CustomerName       string          `json:"customer_name"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	Address            string          `json:"address"`
	PaymentMethod      string          `json:"payment_method"`
	DeliveryOption     string          `json:"delivery_option"`
	PromoCode          string          `json:"promo_code,omitempty"`
	SpecialInstruction string          `json:"special_instruction,omitempty"`
	Status             Status          `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Confirmation is what the buyer sees right after placing an order.
type Confirmation struct {
	Orders      []Order         `json:"orders"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

func NewConfirmation(orders []Order) Confirmation {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Total)
	}
	if orders == nil {
		orders = []Order{}
	}
	return Confirmation{Orders: orders, TotalAmount: total}
}
