package checkout

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/medistore/internal/account"
	"github.com/MikeMC777/medistore/internal/pricing"
)

type Source string

const (
	SourceCart   Source = "cart"
	SourceBuyNow Source = "buy_now"
)

const defaultPaymentMethod = "cod"

// Contact is the delivery contact typed at checkout. Blank fields fall back
// to the account's saved profile.
type Contact struct {
	FirstName  string `json:"first_name"  example:"Rahim"`
	LastName   string `json:"last_name"   example:"Uddin"`
	Email      string `json:"email"       example:"rahim@example.com"`
	Phone      string `json:"phone"       example:"+8801711000000"`
	Address    string `json:"address"     example:"House 4, Road 2, Dhanmondi"`
	City       string `json:"city"        example:"Dhaka"`
	PostalCode string `json:"postal_code" example:"1209"`
}

func (c Contact) FullName() string {
	return joinNonBlank(" ", c.FirstName, c.LastName)
}

func (c Contact) FullAddress() string {
	return joinNonBlank(", ", c.Address, c.City, c.PostalCode)
}

func (c Contact) withDefaults(a *account.Account) Contact {
	if a == nil {
		return c
	}
	if c.FullName() == "" {
		c.FirstName = a.Name
	}
	if strings.TrimSpace(c.Email) == "" {
		c.Email = a.Email
	}
	if strings.TrimSpace(c.Phone) == "" {
		c.Phone = a.Phone
	}
	if strings.TrimSpace(c.Address) == "" && strings.TrimSpace(c.City) == "" {
		c.Address, c.City = a.Address, a.City
	}
	return c
}

// canonicalID returns the lowercase hyphenated form of a uuid, which is how
// Postgres returns ids, or the trimmed input when it is not a uuid.
func canonicalID(id string) string {
	id = strings.TrimSpace(id)
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}

func joinNonBlank(sep string, parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// Request carries everything one checkout needs. AccountID, RequestID and
// IdempotencyKey come from request headers, never from the body.
//
// swagger:model CheckoutRequest
type Request struct {
	AccountID      string `json:"-"`
	RequestID      string `json:"-"`
	IdempotencyKey string `json:"-"`

	Source    Source `json:"source"     example:"cart"`
	ProductID string `json:"product_id" example:"4e7d4e5c-5cb9-4a3f-9f21-7e1a4f9f2b2a"`
	Quantity  int    `json:"quantity"   example:"1"`

	Contact            Contact `json:"contact"`
	PaymentMethod      string  `json:"payment_method"      example:"cod"`
	DeliveryOption     string  `json:"delivery_option"     example:"standard"`
	PromoCode          string  `json:"promo_code"          example:"HEALTH10"`
	SpecialInstruction string  `json:"special_instruction" example:"Call before delivery"`
}

func (r *Request) normalize() {
	r.AccountID = canonicalID(r.AccountID)
	r.IdempotencyKey = strings.TrimSpace(r.IdempotencyKey)
	if r.Source == "" {
		if r.ProductID != "" {
			r.Source = SourceBuyNow
		} else {
			r.Source = SourceCart
		}
	}
	r.PaymentMethod = strings.TrimSpace(r.PaymentMethod)
	if r.PaymentMethod == "" {
		r.PaymentMethod = defaultPaymentMethod
	}
	r.PromoCode = strings.TrimSpace(r.PromoCode)
}

func (r *Request) validate() error {
	if r.AccountID == "" {
		return invalid("account id is required")
	}
	switch r.Source {
	case SourceCart:
	case SourceBuyNow:
		if r.ProductID == "" {
			return invalid("product_id is required for buy now")
		}
		if r.Quantity < 1 {
			return invalid("quantity must be at least 1")
		}
	default:
		return invalid("unknown source %q", r.Source)
	}
	return nil
}

// Quote is the checkout page breakdown. A rejected promo code does not
// fail the quote; the reason is reported and no discount is applied.
type Quote struct {
	Source          Source                                     `json:"source"`
	Address         string                                     `json:"address"`
	DeliveryOptions map[pricing.DeliveryOption]decimal.Decimal `json:"delivery_options"`
	PromoCode       string                                     `json:"promo_code,omitempty"`
	PromoError      string                                     `json:"promo_error,omitempty"`
	PromoReason     string                                     `json:"promo_reason,omitempty"`
	Pricing         pricing.Quote                              `json:"pricing"`
}

// Receipt is returned after a successful commit and replayed for a repeated
// idempotency key.
type Receipt struct {
	CheckoutID string        `json:"checkout_id"`
	OrderIDs   []string      `json:"order_ids"`
	Pricing    pricing.Quote `json:"pricing"`
	Replayed   bool          `json:"replayed,omitempty"`
}
