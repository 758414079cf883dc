package product

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	// NUMERIC(12,2) in Postgres; read as text and parsed, never via float64.
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock_quantity"`
	Sold      int             `json:"sold_quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ListResponse represents the paginated response of products.
// swagger:model
type ListResponse struct {
	// search query applied
	Q string `json:"q,omitempty"`
	// category filter applied
	Category string `json:"category,omitempty"`
	// limit applied
	Limit int `json:"limit"`
	// offset applied
	Offset int       `json:"offset"`
	Items  []Product `json:"items"`
}

// CreateProductRequest payload of creation.
// swagger:model CreateProductRequest
type CreateProductRequest struct {
	Name        string `json:"name"        example:"Napa Extra 500mg"`
	Description string `json:"description" example:"Paracetamol + caffeine, strip of 10"`
	Category    string `json:"category"    example:"analgesic"`
	Price       string `json:"price"       example:"25.00"`
	Stock       int    `json:"stock"       example:"120"`
}
