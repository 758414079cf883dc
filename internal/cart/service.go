// Package cart keeps each account's pending selection and prices the cart
// page estimate.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/MikeMC777/medistore/internal/database"
	"github.com/MikeMC777/medistore/internal/pricing"
	"github.com/MikeMC777/medistore/internal/product"
)

var (
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInsufficientStock = errors.New("not enough stock available")
	ErrNotInCart         = errors.New("item not in cart")
	ErrUnknownAction     = errors.New("unknown cart action")
	ErrQuantityFloor     = errors.New("quantity cannot be less than 1")
)

const recommendationLimit = 4

// Catalog is the slice of the product repository the cart needs.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
	TopSelling(ctx context.Context, exclude []string, limit int) ([]product.Product, error)
}

type Service struct {
	store       Store
	catalog     Catalog
	taxRate     decimal.Decimal
	deliveryFee decimal.Decimal
	sfg         singleflight.Group
}

func NewService(store Store, catalog Catalog, taxRate, deliveryFee decimal.Decimal) *Service {
	return &Service{store: store, catalog: catalog, taxRate: taxRate, deliveryFee: deliveryFee}
}

// Add puts qty units of a product in the cart, or tops up an existing row.
// The resulting quantity may not exceed current stock.
func (s *Service) Add(ctx context.Context, accountID, productID string, qty int) (int, error) {
	if qty < 1 {
		return 0, ErrInvalidQuantity
	}
	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		return 0, err
	}
	cur, err := s.store.Quantity(ctx, accountID, productID)
	if err != nil {
		return 0, err
	}
	next := cur + qty
	if next > p.Stock {
		return cur, fmt.Errorf("%w: %s has %d, cart would hold %d", ErrInsufficientStock, p.Name, p.Stock, next)
	}
	if err := s.store.SetQuantity(ctx, accountID, productID, next); err != nil {
		return cur, err
	}
	return next, nil
}

// Adjust steps a cart row up or down by one, or removes it.
func (s *Service) Adjust(ctx context.Context, accountID, productID string, action Action) (int, error) {
	switch action {
	case ActionRemove:
		ok, err := s.store.Remove(ctx, accountID, productID)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, ErrNotInCart
		}
		return 0, nil
	case ActionIncrease, ActionDecrease:
	default:
		return 0, ErrUnknownAction
	}

	cur, err := s.store.Quantity(ctx, accountID, productID)
	if err != nil {
		return 0, err
	}
	if cur == 0 {
		return 0, ErrNotInCart
	}

	next := cur
	if action == ActionIncrease {
		p, err := s.catalog.GetByID(ctx, productID)
		if err != nil {
			return cur, err
		}
		if cur >= p.Stock {
			return cur, ErrInsufficientStock
		}
		next++
	} else {
		if cur <= 1 {
			return cur, ErrQuantityFloor
		}
		next--
	}
	if err := s.store.SetQuantity(ctx, accountID, productID, next); err != nil {
		return cur, err
	}
	return next, nil
}

func (s *Service) Clear(ctx context.Context, accountID string) error {
	return s.store.Clear(ctx, accountID)
}

// Lines returns the cart rows. Concurrent reads for one account share a
// single store query. The query ignores caller cancellation; each caller
// still returns as soon as its own ctx is done.
func (s *Service) Lines(ctx context.Context, accountID string) ([]Line, error) {
	ch := s.sfg.DoChan(accountID, func() (any, error) {
		qctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), database.QueryTimeout)
		defer cancel()
		return s.store.Lines(qctx, accountID)
	})
	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}
	lines := res.Val.([]Line)
	out := make([]Line, len(lines))
	copy(out, lines)
	return out, nil
}

// Preview prices the cart page estimate with the preview tax rate and the
// flat delivery fee, and attaches best sellers the cart does not hold yet.
// A recommendation failure only drops the recommendations.
func (s *Service) Preview(ctx context.Context, accountID string) (*Preview, error) {
	lines, err := s.Lines(ctx, accountID)
	if err != nil {
		return nil, err
	}

	exclude := make([]string, len(lines))
	for i, l := range lines {
		exclude[i] = l.ProductID
	}
	recs, err := s.catalog.TopSelling(ctx, exclude, recommendationLimit)
	if err != nil {
		log.Printf("[cart] account=%s recommendations: %v", accountID, err)
		recs = []product.Product{}
	}

	return &Preview{
		Items:           lines,
		Pricing:         pricing.Preview(PricingLines(lines), s.taxRate, s.deliveryFee),
		Recommendations: recs,
	}, nil
}
