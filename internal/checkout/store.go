package checkout

import (
	"context"

	"github.com/MikeMC777/medistore/internal/account"
	"github.com/MikeMC777/medistore/internal/cart"
	"github.com/MikeMC777/medistore/internal/order"
	"github.com/MikeMC777/medistore/internal/product"
	"github.com/MikeMC777/medistore/internal/promo"
)

// Read-side collaborators used outside the commit transaction.
type (
	Catalog interface {
		GetByID(ctx context.Context, id string) (*product.Product, error)
	}
	CartReader interface {
		Lines(ctx context.Context, accountID string) ([]cart.Line, error)
	}
	PromoReader interface {
		GetByCode(ctx context.Context, code string) (*promo.Code, error)
		HasRedeemed(ctx context.Context, promoID, accountID string) (bool, error)
	}
	AccountReader interface {
		GetByID(ctx context.Context, id string) (*account.Account, error)
	}
	OrderReader interface {
		GetByID(ctx context.Context, id string) (*order.Order, error)
	}
)

// Tx is the set of locked reads and writes performed inside one
// all-or-nothing transaction.
type Tx interface {
	CartLines(ctx context.Context, accountID string) ([]cart.Line, error)
	ClearCart(ctx context.Context, accountID string) error

	// LockProducts returns the rows it found, locked, in id order.
	LockProducts(ctx context.Context, ids []string) ([]product.Product, error)
	// MoveStock moves qty units from stock to sold; negative qty restocks.
	MoveStock(ctx context.Context, productID string, qty int) error

	// LockPromo returns promo.ErrNotFound for an unknown code.
	LockPromo(ctx context.Context, code string) (*promo.Code, error)
	HasRedeemed(ctx context.Context, promoID, accountID string) (bool, error)
	RecordRedemption(ctx context.Context, promoID, accountID string) error

	InsertOrder(ctx context.Context, o *order.Order) error
	// LockOrder returns order.ErrNotFound for an unknown id.
	LockOrder(ctx context.Context, id string) (*order.Order, error)
	SetOrderStatus(ctx context.Context, id string, status order.Status) error
	DeleteOrder(ctx context.Context, id string) (bool, error)
}

// TxRunner runs fn in a transaction. It commits when fn returns nil and
// rolls back otherwise.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}
