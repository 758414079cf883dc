package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MikeMC777/medistore/internal/cart"
	"github.com/MikeMC777/medistore/internal/order"
	"github.com/MikeMC777/medistore/internal/product"
	"github.com/MikeMC777/medistore/internal/promo"
)

// Postgres error codes the commit path distinguishes.
const (
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

type PGStore struct{ pool *pgxpool.Pool }

func NewPGStore(pool *pgxpool.Pool) *PGStore { return &PGStore{pool: pool} }

var _ TxRunner = (*PGStore)(nil)

func (s *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ErrPersistence, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, newPGTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", ErrPersistence, err)
	}
	return nil
}

type pgTx struct {
	products *product.PGRepo
	promos   *promo.PGRepo
	orders   *order.PGRepo
	carts    *cart.PGStore
}

func newPGTx(tx pgx.Tx) *pgTx {
	return &pgTx{
		products: product.NewPGRepo(tx),
		promos:   promo.NewPGRepo(tx),
		orders:   order.NewPGRepo(tx),
		carts:    cart.NewPGStore(tx),
	}
}

func (t *pgTx) CartLines(ctx context.Context, accountID string) ([]cart.Line, error) {
	return t.carts.Lines(ctx, accountID)
}

func (t *pgTx) ClearCart(ctx context.Context, accountID string) error {
	return t.carts.Clear(ctx, accountID)
}

func (t *pgTx) LockProducts(ctx context.Context, ids []string) ([]product.Product, error) {
	return t.products.LockForUpdate(ctx, ids)
}

func (t *pgTx) MoveStock(ctx context.Context, productID string, qty int) error {
	err := t.products.MoveStock(ctx, productID, qty)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgCheckViolation {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, productID)
	}
	return err
}

func (t *pgTx) LockPromo(ctx context.Context, code string) (*promo.Code, error) {
	return t.promos.LockByCode(ctx, code)
}

func (t *pgTx) HasRedeemed(ctx context.Context, promoID, accountID string) (bool, error) {
	return t.promos.HasRedeemed(ctx, promoID, accountID)
}

func (t *pgTx) RecordRedemption(ctx context.Context, promoID, accountID string) error {
	return t.promos.RecordRedemption(ctx, promoID, accountID)
}

func (t *pgTx) InsertOrder(ctx context.Context, o *order.Order) error {
	return t.orders.Insert(ctx, o)
}

func (t *pgTx) LockOrder(ctx context.Context, id string) (*order.Order, error) {
	return t.orders.LockByID(ctx, id)
}

func (t *pgTx) SetOrderStatus(ctx context.Context, id string, status order.Status) error {
	return t.orders.SetStatus(ctx, id, status)
}

func (t *pgTx) DeleteOrder(ctx context.Context, id string) (bool, error) {
	return t.orders.Delete(ctx, id)
}

// transient reports Postgres conflicts that a retry may clear.
func transient(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}
