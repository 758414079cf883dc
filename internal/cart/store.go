package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/medistore/internal/account"
	"github.com/MikeMC777/medistore/internal/database"
	"github.com/MikeMC777/medistore/internal/product"
)

type Store interface {
	Lines(ctx context.Context, accountID string) ([]Line, error)
	// Quantity returns 0 when the product is not in the cart.
	Quantity(ctx context.Context, accountID, productID string) (int, error)
	SetQuantity(ctx context.Context, accountID, productID string, qty int) error
	Remove(ctx context.Context, accountID, productID string) (bool, error)
	Clear(ctx context.Context, accountID string) error
}

const (
	pgForeignKeyViolation = "23503"
	accountFK             = "cart_items_account_id_fkey"
	productFK             = "cart_items_product_id_fkey"
)

type PGStore struct{ db database.DBTX }

func NewPGStore(db database.DBTX) *PGStore { return &PGStore{db: db} }

// WithTx returns a store bound to tx.
func (s *PGStore) WithTx(tx pgx.Tx) *PGStore { return &PGStore{db: tx} }

func (s *PGStore) Lines(ctx context.Context, accountID string) ([]Line, error) {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, `
		SELECT c.product_id, p.name, p.price::text, c.quantity, p.stock_quantity, c.added_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.account_id = $1
		ORDER BY c.added_at, c.product_id
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	out := []Line{}
	for rows.Next() {
		var (
			l     Line
			price string
		)
		if err := rows.Scan(&l.ProductID, &l.Name, &price, &l.Quantity, &l.Stock, &l.AddedAt); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("cart line %s price: %w", l.ProductID, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PGStore) Quantity(ctx context.Context, accountID, productID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	var q int
	err := s.db.QueryRow(ctx, `
		SELECT quantity FROM cart_items WHERE account_id=$1 AND product_id=$2
	`, accountID, productID).Scan(&q)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cart quantity: %w", err)
	}
	return q, nil
}

func (s *PGStore) SetQuantity(ctx context.Context, accountID, productID string, qty int) error {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	_, err := s.db.Exec(ctx, `
		INSERT INTO cart_items (account_id, product_id, quantity, added_at)
		VALUES ($1,$2,$3,NOW())
		ON CONFLICT (account_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
	`, accountID, productID, qty)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			switch pgErr.ConstraintName {
			case accountFK:
				return fmt.Errorf("%w: %s", account.ErrNotFound, accountID)
			case productFK:
				return fmt.Errorf("%w: %s", product.ErrNotFound, productID)
			}
		}
		return fmt.Errorf("set cart quantity: %w", err)
	}
	return nil
}

func (s *PGStore) Remove(ctx context.Context, accountID, productID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	cmd, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE account_id=$1 AND product_id=$2`, accountID, productID)
	if err != nil {
		return false, fmt.Errorf("remove cart item: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

func (s *PGStore) Clear(ctx context.Context, accountID string) error {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	if _, err := s.db.Exec(ctx, `DELETE FROM cart_items WHERE account_id=$1`, accountID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
