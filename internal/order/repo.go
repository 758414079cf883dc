package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/medistore/internal/database"
)

var (
	ErrNotFound = errors.New("order not found")
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	GetByIDs(ctx context.Context, ids []string) ([]Order, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Order, error)
}

type PGRepo struct{ db database.DBTX }

func NewPGRepo(db database.DBTX) *PGRepo { return &PGRepo{db: db} }

// WithTx returns a repository bound to tx.
func (r *PGRepo) WithTx(tx pgx.Tx) *PGRepo { return &PGRepo{db: tx} }

const columns = `id, checkout_id, account_id, product_id, product_name, quantity,
	unit_price::text, total::text, customer_name, email, phone, address,
	payment_method, delivery_option, promo_code, special_instruction, status,
	created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o           Order
		unit, total string
		status      string
	)
	err := row.Scan(&o.ID, &o.CheckoutID, &o.AccountID, &o.ProductID, &o.ProductName, &o.Quantity,
		&unit, &total, &o.CustomerName, &o.Email, &o.Phone, &o.Address,
		&o.PaymentMethod, &o.DeliveryOption, &o.PromoCode, &o.SpecialInstruction, &status,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return o, err
	}
	o.Status = Status(status)
	if o.UnitPrice, err = decimal.NewFromString(unit); err != nil {
		return o, fmt.Errorf("order %s unit_price: %w", o.ID, err)
	}
	if o.Total, err = decimal.NewFromString(total); err != nil {
		return o, fmt.Errorf("order %s total: %w", o.ID, err)
	}
	return o, nil
}

func collect(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	out := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Insert writes one order row. Run it on a transaction-bound repository.
func (r *PGRepo) Insert(ctx context.Context, o *Order) error {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO orders (id, checkout_id, account_id, product_id, product_name, quantity,
			unit_price, total, customer_name, email, phone, address,
			payment_method, delivery_option, promo_code, special_instruction, status,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7::numeric,$8::numeric,$9,$10,$11,$12,$13,$14,$15,$16,$17,NOW(),NOW())
		RETURNING created_at, updated_at
	`, o.ID, o.CheckoutID, o.AccountID, o.ProductID, o.ProductName, o.Quantity,
		o.UnitPrice.StringFixed(2), o.Total.StringFixed(2), o.CustomerName, o.Email, o.Phone, o.Address,
		o.PaymentMethod, o.DeliveryOption, o.PromoCode, o.SpecialInstruction, string(o.Status),
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	return r.getByID(ctx, `SELECT `+columns+` FROM orders WHERE id=$1`, id)
}

// LockByID reads the order with a row lock; it must run inside a transaction.
func (r *PGRepo) LockByID(ctx context.Context, id string) (*Order, error) {
	return r.getByID(ctx, `SELECT `+columns+` FROM orders WHERE id=$1 FOR UPDATE`, id)
}

func (r *PGRepo) getByID(ctx context.Context, query, id string) (*Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	o, err := scanOrder(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// GetByIDs loads the given orders in creation order. Unknown or malformed
// ids are skipped.
func (r *PGRepo) GetByIDs(ctx context.Context, ids []string) ([]Order, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return []Order{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM orders WHERE id = ANY($1::uuid[])
		ORDER BY created_at, id
	`, valid)
	if err != nil {
		return nil, fmt.Errorf("get orders: %w", err)
	}
	return collect(rows)
}

func (r *PGRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if _, err := uuid.Parse(accountID); err != nil {
		return []Order{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM orders WHERE account_id=$1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return collect(rows)
}

func (r *PGRepo) SetStatus(ctx context.Context, id string, status Status) error {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE orders
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`, id, string(status))
	if err != nil {
		return fmt.Errorf("set order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := uuid.Parse(id); err != nil {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	cmd, err := r.db.Exec(ctx, `DELETE FROM orders WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete order: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}
