// Package product provides the repository interface and PostgreSQL implementation for the medicine catalog.
package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/medistore/internal/database"
)

var (
	ErrNotFound = errors.New("product not found")
)

type Query struct {
	Q        string
	Category string
	Limit    int
	Offset   int
}

type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, q Query) ([]Product, error)
	TopSelling(ctx context.Context, exclude []string, limit int) ([]Product, error)
}

type PGRepo struct{ db database.DBTX }

func NewPGRepo(db database.DBTX) *PGRepo { return &PGRepo{db: db} }

// WithTx returns a repository bound to tx.
func (r *PGRepo) WithTx(tx pgx.Tx) *PGRepo { return &PGRepo{db: tx} }

const columns = `id, name, description, category, price::text, stock_quantity, sold_quantity, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p     Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &price, &p.Stock, &p.Sold, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return p, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return p, fmt.Errorf("product %s price %q: %w", p.ID, price, err)
	}
	p.Price = d
	return p, nil
}

func collect(rows pgx.Rows) ([]Product, error) {
	defer rows.Close()
	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepo) Create(ctx context.Context, p *Product) error {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, name, description, category, price, stock_quantity, sold_quantity, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5::numeric,$6,0,NOW(),NOW())
	`, p.ID, p.Name, p.Description, p.Category, p.Price.StringFixed(2), p.Stock)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	p, err := scanProduct(r.db.QueryRow(ctx, `SELECT `+columns+` FROM products WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *PGRepo) List(ctx context.Context, q Query) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	limit := q.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	search := strings.TrimSpace(q.Q)
	category := strings.TrimSpace(q.Category)

	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM products
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR description ILIKE '%'||$1||'%')
		  AND ($2 = '' OR category = $2)
		ORDER BY name ASC, id ASC
		LIMIT $3 OFFSET $4
	`, search, category, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collect(rows)
}

// TopSelling returns the best sellers that are in stock, skipping the
// excluded ids. The exclusion list is bound as a single array parameter.
func (r *PGRepo) TopSelling(ctx context.Context, exclude []string, limit int) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 4
	}
	if exclude == nil {
		exclude = []string{}
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM products
		WHERE id <> ALL($1::uuid[]) AND stock_quantity > 0
		ORDER BY sold_quantity DESC, name ASC
		LIMIT $2
	`, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("top selling: %w", err)
	}
	return collect(rows)
}

// LockForUpdate row-locks the given products in id order so concurrent
// checkouts over overlapping carts acquire locks in the same sequence.
// Missing ids are simply absent from the result.
func (r *PGRepo) LockForUpdate(ctx context.Context, ids []string) ([]Product, error) {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+columns+`
		FROM products
		WHERE id = ANY($1::uuid[])
		ORDER BY id
		FOR UPDATE
	`, valid)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	return collect(rows)
}

// MoveStock takes qty units out of stock and adds them to the sold counter.
// A negative qty puts units back. The CHECK constraints reject any result
// below zero.
func (r *PGRepo) MoveStock(ctx context.Context, id string, qty int) error {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2,
		    sold_quantity  = sold_quantity + $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return fmt.Errorf("move stock for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
