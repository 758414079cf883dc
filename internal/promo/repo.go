package promo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/medistore/internal/database"
	"github.com/MikeMC777/medistore/internal/pricing"
)

var (
	ErrNotFound        = errors.New("promo code not found")
	ErrRedemptionExist = errors.New("promo redemption already recorded")
)

type Repository interface {
	GetByCode(ctx context.Context, code string) (*Code, error)
	LockByCode(ctx context.Context, code string) (*Code, error)
	HasRedeemed(ctx context.Context, promoID, accountID string) (bool, error)
	RecordRedemption(ctx context.Context, promoID, accountID string) error
}

type PGRepo struct{ db database.DBTX }

func NewPGRepo(db database.DBTX) *PGRepo { return &PGRepo{db: db} }

// WithTx returns a repository bound to tx.
func (r *PGRepo) WithTx(tx pgx.Tx) *PGRepo { return &PGRepo{db: tx} }

const selectCode = `
	SELECT id, code, discount_type, discount_value::text, valid_from, valid_until,
	       max_uses, used_count, is_active
	FROM promo_codes WHERE code = $1`

func (r *PGRepo) GetByCode(ctx context.Context, code string) (*Code, error) {
	return r.getByCode(ctx, selectCode, code)
}

// LockByCode reads the code with a row lock; it must run inside a transaction.
func (r *PGRepo) LockByCode(ctx context.Context, code string) (*Code, error) {
	return r.getByCode(ctx, selectCode+` FOR UPDATE`, code)
}

func (r *PGRepo) getByCode(ctx context.Context, query, code string) (*Code, error) {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	var (
		c     Code
		kind  string
		value string
	)
	err := r.db.QueryRow(ctx, query, Normalize(code)).Scan(
		&c.ID, &c.Code, &kind, &value, &c.ValidFrom, &c.ValidUntil,
		&c.MaxUses, &c.UsedCount, &c.IsActive,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get promo %q: %w", code, err)
	}
	c.DiscountType = pricing.DiscountKind(kind)
	if c.DiscountValue, err = decimal.NewFromString(value); err != nil {
		return nil, fmt.Errorf("promo %q discount_value: %w", code, err)
	}
	return &c, nil
}

func (r *PGRepo) HasRedeemed(ctx context.Context, promoID, accountID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	var ok bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM promo_redemptions WHERE promo_id = $1 AND account_id = $2
		)
	`, promoID, accountID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check redemption: %w", err)
	}
	return ok, nil
}

// RecordRedemption inserts the per-account record and bumps used_count. Both
// statements share the caller's transaction.
func (r *PGRepo) RecordRedemption(ctx context.Context, promoID, accountID string) error {
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO promo_redemptions (promo_id, account_id, redeemed_at)
		VALUES ($1, $2, NOW())
	`, promoID, accountID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrRedemptionExist
		}
		return fmt.Errorf("insert redemption: %w", err)
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE promo_codes SET used_count = used_count + 1 WHERE id = $1
	`, promoID)
	if err != nil {
		return fmt.Errorf("increment used_count: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
