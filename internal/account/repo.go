// Package account reads customer accounts. Accounts are created and
// authenticated elsewhere; this service only looks them up.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeMC777/medistore/internal/database"
)

var (
	ErrNotFound = errors.New("account not found")
)

type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullAddress joins the saved street address and city, skipping blanks.
func (a Account) FullAddress() string {
	parts := make([]string, 0, 2)
	for _, s := range []string{a.Address, a.City} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*Account, error)
}

type PGRepo struct{ db database.DBTX }

func NewPGRepo(db database.DBTX) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) GetByID(ctx context.Context, id string) (*Account, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, database.QueryTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, name, email, phone, address, city, created_at, updated_at
		FROM accounts WHERE id=$1
	`, id)
	var a Account
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Address, &a.City, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}
