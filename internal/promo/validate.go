// Package promo stores promotion codes and decides whether an account may
// redeem one.
package promo

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalid     = errors.New("invalid or expired promo code")
	ErrAlreadyUsed = errors.New("promo code already used")
)

// Reason strings carried by rejections so callers can tell them apart.
const (
	ReasonNotFound  = "not_found"
	ReasonInactive  = "inactive"
	ReasonNotYet    = "not_yet_valid"
	ReasonExpired   = "expired"
	ReasonExhausted = "exhausted"
	ReasonUsed      = "already_used"
)

// Rejection describes why a code was refused. It unwraps to ErrInvalid or
// ErrAlreadyUsed.
type Rejection struct {
	Code   string
	Reason string
	err    error
}

func (r *Rejection) Error() string {
	if r.Code == "" {
		return fmt.Sprintf("%s (%s)", r.err, r.Reason)
	}
	return fmt.Sprintf("%s: %s (%s)", r.err, r.Code, r.Reason)
}

func (r *Rejection) Unwrap() error { return r.err }

func reject(code, reason string, err error) error {
	return &Rejection{Code: code, Reason: reason, err: err}
}

// ReasonOf extracts the rejection reason, or "" when err is not a Rejection.
func ReasonOf(err error) string {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason
	}
	return ""
}

// Validate checks c against today's date and the account's redemption
// history. A nil c means the code does not exist. The validity window is
// inclusive on both ends and compared by calendar day.
func Validate(c *Code, today time.Time, redeemed bool) error {
	if c == nil {
		return reject("", ReasonNotFound, ErrInvalid)
	}
	if !c.IsActive {
		return reject(c.Code, ReasonInactive, ErrInvalid)
	}
	day := dateOf(today)
	if day.Before(dateOf(c.ValidFrom)) {
		return reject(c.Code, ReasonNotYet, ErrInvalid)
	}
	if day.After(dateOf(c.ValidUntil)) {
		return reject(c.Code, ReasonExpired, ErrInvalid)
	}
	if c.UsedCount >= c.MaxUses {
		return reject(c.Code, ReasonExhausted, ErrInvalid)
	}
	if redeemed {
		return reject(c.Code, ReasonUsed, ErrAlreadyUsed)
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
