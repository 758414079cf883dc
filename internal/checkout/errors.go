package checkout

import (
	"errors"
	"fmt"

	"github.com/MikeMC777/medistore/internal/promo"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidPromo        = errors.New("invalid promo code")
	ErrPromoAlreadyUsed    = errors.New("promo code already used by this account")
	ErrEmptyOrder          = errors.New("order has no line items")
	ErrPersistence         = errors.New("order store unavailable")
	ErrInvalidRequest      = errors.New("invalid request")
	ErrDuplicateSubmission = errors.New("an order with this idempotency key is still being placed")
	ErrOrderNotFound       = errors.New("order not found")
	ErrInvalidTransition   = errors.New("order status cannot change")
)

var domainErrors = []error{
	ErrProductNotFound,
	ErrInsufficientStock,
	ErrInvalidPromo,
	ErrPromoAlreadyUsed,
	ErrEmptyOrder,
	ErrPersistence,
	ErrInvalidRequest,
	ErrDuplicateSubmission,
	ErrOrderNotFound,
	ErrInvalidTransition,
}

func isDomain(err error) bool {
	for _, d := range domainErrors {
		if errors.Is(err, d) {
			return true
		}
	}
	return false
}

// classify leaves domain errors alone and marks everything else as a
// persistence failure, the only retryable kind.
func classify(err error) error {
	if err == nil || isDomain(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// Retryable reports whether the caller may resubmit with the same
// idempotency key.
func Retryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}

func promoError(err error) error {
	if errors.Is(err, promo.ErrAlreadyUsed) {
		return fmt.Errorf("%w: %w", ErrPromoAlreadyUsed, err)
	}
	return fmt.Errorf("%w: %w", ErrInvalidPromo, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
