package main

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/medistore/internal/account"
	"github.com/MikeMC777/medistore/internal/cart"
	"github.com/MikeMC777/medistore/internal/checkout"
	"github.com/MikeMC777/medistore/internal/httpx"
	"github.com/MikeMC777/medistore/internal/product"
)

func checkoutStatus(err error) int {
	switch {
	case errors.Is(err, checkout.ErrProductNotFound), errors.Is(err, checkout.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrInsufficientStock),
		errors.Is(err, checkout.ErrPromoAlreadyUsed),
		errors.Is(err, checkout.ErrDuplicateSubmission),
		errors.Is(err, checkout.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrInvalidPromo):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrEmptyOrder), errors.Is(err, checkout.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, checkout.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func cartStatus(err error) int {
	switch {
	case errors.Is(err, product.ErrNotFound), errors.Is(err, cart.ErrNotInCart):
		return http.StatusNotFound
	case errors.Is(err, cart.ErrInsufficientStock), errors.Is(err, cart.ErrQuantityFloor):
		return http.StatusConflict
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrUnknownAction),
		errors.Is(err, account.ErrNotFound):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respond writes err with the given status. Server-side failures are logged
// in full and answered with a generic message.
func respond(c *gin.Context, status int, err error) {
	if status < http.StatusInternalServerError {
		httpx.Error(c, status, err.Error())
		return
	}
	log.Printf("[http] rid=%s %s %s: %v", httpx.RID(c), c.Request.Method, c.FullPath(), err)
	msg := "internal error"
	if errors.Is(err, checkout.ErrPersistence) {
		msg = checkout.ErrPersistence.Error() + ", retry with the same Idempotency-Key"
	}
	httpx.Error(c, status, msg)
}
