package main

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/medistore/internal/checkout"
	"github.com/MikeMC777/medistore/internal/httpx"
	"github.com/MikeMC777/medistore/internal/order"
)

type checkoutService interface {
	Quote(ctx context.Context, req checkout.Request) (*checkout.Quote, error)
	PlaceOrder(ctx context.Context, req checkout.Request) (*checkout.Receipt, error)
	UpdateStatus(ctx context.Context, orderID, status, rid string) (*order.Order, error)
	DeleteOrder(ctx context.Context, orderID, rid string) error
	Reorder(ctx context.Context, orderID string, base checkout.Request) (*checkout.Quote, error)
}

// bindCheckout reads an optional JSON body and fills the header-sourced
// fields. An empty body is a cart checkout with saved contact details.
func bindCheckout(c *gin.Context) (checkout.Request, bool) {
	var req checkout.Request
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Error(c, http.StatusBadRequest, "invalid json")
		return req, false
	}
	req.AccountID = httpx.AccountID(c)
	req.RequestID = httpx.RID(c)
	return req, true
}

// @Summary Price a checkout without committing it
// @Tags checkout
// @Accept json
// @Produce json
// @Param input body checkout.Request true "Checkout"
// @Success 200 {object} checkout.Quote
// @Router /checkout/quote [post]
func quoteHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindCheckout(c)
		if !ok {
			return
		}
		q, err := svc.Quote(c.Request.Context(), req)
		if err != nil {
			respond(c, checkoutStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

// @Summary Quote a single product checkout
// @Tags checkout
// @Accept json
// @Produce json
// @Param input body checkout.Request true "Product and quantity"
// @Success 200 {object} checkout.Quote
// @Router /buy-now [post]
func buyNowHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindCheckout(c)
		if !ok {
			return
		}
		req.Source = checkout.SourceBuyNow
		q, err := svc.Quote(c.Request.Context(), req)
		if err != nil {
			respond(c, checkoutStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

// @Summary Place an order from the cart or a buy-now selection
// @Tags orders
// @Accept json
// @Produce json
// @Param Idempotency-Key header string false "Duplicate submission guard"
// @Param input body checkout.Request true "Checkout"
// @Success 201 {object} checkout.Receipt
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /orders [post]
func placeOrderHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindCheckout(c)
		if !ok {
			return
		}
		req.IdempotencyKey = c.GetHeader(httpx.HeaderIdempotencyKey)

		rec, err := svc.PlaceOrder(c.Request.Context(), req)
		if err != nil {
			respond(c, checkoutStatus(err), err)
			return
		}
		status := http.StatusCreated
		if rec.Replayed {
			status = http.StatusOK
		}
		c.JSON(status, rec)
	}
}
