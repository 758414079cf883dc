package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MikeMC777/medistore/internal/cart"
	"github.com/MikeMC777/medistore/internal/httpx"
)

type cartService interface {
	Add(ctx context.Context, accountID, productID string, qty int) (int, error)
	Adjust(ctx context.Context, accountID, productID string, action cart.Action) (int, error)
	Clear(ctx context.Context, accountID string) error
	Preview(ctx context.Context, accountID string) (*cart.Preview, error)
}

type cartLineResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// @Summary Cart contents with price preview and recommendations
// @Tags cart
// @Produce json
// @Success 200 {object} cart.Preview
// @Router /cart [get]
func getCartHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.Preview(c.Request.Context(), httpx.AccountID(c))
		if err != nil {
			respond(c, cartStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// @Summary Add a product to the cart
// @Tags cart
// @Accept json
// @Produce json
// @Param input body cart.AddItemRequest true "Item"
// @Success 200 {object} cartLineResponse
// @Failure 409 {object} map[string]string
// @Router /cart/items [post]
func addCartItemHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cart.AddItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		req.ProductID = strings.TrimSpace(req.ProductID)
		if req.ProductID == "" {
			httpx.Error(c, http.StatusBadRequest, "product_id is required")
			return
		}
		if req.Quantity == 0 {
			req.Quantity = 1
		}
		qty, err := svc.Add(c.Request.Context(), httpx.AccountID(c), req.ProductID, req.Quantity)
		if err != nil {
			respond(c, cartStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, cartLineResponse{ProductID: req.ProductID, Quantity: qty})
	}
}

// @Summary Increase, decrease or remove a cart line
// @Tags cart
// @Accept json
// @Produce json
// @Param product_id path string true "Product ID"
// @Param input body cart.AdjustItemRequest true "Action"
// @Success 200 {object} cartLineResponse
// @Router /cart/items/{product_id} [patch]
func adjustCartItemHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cart.AdjustItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		productID := c.Param("product_id")
		if _, err := uuid.Parse(productID); err != nil {
			httpx.Error(c, http.StatusNotFound, cart.ErrNotInCart.Error())
			return
		}
		action := cart.Action(strings.ToLower(strings.TrimSpace(req.Action)))
		qty, err := svc.Adjust(c.Request.Context(), httpx.AccountID(c), productID, action)
		if err != nil {
			respond(c, cartStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, cartLineResponse{ProductID: productID, Quantity: qty})
	}
}

// @Summary Empty the cart
// @Tags cart
// @Success 204
// @Router /cart [delete]
func clearCartHandler(svc cartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.Clear(c.Request.Context(), httpx.AccountID(c)); err != nil {
			respond(c, cartStatus(err), err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
