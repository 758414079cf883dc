package main

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/MikeMC777/medistore/internal/checkout"
	"github.com/MikeMC777/medistore/internal/httpx"
	"github.com/MikeMC777/medistore/internal/order"
)

const maxConfirmationIDs = 50

// @Summary Order confirmation for a comma separated list of ids
// @Tags orders
// @Produce json
// @Param ids query string true "Order ids"
// @Success 200 {object} order.Confirmation
// @Router /orders [get]
func confirmationHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var ids []string
		for _, id := range strings.Split(c.Query("ids"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			httpx.Error(c, http.StatusBadRequest, "ids is required")
			return
		}
		if len(ids) > maxConfirmationIDs {
			httpx.Error(c, http.StatusBadRequest, "too many ids")
			return
		}

		found, err := repo.GetByIDs(c.Request.Context(), ids)
		if err != nil {
			respond(c, http.StatusInternalServerError, err)
			return
		}
		account := httpx.AccountID(c)
		mine := make([]order.Order, 0, len(found))
		for _, o := range found {
			if o.AccountID == account {
				mine = append(mine, o)
			}
		}
		if len(mine) == 0 {
			httpx.Error(c, http.StatusNotFound, "order not found")
			return
		}
		c.JSON(http.StatusOK, order.NewConfirmation(mine))
	}
}

// @Summary Orders of the calling account
// @Tags orders
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {object} order.ListResponse
// @Router /orders/mine [get]
func listMyOrdersHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		items, err := repo.ListByAccount(c.Request.Context(), httpx.AccountID(c), limit, offset)
		if err != nil {
			respond(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, order.ListResponse{Limit: limit, Offset: offset, Items: items})
	}
}

// @Summary Get one order
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} order.Order
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func getOrderHandler(repo order.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if errors.Is(err, order.ErrNotFound) || (err == nil && o.AccountID != httpx.AccountID(c)) {
			httpx.Error(c, http.StatusNotFound, "order not found")
			return
		}
		if err != nil {
			respond(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary Quote a buy-now checkout repeating a past order
// @Tags orders
// @Produce json
// @Param id path string true "Order ID"
// @Success 200 {object} checkout.Quote
// @Router /orders/{id}/reorder [post]
func reorderHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		base, ok := bindCheckout(c)
		if !ok {
			return
		}
		q, err := svc.Reorder(c.Request.Context(), c.Param("id"), base)
		if err != nil {
			respond(c, checkoutStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

// @Summary Change order status
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Order ID"
// @Param input body order.UpdateStatusRequest true "Status"
// @Success 200 {object} order.Order
// @Failure 409 {object} map[string]string
// @Router /admin/orders/{id}/status [put]
func updateStatusHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req order.UpdateStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		if strings.TrimSpace(req.Status) == "" {
			httpx.Error(c, http.StatusBadRequest, "status is required")
			return
		}
		o, err := svc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, httpx.RID(c))
		if err != nil {
			respond(c, checkoutStatus(err), err)
			return
		}
		c.JSON(http.StatusOK, o)
	}
}

// @Summary Delete an order
// @Tags admin
// @Param id path string true "Order ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /admin/orders/{id} [delete]
func deleteOrderHandler(svc checkoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.DeleteOrder(c.Request.Context(), c.Param("id"), httpx.RID(c))
		if err != nil {
			respond(c, checkoutStatus(err), err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

var _ checkoutService = (*checkout.Service)(nil)
