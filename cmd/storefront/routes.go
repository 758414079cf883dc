package main

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/MikeMC777/medistore/docs"
	"github.com/MikeMC777/medistore/internal/httpx"
	"github.com/MikeMC777/medistore/internal/order"
	"github.com/MikeMC777/medistore/internal/product"
)

type readiness interface {
	Check(ctx context.Context) (map[string]string, bool)
}

type app struct {
	products product.Repository
	orders   order.Repository
	cart     cartService
	checkout checkoutService
	health   readiness
	registry *prometheus.Registry
}

func newRouter(a app) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), httpx.RequestID(), httpx.Logger(), httpx.Metrics(a.registry))

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/readyz", readyHandler(a.health))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	r.GET("/products", listProductsHandler(a.products))
	r.GET("/products/:id", getProductHandler(a.products))
	r.POST("/products", createProductHandler(a.products))

	acct := r.Group("/", httpx.RequireAccount())
	acct.GET("/cart", getCartHandler(a.cart))
	acct.POST("/cart/items", addCartItemHandler(a.cart))
	acct.PATCH("/cart/items/:product_id", adjustCartItemHandler(a.cart))
	acct.DELETE("/cart", clearCartHandler(a.cart))

	acct.POST("/checkout/quote", quoteHandler(a.checkout))
	acct.POST("/buy-now", buyNowHandler(a.checkout))

	acct.POST("/orders", placeOrderHandler(a.checkout))
	acct.GET("/orders", confirmationHandler(a.orders))
	acct.GET("/orders/mine", listMyOrdersHandler(a.orders))
	acct.GET("/orders/:id", getOrderHandler(a.orders))
	acct.POST("/orders/:id/reorder", reorderHandler(a.checkout))

	admin := r.Group("/admin")
	admin.PUT("/orders/:id/status", updateStatusHandler(a.checkout))
	admin.DELETE("/orders/:id", deleteOrderHandler(a.checkout))
	return r
}

func readyHandler(h readiness) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps, ok := h.Check(c.Request.Context())
		status := http.StatusOK
		if !ok {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"ready": ok, "dependencies": deps})
	}
}
