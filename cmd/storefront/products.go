package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/MikeMC777/medistore/internal/httpx"
	"github.com/MikeMC777/medistore/internal/product"
)

func pageParams(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// @Summary List or search products
// @Tags products
// @Produce json
// @Param q query string false "Name or description contains"
// @Param category query string false "Category"
// @Success 200 {object} product.ListResponse
// @Router /products [get]
func listProductsHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, offset := pageParams(c)
		q := product.Query{
			Q:        strings.TrimSpace(c.Query("q")),
			Category: strings.TrimSpace(c.Query("category")),
			Limit:    limit,
			Offset:   offset,
		}
		items, err := repo.List(c.Request.Context(), q)
		if err != nil {
			respond(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, product.ListResponse{
			Q: q.Q, Category: q.Category, Limit: limit, Offset: offset, Items: items,
		})
	}
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} product.Product
// @Failure 404 {object} map[string]string
// @Router /products/{id} [get]
func getProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := repo.GetByID(c.Request.Context(), c.Param("id"))
		if errors.Is(err, product.ErrNotFound) {
			httpx.Error(c, http.StatusNotFound, "product not found")
			return
		}
		if err != nil {
			respond(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param input body product.CreateProductRequest true "Product"
// @Success 201 {object} product.Product
// @Failure 400 {object} map[string]string
// @Router /products [post]
func createProductHandler(repo product.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req product.CreateProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httpx.Error(c, http.StatusBadRequest, "invalid json")
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			httpx.Error(c, http.StatusBadRequest, "name is required")
			return
		}
		price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
		if err != nil || price.IsNegative() {
			httpx.Error(c, http.StatusBadRequest, "price must be a non-negative decimal")
			return
		}
		if req.Stock < 0 {
			httpx.Error(c, http.StatusBadRequest, "stock must be non-negative")
			return
		}

		p := &product.Product{
			Name:        req.Name,
			Description: strings.TrimSpace(req.Description),
			Category:    strings.TrimSpace(req.Category),
			Price:       price.Round(2),
			Stock:       req.Stock,
		}
		if err := repo.Create(c.Request.Context(), p); err != nil {
			respond(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}
