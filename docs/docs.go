// Package docs registers the storefront OpenAPI document with swag.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/products": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "List or search products",
                "parameters": [
                    {"type": "string", "name": "q", "in": "query"},
                    {"type": "string", "name": "category", "in": "query"},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/product.ListResponse"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Create product",
                "parameters": [
                    {"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/product.CreateProductRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/product.Product"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/products/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["products"],
                "summary": "Get product by id",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/product.Product"}},
                    "404": {"description": "Not Found", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/cart": {
            "get": {
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Cart contents with price preview and recommendations",
                "parameters": [{"type": "string", "name": "X-Account-ID", "in": "header", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/cart.Preview"}}}
            },
            "delete": {
                "tags": ["cart"],
                "summary": "Empty the cart",
                "parameters": [{"type": "string", "name": "X-Account-ID", "in": "header", "required": true}],
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/cart/items": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Add a product to the cart",
                "parameters": [
                    {"type": "string", "name": "X-Account-ID", "in": "header", "required": true},
                    {"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/cart.AddItemRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Conflict", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/cart/items/{product_id}": {
            "patch": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["cart"],
                "summary": "Increase, decrease or remove a cart line",
                "parameters": [
                    {"type": "string", "name": "X-Account-ID", "in": "header", "required": true},
                    {"type": "string", "name": "product_id", "in": "path", "required": true},
                    {"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/cart.AdjustItemRequest"}}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/checkout/quote": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["checkout"],
                "summary": "Price a checkout without committing it",
                "parameters": [
                    {"type": "string", "name": "X-Account-ID", "in": "header", "required": true},
                    {"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/checkout.Request"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/checkout.Quote"}}}
            }
        },
        "/buy-now": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["checkout"],
                "summary": "Quote a single product checkout",
                "parameters": [
                    {"type": "string", "name": "X-Account-ID", "in": "header", "required": true},
                    {"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/checkout.Request"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/checkout.Quote"}}}
            }
        },
        "/orders": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Order confirmation for a comma separated list of ids",
                "parameters": [
                    {"type": "string", "name": "X-Account-ID", "in": "header", "required": true},
                    {"type": "string", "name": "ids", "in": "query", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Confirmation"}}}
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Place an order from the cart or a buy-now selection",
                "parameters": [
                    {"type": "string", "name": "X-Account-ID", "in": "header", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/checkout.Request"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/checkout.Receipt"}},
                    "404": {"description": "Product not found"},
                    "409": {"description": "Insufficient stock, promo already used or duplicate submission"},
                    "422": {"description": "Invalid promo code"},
                    "503": {"description": "Order store unavailable, retry with the same Idempotency-Key"}
                }
            }
        },
        "/orders/mine": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Orders of the calling account",
                "parameters": [
                    {"type": "string", "name": "X-Account-ID", "in": "header", "required": true},
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/order.ListResponse"}}}
            }
        },
        "/orders/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Get one order",
                "parameters": [
                    {"type": "string", "name": "X-Account-ID", "in": "header", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}}}
            }
        },
        "/orders/{id}/reorder": {
            "post": {
                "produces": ["application/json"],
                "tags": ["orders"],
                "summary": "Quote a buy-now checkout repeating a past order",
                "parameters": [
                    {"type": "string", "name": "X-Account-ID", "in": "header", "required": true},
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/checkout.Quote"}}}
            }
        },
        "/admin/orders/{id}/status": {
            "put": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["admin"],
                "summary": "Change order status",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "input", "in": "body", "required": true, "schema": {"$ref": "#/definitions/order.UpdateStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/order.Order"}},
                    "409": {"description": "Order already delivered or cancelled"}
                }
            }
        },
        "/admin/orders/{id}": {
            "delete": {
                "tags": ["admin"],
                "summary": "Delete an order",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {"204": {"description": "No Content"}, "404": {"description": "Not Found"}}
            }
        }
    },
    "definitions": {
        "product.Product": {"type": "object"},
        "product.ListResponse": {"type": "object"},
        "product.CreateProductRequest": {"type": "object"},
        "cart.Preview": {"type": "object"},
        "cart.AddItemRequest": {"type": "object"},
        "cart.AdjustItemRequest": {"type": "object"},
        "checkout.Request": {"type": "object"},
        "checkout.Quote": {"type": "object"},
        "checkout.Receipt": {"type": "object"},
        "order.Order": {"type": "object"},
        "order.Confirmation": {"type": "object"},
        "order.ListResponse": {"type": "object"},
        "order.UpdateStatusRequest": {"type": "object"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "medistore storefront API",
	Description:      "Catalog, cart, checkout and order administration for the pharmacy storefront.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
