package main

// @title UPL Registry API
// @version 1.0.0
// @description HTTP surface over the unique product lot registry: lifecycle
// @description operations (split, divide, merge, lock, close) on individually
// @description tracked product lots, plus SKU-level price and location lookups.
// @description
// @description ## Overview
// @description A UPL (unique product lot) is the atomic unit this registry
// @description tracks: a priced quantity of a SKU at a location, carrying its
// @description own best-before date, depreciation state, and lock state. Most
// @description endpoints mutate a single UPL by id; the cart and inventory
// @description close endpoints operate on every UPL currently locked to a
// @description given collection.
// @description
// @description ## Rate Limiting
// @description Requests are token-bucket limited per client IP. The limit is
// @description configurable and disabled entirely in development by default.
// @description
// @description ## Error Codes
// @description Errors are returned as a structured JSON body:
// @description ```json
// @description {
// @description   "error": {
// @description     "code": "NOT_FOUND",
// @description     "message": "upl not found",
// @description     "correlation_id": "..."
// @description   }
// @description }
// @description ```
// @description
// @description - **400 Bad Request**: malformed request body or path parameter
// @description - **404 Not Found**: the referenced upl or sku does not exist
// @description - **409 Conflict**: the requested transition is invalid for the upl's current state
// @description - **422 Unprocessable Entity**: request body failed validation
// @description - **429 Too Many Requests**: rate limit exceeded
// @description - **500 Internal Server Error**: unexpected failure in the store or cache layer

// @host localhost:8080
// @BasePath /api/v1

// @schemes http https
// @produce json
// @consumes json

// @tag.name Upls
// @tag.description Lifecycle operations on individual unique product lots: creation, split, divide, merge, lock, close, and history.

// @tag.name Carts
// @tag.description Bulk close of every upl locked to a given cart, archiving them in one pass.

// @tag.name Inventory
// @tag.description Bulk close of every upl locked to a given inventory collection point.

// @tag.name Skus
// @tag.description SKU-level configuration: price, divisibility, and location lookups shared across all upls of that sku.

// @tag.name Health
// @tag.description Liveness and readiness endpoints used by the orchestrator.
