package dto

import (
	"time"

	"uplregistry/internal/domain/upl/entities"
)

// ErrorResponse is the uniform error envelope across every endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// CreateUplRequest is the wire payload for a single UPL creation.
type CreateUplRequest struct {
	UplID                  string     `json:"upl_id" binding:"required"`
	ProductID              uint32     `json:"product_id" binding:"required"`
	ProductUnit            string     `json:"product_unit"`
	Sku                    uint32     `json:"sku" binding:"required"`
	Piece                  uint32     `json:"piece"`
	SkuDivisibleAmount     uint32     `json:"sku_divisible_amount"`
	SkuDivisible           bool       `json:"sku_divisible"`
	SkuNetPrice            int64      `json:"sku_net_price"`
	SkuVat                 string     `json:"sku_vat" binding:"required"`
	ProcurementID          uint32     `json:"procurement_id"`
	ProcurementNetPriceSku int64      `json:"procurement_net_price_sku"`
	StockID                uint32     `json:"stock_id" binding:"required"`
	BestBefore             *time.Time `json:"best_before,omitempty"`
	IsOpened               bool       `json:"is_opened"`
	CreatedBy              uint32     `json:"created_by"`
}

func (r CreateUplRequest) ToSpec() entities.NewUplSpec {
	return entities.NewUplSpec{
		UplID:                  entities.UplId(r.UplID),
		ProductID:              r.ProductID,
		ProductUnit:            r.ProductUnit,
		Sku:                    r.Sku,
		Piece:                  r.Piece,
		SkuDivisibleAmount:     r.SkuDivisibleAmount,
		SkuDivisible:           r.SkuDivisible,
		SkuNetPrice:            r.SkuNetPrice,
		SkuVat:                 entities.Vat(r.SkuVat),
		ProcurementID:          r.ProcurementID,
		ProcurementNetPriceSku: r.ProcurementNetPriceSku,
		StockID:                r.StockID,
		BestBefore:             r.BestBefore,
		IsOpened:               r.IsOpened,
		CreatedBy:              r.CreatedBy,
	}
}

// CreateUplBulkResult reports one row of a bulk creation's NDJSON output.
type CreateUplBulkResult struct {
	UplID string `json:"upl_id"`
	Ok    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// GetBulkResult reports one row of a bulk read's NDJSON output.
type GetBulkResult struct {
	UplID string       `json:"upl_id"`
	Upl   *entities.Upl `json:"upl,omitempty"`
	Error string       `json:"error,omitempty"`
}

type SetBestBeforeRequest struct {
	BestBefore *time.Time `json:"best_before"`
	By         uint32     `json:"by"`
}

type SplitRequest struct {
	NewID string `json:"new_id" binding:"required"`
	Piece uint32 `json:"piece" binding:"required"`
	By    uint32 `json:"by"`
}

type SplitBulkRequest struct {
	NewIDs []string `json:"new_ids" binding:"required"`
	By     uint32   `json:"by"`
}

type DivideRequest struct {
	NewID  string `json:"new_id" binding:"required"`
	Amount uint32 `json:"amount" binding:"required"`
	By     uint32 `json:"by"`
}

type DepreciationRequest struct {
	DepreciationID string `json:"depreciation_id" binding:"required"`
	Comment        string `json:"comment"`
	By             uint32 `json:"by"`
}

type DepreciationPriceRequest struct {
	Net int64  `json:"net" binding:"required"`
	By  uint32 `json:"by"`
}

type ByRequest struct {
	By uint32 `json:"by"`
}

type LockToCartRequest struct {
	CartID string `json:"cart_id" binding:"required"`
	By     uint32 `json:"by"`
}

type LockToInventoryRequest struct {
	InventoryID uint32 `json:"inventory_id" binding:"required"`
	By          uint32 `json:"by"`
}

type MoveRequest struct {
	Location entities.Location `json:"location"`
	By       uint32            `json:"by"`
}

type SetSkuPriceRequest struct {
	Net           int64  `json:"net"`
	Vat           string `json:"vat" binding:"required"`
	DeclaredGross int64  `json:"declared_gross"`
	By            uint32 `json:"by"`
}

type SetSkuDivisibleRequest struct {
	Divisible bool   `json:"divisible"`
	By        uint32 `json:"by"`
}

type AffectedCountResponse struct {
	Affected int `json:"affected"`
}

type LocationInfoEntry struct {
	StockID uint32 `json:"stock_id"`
	Total   uint32 `json:"total"`
	Healthy uint32 `json:"healthy"`
}

type LocationInfoRequest struct {
	Skus []uint32 `json:"skus" binding:"required"`
}
