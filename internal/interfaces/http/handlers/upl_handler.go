package handlers

import (
	"bufio"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	upl "uplregistry/internal/application/services/upl"
	"uplregistry/internal/domain/upl/entities"
	"uplregistry/internal/interfaces/http/dto"
	"uplregistry/internal/interfaces/http/middleware"
)

// UplService is the subset of the application service a handler drives.
// Defined here, against the concrete service package, so handlers stay
// decoupled from its internals.
type UplService interface {
	CreateNew(spec entities.NewUplSpec) (*entities.Upl, error)
	CreateNewBulk(specs []entities.NewUplSpec) []upl.BulkCreateResult
	GetById(id entities.UplId) (*entities.Upl, error)
	GetByIdArchive(id entities.UplId) (*entities.Upl, error)
	GetBulk(ids []entities.UplId) []upl.BulkGetResult
	GetBySku(sku uint32) []entities.UplId
	GetBySkuAndLocation(sku uint32, location entities.Location) []entities.UplId
	GetByLocation(location entities.Location) []entities.UplId
	SetBestBefore(id entities.UplId, bestBefore *time.Time, by uint32) (*entities.Upl, error)
	Split(id, newID entities.UplId, piece uint32, by uint32) (*entities.Upl, error)
	SplitBulk(id entities.UplId, newIDs []entities.UplId, by uint32) (*entities.Upl, []*entities.Upl, error)
	OpenUpl(id entities.UplId, by uint32) (*entities.Upl, error)
	CloseUpl(id entities.UplId, by uint32) (*entities.Upl, error)
	Divide(id, newID entities.UplId, amount uint32, by uint32) (*entities.Upl, error)
	MergeBack(childID entities.UplId, by uint32) error
	SetDepreciation(id entities.UplId, depreciationID, comment string, by uint32) (*entities.Upl, error)
	RemoveDepreciation(id entities.UplId, by uint32) (*entities.Upl, error)
	SetDepreciationPrice(id entities.UplId, net int64, by uint32) (*entities.Upl, error)
	RemoveDepreciationPrice(id entities.UplId, by uint32) (*entities.Upl, error)
	LockToCart(id entities.UplId, cartID string, by uint32) (*entities.Upl, error)
	LockToInventory(id entities.UplId, inventoryID uint32, by uint32) (*entities.Upl, error)
	ReleaseLockFromCart(id entities.UplId, cartID string, by uint32) (*entities.Upl, error)
	ReleaseLockFromInventory(id entities.UplId, inventoryID uint32, by uint32) (*entities.Upl, error)
	MoveUpl(id entities.UplId, to entities.Location, by uint32) (*entities.Upl, error)
	CloseCart(cartID string, by uint32) (int, error)
	CloseInventory(inventoryID uint32, by uint32) (int, error)
	SetSkuPrice(sku uint32, net int64, vat entities.Vat, declaredGross int64, by uint32) (int, error)
	SetSkuDivisible(sku uint32, divisible bool, by uint32) (int, error)
	GetLocationInfo(sku uint32, today time.Time) map[uint32]upl.LocationInfo
	GetLocationInfoBulk(skus []uint32, today time.Time) map[uint32]map[uint32]upl.LocationInfo
}

type UplHandler struct {
	service UplService
	logger  zerolog.Logger
}

func NewUplHandler(service UplService, logger zerolog.Logger) *UplHandler {
	return &UplHandler{service: service, logger: logger}
}

func (h *UplHandler) CreateNew(c *gin.Context) {
	var req dto.CreateUplRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.CreateNew(req.ToSpec())
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, upl)
}

// CreateNewBulk writes one NDJSON result line per submitted creation,
// in submission order, once the whole batch has been processed.
func (h *UplHandler) CreateNewBulk(c *gin.Context) {
	var reqs []dto.CreateUplRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	specs := make([]entities.NewUplSpec, len(reqs))
	for i, r := range reqs {
		specs[i] = r.ToSpec()
	}

	results := h.service.CreateNewBulk(specs)
	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/x-ndjson")
	w := bufio.NewWriter(c.Writer)
	defer w.Flush()
	enc := json.NewEncoder(w)
	for _, r := range results {
		row := dto.CreateUplBulkResult{UplID: string(r.UplID), Ok: r.Err == nil}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		_ = enc.Encode(row)
	}
}

func (h *UplHandler) GetById(c *gin.Context) {
	upl, err := h.service.GetById(entities.UplId(c.Param("id")))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) GetByIdArchive(c *gin.Context) {
	upl, err := h.service.GetByIdArchive(entities.UplId(c.Param("id")))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

// GetBulk streams one NDJSON result line per requested id.
func (h *UplHandler) GetBulk(c *gin.Context) {
	idStrs := c.QueryArray("ids")
	ids := make([]entities.UplId, len(idStrs))
	for i, s := range idStrs {
		ids[i] = entities.UplId(s)
	}

	results := h.service.GetBulk(ids)
	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/x-ndjson")
	w := bufio.NewWriter(c.Writer)
	defer w.Flush()
	enc := json.NewEncoder(w)
	for _, r := range results {
		row := dto.GetBulkResult{UplID: string(r.UplID), Upl: r.Upl}
		if r.Err != nil {
			row.Error = r.Err.Error()
		}
		_ = enc.Encode(row)
	}
}

// Query dispatches GET /upls to GetBySku, GetBySkuAndLocation or
// GetByLocation depending on which query parameters are present.
func (h *UplHandler) Query(c *gin.Context) {
	skuStr := c.Query("sku")
	locationTag := c.Query("location")

	var location entities.Location
	hasLocation := locationTag != ""
	if hasLocation {
		location = locationFromQuery(c)
	}

	switch {
	case skuStr != "" && hasLocation:
		sku, err := parseUint32(skuStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid sku"})
			return
		}
		c.JSON(http.StatusOK, h.service.GetBySkuAndLocation(sku, location))
	case skuStr != "":
		sku, err := parseUint32(skuStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid sku"})
			return
		}
		c.JSON(http.StatusOK, h.service.GetBySku(sku))
	case hasLocation:
		c.JSON(http.StatusOK, h.service.GetByLocation(location))
	default:
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "sku or location query parameter required"})
	}
}

func locationFromQuery(c *gin.Context) entities.Location {
	tag := entities.LocationTag(c.Query("location"))
	loc := entities.Location{Tag: tag}
	if stockID, err := parseUint32(c.Query("stock_id")); err == nil {
		loc.StockID = stockID
	}
	if deliveryID, err := parseUint32(c.Query("delivery_id")); err == nil {
		loc.DeliveryID = deliveryID
	}
	loc.CartID = c.Query("cart_id")
	return loc
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}

func (h *UplHandler) SetBestBefore(c *gin.Context) {
	var req dto.SetBestBeforeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.SetBestBefore(entities.UplId(c.Param("id")), req.BestBefore, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) Split(c *gin.Context) {
	var req dto.SplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.Split(entities.UplId(c.Param("id")), entities.UplId(req.NewID), req.Piece, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) SplitBulk(c *gin.Context) {
	var req dto.SplitBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	newIDs := make([]entities.UplId, len(req.NewIDs))
	for i, s := range req.NewIDs {
		newIDs[i] = entities.UplId(s)
	}
	parent, children, err := h.service.SplitBulk(entities.UplId(c.Param("id")), newIDs, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"parent": parent, "children": children})
}

func (h *UplHandler) OpenUpl(c *gin.Context) {
	var req dto.ByRequest
	_ = c.ShouldBindJSON(&req)
	upl, err := h.service.OpenUpl(entities.UplId(c.Param("id")), req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) CloseUpl(c *gin.Context) {
	var req dto.ByRequest
	_ = c.ShouldBindJSON(&req)
	upl, err := h.service.CloseUpl(entities.UplId(c.Param("id")), req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) Divide(c *gin.Context) {
	var req dto.DivideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.Divide(entities.UplId(c.Param("id")), entities.UplId(req.NewID), req.Amount, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) MergeBack(c *gin.Context) {
	var req dto.ByRequest
	_ = c.ShouldBindJSON(&req)
	if err := h.service.MergeBack(entities.UplId(c.Param("child_id")), req.By); err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UplHandler) SetDepreciation(c *gin.Context) {
	var req dto.DepreciationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.SetDepreciation(entities.UplId(c.Param("id")), req.DepreciationID, req.Comment, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) RemoveDepreciation(c *gin.Context) {
	var req dto.ByRequest
	_ = c.ShouldBindJSON(&req)
	upl, err := h.service.RemoveDepreciation(entities.UplId(c.Param("id")), req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) SetDepreciationPrice(c *gin.Context) {
	var req dto.DepreciationPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.SetDepreciationPrice(entities.UplId(c.Param("id")), req.Net, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) RemoveDepreciationPrice(c *gin.Context) {
	var req dto.ByRequest
	_ = c.ShouldBindJSON(&req)
	upl, err := h.service.RemoveDepreciationPrice(entities.UplId(c.Param("id")), req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) LockToCart(c *gin.Context) {
	var req dto.LockToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.LockToCart(entities.UplId(c.Param("id")), req.CartID, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) LockToInventory(c *gin.Context) {
	var req dto.LockToInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.LockToInventory(entities.UplId(c.Param("id")), req.InventoryID, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) ReleaseLockFromCart(c *gin.Context) {
	var req dto.LockToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.ReleaseLockFromCart(entities.UplId(c.Param("id")), req.CartID, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) ReleaseLockFromInventory(c *gin.Context) {
	var req dto.LockToInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.ReleaseLockFromInventory(entities.UplId(c.Param("id")), req.InventoryID, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) MoveUpl(c *gin.Context) {
	var req dto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	upl, err := h.service.MoveUpl(entities.UplId(c.Param("id")), req.Location, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, upl)
}

func (h *UplHandler) CloseCart(c *gin.Context) {
	var req dto.ByRequest
	_ = c.ShouldBindJSON(&req)
	affected, err := h.service.CloseCart(c.Param("cart_id"), req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AffectedCountResponse{Affected: affected})
}

func (h *UplHandler) CloseInventory(c *gin.Context) {
	var req dto.ByRequest
	_ = c.ShouldBindJSON(&req)
	inventoryID, err := parseUint32(c.Param("inventory_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid inventory_id"})
		return
	}
	affected, err := h.service.CloseInventory(inventoryID, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AffectedCountResponse{Affected: affected})
}

func (h *UplHandler) SetSkuPrice(c *gin.Context) {
	var req dto.SetSkuPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	sku, err := parseUint32(c.Param("sku"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid sku"})
		return
	}
	affected, err := h.service.SetSkuPrice(sku, req.Net, entities.Vat(req.Vat), req.DeclaredGross, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AffectedCountResponse{Affected: affected})
}

func (h *UplHandler) SetSkuDivisible(c *gin.Context) {
	var req dto.SetSkuDivisibleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	sku, err := parseUint32(c.Param("sku"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid sku"})
		return
	}
	affected, err := h.service.SetSkuDivisible(sku, req.Divisible, req.By)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AffectedCountResponse{Affected: affected})
}

func (h *UplHandler) GetLocationInfo(c *gin.Context) {
	sku, err := parseUint32(c.Param("sku"))
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid sku"})
		return
	}
	info := h.service.GetLocationInfo(sku, time.Now())
	entries := make([]dto.LocationInfoEntry, 0, len(info))
	for stockID, v := range info {
		entries = append(entries, dto.LocationInfoEntry{StockID: stockID, Total: v.Total, Healthy: v.Healthy})
	}
	c.JSON(http.StatusOK, entries)
}

// GetLocationInfoBulk streams one NDJSON result line per sku.
func (h *UplHandler) GetLocationInfoBulk(c *gin.Context) {
	var req dto.LocationInfoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return
	}
	result := h.service.GetLocationInfoBulk(req.Skus, time.Now())

	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/x-ndjson")
	w := bufio.NewWriter(c.Writer)
	defer w.Flush()
	enc := json.NewEncoder(w)
	for _, sku := range req.Skus {
		info := result[sku]
		entries := make([]dto.LocationInfoEntry, 0, len(info))
		for stockID, v := range info {
			entries = append(entries, dto.LocationInfoEntry{StockID: stockID, Total: v.Total, Healthy: v.Healthy})
		}
		_ = enc.Encode(gin.H{"sku": sku, "locations": entries})
	}
}
