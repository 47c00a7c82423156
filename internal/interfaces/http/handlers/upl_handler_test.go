package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	upl "uplregistry/internal/application/services/upl"
	"uplregistry/internal/domain/upl/entities"
	apperrors "uplregistry/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// mockUplService implements UplService with testify/mock, matching the
// application service's test-double convention.
type mockUplService struct {
	mock.Mock
}

func (m *mockUplService) CreateNew(spec entities.NewUplSpec) (*entities.Upl, error) {
	args := m.Called(spec)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) CreateNewBulk(specs []entities.NewUplSpec) []upl.BulkCreateResult {
	args := m.Called(specs)
	return args.Get(0).([]upl.BulkCreateResult)
}

func (m *mockUplService) GetById(id entities.UplId) (*entities.Upl, error) {
	args := m.Called(id)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) GetByIdArchive(id entities.UplId) (*entities.Upl, error) {
	args := m.Called(id)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) GetBulk(ids []entities.UplId) []upl.BulkGetResult {
	args := m.Called(ids)
	return args.Get(0).([]upl.BulkGetResult)
}

func (m *mockUplService) GetBySku(sku uint32) []entities.UplId {
	args := m.Called(sku)
	return args.Get(0).([]entities.UplId)
}

func (m *mockUplService) GetBySkuAndLocation(sku uint32, location entities.Location) []entities.UplId {
	args := m.Called(sku, location)
	return args.Get(0).([]entities.UplId)
}

func (m *mockUplService) GetByLocation(location entities.Location) []entities.UplId {
	args := m.Called(location)
	return args.Get(0).([]entities.UplId)
}

func (m *mockUplService) SetBestBefore(id entities.UplId, bestBefore *time.Time, by uint32) (*entities.Upl, error) {
	args := m.Called(id, bestBefore, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) Split(id, newID entities.UplId, piece uint32, by uint32) (*entities.Upl, error) {
	args := m.Called(id, newID, piece, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) SplitBulk(id entities.UplId, newIDs []entities.UplId, by uint32) (*entities.Upl, []*entities.Upl, error) {
	args := m.Called(id, newIDs, by)
	var parent *entities.Upl
	if args.Get(0) != nil {
		parent = args.Get(0).(*entities.Upl)
	}
	var children []*entities.Upl
	if args.Get(1) != nil {
		children = args.Get(1).([]*entities.Upl)
	}
	return parent, children, args.Error(2)
}

func (m *mockUplService) OpenUpl(id entities.UplId, by uint32) (*entities.Upl, error) {
	args := m.Called(id, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) CloseUpl(id entities.UplId, by uint32) (*entities.Upl, error) {
	args := m.Called(id, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) Divide(id, newID entities.UplId, amount uint32, by uint32) (*entities.Upl, error) {
	args := m.Called(id, newID, amount, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) MergeBack(childID entities.UplId, by uint32) error {
	args := m.Called(childID, by)
	return args.Error(0)
}

func (m *mockUplService) SetDepreciation(id entities.UplId, depreciationID, comment string, by uint32) (*entities.Upl, error) {
	args := m.Called(id, depreciationID, comment, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) RemoveDepreciation(id entities.UplId, by uint32) (*entities.Upl, error) {
	args := m.Called(id, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) SetDepreciationPrice(id entities.UplId, net int64, by uint32) (*entities.Upl, error) {
	args := m.Called(id, net, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) RemoveDepreciationPrice(id entities.UplId, by uint32) (*entities.Upl, error) {
	args := m.Called(id, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) LockToCart(id entities.UplId, cartID string, by uint32) (*entities.Upl, error) {
	args := m.Called(id, cartID, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) LockToInventory(id entities.UplId, inventoryID uint32, by uint32) (*entities.Upl, error) {
	args := m.Called(id, inventoryID, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) ReleaseLockFromCart(id entities.UplId, cartID string, by uint32) (*entities.Upl, error) {
	args := m.Called(id, cartID, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) ReleaseLockFromInventory(id entities.UplId, inventoryID uint32, by uint32) (*entities.Upl, error) {
	args := m.Called(id, inventoryID, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) MoveUpl(id entities.UplId, to entities.Location, by uint32) (*entities.Upl, error) {
	args := m.Called(id, to, by)
	return upOrNil(args), args.Error(1)
}

func (m *mockUplService) CloseCart(cartID string, by uint32) (int, error) {
	args := m.Called(cartID, by)
	return args.Int(0), args.Error(1)
}

func (m *mockUplService) CloseInventory(inventoryID uint32, by uint32) (int, error) {
	args := m.Called(inventoryID, by)
	return args.Int(0), args.Error(1)
}

func (m *mockUplService) SetSkuPrice(sku uint32, net int64, vat entities.Vat, declaredGross int64, by uint32) (int, error) {
	args := m.Called(sku, net, vat, declaredGross, by)
	return args.Int(0), args.Error(1)
}

func (m *mockUplService) SetSkuDivisible(sku uint32, divisible bool, by uint32) (int, error) {
	args := m.Called(sku, divisible, by)
	return args.Int(0), args.Error(1)
}

func (m *mockUplService) GetLocationInfo(sku uint32, today time.Time) map[uint32]upl.LocationInfo {
	args := m.Called(sku, today)
	return args.Get(0).(map[uint32]upl.LocationInfo)
}

func (m *mockUplService) GetLocationInfoBulk(skus []uint32, today time.Time) map[uint32]map[uint32]upl.LocationInfo {
	args := m.Called(skus, today)
	return args.Get(0).(map[uint32]map[uint32]upl.LocationInfo)
}

func upOrNil(args mock.Arguments) *entities.Upl {
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*entities.Upl)
}

func testUpl(id entities.UplId) *entities.Upl {
	u, err := entities.NewUpl(entities.NewUplSpec{
		UplID:  id,
		Sku:    7,
		Piece:  1,
		SkuVat: entities.VatAAM,
	}, time.Now())
	if err != nil {
		panic(err)
	}
	return u
}

func newHandlerUnderTest() (*gin.Engine, *mockUplService) {
	svc := &mockUplService{}
	h := NewUplHandler(svc, zerolog.Nop())
	r := gin.New()
	r.POST("/upls", h.CreateNew)
	r.GET("/upls/:id", h.GetById)
	r.GET("/upls", h.Query)
	r.POST("/upls/:id/split", h.Split)
	r.POST("/upls/:child_id/merge-back", h.MergeBack)
	r.POST("/upls/:id/lock/cart", h.LockToCart)
	r.GET("/upls/archive/:id", h.GetByIdArchive)
	return r, svc
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewBuffer(b)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUplHandler_CreateNew_Success(t *testing.T) {
	r, svc := newHandlerUnderTest()
	id := entities.NewUplId(1)
	svc.On("CreateNew", mock.Anything).Return(testUpl(id), nil)

	w := doRequest(r, http.MethodPost, "/upls", map[string]any{
		"upl_id": string(id), "product_id": 1, "sku": 7, "sku_vat": "AAM", "stock_id": 1,
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestUplHandler_CreateNew_InvalidBody(t *testing.T) {
	r, _ := newHandlerUnderTest()
	req, _ := http.NewRequest(http.MethodPost, "/upls", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUplHandler_CreateNew_ServiceErrorMapsToAppErrorStatus(t *testing.T) {
	r, svc := newHandlerUnderTest()
	svc.On("CreateNew", mock.Anything).Return(nil, apperrors.NewBadRequestError("bad spec"))

	w := doRequest(r, http.MethodPost, "/upls", map[string]any{
		"upl_id": "1", "product_id": 1, "sku": 7, "sku_vat": "AAM", "stock_id": 1,
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUplHandler_GetById_Success(t *testing.T) {
	r, svc := newHandlerUnderTest()
	id := entities.NewUplId(1)
	svc.On("GetById", id).Return(testUpl(id), nil)

	w := doRequest(r, http.MethodGet, "/upls/"+string(id), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var got entities.Upl
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
}

func TestUplHandler_GetById_NotFound(t *testing.T) {
	r, svc := newHandlerUnderTest()
	id := entities.NewUplId(1)
	svc.On("GetById", id).Return(nil, apperrors.NewEntityNotFoundError("upl", string(id)))

	w := doRequest(r, http.MethodGet, "/upls/"+string(id), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUplHandler_Query_RequiresSkuOrLocation(t *testing.T) {
	r, _ := newHandlerUnderTest()
	w := doRequest(r, http.MethodGet, "/upls", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUplHandler_Query_BySku(t *testing.T) {
	r, svc := newHandlerUnderTest()
	ids := []entities.UplId{entities.NewUplId(1), entities.NewUplId(2)}
	svc.On("GetBySku", uint32(7)).Return(ids)

	w := doRequest(r, http.MethodGet, "/upls?sku=7", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var got []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Len(t, got, 2)
}

func TestUplHandler_Query_InvalidSku(t *testing.T) {
	r, _ := newHandlerUnderTest()
	w := doRequest(r, http.MethodGet, "/upls?sku=not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUplHandler_Split_Success(t *testing.T) {
	r, svc := newHandlerUnderTest()
	id := entities.NewUplId(1)
	newID := entities.NewUplId(2)
	svc.On("Split", id, newID, uint32(3), uint32(9)).Return(testUpl(id), nil)

	w := doRequest(r, http.MethodPost, "/upls/"+string(id)+"/split", map[string]any{
		"new_id": string(newID), "piece": 3, "by": 9,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestUplHandler_MergeBack_Success(t *testing.T) {
	r, svc := newHandlerUnderTest()
	childID := entities.NewUplId(1)
	svc.On("MergeBack", childID, uint32(9)).Return(nil)

	w := doRequest(r, http.MethodPost, "/upls/"+string(childID)+"/merge-back", map[string]any{"by": 9})

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUplHandler_LockToCart_ConflictMapsTo409(t *testing.T) {
	r, svc := newHandlerUnderTest()
	id := entities.NewUplId(1)
	svc.On("LockToCart", id, "cart-1", uint32(9)).Return(nil, apperrors.NewConflictError("already locked"))

	w := doRequest(r, http.MethodPost, "/upls/"+string(id)+"/lock/cart", map[string]any{
		"cart_id": "cart-1", "by": 9,
	})

	assert.Equal(t, http.StatusConflict, w.Code)
}
