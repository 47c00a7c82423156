package upl

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"uplregistry/internal/domain/upl/entities"
)

func newTestService(t *testing.T) (*Service, *MockStore, *MockStore) {
	t.Helper()
	active, archive := NewMockStore(), NewMockStore()
	active.On("Insert", mock.Anything).Return(nil)
	active.On("Save", mock.Anything).Return(nil)
	active.On("Remove", mock.Anything).Return(nil)
	archive.On("Insert", mock.Anything).Return(nil)

	r := NewRegistry(active, archive, nil, zerolog.Nop())
	return NewService(r, zerolog.Nop()), active, archive
}

func TestService_CreateNew(t *testing.T) {
	s, _, _ := newTestService(t)

	spec := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM}
	u, err := s.CreateNew(spec)
	require.NoError(t, err)

	got, err := s.GetById(u.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.Kind.Sku)
}

func TestService_CreateNewBulk_SkipsRejectedItemsButKeepsGoing(t *testing.T) {
	s, _, _ := newTestService(t)

	good := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM}
	bad := entities.NewUplSpec{UplID: "not-an-id", Sku: 8, Piece: 1, SkuVat: entities.VatAAM}
	good2 := entities.NewUplSpec{UplID: entities.NewUplId(2), Sku: 9, Piece: 1, SkuVat: entities.VatAAM}

	results := s.CreateNewBulk([]entities.NewUplSpec{good, bad, good2})
	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)

	_, err := s.GetById(good2.UplID)
	assert.NoError(t, err, "the item after the rejected one must still have been created")
}

func TestService_Split(t *testing.T) {
	s, _, _ := newTestService(t)

	parentSpec := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 5, SkuVat: entities.VatAAM}
	_, err := s.CreateNew(parentSpec)
	require.NoError(t, err)

	childID := entities.NewUplId(2)
	parent, err := s.Split(parentSpec.UplID, childID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), parent.Kind.Pieces)

	child, err := s.GetById(childID)
	require.NoError(t, err)
	assert.Equal(t, entities.KindBulkSku, child.Kind.Tag)
	assert.Equal(t, uint32(2), child.Kind.Pieces)
}

func TestService_Split_RejectsCollisionWithExistingId(t *testing.T) {
	s, _, _ := newTestService(t)

	parentSpec := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 5, SkuVat: entities.VatAAM}
	_, err := s.CreateNew(parentSpec)
	require.NoError(t, err)
	other := entities.NewUplSpec{UplID: entities.NewUplId(2), Sku: 1, Piece: 1, SkuVat: entities.VatAAM}
	_, err = s.CreateNew(other)
	require.NoError(t, err)

	_, err = s.Split(parentSpec.UplID, other.UplID, 1, 1)
	assert.Error(t, err)
}

func TestService_SplitBulk(t *testing.T) {
	s, _, _ := newTestService(t)

	parentSpec := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 5, SkuVat: entities.VatAAM}
	_, err := s.CreateNew(parentSpec)
	require.NoError(t, err)

	childIDs := []entities.UplId{entities.NewUplId(2), entities.NewUplId(3)}
	parent, children, err := s.SplitBulk(parentSpec.UplID, childIDs, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), parent.Kind.Pieces)
	require.Len(t, children, 2)
}

func TestService_OpenCloseDivideMerge(t *testing.T) {
	s, _, _ := newTestService(t)

	spec := entities.NewUplSpec{
		UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM,
		SkuDivisible: true, SkuDivisibleAmount: 4,
	}
	_, err := s.CreateNew(spec)
	require.NoError(t, err)

	opened, err := s.OpenUpl(spec.UplID, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.KindOpenedSku, opened.Kind.Tag)

	childID := entities.NewUplId(2)
	_, err = s.Divide(spec.UplID, childID, 1, 1)
	require.NoError(t, err)

	parentAfterDivide, err := s.GetById(spec.UplID)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), parentAfterDivide.Kind.Remaining)

	require.NoError(t, s.MergeBack(childID, 1))

	parentAfterMerge, err := s.GetById(spec.UplID)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), parentAfterMerge.Kind.Remaining)
	_, err = s.GetById(childID)
	assert.Error(t, err, "merged child must be removed from the registry")

	closed, err := s.CloseUpl(spec.UplID, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.KindSku, closed.Kind.Tag)
}

func TestService_MergeBack_RejectsNonDerivedChild(t *testing.T) {
	s, _, _ := newTestService(t)

	spec := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM}
	_, err := s.CreateNew(spec)
	require.NoError(t, err)

	err = s.MergeBack(spec.UplID, 1)
	assert.Error(t, err)
}

func TestService_LockMoveUnlock(t *testing.T) {
	s, _, _ := newTestService(t)

	spec := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM}
	_, err := s.CreateNew(spec)
	require.NoError(t, err)

	locked, err := s.LockToCart(spec.UplID, "cart-1", 1)
	require.NoError(t, err)
	assert.Equal(t, entities.LockCart, locked.Lock.Tag)

	moved, err := s.MoveUpl(spec.UplID, entities.NewCartLocation("cart-1"), 1)
	require.NoError(t, err)
	assert.Equal(t, entities.LocationCart, moved.Location.Tag)
	assert.True(t, moved.Lock.IsNone(), "a successful move consumes the lock")
}

func TestService_CloseCart(t *testing.T) {
	s, active, archive := newTestService(t)

	spec1 := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM}
	spec2 := entities.NewUplSpec{UplID: entities.NewUplId(2), Sku: 8, Piece: 1, SkuVat: entities.VatAAM}
	_, err := s.CreateNew(spec1)
	require.NoError(t, err)
	_, err = s.CreateNew(spec2)
	require.NoError(t, err)

	_, err = s.LockToCart(spec1.UplID, "cart-1", 1)
	require.NoError(t, err)

	var archived []*entities.Upl
	s.OnArchived(func(batch []*entities.Upl) { archived = batch })

	count, err := s.CloseCart("cart-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, archived, 1)
	assert.Equal(t, spec1.UplID, archived[0].ID)

	_, err = s.GetById(spec1.UplID)
	assert.Error(t, err, "archived upl is no longer active")
	archivedView, err := s.GetByIdArchive(spec1.UplID)
	require.NoError(t, err)
	assert.True(t, archivedView.IsArchived)

	_, err = s.GetById(spec2.UplID)
	assert.NoError(t, err, "unlocked upl is untouched by close-cart")

	active.AssertExpectations(t)
	archive.AssertExpectations(t)
}

func TestService_CloseInventory(t *testing.T) {
	s, _, _ := newTestService(t)

	spec := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM}
	_, err := s.CreateNew(spec)
	require.NoError(t, err)
	_, err = s.LockToInventory(spec.UplID, 42, 1)
	require.NoError(t, err)

	count, err := s.CloseInventory(42, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.GetById(spec.UplID)
	require.NoError(t, err)
	assert.True(t, got.Lock.IsNone())
}

func TestService_SetSkuPrice(t *testing.T) {
	s, _, _ := newTestService(t)

	spec1 := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM, SkuNetPrice: 100}
	spec2 := entities.NewUplSpec{UplID: entities.NewUplId(2), Sku: 7, Piece: 1, SkuVat: entities.VatAAM, SkuNetPrice: 100}
	spec3 := entities.NewUplSpec{UplID: entities.NewUplId(3), Sku: 9, Piece: 1, SkuVat: entities.VatAAM, SkuNetPrice: 100}
	for _, spec := range []entities.NewUplSpec{spec1, spec2, spec3} {
		_, err := s.CreateNew(spec)
		require.NoError(t, err)
	}

	count, err := s.SetSkuPrice(7, 1000, entities.Vat27, entities.Vat27.Gross(1000), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	u1, err := s.GetById(spec1.UplID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), u1.PriceNet)

	u3, err := s.GetById(spec3.UplID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), u3.PriceNet, "a different sku must be untouched")
}

func TestService_SetSkuPrice_RejectsMismatchedDeclaredGross(t *testing.T) {
	s, _, _ := newTestService(t)
	_, err := s.SetSkuPrice(7, 1000, entities.Vat27, 1, 1)
	assert.Error(t, err)
}

func TestService_SetSkuDivisible(t *testing.T) {
	s, _, _ := newTestService(t)

	spec := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM}
	_, err := s.CreateNew(spec)
	require.NoError(t, err)

	count, err := s.SetSkuDivisible(7, true, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := s.GetById(spec.UplID)
	require.NoError(t, err)
	assert.True(t, got.SkuDivisible)
}

func TestService_GetLocationInfo(t *testing.T) {
	s, _, _ := newTestService(t)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	healthy := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM, StockID: 1, BestBefore: &future}
	expired := entities.NewUplSpec{UplID: entities.NewUplId(2), Sku: 7, Piece: 1, SkuVat: entities.VatAAM, StockID: 1, BestBefore: &past}
	elsewhere := entities.NewUplSpec{UplID: entities.NewUplId(3), Sku: 7, Piece: 1, SkuVat: entities.VatAAM, StockID: 2}
	for _, spec := range []entities.NewUplSpec{healthy, expired, elsewhere} {
		_, err := s.CreateNew(spec)
		require.NoError(t, err)
	}

	info := s.GetLocationInfo(7, time.Now())
	assert.Equal(t, uint32(2), info[1].Total)
	assert.Equal(t, uint32(1), info[1].Healthy)
	assert.Equal(t, uint32(1), info[2].Total)
	assert.Equal(t, uint32(1), info[2].Healthy)
}

func TestService_GetBySkuAndLocation(t *testing.T) {
	s, _, _ := newTestService(t)

	spec := entities.NewUplSpec{UplID: entities.NewUplId(1), Sku: 7, Piece: 1, SkuVat: entities.VatAAM, StockID: 3}
	_, err := s.CreateNew(spec)
	require.NoError(t, err)

	ids := s.GetBySkuAndLocation(7, entities.NewStockLocation(3))
	require.Len(t, ids, 1)
	assert.Equal(t, spec.UplID, ids[0])

	assert.Empty(t, s.GetBySkuAndLocation(7, entities.NewStockLocation(99)))
}
