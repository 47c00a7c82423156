package upl

import (
	"context"

	"github.com/stretchr/testify/mock"

	"uplregistry/internal/domain/upl/entities"
)

// MockStore implements repositories.Store for tests: every call is
// recorded through testify/mock, so expectations can be asserted or, for
// the common case, left permissive via mock.Anything.
type MockStore struct {
	mock.Mock
}

func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) LoadAll() (map[entities.UplId]*entities.Upl, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[entities.UplId]*entities.Upl), args.Error(1)
}

func (m *MockStore) Insert(upl *entities.Upl) error {
	args := m.Called(upl)
	return args.Error(0)
}

func (m *MockStore) Save(upl *entities.Upl) error {
	args := m.Called(upl)
	return args.Error(0)
}

func (m *MockStore) Remove(id entities.UplId) error {
	args := m.Called(id)
	return args.Error(0)
}

// MockBatchMover implements repositories.BatchMover for tests that need
// to observe whether the registry prefers a wired mover over its
// sequential per-id fallback.
type MockBatchMover struct {
	mock.Mock
}

func NewMockBatchMover() *MockBatchMover {
	return &MockBatchMover{}
}

func (m *MockBatchMover) MoveBatch(ctx context.Context, upls []*entities.Upl) error {
	args := m.Called(ctx, upls)
	return args.Error(0)
}
