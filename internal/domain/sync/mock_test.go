package sync

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"orgsync/internal/domain/entity"
)

// MockRepository is a mock implementation of the Repository interface for testing
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ClaimOperation(ctx context.Context, op *OperationLog) (bool, error) {
	args := m.Called(ctx, op)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FinalizeOperation(ctx context.Context, op *OperationLog) error {
	args := m.Called(ctx, op)
	return args.Error(0)
}

func (m *MockRepository) GetOperation(ctx context.Context, organizationID, idempotencyKey string) (*OperationLog, error) {
	args := m.Called(ctx, organizationID, idempotencyKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*OperationLog), args.Error(1)
}

func (m *MockRepository) GetEntity(ctx context.Context, d *entity.Descriptor, organizationID, id string) (*entity.Entity, error) {
	args := m.Called(ctx, d, organizationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Entity), args.Error(1)
}

func (m *MockRepository) InsertEntity(ctx context.Context, d *entity.Descriptor, e *entity.Entity) error {
	args := m.Called(ctx, d, e)
	return args.Error(0)
}

func (m *MockRepository) UpdateEntity(ctx context.Context, d *entity.Descriptor, e *entity.Entity, expectedVersion int64) error {
	args := m.Called(ctx, d, e, expectedVersion)
	return args.Error(0)
}

func (m *MockRepository) ListChanges(ctx context.Context, d *entity.Descriptor, organizationID string, after *Cursor, limit int) ([]*entity.Entity, error) {
	args := m.Called(ctx, d, organizationID, after, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Entity), args.Error(1)
}

func (m *MockRepository) PurgeTombstones(ctx context.Context, d *entity.Descriptor, before time.Time) (int64, error) {
	args := m.Called(ctx, d, before)
	return args.Get(0).(int64), args.Error(1)
}
