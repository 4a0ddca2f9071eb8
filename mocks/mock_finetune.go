package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docbench/internal/domain"
	"docbench/internal/port"
)

// MockFineTuneRepo is a mock implementation of port.FineTuneRepository.
type MockFineTuneRepo struct {
	mock.Mock
}

func (m *MockFineTuneRepo) Create(ctx context.Context, rec *domain.FineTuneRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockFineTuneRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.FineTuneRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FineTuneRecord), args.Error(1)
}

func (m *MockFineTuneRepo) ListByStatus(ctx context.Context, status domain.FineTuneStatus, offset, limit int) ([]domain.FineTuneRecord, int, error) {
	args := m.Called(ctx, status, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.FineTuneRecord), args.Int(1), args.Error(2)
}

func (m *MockFineTuneRepo) UpdateStatus(ctx context.Context, ids []uuid.UUID, status domain.FineTuneStatus, modelID *string) error {
	args := m.Called(ctx, ids, status, modelID)
	return args.Error(0)
}

// MockTrainer is a mock implementation of port.Trainer.
type MockTrainer struct {
	mock.Mock
}

func (m *MockTrainer) Train(ctx context.Context, input port.TrainInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}

// MockNotifier is a mock implementation of port.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyFlagged(ctx context.Context, notice port.FlagNotice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

func (m *MockNotifier) NotifyTrainingStarted(ctx context.Context, modelID string, documents int) error {
	args := m.Called(ctx, modelID, documents)
	return args.Error(0)
}
