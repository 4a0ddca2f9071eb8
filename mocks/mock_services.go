package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"docbench/internal/domain"
	"docbench/internal/service"
)

// MockValidationService is a mock implementation of service.ValidationService.
type MockValidationService struct {
	mock.Mock
}

func (m *MockValidationService) Validate(ctx context.Context, input service.ValidateInput) (*domain.Report, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Report), args.Error(1)
}

func (m *MockValidationService) Compare(ctx context.Context, input service.CompareInput) (*service.ComparisonResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ComparisonResult), args.Error(1)
}

func (m *MockValidationService) Backends() []string {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]string)
}

// MockFineTuneService is a mock implementation of service.FineTuneService.
type MockFineTuneService struct {
	mock.Mock
}

func (m *MockFineTuneService) Flag(ctx context.Context, input service.FlagInput) (*domain.FineTuneRecord, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FineTuneRecord), args.Error(1)
}

func (m *MockFineTuneService) ListFlagged(ctx context.Context, offset, limit int) ([]domain.FineTuneRecord, int, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.FineTuneRecord), args.Int(1), args.Error(2)
}

func (m *MockFineTuneService) GetDownloadURL(ctx context.Context, id uuid.UUID) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockFineTuneService) TriggerTraining(ctx context.Context) (*service.TrainingResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.TrainingResult), args.Error(1)
}
