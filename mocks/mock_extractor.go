package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docbench/internal/port"
)

// MockExtractor is a mock implementation of port.Extractor.
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, input port.ExtractInput) (*port.Envelope, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.Envelope), args.Error(1)
}

// MockRestructurer is a mock implementation of port.Restructurer.
type MockRestructurer struct {
	mock.Mock
}

func (m *MockRestructurer) Restructure(ctx context.Context, input port.RestructureInput) (string, error) {
	args := m.Called(ctx, input)
	return args.String(0), args.Error(1)
}
