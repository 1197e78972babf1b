package records

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSource is a mock implementation of Source using testify/mock.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) ListAll(ctx context.Context) ([]Expense, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Expense), args.Error(1)
}

func (m *MockSource) ListByIDs(ctx context.Context, ids []string) ([]Expense, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Expense), args.Error(1)
}

func (m *MockSource) Insert(ctx context.Context, expenses []Expense) error {
	args := m.Called(ctx, expenses)
	return args.Error(0)
}
