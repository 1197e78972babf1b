package vecindex

import (
	"context"

	"github.com/stretchr/testify/mock"

	"spend-insight/internal/embeddings"
)

// MockIndex is a mock implementation of Index using testify/mock.
type MockIndex struct {
	mock.Mock
}

func (m *MockIndex) Upsert(ctx context.Context, id string, vector embeddings.Vector, meta Metadata) error {
	args := m.Called(ctx, id, vector, meta)
	return args.Error(0)
}

func (m *MockIndex) Search(ctx context.Context, vector embeddings.Vector, k int) ([]Hit, error) {
	args := m.Called(ctx, vector, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Hit), args.Error(1)
}

func (m *MockIndex) Peek(ctx context.Context, limit int) ([]Hit, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Hit), args.Error(1)
}
