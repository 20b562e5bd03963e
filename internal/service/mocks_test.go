package service

import (
	"context"
	"encoding/json"

	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/HirotoShioi/medical-assistant-ai/internal/pagination"
	"github.com/stretchr/testify/mock"
)

// MockResourceRepository is a mock implementation of ResourceRepositoryInterface
type MockResourceRepository struct {
	mock.Mock
}

func (m *MockResourceRepository) Create(ctx context.Context, r *domain.Resource) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockResourceRepository) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Resource), args.Error(1)
}

func (m *MockResourceRepository) GetByIDs(ctx context.Context, ids []string) ([]*domain.Resource, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Resource), args.Error(1)
}

func (m *MockResourceRepository) ListByThread(ctx context.Context, threadID string) ([]*domain.Resource, error) {
	args := m.Called(ctx, threadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Resource), args.Error(1)
}

func (m *MockResourceRepository) ListByThreadWithCursor(ctx context.Context, threadID string, cursor *pagination.Cursor, limit int) (*ResourcePageResult, error) {
	args := m.Called(ctx, threadID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ResourcePageResult), args.Error(1)
}

func (m *MockResourceRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockChunkRepository is a mock implementation of ChunkRepositoryInterface
type MockChunkRepository struct {
	mock.Mock
}

func (m *MockChunkRepository) Insert(ctx context.Context, c *domain.EmbeddedChunk) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockChunkRepository) SearchByThread(ctx context.Context, threadID string, embedding []float32, limit int) ([]*domain.ChunkMatch, error) {
	args := m.Called(ctx, threadID, embedding, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ChunkMatch), args.Error(1)
}

// MockEmbeddingClient is a mock implementation of EmbeddingClient
type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

// MockModelClient is a mock implementation of ModelClient
type MockModelClient struct {
	mock.Mock
}

func (m *MockModelClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	args := m.Called(ctx, system, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockModelClient) CompleteJSON(ctx context.Context, system, prompt string, out any) error {
	args := m.Called(ctx, system, prompt, out)
	return args.Error(0)
}

// MockArchiveStore is a mock implementation of ArchiveStore
type MockArchiveStore struct {
	mock.Mock
}

func (m *MockArchiveStore) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	args := m.Called(ctx, key, body, contentType)
	return args.Error(0)
}

func (m *MockArchiveStore) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// scriptedModel answers completions with caller-provided functions. Tests
// that steer a multi-step pipeline use this instead of MockModelClient.
type scriptedModel struct {
	complete     func(system, prompt string) (string, error)
	completeJSON func(system, prompt string, out any) error
}

func (m *scriptedModel) Complete(_ context.Context, system, prompt string) (string, error) {
	if m.complete == nil {
		return "", nil
	}
	return m.complete(system, prompt)
}

func (m *scriptedModel) CompleteJSON(_ context.Context, system, prompt string, out any) error {
	if m.completeJSON == nil {
		return nil
	}
	return m.completeJSON(system, prompt, out)
}

// unmarshalJSONInto is a helper for scripting CompleteJSON answers.
func unmarshalJSONInto(raw string, out any) error {
	return json.Unmarshal([]byte(raw), out)
}

// MockUUIDGenerator returns a fixed sequence of ids.
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		uuid := m.uuids[m.callCount]
		m.callCount++
		return uuid
	}
	return "default-uuid"
}
