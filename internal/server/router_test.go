package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HirotoShioi/medical-assistant-ai/internal/api/handlers"
	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
	"github.com/HirotoShioi/medical-assistant-ai/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockResourceService struct {
	mock.Mock
}

func (m *MockResourceService) Ingest(ctx context.Context, input service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockResourceService) DeleteByID(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockResourceService) GetByID(ctx context.Context, id string) (*domain.Resource, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Resource), args.Error(1)
}

func (m *MockResourceService) ListResources(ctx context.Context, input service.ListResourcesInput) (*service.ListResourcesOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListResourcesOutput), args.Error(1)
}

type MockRetrievalService struct {
	mock.Mock
}

func (m *MockRetrievalService) Retrieve(ctx context.Context, threadID string, queries []string) ([]string, error) {
	args := m.Called(ctx, threadID, queries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockSynthesisService struct {
	mock.Mock
}

func (m *MockSynthesisService) Generate(ctx context.Context, input service.SynthesisInput) (*service.SynthesisResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SynthesisResult), args.Error(1)
}

func newTestRouter(resources *MockResourceService, retrieval *MockRetrievalService, synthesis *MockSynthesisService) http.Handler {
	return NewRouter(RouterConfig{
		APIToken:          "test-token",
		ResourceHandler:   handlers.NewResourceHandler(resources),
		RetrieveHandler:   handlers.NewRetrieveHandler(retrieval),
		SynthesizeHandler: handlers.NewSynthesizeHandler(synthesis),
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(new(MockResourceService), new(MockRetrievalService), new(MockSynthesisService))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
	// Health stays open; no auth header was sent.
}

func TestRouter_RequiresAuth(t *testing.T) {
	router := newTestRouter(new(MockResourceService), new(MockRetrievalService), new(MockSynthesisService))

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/resources"},
		{http.MethodGet, "/resources?thread_id=t"},
		{http.MethodPost, "/retrieve"},
		{http.MethodPost, "/synthesize"},
	}

	for _, p := range paths {
		req := httptest.NewRequest(p.method, p.path, strings.NewReader("{}"))
		w := httptest.NewRecorder()

		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", p.method, p.path)
	}
}

func TestRouter_ResourceLifecycle(t *testing.T) {
	resources := new(MockResourceService)
	router := newTestRouter(resources, new(MockRetrievalService), new(MockSynthesisService))

	resource := &domain.Resource{
		ID:        "r-1",
		ThreadID:  "thread-1",
		Title:     "Note",
		Content:   "content",
		Summary:   "summary",
		FileType:  domain.FileTypePlain,
		CreatedAt: time.Now().UTC(),
	}

	resources.On("Ingest", mock.Anything, mock.Anything).Return(&service.IngestResult{
		Resource:   resource,
		ChunkCount: 1,
	}, nil)
	resources.On("ListResources", mock.Anything, mock.Anything).Return(&service.ListResourcesOutput{
		Items: []*domain.Resource{resource},
	}, nil)
	resources.On("DeleteByID", mock.Anything, "r-1").Return(nil)

	ingest := httptest.NewRequest(http.MethodPost, "/resources",
		strings.NewReader(`{"thread_id":"thread-1","title":"Note","content":"content"}`))
	ingest.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, ingest)
	require.Equal(t, http.StatusCreated, w.Code)

	list := httptest.NewRequest(http.MethodGet, "/resources?thread_id=thread-1", nil)
	list.Header.Set("Authorization", "Bearer test-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, list)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data := resp["data"].(map[string]interface{})
	items := data["items"].([]interface{})
	assert.Len(t, items, 1)

	del := httptest.NewRequest(http.MethodDelete, "/resources/r-1", nil)
	del.Header.Set("Authorization", "Bearer test-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, del)
	assert.Equal(t, http.StatusNoContent, w.Code)

	resources.AssertExpectations(t)
}

func TestRouter_Retrieve(t *testing.T) {
	retrieval := new(MockRetrievalService)
	router := newTestRouter(new(MockResourceService), retrieval, new(MockSynthesisService))

	retrieval.On("Retrieve", mock.Anything, "thread-1", []string{"q"}).
		Return([]string{"chunk"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/retrieve",
		strings.NewReader(`{"thread_id":"thread-1","queries":["q"]}`))
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "chunk")
}

func TestRouter_Synthesize(t *testing.T) {
	synthesis := new(MockSynthesisService)
	router := newTestRouter(new(MockResourceService), new(MockRetrievalService), synthesis)

	synthesis.On("Generate", mock.Anything, mock.Anything).Return(&service.SynthesisResult{
		Document: "# History\n\ntext",
	}, nil)

	req := httptest.NewRequest(http.MethodPost, "/synthesize",
		strings.NewReader(`{"thread_id":"thread-1","sections":[{"title":"History"}]}`))
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "History")
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router := newTestRouter(new(MockResourceService), new(MockRetrievalService), new(MockSynthesisService))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
