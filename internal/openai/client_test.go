package openai

import (
	"context"
	"errors"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

func (m *MockOpenAIAPI) CreateCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

func completionResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := NewClientWithAPI(mockAPI, 1536)

	ctx := context.Background()
	text := "This is a test document about patient care."
	expectedEmbedding := make([]float32, 1536)
	for i := range expectedEmbedding {
		expectedEmbedding[i] = float32(i) * 0.001
	}

	mockAPI.On("CreateEmbeddings", ctx, text).Return(expectedEmbedding, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.NoError(t, err)
	assert.Len(t, embedding, 1536)
	assert.Equal(t, expectedEmbedding, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	ctx := context.Background()
	embedding, err := client.GenerateEmbedding(ctx, "")

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := NewClientWithAPI(mockAPI, 1536)

	ctx := context.Background()
	text := "Test text"
	apiErr := errors.New("API rate limit exceeded")

	mockAPI.On("CreateEmbeddings", ctx, text).Return(nil, apiErr)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Contains(t, err.Error(), "failed to create embedding")
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := NewClientWithAPI(mockAPI, 1536)

	ctx := context.Background()
	text := "Test text"
	wrongEmbedding := make([]float32, 512)

	mockAPI.On("CreateEmbeddings", ctx, text).Return(wrongEmbedding, nil)

	embedding, err := client.GenerateEmbedding(ctx, text)

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, ErrWrongDimensions, err)
	mockAPI.AssertExpectations(t)
}

func TestClient_Complete_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := NewClientWithAPI(mockAPI, 1536)

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return len(req.Messages) == 2 &&
			req.Messages[0].Role == openai.ChatMessageRoleSystem &&
			req.Messages[1].Content == "Summarize this." &&
			req.ResponseFormat == nil
	})).Return(completionResponse("A short summary."), nil)

	out, err := client.Complete(ctx, CompletionRequest{
		System: "You are a medical data analysis assistant.",
		Prompt: "Summarize this.",
	})

	require.NoError(t, err)
	assert.Equal(t, "A short summary.", out)
	mockAPI.AssertExpectations(t)
}

func TestClient_Complete_EmptyPrompt(t *testing.T) {
	client := NewClient("")

	_, err := client.Complete(context.Background(), CompletionRequest{})

	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_Complete_NoChoices(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := NewClientWithAPI(mockAPI, 1536)

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, mock.Anything).
		Return(openai.ChatCompletionResponse{}, nil)

	_, err := client.Complete(ctx, CompletionRequest{Prompt: "anything"})

	assert.Equal(t, ErrNoChoices, err)
}

func TestClient_CompleteJSON(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := NewClientWithAPI(mockAPI, 1536)

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.ResponseFormat != nil &&
			req.ResponseFormat.Type == openai.ChatCompletionResponseFormatTypeJSONObject
	})).Return(completionResponse(`{"resource_ids":["r1","r2"]}`), nil)

	var out struct {
		ResourceIDs []string `json:"resource_ids"`
	}
	err := client.CompleteJSON(ctx, CompletionRequest{Prompt: "select"}, &out)

	require.NoError(t, err)
	assert.Equal(t, []string{"r1", "r2"}, out.ResourceIDs)
	mockAPI.AssertExpectations(t)
}

func TestClient_CompleteJSON_MalformedOutput(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := NewClientWithAPI(mockAPI, 1536)

	ctx := context.Background()
	mockAPI.On("CreateCompletion", ctx, mock.Anything).
		Return(completionResponse("not json"), nil)

	var out map[string]any
	err := client.CompleteJSON(ctx, CompletionRequest{Prompt: "select"}, &out)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode structured output")
}

func TestNewClientFromEnv_NoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	client, err := NewClientFromEnv()

	assert.Nil(t, client)
	assert.Error(t, err)
	assert.Equal(t, ErrNoAPIKey, err)
}

func TestNewClientWithConfig_Defaults(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "test-api-key"})

	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimensions())
	assert.Equal(t, DefaultChatModel, client.chatModel)
}
