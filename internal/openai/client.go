package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultChatModel is the deterministic model used for summaries,
	// situating context, and the section pipeline
	DefaultChatModel = openai.GPT4o
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when embedding has wrong dimensions
	ErrWrongDimensions = errors.New("embedding has unexpected dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrNoChoices is returned when a completion response carries no choices
	ErrNoChoices = errors.New("no completion choices returned")
)

// API defines the raw calls the client depends on (for testing)
type API interface {
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
	CreateCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// CompletionRequest is one prompt for the model boundary. Temperature is
// pinned to 0 by the adapter; callers only vary the text and output shape.
type CompletionRequest struct {
	System string
	Prompt string
}

// Client wraps the OpenAI API client. It performs no retries: a failed call
// is surfaced to the caller as the failure of the unit being processed.
type Client struct {
	api        API
	chatModel  string
	dimensions int
}

type sdkAdapter struct {
	client         *openai.Client
	embeddingModel openai.EmbeddingModel
}

func newSDKAdapter(apiKey string, embeddingModel openai.EmbeddingModel) *sdkAdapter {
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}
	return &sdkAdapter{
		client:         openai.NewClient(apiKey),
		embeddingModel: embeddingModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings
func (a *sdkAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: a.embeddingModel,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// CreateCompletion calls the OpenAI chat completion API
func (a *sdkAdapter) CreateCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	return a.client.CreateChatCompletion(ctx, req)
}

type Config struct {
	APIKey              string
	ChatModel           string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	return &Client{
		api:        newSDKAdapter(cfg.APIKey, cfg.EmbeddingModel),
		chatModel:  chatModel,
		dimensions: dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// NewClientWithAPI creates a client over a custom API implementation (for testing)
func NewClientWithAPI(api API, dimensions int) *Client {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &Client{api: api, chatModel: DefaultChatModel, dimensions: dimensions}
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(embedding) != c.dimensions {
		return nil, ErrWrongDimensions
	}

	return embedding, nil
}

// Dimensions returns the configured embedding dimensionality.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Complete runs one deterministic chat completion and returns the text.
func (c *Client) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if req.Prompt == "" {
		return "", ErrEmptyText
	}

	resp, err := c.api.CreateCompletion(ctx, chatRequest(c.chatModel, req, nil))
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrNoChoices
	}

	return resp.Choices[0].Message.Content, nil
}

// CompleteJSON runs one deterministic chat completion constrained to a JSON
// object and unmarshals it into out. Schema-level validation (for example
// filtering ids against a candidate list) stays with the caller.
func (c *Client) CompleteJSON(ctx context.Context, req CompletionRequest, out any) error {
	if req.Prompt == "" {
		return ErrEmptyText
	}

	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONObject,
	}
	resp, err := c.api.CreateCompletion(ctx, chatRequest(c.chatModel, req, format))
	if err != nil {
		return fmt.Errorf("failed to create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ErrNoChoices
	}

	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), out); err != nil {
		return fmt.Errorf("failed to decode structured output: %w", err)
	}
	return nil
}

func chatRequest(model string, req CompletionRequest, format *openai.ChatCompletionResponseFormat) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	return openai.ChatCompletionRequest{
		Model: model,
		// omitempty drops a literal 0, which would fall back to the API
		// default of 1; the smallest nonzero value survives marshalling.
		Temperature:    math.SmallestNonzeroFloat32,
		Messages:       messages,
		ResponseFormat: format,
	}
}
