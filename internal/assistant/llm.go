package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"calassist/internal/config"
	"calassist/internal/models"

	"github.com/sashabaranov/go-openai"
)

// ErrEmptyCompletion is returned when the model answers without any choice.
var ErrEmptyCompletion = errors.New("empty completion")

// Completer is the part of the OpenAI client the assistant needs.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewOpenAIClient builds a chat completion client from configuration.
func NewOpenAIClient(cfg config.OpenAIConfig) *openai.Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	return openai.NewClientWithConfig(clientConfig)
}

// Responder turns a user message plus calendar context into an answer.
type Responder struct {
	completer   Completer
	logger      *slog.Logger
	model       string
	maxTokens   int
	temperature float32
}

// NewResponder creates a Responder. An empty model falls back to gpt-4o-mini and a
// non-positive token limit to 500. Temperature is used as given, including 0.
func NewResponder(completer Completer, logger *slog.Logger, cfg config.OpenAIConfig) *Responder {
	r := &Responder{
		completer:   completer,
		logger:      logger,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
	if r.model == "" {
		r.model = openai.GPT4oMini
	}
	if r.maxTokens <= 0 {
		r.maxTokens = 500
	}
	return r
}

// Respond asks the model to answer message. payload may be nil when no calendar data is available.
func (r *Responder) Respond(ctx context.Context, message string, payload *models.ContextPayload) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt(payload)},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
	}
	if req.Temperature == 0 {
		// A zero temperature is dropped by omitempty.
		req.Temperature = math.SmallestNonzeroFloat32
	}

	r.logger.Debug("Requesting chat completion", "model", r.model, "withContext", payload != nil)
	resp, err := r.completer.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("failed to generate response: %w", ErrEmptyCompletion)
	}

	r.logger.Debug("Received chat completion", "totalTokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}
