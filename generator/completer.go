package generator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ErrNoChoices is returned when the endpoint answers without a completion
var ErrNoChoices = errors.New("no choices returned")

// Completer returns the model's answer to a system and user prompt pair
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// OpenAICompleter works with any OpenAI-compatible chat completion API
type OpenAICompleter struct {
	client      *openai.Client
	model       string
	temperature float64
}

// NewOpenAICompleter creates a completer for the given endpoint. An empty
// baseURL keeps the client default; a zero timeout disables the per-request limit.
func NewOpenAICompleter(baseURL, apiKey, model string, temperature float64, timeout time.Duration) *OpenAICompleter {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	client := openai.NewClient(opts...)
	return &OpenAICompleter{
		client:      &client,
		model:       model,
		temperature: temperature,
	}
}

// Complete sends one chat completion request
func (c *OpenAICompleter) Complete(ctx context.Context, system, user string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(c.temperature),
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}

	return completion.Choices[0].Message.Content, nil
}
