package explain

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// Completer sends one system+user prompt pair and returns the reply text.
type Completer interface {
	Complete(ctx context.Context, system, user string, jsonReply bool) (string, error)
}

// OpenAICompatClient works with any OpenAI-compatible API (OpenAI, Ollama, Gemini).
type OpenAICompatClient struct {
	client *openai.Client
	model  string
}

// NewClient creates a client for the endpoint at baseURL.
func NewClient(baseURL, apiKey, model string) *OpenAICompatClient {
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &OpenAICompatClient{client: &client, model: model}
}

func (c *OpenAICompatClient) Complete(ctx context.Context, system, user string, jsonReply bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	}
	if jsonReply {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	var completion *openai.ChatCompletion
	var err error
	for attempt := range 3 {
		completion, err = c.client.Chat.Completions.New(ctx, params)
		if err == nil {
			break
		}
		if !strings.Contains(err.Error(), "429") || attempt == 2 {
			return "", fmt.Errorf("chat completion: %w", err)
		}
		wait := time.Duration(2<<attempt) * time.Second // 2s, 4s
		log.Printf("explain: rate limited, retrying in %s", wait)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", fmt.Errorf("chat completion: %w", ctx.Err())
		}
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}
