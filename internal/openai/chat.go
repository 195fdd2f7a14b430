package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cloo-solutions/coverdraft/internal/llm"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// ProviderName identifies the OpenAI chat generator in the registry
	ProviderName     = "openai"
	DefaultChatModel = "gpt-4o-mini"
)

// ChatAPI is the slice of the OpenAI client used for chat completions
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatGenerator implements llm.Generator with OpenAI chat completions
type ChatGenerator struct {
	api   ChatAPI
	model string
}

// NewChatGenerator creates a chat generator for the given key and model
func NewChatGenerator(apiKey, model string) *ChatGenerator {
	return NewChatGeneratorWithAPI(openai.NewClient(apiKey), model)
}

// NewChatGeneratorWithAPI creates a chat generator over an existing API client
func NewChatGeneratorWithAPI(api ChatAPI, model string) *ChatGenerator {
	if model == "" {
		model = DefaultChatModel
	}
	return &ChatGenerator{api: api, model: model}
}

func (g *ChatGenerator) Name() string { return ProviderName }

// Generate returns the first choice of a single-turn chat completion
func (g *ChatGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", llm.ErrEmptyPrompt
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := openai.ChatCompletionRequest{
		Model:     g.model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		chatReq.Temperature = chatTemperature(*req.Temperature)
	}
	resp, err := g.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// chatTemperature maps t onto the request field. The field is omitted from
// the JSON body when zero, so an explicit zero is sent as the smallest
// positive float32 instead.
func chatTemperature(t float64) float32 {
	if t <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(t)
}
