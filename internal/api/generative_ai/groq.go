package generativeAI

import (
	"context"
	"fmt"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agrimind/farm-assist/app/observability/metrics"
)

const (
	defaultGroqBaseURL = "https://api.groq.com/openai/v1"
	defaultGroqModel   = "llama-3.3-70b-versatile"
)

// GroqClient wraps Groq's OpenAI-compatible chat completions API. It is used
// for structured analysis calls where the model must answer with JSON only.
type GroqClient struct {
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
}

// GroqOption customises a GroqClient.
type GroqOption func(*GroqClient)

func WithGroqModel(model string) GroqOption {
	return func(c *GroqClient) {
		if model != "" {
			c.model = model
		}
	}
}

func WithTemperature(t float32) GroqOption {
	return func(c *GroqClient) { c.temperature = t }
}

func WithMaxTokens(n int) GroqOption {
	return func(c *GroqClient) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// NewGroqClient builds a client against GROQ_API_KEY. baseURL may be empty to
// use the default Groq endpoint.
func NewGroqClient(baseURL string, opts ...GroqOption) (*GroqClient, error) {
	apiKey := os.Getenv("GROQ_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY environment variable is not set")
	}
	if baseURL == "" {
		baseURL = defaultGroqBaseURL
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL

	c := &GroqClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       defaultGroqModel,
		temperature: 0.3,
		maxTokens:   500,
	}
	if m := os.Getenv("GROQ_MODEL"); m != "" {
		c.model = m
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete sends a system+user message pair and returns the raw model text.
func (c *GroqClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	metrics.Get().LLMCallDurationSeconds.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return "", fmt.Errorf("groq chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("groq chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the configured model name.
func (c *GroqClient) Model() string { return c.model }
