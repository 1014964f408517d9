package generativeAI

import (
	"context"
	"fmt"
	"os"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// AIClient wraps the Gemini API for conversational use.
type AIClient struct {
	client *genai.Client
	model  string
}

// ChatSession is a stateful conversation with the model.
type ChatSession struct {
	chat *genai.Chat
}

// NewAIClient builds a Gemini client against GOOGLE_GEMINI_API_KEY.
func NewAIClient(ctx context.Context, model string) (*AIClient, error) {
	apiKey := os.Getenv("GOOGLE_GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_GEMINI_API_KEY environment variable is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = defaultGeminiModel
	}
	return &AIClient{
		client: client,
		model:  model,
	}, nil
}

// GenerateContent sends a one-shot prompt and returns the response text.
func (ai *AIClient) GenerateContent(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	result, err := ai.client.Models.GenerateContent(ctx, ai.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return result.Text(), nil
}

// StartChatSession opens a new multi-turn session.
func (ai *AIClient) StartChatSession(ctx context.Context, config *genai.GenerateContentConfig) (*ChatSession, error) {
	chat, err := ai.client.Chats.Create(ctx, ai.model, config, nil)
	if err != nil {
		return nil, err
	}
	return &ChatSession{chat: chat}, nil
}

// SendMessage sends one message within the session and returns the reply text.
func (cs *ChatSession) SendMessage(ctx context.Context, message string) (string, error) {
	result, err := cs.chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}
