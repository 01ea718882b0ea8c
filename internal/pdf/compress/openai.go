package compress

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const systemPrompt = "You shorten text so it fits into fixed-size form fields. " +
	"Preserve names, numbers and key facts. Answer with the shortened text only."

// OpenAI compresses text with an OpenAI-compatible chat completion endpoint
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a compressor. An empty baseURL uses the public API.
func NewOpenAI(baseURL, apiKey, model string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Compress asks the model for a shortened version of text
func (o *OpenAI) Compress(ctx context.Context, text string, maxChars int, hint Hint) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: Prompt(text, maxChars, hint)},
		},
		Temperature: 0,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response generated")
	}
	return cleanReply(resp.Choices[0].Message.Content), nil
}
