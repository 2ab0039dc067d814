// Package openai implements the TextGenerator port against any OpenAI-compatible
// chat completions endpoint using the go-openai library.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/ericfisherdev/repobrief/internal/domain/port/driven"
)

// ErrNoChoices is returned when the backend answers without any completion choice.
var ErrNoChoices = errors.New("no choices returned")

// Compile-time interface satisfaction check.
var _ driven.TextGenerator = (*Client)(nil)

// Client implements driven.TextGenerator with a single chat completion per call.
type Client struct {
	client *goopenai.Client
	model  string
}

// NewClient creates a Client for the chat completions API rooted at baseURL.
func NewClient(baseURL, apiKey, model string) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	return &Client{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Generate sends req.Prompt as one user message and returns the first choice's text.
func (c *Client) Generate(ctx context.Context, req driven.GenerationRequest) (string, error) {
	chatReq := goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: wireTemperature(req.Temperature),
	}
	if req.Schema != nil {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &goopenai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("chat completion with %s: %w", c.model, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion with %s: %w", c.model, ErrNoChoices)
	}

	return messageText(resp.Choices[0].Message), nil
}

// wireTemperature keeps a zero temperature on the wire. go-openai omits a zero
// Temperature field, which would let the backend apply its default of 1.
func wireTemperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// messageText concatenates the text parts of msg. Non-text parts are dropped.
func messageText(msg goopenai.ChatCompletionMessage) string {
	if len(msg.MultiContent) == 0 {
		return msg.Content
	}

	var b strings.Builder
	for _, part := range msg.MultiContent {
		if part.Type == goopenai.ChatMessagePartTypeText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}
