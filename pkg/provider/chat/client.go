// Package chat provides the direct chat-completion provider, backed by an
// OpenAI-compatible API.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/okrhub/aichat-go/pkg/provider"
)

// ProviderName is the identifier this provider registers under.
const ProviderName = "chat"

// Client implements provider.Provider over a single chat-completion call.
type Client struct {
	client *openai.Client
	model  string
}

// Config is the configuration for the chat provider.
type Config struct {
	// APIKey is the API key (required).
	APIKey string

	// Model is the chat model name (defaults to gpt-4).
	Model string

	// BaseURL overrides the API base URL, enabling OpenAI-compatible
	// backends (optional).
	BaseURL string
}

// NewClient creates a chat provider client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("chat: api key is required: %w", provider.ErrConfiguration)
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

// Dispatch sends one chat-completion request and normalizes the reply.
func (c *Client) Dispatch(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.SystemContext != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemContext,
		})
	}
	for _, msg := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("chat: %w", provider.ErrTimeout)
		}
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("chat: status %d: %v: %w", apiErr.HTTPStatusCode, apiErr, provider.ErrUpstream)
		}
		return nil, fmt.Errorf("chat: %v: %w", err, provider.ErrTransport)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat: no choices returned: %w", provider.ErrUpstream)
	}

	return &provider.Response{
		Content:      resp.Choices[0].Message.Content,
		TokensUsed:   resp.Usage.TotalTokens,
		ResponseTime: time.Since(start),
		MessageID:    resp.ID,
		Metadata: map[string]interface{}{
			"provider": ProviderName,
			"model":    resp.Model,
		},
	}, nil
}

// HealthCheck lists models as a lightweight reachability probe.
func (c *Client) HealthCheck(ctx context.Context) error {
	if _, err := c.client.ListModels(ctx); err != nil {
		return fmt.Errorf("chat: health check: %w", err)
	}
	return nil
}

// Close is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}
