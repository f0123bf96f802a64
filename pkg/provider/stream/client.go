package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/okrhub/aichat-go/pkg/provider"
)

// ProviderName is the identifier this provider registers under.
const ProviderName = "stream"

// Client implements provider.Provider against the same workflow webhook as
// the blocking provider, but in streaming mode: the reply arrives as an
// event stream which the Assembler folds back into one response.
type Client struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	assembler *Assembler
}

// Config is the configuration for the streaming provider.
type Config struct {
	// Endpoint is the webhook URL (required).
	Endpoint string

	// APIKey is the bearer token (required).
	APIKey string

	// HTTPClient overrides the default HTTP client (optional).
	HTTPClient *http.Client
}

// NewClient creates a streaming provider client.
//
// Returns provider.ErrConfiguration when the endpoint or key is missing.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("stream: endpoint is required: %w", provider.ErrConfiguration)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("stream: api key is required: %w", provider.ErrConfiguration)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Client{
		client:    client,
		endpoint:  cfg.Endpoint,
		apiKey:    cfg.APIKey,
		assembler: NewAssembler(),
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

// Dispatch posts the request in streaming mode and consumes the event
// stream to completion before returning the assembled reply.
func (c *Client) Dispatch(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	query := req.Message
	if req.SystemContext != "" {
		query = req.SystemContext + "\n\n" + req.Message
	}

	body := map[string]interface{}{
		"inputs":          map[string]interface{}{"session_type": req.SessionType},
		"query":           query,
		"user":            req.UserID,
		"conversation_id": conversationID,
		"response_mode":   "streaming",
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("stream: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("stream: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("stream: %w", provider.ErrTimeout)
		}
		return nil, fmt.Errorf("stream: %v: %w", err, provider.ErrTransport)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("stream: status %d: %s: %w", resp.StatusCode, string(detail), provider.ErrUpstream)
	}

	assembled, err := c.assembler.Consume(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("stream: %w", provider.ErrTimeout)
		}
		return nil, fmt.Errorf("stream: %v: %w", err, provider.ErrParse)
	}

	respConversationID := assembled.ConversationID
	if respConversationID == "" {
		respConversationID = conversationID
	}

	metadata := map[string]interface{}{"provider": ProviderName}
	if len(assembled.Resources) > 0 {
		metadata["retriever_resources"] = assembled.Resources
	}

	return &provider.Response{
		Content:        assembled.Content,
		TokensUsed:     assembled.TokensUsed,
		ResponseTime:   time.Since(start),
		ConversationID: respConversationID,
		MessageID:      assembled.MessageID,
		Metadata:       metadata,
	}, nil
}

// HealthCheck probes the webhook endpoint. Any HTTP response counts as
// reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("stream: health check: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("stream: health check: %v: %w", err, provider.ErrTransport)
	}
	_ = resp.Body.Close()
	return nil
}

// Close is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}
