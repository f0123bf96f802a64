// Package workflow provides the workflow-webhook provider.
//
// The backend exposes a chat workflow behind a single webhook: one JSON
// POST with a bearer token, one JSON reply carrying the answer and usage
// metadata.
package workflow

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
const ProviderName = "workflow"

// Client implements provider.Provider against a workflow webhook.
type Client struct {
	client   *http.Client
	endpoint string
	apiKey   string
}

// Config is the configuration for the workflow provider.
type Config struct {
	// Endpoint is the webhook URL (required).
	Endpoint string

	// APIKey is the bearer token (required).
	APIKey string

	// HTTPClient overrides the default HTTP client (optional). Timeouts
	// come from the dispatch context, not the client.
	HTTPClient *http.Client
}

// NewClient creates a workflow provider client.
//
// Returns provider.ErrConfiguration when the endpoint or key is missing.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("workflow: endpoint is required: %w", provider.ErrConfiguration)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("workflow: api key is required: %w", provider.ErrConfiguration)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}

	return &Client{
		client:   client,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
	}, nil
}

// Name returns the provider identifier.
func (c *Client) Name() string {
	return ProviderName
}

// Dispatch posts the request to the webhook in blocking mode and normalizes
// the reply.
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
		"response_mode":   "blocking",
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("workflow: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("workflow: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("workflow: %w", provider.ErrTimeout)
		}
		return nil, fmt.Errorf("workflow: %v: %w", err, provider.ErrTransport)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("workflow: status %d: %s: %w", resp.StatusCode, string(detail), provider.ErrUpstream)
	}

	var payload struct {
		Answer         string `json:"answer"`
		ConversationID string `json:"conversation_id"`
		MessageID      string `json:"message_id"`
		Metadata       struct {
			Usage struct {
				TotalTokens int `json:"total_tokens"`
			} `json:"usage"`
		} `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("workflow: decode response: %v: %w", err, provider.ErrParse)
	}

	return &provider.Response{
		Content:        payload.Answer,
		TokensUsed:     payload.Metadata.Usage.TotalTokens,
		ResponseTime:   time.Since(start),
		ConversationID: payload.ConversationID,
		MessageID:      payload.MessageID,
		Metadata:       map[string]interface{}{"provider": ProviderName},
	}, nil
}

// HealthCheck probes the webhook endpoint. Any HTTP response counts as
// reachable; only a transport failure marks the backend unhealthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("workflow: health check: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("workflow: health check: %v: %w", err, provider.ErrTransport)
	}
	_ = resp.Body.Close()
	return nil
}

// Close is retained for interface compatibility.
func (c *Client) Close() error {
	return nil
}
