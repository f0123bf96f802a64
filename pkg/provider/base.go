// Package provider defines the backend abstraction for AI reply generation
// and the router that dispatches requests to a configured backend.
//
// Each backend (workflow webhook, direct chat completion, streaming chat
// completion) implements the Provider interface in its own subpackage and
// normalizes its response into the common Response shape.
package provider

import (
	"context"
	"errors"
	"time"
)

// Predefined errors for dispatch failures. Implementations wrap these so
// callers can branch with errors.Is.
var (
	// ErrConfiguration indicates missing provider credentials or endpoint.
	ErrConfiguration = errors.New("provider configuration incomplete")

	// ErrTransport indicates a network-level failure.
	ErrTransport = errors.New("provider transport failure")

	// ErrTimeout indicates the per-request deadline expired.
	ErrTimeout = errors.New("provider request timed out")

	// ErrUpstream indicates a non-success backend status.
	ErrUpstream = errors.New("provider upstream error")

	// ErrParse indicates a malformed backend payload.
	ErrParse = errors.New("provider response parse failure")

	// ErrUnavailable indicates the provider's health state does not permit
	// dispatch.
	ErrUnavailable = errors.New("provider not available")

	// ErrUnknownProvider indicates no provider is registered under the
	// requested identifier.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Message is one conversation turn sent to a backend.
type Message struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Request is the normalized backend request.
type Request struct {
	// Message is the current user message.
	Message string

	// SessionType labels the conversation kind (general, goal_planning, ...).
	SessionType string

	// UserID identifies the end user for backends that track users.
	UserID string

	// ConversationID continues a backend-side conversation when set.
	ConversationID string

	// History is the prior conversation, oldest first.
	History []Message

	// SystemContext is retrieved knowledge and profile context injected
	// ahead of the conversation.
	SystemContext string

	// Metadata carries additional request fields.
	Metadata map[string]interface{}
}

// Response is the normalized backend reply.
type Response struct {
	// Content is the reply text.
	Content string

	// TokensUsed is the backend-reported token count (0 when unknown).
	TokensUsed int

	// ResponseTime is how long the backend call took.
	ResponseTime time.Duration

	// ConversationID is the backend conversation identifier, when the
	// backend returns one.
	ConversationID string

	// MessageID is the backend message identifier, when returned.
	MessageID string

	// Metadata carries backend-specific response fields.
	Metadata map[string]interface{}
}

// Provider is one AI backend.
type Provider interface {
	// Name returns the provider identifier used for registration and
	// routing.
	Name() string

	// Dispatch sends the request and returns the normalized response.
	//
	// Implementations honor ctx cancellation and wrap failures in the
	// package's predefined errors: ErrConfiguration, ErrTransport,
	// ErrTimeout, or ErrUpstream.
	Dispatch(ctx context.Context, req *Request) (*Response, error)

	// HealthCheck probes the backend, returning nil when it is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the provider.
	Close() error
}
