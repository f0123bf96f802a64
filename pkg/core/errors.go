// Package core provides the orchestrating chat client that ties the
// classifier, knowledge chain, goal engine, cache and provider router
// together behind one Chat call.
package core

import (
	"errors"
	"fmt"

	"github.com/okrhub/aichat-go/pkg/goal"
	"github.com/okrhub/aichat-go/pkg/provider"
)

// Predefined errors for common failure scenarios. The provider and goal
// sentinels are re-exported here so callers can match every failure class
// with a single import.
var (
	// ErrConfiguration indicates missing or invalid configuration.
	ErrConfiguration = provider.ErrConfiguration

	// ErrTransport indicates a network-level failure reaching a backend.
	ErrTransport = provider.ErrTransport

	// ErrTimeout indicates a dispatch exceeded its deadline.
	ErrTimeout = provider.ErrTimeout

	// ErrUpstream indicates the backend answered with a failure status.
	ErrUpstream = provider.ErrUpstream

	// ErrParse indicates a malformed backend payload.
	ErrParse = provider.ErrParse

	// ErrNotFound indicates a requested goal or key result was not found.
	ErrNotFound = goal.ErrNotFound

	// ErrLowConfidence indicates a fuzzy match fell below the threshold.
	ErrLowConfidence = goal.ErrLowConfidence

	// ErrValidation indicates invalid caller input.
	ErrValidation = goal.ErrValidation

	// ErrInvalidConfig indicates the client configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ChatError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &ChatError{
//	    Op:  "Chat",
//	    Err: ErrTimeout,
//	}
//	// Error() returns: "aichat: Chat: provider timeout"
type ChatError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "aichat: <Op>: <Err>"
func (e *ChatError) Error() string {
	return fmt.Sprintf("aichat: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with ChatError.
func (e *ChatError) Unwrap() error {
	return e.Err
}

// NewChatError creates a new ChatError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewChatError("Chat", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Chat", "SearchKnowledge")
//   - err: The underlying error to wrap
//
// Returns a ChatError, or nil if err is nil.
func NewChatError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ChatError{
		Op:  op,
		Err: err,
	}
}
