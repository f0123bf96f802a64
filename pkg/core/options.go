package core

import "github.com/okrhub/aichat-go/pkg/knowledge"

// ChatOption is a function type for configuring Chat operations.
//
// Options are applied using the functional options pattern, allowing
// flexible configuration without requiring all parameters.
type ChatOption func(*ChatOptions)

// ChatOptions contains configuration options for Chat operations.
type ChatOptions struct {
	// Provider overrides the configured default provider for this call.
	Provider string

	// SkipCache bypasses the response cache for this call.
	SkipCache bool

	// SkipKnowledge disables knowledge retrieval for this call.
	SkipKnowledge bool

	// SearchMode selects the retrieval mode (defaults to hybrid).
	SearchMode knowledge.SearchMode

	// MaxKnowledgeResults caps retrieved documents (defaults to 5).
	MaxKnowledgeResults int
}

// WithProvider routes this call to the named provider instead of the
// configured default.
//
// Example:
//
//	result, _ := client.Chat(ctx, req, core.WithProvider("stream"))
func WithProvider(name string) ChatOption {
	return func(opts *ChatOptions) {
		opts.Provider = name
	}
}

// WithoutCache bypasses the response cache for this call.
func WithoutCache() ChatOption {
	return func(opts *ChatOptions) {
		opts.SkipCache = true
	}
}

// WithoutKnowledge disables knowledge retrieval for this call.
func WithoutKnowledge() ChatOption {
	return func(opts *ChatOptions) {
		opts.SkipKnowledge = true
	}
}

// WithSearchMode selects the knowledge retrieval mode for this call.
//
// Example:
//
//	result, _ := client.Chat(ctx, req, core.WithSearchMode(knowledge.ModeText))
func WithSearchMode(mode knowledge.SearchMode) ChatOption {
	return func(opts *ChatOptions) {
		opts.SearchMode = mode
	}
}

// WithMaxKnowledgeResults caps the number of retrieved documents.
func WithMaxKnowledgeResults(max int) ChatOption {
	return func(opts *ChatOptions) {
		opts.MaxKnowledgeResults = max
	}
}
