// Package knowledge provides tiered retrieval over a persisted document
// collection.
//
// Tier 1 is vector (or hybrid) similarity search; tier 2 is a relational
// full-text or substring pattern match. Tier 1 failures never surface to the
// caller — the chain falls back to tier 2, which is always reachable.
package knowledge

import (
	"context"
	"time"
)

// SearchMode selects which tiers a search may use.
type SearchMode string

const (
	// ModeVector uses vector similarity in tier 1.
	ModeVector SearchMode = "vector"

	// ModeHybrid combines vector scoring with text matching in tier 1.
	ModeHybrid SearchMode = "hybrid"

	// ModeText skips tier 1 and goes straight to the pattern-match tier.
	ModeText SearchMode = "text"
)

// DefaultMaxResults caps a search when the caller sets no limit.
const DefaultMaxResults = 5

// Result is one normalized retrieval record.
type Result struct {
	// ID is the document identifier.
	ID string `json:"id"`

	// Title is the document title.
	Title string `json:"title"`

	// Content is the matched document content.
	Content string `json:"content"`

	// DocumentType classifies the document (note, article, reference, ...).
	DocumentType string `json:"document_type"`

	// SimilarityScore is in [0,1]; 0 when the serving tier did not compute
	// a score.
	SimilarityScore float64 `json:"similarity_score"`

	// SourceMetadata carries backend-specific record details.
	SourceMetadata map[string]interface{} `json:"source_metadata,omitempty"`

	// CreatedAt is when the document was stored.
	CreatedAt time.Time `json:"created_at"`
}

// Scope restricts a search to documents owned by a project, organization,
// or user. Empty fields are not filtered on.
type Scope struct {
	ProjectID      string
	OrganizationID string
	UserID         string
}

// Options tunes a single search.
type Options struct {
	// Mode selects the tiers used. Defaults to ModeHybrid.
	Mode SearchMode

	// DocumentType optionally filters by document type.
	DocumentType string

	// MaxResults caps the number of results (DefaultMaxResults when 0).
	MaxResults int

	// Threshold is the minimum similarity score for tier-1 results.
	Threshold float64
}

// Document is a stored knowledge record, as written by the owning
// application.
type Document struct {
	ID             string
	Title          string
	Content        string
	DocumentType   string
	ProjectID      string
	OrganizationID string
	UserID         string
	Embedding      []float64
	Metadata       map[string]interface{}
	CreatedAt      time.Time
}

// VectorSearcher is the tier-1 similarity search capability.
type VectorSearcher interface {
	// SearchSimilar returns documents ranked by similarity to the query
	// embedding, filtered by scope and options, highest score first.
	SearchSimilar(ctx context.Context, embedding []float64, scope Scope, opts *Options) ([]*Result, error)

	// Close releases backend resources.
	Close() error
}

// TextSearcher is the tier-2 full-text/pattern search capability.
type TextSearcher interface {
	// SearchText returns documents whose title or content matches the
	// query, scoped by ownership, newest first as a secondary order.
	// Implementations leave SimilarityScore at 0 unless they compute one.
	SearchText(ctx context.Context, query string, scope Scope, opts *Options) ([]*Result, error)

	// Close releases backend resources.
	Close() error
}
