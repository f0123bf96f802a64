package knowledge

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/okrhub/aichat-go/pkg/embedder"
)

// Chain is the tiered retrieval entry point.
//
// A search tries tier 1 (vector/hybrid) when the mode asks for it, then
// falls back to tier 2 (text). Whichever tier returns results first wins;
// the tiers are never merged.
type Chain struct {
	embedder embedder.Provider
	vector   VectorSearcher
	text     TextSearcher
	log      *logrus.Entry
}

// NewChain creates a retrieval chain.
//
// The embedder and vector searcher may be nil, in which case every search
// is served by the text tier. The text searcher is required.
func NewChain(emb embedder.Provider, vector VectorSearcher, text TextSearcher) (*Chain, error) {
	if text == nil {
		return nil, fmt.Errorf("NewChain: text searcher is required")
	}
	return &Chain{
		embedder: emb,
		vector:   vector,
		text:     text,
		log:      logrus.WithField("component", "knowledge"),
	}, nil
}

// Search runs the tiered retrieval.
//
// Tier-1 failures (embedding errors, backend errors) are logged and
// swallowed; the chain then serves the search from tier 2. Results are
// normalized Result records capped at opts.MaxResults.
func (c *Chain) Search(ctx context.Context, query string, scope Scope, opts *Options) ([]*Result, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Mode == "" {
		opts.Mode = ModeHybrid
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = DefaultMaxResults
	}

	if opts.Mode != ModeText {
		if results := c.searchVector(ctx, query, scope, opts); len(results) > 0 {
			return results, nil
		}
	}

	results, err := c.text.SearchText(ctx, query, scope, opts)
	if err != nil {
		return nil, fmt.Errorf("Search: %w", err)
	}
	return results, nil
}

// searchVector runs tier 1 and absorbs every failure.
func (c *Chain) searchVector(ctx context.Context, query string, scope Scope, opts *Options) []*Result {
	if c.vector == nil || c.embedder == nil {
		return nil
	}

	embedding, err := c.embedder.Embed(ctx, query)
	if err != nil {
		c.log.WithError(err).Warn("query embedding failed, falling back to text search")
		return nil
	}

	results, err := c.vector.SearchSimilar(ctx, embedding, scope, opts)
	if err != nil {
		c.log.WithError(err).Warn("vector search failed, falling back to text search")
		return nil
	}
	return results
}

// Close closes the chain's searchers and embedder.
func (c *Chain) Close() error {
	var firstErr error
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.vector != nil {
		if err := c.vector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := c.text.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
