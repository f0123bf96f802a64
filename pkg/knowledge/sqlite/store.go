// Package sqlite provides the SQLite document store for knowledge
// retrieval.
//
// Embeddings are stored as JSON strings in TEXT fields and similarity is
// computed in memory with cosine distance, which is adequate for local and
// small-scale deployments. The store serves both retrieval tiers: vector
// similarity and LIKE pattern matching.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/okrhub/aichat-go/pkg/knowledge"
)

// Store implements knowledge.VectorSearcher and knowledge.TextSearcher over
// a single documents table.
type Store struct {
	db *sql.DB
}

// Config contains configuration for creating a SQLite document store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
}

// NewStore creates a new SQLite document store.
func NewStore(cfg *Config) (*Store, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteDocumentStore: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteDocumentStore: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteDocumentStore: %w", err)
	}

	store := &Store{db: db}
	if err := store.initTables(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) initTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			document_type TEXT,
			project_id TEXT,
			organization_id TEXT,
			user_id TEXT,
			embedding TEXT,
			metadata TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexQuery := `
		CREATE INDEX IF NOT EXISTS idx_documents_owner
		ON documents(project_id, organization_id, user_id)
	`
	if _, err := s.db.ExecContext(ctx, indexQuery); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// Insert stores a document.
func (s *Store) Insert(ctx context.Context, doc *knowledge.Document) error {
	embeddingJSON, err := json.Marshal(doc.Embedding)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}

	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO documents
		(id, title, content, document_type, project_id, organization_id, user_id,
		 embedding, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		doc.ID, doc.Title, doc.Content, doc.DocumentType, doc.ProjectID,
		doc.OrganizationID, doc.UserID, string(embeddingJSON), string(metadataJSON),
		createdAt)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// SearchSimilar loads the scoped documents and ranks them by cosine
// similarity against the query embedding.
func (s *Store) SearchSimilar(ctx context.Context, embedding []float64, scope knowledge.Scope, opts *knowledge.Options) ([]*knowledge.Result, error) {
	query := `
		SELECT id, title, content, document_type, embedding, metadata, created_at
		FROM documents
	`
	where, args := scopeFilters(scope, opts)
	rows, err := s.db.QueryContext(ctx, query+where, args...)
	if err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*knowledge.Result
	for rows.Next() {
		result, docEmbedding, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("SearchSimilar: %w", err)
		}
		if len(docEmbedding) == 0 {
			continue
		}

		score := cosineSimilarity(embedding, docEmbedding)
		if score < opts.Threshold {
			continue
		}
		result.SimilarityScore = score
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchSimilar: %w", err)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})
	if len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return results, nil
}

// SearchText matches the query as a substring of the title or content,
// newest first. Similarity stays at 0: this tier computes no score.
func (s *Store) SearchText(ctx context.Context, query string, scope knowledge.Scope, opts *knowledge.Options) ([]*knowledge.Result, error) {
	sqlQuery := `
		SELECT id, title, content, document_type, embedding, metadata, created_at
		FROM documents
	`
	where, args := scopeFilters(scope, opts)
	if where == "" {
		where = " WHERE (title LIKE ? OR content LIKE ?)"
	} else {
		where += " AND (title LIKE ? OR content LIKE ?)"
	}
	pattern := "%" + query + "%"
	args = append(args, pattern, pattern)

	sqlQuery += where + " ORDER BY created_at DESC LIMIT ?"
	args = append(args, opts.MaxResults)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("SearchText: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*knowledge.Result
	for rows.Next() {
		result, _, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("SearchText: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SearchText: %w", err)
	}
	return results, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanDocument(rows *sql.Rows) (*knowledge.Result, []float64, error) {
	var result knowledge.Result
	var docType, embeddingJSON, metadataJSON sql.NullString
	var createdAt time.Time

	if err := rows.Scan(&result.ID, &result.Title, &result.Content, &docType,
		&embeddingJSON, &metadataJSON, &createdAt); err != nil {
		return nil, nil, err
	}

	result.DocumentType = docType.String
	result.CreatedAt = createdAt

	var embedding []float64
	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &embedding); err != nil {
			return nil, nil, err
		}
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &result.SourceMetadata); err != nil {
			return nil, nil, err
		}
	}
	return &result, embedding, nil
}

func scopeFilters(scope knowledge.Scope, opts *knowledge.Options) (string, []interface{}) {
	where := ""
	var args []interface{}
	appendCond := func(cond string, arg interface{}) {
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
		args = append(args, arg)
	}

	if scope.ProjectID != "" {
		appendCond("project_id = ?", scope.ProjectID)
	}
	if scope.OrganizationID != "" {
		appendCond("organization_id = ?", scope.OrganizationID)
	}
	if scope.UserID != "" {
		appendCond("user_id = ?", scope.UserID)
	}
	if opts != nil && opts.DocumentType != "" {
		appendCond("document_type = ?", opts.DocumentType)
	}
	return where, args
}

// cosineSimilarity computes the cosine similarity of two vectors, 0 when
// either has zero magnitude or the lengths differ.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
