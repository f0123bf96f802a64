// Package postgres provides the PostgreSQL text-search backend for
// knowledge retrieval.
//
// It serves the pattern-match tier with ILIKE queries; vector search on
// PostgreSQL is out of scope for this store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/okrhub/aichat-go/pkg/knowledge"
)

// Store implements knowledge.TextSearcher over a documents table.
type Store struct {
	db *sql.DB
}

// Config contains configuration for creating a PostgreSQL document store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// NewStore creates a new PostgreSQL document store.
func NewStore(cfg *Config) (*Store, error) {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewPostgresDocumentStore: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewPostgresDocumentStore: %w", err)
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
			metadata JSONB,
			created_at TIMESTAMPTZ DEFAULT NOW()
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}
	return nil
}

// Insert stores a document.
func (s *Store) Insert(ctx context.Context, doc *knowledge.Document) error {
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
		(id, title, content, document_type, project_id, organization_id, user_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.db.ExecContext(ctx, query,
		doc.ID, doc.Title, doc.Content, doc.DocumentType, doc.ProjectID,
		doc.OrganizationID, doc.UserID, string(metadataJSON), createdAt)
	if err != nil {
		return fmt.Errorf("Insert: %w", err)
	}
	return nil
}

// SearchText matches the query case-insensitively against the title or
// content, scoped by ownership, newest first.
func (s *Store) SearchText(ctx context.Context, query string, scope knowledge.Scope, opts *knowledge.Options) ([]*knowledge.Result, error) {
	sqlQuery := `
		SELECT id, title, content, document_type, metadata, created_at
		FROM documents
	`
	where, args := scopeFilters(scope, opts)
	pattern := "%" + query + "%"
	args = append(args, pattern)
	cond := fmt.Sprintf("(title ILIKE $%d OR content ILIKE $%d)", len(args), len(args))
	if where == "" {
		where = " WHERE " + cond
	} else {
		where += " AND " + cond
	}

	args = append(args, opts.MaxResults)
	sqlQuery += where + fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("SearchText: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*knowledge.Result
	for rows.Next() {
		var result knowledge.Result
		var docType, metadataJSON sql.NullString
		var createdAt time.Time

		if err := rows.Scan(&result.ID, &result.Title, &result.Content, &docType,
			&metadataJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("SearchText: %w", err)
		}

		result.DocumentType = docType.String
		result.CreatedAt = createdAt
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &result.SourceMetadata); err != nil {
				return nil, fmt.Errorf("SearchText: %w", err)
			}
		}
		results = append(results, &result)
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

func scopeFilters(scope knowledge.Scope, opts *knowledge.Options) (string, []interface{}) {
	where := ""
	var args []interface{}
	appendCond := func(column string, arg interface{}) {
		args = append(args, arg)
		cond := fmt.Sprintf("%s = $%d", column, len(args))
		if where == "" {
			where = " WHERE " + cond
		} else {
			where += " AND " + cond
		}
	}

	if scope.ProjectID != "" {
		appendCond("project_id", scope.ProjectID)
	}
	if scope.OrganizationID != "" {
		appendCond("organization_id", scope.OrganizationID)
	}
	if scope.UserID != "" {
		appendCond("user_id", scope.UserID)
	}
	if opts != nil && opts.DocumentType != "" {
		appendCond("document_type", opts.DocumentType)
	}
	return where, args
}
