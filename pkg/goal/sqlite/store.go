// Package sqlite provides the SQLite implementation of the goal store.
//
// SQLite is a lightweight, file-based database suitable for local
// development and single-instance deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/okrhub/aichat-go/pkg/goal"
)

// Store implements goal.Store using SQLite as the backend.
type Store struct {
	db *sql.DB
}

// Config contains configuration for creating a SQLite goal store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
}

// NewStore creates a new SQLite goal store.
//
// Parameters:
//   - cfg: Configuration containing the database path
//
// Returns:
//   - *Store: The SQLite store instance
//   - error: Error if database connection or table creation fails
func NewStore(cfg *Config) (*Store, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteGoalStore: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteGoalStore: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteGoalStore: %w", err)
	}

	store := &Store{db: db}
	if err := store.initTables(context.Background()); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *Store) initTables(ctx context.Context) error {
	goalTable := `
		CREATE TABLE IF NOT EXISTS goals (
			id INTEGER PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			progress_percentage INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, goalTable); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	krTable := `
		CREATE TABLE IF NOT EXISTS key_results (
			id INTEGER PRIMARY KEY,
			goal_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			target_value REAL,
			current_value REAL NOT NULL DEFAULT 0,
			unit TEXT,
			progress_percentage INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := s.db.ExecContext(ctx, krTable); err != nil {
		return fmt.Errorf("initTables: %w", err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_goals_user ON goals(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_key_results_goal ON key_results(goal_id)`,
	}
	for _, q := range indexes {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}
	return nil
}

// InsertGoal inserts a goal row.
func (s *Store) InsertGoal(ctx context.Context, g *goal.Goal) error {
	query := `
		INSERT INTO goals
		(id, user_id, title, description, progress_percentage, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		g.ID, g.UserID, g.Title, g.Description, g.ProgressPercentage, string(g.Status),
		g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("InsertGoal: %w", err)
	}
	return nil
}

// GetGoal returns a goal with its key results loaded.
func (s *Store) GetGoal(ctx context.Context, id int64) (*goal.Goal, error) {
	query := `
		SELECT id, user_id, title, description, progress_percentage, status, created_at, updated_at
		FROM goals WHERE id = ?
	`
	g, err := scanGoal(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, err
	}

	keyResults, err := s.ListKeyResults(ctx, g.ID)
	if err != nil {
		return nil, err
	}
	g.KeyResults = keyResults
	return g, nil
}

// ListGoals returns goals matching the options, newest first, with key
// results loaded.
func (s *Store) ListGoals(ctx context.Context, opts *goal.ListOptions) ([]*goal.Goal, error) {
	query := `
		SELECT id, user_id, title, description, progress_percentage, status, created_at, updated_at
		FROM goals
	`
	where, args := listFilters(opts)
	query += where + ` ORDER BY created_at DESC`
	if opts != nil && opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListGoals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var goals []*goal.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListGoals: %w", err)
	}

	for _, g := range goals {
		keyResults, err := s.ListKeyResults(ctx, g.ID)
		if err != nil {
			return nil, err
		}
		g.KeyResults = keyResults
	}
	return goals, nil
}

// UpdateGoal writes the goal's mutable columns.
func (s *Store) UpdateGoal(ctx context.Context, g *goal.Goal) error {
	query := `
		UPDATE goals
		SET title = ?, description = ?, progress_percentage = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		g.Title, g.Description, g.ProgressPercentage, string(g.Status), g.UpdatedAt, g.ID)
	if err != nil {
		return fmt.Errorf("UpdateGoal: %w", err)
	}
	return requireAffected(result, "UpdateGoal")
}

// DeleteGoal removes a goal row by id.
func (s *Store) DeleteGoal(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteGoal: %w", err)
	}
	return nil
}

// InsertKeyResult inserts a key result row.
func (s *Store) InsertKeyResult(ctx context.Context, kr *goal.KeyResult) error {
	query := `
		INSERT INTO key_results
		(id, goal_id, title, description, target_value, current_value, unit,
		 progress_percentage, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		kr.ID, kr.GoalID, kr.Title, kr.Description, kr.TargetValue, kr.CurrentValue,
		kr.Unit, kr.ProgressPercentage, string(kr.Status), kr.CreatedAt, kr.UpdatedAt)
	if err != nil {
		return fmt.Errorf("InsertKeyResult: %w", err)
	}
	return nil
}

// GetKeyResult returns a key result by id.
func (s *Store) GetKeyResult(ctx context.Context, id int64) (*goal.KeyResult, error) {
	query := `
		SELECT id, goal_id, title, description, target_value, current_value, unit,
		       progress_percentage, status, created_at, updated_at
		FROM key_results WHERE id = ?
	`
	return scanKeyResult(s.db.QueryRowContext(ctx, query, id))
}

// ListKeyResults returns the key results owned by a goal.
func (s *Store) ListKeyResults(ctx context.Context, goalID int64) ([]*goal.KeyResult, error) {
	query := `
		SELECT id, goal_id, title, description, target_value, current_value, unit,
		       progress_percentage, status, created_at, updated_at
		FROM key_results WHERE goal_id = ? ORDER BY created_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, goalID)
	if err != nil {
		return nil, fmt.Errorf("ListKeyResults: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var keyResults []*goal.KeyResult
	for rows.Next() {
		kr, err := scanKeyResult(rows)
		if err != nil {
			return nil, err
		}
		keyResults = append(keyResults, kr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListKeyResults: %w", err)
	}
	return keyResults, nil
}

// UpdateKeyResult writes the key result's mutable columns.
func (s *Store) UpdateKeyResult(ctx context.Context, kr *goal.KeyResult) error {
	query := `
		UPDATE key_results
		SET title = ?, description = ?, target_value = ?, current_value = ?, unit = ?,
		    progress_percentage = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		kr.Title, kr.Description, kr.TargetValue, kr.CurrentValue, kr.Unit,
		kr.ProgressPercentage, string(kr.Status), kr.UpdatedAt, kr.ID)
	if err != nil {
		return fmt.Errorf("UpdateKeyResult: %w", err)
	}
	return requireAffected(result, "UpdateKeyResult")
}

// DeleteKeyResult removes a key result row by id.
func (s *Store) DeleteKeyResult(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM key_results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteKeyResult: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
