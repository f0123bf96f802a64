// Package mysql provides the MySQL implementation of the goal store.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/okrhub/aichat-go/pkg/goal"
)

// Store implements goal.Store using MySQL as the backend.
type Store struct {
	db *sql.DB
}

// Config contains configuration for creating a MySQL goal store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
}

// NewStore creates a new MySQL goal store and initializes its tables.
func NewStore(cfg *Config) (*Store, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("NewMySQLGoalStore: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewMySQLGoalStore: %w", err)
	}

	store := &Store{db: db}
	if err := store.initTables(context.Background()); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) initTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS goals (
			id BIGINT PRIMARY KEY,
			user_id VARCHAR(64) NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			progress_percentage INT NOT NULL DEFAULT 0,
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_goals_user (user_id)
		) CHARACTER SET utf8mb4`,
		`CREATE TABLE IF NOT EXISTS key_results (
			id BIGINT PRIMARY KEY,
			goal_id BIGINT NOT NULL,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			target_value DOUBLE,
			current_value DOUBLE NOT NULL DEFAULT 0,
			unit VARCHAR(32),
			progress_percentage INT NOT NULL DEFAULT 0,
			status VARCHAR(16) NOT NULL DEFAULT 'active',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			INDEX idx_key_results_goal (goal_id)
		) CHARACTER SET utf8mb4`,
	}
	for _, q := range statements {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}
	return nil
}

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

func (s *Store) ListGoals(ctx context.Context, opts *goal.ListOptions) ([]*goal.Goal, error) {
	query := `
		SELECT id, user_id, title, description, progress_percentage, status, created_at, updated_at
		FROM goals
	`
	var args []interface{}
	where := ""
	if opts != nil && opts.UserID != "" {
		where = " WHERE user_id = ?"
		args = append(args, opts.UserID)
	}
	if opts != nil && opts.Status != "" {
		if where == "" {
			where = " WHERE status = ?"
		} else {
			where += " AND status = ?"
		}
		args = append(args, string(opts.Status))
	}
	query += where + " ORDER BY created_at DESC"
	if opts != nil && opts.Limit > 0 {
		query += " LIMIT ?"
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

func (s *Store) UpdateGoal(ctx context.Context, g *goal.Goal) error {
	query := `
		UPDATE goals
		SET title = ?, description = ?, progress_percentage = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := s.db.ExecContext(ctx, query,
		g.Title, g.Description, g.ProgressPercentage, string(g.Status), g.UpdatedAt, g.ID)
	if err != nil {
		return fmt.Errorf("UpdateGoal: %w", err)
	}
	return nil
}

func (s *Store) DeleteGoal(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id); err != nil {
		return fmt.Errorf("DeleteGoal: %w", err)
	}
	return nil
}

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

func (s *Store) GetKeyResult(ctx context.Context, id int64) (*goal.KeyResult, error) {
	query := `
		SELECT id, goal_id, title, description, target_value, current_value, unit,
		       progress_percentage, status, created_at, updated_at
		FROM key_results WHERE id = ?
	`
	return scanKeyResult(s.db.QueryRowContext(ctx, query, id))
}

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

func (s *Store) UpdateKeyResult(ctx context.Context, kr *goal.KeyResult) error {
	query := `
		UPDATE key_results
		SET title = ?, description = ?, target_value = ?, current_value = ?, unit = ?,
		    progress_percentage = ?, status = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := s.db.ExecContext(ctx, query,
		kr.Title, kr.Description, kr.TargetValue, kr.CurrentValue, kr.Unit,
		kr.ProgressPercentage, string(kr.Status), kr.UpdatedAt, kr.ID)
	if err != nil {
		return fmt.Errorf("UpdateKeyResult: %w", err)
	}
	return nil
}

func (s *Store) DeleteKeyResult(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM key_results WHERE id = ?`, id); err != nil {
		return fmt.Errorf("DeleteKeyResult: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanGoal(row interface{ Scan(...interface{}) error }) (*goal.Goal, error) {
	var g goal.Goal
	var description sql.NullString
	var status string
	var createdAt, updatedAt time.Time

	err := row.Scan(&g.ID, &g.UserID, &g.Title, &description, &g.ProgressPercentage,
		&status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanGoal: %w", err)
	}

	g.Description = description.String
	g.Status = goal.Status(status)
	g.CreatedAt = createdAt
	g.UpdatedAt = updatedAt
	return &g, nil
}

func scanKeyResult(row interface{ Scan(...interface{}) error }) (*goal.KeyResult, error) {
	var kr goal.KeyResult
	var description, unit sql.NullString
	var target sql.NullFloat64
	var status string
	var createdAt, updatedAt time.Time

	err := row.Scan(&kr.ID, &kr.GoalID, &kr.Title, &description, &target, &kr.CurrentValue,
		&unit, &kr.ProgressPercentage, &status, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, goal.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanKeyResult: %w", err)
	}

	kr.Description = description.String
	kr.TargetValue = target.Float64
	kr.Unit = unit.String
	kr.Status = goal.Status(status)
	kr.CreatedAt = createdAt
	kr.UpdatedAt = updatedAt
	return &kr, nil
}
