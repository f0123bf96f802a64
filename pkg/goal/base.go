// Package goal maintains the goal and key-result progress model.
//
// It defines the Store interface implemented by the relational backends
// (see the sqlite and mysql subpackages) and the Engine that performs
// progress math, goal recomputation, and fuzzy matching of free text to a
// key result.
package goal

import (
	"context"
	"errors"
	"time"
)

// Status values for goals and key results. Transitions beyond
// active/completed (at-risk, blocked) require an external signal and are
// not derived here.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Predefined errors for goal operations.
var (
	// ErrNotFound indicates that no goal or key result matched the request.
	ErrNotFound = errors.New("goal not found")

	// ErrLowConfidence indicates that free-text matching found no key
	// result at or above the confidence threshold.
	ErrLowConfidence = errors.New("no confident key result match")

	// ErrValidation indicates that a required field is missing or invalid.
	ErrValidation = errors.New("invalid goal input")
)

// Goal is a user-defined objective tracked through key results.
//
// ProgressPercentage and Status are always derived from the child key
// results; they are recomputed whenever a child changes and never written
// directly.
type Goal struct {
	// ID is the unique identifier of the goal.
	ID int64 `json:"id"`

	// UserID identifies the owning user.
	UserID string `json:"user_id"`

	// Title is the goal title.
	Title string `json:"title"`

	// Description is an optional longer description.
	Description string `json:"description,omitempty"`

	// ProgressPercentage is the derived progress in [0,100].
	ProgressPercentage int `json:"progress_percentage"`

	// Status is active or completed, derived from progress.
	Status Status `json:"status"`

	// KeyResults are the measurable targets owned by this goal. The goal
	// exclusively owns its key results for lifecycle purposes.
	KeyResults []*KeyResult `json:"key_results,omitempty"`

	// CreatedAt is when the goal was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the goal was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// KeyResult is a quantifiable measure of progress toward a goal.
type KeyResult struct {
	// ID is the unique identifier of the key result.
	ID int64 `json:"id"`

	// GoalID identifies the owning goal.
	GoalID int64 `json:"goal_id"`

	// Title is the key result title.
	Title string `json:"title"`

	// Description is an optional longer description.
	Description string `json:"description,omitempty"`

	// TargetValue is the target to reach. Zero or negative means no
	// numeric target is set.
	TargetValue float64 `json:"target_value,omitempty"`

	// CurrentValue is the current progress value, never negative.
	CurrentValue float64 `json:"current_value"`

	// Unit is the unit word for the values (e.g. "道", "pages", "%").
	Unit string `json:"unit,omitempty"`

	// ProgressPercentage is the derived progress in [0,100].
	ProgressPercentage int `json:"progress_percentage"`

	// Status is active or completed, derived from progress.
	Status Status `json:"status"`

	// CreatedAt is when the key result was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the key result was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// ListOptions filters goal listings.
type ListOptions struct {
	// UserID filters goals to a specific owner.
	UserID string

	// Status filters goals by status (empty for all).
	Status Status

	// Limit caps the number of goals returned (0 for no cap).
	Limit int
}

// Store defines the row-level persistence interface for goals and key
// results.
//
// Implementations issue plain per-row statements; no multi-statement
// transaction is required. Deletion is explicit and never cascaded here —
// cascading, if any, belongs to the backing database.
type Store interface {
	// InsertGoal inserts a goal row. Child key results are inserted
	// separately via InsertKeyResult.
	InsertGoal(ctx context.Context, g *Goal) error

	// GetGoal returns a goal with its key results loaded, or ErrNotFound.
	GetGoal(ctx context.Context, id int64) (*Goal, error)

	// ListGoals returns goals matching the options, key results loaded,
	// newest first.
	ListGoals(ctx context.Context, opts *ListOptions) ([]*Goal, error)

	// UpdateGoal writes the goal's mutable columns (title, description,
	// derived progress and status).
	UpdateGoal(ctx context.Context, g *Goal) error

	// DeleteGoal removes a goal row by id.
	DeleteGoal(ctx context.Context, id int64) error

	// InsertKeyResult inserts a key result row.
	InsertKeyResult(ctx context.Context, kr *KeyResult) error

	// GetKeyResult returns a key result by id, or ErrNotFound.
	GetKeyResult(ctx context.Context, id int64) (*KeyResult, error)

	// ListKeyResults returns the key results owned by a goal.
	ListKeyResults(ctx context.Context, goalID int64) ([]*KeyResult, error)

	// UpdateKeyResult writes the key result's mutable columns.
	UpdateKeyResult(ctx context.Context, kr *KeyResult) error

	// DeleteKeyResult removes a key result row by id.
	DeleteKeyResult(ctx context.Context, id int64) error

	// Close closes the store and releases resources.
	Close() error
}
