package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/okrhub/aichat-go/pkg/goal"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanGoal(row rowScanner) (*goal.Goal, error) {
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

func scanKeyResult(row rowScanner) (*goal.KeyResult, error) {
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

func listFilters(opts *goal.ListOptions) (string, []interface{}) {
	if opts == nil {
		return "", nil
	}

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

	if opts.UserID != "" {
		appendCond("user_id = ?", opts.UserID)
	}
	if opts.Status != "" {
		appendCond("status = ?", string(opts.Status))
	}
	return where, args
}

func requireAffected(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, goal.ErrNotFound)
	}
	return nil
}
