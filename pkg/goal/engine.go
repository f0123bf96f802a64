package goal

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sirupsen/logrus"
)

// Engine mutates and reads the goal model on top of a Store.
//
// All operations are deterministic given their inputs and safe to invoke
// concurrently for distinct key-result identifiers; concurrent updates to
// the same identifier resolve last-write-wins. Goal progress is recomputed
// after each key-result change, so it is eventually consistent with the
// mutation that triggered it.
type Engine struct {
	store Store
	node  *snowflake.Node
	log   *logrus.Entry
}

// KeyResultInput describes a key result to create alongside a goal.
type KeyResultInput struct {
	Title       string
	Description string
	TargetValue float64
	Unit        string
}

// UpdateOutcome is the result of applying a free-text progress update.
type UpdateOutcome struct {
	// Matched reports whether a key result was confidently matched and
	// updated.
	Matched bool

	// KeyResult is the updated key result (nil when Matched is false).
	KeyResult *KeyResult

	// Goal is the owning goal after recomputation (nil when Matched is
	// false).
	Goal *Goal

	// Candidates lists the candidate key-result titles for disambiguation
	// when no confident match was found.
	Candidates []string
}

// NewEngine creates a goal engine over the given store.
func NewEngine(store Store) (*Engine, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}
	return &Engine{
		store: store,
		node:  node,
		log:   logrus.WithField("component", "goal"),
	}, nil
}

// CreateGoal creates a goal with its key results.
//
// Parameters:
//   - ctx: Context for cancellation
//   - userID: Owning user (required)
//   - title: Goal title (required)
//   - description: Optional description
//   - keyResults: Key results to create with the goal
//
// Returns the created goal with key results attached, or ErrValidation when
// a required field is missing.
func (e *Engine) CreateGoal(ctx context.Context, userID, title, description string, keyResults []KeyResultInput) (*Goal, error) {
	if userID == "" {
		return nil, fmt.Errorf("CreateGoal: user id is required: %w", ErrValidation)
	}
	if title == "" {
		return nil, fmt.Errorf("CreateGoal: title is required: %w", ErrValidation)
	}

	now := time.Now()
	g := &Goal{
		ID:          e.node.Generate().Int64(),
		UserID:      userID,
		Title:       title,
		Description: description,
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.store.InsertGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("CreateGoal: %w", err)
	}

	for _, input := range keyResults {
		kr := &KeyResult{
			ID:          e.node.Generate().Int64(),
			GoalID:      g.ID,
			Title:       input.Title,
			Description: input.Description,
			TargetValue: input.TargetValue,
			Unit:        input.Unit,
			Status:      StatusActive,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.store.InsertKeyResult(ctx, kr); err != nil {
			return nil, fmt.Errorf("CreateGoal: %w", err)
		}
		g.KeyResults = append(g.KeyResults, kr)
	}

	return g, nil
}

// UpdateKeyResultProgress sets a key result's current value and recomputes
// its progress, then recomputes the owning goal.
//
// The new value is clamped to zero or above. Progress is
// round(clamp(newValue/targetValue*100, 0, 100)), or 0 when no positive
// target is set. The key result completes at 100%.
//
// Returns the updated key result, or ErrNotFound when the id is unknown.
func (e *Engine) UpdateKeyResultProgress(ctx context.Context, keyResultID int64, newValue float64) (*KeyResult, error) {
	kr, err := e.store.GetKeyResult(ctx, keyResultID)
	if err != nil {
		return nil, fmt.Errorf("UpdateKeyResultProgress: %w", err)
	}

	if newValue < 0 {
		newValue = 0
	}
	kr.CurrentValue = newValue
	kr.ProgressPercentage = progressPercent(newValue, kr.TargetValue)
	kr.Status = statusFor(kr.ProgressPercentage)
	kr.UpdatedAt = time.Now()

	if err := e.store.UpdateKeyResult(ctx, kr); err != nil {
		return nil, fmt.Errorf("UpdateKeyResultProgress: %w", err)
	}

	if _, err := e.RecomputeGoalProgress(ctx, kr.GoalID); err != nil {
		// The row write succeeded; the derived goal progress catches up on
		// the next recomputation.
		e.log.WithError(err).WithField("goal_id", kr.GoalID).Warn("goal recomputation failed")
	}

	return kr, nil
}

// RecomputeGoalProgress re-derives a goal's progress and status from its key
// results.
//
// Progress is the rounded mean of the key results' progress percentages, 0
// when the goal has none. The goal completes at 100%.
func (e *Engine) RecomputeGoalProgress(ctx context.Context, goalID int64) (*Goal, error) {
	g, err := e.store.GetGoal(ctx, goalID)
	if err != nil {
		return nil, fmt.Errorf("RecomputeGoalProgress: %w", err)
	}

	progress := 0
	if len(g.KeyResults) > 0 {
		sum := 0
		for _, kr := range g.KeyResults {
			sum += kr.ProgressPercentage
		}
		progress = int(math.Round(float64(sum) / float64(len(g.KeyResults))))
	}

	g.ProgressPercentage = progress
	g.Status = statusFor(progress)
	g.UpdatedAt = time.Now()

	if err := e.store.UpdateGoal(ctx, g); err != nil {
		return nil, fmt.Errorf("RecomputeGoalProgress: %w", err)
	}
	return g, nil
}

// ApplyFreeTextUpdate matches a progress message against the user's active
// goals and, on a confident match, applies the reported value to the matched
// key result.
//
// A percentage value is converted to an absolute current value when the key
// result has a positive target; otherwise it is applied as-is.
//
// Returns ErrNotFound when the user has no active goals. When no key result
// scores at or above the match threshold nothing is mutated and the engine
// returns ErrLowConfidence together with an outcome carrying the candidate
// titles for disambiguation.
func (e *Engine) ApplyFreeTextUpdate(ctx context.Context, userID, message string, value float64, isPercentage bool) (*UpdateOutcome, error) {
	goals, err := e.store.ListGoals(ctx, &ListOptions{UserID: userID, Status: StatusActive})
	if err != nil {
		return nil, fmt.Errorf("ApplyFreeTextUpdate: %w", err)
	}
	if len(goals) == 0 {
		return nil, fmt.Errorf("ApplyFreeTextUpdate: no active goals for user %q: %w", userID, ErrNotFound)
	}

	match := MatchKeyResult(message, goals)
	if !match.Matched {
		outcome := &UpdateOutcome{Candidates: match.Candidates}
		return outcome, fmt.Errorf("ApplyFreeTextUpdate: best score below threshold: %w", ErrLowConfidence)
	}

	newValue := value
	if isPercentage && match.KeyResult.TargetValue > 0 {
		newValue = match.KeyResult.TargetValue * value / 100
	}

	kr, err := e.UpdateKeyResultProgress(ctx, match.KeyResult.ID, newValue)
	if err != nil {
		return nil, err
	}

	g, err := e.store.GetGoal(ctx, kr.GoalID)
	if err != nil {
		return nil, fmt.Errorf("ApplyFreeTextUpdate: %w", err)
	}

	return &UpdateOutcome{Matched: true, KeyResult: kr, Goal: g}, nil
}

// ListGoals returns the user's goals, newest first.
func (e *Engine) ListGoals(ctx context.Context, userID string) ([]*Goal, error) {
	goals, err := e.store.ListGoals(ctx, &ListOptions{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("ListGoals: %w", err)
	}
	return goals, nil
}

// DeleteGoal removes a goal and its key results.
//
// Key results are removed row by row before the goal itself; no cascade is
// assumed from the backing store.
func (e *Engine) DeleteGoal(ctx context.Context, goalID int64) error {
	keyResults, err := e.store.ListKeyResults(ctx, goalID)
	if err != nil {
		return fmt.Errorf("DeleteGoal: %w", err)
	}
	for _, kr := range keyResults {
		if err := e.store.DeleteKeyResult(ctx, kr.ID); err != nil {
			return fmt.Errorf("DeleteGoal: %w", err)
		}
	}
	if err := e.store.DeleteGoal(ctx, goalID); err != nil {
		return fmt.Errorf("DeleteGoal: %w", err)
	}
	return nil
}

// progressPercent computes round(clamp(value/target*100, 0, 100)), or 0 when
// no positive target is set.
func progressPercent(value, target float64) int {
	if target <= 0 {
		return 0
	}
	pct := value / target * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return int(math.Round(pct))
}

func statusFor(progress int) Status {
	if progress >= 100 {
		return StatusCompleted
	}
	return StatusActive
}
