package goal_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okrhub/aichat-go/pkg/goal"
)

// memStore is an in-memory goal.Store for engine tests.
type memStore struct {
	mu         sync.Mutex
	goals      map[int64]*goal.Goal
	keyResults map[int64]*goal.KeyResult
}

func newMemStore() *memStore {
	return &memStore{
		goals:      make(map[int64]*goal.Goal),
		keyResults: make(map[int64]*goal.KeyResult),
	}
}

func (s *memStore) InsertGoal(_ context.Context, g *goal.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *g
	copied.KeyResults = nil
	s.goals[g.ID] = &copied
	return nil
}

func (s *memStore) GetGoal(_ context.Context, id int64) (*goal.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return nil, goal.ErrNotFound
	}
	copied := *g
	for _, kr := range s.keyResults {
		if kr.GoalID == id {
			krCopy := *kr
			copied.KeyResults = append(copied.KeyResults, &krCopy)
		}
	}
	return &copied, nil
}

func (s *memStore) ListGoals(ctx context.Context, opts *goal.ListOptions) ([]*goal.Goal, error) {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.goals))
	for id, g := range s.goals {
		if opts.UserID != "" && g.UserID != opts.UserID {
			continue
		}
		if opts.Status != "" && g.Status != opts.Status {
			continue
		}
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var out []*goal.Goal
	for _, id := range ids {
		g, err := s.GetGoal(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

func (s *memStore) UpdateGoal(_ context.Context, g *goal.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[g.ID]; !ok {
		return goal.ErrNotFound
	}
	copied := *g
	copied.KeyResults = nil
	s.goals[g.ID] = &copied
	return nil
}

func (s *memStore) DeleteGoal(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.goals, id)
	return nil
}

func (s *memStore) InsertKeyResult(_ context.Context, kr *goal.KeyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *kr
	s.keyResults[kr.ID] = &copied
	return nil
}

func (s *memStore) GetKeyResult(_ context.Context, id int64) (*goal.KeyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kr, ok := s.keyResults[id]
	if !ok {
		return nil, goal.ErrNotFound
	}
	copied := *kr
	return &copied, nil
}

func (s *memStore) ListKeyResults(_ context.Context, goalID int64) ([]*goal.KeyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*goal.KeyResult
	for _, kr := range s.keyResults {
		if kr.GoalID == goalID {
			copied := *kr
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *memStore) UpdateKeyResult(_ context.Context, kr *goal.KeyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keyResults[kr.ID]; !ok {
		return goal.ErrNotFound
	}
	copied := *kr
	s.keyResults[kr.ID] = &copied
	return nil
}

func (s *memStore) DeleteKeyResult(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keyResults, id)
	return nil
}

func (s *memStore) Close() error { return nil }

func newTestEngine(t *testing.T) (*goal.Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	engine, err := goal.NewEngine(store)
	require.NoError(t, err)
	return engine, store
}

func TestCreateGoal(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	g, err := engine.CreateGoal(ctx, "user_001", "通过面试", "", []goal.KeyResultInput{
		{Title: "刷算法题", TargetValue: 100, Unit: "道"},
		{Title: "阅读系统设计资料", TargetValue: 5, Unit: "章"},
	})
	require.NoError(t, err)

	assert.NotZero(t, g.ID)
	assert.Equal(t, goal.StatusActive, g.Status)
	require.Len(t, g.KeyResults, 2)
	assert.Equal(t, g.ID, g.KeyResults[0].GoalID)
}

func TestCreateGoalValidation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreateGoal(ctx, "user_001", "", "", nil)
	assert.ErrorIs(t, err, goal.ErrValidation)

	_, err = engine.CreateGoal(ctx, "", "title", "", nil)
	assert.ErrorIs(t, err, goal.ErrValidation)
}

func TestUpdateKeyResultProgressCompletes(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	g, err := engine.CreateGoal(ctx, "user_001", "Goal", "", []goal.KeyResultInput{
		{Title: "KR", TargetValue: 10, Unit: "道"},
	})
	require.NoError(t, err)

	kr, err := engine.UpdateKeyResultProgress(ctx, g.KeyResults[0].ID, 10)
	require.NoError(t, err)

	assert.Equal(t, 100, kr.ProgressPercentage)
	assert.Equal(t, goal.StatusCompleted, kr.Status)
}

func TestUpdateKeyResultProgressClampsNegative(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	g, err := engine.CreateGoal(ctx, "user_001", "Goal", "", []goal.KeyResultInput{
		{Title: "KR", TargetValue: 10},
	})
	require.NoError(t, err)

	kr, err := engine.UpdateKeyResultProgress(ctx, g.KeyResults[0].ID, -5)
	require.NoError(t, err)

	assert.Equal(t, 0.0, kr.CurrentValue)
	assert.Equal(t, 0, kr.ProgressPercentage)
	assert.Equal(t, goal.StatusActive, kr.Status)
}

func TestUpdateKeyResultProgressWithoutTarget(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	g, err := engine.CreateGoal(ctx, "user_001", "Goal", "", []goal.KeyResultInput{
		{Title: "KR"},
	})
	require.NoError(t, err)

	kr, err := engine.UpdateKeyResultProgress(ctx, g.KeyResults[0].ID, 42)
	require.NoError(t, err)

	assert.Equal(t, 0, kr.ProgressPercentage, "no target means no derivable progress")
}

func TestUpdateKeyResultProgressOvershootCaps(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	g, err := engine.CreateGoal(ctx, "user_001", "Goal", "", []goal.KeyResultInput{
		{Title: "KR", TargetValue: 10},
	})
	require.NoError(t, err)

	kr, err := engine.UpdateKeyResultProgress(ctx, g.KeyResults[0].ID, 25)
	require.NoError(t, err)

	assert.Equal(t, 100, kr.ProgressPercentage)
}

func TestUpdateKeyResultProgressNotFound(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.UpdateKeyResultProgress(context.Background(), 12345, 1)
	assert.ErrorIs(t, err, goal.ErrNotFound)
}

func TestRecomputeGoalProgressMean(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	g, err := engine.CreateGoal(ctx, "user_001", "Goal", "", []goal.KeyResultInput{
		{Title: "KR1", TargetValue: 10},
		{Title: "KR2", TargetValue: 10},
	})
	require.NoError(t, err)

	_, err = engine.UpdateKeyResultProgress(ctx, g.KeyResults[0].ID, 10) // 100%
	require.NoError(t, err)
	_, err = engine.UpdateKeyResultProgress(ctx, g.KeyResults[1].ID, 5) // 50%
	require.NoError(t, err)

	recomputed, err := engine.RecomputeGoalProgress(ctx, g.ID)
	require.NoError(t, err)

	assert.Equal(t, 75, recomputed.ProgressPercentage)
	assert.Equal(t, goal.StatusActive, recomputed.Status)
}

func TestRecomputeGoalProgressNoKeyResults(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	g, err := engine.CreateGoal(ctx, "user_001", "Goal", "", nil)
	require.NoError(t, err)

	recomputed, err := engine.RecomputeGoalProgress(ctx, g.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, recomputed.ProgressPercentage)
}

func TestApplyFreeTextUpdateNoActiveGoals(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, err := engine.ApplyFreeTextUpdate(context.Background(), "user_001", "完成了3道题", 3, false)
	assert.ErrorIs(t, err, goal.ErrNotFound)
}

func TestApplyFreeTextUpdateMatches(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreateGoal(ctx, "user_001", "通过面试", "", []goal.KeyResultInput{
		{Title: "完成算法题练习", Description: "每周刷题", TargetValue: 100, Unit: "道"},
	})
	require.NoError(t, err)

	outcome, err := engine.ApplyFreeTextUpdate(ctx, "user_001", "我完成了30道算法题", 30, false)
	require.NoError(t, err)

	require.True(t, outcome.Matched)
	assert.Equal(t, 30.0, outcome.KeyResult.CurrentValue)
	assert.Equal(t, 30, outcome.KeyResult.ProgressPercentage)
	require.NotNil(t, outcome.Goal)
	assert.Equal(t, 30, outcome.Goal.ProgressPercentage)
}

func TestApplyFreeTextUpdatePercentage(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.CreateGoal(ctx, "user_001", "读书计划", "", []goal.KeyResultInput{
		{Title: "阅读专业书籍", TargetValue: 20, Unit: "本"},
	})
	require.NoError(t, err)

	outcome, err := engine.ApplyFreeTextUpdate(ctx, "user_001", "阅读书籍进度到了50%", 50, true)
	require.NoError(t, err)

	require.True(t, outcome.Matched)
	assert.Equal(t, 10.0, outcome.KeyResult.CurrentValue)
	assert.Equal(t, 50, outcome.KeyResult.ProgressPercentage)
}

func TestApplyFreeTextUpdateLowConfidence(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	g, err := engine.CreateGoal(ctx, "user_001", "读书计划", "", []goal.KeyResultInput{
		{Title: "阅读专业书籍", TargetValue: 20, Unit: "本"},
	})
	require.NoError(t, err)

	outcome, err := engine.ApplyFreeTextUpdate(ctx, "user_001", "我做了3次晨跑", 3, false)
	assert.ErrorIs(t, err, goal.ErrLowConfidence)

	require.NotNil(t, outcome)
	assert.False(t, outcome.Matched)
	assert.Equal(t, []string{"阅读专业书籍"}, outcome.Candidates)

	// Nothing was mutated.
	stored, err := store.GetGoal(ctx, g.ID)
	require.NoError(t, err)
	require.Len(t, stored.KeyResults, 1)
	assert.Equal(t, 0.0, stored.KeyResults[0].CurrentValue)
}

func TestDeleteGoalRemovesKeyResults(t *testing.T) {
	engine, store := newTestEngine(t)
	ctx := context.Background()

	g, err := engine.CreateGoal(ctx, "user_001", "Goal", "", []goal.KeyResultInput{
		{Title: "KR", TargetValue: 1},
	})
	require.NoError(t, err)

	require.NoError(t, engine.DeleteGoal(ctx, g.ID))

	_, err = store.GetGoal(ctx, g.ID)
	assert.ErrorIs(t, err, goal.ErrNotFound)
	_, err = store.GetKeyResult(ctx, g.KeyResults[0].ID)
	assert.ErrorIs(t, err, goal.ErrNotFound)
}
