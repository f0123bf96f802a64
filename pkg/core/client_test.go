package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okrhub/aichat-go/pkg/cache"
	"github.com/okrhub/aichat-go/pkg/goal"
	"github.com/okrhub/aichat-go/pkg/intent"
	"github.com/okrhub/aichat-go/pkg/knowledge"
	"github.com/okrhub/aichat-go/pkg/provider"
)

// fakeProvider records dispatches and replies from a script.
type fakeProvider struct {
	name        string
	reply       string
	err         error
	dispatched  int
	lastRequest *provider.Request
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Dispatch(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	f.dispatched++
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Response{Content: f.reply, TokensUsed: 7}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) error { return nil }
func (f *fakeProvider) Close() error                          { return nil }

// fakeGoalStore is a minimal in-memory goal.Store.
type fakeGoalStore struct {
	mu         sync.Mutex
	goals      map[int64]*goal.Goal
	keyResults map[int64]*goal.KeyResult
}

func newFakeGoalStore() *fakeGoalStore {
	return &fakeGoalStore{
		goals:      make(map[int64]*goal.Goal),
		keyResults: make(map[int64]*goal.KeyResult),
	}
}

func (s *fakeGoalStore) InsertGoal(_ context.Context, g *goal.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *g
	copied.KeyResults = nil
	s.goals[g.ID] = &copied
	return nil
}

func (s *fakeGoalStore) GetGoal(_ context.Context, id int64) (*goal.Goal, error) {
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

func (s *fakeGoalStore) ListGoals(ctx context.Context, opts *goal.ListOptions) ([]*goal.Goal, error) {
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

func (s *fakeGoalStore) UpdateGoal(_ context.Context, g *goal.Goal) error {
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

func (s *fakeGoalStore) DeleteGoal(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.goals, id)
	return nil
}

func (s *fakeGoalStore) InsertKeyResult(_ context.Context, kr *goal.KeyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *kr
	s.keyResults[kr.ID] = &copied
	return nil
}

func (s *fakeGoalStore) GetKeyResult(_ context.Context, id int64) (*goal.KeyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kr, ok := s.keyResults[id]
	if !ok {
		return nil, goal.ErrNotFound
	}
	copied := *kr
	return &copied, nil
}

func (s *fakeGoalStore) ListKeyResults(_ context.Context, goalID int64) ([]*goal.KeyResult, error) {
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

func (s *fakeGoalStore) UpdateKeyResult(_ context.Context, kr *goal.KeyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keyResults[kr.ID]; !ok {
		return goal.ErrNotFound
	}
	copied := *kr
	s.keyResults[kr.ID] = &copied
	return nil
}

func (s *fakeGoalStore) DeleteKeyResult(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keyResults, id)
	return nil
}

func (s *fakeGoalStore) Close() error { return nil }

// fakeText is a canned knowledge.TextSearcher.
type fakeText struct {
	results []*knowledge.Result
}

func (f *fakeText) SearchText(ctx context.Context, query string, scope knowledge.Scope, opts *knowledge.Options) ([]*knowledge.Result, error) {
	return f.results, nil
}

func (f *fakeText) Close() error { return nil }

func newTestClient(t *testing.T, p *fakeProvider, text knowledge.TextSearcher) *Client {
	t.Helper()

	router := provider.NewRouter(0)
	router.Register(p)

	engine, err := goal.NewEngine(newFakeGoalStore())
	require.NoError(t, err)

	var chain *knowledge.Chain
	if text != nil {
		chain, err = knowledge.NewChain(nil, nil, text)
		require.NoError(t, err)
	}

	c := &Client{
		config:          &Config{},
		cache:           cache.New(time.Minute),
		classifier:      intent.NewClassifier(),
		chain:           chain,
		engine:          engine,
		router:          router,
		defaultProvider: p.name,
		log:             logrus.WithField("component", "chat-client"),
	}
	t.Cleanup(func() { c.cache.Stop() })
	return c
}

func TestChatRejectsEmptyMessage(t *testing.T) {
	client := newTestClient(t, &fakeProvider{name: "fake", reply: "hi"}, nil)

	_, err := client.Chat(context.Background(), &AIRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = client.Chat(context.Background(), nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChatCachesNonGoalReplies(t *testing.T) {
	p := &fakeProvider{name: "fake", reply: "the weather is fine"}
	client := newTestClient(t, p, nil)

	req := &AIRequest{Message: "what's the weather like", SessionType: SessionGeneral}

	first, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.False(t, first.Cached)

	second, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "the weather is fine", second.Content)
	assert.Equal(t, 1, p.dispatched)
}

func TestChatGoalRelatedSkipsCache(t *testing.T) {
	p := &fakeProvider{name: "fake", reply: "noted"}
	client := newTestClient(t, p, nil)

	req := &AIRequest{Message: "查看我的目标进度", UserID: "user-1"}

	_, err := client.Chat(context.Background(), req)
	require.NoError(t, err)
	result, err := client.Chat(context.Background(), req)
	require.NoError(t, err)

	assert.False(t, result.Cached)
	assert.Equal(t, 2, p.dispatched)
	assert.Equal(t, 0, client.CacheStats().TotalEntries)
}

func TestChatWithoutCacheOption(t *testing.T) {
	p := &fakeProvider{name: "fake", reply: "plain"}
	client := newTestClient(t, p, nil)

	req := &AIRequest{Message: "hello there"}
	_, err := client.Chat(context.Background(), req, WithoutCache())
	require.NoError(t, err)
	_, err = client.Chat(context.Background(), req, WithoutCache())
	require.NoError(t, err)

	assert.Equal(t, 2, p.dispatched)
}

func TestChatDegradesOnProviderFailure(t *testing.T) {
	p := &fakeProvider{name: "fake", err: fmt.Errorf("boom: %w", provider.ErrUpstream)}
	client := newTestClient(t, p, nil)

	result, err := client.Chat(context.Background(), &AIRequest{Message: "hello"})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, DegradedServiceMessage, result.Content)
	assert.Equal(t, "upstream", result.Error)
}

func TestChatDegradedRepliesAreNotCached(t *testing.T) {
	p := &fakeProvider{name: "fake", err: fmt.Errorf("down: %w", provider.ErrTransport)}
	client := newTestClient(t, p, nil)

	req := &AIRequest{Message: "hello"}
	_, err := client.Chat(context.Background(), req)
	require.NoError(t, err)

	p.err = nil
	p.reply = "recovered"
	result, err := client.Chat(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.False(t, result.Cached)
	assert.Equal(t, "recovered", result.Content)
}

func TestChatUnknownProviderIsAnError(t *testing.T) {
	client := newTestClient(t, &fakeProvider{name: "fake", reply: "hi"}, nil)

	_, err := client.Chat(context.Background(), &AIRequest{Message: "hello"}, WithProvider("ghost"))
	assert.ErrorIs(t, err, provider.ErrUnknownProvider)
}

func TestChatCreateGoal(t *testing.T) {
	p := &fakeProvider{name: "fake", reply: "goal created, good luck"}
	client := newTestClient(t, p, nil)

	result, err := client.Chat(context.Background(), &AIRequest{
		Message:     "我的目标是三个月内学会Go，每周写5篇笔记",
		SessionType: SessionGoalPlanning,
		UserID:      "user-1",
	})
	require.NoError(t, err)

	require.NotNil(t, result.GoalResult)
	assert.Equal(t, GoalActionCreate, result.GoalResult.Action)
	assert.True(t, result.GoalResult.Success)
	require.NotNil(t, result.GoalResult.Goal)
	assert.NotEmpty(t, result.GoalResult.Goal.KeyResults)

	goals, err := client.Goals().ListGoals(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, goals, 1)
}

func TestChatCreateGoalRequiresUserID(t *testing.T) {
	client := newTestClient(t, &fakeProvider{name: "fake", reply: "ok"}, nil)

	result, err := client.Chat(context.Background(), &AIRequest{
		Message: "我的目标是学会Go",
	})
	require.NoError(t, err)

	require.NotNil(t, result.GoalResult)
	assert.False(t, result.GoalResult.Success)
	assert.Contains(t, result.GoalResult.MissingFields, "user_id")
}

func TestChatUpdateWithoutGoals(t *testing.T) {
	client := newTestClient(t, &fakeProvider{name: "fake", reply: "ok"}, nil)

	result, err := client.Chat(context.Background(), &AIRequest{
		Message: "我完成了3道算法题",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	require.NotNil(t, result.GoalResult)
	assert.Equal(t, GoalActionUpdate, result.GoalResult.Action)
	assert.False(t, result.GoalResult.Success)
	assert.Equal(t, "no active goals to update", result.GoalResult.Message)
}

func TestChatUpdateMatchesKeyResult(t *testing.T) {
	client := newTestClient(t, &fakeProvider{name: "fake", reply: "progress noted"}, nil)

	_, err := client.Goals().CreateGoal(context.Background(), "user-1", "学会Go", "", []goal.KeyResultInput{
		{Title: "完成算法题", TargetValue: 10, Unit: "道"},
	})
	require.NoError(t, err)

	result, err := client.Chat(context.Background(), &AIRequest{
		Message: "我完成了5道算法题",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	require.NotNil(t, result.GoalResult)
	assert.True(t, result.GoalResult.Success)
	require.NotNil(t, result.GoalResult.KeyResult)
	assert.Equal(t, 50, result.GoalResult.KeyResult.ProgressPercentage)
}

func TestChatUpdateLowConfidenceReturnsCandidates(t *testing.T) {
	client := newTestClient(t, &fakeProvider{name: "fake", reply: "which one?"}, nil)

	_, err := client.Goals().CreateGoal(context.Background(), "user-1", "读书计划", "", []goal.KeyResultInput{
		{Title: "阅读专业书籍", TargetValue: 20, Unit: "本"},
	})
	require.NoError(t, err)

	result, err := client.Chat(context.Background(), &AIRequest{
		Message: "我完成了3次晨跑",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	require.NotNil(t, result.GoalResult)
	assert.Equal(t, GoalActionUpdate, result.GoalResult.Action)
	assert.False(t, result.GoalResult.Success)
	assert.Equal(t, []string{"阅读专业书籍"}, result.GoalResult.Candidates)
}

func TestChatQueryListsGoals(t *testing.T) {
	client := newTestClient(t, &fakeProvider{name: "fake", reply: "here are your goals"}, nil)

	_, err := client.Goals().CreateGoal(context.Background(), "user-1", "学会Go", "", nil)
	require.NoError(t, err)

	result, err := client.Chat(context.Background(), &AIRequest{
		Message: "查询我的目标状态",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	require.NotNil(t, result.GoalResult)
	assert.Equal(t, GoalActionQuery, result.GoalResult.Action)
	assert.True(t, result.GoalResult.Success)
	assert.Len(t, result.GoalResult.Goals, 1)
}

func TestChatKnowledgeEnrichesSystemContext(t *testing.T) {
	p := &fakeProvider{name: "fake", reply: "informed answer"}
	text := &fakeText{results: []*knowledge.Result{
		{Title: "Go 并发", Content: "goroutine 与 channel 基础"},
	}}
	client := newTestClient(t, p, text)

	_, err := client.Chat(context.Background(), &AIRequest{Message: "怎么用 channel"})
	require.NoError(t, err)

	require.NotNil(t, p.lastRequest)
	assert.Contains(t, p.lastRequest.SystemContext, "Go 并发")
	assert.Contains(t, p.lastRequest.SystemContext, "goroutine 与 channel 基础")
}

func TestChatWithoutKnowledgeOption(t *testing.T) {
	p := &fakeProvider{name: "fake", reply: "plain answer"}
	text := &fakeText{results: []*knowledge.Result{{Title: "Doc", Content: "body"}}}
	client := newTestClient(t, p, text)

	_, err := client.Chat(context.Background(), &AIRequest{Message: "hello"}, WithoutKnowledge())
	require.NoError(t, err)

	require.NotNil(t, p.lastRequest)
	assert.Empty(t, p.lastRequest.SystemContext)
}

func TestChatGoalRelatedDegradedStillCarriesGoalResult(t *testing.T) {
	p := &fakeProvider{name: "fake", err: fmt.Errorf("later: %w", provider.ErrTimeout)}
	client := newTestClient(t, p, nil)

	result, err := client.Chat(context.Background(), &AIRequest{
		Message: "我的目标是学会Go",
		UserID:  "user-1",
	})
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "timeout", result.Error)
	require.NotNil(t, result.GoalResult)
	assert.True(t, result.GoalResult.Success)
}
