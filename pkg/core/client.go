package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/okrhub/aichat-go/pkg/cache"
	"github.com/okrhub/aichat-go/pkg/embedder"
	openaiEmbedder "github.com/okrhub/aichat-go/pkg/embedder/openai"
	"github.com/okrhub/aichat-go/pkg/goal"
	goalMySQL "github.com/okrhub/aichat-go/pkg/goal/mysql"
	goalSQLite "github.com/okrhub/aichat-go/pkg/goal/sqlite"
	"github.com/okrhub/aichat-go/pkg/intent"
	"github.com/okrhub/aichat-go/pkg/knowledge"
	knowledgePostgres "github.com/okrhub/aichat-go/pkg/knowledge/postgres"
	knowledgeSQLite "github.com/okrhub/aichat-go/pkg/knowledge/sqlite"
	"github.com/okrhub/aichat-go/pkg/provider"
	chatProvider "github.com/okrhub/aichat-go/pkg/provider/chat"
	streamProvider "github.com/okrhub/aichat-go/pkg/provider/stream"
	workflowProvider "github.com/okrhub/aichat-go/pkg/provider/workflow"
)

// DegradedServiceMessage is the fixed user-safe reply substituted when the
// provider fails. Returning it with Success=false instead of an error keeps
// the conversation alive through backend outages.
const DegradedServiceMessage = "抱歉，AI 服务暂时不可用，请稍后再试。"

// janitorInterval is how often the cache sweeps expired entries.
const janitorInterval = 10 * time.Minute

// Client is the orchestrating chat client.
//
// One Chat call runs the full pipeline: intent classification, response
// cache lookup, knowledge retrieval, the goal action when the message is
// goal-related, provider dispatch, and the cache write-back.
//
// The client is thread-safe and can be used concurrently from multiple
// goroutines.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	result, _ := client.Chat(ctx, &core.AIRequest{
//	    Message:     "我想三个月内学会 Go",
//	    SessionType: core.SessionGoalPlanning,
//	    UserID:      "user_001",
//	})
type Client struct {
	// config contains the client configuration.
	config *Config

	// cache is the response cache (nil when disabled).
	cache *cache.Cache

	// classifier derives intent from messages.
	classifier *intent.Classifier

	// chain is the tiered knowledge retrieval chain (nil when no
	// knowledge store is configured).
	chain *knowledge.Chain

	// engine executes goal actions.
	engine *goal.Engine

	// goalStore is the goal persistence backend, kept for Close.
	goalStore goal.Store

	// router dispatches requests to the configured providers.
	router *provider.Router

	// defaultProvider handles requests that do not select a provider.
	defaultProvider string

	log *logrus.Entry
}

// NewClient creates a new chat client.
//
// The client is initialized with:
//   - AI providers (workflow, chat, stream — whichever are configured)
//   - Goal store (SQLite or MySQL)
//   - Knowledge store (SQLite or PostgreSQL, optional)
//   - Embedding provider (optional; enables tier-1 vector retrieval)
//   - Response cache (unless disabled)
//
// Parameters:
//   - cfg: Configuration containing provider, store, and cache settings
//
// Returns a new Client instance, or an error if initialization fails.
func NewClient(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	router, err := initProviders(cfg.Provider)
	if err != nil {
		return nil, err
	}

	goalStore, err := initGoalStore(cfg.GoalStore)
	if err != nil {
		return nil, err
	}

	engine, err := goal.NewEngine(goalStore)
	if err != nil {
		return nil, NewChatError("NewClient", err)
	}

	chain, err := initKnowledge(cfg)
	if err != nil {
		return nil, err
	}

	client := &Client{
		config:          cfg,
		classifier:      intent.NewClassifier(),
		chain:           chain,
		engine:          engine,
		goalStore:       goalStore,
		router:          router,
		defaultProvider: cfg.Provider.Default,
		log:             logrus.WithField("component", "chat-client"),
	}

	if cfg.Cache.Enabled {
		cacheOpts := []cache.Option{}
		if ttl := cfg.Cache.TTL(); ttl > 0 {
			cacheOpts = append(cacheOpts, cache.WithTTL(ttl))
		}
		if cfg.Cache.Capacity > 0 {
			cacheOpts = append(cacheOpts, cache.WithCapacity(cfg.Cache.Capacity))
		}
		client.cache = cache.New(janitorInterval, cacheOpts...)
	}

	return client, nil
}

// Chat runs one request through the full pipeline and returns the reply.
//
// Control flow:
//  1. Classify the message.
//  2. Non-goal requests consult the response cache; goal-related requests
//     skip the cache entirely.
//  3. Knowledge retrieval builds the system context (failures are logged
//     and the request continues without context).
//  4. Goal-related requests execute the goal action; the outcome is
//     attached as GoalResult.
//  5. The provider dispatches the request. Transport, timeout and upstream
//     failures degrade to a fixed apology with Success=false; they are
//     never surfaced as an error from Chat.
//  6. Successful non-goal replies are written back to the cache.
//
// Returns an error only for invalid input or misconfiguration.
func (c *Client) Chat(ctx context.Context, req *AIRequest, opts ...ChatOption) (*ChatResult, error) {
	if req == nil || strings.TrimSpace(req.Message) == "" {
		return nil, NewChatError("Chat", ErrValidation)
	}

	options := &ChatOptions{}
	for _, opt := range opts {
		opt(options)
	}

	sessionType := req.SessionType
	if sessionType == "" {
		sessionType = SessionGeneral
	}

	start := time.Now()
	it := c.classifier.Classify(req.Message, historyToTurns(req.ConversationHistory))
	convCtx := intent.AnalyzeContext(historyToTurns(req.ConversationHistory), req.Message)

	metadata := map[string]interface{}{
		"request_id":      uuid.NewString(),
		"intent_category": string(it.Category),
		"goal_related":    it.IsGoalRelated,
	}

	// Goal-related requests never touch the cache: their replies mutate
	// state and are not reusable across users or moments.
	useCache := c.cache != nil && !it.IsGoalRelated && !options.SkipCache
	if useCache {
		if content, ok := c.cache.Get(req.Message, string(sessionType)); ok {
			return &ChatResult{
				Success:      true,
				Content:      content,
				ResponseTime: time.Since(start),
				Cached:       true,
				Metadata:     metadata,
			}, nil
		}
	}

	systemContext := c.retrieveContext(ctx, req, options, metadata)

	var goalResult *GoalResult
	var suggestions []string
	if it.IsGoalRelated && c.engine != nil {
		goalResult = c.runGoalAction(ctx, req, it)
		suggestions = suggestionsFor(convCtx)
	}

	providerName := options.Provider
	if providerName == "" {
		providerName = c.defaultProvider
	}
	metadata["provider"] = providerName

	resp, err := c.router.Dispatch(ctx, providerName, toProviderRequest(req, systemContext))
	if err != nil {
		if errors.Is(err, provider.ErrUnknownProvider) {
			return nil, NewChatError("Chat", err)
		}

		c.log.WithError(err).WithField("provider", providerName).Warn("provider dispatch failed, degrading")
		metadata["degraded"] = true
		return &ChatResult{
			Success:      false,
			Content:      DegradedServiceMessage,
			ResponseTime: time.Since(start),
			Error:        errorClass(err),
			GoalResult:   goalResult,
			Suggestions:  suggestions,
			Metadata:     metadata,
		}, nil
	}

	aiResp := fromProviderResponse(resp)
	if useCache {
		c.cache.Set(req.Message, aiResp.Content, string(sessionType))
	}

	return &ChatResult{
		Success:      aiResp.Success,
		Content:      aiResp.Content,
		TokensUsed:   aiResp.TokensUsed,
		ResponseTime: time.Since(start),
		GoalResult:   goalResult,
		Suggestions:  suggestions,
		Metadata:     metadata,
	}, nil
}

// SearchKnowledge exposes the retrieval chain directly, for callers that
// want documents without a chat round-trip.
func (c *Client) SearchKnowledge(ctx context.Context, query string, scope knowledge.Scope, opts *knowledge.Options) ([]*knowledge.Result, error) {
	if c.chain == nil {
		return nil, NewChatError("SearchKnowledge", ErrConfiguration)
	}
	results, err := c.chain.Search(ctx, query, scope, opts)
	if err != nil {
		return nil, NewChatError("SearchKnowledge", err)
	}
	return results, nil
}

// Goals returns the goal engine for direct goal management.
func (c *Client) Goals() *goal.Engine {
	return c.engine
}

// CacheStats returns response cache statistics, or zero stats when the
// cache is disabled.
func (c *Client) CacheStats() cache.Stats {
	if c.cache == nil {
		return cache.Stats{}
	}
	return c.cache.Stats()
}

// CheckProviders probes every registered provider and updates its health
// state.
func (c *Client) CheckProviders(ctx context.Context) {
	c.router.CheckAll(ctx)
}

// Close releases every backend held by the client.
func (c *Client) Close() error {
	if c.cache != nil {
		c.cache.Stop()
	}

	var firstErr error
	if c.router != nil {
		if err := c.router.Close(); err != nil {
			firstErr = err
		}
	}
	if c.chain != nil {
		if err := c.chain.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if c.goalStore != nil {
		if err := c.goalStore.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// retrieveContext runs knowledge retrieval and folds the hits into a
// system-context block. Retrieval failures never fail the chat.
func (c *Client) retrieveContext(ctx context.Context, req *AIRequest, options *ChatOptions, metadata map[string]interface{}) string {
	if c.chain == nil || options.SkipKnowledge {
		return req.UserProfile
	}

	searchOpts := &knowledge.Options{
		Mode:       knowledge.ModeHybrid,
		MaxResults: knowledge.DefaultMaxResults,
	}
	if options.SearchMode != "" {
		searchOpts.Mode = options.SearchMode
	}
	if options.MaxKnowledgeResults > 0 {
		searchOpts.MaxResults = options.MaxKnowledgeResults
	}

	results, err := c.chain.Search(ctx, req.Message, knowledge.Scope{UserID: req.UserID}, searchOpts)
	if err != nil {
		c.log.WithError(err).Warn("knowledge retrieval failed, continuing without context")
		return req.UserProfile
	}
	metadata["knowledge_hits"] = len(results)
	if len(results) == 0 {
		return req.UserProfile
	}

	var b strings.Builder
	if req.UserProfile != "" {
		b.WriteString(req.UserProfile)
		b.WriteString("\n\n")
	}
	b.WriteString("Relevant knowledge:\n")
	for _, r := range results {
		b.WriteString("- ")
		b.WriteString(r.Title)
		b.WriteString(": ")
		b.WriteString(r.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// runGoalAction executes the classified goal action and reports the
// outcome as a structured GoalResult. Engine-level not-found,
// low-confidence and validation conditions never become Chat errors.
func (c *Client) runGoalAction(ctx context.Context, req *AIRequest, it *intent.Intent) *GoalResult {
	switch it.Category {
	case intent.CategoryCreate:
		return c.createGoal(ctx, req, it.Extracted)
	case intent.CategoryUpdate:
		return c.updateProgress(ctx, req, it.Extracted)
	case intent.CategoryQuery:
		return c.queryGoals(ctx, req)
	default:
		return &GoalResult{Action: GoalActionSuggest, Success: true}
	}
}

func (c *Client) createGoal(ctx context.Context, req *AIRequest, ex *intent.Extraction) *GoalResult {
	if ex == nil || ex.Objective == "" {
		return &GoalResult{
			Action:        GoalActionCreate,
			MissingFields: []string{"objective"},
			Message:       "could not find a goal statement in the message",
		}
	}
	if req.UserID == "" {
		return &GoalResult{
			Action:        GoalActionCreate,
			MissingFields: []string{"user_id"},
			Message:       "a user id is required to create goals",
		}
	}

	inputs := make([]goal.KeyResultInput, 0, len(ex.KeyResults))
	for _, draft := range ex.KeyResults {
		inputs = append(inputs, goal.KeyResultInput{
			Title:       draft.Title,
			TargetValue: draft.TargetValue,
			Unit:        draft.Unit,
		})
	}

	created, err := c.engine.CreateGoal(ctx, req.UserID, ex.Objective, req.Message, inputs)
	if err != nil {
		if errors.Is(err, goal.ErrValidation) {
			return &GoalResult{
				Action:        GoalActionCreate,
				MissingFields: []string{"objective"},
				Message:       err.Error(),
			}
		}
		c.log.WithError(err).Warn("goal creation failed")
		return &GoalResult{Action: GoalActionCreate, Message: "goal creation failed"}
	}

	return &GoalResult{
		Action:  GoalActionCreate,
		Success: true,
		Goal:    created,
		Message: fmt.Sprintf("created goal %q with %d key results", created.Title, len(created.KeyResults)),
	}
}

func (c *Client) updateProgress(ctx context.Context, req *AIRequest, ex *intent.Extraction) *GoalResult {
	if ex == nil {
		return &GoalResult{
			Action:        GoalActionUpdate,
			MissingFields: []string{"value"},
			Message:       "could not find a progress value in the message",
		}
	}

	outcome, err := c.engine.ApplyFreeTextUpdate(ctx, req.UserID, req.Message, ex.Value, ex.IsPercentage)
	if err != nil {
		if errors.Is(err, goal.ErrNotFound) {
			return &GoalResult{
				Action:  GoalActionUpdate,
				Message: "no active goals to update",
			}
		}
		if errors.Is(err, goal.ErrLowConfidence) {
			return &GoalResult{
				Action:     GoalActionUpdate,
				Candidates: outcome.Candidates,
				Message:    "could not confidently match a key result; please pick one",
			}
		}
		c.log.WithError(err).Warn("progress update failed")
		return &GoalResult{Action: GoalActionUpdate, Message: "progress update failed"}
	}

	return &GoalResult{
		Action:    GoalActionUpdate,
		Success:   true,
		Goal:      outcome.Goal,
		KeyResult: outcome.KeyResult,
		Message:   fmt.Sprintf("updated %q to %d%%", outcome.KeyResult.Title, outcome.KeyResult.ProgressPercentage),
	}
}

func (c *Client) queryGoals(ctx context.Context, req *AIRequest) *GoalResult {
	goals, err := c.engine.ListGoals(ctx, req.UserID)
	if err != nil {
		c.log.WithError(err).Warn("goal listing failed")
		return &GoalResult{Action: GoalActionQuery, Message: "goal listing failed"}
	}
	return &GoalResult{
		Action:  GoalActionQuery,
		Success: true,
		Goals:   goals,
		Message: fmt.Sprintf("%d goals", len(goals)),
	}
}

// suggestionsFor derives follow-up prompts from the recent conversation
// topics.
func suggestionsFor(convCtx *intent.Context) []string {
	var suggestions []string
	if convCtx.HasTopic(intent.TopicGoalManagement) {
		suggestions = append(suggestions, "查看我的目标进度")
	}
	if convCtx.HasTopic(intent.TopicLearning) {
		suggestions = append(suggestions, "为这个学习目标制定关键结果")
	}
	if len(suggestions) == 0 {
		suggestions = append(suggestions, "创建一个新目标")
	}
	return suggestions
}

// errorClass maps a dispatch failure onto its taxonomy label.
func errorClass(err error) string {
	switch {
	case errors.Is(err, provider.ErrTimeout):
		return "timeout"
	case errors.Is(err, provider.ErrTransport):
		return "transport"
	case errors.Is(err, provider.ErrUpstream):
		return "upstream"
	case errors.Is(err, provider.ErrParse):
		return "parse"
	case errors.Is(err, provider.ErrUnavailable):
		return "unavailable"
	default:
		return "unknown"
	}
}

// initProviders builds the router and registers every configured strategy.
func initProviders(cfg ProviderConfig) (*provider.Router, error) {
	router := provider.NewRouter(time.Duration(cfg.TimeoutSeconds) * time.Second)

	if cfg.Workflow != nil {
		p, err := workflowProvider.NewClient(&workflowProvider.Config{
			Endpoint: cfg.Workflow.Endpoint,
			APIKey:   cfg.Workflow.APIKey,
		})
		if err != nil {
			return nil, NewChatError("NewClient", err)
		}
		router.Register(p)
	}
	if cfg.Chat != nil {
		p, err := chatProvider.NewClient(&chatProvider.Config{
			APIKey:  cfg.Chat.APIKey,
			Model:   cfg.Chat.Model,
			BaseURL: cfg.Chat.BaseURL,
		})
		if err != nil {
			return nil, NewChatError("NewClient", err)
		}
		router.Register(p)
	}
	if cfg.Stream != nil {
		p, err := streamProvider.NewClient(&streamProvider.Config{
			Endpoint: cfg.Stream.Endpoint,
			APIKey:   cfg.Stream.APIKey,
		})
		if err != nil {
			return nil, NewChatError("NewClient", err)
		}
		router.Register(p)
	}

	return router, nil
}

// initGoalStore creates the goal store based on the configured provider.
func initGoalStore(cfg GoalStoreConfig) (goal.Store, error) {
	switch cfg.Provider {
	case "sqlite":
		return goalSQLite.NewStore(&goalSQLite.Config{
			DBPath: getStringOption(cfg.Config, "db_path", "./goals.db"),
		})
	case "mysql":
		return goalMySQL.NewStore(&goalMySQL.Config{
			Host:     getStringOption(cfg.Config, "host", "127.0.0.1"),
			Port:     getIntOption(cfg.Config, "port", 3306),
			User:     getStringOption(cfg.Config, "user", "root"),
			Password: getStringOption(cfg.Config, "password", ""),
			DBName:   getStringOption(cfg.Config, "db_name", "aichat"),
		})
	default:
		return nil, NewChatError("NewClient", fmt.Errorf("unsupported goal store provider: %s: %w", cfg.Provider, ErrInvalidConfig))
	}
}

// initKnowledge creates the retrieval chain, or returns nil when no
// knowledge store is configured.
func initKnowledge(cfg *Config) (*knowledge.Chain, error) {
	if cfg.Knowledge.Provider == "" {
		return nil, nil
	}

	var emb embedder.Provider
	if cfg.Embedder.APIKey != "" {
		client, err := openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.Embedder.APIKey,
			Model:      cfg.Embedder.Model,
			BaseURL:    cfg.Embedder.BaseURL,
			Dimensions: cfg.Embedder.Dimensions,
		})
		if err != nil {
			return nil, NewChatError("NewClient", err)
		}
		emb = client
	}

	switch cfg.Knowledge.Provider {
	case "sqlite":
		store, err := knowledgeSQLite.NewStore(&knowledgeSQLite.Config{
			DBPath: getStringOption(cfg.Knowledge.Config, "db_path", "./knowledge.db"),
		})
		if err != nil {
			return nil, NewChatError("NewClient", err)
		}
		if emb == nil {
			return knowledge.NewChain(nil, nil, store)
		}
		return knowledge.NewChain(emb, store, store)
	case "postgres":
		store, err := knowledgePostgres.NewStore(&knowledgePostgres.Config{
			Host:     getStringOption(cfg.Knowledge.Config, "host", "localhost"),
			Port:     getIntOption(cfg.Knowledge.Config, "port", 5432),
			User:     getStringOption(cfg.Knowledge.Config, "user", "postgres"),
			Password: getStringOption(cfg.Knowledge.Config, "password", ""),
			DBName:   getStringOption(cfg.Knowledge.Config, "db_name", "aichat"),
			SSLMode:  getStringOption(cfg.Knowledge.Config, "ssl_mode", "disable"),
		})
		if err != nil {
			return nil, NewChatError("NewClient", err)
		}
		// The postgres store is text-only; tier 1 needs a vector backend.
		return knowledge.NewChain(nil, nil, store)
	default:
		return nil, NewChatError("NewClient", fmt.Errorf("unsupported knowledge provider: %s: %w", cfg.Knowledge.Provider, ErrInvalidConfig))
	}
}

func getStringOption(config map[string]interface{}, key, defaultValue string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return defaultValue
}

func getIntOption(config map[string]interface{}, key string, defaultValue int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}
