package core

import (
	"time"

	"github.com/okrhub/aichat-go/pkg/goal"
)

// SessionType labels the conversational context a chat request belongs to.
// It scopes cache entries and is forwarded to the provider as an input.
type SessionType string

const (
	SessionGeneral        SessionType = "general"
	SessionGoalPlanning   SessionType = "goal_planning"
	SessionStudyHelp      SessionType = "study_help"
	SessionCareerGuidance SessionType = "career_guidance"
)

// Message is one turn of conversation history.
type Message struct {
	// Role is the speaker, "user" or "assistant".
	Role string `json:"role"`

	// Content is the turn's text.
	Content string `json:"content"`

	// Timestamp is when the turn was produced.
	Timestamp time.Time `json:"timestamp"`
}

// AIRequest is one chat request into the orchestrator.
//
// Example:
//
//	req := &core.AIRequest{
//	    Message:     "我想三个月内学会 Go",
//	    SessionType: core.SessionGoalPlanning,
//	    UserID:      "user-1",
//	}
type AIRequest struct {
	// Message is the user's message text (required).
	Message string `json:"message"`

	// SessionType scopes the request (defaults to general).
	SessionType SessionType `json:"session_type"`

	// UserID identifies the user (optional; required for goal actions).
	UserID string `json:"user_id,omitempty"`

	// SessionID identifies the session (optional; generated when empty).
	SessionID string `json:"session_id,omitempty"`

	// ConversationHistory is the trailing conversation, oldest first.
	ConversationHistory []Message `json:"conversation_history,omitempty"`

	// UserProfile is free-form profile text forwarded as context (optional).
	UserProfile string `json:"user_profile,omitempty"`

	// Metadata carries caller-defined fields (optional).
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// AIResponse is a normalized provider reply.
type AIResponse struct {
	// Content is the reply text.
	Content string `json:"content"`

	// Success reports whether the provider produced a usable reply.
	Success bool `json:"success"`

	// TokensUsed is the provider-reported token usage (0 when unknown).
	TokensUsed int `json:"tokens_used"`

	// ResponseTime is the provider round-trip duration.
	ResponseTime time.Duration `json:"response_time"`

	// Confidence is an advisory score attached by the classifier (0 when
	// the request was not goal-related).
	Confidence float64 `json:"confidence,omitempty"`

	// Suggestions are optional follow-up prompts for the user.
	Suggestions []string `json:"suggestions,omitempty"`

	// Metadata carries provider- and orchestrator-attached fields.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// GoalAction names the goal-engine operation a chat request triggered.
type GoalAction string

const (
	GoalActionCreate  GoalAction = "create"
	GoalActionUpdate  GoalAction = "update"
	GoalActionQuery   GoalAction = "query"
	GoalActionSuggest GoalAction = "suggest"
)

// GoalResult is the structured outcome of the goal action attached to a
// chat reply. Engine-level not-found, low-confidence and validation
// outcomes are reported here rather than as orchestrator errors.
type GoalResult struct {
	// Action is the operation that ran.
	Action GoalAction `json:"action"`

	// Success reports whether the action completed with a definite outcome.
	Success bool `json:"success"`

	// Goal is the goal touched by a create or update action.
	Goal *goal.Goal `json:"goal,omitempty"`

	// Goals is the listing returned by a query action.
	Goals []*goal.Goal `json:"goals,omitempty"`

	// KeyResult is the key result updated by an update action.
	KeyResult *goal.KeyResult `json:"key_result,omitempty"`

	// Candidates lists key-result titles for disambiguation when a
	// progress update could not be matched confidently.
	Candidates []string `json:"candidates,omitempty"`

	// MissingFields names required fields absent from the message.
	MissingFields []string `json:"missing_fields,omitempty"`

	// Message is a short human-readable summary of the outcome.
	Message string `json:"message,omitempty"`
}

// ChatResult is the orchestrator's reply to one Chat call.
type ChatResult struct {
	// Success reports whether a real provider reply was obtained. It is
	// false for degraded replies.
	Success bool `json:"success"`

	// Content is the reply text shown to the user. Always non-empty; on
	// provider failure it carries the degraded-service message.
	Content string `json:"content"`

	// TokensUsed is the provider-reported token usage.
	TokensUsed int `json:"tokens_used"`

	// ResponseTime is the end-to-end duration of the Chat call.
	ResponseTime time.Duration `json:"response_time"`

	// Cached reports that the reply was served from the response cache.
	Cached bool `json:"cached"`

	// Error is the failure class of a degraded reply ("" on success).
	Error string `json:"error,omitempty"`

	// GoalResult is the structured goal-action outcome (nil for non-goal
	// requests).
	GoalResult *GoalResult `json:"goal_result,omitempty"`

	// Suggestions are optional follow-up prompts.
	Suggestions []string `json:"suggestions,omitempty"`

	// Metadata carries orchestrator diagnostics (intent category,
	// knowledge hits, provider name).
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
