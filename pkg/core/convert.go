package core

import (
	"github.com/okrhub/aichat-go/pkg/intent"
	"github.com/okrhub/aichat-go/pkg/provider"
)

// toProviderRequest maps an orchestrator request onto the provider wire
// shape, attaching the assembled system context.
func toProviderRequest(req *AIRequest, systemContext string) *provider.Request {
	history := make([]provider.Message, 0, len(req.ConversationHistory))
	for _, m := range req.ConversationHistory {
		history = append(history, provider.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	conversationID := ""
	if req.SessionID != "" {
		conversationID = req.SessionID
	}

	return &provider.Request{
		Message:        req.Message,
		SessionType:    string(req.SessionType),
		UserID:         req.UserID,
		ConversationID: conversationID,
		History:        history,
		SystemContext:  systemContext,
		Metadata:       req.Metadata,
	}
}

// fromProviderResponse normalizes a provider reply into the orchestrator's
// response shape.
func fromProviderResponse(resp *provider.Response) *AIResponse {
	return &AIResponse{
		Content:      resp.Content,
		Success:      true,
		TokensUsed:   resp.TokensUsed,
		ResponseTime: resp.ResponseTime,
		Metadata:     resp.Metadata,
	}
}

// historyToTurns maps conversation history onto classifier turns.
func historyToTurns(history []Message) []intent.Turn {
	turns := make([]intent.Turn, 0, len(history))
	for _, m := range history {
		turns = append(turns, intent.Turn{
			Role:    m.Role,
			Content: m.Content,
		})
	}
	return turns
}
