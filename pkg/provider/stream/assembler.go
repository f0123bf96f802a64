// Package stream provides the streaming chat-completion provider and the
// assembler that reconstructs one reply from its event stream.
package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// Event-stream framing.
const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"

	// maxLineSize bounds a single event line. Large retrieval payloads can
	// exceed bufio's 64KB default.
	maxLineSize = 1024 * 1024
)

// DegradedMessage is returned when a stream ends with no accumulated
// content. Substituting it for empty text is a deliberate UX policy.
const DegradedMessage = "抱歉，AI 服务暂时不可用，请稍后再试。"

// Assembled is the reconstructed reply of one event stream.
type Assembled struct {
	// Content is the accumulated answer text.
	Content string

	// ConversationID and MessageID are the identifiers captured from the
	// message events.
	ConversationID string
	MessageID      string

	// TokensUsed is the usage count from the message_end event.
	TokensUsed int

	// Resources is the retrieval-resource metadata from the message_end
	// event, when present.
	Resources []map[string]interface{}
}

// event is one decoded stream frame.
type event struct {
	Event          string `json:"event"`
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Metadata       struct {
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
		RetrieverResources []map[string]interface{} `json:"retriever_resources"`
	} `json:"metadata"`
}

// Assembler decodes a chunked event stream into one accumulated reply.
//
// Processing is strictly sequential: one reader loop consumes the stream in
// order, and partial lines split across reads are reassembled before
// parsing. A malformed frame is logged and skipped; it never aborts the
// stream.
type Assembler struct {
	log *logrus.Entry
}

// NewAssembler creates a stream assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		log: logrus.WithField("component", "stream-assembler"),
	}
}

// Consume reads the stream to its end and returns the assembled reply.
//
// Lines carrying the "data: " prefix are decoded as JSON events; the
// literal "[DONE]" sentinel ends the stream. message and agent_message
// events append their answer delta; message_end captures usage and
// retrieval metadata; workflow and node lifecycle events are observed but
// contribute no content. When the stream ends with empty content the
// degraded-service message is substituted.
func (a *Assembler) Consume(r io.Reader) (*Assembled, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	assembled := &Assembled{}
	var content strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, dataPrefix) {
			continue
		}

		data := strings.TrimPrefix(line, dataPrefix)
		if data == doneSentinel {
			break
		}

		var ev event
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			a.log.WithError(err).Warn("skipping malformed stream frame")
			continue
		}

		switch ev.Event {
		case "message", "agent_message":
			content.WriteString(ev.Answer)
			if ev.ConversationID != "" {
				assembled.ConversationID = ev.ConversationID
			}
			if ev.MessageID != "" {
				assembled.MessageID = ev.MessageID
			}
		case "message_end":
			assembled.TokensUsed = ev.Metadata.Usage.TotalTokens
			if len(ev.Metadata.RetrieverResources) > 0 {
				assembled.Resources = ev.Metadata.RetrieverResources
			}
		case "workflow_started", "workflow_finished", "node_started", "node_finished", "ping":
			// Lifecycle events carry no content.
		default:
			a.log.WithField("event", ev.Event).Debug("ignoring unknown stream event")
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stream read: %w", err)
	}

	assembled.Content = content.String()
	if assembled.Content == "" {
		assembled.Content = DegradedMessage
	}
	return assembled, nil
}
