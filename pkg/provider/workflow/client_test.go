package workflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okrhub/aichat-go/pkg/provider"
)

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(&Config{APIKey: "key"})
	assert.ErrorIs(t, err, provider.ErrConfiguration)

	_, err = NewClient(&Config{Endpoint: "http://example.com"})
	assert.ErrorIs(t, err, provider.ErrConfiguration)
}

func TestDispatch(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"answer":          "The goal looks on track.",
			"conversation_id": "conv-42",
			"message_id":      "msg-7",
			"metadata": map[string]interface{}{
				"usage": map[string]interface{}{"total_tokens": 23},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, APIKey: "test-key"})
	require.NoError(t, err)

	resp, err := client.Dispatch(context.Background(), &provider.Request{
		Message:        "How is my goal going?",
		SessionType:    "okr",
		UserID:         "user-1",
		ConversationID: "conv-42",
		SystemContext:  "Relevant notes.",
	})
	require.NoError(t, err)

	assert.Equal(t, "The goal looks on track.", resp.Content)
	assert.Equal(t, 23, resp.TokensUsed)
	assert.Equal(t, "conv-42", resp.ConversationID)
	assert.Equal(t, "msg-7", resp.MessageID)

	assert.Equal(t, "blocking", captured["response_mode"])
	assert.Equal(t, "user-1", captured["user"])
	assert.Equal(t, "Relevant notes.\n\nHow is my goal going?", captured["query"])
}

func TestDispatchGeneratesConversationID(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(`{"answer": "hi"}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, APIKey: "key"})
	require.NoError(t, err)

	_, err = client.Dispatch(context.Background(), &provider.Request{Message: "hi", UserID: "u"})
	require.NoError(t, err)
	assert.NotEmpty(t, captured["conversation_id"])
}

func TestDispatchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, APIKey: "key"})
	require.NoError(t, err)

	_, err = client.Dispatch(context.Background(), &provider.Request{Message: "hi"})
	assert.ErrorIs(t, err, provider.ErrUpstream)
}

func TestDispatchParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, APIKey: "key"})
	require.NoError(t, err)

	_, err = client.Dispatch(context.Background(), &provider.Request{Message: "hi"})
	assert.ErrorIs(t, err, provider.ErrParse)
}

func TestDispatchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, APIKey: "key"})
	require.NoError(t, err)

	_, err = client.Dispatch(context.Background(), &provider.Request{Message: "hi"})
	assert.ErrorIs(t, err, provider.ErrTransport)
}

func TestHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	client, err := NewClient(&Config{Endpoint: server.URL, APIKey: "key"})
	require.NoError(t, err)

	// Any HTTP response counts as reachable.
	assert.NoError(t, client.HealthCheck(context.Background()))

	server.Close()
	assert.Error(t, client.HealthCheck(context.Background()))
}
