package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(&Config{})
	assert.Error(t, err)
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(&Config{APIKey: "sk-test"})
	require.NoError(t, err)

	assert.Equal(t, openai.AdaEmbeddingV2, client.model)
	assert.Equal(t, 1536, client.Dimensions())
}

func TestNewClientModelOverride(t *testing.T) {
	client, err := NewClient(&Config{
		APIKey:     "sk-test",
		Model:      "text-embedding-3-small",
		Dimensions: 512,
	})
	require.NoError(t, err)

	assert.Equal(t, openai.SmallEmbedding3, client.model)
	assert.Equal(t, 512, client.Dimensions())
}

func TestEmbed(t *testing.T) {
	var captured struct {
		Input []string `json:"input"`
		Model string   `json:"model"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(&Config{
		APIKey:  "sk-test",
		Model:   "text-embedding-3-small",
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	embedding, err := client.Embed(context.Background(), "how to plan an okr")
	require.NoError(t, err)

	require.Len(t, embedding, 3)
	assert.InDelta(t, 0.1, embedding[0], 1e-6)
	assert.InDelta(t, 0.3, embedding[2], 1e-6)
	assert.Equal(t, []string{"how to plan an okr"}, captured.Input)
	assert.Equal(t, "text-embedding-3-small", captured.Model)
}

func TestEmbedEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "anything")
	assert.Error(t, err)
}
