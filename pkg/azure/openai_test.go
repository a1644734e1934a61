package azure

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletionSendsJSONModeAndKey(t *testing.T) {
	var got ChatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/chat-dep/chat/completions", r.URL.Path)
		assert.Equal(t, "2024-06-01", r.URL.Query().Get("api-version"))
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"index":0,"message":{"role":"assistant","content":"{\"variants\":[]}"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL+"/", "secret", "2024-06-01", "chat-dep", "", "", nil)
	text, err := client.CompleteText(context.Background(), "sys", "user", ChatOptions{JSONMode: true, Temperature: 0.5})

	require.NoError(t, err)
	assert.Equal(t, `{"variants":[]}`, text)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
}

func TestChatCompletionSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"401","message":"bad key"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "secret", "v", "chat", "", "", nil)
	_, err := client.CompleteText(context.Background(), "sys", "user", ChatOptions{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestCreateEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/openai/deployments/emb/embeddings", r.URL.Path)
		w.Write([]byte(`{"data":[{"index":0,"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "secret", "v", "chat", "emb", "", nil)
	vec, err := client.CreateEmbedding(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestCreateEmbeddingRequiresDeployment(t *testing.T) {
	client := NewOpenAIClient("http://127.0.0.1:1", "secret", "v", "chat", "", "", nil)
	_, err := client.CreateEmbedding(context.Background(), "hello")
	assert.Error(t, err)
}

func TestMissingAPIKey(t *testing.T) {
	client := NewOpenAIClient("http://127.0.0.1:1", "", "v", "chat", "emb", "", nil)
	_, err := client.CompleteText(context.Background(), "sys", "user", ChatOptions{})
	assert.ErrorContains(t, err, "api key")
}
