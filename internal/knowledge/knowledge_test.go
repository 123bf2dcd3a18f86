package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashingEmbedder(t *testing.T) {
	e := NewHashingEmbedder(64)
	ctx := context.Background()

	vecs, err := e.Embed(ctx, []string{"def save(self): persist()", "def save(self): persist()", "class Parser"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 64)
	assert.Equal(t, vecs[0], vecs[1], "same text, same vector")
	assert.NotEqual(t, vecs[0], vecs[2])

	empty, err := e.Embed(ctx, []string{""})
	require.NoError(t, err)
	assert.Len(t, empty[0], 64)

	assert.Equal(t, 384, NewHashingEmbedder(0).Dimension())
}

func TestOpenAIEmbedder(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req openAIEmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := openAIEmbeddingResponse{}
		// answer out of order; the embedder must place items by index
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, openAIEmbeddingItem{Index: i, Embedding: []float32{float32(i), 1}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("sk-test", "text-embedding-3-small", 2, srv.URL)
	require.NoError(t, err)
	e.retryDelay = time.Millisecond

	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vecs)
	assert.Equal(t, int32(2), calls.Load(), "429 is retried")
}

func TestOpenAIEmbedder_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	e, err := NewOpenAIEmbedder("sk-test", "m", 0, srv.URL+"/v1")
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := ollamaEmbedResponse{}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{0.5, 0.5, 0.5})
		}
		if req.Input[0] == "short" {
			resp.Embeddings = resp.Embeddings[:0]
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e, err := NewOllamaEmbedder("nomic-embed-text", 0, srv.URL)
	require.NoError(t, err)

	vecs, err := e.Embed(context.Background(), []string{"x", "y"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	_, err = e.Embed(context.Background(), []string{"short"})
	assert.Error(t, err, "count mismatch is an error")
}

func TestOpenAIGenerator(t *testing.T) {
	reply := "The function saves the account."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req openAIChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "be brief", req.Messages[0].Content)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.InDelta(t, 0.7, req.Temperature, 1e-9)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":` + mustJSON(t, reply) + `}}]}`))
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(GeneratorOptions{APIKey: "k", Model: "gpt-4o-mini", BaseURL: srv.URL, Temperature: 0.7})
	require.NoError(t, err)

	out, err := g.Generate(context.Background(), "be brief", "what does save do?")
	require.NoError(t, err)
	assert.Equal(t, reply, out)

	reply = "   "
	_, err = g.Generate(context.Background(), "be brief", "again")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestOpenAIGenerator_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator(GeneratorOptions{APIKey: "k", Model: "m", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = g.Generate(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestFactories(t *testing.T) {
	ctx := context.Background()

	e, err := NewEmbedder(ctx, EmbedderOptions{Provider: "hashing", Dimension: 16})
	require.NoError(t, err)
	assert.Equal(t, 16, e.Dimension())

	_, err = NewEmbedder(ctx, EmbedderOptions{Provider: "openai", Model: "m"})
	assert.Error(t, err, "missing key fails at construction")

	_, err = NewEmbedder(ctx, EmbedderOptions{Provider: "word2vec"})
	assert.Error(t, err)

	_, err = NewGenerator(ctx, GeneratorOptions{Provider: "openai", Model: "m"})
	assert.Error(t, err)

	_, err = NewGenerator(ctx, GeneratorOptions{Provider: "gemini"})
	assert.Error(t, err)

	_, err = NewGenerator(ctx, GeneratorOptions{Provider: "eliza"})
	assert.Error(t, err)
}

func TestOpenAIEndpoint(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{"", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"http://localhost:8080/v1/", "http://localhost:8080/v1/chat/completions"},
		{"http://proxy/v1/chat/completions", "http://proxy/v1/chat/completions"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, openAIEndpoint(tt.base, "/chat/completions"), tt.base)
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
