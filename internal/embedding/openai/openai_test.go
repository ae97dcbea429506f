package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragtutor/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_EMBED_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "TEST_EMBED_KEY", Model: "custom-embed"})
	require.NoError(t, err)
	return c
}

func TestEmbed(t *testing.T) {
	var gotModel string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotModel, _ = body["model"].(string)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,-0.25,1]}],"model":"custom-embed"}`))
	})

	assert.Zero(t, c.Dimension())
	v, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1}, v)
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "custom-embed", gotModel)
}

func TestEmbed_BackendFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
	})
	_, err := c.Embed(context.Background(), "hello")
	assert.ErrorIs(t, err, domain.ErrEmbeddingBackend)
}

func TestEmbed_EmptyText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.Embed(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("EMPTY_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "EMPTY_KEY"})
	assert.Error(t, err)
}

func TestNewClient_KnownDimension(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "sk-test")
	c, err := NewClient(Config{APIKeyEnv: "TEST_EMBED_KEY"})
	require.NoError(t, err)
	assert.Equal(t, 1536, c.Dimension())
	assert.Equal(t, "openai-text-embedding-3-small", c.Name())
}
