package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("RAGTUTOR_TEST_KEY", "sk-test")
	c, err := NewClient(Config{BaseURL: srv.URL, APIKeyEnv: "RAGTUTOR_TEST_KEY", Model: "tutor-model", MaxTokens: 64})
	require.NoError(t, err)
	return c
}

func TestAnswer(t *testing.T) {
	var got struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		Messages  []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Error(err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"tutor-model",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  Cells make energy.  "}}]}`))
	})

	answer, err := c.Answer(context.Background(), "=== Background knowledge ===", "What do mitochondria do?")
	require.NoError(t, err)
	assert.Equal(t, "Cells make energy.", answer)
	assert.Equal(t, "tutor-model", got.Model)
	assert.Equal(t, 64, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "What do mitochondria do?")
}

func TestAnswer_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad request"}}`, http.StatusBadRequest)
	})
	_, err := c.Answer(context.Background(), "ctx", "q")
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestAnswer_NoChoices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	})
	_, err := c.Answer(context.Background(), "ctx", "q")
	assert.ErrorIs(t, err, ErrGeneration)
}

func TestNewClient_MissingKey(t *testing.T) {
	t.Setenv("RAGTUTOR_EMPTY_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "RAGTUTOR_EMPTY_KEY"})
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("[Document 1]\nchunk", "why?")
	assert.Contains(t, p, "<reference>\n[Document 1]\nchunk\n</reference>")
	assert.Contains(t, p, "<question>\nwhy?\n</question>")
	assert.Contains(t, p, "Answer:")
}
