package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"ragtutor/internal/domain"
)

const defaultModel = "gemini-embedding-001"

// Embedder computes embeddings with the Gemini API.
type Embedder struct {
	client *genai.Client
	model  string

	mu        sync.RWMutex
	dimension int
}

// Config configures the Gemini embedder.
type Config struct {
	APIKeyEnv string
	Model     string
}

// NewEmbedder opens a Gemini client. Close releases it.
func NewEmbedder(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, err
	}
	return &Embedder{client: client, model: cfg.Model}, nil
}

func (e *Embedder) Name() string { return "gemini-" + e.model }

func (e *Embedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	slog.DebugContext(ctx, "embedding content", "model", e.model, "length", len(text))
	res, err := e.client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		slog.ErrorContext(ctx, "embedding failed", "model", e.model, "error", err)
		return nil, fmt.Errorf("%w: gemini: %w", domain.ErrEmbeddingBackend, err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("%w: gemini returned no embedding", domain.ErrEmbeddingBackend)
	}
	e.mu.Lock()
	if e.dimension == 0 {
		e.dimension = len(res.Embedding.Values)
	}
	e.mu.Unlock()
	return res.Embedding.Values, nil
}

func (e *Embedder) Close() error {
	return e.client.Close()
}
