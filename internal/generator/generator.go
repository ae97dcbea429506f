// Package generator turns assembled context and a question into an answer
// through an OpenAI-compatible chat completion endpoint.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultModel     = "gpt-4o-mini"
	DefaultMaxTokens = 1200
)

// ErrGeneration wraps failures of the remote completion call.
var ErrGeneration = errors.New("answer generation failed")

// Answerer produces an answer for question grounded in contextText.
type Answerer interface {
	Answer(ctx context.Context, contextText, question string) (string, error)
}

// Config configures the chat client.
type Config struct {
	BaseURL    string
	APIKeyEnv  string
	Model      string
	MaxTokens  int
	MaxRetries int
	Timeout    time.Duration
}

// Client is an Answerer backed by the openai-go SDK.
type Client struct {
	client    openai.Client
	model     string
	maxTokens int64
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	opts := []option.RequestOption{option.WithAPIKey(key)}
	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Client{
		client:    openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}, nil
}

// Answer sends the tutor prompt as a single user message.
func (c *Client) Answer(ctx context.Context, contextText, question string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(c.model),
		MaxTokens: openai.Int(c.maxTokens),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(BuildPrompt(contextText, question)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", ErrGeneration)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// BuildPrompt wraps the reference material and the question in the tutor
// instructions.
func BuildPrompt(contextText, question string) string {
	var b strings.Builder
	b.WriteString("You are a tutor helping a student learn.\n")
	b.WriteString("Use both the background knowledge and the uploaded document to answer the student's question.\n\n")
	b.WriteString("<reference>\n")
	b.WriteString(contextText)
	b.WriteString("\n</reference>\n\n<question>\n")
	b.WriteString(question)
	b.WriteString("\n</question>\n\n")
	b.WriteString("Rules:\n")
	b.WriteString("1. Combine the background knowledge and the document in your answer.\n")
	b.WriteString("2. If the material does not cover something, say \"The material does not cover this.\"\n")
	b.WriteString("3. If the background knowledge and the document disagree, explain the difference.\n")
	b.WriteString("4. Explain simply and clearly, adding examples where they help.\n\n")
	b.WriteString("Answer:")
	return b.String()
}
