package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragtutor/internal/domain"
)

type lengthEmbedder struct {
	calls   atomic.Int32
	fail    string
	invalid bool
}

func (e *lengthEmbedder) Name() string   { return "length" }
func (e *lengthEmbedder) Dimension() int { return 1 }
func (e *lengthEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.invalid {
		return nil, fmt.Errorf("%w: rejected", domain.ErrInvalidArgument)
	}
	if e.fail != "" && strings.Contains(text, e.fail) {
		return nil, errors.New("connection refused")
	}
	return []float32{float32(len(text))}, nil
}

func TestEmbedAll_PreservesOrder(t *testing.T) {
	e := &lengthEmbedder{}
	texts := []string{"a", "bbb", "cc", "dddd", "", "eeeee"}
	vectors, err := EmbedAll(context.Background(), e, texts, 2)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))
	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0])
	}
	assert.EqualValues(t, len(texts), e.calls.Load())
}

func TestEmbedAll_Failure(t *testing.T) {
	e := &lengthEmbedder{fail: "boom"}
	_, err := EmbedAll(context.Background(), e, []string{"ok", "boom", "ok"}, 1)
	assert.ErrorIs(t, err, domain.ErrEmbeddingBackend)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestEmbedAll_Empty(t *testing.T) {
	vectors, err := EmbedAll(context.Background(), &lengthEmbedder{}, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestBackendError(t *testing.T) {
	assert.NoError(t, BackendError(nil))
	wrapped := BackendError(errors.New("x"))
	assert.ErrorIs(t, wrapped, domain.ErrEmbeddingBackend)
	assert.Equal(t, wrapped, BackendError(wrapped))

	invalid := fmt.Errorf("%w: cannot embed empty text", domain.ErrInvalidArgument)
	assert.Equal(t, invalid, BackendError(invalid))
	assert.NotErrorIs(t, BackendError(invalid), domain.ErrEmbeddingBackend)
}

func TestEmbedAll_InvalidArgument(t *testing.T) {
	e := &lengthEmbedder{invalid: true}
	_, err := EmbedAll(context.Background(), e, []string{"a"}, 1)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.NotErrorIs(t, err, domain.ErrEmbeddingBackend)
}
