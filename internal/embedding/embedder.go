package embedding

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"ragtutor/internal/domain"
)

// DefaultConcurrency limits in-flight Embed calls during a batch.
const DefaultConcurrency = 8

// BackendError marks err as an embedding backend failure unless it already is
// one or the caller passed an invalid argument.
func BackendError(err error) error {
	if err == nil || errors.Is(err, domain.ErrEmbeddingBackend) || errors.Is(err, domain.ErrInvalidArgument) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrEmbeddingBackend, err)
}

// EmbedAll embeds texts with at most concurrency calls in flight and returns
// vectors in input order. The first failure cancels the remaining calls.
func EmbedAll(ctx context.Context, e domain.Embedder, texts []string, concurrency int) ([][]float32, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	vectors := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range texts {
		g.Go(func() error {
			v, err := e.Embed(gctx, texts[i])
			if err != nil {
				return fmt.Errorf("embed text %d: %w", i, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, BackendError(err)
	}
	return vectors, nil
}
