// Package vectorstore implements an exact nearest-neighbor index over chunks.
//
// An Index is built once from a full chunk list, optionally saved to and
// reloaded from a directory, and then searched concurrently. Build and Load
// swap in a complete new state; there is no incremental insert.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sort"
	"sync"

	"ragtutor/internal/domain"
	"ragtutor/internal/embedding"
)

// entry pairs a chunk with its embedding so the two can never drift apart.
type entry struct {
	chunk  domain.Chunk
	vector []float32
}

// Index is a brute-force squared-L2 index bound to one embedder.
type Index struct {
	embedder    domain.Embedder
	concurrency int

	mu        sync.RWMutex
	dimension int
	entries   []entry
}

// Option configures an Index.
type Option func(*Index)

// WithConcurrency bounds the number of parallel Embed calls during Build.
func WithConcurrency(n int) Option {
	return func(ix *Index) { ix.concurrency = n }
}

// New creates an empty index that embeds with e.
func New(e domain.Embedder, opts ...Option) *Index {
	ix := &Index{embedder: e, concurrency: embedding.DefaultConcurrency}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Build embeds every chunk and replaces the index contents. On failure the
// previous contents are kept. Building from zero chunks yields an empty index.
func (ix *Index) Build(ctx context.Context, chunks []domain.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedding.EmbedAll(ctx, ix.embedder, texts, ix.concurrency)
	if err != nil {
		return err
	}
	entries, dim, err := pair(chunks, vectors)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.dimension = dim
	ix.mu.Unlock()

	slog.InfoContext(ctx, "index built", "embedder", ix.embedder.Name(), "chunks", len(entries), "dimension", dim)
	return nil
}

func pair(chunks []domain.Chunk, vectors [][]float32) ([]entry, int, error) {
	if len(chunks) != len(vectors) {
		return nil, 0, fmt.Errorf("vectorstore: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil, 0, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, 0, fmt.Errorf("%w: empty embedding vector", domain.ErrEmbeddingBackend)
	}
	entries := make([]entry, len(chunks))
	for i := range chunks {
		if len(vectors[i]) != dim {
			return nil, 0, fmt.Errorf("%w: inconsistent vector dims %d vs %d", domain.ErrEmbeddingBackend, len(vectors[i]), dim)
		}
		entries[i] = entry{chunk: cloneChunk(chunks[i]), vector: vectors[i]}
	}
	return entries, dim, nil
}

func cloneChunk(c domain.Chunk) domain.Chunk {
	c.Metadata = maps.Clone(c.Metadata)
	return c
}

// Search returns up to topK chunks closest to query, nearest first. An empty
// index returns no results without calling the embedder.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	ix.mu.RLock()
	entries, dim := ix.entries, ix.dimension
	ix.mu.RUnlock()
	if len(entries) == 0 {
		return nil, nil
	}

	qv, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, embedding.BackendError(err)
	}
	if len(qv) != dim {
		return nil, fmt.Errorf("%w: query dim %d != index dim %d", domain.ErrEmbeddingBackend, len(qv), dim)
	}

	results := make([]domain.SearchResult, len(entries))
	for i, e := range entries {
		results[i] = domain.SearchResult{Chunk: e.chunk, Score: SquaredL2(qv, e.vector)}
	}
	sort.SliceStable(results, func(a, b int) bool { return results[a].Score < results[b].Score })
	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Dimension returns the vector size of the indexed embeddings, zero when empty.
func (ix *Index) Dimension() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dimension
}

// Chunks returns the indexed chunks in index order.
func (ix *Index) Chunks() []domain.Chunk {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]domain.Chunk, len(ix.entries))
	for i, e := range ix.entries {
		out[i] = e.chunk
	}
	return out
}

// Embedder returns the embedder the index is bound to.
func (ix *Index) Embedder() domain.Embedder { return ix.embedder }

// Replace swaps in the contents of src. Both indexes share the stored
// vectors afterwards; neither mutates them.
func (ix *Index) Replace(src *Index) {
	src.mu.RLock()
	entries, dim := src.entries, src.dimension
	src.mu.RUnlock()
	ix.mu.Lock()
	ix.entries, ix.dimension = entries, dim
	ix.mu.Unlock()
}
