// Package retrieval searches the permanent knowledge corpus and a session's
// uploaded corpus side by side. Each corpus keeps its own ranked list; scores
// from different corpora are never merged or compared.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"ragtutor/internal/domain"
	"ragtutor/internal/vectorstore"
)

// DefaultTopK is the per-corpus result count used when callers have no
// preference.
const DefaultTopK = 5

// Results holds one ranked list per requested corpus. Every requested corpus
// has a key, with an empty list when nothing was found there.
type Results map[domain.Corpus][]domain.SearchResult

// Empty reports whether no corpus returned anything.
func (r Results) Empty() bool {
	for _, list := range r {
		if len(list) > 0 {
			return false
		}
	}
	return true
}

// Total returns the number of results across all corpora.
func (r Results) Total() int {
	n := 0
	for _, list := range r {
		n += len(list)
	}
	return n
}

// Orchestrator owns the knowledge index and the embedder shared with every
// session's user index.
type Orchestrator struct {
	knowledge *vectorstore.Index
	embedder  domain.Embedder
}

// New creates an orchestrator over an existing knowledge index. A nil index
// is treated as an empty knowledge corpus.
func New(knowledge *vectorstore.Index, embedder domain.Embedder) *Orchestrator {
	if knowledge == nil {
		knowledge = vectorstore.New(embedder)
	}
	return &Orchestrator{knowledge: knowledge, embedder: embedder}
}

// Knowledge returns the knowledge corpus index.
func (o *Orchestrator) Knowledge() *vectorstore.Index { return o.knowledge }

// Retrieve searches each requested corpus with the same topK. With no corpora
// given, both are searched. An empty or absent corpus yields an empty list
// and never hides results from the other one.
func (o *Orchestrator) Retrieve(ctx context.Context, sess *Session, query string, topK int, corpora ...domain.Corpus) (Results, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	want, err := normalizeCorpora(corpora)
	if err != nil {
		return nil, err
	}
	if sess != nil {
		sess.setLastQuery(query)
	}

	lists := make([][]domain.SearchResult, len(want))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range want {
		ix := o.indexFor(sess, c)
		if ix == nil {
			continue
		}
		g.Go(func() error {
			res, err := ix.Search(gctx, query, topK)
			if err != nil {
				return fmt.Errorf("search %s corpus: %w", c, err)
			}
			lists[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make(Results, len(want))
	for i, c := range want {
		if lists[i] == nil {
			lists[i] = []domain.SearchResult{}
		}
		results[c] = lists[i]
	}
	attrs := []any{"corpora", want, "results", results.Total()}
	if sess != nil {
		attrs = append(attrs, "session_id", sess.ID)
	}
	slog.DebugContext(ctx, "retrieved", attrs...)
	return results, nil
}

func (o *Orchestrator) indexFor(sess *Session, c domain.Corpus) *vectorstore.Index {
	switch c {
	case domain.CorpusKnowledge:
		return o.knowledge
	case domain.CorpusUser:
		if sess == nil {
			return nil
		}
		return sess.Index
	}
	return nil
}

func normalizeCorpora(corpora []domain.Corpus) ([]domain.Corpus, error) {
	if len(corpora) == 0 {
		return slices.Clone(domain.Corpora), nil
	}
	out := make([]domain.Corpus, 0, len(corpora))
	for _, c := range corpora {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown corpus %q", domain.ErrInvalidArgument, c)
		}
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out, nil
}
