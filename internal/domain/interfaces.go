package domain

import "context"

// Corpus names one independently indexed collection of chunks.
type Corpus string

const (
	// CorpusKnowledge is the long-lived background knowledge corpus.
	CorpusKnowledge Corpus = "knowledge"
	// CorpusUser is the per-session corpus built from an uploaded document.
	CorpusUser Corpus = "user"
)

// Corpora lists every corpus in rendering order.
var Corpora = []Corpus{CorpusKnowledge, CorpusUser}

// Valid reports whether c is a known corpus.
func (c Corpus) Valid() bool {
	return c == CorpusKnowledge || c == CorpusUser
}

// Document represents a single source file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is the minimal retrievable unit of text.
// Index is 0-based and contiguous within the chunking pass that produced it.
type Chunk struct {
	Text     string         `json:"text"`
	Index    int            `json:"index"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResult is a matching chunk with its distance to the query.
// Lower scores are more similar.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Embedder converts free text into a fixed-length numeric vector.
// One instance is shared by every index built with the same model.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
