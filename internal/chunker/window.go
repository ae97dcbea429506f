package chunker

import (
	"fmt"
	"strings"

	"ragtutor/internal/domain"
)

// Window splits text into fixed-size character windows. Each window starts
// size-overlap characters after the previous one. Windows that are blank
// after trimming are dropped and do not consume an index.
func Window(text string, size, overlap int) ([]domain.Chunk, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidArgument, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidArgument, size, overlap)
	}
	runes := []rune(text)
	var chunks []domain.Chunk
	for start := 0; start < len(runes); start += size - overlap {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])
		if strings.TrimSpace(window) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text:  window,
			Index: len(chunks),
			Metadata: map[string]any{
				"start": start,
				"end":   end,
			},
		})
	}
	return chunks, nil
}

// WindowChunker adapts Window to the domain.Chunker interface.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker falls back to 500/50 when given an unusable size or overlap.
func NewWindowChunker(size, overlap int) *WindowChunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
		if size > 50 {
			overlap = 50
		}
	}
	return &WindowChunker{size: size, overlap: overlap}
}

func (c *WindowChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	chunks, err := Window(document.Content, c.size, c.overlap)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		if document.Path != "" {
			chunks[i].Metadata["source"] = document.Path
		}
	}
	return chunks, nil
}
