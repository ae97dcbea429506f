package chunker

import (
	"regexp"
	"strings"

	"ragtutor/internal/domain"
)

var paragraphBreak = regexp.MustCompile(`\n{2,}`)

// Paragraphs splits a merged corpus file on runs of two or more newlines.
// Every non-blank segment becomes one trimmed chunk without metadata.
func Paragraphs(text string) []domain.Chunk {
	var chunks []domain.Chunk
	for _, seg := range paragraphBreak.Split(text, -1) {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{Text: seg, Index: len(chunks)})
	}
	return chunks
}
