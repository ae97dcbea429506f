package chunker

import (
	"regexp"
	"strings"

	"ragtutor/internal/domain"
)

// sentenceEnd matches one sentence: text up to Latin or CJK terminal
// punctuation, a line break, or the end of input.
var sentenceEnd = regexp.MustCompile(`[^.!?。！？\n]+(?:[.!?。！？]+|\n|$)`)

// SentenceChunker groups consecutive sentences into chunks, repeating the
// last overlapSentences of each chunk at the start of the next.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 || overlapSentences >= sentencesPerChunk {
		overlapSentences = 0
	}
	return &SentenceChunker{sentencesPerChunk: sentencesPerChunk, overlapSentences: overlapSentences}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	sentences := Sentences(document.Content)
	var chunks []domain.Chunk
	for first := 0; first < len(sentences); {
		last := min(first+c.sentencesPerChunk, len(sentences))
		chunk := domain.Chunk{
			Text:     strings.Join(sentences[first:last], " "),
			Index:    len(chunks),
			Metadata: map[string]any{"first_sentence": first, "last_sentence": last - 1},
		}
		if document.Path != "" {
			chunk.Metadata["source"] = document.Path
		}
		chunks = append(chunks, chunk)
		if last == len(sentences) {
			break
		}
		first = last - c.overlapSentences
	}
	return chunks, nil
}

// Sentences splits text into trimmed, non-empty sentences.
func Sentences(text string) []string {
	var out []string
	for _, s := range sentenceEnd.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
