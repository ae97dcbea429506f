// Package assemble renders retrieval results into the labeled context text
// handed to the answer generator, plus one source record per chunk for
// citation display.
package assemble

import (
	"fmt"
	"strings"

	"github.com/rivo/uniseg"

	"ragtutor/internal/domain"
	"ragtutor/internal/retrieval"
)

const (
	DefaultPreviewLength = 200
	DefaultNothingFound  = "No relevant information was found. Upload a document or rephrase your question."

	ellipsis = "..."
)

// Label names a corpus in the context text: Section heads the corpus block
// and Tag prefixes each chunk.
type Label struct {
	Section string `yaml:"section"`
	Tag     string `yaml:"tag"`
}

// DefaultLabels returns the built-in corpus labels.
func DefaultLabels() map[domain.Corpus]Label {
	return map[domain.Corpus]Label{
		domain.CorpusKnowledge: {Section: "Background knowledge", Tag: "Background knowledge"},
		domain.CorpusUser:      {Section: "Uploaded document", Tag: "Document"},
	}
}

// Options configures an Assembler. Zero fields take the defaults.
type Options struct {
	PreviewLength       int
	Labels              map[domain.Corpus]Label
	NothingFoundMessage string
}

// SourceRecord describes one chunk that made it into the context.
type SourceRecord struct {
	Text   string        `json:"text"`
	Score  string        `json:"score"`
	Index  int           `json:"index"`
	Corpus domain.Corpus `json:"corpus"`
}

// Context is the assembled prompt material. When Empty is set, Text is the
// nothing-found message and must be shown to the user as is.
type Context struct {
	Text    string
	Sources []SourceRecord
	Empty   bool
}

type Assembler struct {
	opts Options
}

func New(opts Options) *Assembler {
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = DefaultPreviewLength
	}
	if opts.NothingFoundMessage == "" {
		opts.NothingFoundMessage = DefaultNothingFound
	}
	labels := DefaultLabels()
	for c, l := range opts.Labels {
		cur := labels[c]
		if l.Section != "" {
			cur.Section = l.Section
		}
		if l.Tag != "" {
			cur.Tag = l.Tag
		}
		labels[c] = cur
	}
	opts.Labels = labels
	return &Assembler{opts: opts}
}

// Assemble renders the knowledge section first, then the user section.
// Corpora without results are left out entirely.
func (a *Assembler) Assemble(results retrieval.Results) Context {
	if results.Empty() {
		return Context{Text: a.opts.NothingFoundMessage, Empty: true}
	}
	var parts []string
	var sources []SourceRecord
	for _, c := range domain.Corpora {
		list := results[c]
		if len(list) == 0 {
			continue
		}
		label := a.opts.Labels[c]
		parts = append(parts, "=== "+label.Section+" ===")
		for i, r := range list {
			parts = append(parts, fmt.Sprintf("[%s %d]\n%s", label.Tag, i+1, r.Chunk.Text))
			sources = append(sources, SourceRecord{
				Text:   Truncate(r.Chunk.Text, a.opts.PreviewLength),
				Score:  fmt.Sprintf("%.2f", r.Score),
				Index:  r.Chunk.Index,
				Corpus: c,
			})
		}
	}
	return Context{Text: strings.Join(parts, "\n\n"), Sources: sources}
}

// Truncate keeps the first n grapheme clusters of s and appends "..." when
// anything was cut. Clusters are never split, so combining marks and emoji
// sequences survive intact.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ellipsis
	}
	g := uniseg.NewGraphemes(s)
	count := 0
	for g.Next() {
		if count == n {
			start, _ := g.Positions()
			return s[:start] + ellipsis
		}
		count++
	}
	return s
}
