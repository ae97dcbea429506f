package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"ragtutor/internal/assemble"
	"ragtutor/internal/chunker"
	"ragtutor/internal/domain"
	"ragtutor/internal/extract"
	"ragtutor/internal/fsutil"
	"ragtutor/internal/generator"
	"ragtutor/internal/loader"
	"ragtutor/internal/retrieval"
)

// ErrNoAnswerer is returned by Ask when no generator is configured.
var ErrNoAnswerer = errors.New("no answer generator configured")

// Mode selects which corpora a question is answered from.
type Mode string

const (
	ModeBoth      Mode = "both"
	ModeKnowledge Mode = "knowledge"
	ModeUser      Mode = "user"
)

// Corpora returns the corpora searched in mode m.
func (m Mode) Corpora() ([]domain.Corpus, error) {
	switch m {
	case ModeBoth, "":
		return []domain.Corpus{domain.CorpusKnowledge, domain.CorpusUser}, nil
	case ModeKnowledge:
		return []domain.Corpus{domain.CorpusKnowledge}, nil
	case ModeUser:
		return []domain.Corpus{domain.CorpusUser}, nil
	}
	return nil, fmt.Errorf("%w: unknown mode %q", domain.ErrInvalidArgument, m)
}

// Options holds the paths and limits the service works with.
type Options struct {
	KnowledgeInputDir   string
	KnowledgeMergedPath string
	KnowledgeIndexDir   string
	// UploadDir keeps a copy of every uploaded file under <UploadDir>/<session id>.
	// Empty disables the copy.
	UploadDir           string
	TopK                int
	SummaryMaxSentences int
}

// Answer is the result of Ask. When Context.Empty is set, Text is the
// nothing-found message and no generator call was made.
type Answer struct {
	Text    string
	Context assemble.Context
	Results retrieval.Results
}

// UploadResult describes a replaced user corpus.
type UploadResult struct {
	Document string
	Chunks   int
	Summary  string
}

type RAGServiceImpl struct {
	opts       Options
	orch       *retrieval.Orchestrator
	sessions   *retrieval.Sessions
	chunker    domain.Chunker
	assembler  *assemble.Assembler
	answerer   generator.Answerer
	summarizer domain.Summarizer
}

// NewRAGService wires the service. answerer may be nil, in which case only
// retrieval is available.
func NewRAGService(opts Options, orch *retrieval.Orchestrator, sessions *retrieval.Sessions, chunker domain.Chunker, assembler *assemble.Assembler, answerer generator.Answerer, summarizer domain.Summarizer) *RAGServiceImpl {
	if opts.TopK <= 0 {
		opts.TopK = retrieval.DefaultTopK
	}
	return &RAGServiceImpl{
		opts:       opts,
		orch:       orch,
		sessions:   sessions,
		chunker:    chunker,
		assembler:  assembler,
		answerer:   answerer,
		summarizer: summarizer,
	}
}

// Sessions returns the session manager.
func (s *RAGServiceImpl) Sessions() *retrieval.Sessions { return s.sessions }

// IndexKnowledge rebuilds the knowledge corpus from the structured sources:
// extract and merge, write the merged file, split it into paragraphs, build
// the index, and save it. It returns the number of indexed chunks.
func (s *RAGServiceImpl) IndexKnowledge(ctx context.Context) (int, error) {
	docs, err := extract.MergeDir(ctx, s.opts.KnowledgeInputDir)
	if err != nil {
		return 0, err
	}
	if s.opts.KnowledgeMergedPath != "" {
		if err := extract.WriteMerged(s.opts.KnowledgeMergedPath, docs); err != nil {
			return 0, err
		}
	}
	chunks := chunker.Paragraphs(strings.Join(docs, extract.DocumentSeparator))
	knowledge := s.orch.Knowledge()
	if err := knowledge.Build(ctx, chunks); err != nil {
		return 0, fmt.Errorf("build knowledge index: %w", err)
	}
	if err := knowledge.Save(s.opts.KnowledgeIndexDir); err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "knowledge indexed", "documents", len(docs), "chunks", len(chunks), "index_dir", s.opts.KnowledgeIndexDir)
	return len(chunks), nil
}

// LoadKnowledge loads the saved knowledge index if one exists. A missing
// index is not an error. A failed load is logged and returned, and the
// corpus stays as it was so the caller can carry on in degraded mode.
func (s *RAGServiceImpl) LoadKnowledge(ctx context.Context) error {
	dir := s.opts.KnowledgeIndexDir
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		slog.InfoContext(ctx, "no knowledge index yet", "index_dir", dir)
		return nil
	}
	if err := s.orch.Knowledge().Load(dir); err != nil {
		slog.WarnContext(ctx, "knowledge index unavailable, continuing without it", "index_dir", dir, "error", err)
		return err
	}
	return nil
}

// Upload extracts the file at path and makes it the session's user corpus.
// JSON files are flattened field by field; everything else goes through the
// configured chunker.
func (s *RAGServiceImpl) Upload(ctx context.Context, sess *retrieval.Session, path string) (UploadResult, error) {
	doc, err := loader.Load(path)
	if err != nil {
		return UploadResult{}, err
	}
	var chunks []domain.Chunk
	summarySource := doc.Content
	if strings.EqualFold(filepath.Ext(path), ".json") {
		root, err := extract.Parse([]byte(doc.Content))
		if err != nil {
			return UploadResult{}, err
		}
		if chunks, err = extract.Flatten(root, extract.FlattenOptions{}); err != nil {
			return UploadResult{}, err
		}
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		summarySource = strings.Join(texts, "\n")
	} else if chunks, err = s.chunker.Chunk(doc); err != nil {
		return UploadResult{}, err
	}
	if len(chunks) == 0 {
		return UploadResult{}, fmt.Errorf("%w: %s produced no chunks", domain.ErrMalformedInput, path)
	}

	name := filepath.Base(path)
	if err := s.keepUpload(sess, path, name); err != nil {
		return UploadResult{}, err
	}
	if err := s.sessions.Upload(ctx, sess, name, chunks); err != nil {
		return UploadResult{}, err
	}
	res := UploadResult{Document: name, Chunks: len(chunks)}
	if s.summarizer != nil {
		summary, err := s.summarizer.Summarize(summarySource, s.opts.SummaryMaxSentences)
		if err != nil {
			slog.WarnContext(ctx, "summary failed", "document", name, "error", err)
		}
		res.Summary = summary
	}
	return res, nil
}

func (s *RAGServiceImpl) keepUpload(sess *retrieval.Session, path, name string) error {
	if s.opts.UploadDir == "" {
		return nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	dst := filepath.Join(s.opts.UploadDir, sess.ID.String(), name)
	if err := fsutil.WriteFileAtomic(dst, raw, 0o644); err != nil {
		return fmt.Errorf("%w: keep upload: %w", domain.ErrStorageWrite, err)
	}
	return nil
}

// Retrieve searches the corpora of mode and assembles the context without
// calling the generator.
func (s *RAGServiceImpl) Retrieve(ctx context.Context, sess *retrieval.Session, question string, mode Mode) (retrieval.Results, assemble.Context, error) {
	corpora, err := mode.Corpora()
	if err != nil {
		return nil, assemble.Context{}, err
	}
	results, err := s.orch.Retrieve(ctx, sess, question, s.opts.TopK, corpora...)
	if err != nil {
		return nil, assemble.Context{}, err
	}
	return results, s.assembler.Assemble(results), nil
}

// Ask answers question from the corpora of mode. When nothing relevant is
// found the nothing-found message is returned as the answer.
func (s *RAGServiceImpl) Ask(ctx context.Context, sess *retrieval.Session, question string, mode Mode) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, fmt.Errorf("%w: empty question", domain.ErrInvalidArgument)
	}
	results, assembled, err := s.Retrieve(ctx, sess, question, mode)
	if err != nil {
		return Answer{}, err
	}
	ans := Answer{Context: assembled, Results: results}
	if assembled.Empty {
		ans.Text = assembled.Text
		return ans, nil
	}
	if s.answerer == nil {
		return ans, ErrNoAnswerer
	}
	text, err := s.answerer.Answer(ctx, assembled.Text, question)
	if err != nil {
		return ans, err
	}
	ans.Text = text
	return ans, nil
}
