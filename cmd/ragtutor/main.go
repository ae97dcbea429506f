package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"ragtutor/internal/assemble"
	"ragtutor/internal/chunker"
	"ragtutor/internal/config"
	"ragtutor/internal/domain"
	"ragtutor/internal/embedding/gemini"
	"ragtutor/internal/embedding/hashing"
	"ragtutor/internal/embedding/openai"
	"ragtutor/internal/extract"
	"ragtutor/internal/generator"
	"ragtutor/internal/retrieval"
	"ragtutor/internal/service"
	"ragtutor/internal/summarizer"
	"ragtutor/internal/tui"
	"ragtutor/internal/vectorstore"
)

const usage = `Usage:
  ragtutor [--config=config.yaml] [--upload=file]   start the console
  ragtutor [--config=config.yaml] index              rebuild the knowledge index
  ragtutor validate file.json ...                    check JSON files parse`

func main() {
	var cfgPath, upload string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragtutor/config.yaml if not provided)")
	flag.StringVar(&upload, "upload", "", "Document to load into the session before the console starts")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	if flag.Arg(0) == "validate" {
		os.Exit(validate(flag.Args()[1:]))
	}

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	console := flag.NArg() == 0
	closeLog, err := setupLogging(cfg.Log, console)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(context.Background(), cfg, flag.Arg(0), upload); err != nil {
		slog.Error("ragtutor failed", "error", err)
		closeLog()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, command, upload string) error {
	emb, closeEmb, err := newEmbedder(ctx, cfg.Embedder)
	if err != nil {
		return fmt.Errorf("embedder init failed: %w", err)
	}
	defer closeEmb()

	orch := retrieval.New(vectorstore.New(emb, vectorstore.WithConcurrency(cfg.Embedder.Concurrency)), emb)
	sessions := retrieval.NewSessions(orch, cfg.User.IndexDir)
	svc := service.NewRAGService(
		service.Options{
			KnowledgeInputDir:   cfg.Knowledge.InputDir,
			KnowledgeMergedPath: cfg.Knowledge.MergedPath,
			KnowledgeIndexDir:   cfg.Knowledge.IndexDir,
			UploadDir:           cfg.User.UploadDir,
			TopK:                cfg.Retrieval.TopK,
			SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		},
		orch,
		sessions,
		newChunker(cfg.Chunker),
		assemble.New(assembleOptions(cfg.Assemble)),
		newAnswerer(cfg.Generator),
		summarizer.NewFrequency(),
	)

	switch command {
	case "index":
		n, err := svc.IndexKnowledge(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("indexed %d knowledge chunks into %s\n", n, cfg.Knowledge.IndexDir)
		return nil
	case "":
	default:
		return fmt.Errorf("unknown command %q\n%s", command, usage)
	}

	// a broken knowledge index leaves the console usable with uploads only
	_ = svc.LoadKnowledge(ctx)

	sess := sessions.Create()
	defer sessions.Close(sess.ID)
	summary := ""
	if upload != "" {
		res, err := svc.Upload(ctx, sess, upload)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		summary = res.Summary
	}

	m := tui.New(svc, sess, summary)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func newEmbedder(ctx context.Context, cfg config.EmbedderConfig) (domain.Embedder, func(), error) {
	noop := func() {}
	switch cfg.Type {
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.BaseURL,
			APIKeyEnv:  cfg.APIKeyEnv,
			Model:      cfg.Model,
			Dimensions: cfg.Dimension,
			Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil
	case "gemini":
		e, err := gemini.NewEmbedder(ctx, gemini.Config{APIKeyEnv: cfg.APIKeyEnv, Model: cfg.Model})
		if err != nil {
			return nil, noop, err
		}
		return e, func() { _ = e.Close() }, nil
	default:
		return hashing.NewEmbedder(cfg.Dimension), noop, nil
	}
}

func newChunker(cfg config.ChunkerConfig) domain.Chunker {
	if cfg.Type == "sentence" {
		return chunker.NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences)
	}
	return chunker.NewWindowChunker(cfg.Size, cfg.Overlap)
}

// newAnswerer returns nil when no generator can be built; the console then
// only retrieves.
func newAnswerer(cfg config.GeneratorConfig) generator.Answerer {
	client, err := generator.NewClient(generator.Config{
		BaseURL:    cfg.BaseURL,
		APIKeyEnv:  cfg.APIKeyEnv,
		Model:      cfg.Model,
		MaxTokens:  cfg.MaxTokens,
		MaxRetries: cfg.MaxRetries,
		Timeout:    time.Duration(cfg.TimeoutSecs) * time.Second,
	})
	if err != nil {
		slog.Warn("answer generation disabled", "error", err)
		return nil
	}
	return client
}

func assembleOptions(cfg config.AssembleConfig) assemble.Options {
	labels := make(map[domain.Corpus]assemble.Label, len(cfg.Labels))
	for name, l := range cfg.Labels {
		labels[domain.Corpus(name)] = assemble.Label{Section: l.Section, Tag: l.Tag}
	}
	return assemble.Options{
		PreviewLength:       cfg.PreviewLength,
		Labels:              labels,
		NothingFoundMessage: cfg.NothingFound,
	}
}

// setupLogging installs the default slog logger. The console logs to a file;
// commands log to stderr.
func setupLogging(cfg config.LogConfig, console bool) (func(), error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	var w io.Writer = os.Stderr
	closeFn := func() {}
	if console {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	}
	slog.SetDefault(slog.New(h))
	return closeFn, nil
}

func validate(paths []string) int {
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	code := 0
	for _, p := range paths {
		if err := extract.Validate(p); err != nil {
			fmt.Printf("INVALID %s: %v\n", p, err)
			code = 1
			continue
		}
		fmt.Printf("ok      %s\n", p)
	}
	return code
}
