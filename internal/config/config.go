package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingRequired = errors.New("missing required configuration")
	ErrInvalidConfig   = errors.New("invalid configuration")
)

// EnvPrefix prefixes every environment override, e.g. RAGTUTOR_EMBEDDER_TYPE.
const EnvPrefix = "RAGTUTOR"

// EmbedderConfig selects and configures the text embedder shared by both corpora.
type EmbedderConfig struct {
	Type        string `yaml:"type"`
	Dimension   int    `yaml:"dimension"`
	Model       string `yaml:"model,omitempty"`
	BaseURL     string `yaml:"base_url,omitempty" split_words:"true"`
	APIKeyEnv   string `yaml:"api_key_env,omitempty" split_words:"true"`
	TimeoutSecs int    `yaml:"timeout_secs,omitempty" split_words:"true"`
	Concurrency int    `yaml:"concurrency"`
}

// ChunkerConfig configures how uploaded documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	Size              int    `yaml:"size"`
	Overlap           int    `yaml:"overlap"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk" split_words:"true"`
	OverlapSentences  int    `yaml:"overlap_sentences" split_words:"true"`
}

// KnowledgeConfig locates the structured sources and the persisted knowledge index.
type KnowledgeConfig struct {
	InputDir   string `yaml:"input_dir" split_words:"true"`
	MergedPath string `yaml:"merged_path" split_words:"true"`
	IndexDir   string `yaml:"index_dir" split_words:"true"`
}

// UserConfig locates per-session user indexes and uploaded file copies.
type UserConfig struct {
	IndexDir  string `yaml:"index_dir" split_words:"true"`
	UploadDir string `yaml:"upload_dir" split_words:"true"`
}

type RetrievalConfig struct {
	TopK int `yaml:"top_k" split_words:"true"`
}

// LabelConfig names a corpus in the assembled context.
type LabelConfig struct {
	Section string `yaml:"section,omitempty"`
	Tag     string `yaml:"tag,omitempty"`
}

type AssembleConfig struct {
	PreviewLength int                    `yaml:"preview_length" split_words:"true"`
	NothingFound  string                 `yaml:"nothing_found,omitempty" split_words:"true"`
	Labels        map[string]LabelConfig `yaml:"labels,omitempty" ignored:"true"`
}

// GeneratorConfig configures the chat model that writes answers.
type GeneratorConfig struct {
	Model       string `yaml:"model"`
	BaseURL     string `yaml:"base_url,omitempty" split_words:"true"`
	APIKeyEnv   string `yaml:"api_key_env" split_words:"true"`
	MaxTokens   int    `yaml:"max_tokens" split_words:"true"`
	MaxRetries  int    `yaml:"max_retries" split_words:"true"`
	TimeoutSecs int    `yaml:"timeout_secs" split_words:"true"`
}

type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences" split_words:"true"`
}

// LogConfig configures the default slog logger. File receives the console's
// logs so they do not draw over the terminal UI.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	User       UserConfig       `yaml:"user"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Assemble   AssembleConfig   `yaml:"assemble"`
	Generator  GeneratorConfig  `yaml:"generator"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from path; a missing file means all defaults. A .env
// file in the working directory is loaded first, then RAGTUTOR_* environment
// variables override file values before defaults fill the gaps.
func Load(path string) (*AppConfig, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/ragtutor/config.yaml.
// If neither exists, it writes defaults to ~/.config/ragtutor/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err != nil {
		if err := Save(userPath, defaultConfig()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readFile(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &AppConfig{}, nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return &cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	// Ignore errors, the variables may already be set in the shell.
	_ = godotenv.Load(".env")
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragtutor", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	setDefault(&cfg.Embedder.Type, "hashing")
	setDefaultInt(&cfg.Embedder.Concurrency, 8)
	switch cfg.Embedder.Type {
	case "hashing":
		setDefaultInt(&cfg.Embedder.Dimension, 512)
	case "openai":
		setDefault(&cfg.Embedder.BaseURL, "https://api.openai.com/v1")
		setDefault(&cfg.Embedder.APIKeyEnv, "OPENAI_API_KEY")
		setDefault(&cfg.Embedder.Model, "text-embedding-3-small")
		setDefaultInt(&cfg.Embedder.TimeoutSecs, 30)
	case "gemini":
		setDefault(&cfg.Embedder.APIKeyEnv, "GEMINI_API_KEY")
		setDefault(&cfg.Embedder.Model, "gemini-embedding-001")
	}

	setDefault(&cfg.Chunker.Type, "window")
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 500
		setDefaultInt(&cfg.Chunker.Overlap, 50)
	}
	setDefaultInt(&cfg.Chunker.SentencesPerChunk, 5)

	setDefault(&cfg.Knowledge.InputDir, filepath.Join("data", "knowledge"))
	setDefault(&cfg.Knowledge.MergedPath, filepath.Join("data", "merged", "knowledge.txt"))
	setDefault(&cfg.Knowledge.IndexDir, filepath.Join("data", "index", "knowledge"))
	setDefault(&cfg.User.IndexDir, filepath.Join("data", "index", "user"))
	setDefault(&cfg.User.UploadDir, filepath.Join("data", "uploads"))

	setDefaultInt(&cfg.Retrieval.TopK, 5)
	setDefaultInt(&cfg.Assemble.PreviewLength, 200)

	setDefault(&cfg.Generator.Model, "gpt-4o-mini")
	setDefault(&cfg.Generator.APIKeyEnv, "OPENAI_API_KEY")
	setDefaultInt(&cfg.Generator.MaxTokens, 1200)
	setDefaultInt(&cfg.Generator.MaxRetries, 2)
	setDefaultInt(&cfg.Generator.TimeoutSecs, 60)

	setDefaultInt(&cfg.Summarizer.MaxSentences, 5)
	setDefault(&cfg.Log.Level, "info")
	setDefault(&cfg.Log.Format, "text")
	setDefault(&cfg.Log.File, "ragtutor.log")
}

func setDefault(field *string, v string) {
	if *field == "" {
		*field = v
	}
}

func setDefaultInt(field *int, v int) {
	if *field == 0 {
		*field = v
	}
}

// Validate checks the settings the application cannot run without.
func (c *AppConfig) Validate() error {
	switch c.Embedder.Type {
	case "hashing", "openai", "gemini":
	default:
		return fmt.Errorf("%w: embedder.type %q", ErrInvalidConfig, c.Embedder.Type)
	}
	if c.Embedder.Type != "hashing" && c.Embedder.Model == "" {
		return fmt.Errorf("%w: embedder.model", ErrMissingRequired)
	}

	switch c.Chunker.Type {
	case "window":
		if c.Chunker.Size <= 0 || c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.Size {
			return fmt.Errorf("%w: chunker size %d / overlap %d", ErrInvalidConfig, c.Chunker.Size, c.Chunker.Overlap)
		}
	case "sentence":
		if c.Chunker.SentencesPerChunk <= 0 || c.Chunker.OverlapSentences < 0 || c.Chunker.OverlapSentences >= c.Chunker.SentencesPerChunk {
			return fmt.Errorf("%w: chunker sentences %d / overlap %d", ErrInvalidConfig, c.Chunker.SentencesPerChunk, c.Chunker.OverlapSentences)
		}
	default:
		return fmt.Errorf("%w: chunker.type %q", ErrInvalidConfig, c.Chunker.Type)
	}

	if c.Knowledge.IndexDir == "" {
		return fmt.Errorf("%w: knowledge.index_dir", ErrMissingRequired)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive", ErrInvalidConfig)
	}
	for name := range c.Assemble.Labels {
		if name != "knowledge" && name != "user" {
			return fmt.Errorf("%w: assemble.labels: unknown corpus %q", ErrInvalidConfig, name)
		}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level as a slog level name.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("%w: log.level %q", ErrInvalidConfig, l.Level)
	}
	return lvl, nil
}
