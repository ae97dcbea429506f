package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	assert.Equal(t, 512, cfg.Embedder.Dimension)
	assert.Equal(t, "window", cfg.Chunker.Type)
	assert.Equal(t, 500, cfg.Chunker.Size)
	assert.Equal(t, 50, cfg.Chunker.Overlap)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 200, cfg.Assemble.PreviewLength)
	assert.Equal(t, filepath.Join("data", "index", "knowledge"), cfg.Knowledge.IndexDir)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FileValues(t *testing.T) {
	t.Chdir(t.TempDir())
	path := writeConfig(t, `
embedder:
  type: openai
chunker:
  type: window
  size: 300
  overlap: 0
retrieval:
  top_k: 3
assemble:
  labels:
    user:
      tag: 문서
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.APIKeyEnv)
	assert.Equal(t, 300, cfg.Chunker.Size)
	assert.Zero(t, cfg.Chunker.Overlap)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
	assert.Equal(t, "문서", cfg.Assemble.Labels["user"].Tag)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("RAGTUTOR_EMBEDDER_TYPE", "gemini")
	t.Setenv("RAGTUTOR_RETRIEVAL_TOP_K", "9")
	t.Setenv("RAGTUTOR_KNOWLEDGE_INDEX_DIR", "/srv/index")
	t.Setenv("RAGTUTOR_GENERATOR_API_KEY_ENV", "TUTOR_KEY")
	t.Setenv("TOP_K", "1")

	cfg, err := Load(writeConfig(t, "retrieval:\n  top_k: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Embedder.Type)
	assert.Equal(t, "gemini-embedding-001", cfg.Embedder.Model)
	assert.Equal(t, 9, cfg.Retrieval.TopK)
	assert.Equal(t, "/srv/index", cfg.Knowledge.IndexDir)
	assert.Equal(t, "TUTOR_KEY", cfg.Generator.APIKeyEnv)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RAGTUTOR_LOG_LEVEL=warn\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RAGTUTOR_LOG_LEVEL") })

	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name string
		body string
		want error
	}{
		{"Unknown Embedder", "embedder:\n  type: word2vec\n", ErrInvalidConfig},
		{"Overlap Too Large", "chunker:\n  size: 10\n  overlap: 10\n", ErrInvalidConfig},
		{"Unknown Chunker", "chunker:\n  type: semantic\n", ErrInvalidConfig},
		{"Sentence Overlap", "chunker:\n  type: sentence\n  sentences_per_chunk: 2\n  overlap_sentences: 2\n", ErrInvalidConfig},
		{"Negative TopK", "retrieval:\n  top_k: -1\n", ErrInvalidConfig},
		{"Bad Label Corpus", "assemble:\n  labels:\n    archive:\n      tag: x\n", ErrInvalidConfig},
		{"Bad Log Level", "log:\n  level: chatty\n", ErrInvalidConfig},
		{"Bad Log Format", "log:\n  format: xml\n", ErrInvalidConfig},
		{"Broken YAML", "embedder: [\n", ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	cfg := defaultConfig()
	cfg.Knowledge.IndexDir = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingRequired)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Save(path, defaultConfig()))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}
