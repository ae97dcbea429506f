package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragtutor/internal/domain"
)

func write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Text(t *testing.T) {
	path := write(t, "Notes.TXT", "line one\nline two")
	doc, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", doc.Content)
	assert.Equal(t, path, doc.Path)
	assert.Len(t, doc.ID, 16)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)
}

func TestLoad_PDF(t *testing.T) {
	path := filepath.Join("testdata", "photosynthesis.pdf")
	doc, err := Load(path)
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "Photosynthesis turns light into chemical energy.")
	assert.Equal(t, path, doc.Path)
	assert.NotEmpty(t, doc.ID)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
		want error
	}{
		{"Missing", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope.txt") }, domain.ErrInputNotFound},
		{"Unsupported", func(t *testing.T) string { return write(t, "slides.pptx", "x") }, domain.ErrInvalidArgument},
		{"Blank", func(t *testing.T) string { return write(t, "blank.txt", " \n\t ") }, domain.ErrMalformedInput},
		{"Broken PDF", func(t *testing.T) string { return write(t, "broken.pdf", "not a pdf") }, domain.ErrMalformedInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path(t))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported("a.pdf"))
	assert.True(t, Supported("b.JSON"))
	assert.True(t, Supported("c.md"))
	assert.False(t, Supported("d.docx"))
	assert.False(t, Supported("noext"))
}
