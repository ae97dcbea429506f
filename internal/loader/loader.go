// Package loader extracts raw text from uploaded files.
package loader

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"ragtutor/internal/domain"
)

// Supported reports whether Load understands the file's extension.
func Supported(path string) bool {
	switch ext(path) {
	case ".txt", ".md", ".pdf", ".json":
		return true
	}
	return false
}

// Load reads path into a Document. Text and JSON files are returned verbatim;
// PDFs are reduced to their plain text.
func Load(path string) (domain.Document, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Document{}, fmt.Errorf("%w: %s", domain.ErrInputNotFound, path)
		}
		return domain.Document{}, err
	}

	var (
		text string
		err  error
	)
	switch ext(path) {
	case ".txt", ".md", ".json":
		var data []byte
		data, err = os.ReadFile(path)
		text = string(data)
	case ".pdf":
		text, err = pdfText(path)
	default:
		return domain.Document{}, fmt.Errorf("%w: unsupported file type %q", domain.ErrInvalidArgument, filepath.Ext(path))
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %s: %w", domain.ErrMalformedInput, path, err)
	}
	if strings.TrimSpace(text) == "" {
		return domain.Document{}, fmt.Errorf("%w: no text extracted from %s", domain.ErrMalformedInput, path)
	}
	return domain.Document{ID: hashString(path), Path: path, Content: text}, nil
}

func pdfText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	b, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
