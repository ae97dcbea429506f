package extract

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"ragtutor/internal/domain"
	"ragtutor/internal/fsutil"
)

// DocumentSeparator separates per-file text in a merged corpus file.
const DocumentSeparator = "\n\n"

// MergeDir extracts ko_txt text from every *.json file below dir, in sorted
// path order. Files that cannot be read or parsed are logged and skipped;
// files with no text are dropped.
func MergeDir(ctx context.Context, dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: input directory %s", domain.ErrInputNotFound, dir)
	}
	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk %s: %w", domain.ErrInputNotFound, dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no JSON files in %s", domain.ErrInputNotFound, dir)
	}
	sort.Strings(paths)

	var docs []string
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := extractFile(path)
		if err != nil {
			slog.WarnContext(ctx, "skipping knowledge file", "path", path, "error", err)
			continue
		}
		if strings.TrimSpace(text) != "" {
			docs = append(docs, text)
		}
	}
	slog.InfoContext(ctx, "merged knowledge files", "dir", dir, "files", len(paths), "documents", len(docs))
	return docs, nil
}

func extractFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInputNotFound, err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return "", nil
	}
	root, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return KoText(root), nil
}

// WriteMerged writes docs joined by DocumentSeparator to path.
func WriteMerged(path string, docs []string) error {
	merged := strings.Join(docs, DocumentSeparator)
	if err := fsutil.WriteFileAtomic(path, []byte(merged), 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrStorageWrite, path, err)
	}
	return nil
}

// ParseFile reads and parses a JSON document.
func ParseFile(path string) (*Node, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInputNotFound, path, err)
	}
	return Parse(raw)
}

// Validate reports whether path holds a well-formed JSON document.
func Validate(path string) error {
	_, err := ParseFile(path)
	return err
}
