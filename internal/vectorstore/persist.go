package vectorstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"ragtutor/internal/domain"
	"ragtutor/internal/fsutil"
)

const (
	// VectorsFile holds the embedding matrix.
	VectorsFile = "index.bin"
	// ChunksFile holds the chunk list in matching order.
	ChunksFile = "chunks.gob"

	vectorsMagic = "RVI1"
	headerSize   = len(vectorsMagic) + 8
)

type chunkFile struct {
	Chunks []domain.Chunk
}

// Save writes the index to dir as VectorsFile and ChunksFile, replacing any
// previous contents. Each file is written atomically.
func (ix *Index) Save(dir string) error {
	ix.mu.RLock()
	entries, dim := ix.entries, ix.dimension
	ix.mu.RUnlock()

	chunks := make([]domain.Chunk, len(entries))
	for i, e := range entries {
		chunks[i] = e.chunk
	}
	var cbuf bytes.Buffer
	if err := gob.NewEncoder(&cbuf).Encode(chunkFile{Chunks: chunks}); err != nil {
		return fmt.Errorf("%w: encode chunks: %w", domain.ErrStorageWrite, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, VectorsFile), encodeVectors(entries, dim), 0o644); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	if err := fsutil.WriteFileAtomic(filepath.Join(dir, ChunksFile), cbuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageWrite, err)
	}
	slog.Info("index saved", "dir", dir, "chunks", len(entries), "dimension", dim)
	return nil
}

// Load replaces the index contents with the state saved in dir. Both files
// must exist and describe the same number of chunks, and the saved vectors
// must match the embedder's dimension when it reports one.
func (ix *Index) Load(dir string) error {
	raw, err := os.ReadFile(filepath.Join(dir, VectorsFile))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	dim, vectors, err := decodeVectors(raw)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrStorageRead, VectorsFile, err)
	}
	if want := ix.embedder.Dimension(); want > 0 && len(vectors) > 0 && dim != want {
		return fmt.Errorf("%w: saved dimension %d, embedder %s produces %d",
			domain.ErrStorageRead, dim, ix.embedder.Name(), want)
	}
	f, err := os.Open(filepath.Join(dir, ChunksFile))
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrStorageRead, err)
	}
	defer f.Close()
	var cf chunkFile
	if err := gob.NewDecoder(f).Decode(&cf); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrStorageRead, ChunksFile, err)
	}
	if len(cf.Chunks) != len(vectors) {
		return fmt.Errorf("%w: %d chunks but %d vectors", domain.ErrStorageRead, len(cf.Chunks), len(vectors))
	}
	entries := make([]entry, len(vectors))
	for i := range vectors {
		entries[i] = entry{chunk: cf.Chunks[i], vector: vectors[i]}
	}
	if len(entries) == 0 {
		entries, dim = nil, 0
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.dimension = dim
	ix.mu.Unlock()
	slog.Info("index loaded", "dir", dir, "chunks", len(entries), "dimension", dim)
	return nil
}

// encodeVectors stores: magic, dim(uint32), n(uint32), then n*dim float32,
// all little-endian.
func encodeVectors(entries []entry, dim int) []byte {
	out := make([]byte, 0, headerSize+4*dim*len(entries))
	out = append(out, vectorsMagic...)
	out = binary.LittleEndian.AppendUint32(out, uint32(dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(entries)))
	for _, e := range entries {
		for _, v := range e.vector {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out
}

func decodeVectors(data []byte) (int, [][]float32, error) {
	if len(data) < headerSize || string(data[:len(vectorsMagic)]) != vectorsMagic {
		return 0, nil, errors.New("not a vector index file")
	}
	off := len(vectorsMagic)
	dim := int(binary.LittleEndian.Uint32(data[off:]))
	n := int(binary.LittleEndian.Uint32(data[off+4:]))
	off = headerSize
	if n > 0 && dim == 0 {
		return 0, nil, errors.New("zero dimension with vectors present")
	}
	if uint64(dim)*uint64(n) > uint64(len(data)) {
		return 0, nil, fmt.Errorf("header claims %d x %d vectors in %d bytes", n, dim, len(data))
	}
	if want := headerSize + 4*dim*n; len(data) != want {
		return 0, nil, fmt.Errorf("size %d, want %d", len(data), want)
	}
	vectors := make([][]float32, n)
	for i := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
			off += 4
		}
		vectors[i] = vec
	}
	return dim, vectors, nil
}
