// Package vector implements an in-memory dense vector index with disk
// persistence.
package vector

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
)

// Match is a single nearest-neighbor result.
type Match struct {
	ID    string
	Score float32
}

// Index is a brute-force vector index. Vectors are expected to be
// L2-normalized so the inner product equals cosine similarity.
type Index struct {
	mu      sync.RWMutex
	dims    int
	ids     []string
	vectors [][]float32
}

// New returns an empty index for vectors of the given dimensionality.
func New(dims int) *Index {
	return &Index{dims: dims}
}

// Add appends a vector under id. The vector length must match the index
// dimensionality.
func (ix *Index) Add(id string, vec []float32) error {
	if len(vec) != ix.dims {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(vec), ix.dims)
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.ids = append(ix.ids, id)
	ix.vectors = append(ix.vectors, vec)
	return nil
}

// Search returns up to limit entries closest to query, best first.
func (ix *Index) Search(query []float32, limit int) ([]Match, error) {
	if len(query) != ix.dims {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d", len(query), ix.dims)
	}
	if limit <= 0 {
		return nil, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	matches := make([]Match, 0, len(ix.ids))
	for i, vec := range ix.vectors {
		matches = append(matches, Match{ID: ix.ids[i], Score: dot(query, vec)})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// Size reports the number of stored vectors.
func (ix *Index) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.ids)
}

// Dimensions reports the index dimensionality.
func (ix *Index) Dimensions() int {
	return ix.dims
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

const (
	fileMagic   = "DQVX"
	fileVersion = uint32(1)
)

// Save writes the index to path atomically (write to temp, then rename).
func (ix *Index) Save(path string) error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create vector file: %w", err)
	}
	defer os.Remove(tmp)

	if err := ix.write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close vector file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace vector file: %w", err)
	}
	return nil
}

func (ix *Index) write(f *os.File) error {
	if _, err := f.WriteString(fileMagic); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	header := []uint32{fileVersion, uint32(ix.dims), uint32(len(ix.ids))}
	for _, v := range header {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	for i, id := range ix.ids {
		if err := binary.Write(f, binary.LittleEndian, uint32(len(id))); err != nil {
			return fmt.Errorf("write entry %d: %w", i, err)
		}
		if _, err := f.WriteString(id); err != nil {
			return fmt.Errorf("write entry %d: %w", i, err)
		}
		if err := binary.Write(f, binary.LittleEndian, ix.vectors[i]); err != nil {
			return fmt.Errorf("write entry %d: %w", i, err)
		}
	}
	return nil
}

// Load reads an index from path. The file's dimensionality must match dims.
// A missing file surfaces as an fs.ErrNotExist error from os.Open.
func Load(path string, dims int) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, len(fileMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(magic) != fileMagic {
		return nil, fmt.Errorf("not a vector index file: bad magic %q", magic)
	}
	var version, fileDims, count uint32
	for _, p := range []*uint32{&version, &fileDims, &count} {
		if err := binary.Read(f, binary.LittleEndian, p); err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
	}
	if version != fileVersion {
		return nil, fmt.Errorf("unsupported vector file version %d", version)
	}
	if int(fileDims) != dims {
		return nil, fmt.Errorf("vector file has %d dimensions, expected %d", fileDims, dims)
	}

	ix := New(dims)
	ix.ids = make([]string, 0, count)
	ix.vectors = make([][]float32, 0, count)
	for i := uint32(0); i < count; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		if idLen > 4096 {
			return nil, fmt.Errorf("read entry %d: id length %d out of range", i, idLen)
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(f, id); err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		vec := make([]float32, dims)
		if err := binary.Read(f, binary.LittleEndian, vec); err != nil {
			return nil, fmt.Errorf("read entry %d: %w", i, err)
		}
		ix.ids = append(ix.ids, string(id))
		ix.vectors = append(ix.vectors, vec)
	}
	return ix, nil
}
