// Package index maintains the searchable chunk index and its on-disk form.
//
// An index directory holds three artifacts: chunks.json (chunk texts and
// offsets), vectors.bin (embedding vectors), and keyword/ (the full-text
// index). The keyword index persists itself on every insert; the other two
// are written on Save.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/bitunfold/docquery/internal/embedding"
	"github.com/bitunfold/docquery/internal/keyword"
	"github.com/bitunfold/docquery/internal/models"
	"github.com/bitunfold/docquery/internal/vector"
	"github.com/bitunfold/docquery/pkg/utils"
)

const (
	chunksFile  = "chunks.json"
	vectorsFile = "vectors.bin"
	keywordDir  = "keyword"

	// minCandidates bounds how many hits each retrieval arm contributes
	// before fusion so the fused ranking has material to work with.
	minCandidates = 50
)

// Handle is an open index. Reads and writes may interleave; writers hold the
// internal lock only long enough to append.
type Handle struct {
	mu       sync.RWMutex
	dir      string
	chunks   map[string]models.Chunk
	vectors  *vector.Index
	keywords *keyword.Index
	embedder embedding.Embedder

	semanticWeight float64
	keywordWeight  float64
	restored       bool
	logger         *zap.Logger
}

// Option configures a Handle.
type Option func(*Handle)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handle) {
		h.logger = logger
	}
}

// WithWeights sets the fusion weights for the semantic and keyword arms.
func WithWeights(semantic, kw float64) Option {
	return func(h *Handle) {
		if semantic > 0 || kw > 0 {
			h.semanticWeight = semantic
			h.keywordWeight = kw
		}
	}
}

// Open opens the index stored in dir, creating an empty one if the directory
// holds no index yet. A directory with unreadable or inconsistent artifacts
// yields an error; callers decide whether to rebuild.
func Open(dir string, embedder embedding.Embedder, opts ...Option) (*Handle, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	h := &Handle{
		dir:            dir,
		chunks:         make(map[string]models.Chunk),
		embedder:       embedder,
		semanticWeight: 0.5,
		keywordWeight:  0.5,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}

	kw, err := keyword.Open(filepath.Join(dir, keywordDir))
	if err != nil {
		return nil, err
	}
	h.keywords = kw

	if err := h.load(); err != nil {
		_ = kw.Close()
		return nil, err
	}
	if h.vectors == nil {
		h.vectors = vector.New(embedder.Dimensions())
	}
	return h, nil
}

func (h *Handle) load() error {
	data, err := os.ReadFile(filepath.Join(h.dir, chunksFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read chunk store: %w", err)
	}

	var stored []models.Chunk
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("parse chunk store: %w", err)
	}
	vectors, err := vector.Load(filepath.Join(h.dir, vectorsFile), h.embedder.Dimensions())
	if err != nil {
		return fmt.Errorf("load vectors: %w", err)
	}
	if vectors.Size() != len(stored) {
		return fmt.Errorf("index inconsistent: %d vectors for %d chunks", vectors.Size(), len(stored))
	}

	for _, ch := range stored {
		h.chunks[ch.ID] = ch
	}
	h.vectors = vectors
	h.restored = true
	h.logger.Info("index restored from disk",
		zap.String("dir", h.dir),
		zap.Int("chunks", len(stored)))
	return nil
}

// Restored reports whether Open found a persisted index in the directory.
func (h *Handle) Restored() bool {
	return h.restored
}

// InsertChunk embeds and indexes a single chunk.
func (h *Handle) InsertChunk(ctx context.Context, ch models.Chunk) error {
	vec, err := h.embedder.Embed(ctx, ch.Text)
	if err != nil {
		return fmt.Errorf("embed chunk %s: %w", ch.ID, err)
	}
	utils.NormalizeL2(vec)

	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.vectors.Add(ch.ID, vec); err != nil {
		return err
	}
	if err := h.keywords.Index(ctx, ch.ID, ch.DocID, ch.Text); err != nil {
		// The chunk map stays consistent with the vector arm; a missing
		// keyword posting only weakens ranking for this chunk.
		h.logger.Warn("keyword indexing failed",
			zap.String("chunk_id", ch.ID),
			zap.Error(err))
	}
	h.chunks[ch.ID] = ch
	return nil
}

// Retrieve returns the limit chunks most relevant to text, ranked by a
// weighted fusion of embedding similarity and keyword match scores.
func (h *Handle) Retrieve(ctx context.Context, text string, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	if h.Size() == 0 {
		return nil, nil
	}

	queryVec, err := h.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	utils.NormalizeL2(queryVec)

	candidates := limit * 10
	if candidates < minCandidates {
		candidates = minCandidates
	}

	vecMatches, err := h.vectors.Search(queryVec, candidates)
	if err != nil {
		return nil, err
	}
	kwResults, err := h.keywords.Search(ctx, text, candidates)
	if err != nil {
		return nil, err
	}

	fused := fuse(vecMatches, kwResults, h.semanticWeight, h.keywordWeight)
	if len(fused) > limit {
		fused = fused[:limit]
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]models.ScoredChunk, 0, len(fused))
	for _, f := range fused {
		ch, ok := h.chunks[f.id]
		if !ok {
			continue
		}
		out = append(out, models.ScoredChunk{Chunk: ch, Score: f.score})
	}
	return out, nil
}

type fusedHit struct {
	id    string
	score float64
}

// fuse combines both ranked lists. Each arm's scores are min-max normalized
// to [0, 1] so neither scale dominates, then weighted and summed.
func fuse(vecMatches []vector.Match, kwResults []keyword.Result, semW, kwW float64) []fusedHit {
	semantic := make(map[string]float64, len(vecMatches))
	for _, m := range vecMatches {
		semantic[m.ID] = float64(m.Score)
	}
	kw := make(map[string]float64, len(kwResults))
	for _, r := range kwResults {
		kw[r.ID] = r.Score
	}
	normalize(semantic)
	normalize(kw)

	combined := make(map[string]float64, len(semantic)+len(kw))
	for id, s := range semantic {
		combined[id] += semW * s
	}
	for id, s := range kw {
		combined[id] += kwW * s
	}

	hits := make([]fusedHit, 0, len(combined))
	for id, score := range combined {
		hits = append(hits, fusedHit{id: id, score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})
	return hits
}

func normalize(scores map[string]float64) {
	if len(scores) == 0 {
		return
	}
	min, max := 0.0, 0.0
	first := true
	for _, s := range scores {
		if first {
			min, max = s, s
			first = false
			continue
		}
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	if max == min {
		for id := range scores {
			scores[id] = 1
		}
		return
	}
	for id, s := range scores {
		scores[id] = (s - min) / (max - min)
	}
}

// Size reports the number of indexed chunks.
func (h *Handle) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chunks)
}

// Save writes the chunk store and vectors to the index directory. The
// keyword arm persists incrementally and needs no action here.
func (h *Handle) Save() error {
	h.mu.RLock()
	stored := make([]models.Chunk, 0, len(h.chunks))
	for _, ch := range h.chunks {
		stored = append(stored, ch)
	}
	h.mu.RUnlock()

	// Stable order keeps the chunk store diffable and aligned with the
	// consistency check in load.
	sort.Slice(stored, func(i, j int) bool { return stored[i].ID < stored[j].ID })

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode chunk store: %w", err)
	}
	if err := h.vectors.Save(filepath.Join(h.dir, vectorsFile)); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(h.dir, chunksFile), data, 0644); err != nil {
		return fmt.Errorf("write chunk store: %w", err)
	}
	return nil
}

// Dir reports the index directory.
func (h *Handle) Dir() string {
	return h.dir
}

// Close releases the keyword index. The in-memory arms need no teardown.
func (h *Handle) Close() error {
	return h.keywords.Close()
}
