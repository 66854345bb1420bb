// Package coordinator orchestrates ingestion, querying, and persistence of
// the document index.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/bitunfold/docquery/internal/archive"
	"github.com/bitunfold/docquery/internal/docstore"
	"github.com/bitunfold/docquery/internal/embedding"
	"github.com/bitunfold/docquery/internal/index"
	"github.com/bitunfold/docquery/internal/llm"
	"github.com/bitunfold/docquery/internal/models"
	"github.com/bitunfold/docquery/internal/persist"
	"github.com/bitunfold/docquery/internal/splitter"
	"github.com/bitunfold/docquery/pkg/utils"
)

// previewRunes is how much of a document the listing preview keeps.
const previewRunes = 200

// DocumentLoader turns a file path into document parts.
type DocumentLoader interface {
	Load(path string) ([]models.DocumentPart, error)
}

// Coordinator owns the index handle and serializes mutations. Queries and
// listings run without taking the mutation lock.
type Coordinator struct {
	mu    sync.Mutex
	ready atomic.Bool

	handle   *index.Handle
	previews *docstore.PreviewStore
	archive  *archive.Store

	persist  *persist.Manager
	loader   DocumentLoader
	splitter *splitter.Splitter
	embedder embedding.Embedder
	synth    llm.Synthesizer

	topK   int
	logger *zap.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithArchive attaches a full-document archive. Archive writes are best
// effort and never fail an insert.
func WithArchive(store *archive.Store) Option {
	return func(c *Coordinator) {
		c.archive = store
	}
}

// New returns an uninitialized Coordinator. Call Initialize before serving.
func New(pm *persist.Manager, loader DocumentLoader, split *splitter.Splitter,
	embedder embedding.Embedder, synth llm.Synthesizer, topK int, opts ...Option) *Coordinator {
	if topK <= 0 {
		topK = 2
	}
	c := &Coordinator{
		previews: docstore.NewPreviewStore(),
		persist:  pm,
		loader:   loader,
		splitter: split,
		embedder: embedder,
		synth:    synth,
		topK:     topK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize loads or creates the persisted index and the preview store.
// Calling it again after a successful initialization is a no-op: the live
// handle is never swapped out, so lock-free readers stay safe. State is
// already persisted by Insert; a fresh load needs a new Coordinator.
func (c *Coordinator) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ready.Load() {
		return nil
	}

	handle, restored, err := c.persist.LoadIndex(c.embedder)
	if err != nil {
		return fmt.Errorf("initialize index: %w", err)
	}
	if restored {
		c.logger.Info("existing index loaded", zap.Int("chunks", handle.Size()))
	} else {
		c.logger.Info("new index created")
		// Persist right away so the storage directory is valid even if
		// the process dies before the first insert.
		if err := c.persist.SaveIndex(handle); err != nil {
			c.logger.Warn("persisting new empty index", zap.Error(err))
		}
	}

	c.persist.LoadPreviews(c.previews)
	c.handle = handle
	c.ready.Store(true)
	return nil
}

// Query answers a question from indexed content. The response carries the
// synthesized answer plus the source chunks that grounded it.
func (c *Coordinator) Query(ctx context.Context, text string) (*models.QueryResponse, error) {
	if !c.ready.Load() {
		return nil, ErrNotReady
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: query text is empty", ErrInvalidArgument)
	}

	scored, err := c.handle.Retrieve(ctx, text, c.topK)
	if err != nil {
		c.logger.Error("retrieval failed", zap.Error(err))
		return nil, ErrQueryFailed
	}

	contexts := make([]string, 0, len(scored))
	for _, s := range scored {
		contexts = append(contexts, s.Chunk.Text)
	}
	answer, err := c.synth.Synthesize(ctx, text, contexts)
	if err != nil {
		c.logger.Error("answer synthesis failed", zap.Error(err))
		return nil, ErrQueryFailed
	}

	sources := make([]models.SourceNode, 0, len(scored))
	for _, s := range scored {
		start, end := s.Chunk.Start, s.Chunk.End
		sources = append(sources, models.SourceNode{
			Text:       s.Chunk.Text,
			Similarity: utils.Round2(s.Score),
			NodeID:     s.Chunk.ID,
			Start:      &start,
			End:        &end,
		})
	}
	return &models.QueryResponse{Text: answer, Sources: sources}, nil
}

// Insert ingests the file at path into the index. docID, when non-empty,
// overrides the document identity; otherwise the loader-assigned part ID is
// used, falling back to the file's base name. A file yielding no content is
// a no-op, and per-part failures skip the part without failing the call.
func (c *Coordinator) Insert(ctx context.Context, path, docID string) error {
	if !c.ready.Load() {
		return ErrNotReady
	}
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("%w: file path is empty", ErrInvalidArgument)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: file %s", ErrNotFound, path)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	parts, err := c.loader.Load(path)
	if err != nil {
		c.logger.Error("loading document failed",
			zap.String("path", path),
			zap.Error(err))
		return fmt.Errorf("load document: %w", err)
	}
	if len(parts) == 0 {
		c.logger.Warn("document yielded no content, skipping",
			zap.String("path", path))
		return nil
	}

	processed := 0
	for _, part := range parts {
		id := c.effectiveDocID(docID, part, path)
		chunks := c.splitter.Split(id, part.Text)

		inserted := 0
		for _, ch := range chunks {
			if err := c.handle.InsertChunk(ctx, ch); err != nil {
				c.logger.Warn("chunk insert failed, skipping",
					zap.String("doc_id", id),
					zap.String("chunk_id", ch.ID),
					zap.Error(err))
				continue
			}
			inserted++
		}
		if inserted == 0 {
			c.logger.Warn("no chunks indexed for document part",
				zap.String("doc_id", id),
				zap.String("path", path))
			continue
		}
		processed++

		c.previews.Set(id, utils.Preview(part.Text, previewRunes))
		if c.archive != nil {
			doc := models.Document{
				ID:       id,
				Title:    filepath.Base(path),
				Content:  part.Text,
				Metadata: part.Metadata,
			}
			if err := c.archive.Put(doc); err != nil {
				c.logger.Warn("archiving document failed",
					zap.String("doc_id", id),
					zap.Error(err))
			}
		}
		c.logger.Info("document indexed",
			zap.String("doc_id", id),
			zap.String("path", path),
			zap.Int("chunks", inserted))
	}

	if processed == 0 {
		c.logger.Info("nothing indexed, skipping persistence",
			zap.String("path", path))
		return nil
	}

	if err := c.persist.SaveIndex(c.handle); err != nil {
		c.logger.Error("persisting index failed", zap.Error(err))
	}
	if err := c.persist.SavePreviews(c.previews); err != nil {
		c.logger.Error("persisting previews failed", zap.Error(err))
	}
	return nil
}

func (c *Coordinator) effectiveDocID(docID string, part models.DocumentPart, path string) string {
	if docID != "" {
		return docID
	}
	if part.ID != "" {
		return part.ID
	}
	base := filepath.Base(path)
	c.logger.Warn("document part has no identity, using file name",
		zap.String("path", path),
		zap.String("doc_id", base))
	return base
}

// ListDocuments returns the preview listing. A store that lost its backing
// map is reloaded from disk first.
func (c *Coordinator) ListDocuments() []models.DocumentInfo {
	if !c.previews.Healthy() {
		c.logger.Warn("preview store unavailable, reloading from disk")
		c.persist.LoadPreviews(c.previews)
	}
	return c.previews.List()
}

// GetDocument returns the archived full document for id.
func (c *Coordinator) GetDocument(id string) (models.Document, error) {
	if c.archive == nil {
		return models.Document{}, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	doc, err := c.archive.Get(id)
	if errors.Is(err, archive.ErrDocumentNotFound) {
		return models.Document{}, fmt.Errorf("%w: document %s", ErrNotFound, id)
	}
	return doc, err
}

// Persist writes the current index and previews to disk. Used at shutdown;
// inserts already persist after each successful call.
func (c *Coordinator) Persist() error {
	if !c.ready.Load() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.persist.SaveIndex(c.handle); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	if err := c.persist.SavePreviews(c.previews); err != nil {
		return fmt.Errorf("persist previews: %w", err)
	}
	return nil
}

// Ready reports whether Initialize has completed.
func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

// ChunkCount reports the number of indexed chunks.
func (c *Coordinator) ChunkCount() int {
	if !c.ready.Load() {
		return 0
	}
	return c.handle.Size()
}

// DocumentCount reports the number of documents with previews.
func (c *Coordinator) DocumentCount() int {
	return c.previews.Len()
}

// DiskUsageBytes reports the on-disk footprint of the persisted state.
func (c *Coordinator) DiskUsageBytes() int64 {
	return c.persist.DiskUsageBytes()
}

// Close persists nothing and releases the index handle and archive.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ready.Store(false)
	var errs []error
	if c.handle != nil {
		if err := c.handle.Close(); err != nil {
			errs = append(errs, err)
		}
		c.handle = nil
	}
	if c.archive != nil {
		if err := c.archive.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
