// Package persist coordinates loading and saving index state on disk.
package persist

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/bitunfold/docquery/internal/docstore"
	"github.com/bitunfold/docquery/internal/embedding"
	"github.com/bitunfold/docquery/internal/index"
)

// Manager owns the storage locations and the recovery policy: a broken index
// directory is rebuilt empty rather than refusing to start, and a broken
// preview file degrades to an empty listing.
type Manager struct {
	indexDir     string
	previewsPath string
	indexOpts    []index.Option
	logger       *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithIndexOptions forwards options to index.Open calls.
func WithIndexOptions(opts ...index.Option) Option {
	return func(m *Manager) {
		m.indexOpts = opts
	}
}

// NewManager returns a Manager for the given storage locations.
func NewManager(indexDir, previewsPath string, opts ...Option) *Manager {
	m := &Manager{
		indexDir:     indexDir,
		previewsPath: previewsPath,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadIndex opens the index directory. If the stored index cannot be read it
// is discarded and an empty index is created in its place; only a failure to
// rebuild is fatal. The restored flag reports whether persisted state was
// recovered.
func (m *Manager) LoadIndex(embedder embedding.Embedder) (*index.Handle, bool, error) {
	h, err := index.Open(m.indexDir, embedder, m.indexOpts...)
	if err == nil {
		return h, h.Restored(), nil
	}

	m.logger.Warn("stored index unusable, rebuilding empty",
		zap.String("dir", m.indexDir),
		zap.Error(err))
	if err := os.RemoveAll(m.indexDir); err != nil {
		return nil, false, fmt.Errorf("remove broken index: %w", err)
	}
	h, err = index.Open(m.indexDir, embedder, m.indexOpts...)
	if err != nil {
		return nil, false, fmt.Errorf("rebuild index: %w", err)
	}
	return h, false, nil
}

// SaveIndex persists the index to its directory.
func (m *Manager) SaveIndex(h *index.Handle) error {
	return h.Save()
}

// LoadPreviews fills the store from disk. Corruption is logged and degrades
// to an empty store; it never fails startup.
func (m *Manager) LoadPreviews(s *docstore.PreviewStore) {
	if err := s.Load(m.previewsPath); err != nil {
		m.logger.Warn("stored previews unusable, starting empty",
			zap.String("path", m.previewsPath),
			zap.Error(err))
	}
}

// SavePreviews writes the store to disk.
func (m *Manager) SavePreviews(s *docstore.PreviewStore) error {
	if dir := filepath.Dir(m.previewsPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create previews directory: %w", err)
		}
	}
	return s.Save(m.previewsPath)
}

// IndexDir reports the index directory path.
func (m *Manager) IndexDir() string {
	return m.indexDir
}

// DiskUsageBytes reports the total size of the index directory and the
// preview file.
func (m *Manager) DiskUsageBytes() int64 {
	var total int64
	_ = filepath.Walk(m.indexDir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if info, err := os.Stat(m.previewsPath); err == nil {
		total += info.Size()
	}
	return total
}
