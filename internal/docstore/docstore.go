// Package docstore holds document previews for listing.
package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/bitunfold/docquery/internal/models"
)

// PreviewStore maps document IDs to short text previews. It is safe for
// concurrent use.
type PreviewStore struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewPreviewStore returns an empty store.
func NewPreviewStore() *PreviewStore {
	return &PreviewStore{entries: make(map[string]string)}
}

// Set stores the preview for a document, replacing any previous one.
func (s *PreviewStore) Set(docID, preview string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string]string)
	}
	s.entries[docID] = preview
}

// Get returns the preview for docID.
func (s *PreviewStore) Get(docID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	preview, ok := s.entries[docID]
	return preview, ok
}

// Len reports the number of stored previews.
func (s *PreviewStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// List returns all previews sorted by document ID.
func (s *PreviewStore) List() []models.DocumentInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.DocumentInfo, 0, len(s.entries))
	for id, preview := range s.entries {
		out = append(out, models.DocumentInfo{ID: id, Text: preview})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Healthy reports whether the store backing map is usable.
func (s *PreviewStore) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries != nil
}

// Reset discards all previews.
func (s *PreviewStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]string)
}

// Save writes the previews to path as JSON, overwriting any existing file.
func (s *PreviewStore) Save(path string) error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode previews: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write previews: %w", err)
	}
	return nil
}

// Load replaces the store contents with the file at path. A missing file
// resets to empty and returns nil. An unreadable or corrupt file also resets
// to empty but returns the error so callers can log the degradation.
func (s *PreviewStore) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.Reset()
		return nil
	}
	if err != nil {
		s.Reset()
		return fmt.Errorf("read previews: %w", err)
	}

	entries := make(map[string]string)
	if err := json.Unmarshal(data, &entries); err != nil {
		s.Reset()
		return fmt.Errorf("parse previews: %w", err)
	}
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}
