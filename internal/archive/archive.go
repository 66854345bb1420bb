// Package archive stores full document content in SQLite for retrieval by ID.
package archive

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bitunfold/docquery/internal/models"
)

// ErrDocumentNotFound is returned by Get for unknown document IDs.
var ErrDocumentNotFound = errors.New("document not found")

// Store persists full documents in a SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the document archive at dbPath.
func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	metadata   TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// Put inserts or replaces the document with doc.ID.
func (s *Store) Put(doc models.Document) error {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	_, err = s.db.Exec(`
		INSERT INTO documents (id, title, content, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Content, string(metadata), doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store document %s: %w", doc.ID, err)
	}
	return nil
}

// Get returns the document with the given ID.
func (s *Store) Get(id string) (models.Document, error) {
	var doc models.Document
	var metadata string
	err := s.db.QueryRow(`
		SELECT id, title, content, metadata, created_at, updated_at
		FROM documents WHERE id = ?`, id).
		Scan(&doc.ID, &doc.Title, &doc.Content, &metadata, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Document{}, fmt.Errorf("%w: %s", ErrDocumentNotFound, id)
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("load document %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(metadata), &doc.Metadata); err != nil {
		return models.Document{}, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	return doc, nil
}

// Count reports the number of archived documents.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
