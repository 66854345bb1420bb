// Package models defines core data structures for documents, chunks, and query results.
package models

import "time"

// DocumentPart is one loadable unit of a source file. Most formats yield a
// single part. The loader assigns each part a generated ID; callers may
// override it with an explicit document ID at insertion time.
type DocumentPart struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Chunk is a fixed-size slice of a document part as held by the index.
// Start and End are rune offsets into the originating document text.
type Chunk struct {
	ID       string `json:"id"`
	DocID    string `json:"doc_id"`
	Text     string `json:"text"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Position int    `json:"position"`
}

// ScoredChunk is a chunk returned from retrieval with its fused similarity score.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// DocumentInfo is a listing entry: document ID plus its stored preview text.
type DocumentInfo struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Document is a fully archived document, kept alongside the index so the
// complete text can be retrieved by ID after ingestion.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
