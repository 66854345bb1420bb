// Package keyword implements full-text chunk search backed by bleve.
package keyword

import (
	"context"
	"fmt"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}

// Index wraps a bleve full-text index over chunk text.
type Index struct {
	idx bleve.Index
}

// indexDoc is the shape stored in bleve for each chunk.
type indexDoc struct {
	Text  string `json:"text"`
	DocID string `json:"doc_id"`
}

// Open opens the bleve index at path, creating it if absent.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, buildMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}
	return &Index{idx: idx}, nil
}

func buildMapping() mapping.IndexMapping {
	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = standard.Name

	docIDField := bleve.NewTextFieldMapping()
	docIDField.Analyzer = keywordanalyzer.Name

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("text", textField)
	doc.AddFieldMappingsAt("doc_id", docIDField)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Index stores a chunk's text under id.
func (ix *Index) Index(ctx context.Context, id, docID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ix.idx.Index(id, indexDoc{Text: text, DocID: docID}); err != nil {
		return fmt.Errorf("index chunk %s: %w", id, err)
	}
	return nil
}

// Search returns up to limit chunks matching query, best first.
func (ix *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	mq := bleve.NewMatchQuery(query)
	mq.SetField("text")
	req := bleve.NewSearchRequestOptions(mq, limit, 0, false)

	res, err := ix.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, Result{ID: hit.ID, Score: hit.Score})
	}
	return results, nil
}

// Count reports the number of indexed chunks.
func (ix *Index) Count() (uint64, error) {
	return ix.idx.DocCount()
}

// Close releases the underlying bleve index.
func (ix *Index) Close() error {
	return ix.idx.Close()
}
