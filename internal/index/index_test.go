package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitunfold/docquery/internal/embedding"
	"github.com/bitunfold/docquery/internal/models"
)

func openTestHandle(t *testing.T, dir string) *Handle {
	t.Helper()
	h, err := Open(dir, embedding.NewMockEmbedder(64))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func insertChunks(t *testing.T, h *Handle, chunks ...models.Chunk) {
	t.Helper()
	for _, ch := range chunks {
		if err := h.InsertChunk(context.Background(), ch); err != nil {
			t.Fatalf("InsertChunk(%s): %v", ch.ID, err)
		}
	}
}

func TestInsertAndRetrieve(t *testing.T) {
	h := openTestHandle(t, filepath.Join(t.TempDir(), "idx"))
	insertChunks(t, h,
		models.Chunk{ID: "c1", DocID: "doc-1", Text: "solar panels convert sunlight into electricity", End: 46},
		models.Chunk{ID: "c2", DocID: "doc-2", Text: "bread is baked from flour water and yeast", End: 41},
	)

	results, err := h.Retrieve(context.Background(), "solar electricity", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Chunk.ID != "c1" {
		t.Errorf("best chunk = %q, want c1", results[0].Chunk.ID)
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %f, want > 0", results[0].Score)
	}
}

func TestRetrieveEmptyIndex(t *testing.T) {
	h := openTestHandle(t, filepath.Join(t.TempDir(), "idx"))
	results, err := h.Retrieve(context.Background(), "anything", 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestRetrieveLimit(t *testing.T) {
	h := openTestHandle(t, filepath.Join(t.TempDir(), "idx"))
	insertChunks(t, h,
		models.Chunk{ID: "c1", DocID: "d", Text: "one fish"},
		models.Chunk{ID: "c2", DocID: "d", Text: "two fish"},
		models.Chunk{ID: "c3", DocID: "d", Text: "red fish"},
	)
	results, err := h.Retrieve(context.Background(), "fish", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestSaveAndReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	emb := embedding.NewMockEmbedder(64)

	h, err := Open(dir, emb)
	if err != nil {
		t.Fatal(err)
	}
	if h.Restored() {
		t.Error("fresh index should not report restored")
	}
	insertChunks(t, h,
		models.Chunk{ID: "c1", DocID: "doc-1", Text: "archived knowledge about lighthouses", End: 36},
	)
	if err := h.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir, emb)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if !reopened.Restored() {
		t.Error("reopened index should report restored")
	}
	if reopened.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", reopened.Size())
	}
	results, err := reopened.Retrieve(context.Background(), "lighthouses", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Chunk.ID != "c1" {
		t.Errorf("results = %+v, want single chunk c1", results)
	}
	if results[0].Chunk.Text != "archived knowledge about lighthouses" {
		t.Errorf("chunk text not restored: %q", results[0].Chunk.Text)
	}
}

func TestOpenCorruptChunkStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "chunks.json"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir, embedding.NewMockEmbedder(64)); err == nil {
		t.Error("expected error for corrupt chunk store")
	}
}

func TestOpenMissingVectors(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "idx")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	// A chunk store without its vector file is inconsistent.
	if err := os.WriteFile(filepath.Join(dir, "chunks.json"),
		[]byte(`[{"id":"c1","doc_id":"d","text":"x","start":0,"end":1,"position":0}]`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(dir, embedding.NewMockEmbedder(64)); err == nil {
		t.Error("expected error for missing vector file")
	}
}

func TestFuseWeights(t *testing.T) {
	h := openTestHandle(t, filepath.Join(t.TempDir(), "idx"))
	if h.semanticWeight != 0.5 || h.keywordWeight != 0.5 {
		t.Errorf("default weights = %f, %f", h.semanticWeight, h.keywordWeight)
	}

	h2, err := Open(filepath.Join(t.TempDir(), "idx2"), embedding.NewMockEmbedder(64),
		WithWeights(0.7, 0.3))
	if err != nil {
		t.Fatal(err)
	}
	defer h2.Close()
	if h2.semanticWeight != 0.7 || h2.keywordWeight != 0.3 {
		t.Errorf("weights = %f, %f, want 0.7, 0.3", h2.semanticWeight, h2.keywordWeight)
	}
}
