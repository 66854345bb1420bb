package keyword

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(filepath.Join(t.TempDir(), "keyword"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestIndexAndSearch(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()

	docs := map[string]string{
		"c1": "the solar panel generates electricity from sunlight",
		"c2": "wind turbines convert kinetic energy into power",
		"c3": "geothermal plants tap heat from the earth",
	}
	for id, text := range docs {
		if err := ix.Index(ctx, id, "doc-1", text); err != nil {
			t.Fatalf("Index(%s): %v", id, err)
		}
	}

	results, err := ix.Search(ctx, "solar electricity", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one hit")
	}
	if results[0].ID != "c1" {
		t.Errorf("best hit = %q, want c1", results[0].ID)
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %f, want > 0", results[0].Score)
	}
}

func TestSearchNoMatches(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()
	if err := ix.Index(ctx, "c1", "doc-1", "completely unrelated text"); err != nil {
		t.Fatal(err)
	}
	results, err := ix.Search(ctx, "zymurgy", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("got %d hits, want 0", len(results))
	}
}

func TestCount(t *testing.T) {
	ix := openTestIndex(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if err := ix.Index(ctx, id, "doc-1", "some text for "+id); err != nil {
			t.Fatal(err)
		}
	}
	n, err := ix.Count()
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Count() = %d, want 3", n)
	}
}

func TestReopenPersists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "keyword")
	ctx := context.Background()

	ix, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := ix.Index(ctx, "c1", "doc-1", "persistent content"); err != nil {
		t.Fatal(err)
	}
	if err := ix.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	results, err := reopened.Search(ctx, "persistent", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].ID != "c1" {
		t.Errorf("results = %+v, want single hit c1", results)
	}
}
