package embedding

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	m := NewMockEmbedder(64)
	a, err := m.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != 64 {
		t.Fatalf("got %d dimensions, want 64", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vector not deterministic at %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestMockEmbedderDistinctTexts(t *testing.T) {
	m := NewMockEmbedder(64)
	a, _ := m.Embed(context.Background(), "alpha")
	b, _ := m.Embed(context.Background(), "beta")
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts should embed to different vectors")
	}
}

func TestMockEmbedderNormalized(t *testing.T) {
	m := NewMockEmbedder(128)
	vec, _ := m.Embed(context.Background(), "some text")
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(norm)-1) > 1e-4 {
		t.Errorf("vector norm = %f, want 1", math.Sqrt(norm))
	}
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2)
	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	// a is now most recently used, so inserting c evicts b.
	c.Put("c", []float32{3})
	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("a should still be cached")
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("c should be cached")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestCacheIsolatesStoredVectors(t *testing.T) {
	c := NewCache(4)
	orig := []float32{1, 2, 3}
	c.Put("k", orig)

	// Callers keep writing to the slice they passed in.
	orig[0] = 99
	got, ok := c.Get("k")
	if !ok {
		t.Fatal("k should be cached")
	}
	if got[0] != 1 {
		t.Errorf("cached vector picked up caller mutation: %v", got)
	}

	// Callers also mutate what they get back (normalization in place).
	got[1] = -5
	again, _ := c.Get("k")
	if again[1] != 2 {
		t.Errorf("cache shares its backing array with callers: %v", again)
	}
}

func TestCacheDisabled(t *testing.T) {
	c := NewCache(0)
	c.Put("a", []float32{1})
	if _, ok := c.Get("a"); ok {
		t.Error("zero-capacity cache should never hit")
	}
}

func TestOllamaEmbedder(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test-model" {
			t.Errorf("model = %q", req.Model)
		}
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "test-model", 3, 16)
	defer e.Close()

	vec, err := e.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("got %d dimensions, want 3", len(vec))
	}

	// Second call for the same text must be served from the cache.
	if _, err := e.Embed(context.Background(), "some text"); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("API called %d times, want 1", calls)
	}
}

func TestOllamaEmbedderVectorsIndependent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.6, 0.8, 0}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "test-model", 3, 16)
	defer e.Close()
	ctx := context.Background()

	first, err := e.Embed(ctx, "same text")
	if err != nil {
		t.Fatal(err)
	}
	// Consumers normalize returned vectors in place and retain them; that
	// must not leak into what later callers receive for the same text.
	first[0], first[1] = -1, -1

	second, err := e.Embed(ctx, "same text")
	if err != nil {
		t.Fatal(err)
	}
	if second[0] != 0.6 || second[1] != 0.8 {
		t.Fatalf("second Embed returned mutated values %v, want [0.6 0.8 0]", second)
	}

	second[2] = 5
	third, err := e.Embed(ctx, "same text")
	if err != nil {
		t.Fatal(err)
	}
	if third[2] != 0 {
		t.Errorf("third Embed returned mutated values %v, want [0.6 0.8 0]", third)
	}
}

func TestOllamaEmbedderDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{0.1, 0.2}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "test-model", 3, 0)
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestOllamaEmbedderServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "test-model", 3, 0)
	if _, err := e.Embed(context.Background(), "text"); err == nil {
		t.Error("expected error for non-200 response")
	}
}
