package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt("what is up?", []string{"first passage", "second passage"})
	if !strings.Contains(prompt, "first passage") || !strings.Contains(prompt, "second passage") {
		t.Error("prompt should include all context passages")
	}
	if !strings.Contains(prompt, "Question: what is up?") {
		t.Error("prompt should include the question")
	}
	if strings.Index(prompt, "first passage") > strings.Index(prompt, "second passage") {
		t.Error("contexts should appear in order")
	}
}

func TestOllamaSynthesizer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Stream {
			t.Error("stream should be disabled")
		}
		if !strings.Contains(req.Prompt, "the retrieved passage") {
			t.Errorf("prompt missing context: %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(ollamaGenerateResponse{Response: "  the answer \n"})
	}))
	defer srv.Close()

	s := NewOllamaSynthesizer(srv.URL, "test-model")
	got, err := s.Synthesize(context.Background(), "a question", []string{"the retrieved passage"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if got != "the answer" {
		t.Errorf("answer = %q", got)
	}
}

func TestOllamaSynthesizerServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewOllamaSynthesizer(srv.URL, "test-model")
	if _, err := s.Synthesize(context.Background(), "q", nil); err == nil {
		t.Error("expected error for non-200 response")
	}
}
