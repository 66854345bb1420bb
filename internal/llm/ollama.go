package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaSynthesizer generates answers via the Ollama completion API.
type OllamaSynthesizer struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaSynthesizer returns a synthesizer backed by the Ollama instance at
// baseURL using the given model.
func NewOllamaSynthesizer(baseURL, model string) *OllamaSynthesizer {
	return &OllamaSynthesizer{
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Synthesize answers the question grounded on the given context passages.
func (s *OllamaSynthesizer) Synthesize(ctx context.Context, question string, contexts []string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  s.model,
		Prompt: buildPrompt(question, contexts),
		Stream: false,
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call generation API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("generation API returned %d: %s", resp.StatusCode, msg)
	}

	var out ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	return strings.TrimSpace(out.Response), nil
}
