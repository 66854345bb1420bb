package llm

import (
	"context"
	"fmt"
)

// MockSynthesizer returns a canned answer echoing the question and the number
// of context passages. Useful for tests and for running without a model.
type MockSynthesizer struct{}

// NewMockSynthesizer returns a MockSynthesizer.
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

// Synthesize returns a deterministic summary of the request.
func (m *MockSynthesizer) Synthesize(_ context.Context, question string, contexts []string) (string, error) {
	return fmt.Sprintf("answer to %q based on %d passages", question, len(contexts)), nil
}
