// Package llm synthesizes natural-language answers from retrieved context.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Synthesizer turns a question plus retrieved context passages into an answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, contexts []string) (string, error)
}

// buildPrompt assembles the grounding prompt sent to the model.
func buildPrompt(question string, contexts []string) string {
	var b strings.Builder
	b.WriteString("Use the following context to answer the question. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "Context %d:\n%s\n\n", i+1, c)
	}
	fmt.Fprintf(&b, "Question: %s\nAnswer:", question)
	return b.String()
}
