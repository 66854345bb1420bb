// Package splitter cuts document text into fixed-size chunks for indexing.
package splitter

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/bitunfold/docquery/internal/models"
)

// DefaultChunkSize is the chunk window in runes used when none is configured.
const DefaultChunkSize = 512

// Splitter splits text into chunks of at most chunkSize runes, breaking at
// the last whitespace inside the window when possible so words stay intact.
type Splitter struct {
	chunkSize int
}

// New returns a Splitter with the given chunk size in runes. Non-positive
// sizes fall back to DefaultChunkSize.
func New(chunkSize int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Splitter{chunkSize: chunkSize}
}

// Split cuts text into chunks attributed to docID. Offsets are rune indexes
// into the original text. Whitespace-only windows are skipped.
func (s *Splitter) Split(docID, text string) []models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []models.Chunk
	position := 0
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			// Break at the last whitespace in the window so words are
			// not cut mid-way. Fall back to a hard cut if the window
			// contains none.
			if brk := lastSpace(runes[start:end]); brk > 0 {
				end = start + brk
			}
		}

		chunkText := string(runes[start:end])
		if strings.TrimSpace(chunkText) != "" {
			chunks = append(chunks, models.Chunk{
				ID:       chunkID(docID),
				DocID:    docID,
				Text:     chunkText,
				Start:    start,
				End:      end,
				Position: position,
			})
			position++
		}
		start = end
		// Skip the whitespace we broke on so the next chunk starts
		// at a word boundary.
		for start < len(runes) && unicode.IsSpace(runes[start]) {
			start++
		}
	}
	return chunks
}

// ChunkSize reports the configured window in runes.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

func lastSpace(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if unicode.IsSpace(window[i]) {
			return i
		}
	}
	return -1
}

func chunkID(docID string) string {
	return fmt.Sprintf("%s_%s", docID, uuid.New().String()[:8])
}
