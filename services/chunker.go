package services

import (
	"fmt"

	"rag-knowledge-platform/models"
)

// Chunker splits normalized text into overlapping fixed-size windows.
// Offsets are rune offsets into the normalized text, so re-chunking the same
// text with the same config always yields byte-identical chunks.
type Chunker struct {
	window  int
	overlap int
}

// TextChunk is one window produced by the chunker, before persistence.
type TextChunk struct {
	Ordinal    int
	Text       string
	StartIndex int
	EndIndex   int
}

// NewChunker validates the window configuration. Overlap must leave a
// positive stride: window > overlap >= 0.
func NewChunker(window, overlap int) (*Chunker, error) {
	if window <= 0 || overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("%w: window=%d overlap=%d", models.ErrInvalidConfig, window, overlap)
	}
	return &Chunker{window: window, overlap: overlap}, nil
}

// Split produces the ordered chunk sequence. Chunk i starts at i*(window-overlap);
// the last chunk may be shorter. Empty input yields zero chunks.
func (c *Chunker) Split(text string) []TextChunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := c.window - c.overlap
	chunks := make([]TextChunk, 0, (len(runes)+stride-1)/stride)

	for ordinal, start := 0, 0; start < len(runes); ordinal, start = ordinal+1, start+stride {
		end := start + c.window
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, TextChunk{
			Ordinal:    ordinal,
			Text:       string(runes[start:end]),
			StartIndex: start,
			EndIndex:   end,
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}

// Window reports the configured window size.
func (c *Chunker) Window() int { return c.window }

// Overlap reports the configured overlap size.
func (c *Chunker) Overlap() int { return c.overlap }
