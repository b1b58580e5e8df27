package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	codeFence      = "```"
	paragraphBreak = "\n\n"
	sentenceBreak  = ". "

	// a break point must sit past this fraction of the window
	minBreakRatio = 0.3
)

// BoundaryChunker cuts text into windows of at most size characters,
// pulling each cut back to a code fence, a paragraph break or a sentence
// end when one exists late enough in the window.
type BoundaryChunker struct {
	size int
}

func NewBoundaryChunker(size int) (*BoundaryChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, ErrInvalidArgument)
	}
	return &BoundaryChunker{size: size}, nil
}

// ChunkText splits text with a BoundaryChunker of the given size.
func ChunkText(text string, size int) ([]string, error) {
	c, err := NewBoundaryChunker(size)
	if err != nil {
		return nil, err
	}
	chunks, err := c.Split(text)
	if err != nil {
		return nil, err
	}
	return Texts(chunks), nil
}

func (c *BoundaryChunker) Split(text string) ([]Chunk, error) {
	runes := []rune(text)
	n := len(runes)
	threshold := float64(c.size) * minBreakRatio

	var chunks []Chunk
	emit := func(start, end int) {
		trimmed := strings.TrimSpace(string(runes[start:end]))
		if trimmed == "" {
			return
		}
		chunks = append(chunks, Chunk{
			SourceOffsetStart: start,
			SourceOffsetEnd:   end,
			Text:              trimmed,
			SequenceNumber:    len(chunks),
		})
	}

	start := 0
	for start < n {
		end := start + c.size
		if end >= n {
			emit(start, n)
			break
		}

		window := string(runes[start:end])
		if idx := lastRuneIndex(window, codeFence); idx != -1 && float64(idx) > threshold {
			end = start + idx
		} else if strings.Contains(window, paragraphBreak) {
			if idx := lastRuneIndex(window, paragraphBreak); float64(idx) > threshold {
				end = start + idx
			}
		} else if strings.Contains(window, sentenceBreak) {
			if idx := lastRuneIndex(window, sentenceBreak); float64(idx) > threshold {
				// keep the period with the sentence it ends
				end = start + idx + 1
			}
		}

		emit(start, end)
		start = max(start+1, end)
	}
	return chunks, nil
}

// lastRuneIndex is strings.LastIndex measured in runes.
func lastRuneIndex(s, substr string) int {
	i := strings.LastIndex(s, substr)
	if i < 0 {
		return -1
	}
	return utf8.RuneCountInString(s[:i])
}
