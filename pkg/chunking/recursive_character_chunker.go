package chunking

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
)

type textSplitter interface {
	SplitText(text string) ([]string, error)
}

// RecursiveCharacterChunking splits on paragraph, line and word separators
// in turn until pieces fit. Pieces do not overlap.
type RecursiveCharacterChunking struct {
	splitter textSplitter
}

func NewRecursiveCharacterChunking(size int) (*RecursiveCharacterChunking, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, ErrInvalidArgument)
	}
	splitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(0),
		textsplitter.WithSeparators([]string{"\n\n", "\n", " ", ""}),
	)
	return &RecursiveCharacterChunking{splitter: &splitter}, nil
}

func (c *RecursiveCharacterChunking) Split(text string) ([]Chunk, error) {
	return splitWith(c.splitter, text)
}

// MarkdownChunking splits on markdown structure. The splitter re-renders
// some elements (lists, tables), so offsets of such pieces are best effort.
type MarkdownChunking struct {
	splitter textSplitter
}

func NewMarkdownChunking(size int) (*MarkdownChunking, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d: %w", size, ErrInvalidArgument)
	}
	splitter := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(0),
	)
	return &MarkdownChunking{splitter: splitter}, nil
}

func (c *MarkdownChunking) Split(text string) ([]Chunk, error) {
	return splitWith(c.splitter, text)
}

func splitWith(s textSplitter, text string) ([]Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	pieces, err := s.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := make([]Chunk, 0, len(pieces))
	searchFrom, lastEnd := 0, 0
	total := utf8.RuneCountInString(text)
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		// A piece the splitter re-rendered cannot be found verbatim; it is
		// given the rune length it has, starting where the previous piece ended.
		start := lastEnd
		end := min(start+utf8.RuneCountInString(p), total)
		if i := strings.Index(text[searchFrom:], p); i >= 0 {
			byteStart := searchFrom + i
			start = utf8.RuneCountInString(text[:byteStart])
			end = start + utf8.RuneCountInString(p)
			searchFrom = byteStart + len(p)
		} else {
			searchFrom = max(searchFrom, byteOffset(text, end))
		}
		lastEnd = end
		chunks = append(chunks, Chunk{
			SourceOffsetStart: start,
			SourceOffsetEnd:   end,
			Text:              p,
			SequenceNumber:    len(chunks),
		})
	}
	return chunks, nil
}

// byteOffset converts a rune offset into text to a byte offset.
func byteOffset(text string, runes int) int {
	for i := range text {
		if runes == 0 {
			return i
		}
		runes--
	}
	return len(text)
}
