package chunking

import (
	"errors"
	"fmt"
)

// DefaultChunkSize is the target chunk length, in characters, used for crawled pages.
const DefaultChunkSize = 5000

var ErrInvalidArgument = errors.New("invalid argument")

// Chunk is a contiguous slice of a source document. Offsets are rune offsets
// into the source. Ranges never overlap and grow with SequenceNumber. The
// boundary strategy reports the untrimmed window the chunk was cut from;
// the other strategies report where the piece was found, or an estimate
// when the splitter re-rendered it.
type Chunk struct {
	SourceOffsetStart int    `json:"source_offset_start"`
	SourceOffsetEnd   int    `json:"source_offset_end"`
	Text              string `json:"text"`
	SequenceNumber    int    `json:"sequence_number"`
}

// Splitter turns a document into ordered chunks.
type Splitter interface {
	Split(text string) ([]Chunk, error)
}

const (
	StrategyBoundary  = "boundary"
	StrategyMarkdown  = "markdown"
	StrategyRecursive = "recursive"
)

// New returns the splitter registered under strategy.
func New(strategy string, size int) (Splitter, error) {
	switch strategy {
	case "", StrategyBoundary:
		return NewBoundaryChunker(size)
	case StrategyMarkdown:
		return NewMarkdownChunking(size)
	case StrategyRecursive:
		return NewRecursiveCharacterChunking(size)
	default:
		return nil, fmt.Errorf("unknown chunk strategy %q: %w", strategy, ErrInvalidArgument)
	}
}

// Texts drops the bookkeeping and returns only chunk texts.
func Texts(chunks []Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}
