package ingest

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const DefaultEncoding = "cl100k_base"

type TokenCounter interface {
	Count(text string) int
}

// TikTokenCounter counts tokens the way OpenAI embedding models do.
type TikTokenCounter struct {
	tke *tiktoken.Tiktoken
}

// NewTikTokenCounter loads the named encoding. The BPE ranks are downloaded
// and cached on first use unless TIKTOKEN_CACHE_DIR already holds them.
func NewTikTokenCounter(encoding string) (*TikTokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding: %w", err)
	}
	return &TikTokenCounter{tke: tke}, nil
}

func (c *TikTokenCounter) Count(text string) int {
	return len(c.tke.Encode(text, nil, nil))
}
