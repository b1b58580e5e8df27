package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

type EmbeddingRequest struct {
	Inputs    []string `json:"inputs"`
	Normalize bool     `json:"normalize,omitempty"`
}

type EmbeddingResponse [][]float32

// StatusError is returned when the embedding service answers with a
// non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("service returned status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// TEI talks to a HuggingFace text-embeddings-inference server.
type TEI struct {
	BaseURL    string
	HTTPClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

func NewTEI(baseURL string) *TEI {
	return &TEI{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		maxRetries: 2,
		baseDelay:  100 * time.Millisecond,
	}
}

func (c *TEI) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (c *TEI) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		vecs, err := c.embed(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return nil, err
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}
	}
	return nil, fmt.Errorf("embed failed after retries: %w", lastErr)
}

func (c *TEI) backoff(attempt int) time.Duration {
	return time.Duration(float64(c.baseDelay) * math.Pow(2, float64(attempt)))
}

func (c *TEI) embed(ctx context.Context, texts []string) ([][]float32, error) {
	jsonData, err := json.Marshal(EmbeddingRequest{Inputs: texts, Normalize: true})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var embeddings EmbeddingResponse
	if err := json.Unmarshal(body, &embeddings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("service returned %d vectors for %d inputs", len(embeddings), len(texts))
	}
	return embeddings, nil
}
