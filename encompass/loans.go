package encompass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultPipelineURL ends with the limit parameter; the limit value is
	// appended per request.
	DefaultPipelineURL = "https://api.elliemae.com/encompass/v1/loanPipeline?limit="
	DefaultLoanLimit   = 10
)

type Client struct {
	httpClient  *http.Client
	pipelineURL string
	tokens      oauth2.TokenSource
	logger      *zap.Logger
}

// NewClient returns a loan pipeline client. tokens supplies bearer tokens
// for FetchLoans; QueryLoans takes the token explicitly.
func NewClient(httpClient *http.Client, pipelineURL string, tokens oauth2.TokenSource, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if pipelineURL == "" {
		pipelineURL = DefaultPipelineURL
	}
	return &Client{
		httpClient:  httpClient,
		pipelineURL: pipelineURL,
		tokens:      tokens,
		logger:      logger,
	}
}

func (c *Client) PipelineURL() string {
	return c.pipelineURL
}

// Token returns a bearer token from the client's token source.
func (c *Client) Token() (*oauth2.Token, error) {
	if c.tokens == nil {
		return nil, fmt.Errorf("no token source configured")
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}
	return tok, nil
}

// QueryLoans posts query to apiURL with limit appended and returns the raw
// JSON response. An empty apiURL uses the client's pipeline URL.
func (c *Client) QueryLoans(ctx context.Context, accessToken, apiURL string, query *LoanQuery, limit int) (json.RawMessage, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if apiURL == "" {
		apiURL = c.pipelineURL
	}
	if limit <= 0 {
		limit = DefaultLoanLimit
	}

	payload := []byte(query.Raw)
	if len(payload) == 0 {
		var err error
		if payload, err = json.Marshal(query); err != nil {
			return nil, fmt.Errorf("failed to marshal loan query: %w", err)
		}
	}

	endpoint := apiURL + strconv.Itoa(limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create loan request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call loan pipeline: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read loan response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("loan pipeline request failed",
			zap.String("url", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("loan pipeline returned invalid JSON")
	}

	c.logger.Info("loans retrieved",
		zap.String("url", endpoint),
		zap.Int("bytes", len(body)))
	return body, nil
}

// FetchLoans authenticates through the token source and queries the
// configured pipeline URL.
func (c *Client) FetchLoans(ctx context.Context, query *LoanQuery, limit int) (json.RawMessage, error) {
	tok, err := c.Token()
	if err != nil {
		return nil, err
	}
	return c.QueryLoans(ctx, tok.AccessToken, "", query, limit)
}
