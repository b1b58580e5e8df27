package encompass

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const DefaultTokenURL = "https://api.elliemae.com/oauth2/v1/token"

type Credentials struct {
	TokenURL     string `validate:"required,url"`
	InstanceID   string `validate:"required"`
	UserID       string `validate:"required"`
	Password     string `validate:"required"`
	ClientID     string `validate:"required"`
	ClientSecret string `validate:"required"`
}

// Username is the login name the password grant expects.
func (c Credentials) Username() string {
	return c.UserID + "@encompass:" + c.InstanceID
}

func (c Credentials) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("encompass credentials: %w", err)
	}
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Authenticator runs the OAuth password grant against the Encompass token
// endpoint. The endpoint needs instance_id alongside the standard fields,
// which oauth2.Config cannot send, so the form is posted directly.
type Authenticator struct {
	creds      Credentials
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

func NewAuthenticator(creds Credentials, httpClient *http.Client, logger *zap.Logger) *Authenticator {
	if creds.TokenURL == "" {
		creds.TokenURL = DefaultTokenURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Authenticator{
		creds:      creds,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
	}
}

// Authenticate requests a new bearer token.
func (a *Authenticator) Authenticate(ctx context.Context) (*oauth2.Token, error) {
	form := url.Values{
		"grant_type":    {"password"},
		"username":      {a.creds.Username()},
		"password":      {a.creds.Password},
		"client_id":     {a.creds.ClientID},
		"client_secret": {a.creds.ClientSecret},
		"instance_id":   {a.creds.InstanceID},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.creds.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		a.logger.Error("token request rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("instance_id", a.creds.InstanceID))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, ErrNoAccessToken
	}

	tok := &oauth2.Token{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
	}
	if tr.ExpiresIn > 0 {
		tok.Expiry = a.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	a.logger.Info("access token issued",
		zap.String("instance_id", a.creds.InstanceID),
		zap.Time("expiry", tok.Expiry))
	return tok, nil
}

// TokenSource adapts the authenticator to oauth2.TokenSource, using ctx for
// every token request. With cache set, a token is reused until shortly
// before it expires; without it every call authenticates again.
func (a *Authenticator) TokenSource(ctx context.Context, cache bool) oauth2.TokenSource {
	src := &tokenSource{ctx: ctx, auth: a}
	if !cache {
		return src
	}
	return oauth2.ReuseTokenSource(nil, src)
}

type tokenSource struct {
	ctx  context.Context
	auth *Authenticator
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	return s.auth.Authenticate(s.ctx)
}
