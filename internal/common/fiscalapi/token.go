// internal/common/fiscalapi/token.go
package fiscalapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fiscal-assistant/internal/common/cache"
)

// TokenResponse holds the response of the OAuth token endpoint.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// tokenSource fetches client-credentials tokens and keeps them in an injected cache.
type tokenSource struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	tokens       *cache.TTLCache[string, string]
	now          cache.Clock
}

// expiryMargin renews tokens slightly before the server expires them.
const expiryMargin = 30 * time.Second

func (s *tokenSource) Token(ctx context.Context) (string, error) {
	if s.tokenURL == "" {
		return "", nil
	}
	if tok, ok := s.tokens.Get(s.clientID); ok {
		return tok, nil
	}

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", s.clientID)
	data.Set("client_secret", s.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	expiresAt := s.now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - expiryMargin)
	s.tokens.SetUntil(s.clientID, tokenResp.AccessToken, expiresAt)
	return tokenResp.AccessToken, nil
}
