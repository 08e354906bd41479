package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"clubrun/internal/config"
	"clubrun/internal/domain"
)

// HTTPClient is the real play-history client.
type HTTPClient struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTP         *http.Client
}

func NewHTTPClient(cfg config.OracleConfig) *HTTPClient {
	return &HTTPClient{
		BaseURL:      cfg.BaseURL,
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		HTTP:         &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError wraps non-2xx provider responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oracle api error: status=%d body=%s", e.StatusCode, e.Body)
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
}

func (c *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (TokenSet, error) {
	body := map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
	}
	var resp refreshResponse
	if err := c.do(ctx, http.MethodPost, "/oauth/token", body, &resp); err != nil {
		return TokenSet{}, fmt.Errorf("refresh oracle token: %w", err)
	}
	return TokenSet{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    time.Now().UTC().Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}

type verifyRequest struct {
	Track domain.TrackRequirement `json:"track"`
	Start string                  `json:"start_time"`
	End   string                  `json:"end_time"`
}

func (c *HTTPClient) VerifyTrackPlay(ctx context.Context, accessToken string, track domain.TrackRequirement, start, end time.Time) (domain.VerificationResult, error) {
	req := verifyRequest{
		Track: track,
		Start: start.UTC().Format(time.RFC3339),
		End:   end.UTC().Format(time.RFC3339),
	}
	var resp domain.VerificationResult
	err := c.doAuthorized(ctx, http.MethodPost, "/play-history/verify", accessToken, req, &resp)
	if err != nil {
		return domain.VerificationResult{}, fmt.Errorf("verify track play: %w", err)
	}
	return resp, nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	return c.doAuthorized(ctx, method, endpoint, "", body, out)
}

func (c *HTTPClient) doAuthorized(ctx context.Context, method, endpoint, accessToken string, body, out any) error {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
