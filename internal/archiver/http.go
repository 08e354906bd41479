package archiver

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

// HTTPClient uploads proof documents to a pinning service.
type HTTPClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewHTTPClient(cfg config.ArchiverConfig) *HTTPClient {
	return &HTTPClient{
		BaseURL: cfg.BaseURL,
		Token:   cfg.Token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

type pinResponse struct {
	ContentID string `json:"IpfsHash"`
}

func (c *HTTPClient) Upload(ctx context.Context, doc domain.ProofDocument) (string, error) {
	if c.HTTP == nil {
		c.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	payload := map[string]any{
		"pinataContent": doc,
		"pinataMetadata": map[string]any{
			"name": fmt.Sprintf("proof-%s", doc.MissionID),
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", err
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/pinning/pinJSONToIPFS"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("archive proof: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("archive proof: status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if !ValidContentID(out.ContentID) {
		return "", fmt.Errorf("archive proof: unrecognized content id %q", out.ContentID)
	}
	return out.ContentID, nil
}
