package clubrunsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Club Run HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Track is the required play for a mission.
type Track struct {
	Title      string  `json:"title"`
	Artist     string  `json:"artist,omitempty"`
	DurationMS int     `json:"duration_ms,omitempty"`
	BPM        float64 `json:"bpm,omitempty"`
}

// Mission represents the API mission model.
type Mission struct {
	ID            string  `json:"id"`
	CuratorID     string  `json:"curator_id"`
	RunnerID      *string `json:"runner_id,omitempty"`
	Title         string  `json:"title"`
	Track         *Track  `json:"track,omitempty"`
	Budget        float64 `json:"budget"`
	PaymentMethod string  `json:"payment_method"`
	Status        string  `json:"status"`
	ProofHash     *string `json:"proof_hash,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

// VerificationStatus is the poll answer for a mission's pipeline position.
type VerificationStatus struct {
	MissionID     string  `json:"mission_id"`
	MissionStatus string  `json:"mission_status"`
	State         string  `json:"state"`
	ProofHash     *string `json:"proof_hash,omitempty"`
	FailureReason *string `json:"failure_reason,omitempty"`
}

// PaymentInstruction is a pending manual settlement.
type PaymentInstruction struct {
	ID        string  `json:"id"`
	MissionID string  `json:"mission_id"`
	Method    string  `json:"payment_method"`
	Amount    float64 `json:"amount"`
	Fee       float64 `json:"fee"`
	Recipient string  `json:"recipient"`
	Steps     string  `json:"steps,omitempty"`
	Status    string  `json:"status"`
	ExpiresAt string  `json:"expires_at"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateMission creates a mission.
func (c *Client) CreateMission(ctx context.Context, title string, track Track, budget float64, paymentMethod string) (Mission, error) {
	body := map[string]any{
		"title":          title,
		"track":          track,
		"budget":         budget,
		"payment_method": paymentMethod,
	}
	var resp Mission
	err := c.do(ctx, http.MethodPost, c.path("missions"), body, &resp)
	return resp, err
}

// GetMission fetches a mission by id.
func (c *Client) GetMission(ctx context.Context, id string) (Mission, error) {
	var resp Mission
	err := c.do(ctx, http.MethodGet, c.path("missions/"+url.PathEscape(id)), nil, &resp)
	return resp, err
}

// AssignRunner puts a runner on a pending mission.
func (c *Client) AssignRunner(ctx context.Context, missionID, runnerID string) (Mission, error) {
	var resp Mission
	endpoint := c.path(fmt.Sprintf("missions/%s/runner", url.PathEscape(missionID)))
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{"runner_id": runnerID}, &resp)
	return resp, err
}

// QueueVerification enqueues an immediate verification for the window.
func (c *Client) QueueVerification(ctx context.Context, missionID, startTime, endTime string) error {
	endpoint := c.path(fmt.Sprintf("missions/%s/verification", url.PathEscape(missionID)))
	body := map[string]any{"start_time": startTime, "end_time": endTime}
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// ScheduleVerification arms a verification at the window end.
func (c *Client) ScheduleVerification(ctx context.Context, missionID, startTime, endTime string) error {
	endpoint := c.path(fmt.Sprintf("missions/%s/verification/schedule", url.PathEscape(missionID)))
	body := map[string]any{"start_time": startTime, "end_time": endTime}
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// VerificationStatus polls where a mission sits in the pipeline.
func (c *Client) VerificationStatus(ctx context.Context, missionID string) (VerificationStatus, error) {
	var resp VerificationStatus
	endpoint := c.path(fmt.Sprintf("missions/%s/verification", url.PathEscape(missionID)))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// CompletePayment marks a manual instruction as settled.
func (c *Client) CompletePayment(ctx context.Context, instructionID, transactionDetails string) (PaymentInstruction, error) {
	var resp PaymentInstruction
	endpoint := c.path(fmt.Sprintf("payments/%s/complete", url.PathEscape(instructionID)))
	body := map[string]any{"transaction_details": transactionDetails}
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Payments lists instructions, optionally filtered by mission.
func (c *Client) Payments(ctx context.Context, missionID string) ([]PaymentInstruction, error) {
	endpoint := c.path("payments")
	if missionID != "" {
		endpoint = fmt.Sprintf("%s?mission_id=%s", endpoint, url.QueryEscape(missionID))
	}
	var resp []PaymentInstruction
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := c.path("events")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
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
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) path(p string) string {
	return "v1/" + strings.TrimLeft(p, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
