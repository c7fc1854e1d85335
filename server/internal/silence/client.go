package silence

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrCreate is returned when Alertmanager rejects or fails a silence request.
var ErrCreate = errors.New("silence: create failed")

const silencesPath = "/api/v2/silences"

// Client talks to one Alertmanager instance.
type Client struct {
	endpoint string
	client   *http.Client
}

// NewClient returns a Client for the Alertmanager at endpoint, e.g.
// "http://alertmanager:9093". A nil httpClient uses http.DefaultClient.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   httpClient,
	}
}

// Endpoint returns the Alertmanager base URL.
func (c *Client) Endpoint() string { return c.endpoint }

// Create posts s and returns the ID Alertmanager assigned to it.
func (c *Client) Create(ctx context.Context, s Silence) (string, error) {
	body, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("%w: marshal: %v", ErrCreate, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+silencesPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrCreate, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: http post: %v", ErrCreate, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%w: alertmanager returned HTTP %d, read response: %v",
			ErrCreate, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: alertmanager returned HTTP %d: %s",
			ErrCreate, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out struct {
		SilenceID string `json:"silenceID"`
	}
	// Older Alertmanagers answer with an empty body; the silence still exists.
	_ = json.Unmarshal(respBody, &out)
	return out.SilenceID, nil
}
