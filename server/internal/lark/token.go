package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/larkbridge/larkbridge/server/internal/metrics"
)

// tokenSafetyMargin is subtracted from the advertised token lifetime so a
// token never expires while a request using it is in flight.
const tokenSafetyMargin = 10 * time.Minute

// cached returns the current token if it is still usable.
func (c *Client) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return c.token, true
}

// WaitForToken returns a valid tenant access token, refreshing it first if
// there is none or it has expired. Concurrent callers that all find the
// token unusable share a single refresh.
//
// The shared refresh is detached from ctx, so one caller giving up does not
// fail the others; the HTTP client timeout still bounds it. A caller whose
// ctx ends stops waiting and gets ctx.Err().
//
// A failed refresh leaves the cached state as it was and is not retried;
// the next call tries again.
func (c *Client) WaitForToken(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}
	flight := context.WithoutCancel(ctx)
	ch := c.refreshes.DoChan("tenant_access_token", func() (any, error) {
		// A flight that finished just before this one started already did the work.
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		return c.refresh(flight)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// refresh obtains a new token and stores it with its effective expiry.
func (c *Client) refresh(ctx context.Context) (string, error) {
	c.log.Info("lark: refreshing tenant access token")

	tok, expire, err := c.fetchToken(ctx)
	metrics.TokenRefresh.WithLabelValues(c.name, metrics.Result(err)).Inc()
	if err != nil {
		c.log.Error("lark: failed to refresh token", "err", err)
		return "", fmt.Errorf("%w: %w", ErrTokenRefresh, err)
	}

	expiresAt := c.now().Add(time.Duration(expire)*time.Second - tokenSafetyMargin)
	c.mu.Lock()
	c.token = tok
	c.expiresAt = expiresAt
	c.mu.Unlock()

	c.log.Info("lark: token refreshed", "expires_at", expiresAt.UTC().Format(time.RFC3339))
	return tok, nil
}

func (c *Client) fetchToken(ctx context.Context) (string, int64, error) {
	body, err := json.Marshal(map[string]string{
		"app_id":     c.appID,
		"app_secret": c.appSecret,
	})
	if err != nil {
		return "", 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.domain+tokenPath, bytes.NewReader(body))
	if err != nil {
		return "", 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := c.plain.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	// The token endpoint puts its fields next to code/msg rather than under data.
	var out struct {
		Code              int    `json:"code"`
		Msg               string `json:"msg"`
		TenantAccessToken string `json:"tenant_access_token"`
		Expire            int64  `json:"expire"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", 0, fmt.Errorf("HTTP %d: decode response: %w", resp.StatusCode, err)
	}
	if out.Code != 0 {
		return "", 0, &APIError{Status: resp.StatusCode, Code: out.Code, Msg: out.Msg}
	}
	if out.TenantAccessToken == "" {
		return "", 0, fmt.Errorf("empty tenant_access_token in response")
	}
	return out.TenantAccessToken, out.Expire, nil
}

// bearerRoundTripper injects the tenant access token into every request.
type bearerRoundTripper struct {
	base   http.RoundTripper
	tokens *Client
}

func (t *bearerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.tokens.WaitForToken(req.Context())
	if err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, err
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+tok)
	return t.base.RoundTrip(req)
}
