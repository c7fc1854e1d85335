package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultDomain is the Feishu open-platform host. Lark international
// tenants use https://open.larksuite.com.
const DefaultDomain = "https://open.feishu.cn"

const (
	tokenPath    = "/open-apis/auth/v3/tenant_access_token/internal"
	chatsPath    = "/open-apis/im/v1/chats"
	messagesPath = "/open-apis/im/v1/messages"
	usersPath    = "/open-apis/contact/v3/users/"

	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 1 << 20
)

// Config configures a Client.
type Config struct {
	// Name identifies the owning provider in logs and metrics.
	Name      string
	Domain    string
	AppID     string
	AppSecret string

	// HTTPClient is used for every request. Its Transport is wrapped to add
	// the bearer token on authorized calls. Nil means a client with a 10s
	// timeout.
	HTTPClient *http.Client
}

// Client is safe for concurrent use.
type Client struct {
	name      string
	domain    string
	appID     string
	appSecret string

	plain  *http.Client // token endpoint only
	authed *http.Client // everything else
	log    *slog.Logger
	now    func() time.Time // injectable for deterministic tests

	mu        sync.RWMutex
	token     string
	expiresAt time.Time
	refreshes singleflight.Group
}

// New creates a Client. No request is made until the first call.
func New(cfg Config) *Client {
	base := cfg.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: defaultTimeout}
	}
	domain := strings.TrimRight(cfg.Domain, "/")
	if domain == "" {
		domain = DefaultDomain
	}

	c := &Client{
		name:      cfg.Name,
		domain:    domain,
		appID:     cfg.AppID,
		appSecret: cfg.AppSecret,
		plain:     base,
		log:       slog.Default().With("provider", cfg.Name, "component", "lark"),
		now:       time.Now,
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.authed = &http.Client{
		Timeout:   base.Timeout,
		Transport: &bearerRoundTripper{base: transport, tokens: c},
	}
	return c
}

// Domain returns the open-platform base URL the client talks to.
func (c *Client) Domain() string { return c.domain }

// Chat is one group chat visible to the bot.
type Chat struct {
	ChatID      string `json:"chat_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListChats returns the first page (up to 100) of chats the bot is a member of.
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var data struct {
		Items   []Chat `json:"items"`
		HasMore bool   `json:"has_more"`
	}
	q := url.Values{"page_size": {"100"}}
	if err := c.call(ctx, http.MethodGet, chatsPath, q, nil, &data); err != nil {
		return nil, fmt.Errorf("lark: list chats: %w", err)
	}
	if data.HasMore {
		c.log.Debug("lark: chat list truncated to first page", "count", len(data.Items))
	}
	return data.Items, nil
}

// Message is an outbound IM message.
type Message struct {
	// ReceiveIDType is one of chat_id, open_id, user_id, union_id, email.
	ReceiveIDType string
	ReceiveID     string
	// MsgType is e.g. "interactive" or "text".
	MsgType string
	// Content is the JSON-encoded message body, sent as a string.
	Content string
}

// SendMessage posts m through the IM API.
func (c *Client) SendMessage(ctx context.Context, m Message) error {
	body := map[string]string{
		"receive_id": m.ReceiveID,
		"msg_type":   m.MsgType,
		"content":    m.Content,
	}
	q := url.Values{"receive_id_type": {m.ReceiveIDType}}
	if err := c.call(ctx, http.MethodPost, messagesPath, q, body, nil); err != nil {
		return fmt.Errorf("lark: send message to %s %s: %w", m.ReceiveIDType, m.ReceiveID, err)
	}
	return nil
}

// User is the subset of the contact API user object the bot uses.
type User struct {
	OpenID string `json:"open_id"`
	Name   string `json:"name"`
}

// GetUser looks a user up by open_id.
func (c *Client) GetUser(ctx context.Context, openID string) (User, error) {
	var data struct {
		User User `json:"user"`
	}
	q := url.Values{"user_id_type": {"open_id"}}
	if err := c.call(ctx, http.MethodGet, usersPath+url.PathEscape(openID), q, nil, &data); err != nil {
		return User{}, fmt.Errorf("lark: get user %s: %w", openID, err)
	}
	return data.User, nil
}

// envelope is the common response wrapper of the open platform.
type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// call performs an authorized request and decodes the envelope's data into
// out, if out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, q url.Values, in, out any) error {
	u := c.domain + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := c.authed.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	env, err := decodeEnvelope(resp)
	if err != nil {
		return err
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// decodeEnvelope reads resp and returns its envelope, or an error if the
// body is not an envelope or carries a non-zero code.
func decodeEnvelope(resp *http.Response) (*envelope, error) {
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 0 {
		return nil, &APIError{Status: resp.StatusCode, Code: env.Code, Msg: env.Msg}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, env.Msg)
	}
	return &env, nil
}
