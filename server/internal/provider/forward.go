package provider

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
	"time"

	"github.com/larkbridge/larkbridge/server/internal/alert"
	"github.com/larkbridge/larkbridge/server/internal/card"
	"github.com/larkbridge/larkbridge/server/internal/metrics"
)

const maxResponseBytes = 64 << 10

// Forward posts cards to a custom bot webhook.
type Forward struct {
	name   string
	url    string
	client *http.Client
	loc    *time.Location
	log    *slog.Logger
}

// NewForward returns a Forward provider posting to webhookURL.
func NewForward(name, webhookURL string, opts Options) *Forward {
	return &Forward{
		name:   name,
		url:    webhookURL,
		client: opts.httpClient(),
		loc:    opts.Location,
		log:    slog.Default().With("provider", name, "kind", KindForward, "url", redactURL(webhookURL)),
	}
}

func (f *Forward) Name() string           { return f.name }
func (f *Forward) Kind() Kind             { return KindForward }
func (f *Forward) SupportsCallback() bool { return false }

type forwardEnvelope struct {
	MsgType string         `json:"msg_type"`
	Card    *card.LarkCard `json:"card"`
}

// forwardResponse covers both the legacy (StatusCode/StatusMessage) and the
// current (code/msg) webhook reply shapes. A reply carrying neither status
// field is not an acknowledgement.
type forwardResponse struct {
	StatusCode    *int   `json:"StatusCode"`
	StatusMessage string `json:"StatusMessage"`
	Code          *int   `json:"code"`
	Msg           string `json:"msg"`
}

// accepted reports whether the reply acknowledges the message.
func (r forwardResponse) accepted() bool {
	if r.StatusCode == nil && r.Code == nil {
		return false
	}
	return (r.StatusCode == nil || *r.StatusCode == 0) && (r.Code == nil || *r.Code == 0)
}

// Dispatch renders rec without actions and posts it to the webhook.
func (f *Forward) Dispatch(ctx context.Context, rec alert.Record) error {
	doc, err := card.Generate(rec, card.Options{Location: f.loc})
	if err != nil {
		return fmt.Errorf("provider %q: %w", f.name, err)
	}
	body, err := json.Marshal(forwardEnvelope{MsgType: "interactive", Card: card.Lark(doc)})
	if err != nil {
		return fmt.Errorf("provider %q: marshal card: %w", f.name, err)
	}

	start := time.Now()
	err = f.post(ctx, body)
	metrics.SendDuration.WithLabelValues(f.name, string(KindForward)).Observe(time.Since(start).Seconds())
	metrics.MessagesSent.WithLabelValues(f.name, string(KindForward), metrics.Result(err)).Inc()

	if err != nil {
		f.log.Error("provider: forward failed", "alert", rec.Name(), "err", err)
		return err
	}
	f.log.Debug("provider: forward delivered", "alert", rec.Name(), "status", rec.Status)
	return nil
}

func (f *Forward) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Provider: f.name, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return &DeliveryError{Provider: f.name, Err: fmt.Errorf("http post: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	text := strings.TrimSpace(string(raw))
	if err != nil {
		return &DeliveryError{Provider: f.name, Status: resp.StatusCode, Body: text,
			Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{Provider: f.name, Status: resp.StatusCode, Body: text}
	}

	var out forwardResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return &DeliveryError{Provider: f.name, Status: resp.StatusCode, Body: text,
			Err: fmt.Errorf("decode response: %w", err)}
	}
	if !out.accepted() {
		return &DeliveryError{Provider: f.name, Status: resp.StatusCode, Body: text}
	}
	return nil
}

// redactURL keeps scheme and host only; webhook paths carry the bot token.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid>"
	}
	return u.Scheme + "://" + u.Host + "/…"
}
