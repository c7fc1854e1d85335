package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/larkbridge/larkbridge/server/internal/alert"
	"github.com/larkbridge/larkbridge/server/internal/card"
	"github.com/larkbridge/larkbridge/server/internal/lark"
	"github.com/larkbridge/larkbridge/server/internal/metrics"
	"github.com/larkbridge/larkbridge/server/internal/silence"
)

// SilenceComment is attached to every silence created from a card.
const SilenceComment = "Silenced via lark card"

// callbackPayload is the card action callback body. Challenge is set only
// on the URL verification handshake.
type callbackPayload struct {
	Challenge string `json:"challenge"`
	OpenID    string `json:"open_id"`
	Action    struct {
		Option string            `json:"option"`
		Value  map[string]string `json:"value"`
	} `json:"action"`
}

// HandleCallback answers the verification challenge or turns a silence menu
// selection into an Alertmanager silence. Errors returned to the caller
// only wrap a sentinel; details go to the log.
func (b *Bot) HandleCallback(ctx context.Context, body []byte) (any, error) {
	var p callbackPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, b.callbackFailed(fmt.Errorf("decode payload: %w", err), ErrInvalidCallback)
	}

	if p.Challenge != "" {
		metrics.Callbacks.WithLabelValues(b.name, "challenge").Inc()
		return map[string]string{"challenge": p.Challenge}, nil
	}
	metrics.Callbacks.WithLabelValues(b.name, "action").Inc()

	if p.OpenID == "" {
		return nil, b.callbackFailed(errors.New("missing open_id"), ErrInvalidCallback)
	}
	d, err := silence.ParseOption(p.Action.Option)
	if err != nil {
		return nil, b.callbackFailed(err, ErrInvalidCallback)
	}
	rec, err := alert.Decode(p.Action.Value[card.ActionValueKey])
	if err != nil {
		return nil, b.callbackFailed(err, ErrInvalidCallback)
	}

	name, err := b.userName(ctx, p.OpenID)
	if err != nil {
		kind := ErrUserLookup
		if errors.Is(err, lark.ErrTokenRefresh) {
			kind = lark.ErrTokenRefresh
		}
		return nil, b.callbackFailed(err, kind)
	}

	s := silence.FromLabels(rec.Labels, b.now().UTC(), d, name, SilenceComment)
	id, err := b.silences.Create(ctx, s)
	if err != nil {
		return nil, b.callbackFailed(err, silence.ErrCreate)
	}
	metrics.SilencesCreated.WithLabelValues(b.name, metrics.ResultSuccess).Inc()

	b.log.Info("provider: silence created",
		"silence_id", id,
		"created_by", name,
		"duration", d,
		"ends_at", s.EndsAt,
		"labels", rec.Labels.String(),
	)
	return struct{}{}, nil
}

// userName resolves openID to a display name, consulting the cache first.
// A user without a name is recorded by open_id.
func (b *Bot) userName(ctx context.Context, openID string) (string, error) {
	if b.users != nil {
		if name, ok := b.users.Get(openID); ok {
			return name, nil
		}
	}
	u, err := b.lark.GetUser(ctx, openID)
	if err != nil {
		return "", err
	}
	name := u.Name
	if name == "" {
		name = openID
	}
	if b.users != nil {
		b.users.Put(openID, name)
	}
	return name, nil
}

func (b *Bot) callbackFailed(err, kind error) error {
	metrics.SilencesCreated.WithLabelValues(b.name, metrics.ResultError).Inc()
	b.log.Error("provider: callback failed", "err", err)
	return fmt.Errorf("failed to create silence: %w", kind)
}
