package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/larkbridge/larkbridge/server/internal/alert"
	"github.com/larkbridge/larkbridge/server/internal/card"
	"github.com/larkbridge/larkbridge/server/internal/config"
	"github.com/larkbridge/larkbridge/server/internal/lark"
	"github.com/larkbridge/larkbridge/server/internal/metrics"
	"github.com/larkbridge/larkbridge/server/internal/silence"
	"github.com/larkbridge/larkbridge/server/internal/store"
)

// Bot sends interactive cards through a Lark app and creates silences from
// card callbacks.
type Bot struct {
	name        string
	lark        *lark.Client
	silences    *silence.Client
	chats       []string
	listChats   bool
	verifyChats bool
	users       *store.Store // nil when the user cache is disabled
	loc         *time.Location
	log         *slog.Logger
	now         func() time.Time
}

// NewBot returns a Bot provider configured by s.
func NewBot(name string, s config.BotSettings, opts Options) *Bot {
	hc := opts.httpClient()
	b := &Bot{
		name: name,
		lark: lark.New(lark.Config{
			Name:       name,
			Domain:     s.Domain,
			AppID:      s.AppID,
			AppSecret:  s.Secret(),
			HTTPClient: hc,
		}),
		silences:    silence.NewClient(s.AlertManagerEndpoint, hc),
		chats:       append([]string(nil), s.Chats...),
		listChats:   s.ListChats,
		verifyChats: s.VerifyChats,
		loc:         opts.Location,
		log:         slog.Default().With("provider", name, "kind", KindBot),
		now:         time.Now,
	}
	if ttl := time.Duration(s.UserCacheTTL); ttl > 0 {
		b.users = store.New(ttl)
	}
	return b
}

func (b *Bot) Name() string           { return b.name }
func (b *Bot) Kind() Kind             { return KindBot }
func (b *Bot) SupportsCallback() bool { return true }

// Dispatch sends rec to every configured chat in order and stops at the
// first failure.
func (b *Bot) Dispatch(ctx context.Context, rec alert.Record) error {
	doc, err := card.Generate(rec, card.Options{WithActions: true, Location: b.loc})
	if err != nil {
		return fmt.Errorf("provider %q: %w", b.name, err)
	}
	content, err := json.Marshal(card.Lark(doc))
	if err != nil {
		return fmt.Errorf("provider %q: marshal card: %w", b.name, err)
	}

	for _, chat := range b.chats {
		start := time.Now()
		err := b.lark.SendMessage(ctx, lark.Message{
			ReceiveIDType: "chat_id",
			ReceiveID:     chat,
			MsgType:       "interactive",
			Content:       string(content),
		})
		metrics.SendDuration.WithLabelValues(b.name, string(KindBot)).Observe(time.Since(start).Seconds())
		metrics.MessagesSent.WithLabelValues(b.name, string(KindBot), metrics.Result(err)).Inc()
		if err != nil {
			b.log.Error("provider: send failed, skipping remaining chats",
				"alert", rec.Name(), "chat", chat, "err", err)
			return &DeliveryError{Provider: b.name, Chat: chat, Err: err}
		}
		b.log.Debug("provider: card sent", "alert", rec.Name(), "chat", chat, "status", rec.Status)
	}
	return nil
}

// Start launches the chat audit and the user cache eviction loop.
func (b *Bot) Start(ctx context.Context) {
	if b.users != nil {
		go b.users.Run(ctx)
	}
	if b.listChats || b.verifyChats {
		go b.auditChats(ctx)
	}
}

// auditChats logs the chats visible to the bot and warns about configured
// chats it is not a member of. Failures are only logged.
func (b *Bot) auditChats(ctx context.Context) {
	visible, err := b.lark.ListChats(ctx)
	if err != nil {
		b.log.Warn("provider: could not list chats", "err", err)
		return
	}

	seen := make(map[string]bool, len(visible))
	for _, c := range visible {
		seen[c.ChatID] = true
		if b.listChats {
			b.log.Info("provider: visible chat", "chat_id", c.ChatID, "name", c.Name)
		}
	}
	if !b.verifyChats {
		return
	}
	for _, id := range b.missingChats(seen) {
		b.log.Warn("provider: configured chat is not visible to the bot", "chat_id", id)
	}
}

func (b *Bot) missingChats(seen map[string]bool) []string {
	var missing []string
	for _, id := range b.chats {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
