package provider

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/common/model"
	"gopkg.in/yaml.v3"

	"github.com/larkbridge/larkbridge/server/internal/alert"
	"github.com/larkbridge/larkbridge/server/internal/config"
	"github.com/larkbridge/larkbridge/server/internal/silence"
)

// backend fakes the Lark open platform and an Alertmanager on one server.
type backend struct {
	tokenCode   atomic.Int32
	userCalls   atomic.Int32
	failChat    string
	silenceCode int

	mu       sync.Mutex
	sent     []map[string]string
	silences []silence.Silence
	chats    []map[string]string
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/open-apis/auth/v3/tenant_access_token/internal":
		if code := b.tokenCode.Load(); code != 0 {
			writeJSON(w, map[string]any{"code": code, "msg": "invalid app_secret"})
			return
		}
		writeJSON(w, map[string]any{"code": 0, "tenant_access_token": "t-1", "expire": 7200})
	case r.URL.Path == "/open-apis/im/v1/messages":
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		b.mu.Lock()
		b.sent = append(b.sent, in)
		b.mu.Unlock()
		if in["receive_id"] == b.failChat {
			writeJSON(w, map[string]any{"code": 230002, "msg": "bot is not in the chat"})
			return
		}
		writeJSON(w, map[string]any{"code": 0})
	case r.URL.Path == "/open-apis/im/v1/chats":
		writeJSON(w, map[string]any{"code": 0, "data": map[string]any{"items": b.chats}})
	case strings.HasPrefix(r.URL.Path, "/open-apis/contact/v3/users/"):
		b.userCalls.Add(1)
		writeJSON(w, map[string]any{"code": 0, "data": map[string]any{
			"user": map[string]any{"name": "Alice"},
		}})
	case r.URL.Path == "/api/v2/silences":
		if b.silenceCode != 0 {
			w.WriteHeader(b.silenceCode)
			_, _ = w.Write([]byte(`{"error":"internal detail"}`))
			return
		}
		var s silence.Silence
		_ = json.NewDecoder(r.Body).Decode(&s)
		b.mu.Lock()
		b.silences = append(b.silences, s)
		b.mu.Unlock()
		writeJSON(w, map[string]any{"silenceID": "sil-1"})
	default:
		http.NotFound(w, r)
	}
}

func (b *backend) snapshot() ([]map[string]string, []silence.Silence) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]string(nil), b.sent...), append([]silence.Silence(nil), b.silences...)
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

// newBackend starts the fake after applying opts, so handler goroutines
// observe the configured fields.
func newBackend(t *testing.T, opts ...func(*backend)) (*backend, *httptest.Server) {
	t.Helper()
	b := &backend{}
	for _, o := range opts {
		o(b)
	}
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return b, srv
}

func newTestBot(t *testing.T, srv *httptest.Server, chats ...string) *Bot {
	t.Helper()
	bot := NewBot("oncall", config.BotSettings{
		AppID:                "cli_app",
		AppSecret:            "s3cret",
		Chats:                chats,
		AlertManagerEndpoint: srv.URL,
		Domain:               srv.URL,
		UserCacheTTL:         model.Duration(time.Hour),
	}, Options{HTTPClient: srv.Client()})
	bot.now = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 500, time.UTC) }
	return bot
}

func firingRecord() alert.Record {
	return alert.Record{
		Status: alert.StatusFiring,
		Labels: model.LabelSet{
			"alertname": "HighCPU",
			"severity":  "critical",
			"instance":  "node-1",
		},
		Annotations: model.LabelSet{"description": "cpu > 90%"},
		StartsAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExternalURL: "https://am.example",
	}
}

func mustProvider(t *testing.T, src string) config.Provider {
	t.Helper()
	var p config.Provider
	if err := yaml.Unmarshal([]byte(src), &p); err != nil {
		t.Fatalf("parse provider: %v", err)
	}
	return p
}
