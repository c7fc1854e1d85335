package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/larkbridge/larkbridge/server/internal/card"
)

func forwardServer(t *testing.T, status int, reply string, got chan<- []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got != nil {
			b, _ := io.ReadAll(r.Body)
			got <- b
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestForward_Dispatch(t *testing.T) {
	got := make(chan []byte, 1)
	srv := forwardServer(t, http.StatusOK, `{"StatusCode":0,"StatusMessage":"success"}`, got)
	f := NewForward("ops", srv.URL+"/hook/token", Options{HTTPClient: srv.Client()})

	if err := f.Dispatch(context.Background(), firingRecord()); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	var env struct {
		MsgType string        `json:"msg_type"`
		Card    card.LarkCard `json:"card"`
	}
	if err := json.Unmarshal(<-got, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.MsgType != "interactive" {
		t.Errorf("msg_type: got %q, want interactive", env.MsgType)
	}
	if env.Card.Header.Template != "red" {
		t.Errorf("template: got %q, want red", env.Card.Header.Template)
	}
	if !strings.Contains(env.Card.Header.Title.Content, "HighCPU") {
		t.Errorf("title: got %q", env.Card.Header.Title.Content)
	}
	for _, el := range env.Card.Elements {
		if el.Tag == "action" {
			t.Error("forward cards carry no actions")
		}
	}
}

func TestForward_CurrentReplyShape(t *testing.T) {
	srv := forwardServer(t, http.StatusOK, `{"code":0,"data":{},"msg":"success"}`, nil)
	f := NewForward("ops", srv.URL, Options{HTTPClient: srv.Client()})
	if err := f.Dispatch(context.Background(), firingRecord()); err != nil {
		t.Errorf("Dispatch: %v", err)
	}
}

func TestForward_DispatchFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		reply  string
	}{
		{"legacy status code", http.StatusOK, `{"StatusCode":9499,"StatusMessage":"Bad Request"}`},
		{"current code", http.StatusOK, `{"code":19021,"msg":"sign match fail"}`},
		{"http error without json", http.StatusBadGateway, `upstream down`},
		{"no status field", http.StatusOK, `{"Extra":null}`},
		{"empty reply", http.StatusOK, ``},
		{"not json", http.StatusOK, `ok`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := forwardServer(t, tc.status, tc.reply, nil)
			f := NewForward("ops", srv.URL, Options{HTTPClient: srv.Client()})

			err := f.Dispatch(context.Background(), firingRecord())
			if !errors.Is(err, ErrDelivery) {
				t.Fatalf("error: got %v, want ErrDelivery", err)
			}
			var de *DeliveryError
			if !errors.As(err, &de) {
				t.Fatalf("error %T is not a *DeliveryError", err)
			}
			if de.Provider != "ops" || de.Status != tc.status || de.Body != tc.reply {
				t.Errorf("DeliveryError: got %q/%d/%q, want ops/%d/%q",
					de.Provider, de.Status, de.Body, tc.status, tc.reply)
			}
		})
	}
}

func TestForward_TruncatedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"StatusCode":0`))
	}))
	t.Cleanup(srv.Close)
	f := NewForward("ops", srv.URL, Options{HTTPClient: srv.Client()})

	err := f.Dispatch(context.Background(), firingRecord())
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("error: got %v, want ErrDelivery", err)
	}
	if !strings.Contains(err.Error(), "read response") {
		t.Errorf("error %q does not report the read failure", err)
	}
}

func TestForward_NoCallback(t *testing.T) {
	f := NewForward("ops", "https://hook.example/x", Options{})
	if f.SupportsCallback() {
		t.Error("SupportsCallback: got true, want false")
	}
	if _, ok := any(f).(CallbackHandler); ok {
		t.Error("Forward must not implement CallbackHandler")
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("https://open.feishu.cn/open-apis/bot/v2/hook/secret"); got != "https://open.feishu.cn/…" {
		t.Errorf("redactURL: got %q", got)
	}
	if got := redactURL("not a url"); got != "<invalid>" {
		t.Errorf("redactURL(invalid): got %q", got)
	}
}
