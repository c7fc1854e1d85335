package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/larkbridge/larkbridge/server/internal/alert"
	"github.com/larkbridge/larkbridge/server/internal/metrics"
	"github.com/larkbridge/larkbridge/server/internal/provider"
)

// maxBodyBytes caps inbound webhook and callback bodies.
const maxBodyBytes = 5 << 20

const (
	alertPrefix    = "/webhook/alert/"
	callbackPrefix = "/webhook/callback/"
)

// Response bodies seen by Alertmanager and Lark. They never carry upstream
// error details.
const (
	msgSent           = "Message(s) sent"
	msgSendFailed     = "Unable to send message"
	msgCallbackFailed = "Callback failed"
	msgInvalidPayload = "Invalid payload"
)

// Registry resolves routing hashes to providers.
type Registry interface {
	Lookup(hash string) (provider.Provider, error)
	Callback(hash string) (provider.CallbackHandler, error)
}

// Handler serves the webhook endpoints, /healthz and /metrics.
type Handler struct {
	reg Registry
	mux *http.ServeMux
}

// New creates a Handler wired to reg and registers all routes. The returned
// handler assigns request IDs and logs every request.
func New(reg Registry) http.Handler {
	h := &Handler{reg: reg, mux: http.NewServeMux()}

	h.mux.HandleFunc(alertPrefix, h.webhookAlert)       // subtree, extracts {hash}
	h.mux.HandleFunc(callbackPrefix, h.webhookCallback) // subtree, extracts {hash}
	h.mux.HandleFunc("/healthz", h.healthz)
	h.mux.Handle("/metrics", promhttp.Handler())

	return withRequestLog(h)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// webhookAlert handles POST /webhook/alert/{hash}: every alert of the batch is
// dispatched in order and the response waits for all of them.
func (h *Handler) webhookAlert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		textResp(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}
	hash, ok := routeHash(r.URL.Path, alertPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}
	p, err := h.reg.Lookup(hash)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	log := requestLogger(r).With("provider", p.Name(), "kind", p.Kind())

	var payload alert.Webhook
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&payload); err != nil {
		log.Warn("api: invalid alert payload", "err", err)
		textResp(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	n := 0
	for rec := range alert.Normalize(&payload) {
		metrics.AlertsReceived.WithLabelValues(p.Name()).Inc()
		if err := p.Dispatch(r.Context(), rec); err != nil {
			log.Error("api: dispatch failed",
				"alert", rec.Name(), "fingerprint", rec.Fingerprint().String(), "err", err)
			textResp(w, http.StatusInternalServerError, msgSendFailed)
			return
		}
		n++
	}

	log.Info("api: alerts dispatched", "count", n, "group_key", payload.GroupKey)
	textResp(w, http.StatusOK, msgSent)
}

// webhookCallback handles POST /webhook/callback/{hash} for providers that accept
// interactive card callbacks.
func (h *Handler) webhookCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		textResp(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		return
	}
	hash, ok := routeHash(r.URL.Path, callbackPrefix)
	if !ok {
		http.NotFound(w, r)
		return
	}
	cb, err := h.reg.Callback(hash)
	if err != nil {
		if !errors.Is(err, provider.ErrNotFound) {
			requestLogger(r).Warn("api: callback to provider without callback support", "hash", hash)
		}
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		requestLogger(r).Warn("api: read callback body", "err", err)
		textResp(w, http.StatusBadRequest, msgInvalidPayload)
		return
	}

	resp, err := cb.HandleCallback(r.Context(), body)
	if err != nil {
		requestLogger(r).Error("api: callback failed", "err", err)
		textResp(w, http.StatusInternalServerError, msgCallbackFailed)
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// healthz returns 200 "OK" unconditionally.
func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	textResp(w, http.StatusOK, "OK")
}

// --- helpers ----------------------------------------------------------------

// routeHash extracts {hash} from prefix+hash. Empty and nested paths do
// not match.
func routeHash(path, prefix string) (string, bool) {
	hash := strings.TrimPrefix(path, prefix)
	if hash == "" || strings.Contains(hash, "/") {
		return "", false
	}
	return hash, true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func textResp(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, msg) //nolint:errcheck
}
