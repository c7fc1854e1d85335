package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/larkbridge/larkbridge/server/internal/alert"
)

// Kind identifies a provider implementation.
type Kind string

const (
	KindForward Kind = "forward"
	KindBot     Kind = "bot"
)

// Provider delivers alerts to one destination.
type Provider interface {
	Name() string
	Kind() Kind
	Dispatch(ctx context.Context, rec alert.Record) error
	// SupportsCallback reports whether the provider also implements
	// CallbackHandler.
	SupportsCallback() bool
}

// CallbackHandler handles interactive card callbacks. The returned value is
// written to the caller as JSON.
type CallbackHandler interface {
	HandleCallback(ctx context.Context, body []byte) (any, error)
}

// Starter is implemented by providers with background work. Start must not
// block.
type Starter interface {
	Start(ctx context.Context)
}

// Options are shared by every provider built by NewRegistry.
type Options struct {
	// HTTPClient is used for all outbound calls. Nil means a client with a
	// 10s timeout.
	HTTPClient *http.Client

	// Location is the zone card timestamps are rendered in. Nil means
	// card.DefaultLocation.
	Location *time.Location
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
