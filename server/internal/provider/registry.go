package provider

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/larkbridge/larkbridge/server/internal/config"
)

// Registry maps routing hashes to providers. It is read-only after
// NewRegistry returns.
type Registry struct {
	byHash map[string]Provider
	order  []Provider
}

// NewRegistry builds one provider per configuration entry. An unknown type
// yields ErrUnknownKind; a repeated hash is also rejected.
func NewRegistry(providers []config.Provider, opts Options) (*Registry, error) {
	r := &Registry{byHash: make(map[string]Provider, len(providers))}
	for _, pc := range providers {
		if _, dup := r.byHash[pc.Hash]; dup {
			return nil, fmt.Errorf("provider %q: hash %q is already registered", pc.Name, pc.Hash)
		}
		p, err := build(pc, opts)
		if err != nil {
			return nil, err
		}
		r.byHash[pc.Hash] = p
		r.order = append(r.order, p)
		slog.Info("provider: registered", "provider", p.Name(), "kind", p.Kind())
	}
	return r, nil
}

func build(pc config.Provider, opts Options) (Provider, error) {
	switch pc.Type {
	case config.TypeWebhook, config.TypeForward:
		s, err := pc.Webhook()
		if err != nil {
			return nil, err
		}
		return NewForward(pc.Name, s.ResolvedURL(), opts), nil
	case config.TypeBot:
		s, err := pc.Bot()
		if err != nil {
			return nil, err
		}
		return NewBot(pc.Name, s, opts), nil
	default:
		return nil, fmt.Errorf("%w %q for provider %q", ErrUnknownKind, pc.Type, pc.Name)
	}
}

// Lookup returns the provider registered under hash.
func (r *Registry) Lookup(hash string) (Provider, error) {
	p, ok := r.byHash[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

// Callback returns the callback handler registered under hash.
func (r *Registry) Callback(hash string) (CallbackHandler, error) {
	p, err := r.Lookup(hash)
	if err != nil {
		return nil, err
	}
	if !p.SupportsCallback() {
		return nil, ErrCallbackUnsupported
	}
	h, ok := p.(CallbackHandler)
	if !ok {
		return nil, ErrCallbackUnsupported
	}
	return h, nil
}

// Len returns the number of registered providers.
func (r *Registry) Len() int { return len(r.order) }

// Start launches the background work of every provider implementing Starter.
func (r *Registry) Start(ctx context.Context) {
	for _, p := range r.order {
		if s, ok := p.(Starter); ok {
			s.Start(ctx)
		}
	}
}
