package memberauth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
)

// SDK bundles the wired session core: one store, one token client, one
// session, one gateway and one guard per process.
type SDK struct {
	Store   *Store
	Client  *Client
	Session *Session
	Gateway *Gateway
	Guard   *Guard
}

// New validates cfg, seeds the store from durable storage and wires the
// components together.
func New(ctx context.Context, cfg Config) (*SDK, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("memberauth: base URL is required")
	}

	if cfg.Persister == nil {
		return nil, errors.New("memberauth: persister is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	hc := cfg.HTTPClient
	if hc == nil {
		copied := *http.DefaultClient
		hc = &copied
	}

	store, err := NewStore(ctx, cfg.Persister)
	if err != nil {
		return nil, err
	}

	client, err := NewClient(cfg.BaseURL,
		WithHTTPClient(hc),
		WithCookieJar(cfg.CookieJar),
		WithTimeout(cfg.Timeout),
		WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	session := NewSession(store, client,
		WithSessionLogger(logger),
		WithSessionMetrics(metrics),
	)

	gateway := NewGateway(store, session,
		WithGatewayHTTPClient(client.HTTPClient()),
		WithBaseURL(client.BaseURL()),
		WithGatewayLogger(logger),
		WithGatewayMetrics(metrics),
	)

	entry := cfg.EntryPoint
	if entry == "" {
		entry = DefaultEntryPoint
	}
	guard := NewGuard(
		[]Probe{MemoryProbe(session), DurableProbe(store), NetworkProbe(session)},
		WithEntryPoint(entry),
		WithWatcher(store),
		WithGuardLogger(logger),
		WithGuardMetrics(metrics),
	)

	return &SDK{
		Store:   store,
		Client:  client,
		Session: session,
		Gateway: gateway,
		Guard:   guard,
	}, nil
}
