package memberauth

import (
	"log/slog"
	"net/http"
	"time"
)

// Config defines what New needs to wire the session core.
//
// BaseURL and Persister are required; everything else has a default.
type Config struct {
	// BaseURL points at the authentication service
	// (e.g. "http://localhost:8000").
	BaseURL string

	// Persister is the durable side of the credential store.
	Persister Persister

	// HTTPClient is used for every outbound call. If it has no cookie jar a
	// fresh in-memory jar is attached, shared by the token client and the
	// Gateway. If nil, a copy of http.DefaultClient is used.
	HTTPClient *http.Client

	// CookieJar holds the refresh anchor and CSRF cookies. It takes
	// precedence over HTTPClient's own jar. Share it with other clients
	// that should ride on the same session.
	CookieJar http.CookieJar

	// Timeout bounds each login, refresh, logout and register call.
	// Zero leaves cancellation to the caller's context.
	Timeout time.Duration

	// EntryPoint is where guests are redirected. Defaults to "/".
	EntryPoint string

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to a no-op sink.
	Metrics Metrics
}
