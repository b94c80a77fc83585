package memberauth

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

	"github.com/google/uuid"
)

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithGatewayHTTPClient sets the client protected calls go through. Its jar
// should be the one the token Client uses.
func WithGatewayHTTPClient(hc *http.Client) GatewayOption {
	return func(g *Gateway) {
		g.httpClient = hc
	}
}

// WithBaseURL lets DoJSON and Profile accept service-relative paths.
func WithBaseURL(base string) GatewayOption {
	return func(g *Gateway) {
		g.baseURL = strings.TrimRight(base, "/")
	}
}

// WithGatewayLogger sets the Gateway logger.
func WithGatewayLogger(l *slog.Logger) GatewayOption {
	return func(g *Gateway) {
		g.logger = l
	}
}

// WithGatewayMetrics sets the Gateway metrics sink.
func WithGatewayMetrics(m Metrics) GatewayOption {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// Gateway sends requests on behalf of the signed-in member.
//
// Behavior and guarantees:
//   - Attaches the current credential as a bearer token
//   - Forwards jar cookies unless the context says CredentialsOmit
//   - On 401 triggers at most one refresh and at most one retry
//   - Returns every other status untouched
//   - Never clears the credential store
type Gateway struct {
	store      CredentialStore
	refresher  Refresher
	httpClient *http.Client
	bare       *http.Client
	baseURL    string
	logger     *slog.Logger
	metrics    Metrics
}

// NewGateway creates a Gateway reading credentials from store and renewing
// them through refresher.
func NewGateway(store CredentialStore, refresher Refresher, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		store:      store,
		refresher:  refresher,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
		metrics:    noopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}

	bare := *g.httpClient
	bare.Jar = nil
	g.bare = &bare

	return g
}

// Do sends req with the current credential. If the service answers 401 the
// Gateway refreshes once and, on success, re-issues the identical request
// once with the credential read fresh from the store. The second response is
// returned whatever its status.
//
// If the request body cannot be replayed through GetBody, Do buffers it
// before the first attempt.
func (g *Gateway) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if err := makeReplayable(req); err != nil {
		return nil, fmt.Errorf("memberauth: buffering request body: %w", err)
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		if id, ok := RequestIDFromContext(ctx); ok {
			requestID = id
		} else {
			requestID = uuid.NewString()
		}
	}

	sent := g.store.Get()
	resp, err := g.send(req, sent, requestID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		g.metrics.GatewayResponse(resp.StatusCode, false)
		return resp, nil
	}

	// A concurrent caller may already have rotated the credential while this
	// request was in flight; in that case retry without another refresh.
	if current := g.store.Get(); current == "" || current == sent {
		if !g.refresher.Refresh(ctx) {
			g.logger.DebugContext(ctx, "refresh after 401 failed",
				slog.String("request_id", requestID),
				slog.String("url", req.URL.Redacted()),
			)
			g.metrics.GatewayResponse(resp.StatusCode, false)
			return resp, nil
		}
	}

	drainAndClose(resp)

	retry, err := g.send(req, g.store.Get(), requestID)
	if err != nil {
		return nil, err
	}
	g.metrics.GatewayResponse(retry.StatusCode, true)
	return retry, nil
}

func (g *Gateway) send(req *http.Request, cred, requestID string) (*http.Response, error) {
	out := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		out.Body = body
	}

	if cred != "" {
		out.Header.Set("Authorization", "Bearer "+cred)
	} else {
		out.Header.Del("Authorization")
	}
	out.Header.Set(RequestIDHeader, requestID)

	hc := g.httpClient
	if CredentialsFromContext(req.Context()) == CredentialsOmit {
		hc = g.bare
	}
	return hc.Do(out)
}

func makeReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	b, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	req.Body, _ = req.GetBody()
	req.ContentLength = int64(len(b))
	return nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

func (g *Gateway) resolve(target string) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || g.baseURL == "" {
		return target, nil
	}
	return g.baseURL + "/" + strings.TrimLeft(target, "/"), nil
}

// StatusError is returned by DoJSON for non-2xx responses. Message holds the
// service's detail text, joined in server order when it was structured.
type StatusError struct {
	Status      int
	Message     string
	FieldErrors []FieldError
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("memberauth: status %d: %s", e.Status, e.Message)
}

// DoJSON sends a JSON request through the Gateway and decodes a successful
// JSON response into out.
//
// in is marshaled as the request body when non-nil. A non-2xx response is
// returned together with a *StatusError carrying the service's detail. The
// response body is always closed.
func DoJSON[T any](
	ctx context.Context,
	g *Gateway,
	method string,
	target string,
	in any,
	out *T,
) (*http.Response, error) {
	full, err := g.resolve(target)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, fields := ParseDetail(resp.Body, fmt.Sprintf("request failed (%d)", resp.StatusCode))
		return resp, &StatusError{Status: resp.StatusCode, Message: msg, FieldErrors: fields}
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return resp, err
		}
	}

	return resp, nil
}

// Member is the profile returned by the service for the signed-in member.
type Member struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Profile retrieves the signed-in member through the Gateway.
//
// Return values:
//   - (*Member, nil): the request is authenticated
//   - (nil, *StatusError): the service rejected the request, 401 included
//   - (nil, error): transport or decode failure
func (g *Gateway) Profile(ctx context.Context) (*Member, error) {
	var m Member
	if _, err := DoJSON(ctx, g, http.MethodGet, ProfilePath, nil, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
