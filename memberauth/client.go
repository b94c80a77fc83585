package memberauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"
)

// TokenService is the set of network operations the Session depends on.
// *Client satisfies it; tests substitute their own.
type TokenService interface {
	Login(ctx context.Context, identifier, secret string) (string, error)
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context)
	Register(ctx context.Context, p Profile) (*UserCreated, error)
}

// ClientOption configures a Client.
//
// Client options are applied at construction time via NewClient and allow
// callers to customize transport-level behavior (e.g. HTTP client, timeouts)
// without changing Client semantics.
type ClientOption func(*Client)

// WithHTTPClient configures the Client to use a custom http.Client.
//
// This is useful for setting proxies, tracing, or test transports. If the
// client has no cookie jar the Client works on a copy with its own jar, so
// the refresh anchor cookie is always retained.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithCookieJar sets the jar that holds the refresh anchor and CSRF cookies.
// Share the jar with the Gateway so protected calls carry the same cookies.
func WithCookieJar(jar http.CookieJar) ClientOption {
	return func(c *Client) {
		c.jar = jar
	}
}

// WithTimeout bounds every call made by the Client. Zero disables the bound
// and leaves cancellation to the caller's context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger used for swallowed failures.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// Profile is the registration payload.
type Profile struct {
	Identifier string `json:"email"`
	Secret     string `json:"password"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
}

// UserCreated is whatever the service echoes back after registration. Every
// field is optional.
type UserCreated struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type loginRequest struct {
	Identifier string `json:"email"`
	Secret     string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Client talks to the authentication service.
//
// The Client:
//   - performs login, refresh, logout and registration round trips
//   - never touches the credential store
//   - sends the refresh anchor through its cookie jar only
//   - reads the CSRF cookie fresh on every refresh and logout
type Client struct {
	baseURL    string
	base       *url.URL
	httpClient *http.Client
	jar        http.CookieJar
	timeout    time.Duration
	logger     *slog.Logger
}

var _ TokenService = (*Client)(nil)

// NewClient creates a Client for the service at baseURL (e.g.
// "http://localhost:8000"). The base URL is normalized by trimming any
// trailing slash.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	trimmed := strings.TrimRight(baseURL, "/")
	base, err := url.Parse(trimmed)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("memberauth: invalid base URL %q", baseURL)
	}

	c := &Client{
		baseURL:    trimmed,
		base:       base,
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.jar == nil {
		c.jar = c.httpClient.Jar
	}
	if c.jar == nil {
		// cookiejar.New only fails on a broken PublicSuffixList.
		jar, _ := cookiejar.New(nil)
		c.jar = jar
	}
	if c.httpClient.Jar != c.jar {
		hc := *c.httpClient
		hc.Jar = c.jar
		c.httpClient = &hc
	}

	return c, nil
}

// BaseURL returns the normalized service URL.
func (c *Client) BaseURL() string { return c.baseURL }

// Jar returns the cookie jar holding the refresh anchor.
func (c *Client) Jar() http.CookieJar { return c.jar }

// HTTPClient returns the http.Client the Client sends through, jar included.
func (c *Client) HTTPClient() *http.Client { return c.httpClient }

func (c *Client) endpoint(path string) *url.URL {
	return c.base.JoinPath(path)
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) newRequest(ctx context.Context, path string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path).String(), r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// doJSON performs an HTTP request and decodes a successful JSON response.
//
// If out is non-nil and the status is 2xx, the body is decoded into it. The
// response is returned with its body unread otherwise, so callers can parse
// error details. The caller closes the body.
func (c *Client) doJSON(req *http.Request, out any) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if out != nil && resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, err
		}
	}

	return resp, nil
}

// Login exchanges an identifier and secret for an access credential. The
// service also sets the refresh anchor cookie, which lands in the jar.
//
// A rejected login returns *AuthError with Kind ErrInvalidCredentials and the
// server's detail message when present. A transport failure returns Kind
// ErrNetwork. Login is never retried.
func (c *Client) Login(ctx context.Context, identifier, secret string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, LoginPath, loginRequest{Identifier: identifier, Secret: secret})
	if err != nil {
		return "", err
	}

	var tok tokenResponse
	resp, err := c.doJSON(req, &tok)
	if resp == nil {
		return "", networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := ParseDetail(resp.Body, defaultLoginMessage)
		return "", &AuthError{Kind: ErrInvalidCredentials, Message: msg}
	}
	if err != nil || tok.AccessToken == "" {
		return "", &AuthError{Kind: ErrInvalidCredentials, Message: defaultLoginMessage, cause: err}
	}

	return tok.AccessToken, nil
}

// Refresh mints a new access credential from the refresh anchor.
//
// Refresh failure is an expected outcome: every failure, including transport
// errors and cancellation, is reported as an error wrapping ErrRefreshFailed.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, RefreshPath, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	csrf, _ := CSRFToken(c.jar, req.URL)
	AttachCSRF(req, csrf)

	var tok tokenResponse
	resp, err := c.doJSON(req, &tok)
	if resp == nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %d", ErrRefreshFailed, resp.StatusCode)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access token", ErrRefreshFailed)
	}

	return tok.AccessToken, nil
}

// Logout asks the service to invalidate the refresh anchor. It is best
// effort: failures are logged and swallowed.
func (c *Client) Logout(ctx context.Context) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, LogoutPath, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "logout request build failed", slog.String("error", err.Error()))
		return
	}
	csrf, _ := CSRFToken(c.jar, req.URL)
	AttachCSRF(req, csrf)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "logout call failed", slog.String("error", err.Error()))
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "logout rejected", slog.Int("status", resp.StatusCode))
	}
}

// Register creates an account. A rejection returns *AuthError with Kind
// ErrRegistrationFailed; structured per-field details are kept in FieldErrors
// and joined into Message in the order the server returned them.
func (c *Client) Register(ctx context.Context, p Profile) (*UserCreated, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	req, err := c.newRequest(ctx, RegisterPath, p)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, fields := ParseDetail(resp.Body, defaultRegistrationMessage)
		return nil, &AuthError{Kind: ErrRegistrationFailed, Message: msg, FieldErrors: fields}
	}

	created := &UserCreated{Email: p.Identifier, FirstName: p.FirstName, LastName: p.LastName}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err == nil && len(bytes.TrimSpace(body)) > 0 {
		var echoed UserCreated
		if json.Unmarshal(body, &echoed) == nil {
			mergeCreated(created, echoed)
		}
	}

	return created, nil
}

func mergeCreated(dst *UserCreated, src UserCreated) {
	if src.ID != "" {
		dst.ID = src.ID
	}
	if src.Email != "" {
		dst.Email = src.Email
	}
	if src.FirstName != "" {
		dst.FirstName = src.FirstName
	}
	if src.LastName != "" {
		dst.LastName = src.LastName
	}
}

// isCanceled reports whether err stems from the caller giving up rather than
// from the service.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
