// Package testutil provides a fake authentication service for exercising
// the session core end to end.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	refreshCookie = "refresh_token"
	csrfCookie    = "csrf_token"
	csrfHeader    = "X-CSRF-Token"
)

var signingKey = []byte("fake-auth-signing-key")

type user struct {
	ID        string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// FakeAuth is an in-memory authentication service with the same wire
// contract as the real one. Counters are safe to read while requests run.
type FakeAuth struct {
	Server *httptest.Server

	Logins    atomic.Int64
	Refreshes atomic.Int64
	Logouts   atomic.Int64
	Protected atomic.Int64
	Enquiries atomic.Int64

	// BeforeRefresh, when set, runs at the start of every refresh call.
	BeforeRefresh func()
	// RotateCSRF issues a new CSRF cookie on every refresh.
	RotateCSRF bool
	// RejectRefresh makes every refresh answer 401.
	RejectRefresh atomic.Bool

	mu       sync.Mutex
	users    map[string]*user
	access   map[string]string // access token -> user id
	refresh  map[string]string // refresh token -> user id
	csrf     map[string]string // refresh token -> csrf token
	lastCSRF string
}

// NewFakeAuth starts a fake service and registers cleanup with t.
func NewFakeAuth(t *testing.T) *FakeAuth {
	t.Helper()

	f := &FakeAuth{
		users:   make(map[string]*user),
		access:  make(map[string]string),
		refresh: make(map[string]string),
		csrf:    make(map[string]string),
	}

	r := chi.NewRouter()
	r.Post("/auth/login", f.handleLogin)
	r.Post("/auth/register", f.handleRegister)
	r.Post("/auth/refresh", f.handleRefresh)
	r.Post("/auth/logout", f.handleLogout)
	r.Get("/auth/me", f.handleMe)
	r.Post("/enquiries/{kind}", f.handleEnquiry)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)

	return f
}

// URL returns the base URL of the fake service.
func (f *FakeAuth) URL() string { return f.Server.URL }

// AddUser registers a member directly.
func (f *FakeAuth) AddUser(email, password string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.NewString()
	f.users[strings.ToLower(email)] = &user{ID: id, Email: email, Password: password}
	return id
}

// ExpireAccess invalidates every access token issued so far, as if their
// TTL had elapsed.
func (f *FakeAuth) ExpireAccess() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.access = make(map[string]string)
}

// IssueAccess mints a valid access token for the user with email.
func (f *FakeAuth) IssueAccess(email string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.users[strings.ToLower(email)]
	if u == nil {
		return ""
	}
	return f.issueAccessLocked(u)
}

// LastCSRF returns the most recently issued CSRF token.
func (f *FakeAuth) LastCSRF() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCSRF
}

func (f *FakeAuth) issueAccessLocked(u *user) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"name":  strings.TrimSpace(u.FirstName + " " + u.LastName),
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   now.Add(15 * time.Minute).Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	f.access[tok] = u.ID
	return tok
}

func (f *FakeAuth) issueCookiesLocked(w http.ResponseWriter, u *user) {
	rt := uuid.NewString()
	csrf := uuid.NewString()
	f.refresh[rt] = u.ID
	f.csrf[rt] = csrf
	f.lastCSRF = csrf

	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: rt, Path: "/auth", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: csrf, Path: "/", SameSite: http.SameSiteLaxMode})
}

func (f *FakeAuth) userByIDLocked(id string) *user {
	for _, u := range f.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *FakeAuth) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.Logins.Add(1)

	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	u := f.users[strings.ToLower(in.Email)]
	if u == nil || u.Password != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Invalid email or password"})
		return
	}

	f.issueCookiesLocked(w, u)
	writeJSON(w, http.StatusOK, map[string]any{"access_token": f.issueAccessLocked(u), "refresh_token": "cookie"})
}

func (f *FakeAuth) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email     string `json:"email"`
		Password  string `json:"password"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "invalid body"})
		return
	}

	var problems []map[string]any
	if !strings.Contains(in.Email, "@") {
		problems = append(problems, map[string]any{"loc": []any{"body", "email"}, "msg": "value is not a valid email address"})
	}
	if len(in.Password) < 8 {
		problems = append(problems, map[string]any{"loc": []any{"body", "password"}, "msg": "password must be at least 8 characters"})
	}
	if len(problems) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": problems})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.ToLower(in.Email)
	if _, ok := f.users[key]; ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Email already registered"})
		return
	}

	u := &user{ID: uuid.NewString(), Email: in.Email, Password: in.Password, FirstName: in.FirstName, LastName: in.LastName}
	f.users[key] = u
	writeJSON(w, http.StatusCreated, map[string]any{"id": u.ID, "email": u.Email, "first_name": u.FirstName, "last_name": u.LastName})
}

func (f *FakeAuth) handleRefresh(w http.ResponseWriter, r *http.Request) {
	f.Refreshes.Add(1)
	if f.BeforeRefresh != nil {
		f.BeforeRefresh()
	}
	if f.RejectRefresh.Load() {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "refresh rejected"})
		return
	}

	c, err := r.Cookie(refreshCookie)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "missing refresh cookie"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	uid, ok := f.refresh[c.Value]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "invalid refresh cookie"})
		return
	}
	if r.Header.Get(csrfHeader) != f.csrf[c.Value] {
		writeJSON(w, http.StatusForbidden, map[string]any{"detail": "CSRF token mismatch"})
		return
	}

	u := f.userByIDLocked(uid)
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "unknown user"})
		return
	}

	if f.RotateCSRF {
		csrf := uuid.NewString()
		f.csrf[c.Value] = csrf
		f.lastCSRF = csrf
		http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: csrf, Path: "/", SameSite: http.SameSiteLaxMode})
	}

	writeJSON(w, http.StatusOK, map[string]any{"access_token": f.issueAccessLocked(u)})
}

func (f *FakeAuth) handleLogout(w http.ResponseWriter, r *http.Request) {
	f.Logouts.Add(1)

	if c, err := r.Cookie(refreshCookie); err == nil {
		f.mu.Lock()
		if r.Header.Get(csrfHeader) == f.csrf[c.Value] {
			delete(f.refresh, c.Value)
			delete(f.csrf, c.Value)
		}
		f.mu.Unlock()
	}

	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: "", Path: "/auth", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (f *FakeAuth) bearerUser(r *http.Request) *user {
	tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || tok == "" {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	uid, ok := f.access[tok]
	if !ok {
		return nil
	}
	return f.userByIDLocked(uid)
}

func (f *FakeAuth) handleMe(w http.ResponseWriter, r *http.Request) {
	f.Protected.Add(1)

	u := f.bearerUser(r)
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": u.ID, "email": u.Email, "first_name": u.FirstName, "last_name": u.LastName})
}

func (f *FakeAuth) handleEnquiry(w http.ResponseWriter, r *http.Request) {
	f.Protected.Add(1)

	u := f.bearerUser(r)
	if u == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload) == 0 {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": []map[string]any{
			{"loc": []any{"body"}, "msg": "field required"},
		}})
		return
	}

	f.Enquiries.Add(1)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     uuid.NewString(),
		"kind":   chi.URLParam(r, "kind"),
		"status": "received",
	})
}
